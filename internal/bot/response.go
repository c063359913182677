package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

type ResponseString struct {
	string
	private bool
}

type ResponseEmbed struct {
	discordgo.MessageEmbed
	components []discordgo.MessageComponent
	private    bool
}

type Response interface {
	Data() *discordgo.InteractionResponseData
}

func (response ResponseString) Data() *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{Content: response.string}
	if response.private {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

func (response ResponseEmbed) Data() *discordgo.InteractionResponseData {
	embed := response.MessageEmbed
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{&embed}, Components: response.components}
	if response.private {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

// Answer an interaction, or edit the deferred answer
func (bot *Bot) respond(interaction *discordgo.Interaction, response Response, deferred bool) {
	data := response.Data()
	if deferred {
		edit := &discordgo.WebhookEdit{Content: &data.Content, Embeds: &data.Embeds}
		if data.Components != nil {
			edit.Components = &data.Components
		}
		if _, err := bot.discord.InteractionResponseEdit(interaction, edit); err != nil {
			log.Error().Err(err).Msg("Could not edit deferred response")
		}
		return
	}
	err := bot.discord.InteractionRespond(interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		log.Error().Err(err).Msg("Could not respond to interaction")
	}
}

// Acknowledge now and answer later, for commands that call external APIs
func (bot *Bot) deferResponse(interaction *discordgo.Interaction, private bool) bool {
	response := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
	if private {
		response.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	if err := bot.discord.InteractionRespond(interaction, response); err != nil {
		log.Error().Err(err).Msg("Could not defer interaction")
		return false
	}
	return true
}
