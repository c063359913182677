package bot

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"brotherowl/internal/bank"
	"brotherowl/internal/format"
	"brotherowl/internal/giveaway"
	"brotherowl/internal/guildconfig"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const maxGiveawayMinutes = 30 * 24 * 60

func (bot *Bot) giveawayCommand(req request) Response {
	minutes, _ := req.command.Int("minutes")
	if minutes < 1 || minutes > maxGiveawayMinutes {
		return InputNotValid(fmt.Sprintf("Duration must be between 1 and %d minutes", maxGiveawayMinutes))
	}
	state, err := bot.giveaways.Create(giveaway.CreateRequest{
		GuildID:   req.guildID,
		ChannelID: req.interaction.ChannelID,
		CreatorID: req.userID,
		Prize:     req.command.Text("prize"),
		Host:      req.command.Text("host"),
		Emoji:     req.command.Text("emoji"),
		Duration:  time.Duration(minutes) * time.Minute,
	})
	if err != nil {
		log.Error().Err(err).Str("guild", req.guildID).Msg("Could not create giveaway")
		return private("The giveaway could not be started")
	}
	return private(fmt.Sprintf("Giveaway for **%s** started, react with %s to enter", state.Prize, state.Emoji))
}

func (bot *Bot) forceEndGiveaway(req request, id string) Response {
	state, err := bot.giveaways.ForceEnd(id, req.userID)
	switch {
	case errors.Is(err, giveaway.ErrNotCreator):
		return private("Only the creator of the giveaway can end it")
	case errors.Is(err, giveaway.ErrNotFound), errors.Is(err, giveaway.ErrAlreadyEnded):
		return private("This giveaway has already ended")
	case err != nil:
		return StorageFailure()
	}
	return private(fmt.Sprintf("Giveaway for **%s** ended", state.Prize))
}

func (bot *Bot) bankCommand(req request) Response {
	switch req.command.Subcommand {
	case "request":
		return bot.bankRequest(req)
	case "fulfil":
		return bot.fulfilBankRequest(req, req.command.Text("id"))
	case "cancel":
		return bot.cancelBankRequest(req, req.command.Text("id"))
	case "pending":
		requests, err := bot.bank.Pending(req.guildID)
		if err != nil {
			log.Error().Err(err).Msg("Could not list bank requests")
			return StorageFailure()
		}
		return BankPending(requests, bot.clock.Now())
	case "setup":
		return bot.updateServer(req, "Bank", func(c *guildconfig.ServerConfig) {
			c.BankChannel = req.command.ID("channel")
			c.BankerRole = req.command.ID("role")
		})
	}
	return InputNotValid(fmt.Sprintf("Unknown subcommand `%s`", req.command.Subcommand))
}

func (bot *Bot) bankRequest(req request) Response {
	amount, err := ParseAmount(req.command.Text("amount"))
	if err != nil {
		return InputNotValid(err.Error())
	}
	if amount < 1 || amount > math.MaxInt64/2 {
		return InputNotValid("The amount must be at least $1")
	}
	server, err := bot.servers.Get(req.guildID)
	if err != nil {
		return StorageFailure()
	}
	if server.BankChannel == "" {
		return InputNotValid("The bank is not set up in this server, ask an admin to run `/bank setup`")
	}

	// the torn id is only informative, it is known once the member stored a key
	tornID := 0
	if keys, failure := bot.userKeys(req); failure == nil {
		if profile, err := bot.torn.User(req.ctx, keys.Torn, 0); err == nil {
			tornID = profile.PlayerID
		}
	}

	request, err := bot.bank.Create(req.guildID, req.userID, tornID, int64(amount))
	if err != nil {
		log.Error().Err(err).Msg("Could not create bank request")
		return StorageFailure()
	}

	message := BankRequestMessage(request, userMention(req.userID))
	if server.BankerRole != "" {
		message.Content = fmt.Sprintf("<@&%s>", server.BankerRole)
	}
	posted, err := bot.discord.ChannelMessageSendComplex(server.BankChannel, message)
	if err != nil {
		log.Error().Err(err).Str("request", request.ID).Msg("Could not post bank request")
		return private(fmt.Sprintf("Request `%s` saved but the bankers could not be notified", request.ID))
	}
	if err := bot.bank.MarkNotified(request.ID, posted.ID); err != nil {
		log.Warn().Err(err).Str("request", request.ID).Msg("Could not mark bank request as notified")
	}
	return private(fmt.Sprintf("Request `%s` sent to the bankers", request.ID))
}

// Bankers hold the configured role. Server administrators count as bankers too
func (bot *Bot) isBanker(req request) bool {
	if memberPermissions(req)&discordgo.PermissionAdministrator != 0 {
		return true
	}
	server, err := bot.servers.Get(req.guildID)
	if err != nil {
		log.Error().Err(err).Str("guild", req.guildID).Msg("Could not read server config")
		return false
	}
	return server.BankerRole != "" && slices.Contains(req.roles, server.BankerRole)
}

func (bot *Bot) fulfilBankRequest(req request, id string) Response {
	if !bot.isBanker(req) {
		return PermissionDenied("bank fulfil")
	}
	request, err := bot.bank.Fulfill(id, req.userID)
	if response := bankFailure(err); response != nil {
		return response
	}
	bot.refreshBankMessage(req, request)
	if _, err := bot.discord.ChannelMessageSend(req.interaction.ChannelID,
		fmt.Sprintf("%s your request of %s has been sent by %s", userMention(request.RequesterID),
			format.Money(request.Amount), userMention(req.userID))); err != nil {
		log.Warn().Err(err).Str("request", request.ID).Msg("Could not notify requester")
	}
	return private(fmt.Sprintf("Request `%s` fulfilled", request.ID))
}

func (bot *Bot) cancelBankRequest(req request, id string) Response {
	request, err := bot.bank.Cancel(id, req.userID, bot.isBanker(req))
	if response := bankFailure(err); response != nil {
		return response
	}
	bot.refreshBankMessage(req, request)
	return private(fmt.Sprintf("Request `%s` cancelled", request.ID))
}

func bankFailure(err error) Response {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bank.ErrNotFound):
		return InputNotValid("There is no bank request with that id")
	case errors.Is(err, bank.ErrAlreadyResolved):
		return private("That request was already resolved")
	case errors.Is(err, bank.ErrNotRequester):
		return private("Only the requester or a banker can cancel that request")
	}
	log.Error().Err(err).Msg("Bank request update failed")
	return StorageFailure()
}

// Replace the buttons of the posted request with its final state
func (bot *Bot) refreshBankMessage(req request, resolved bank.Request) {
	if resolved.MessageID == "" {
		return
	}
	server, err := bot.servers.Get(req.guildID)
	if err != nil || server.BankChannel == "" {
		return
	}
	edit := discordgo.NewMessageEdit(server.BankChannel, resolved.MessageID).
		SetEmbed(bankEmbed(resolved, userMention(resolved.RequesterID)))
	edit.Components = &[]discordgo.MessageComponent{}
	if _, err := bot.discord.ChannelMessageEditComplex(edit); err != nil {
		log.Warn().Err(err).Str("request", resolved.ID).Msg("Could not update bank message")
	}
}

func (bot *Bot) welcome(req request) Response {
	switch req.command.Subcommand {
	case "set":
		config, err := bot.welcomes.Update(req.guildID, func(w *guildconfig.WelcomeConfig) {
			w.ChannelID = req.command.ID("channel")
			w.Enabled = true
			if req.command.Has("message") {
				w.Message = req.command.Text("message")
			}
			if req.command.Has("role") {
				w.AutoRole = req.command.ID("role")
			}
		})
		if err != nil {
			log.Error().Err(err).Msg("Could not save welcome config")
			return StorageFailure()
		}
		return private(fmt.Sprintf("New members will be welcomed in %s:\n%s",
			channelMention(config.ChannelID), config.Render(userMention(req.userID), "this server")))
	case "disable":
		if _, err := bot.welcomes.Update(req.guildID, func(w *guildconfig.WelcomeConfig) { w.Enabled = false }); err != nil {
			return StorageFailure()
		}
		return private("Welcome messages disabled")
	case "test":
		if !bot.welcomeMember(req.guildID, req.userID) {
			return private("Welcome messages are not enabled in this server")
		}
		return private("Welcome message sent")
	}
	return InputNotValid(fmt.Sprintf("Unknown subcommand `%s`", req.command.Subcommand))
}

// welcomeMember posts the welcome message and gives the automatic role.
// False when the guild has no enabled welcome config
func (bot *Bot) welcomeMember(guildID string, userID string) bool {
	config, ok := bot.welcomes.Get(guildID)
	if !ok || !config.Enabled || config.ChannelID == "" {
		return false
	}
	serverName := "the server"
	if guild, err := bot.discord.Guild(guildID); err == nil {
		serverName = guild.Name
	}
	if _, err := bot.discord.ChannelMessageSend(config.ChannelID, config.Render(userMention(userID), serverName)); err != nil {
		log.Error().Err(err).Str("guild", guildID).Msg("Could not send welcome message")
	}
	if config.AutoRole != "" {
		if err := bot.discord.GuildMemberRoleAdd(guildID, userID, config.AutoRole); err != nil {
			log.Error().Err(err).Str("guild", guildID).Str("role", config.AutoRole).Msg("Could not give automatic role")
		}
	}
	log.Info().Str("guild", guildID).Str("user", userID).Msg("Member welcomed")
	return true
}

func (bot *Bot) permissionsCommand(req request) Response {
	switch req.command.Subcommand {
	case "enable", "disable":
		enabled := req.command.Subcommand == "enable"
		if err := bot.permissions.SetEnabled(req.guildID, enabled); err != nil {
			log.Error().Err(err).Msg("Could not toggle permissions")
			return StorageFailure()
		}
		if enabled {
			return private("Role permissions are now enforced")
		}
		return private("Every command is now available to everyone")
	case "set":
		category := req.command.Text("category")
		if _, ok := guildconfig.Categories[category]; !ok {
			return InputNotValid(fmt.Sprintf("Unknown category `%s`", category))
		}
		level, err := guildconfig.ParseLevel(req.command.Text("level"))
		if err != nil {
			return InputNotValid(err.Error())
		}
		roleID := req.command.ID("role")
		if err := bot.permissions.SetLevel(req.guildID, roleID, category, level); err != nil {
			log.Error().Err(err).Msg("Could not save permissions")
			return StorageFailure()
		}
		return private(fmt.Sprintf("<@&%s> now has %s access to %s", roleID, level, category))
	}
	return InputNotValid(fmt.Sprintf("Unknown subcommand `%s`", req.command.Subcommand))
}

func userMention(id string) string {
	return fmt.Sprintf("<@%s>", id)
}
