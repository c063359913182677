package bot

import (
	"fmt"
	"strings"
	"time"

	"brotherowl/internal/bank"
	"brotherowl/internal/estimate"
	"brotherowl/internal/factionstats"
	"brotherowl/internal/format"
	"brotherowl/internal/guildconfig"
	"brotherowl/internal/storage"
	"brotherowl/internal/tornapi"

	"github.com/bwmarrin/discordgo"
)

// Use "teal" color for the bot
const color int = 0x008080

func private(content string) Response {
	return ResponseString{content, true}
}

func InputNotValid(errorMessage string) Response {
	return private(fmt.Sprintf("Input not valid: \n> %s", errorMessage))
}

func NoAPIKey() Response {
	return private("You have not set your Torn API key yet. Use `/apikey set` first")
}

func PermissionDenied(command string) Response {
	return private(fmt.Sprintf("You do not have permission to use `/%s`", command))
}

func NoResponseTornApi() Response {
	return private("Got no response from the Torn API, try again later")
}

func StorageFailure() Response {
	return private("Something went wrong saving your data, try again later")
}

func HelpMessage() Response {
	embed := discordgo.MessageEmbed{Title: "Commands available", Color: color}
	for _, command := range commands {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   fmt.Sprintf("`/%s`", command.Name),
			Value:  command.Description,
			Inline: false,
		})
	}
	return ResponseEmbed{MessageEmbed: embed, private: true}
}

func APIKeySaved(profile tornapi.Profile) Response {
	return private(fmt.Sprintf("API key saved for **%s** [%d]", profile.Name, profile.PlayerID))
}

func confidenceLabel(c estimate.Confidence) string {
	s := string(c)
	if s == "" {
		return "None"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func statFields(strength, speed, dexterity, defense, total float64) []*discordgo.MessageEmbedField {
	return []*discordgo.MessageEmbedField{
		{Name: "Strength", Value: format.Number(int64(strength)), Inline: true},
		{Name: "Speed", Value: format.Number(int64(speed)), Inline: true},
		{Name: "Dexterity", Value: format.Number(int64(dexterity)), Inline: true},
		{Name: "Defense", Value: format.Number(int64(defense)), Inline: true},
		{Name: "Total", Value: format.Number(int64(total)), Inline: true},
	}
}

func OwnStats(profile tornapi.Profile, stats tornapi.BattleStats, personal tornapi.PersonalStats, previous *storage.StatRecord, now time.Time) Response {
	embed := discordgo.MessageEmbed{
		Title:  fmt.Sprintf("Battle stats of %s [%d]", profile.Name, profile.PlayerID),
		Color:  color,
		Fields: statFields(stats.Strength, stats.Speed, stats.Dexterity, stats.Defense, stats.Total),
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Level", Value: fmt.Sprint(profile.Level), Inline: true},
		&discordgo.MessageEmbedField{Name: "Xanax taken", Value: format.Number(personal.XanaxTaken), Inline: true},
		&discordgo.MessageEmbedField{Name: "Energy drinks", Value: format.Number(personal.EnergyDrinkUsed), Inline: true},
	)
	if previous != nil {
		gain := stats.Total - previous.Total
		value := fmt.Sprintf("%s (%s) since %s", format.Compact(gain), format.Percent(factionstats.PercentChange(stats.Total, previous.Total)),
			format.RelativeAge(now, previous.Timestamp))
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Progress", Value: value, Inline: false})
	}
	return ResponseEmbed{MessageEmbed: embed, private: true}
}

func SpySaved(playerID int, total float64) Response {
	return private(fmt.Sprintf("Spy on player [%d] saved, total %s", playerID, format.Number(int64(total))))
}

func NoSpy(playerID int) Response {
	return private(fmt.Sprintf("No spy saved for player [%d]", playerID))
}

func SpyView(spy storage.Spy, now time.Time) Response {
	embed := discordgo.MessageEmbed{
		Title:  fmt.Sprintf("Spy on player [%d]", spy.TargetID),
		Color:  color,
		Fields: statFields(spy.Strength, spy.Speed, spy.Dexterity, spy.Defense, spy.Total),
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Source %s, %s. Confidence %s",
			spy.Source, format.RelativeAge(now, spy.Timestamp), confidenceLabel(estimate.ConfidenceFor(spy.Timestamp, now)))},
	}
	return ResponseEmbed{MessageEmbed: embed}
}

type EnemyReport struct {
	Profile        tornapi.Profile
	Estimate       estimate.PlayerStatEstimate
	OwnTotal       float64
	FairFight      float64
	Respect        float64
	Recommendation estimate.Verdict
}

func EnemyMessage(report EnemyReport) Response {
	est := report.Estimate
	embed := discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s [%d], level %d", report.Profile.Name, report.Profile.PlayerID, report.Profile.Level),
		Color: color,
	}
	if report.Profile.Status.Description != "" {
		embed.Description = report.Profile.Status.Description
	}
	switch {
	case est.Confidence == estimate.None:
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Stats", Value: "No data available"})
	case est.HasBreakdown():
		embed.Fields = append(embed.Fields, statFields(est.Strength, est.Speed, est.Dexterity, est.Defense, est.Total)...)
	default:
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Estimated total", Value: format.Compact(est.Total), Inline: true})
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Confidence", Value: confidenceLabel(est.Confidence), Inline: true},
		&discordgo.MessageEmbedField{Name: "Sources", Value: sourcesLabel(est.Sources), Inline: true},
	)
	if report.FairFight > 0 {
		embed.Fields = append(embed.Fields,
			&discordgo.MessageEmbedField{Name: "Fair fight", Value: format.Float(report.FairFight, 2), Inline: true},
			&discordgo.MessageEmbedField{Name: "Respect", Value: format.Float(report.Respect, 2), Inline: true},
		)
	}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:  "Recommendation",
		Value: fmt.Sprintf("**%s**: %s", report.Recommendation.Label, report.Recommendation.Description),
	})
	if !est.UpdatedAt.IsZero() {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Data from " + format.Date(est.UpdatedAt)}
	}
	return ResponseEmbed{MessageEmbed: embed}
}

func sourcesLabel(sources []string) string {
	if len(sources) == 0 {
		return "none"
	}
	return strings.Join(sources, ", ")
}

func FairFightMessage(your, enemy float64, level int, ff float64) Response {
	if ff == 0 {
		return InputNotValid("Both stat totals must be positive")
	}
	embed := discordgo.MessageEmbed{
		Title:       "Fair fight estimate",
		Description: fmt.Sprintf("Your total %s against %s", format.Compact(your), format.Compact(enemy)),
		Color:       color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Fair fight", Value: format.Float(ff, 2), Inline: true},
			{Name: "Respect", Value: format.Float(estimate.Respect(level, ff), 2), Inline: true},
		},
	}
	verdict := estimate.Recommendation(your, enemy)
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Recommendation", Value: verdict.Description})
	return ResponseEmbed{MessageEmbed: embed}
}

func FactionComparison(name string, comparison factionstats.Comparison) Response {
	lines := []string{}
	for _, change := range comparison.Changes {
		if change.Previous == change.Current {
			continue
		}
		lines = append(lines, fmt.Sprintf("**%s**: %s → %s (%s)", change.Metric,
			format.Compact(change.Previous), format.Compact(change.Current), format.Percent(change.Percent)))
	}
	description := "Nothing changed"
	if len(lines) > 0 {
		description = strings.Join(lines, "\n")
	}
	embed := discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s over the last %s", name, comparison.Period),
		Description: description,
		Color:       color,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%s to %s",
			format.Date(comparison.Previous.Timestamp), format.Date(comparison.Latest.Timestamp))},
	}
	return ResponseEmbed{MessageEmbed: embed}
}

func InsufficientData(period factionstats.Period) Response {
	return private(fmt.Sprintf("Not enough history yet to compare over a %s", period))
}

func FactionInfo(faction tornapi.Faction, updated time.Time, cached bool) Response {
	embed := discordgo.MessageEmbed{
		Title: fmt.Sprintf("%s [%d]", faction.Name, faction.ID),
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Respect", Value: format.Number(int64(faction.Respect)), Inline: true},
			{Name: "Members", Value: fmt.Sprintf("%d/%d", len(faction.Members), faction.Capacity), Inline: true},
			{Name: "Best chain", Value: format.Number(int64(faction.BestChain)), Inline: true},
			{Name: "Territory", Value: fmt.Sprint(faction.TerritoryCount()), Inline: true},
		},
	}
	if cached {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Torn API unavailable, cached " + format.Date(updated)}
	}
	return ResponseEmbed{MessageEmbed: embed}
}

func ServerConfigMessage(title string, config guildconfig.ServerConfig) Response {
	embed := discordgo.MessageEmbed{Title: title, Color: color}
	add := func(name, value string) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: name, Value: value, Inline: true})
	}
	add("Faction", fmt.Sprint(config.FactionID))
	add("Chain watch", onOff(config.ChainEnabled, channelMention(config.ChainChannel)))
	add("Chain alert", fmt.Sprintf("from %d hits, %d minutes left", config.MinChain, config.WarningMinutes))
	add("Attack watch", onOff(config.AttacksEnabled, channelMention(config.AttackChannel)))
	return ResponseEmbed{MessageEmbed: embed, private: true}
}

func onOff(enabled bool, where string) string {
	if !enabled {
		return "disabled"
	}
	return "enabled in " + where
}

func channelMention(id string) string {
	if id == "" {
		return "no channel"
	}
	return fmt.Sprintf("<#%s>", id)
}

func BankRequestMessage(request bank.Request, requester string) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{bankEmbed(request, requester)},
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Fulfil", Style: discordgo.SuccessButton, CustomID: bank.ButtonFulfil + request.ID},
			discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: bank.ButtonCancel + request.ID},
		}}},
	}
}

func bankEmbed(request bank.Request, requester string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "Bank request",
		Description: fmt.Sprintf("%s [%d] asks for **%s**", requester, request.TornID, format.Money(request.Amount)),
		Color:       color,
		Fields:      []*discordgo.MessageEmbedField{{Name: "Status", Value: string(request.Status), Inline: true}},
		Footer:      &discordgo.MessageEmbedFooter{Text: request.ID},
	}
	if request.FulfilledBy != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Banker", Value: fmt.Sprintf("<@%s>", request.FulfilledBy), Inline: true})
	}
	return embed
}

func BankPending(requests []bank.Request, now time.Time) Response {
	if len(requests) == 0 {
		return private("No pending bank requests")
	}
	lines := make([]string, 0, len(requests))
	for _, request := range requests {
		lines = append(lines, fmt.Sprintf("`%s` <@%s> %s, %s ago", request.ID, request.RequesterID,
			format.Money(request.Amount), format.Duration(now.Sub(request.CreatedAt))))
	}
	embed := discordgo.MessageEmbed{Title: "Pending bank requests", Description: strings.Join(lines, "\n"), Color: color}
	return ResponseEmbed{MessageEmbed: embed, private: true}
}
