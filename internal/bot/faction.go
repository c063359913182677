package bot

import (
	"errors"
	"fmt"

	"brotherowl/internal/factionstats"
	"brotherowl/internal/guildconfig"
	"brotherowl/internal/storage"
	"brotherowl/internal/tornapi"

	"github.com/rs/zerolog/log"
)

// Faction given as option, else the one configured for the server.
// 0 means the faction of the key owner
func (bot *Bot) targetFaction(req request) int {
	if id, ok := req.command.Int("faction"); ok && id > 0 {
		return id
	}
	server, err := bot.servers.Get(req.guildID)
	if err != nil {
		log.Warn().Err(err).Str("guild", req.guildID).Msg("Could not read server config")
		return 0
	}
	return server.FactionID
}

func (bot *Bot) faction(req request) Response {
	switch req.command.Subcommand {
	case "info":
		return bot.factionInfo(req)
	case "compare":
		return bot.factionCompare(req)
	}
	return InputNotValid(fmt.Sprintf("Unknown subcommand `%s`", req.command.Subcommand))
}

func (bot *Bot) factionInfo(req request) Response {
	keys, failure := bot.userKeys(req)
	if failure != nil {
		return failure
	}
	factionID := bot.targetFaction(req)

	faction, err := bot.torn.Faction(req.ctx, keys.Torn, factionID)
	if err == nil {
		now := bot.clock.Now()
		if err := bot.db.SaveFactionInfo(req.ctx, faction.ID, faction.Raw, now); err != nil {
			log.Warn().Err(err).Int("faction", faction.ID).Msg("Could not cache faction info")
		}
		return FactionInfo(faction, now, false)
	}
	log.Info().Err(err).Int("faction", factionID).Msg("Faction unavailable, trying the cache")

	if factionID == 0 {
		return NoResponseTornApi()
	}
	raw, updated, cacheErr := bot.db.GetFactionInfo(req.ctx, factionID)
	if cacheErr != nil {
		if !errors.Is(cacheErr, storage.ErrNotFound) {
			log.Error().Err(cacheErr).Int("faction", factionID).Msg("Could not read cached faction info")
		}
		return NoResponseTornApi()
	}
	cached, err := tornapi.UnmarshalFaction(raw)
	if err != nil {
		log.Error().Err(err).Int("faction", factionID).Msg("Cached faction info is corrupted")
		return NoResponseTornApi()
	}
	return FactionInfo(cached, updated, true)
}

func (bot *Bot) factionCompare(req request) Response {
	period, _, err := factionstats.ParsePeriod(req.command.Text("period"))
	if err != nil {
		return InputNotValid(err.Error())
	}
	factionID := bot.targetFaction(req)
	if factionID == 0 {
		return InputNotValid("No faction given and none configured for this server")
	}

	comparison, err := bot.tracker.Compare(factionID, period)
	if errors.Is(err, factionstats.ErrInsufficientData) {
		return InsufficientData(period)
	}
	if err != nil {
		log.Error().Err(err).Int("faction", factionID).Msg("Could not compare faction stats")
		return StorageFailure()
	}
	return FactionComparison(fmt.Sprintf("Faction %d", factionID), comparison)
}

func (bot *Bot) chainwatch(req request) Response {
	var change func(*guildconfig.ServerConfig)
	switch req.command.Subcommand {
	case "config":
		factionID, _ := req.command.Int("faction")
		minChain, hasMin := req.command.Int("min_chain")
		warning, hasWarning := req.command.Int("warning_minutes")
		if factionID <= 0 || (hasMin && minChain < 1) || (hasWarning && (warning < 1 || warning > 5)) {
			return InputNotValid("Faction must be an id, min_chain at least 1 and warning_minutes between 1 and 5")
		}
		change = func(c *guildconfig.ServerConfig) {
			c.FactionID = factionID
			c.ChainChannel = req.command.ID("channel")
			c.KeyOwner = req.userID
			c.ChainEnabled = true
			if hasMin {
				c.MinChain = minChain
			}
			if hasWarning {
				c.WarningMinutes = warning
			}
		}
	case "enable":
		server, err := bot.servers.Get(req.guildID)
		if err != nil {
			return StorageFailure()
		}
		if server.FactionID == 0 || server.ChainChannel == "" {
			return InputNotValid("Configure chain alerts first with `/chainwatch config`")
		}
		change = func(c *guildconfig.ServerConfig) { c.ChainEnabled = true; c.KeyOwner = req.userID }
	case "disable":
		change = func(c *guildconfig.ServerConfig) { c.ChainEnabled = false }
	default:
		return InputNotValid(fmt.Sprintf("Unknown subcommand `%s`", req.command.Subcommand))
	}
	return bot.updateServer(req, "Chain watch", change)
}

func (bot *Bot) attackwatch(req request) Response {
	var change func(*guildconfig.ServerConfig)
	switch req.command.Subcommand {
	case "enable":
		factionID := bot.targetFaction(req)
		if factionID == 0 {
			return InputNotValid("No faction given and none configured for this server")
		}
		change = func(c *guildconfig.ServerConfig) {
			c.FactionID = factionID
			c.AttackChannel = req.command.ID("channel")
			c.AttacksEnabled = true
			c.KeyOwner = req.userID
		}
	case "disable":
		change = func(c *guildconfig.ServerConfig) { c.AttacksEnabled = false }
	default:
		return InputNotValid(fmt.Sprintf("Unknown subcommand `%s`", req.command.Subcommand))
	}
	return bot.updateServer(req, "Attack watch", change)
}

func (bot *Bot) updateServer(req request, title string, change func(*guildconfig.ServerConfig)) Response {
	server, err := bot.servers.Update(req.guildID, change)
	if err != nil {
		log.Error().Err(err).Str("guild", req.guildID).Msg("Could not update server config")
		return StorageFailure()
	}
	log.Info().Str("guild", req.guildID).Str("command", req.command.String()).Msg("Server config updated")
	return ServerConfigMessage(title, server)
}

func (bot *Bot) factionwatch(req request) Response {
	switch req.command.Subcommand {
	case "enable":
		factionID := bot.targetFaction(req)
		if factionID == 0 {
			return InputNotValid("No faction given and none configured for this server")
		}
		channelID := req.command.ID("channel")
		if err := bot.notify.Enable(req.guildID, factionID, channelID); err != nil {
			log.Error().Err(err).Str("guild", req.guildID).Msg("Could not enable faction notifications")
			return StorageFailure()
		}
		// the stats monitor polls with the key of whoever configured the server
		if _, err := bot.servers.Update(req.guildID, func(c *guildconfig.ServerConfig) {
			if c.FactionID == 0 {
				c.FactionID = factionID
			}
			if c.KeyOwner == "" {
				c.KeyOwner = req.userID
			}
		}); err != nil {
			log.Warn().Err(err).Str("guild", req.guildID).Msg("Could not record key owner")
		}
		return private(fmt.Sprintf("Faction %d changes will be posted in %s", factionID, channelMention(channelID)))
	case "disable":
		if err := bot.notify.Disable(req.guildID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return private("Faction notifications were not enabled")
			}
			return StorageFailure()
		}
		return private("Faction notifications disabled")
	case "threshold":
		metric := req.command.Text("metric")
		percent, _ := req.command.Float("percent")
		if percent <= 0 {
			return InputNotValid("The threshold must be a positive percentage")
		}
		err := bot.notify.SetThreshold(req.guildID, metric, percent)
		if errors.Is(err, storage.ErrNotFound) {
			return InputNotValid("Enable faction notifications first with `/factionwatch enable`")
		}
		if err != nil {
			return InputNotValid(err.Error())
		}
		return private(fmt.Sprintf("Changes in %s are now reported from %.2f%%", metric, percent))
	}
	return InputNotValid(fmt.Sprintf("Unknown subcommand `%s`", req.command.Subcommand))
}
