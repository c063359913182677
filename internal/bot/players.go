package bot

import (
	"errors"
	"fmt"

	"brotherowl/internal/estimate"
	"brotherowl/internal/storage"

	"github.com/rs/zerolog/log"
)

func (bot *Bot) apikey(req request) Response {
	switch req.command.Subcommand {
	case "set":
		key := req.command.Text("key")
		profile, err := bot.torn.User(req.ctx, key, 0)
		if err != nil {
			log.Info().Err(err).Str("user", req.userID).Msg("Rejected api key")
			return private("That key was not accepted by the Torn API")
		}
		if err := bot.db.SetAPIKey(req.ctx, req.userID, key); err != nil {
			log.Error().Err(err).Msg("Could not save api key")
			return StorageFailure()
		}
		return APIKeySaved(profile)
	case "tornstats":
		if err := bot.db.SetTornStatsKey(req.ctx, req.userID, req.command.Text("key")); err != nil {
			log.Error().Err(err).Msg("Could not save tornstats key")
			return StorageFailure()
		}
		return private("TornStats key saved")
	case "remove":
		err := bot.db.DeleteAPIKeys(req.ctx, req.userID)
		if errors.Is(err, storage.ErrNotFound) {
			return private("You had no keys stored")
		}
		if err != nil {
			log.Error().Err(err).Msg("Could not delete api keys")
			return StorageFailure()
		}
		return private("Your keys have been removed")
	}
	return InputNotValid(fmt.Sprintf("Unknown subcommand `%s`", req.command.Subcommand))
}

func (bot *Bot) stats(req request) Response {
	keys, failure := bot.userKeys(req)
	if failure != nil {
		return failure
	}
	profile, err := bot.torn.User(req.ctx, keys.Torn, 0)
	if err != nil {
		log.Info().Err(err).Msg("Profile unavailable")
		return NoResponseTornApi()
	}
	stats, err := bot.torn.BattleStats(req.ctx, keys.Torn)
	if err != nil {
		log.Info().Err(err).Msg("Battle stats unavailable")
		return NoResponseTornApi()
	}
	personal, err := bot.torn.PersonalStats(req.ctx, keys.Torn, 0)
	if err != nil {
		log.Info().Err(err).Msg("Personal stats unavailable, showing zeros")
	}

	var previous *storage.StatRecord
	history, err := bot.db.GetStatHistory(req.ctx, profile.PlayerID, 1)
	if err != nil {
		log.Warn().Err(err).Int("player", profile.PlayerID).Msg("Could not read stat history")
	} else if len(history) > 0 {
		previous = &history[0]
	}

	now := bot.clock.Now()
	record := storage.StatRecord{
		PlayerID:   profile.PlayerID,
		Timestamp:  now,
		Strength:   stats.Strength,
		Defense:    stats.Defense,
		Speed:      stats.Speed,
		Dexterity:  stats.Dexterity,
		Total:      stats.Total,
		Level:      profile.Level,
		XanaxUsed:  personal.XanaxTaken,
		EnergyUsed: personal.EnergyDrinkUsed,
	}
	if err := bot.db.AddStatHistory(req.ctx, record); err != nil {
		log.Warn().Err(err).Int("player", profile.PlayerID).Msg("Could not save stat history")
	}
	return OwnStats(profile, stats, personal, previous, now)
}

func (bot *Bot) spy(req request) Response {
	playerID, err := ParsePlayerID(req.command.Text("player"))
	if err != nil {
		return InputNotValid(err.Error())
	}
	switch req.command.Subcommand {
	case "add":
		spy := storage.Spy{TargetID: playerID, UserID: req.userID, Timestamp: bot.clock.Now()}
		for name, field := range map[string]*float64{
			"strength": &spy.Strength, "speed": &spy.Speed, "dexterity": &spy.Dexterity, "defense": &spy.Defense,
		} {
			value, err := ParseAmount(req.command.Text(name))
			if err != nil {
				return InputNotValid(err.Error())
			}
			*field = value
		}
		spy.Total = spy.Strength + spy.Speed + spy.Dexterity + spy.Defense
		if err := bot.db.SaveSpy(req.ctx, spy); err != nil {
			log.Error().Err(err).Int("player", playerID).Msg("Could not save spy")
			return StorageFailure()
		}
		return SpySaved(playerID, spy.Total)
	case "view":
		spy, err := bot.db.LatestSpy(req.ctx, playerID)
		if errors.Is(err, storage.ErrNotFound) {
			return NoSpy(playerID)
		}
		if err != nil {
			log.Error().Err(err).Int("player", playerID).Msg("Could not read spy")
			return StorageFailure()
		}
		return SpyView(spy, bot.clock.Now())
	}
	return InputNotValid(fmt.Sprintf("Unknown subcommand `%s`", req.command.Subcommand))
}

func (bot *Bot) enemy(req request) Response {
	playerID, err := ParsePlayerID(req.command.Text("player"))
	if err != nil {
		return InputNotValid(err.Error())
	}
	keys, failure := bot.userKeys(req)
	if failure != nil {
		return failure
	}

	target, err := bot.torn.User(req.ctx, keys.Torn, playerID)
	if err != nil {
		log.Info().Err(err).Int("player", playerID).Msg("Target profile unavailable")
		return NoResponseTornApi()
	}
	creds := estimate.Credentials{TornKey: keys.Torn, TornStatsKey: keys.TornStats}
	if own, err := bot.torn.User(req.ctx, keys.Torn, 0); err == nil {
		creds.PlayerID = own.PlayerID
	}
	ownStats, err := bot.torn.BattleStats(req.ctx, keys.Torn)
	if err != nil {
		log.Info().Err(err).Msg("Own battle stats unavailable")
	}

	signals := estimate.Signals{Awards: target.Awards, FactionID: target.Faction.FactionID}
	signals.Damage, _ = req.command.Float("damage")
	signals.Turns, _ = req.command.Float("turns")
	if req.command.Has("primary") {
		primary, err := ParseAmount(req.command.Text("primary"))
		if err != nil {
			return InputNotValid(err.Error())
		}
		signals.OwnPrimary = primary
	}

	est := bot.aggregator.Estimate(req.ctx, playerID, creds, signals)
	est.Name, est.Level = target.Name, target.Level
	ff := estimate.FairFight(ownStats.Total, est.Total)
	return EnemyMessage(EnemyReport{
		Profile:        target,
		Estimate:       est,
		OwnTotal:       ownStats.Total,
		FairFight:      ff,
		Respect:        estimate.Respect(target.Level, ff),
		Recommendation: estimate.Recommendation(ownStats.Total, est.Total),
	})
}

func (bot *Bot) fairfight(req request) Response {
	your, err := ParseAmount(req.command.Text("your"))
	if err != nil {
		return InputNotValid(err.Error())
	}
	enemy, err := ParseAmount(req.command.Text("enemy"))
	if err != nil {
		return InputNotValid(err.Error())
	}
	level, _ := req.command.Int("level")
	return FairFightMessage(your, enemy, level, estimate.FairFight(your, enemy))
}
