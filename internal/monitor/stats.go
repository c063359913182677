package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"brotherowl/internal/common"
	"brotherowl/internal/factionstats"
	"brotherowl/internal/format"
	"brotherowl/internal/guildconfig"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

type NotifyLister interface {
	ByFaction() (map[int][]factionstats.NotifyConfig, error)
}

type FactionCache interface {
	SaveFactionInfo(ctx context.Context, factionID int, data json.RawMessage, updated time.Time) error
}

type StatsMonitor struct {
	notify  NotifyLister
	tracker *factionstats.Tracker
	torn    FactionSource
	keys    KeyResolver
	servers *guildconfig.Servers
	infos   FactionCache
	sender  Sender
	clock   common.Clock
}

func NewStatsMonitor(notify NotifyLister, tracker *factionstats.Tracker, torn FactionSource, keys KeyResolver,
	servers *guildconfig.Servers, infos FactionCache, sender Sender, clock common.Clock) *StatsMonitor {
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &StatsMonitor{notify: notify, tracker: tracker, torn: torn, keys: keys, servers: servers, infos: infos, sender: sender, clock: clock}
}

func (m *StatsMonitor) Check(ctx context.Context) {
	byFaction, err := m.notify.ByFaction()
	if err != nil {
		log.Error().Err(err).Msg("Could not list faction notifications")
		return
	}
	for factionID, configs := range byFaction {
		if err := m.checkFaction(ctx, factionID, configs); err != nil {
			log.Warn().Err(err).Int("faction", factionID).Msg("Faction stats check failed")
		}
	}
}

func (m *StatsMonitor) checkFaction(ctx context.Context, factionID int, configs []factionstats.NotifyConfig) error {
	key, err := m.keyFor(ctx, configs)
	if err != nil {
		return err
	}
	faction, err := m.torn.Faction(ctx, key, factionID)
	if err != nil {
		return err
	}
	now := m.clock.Now()
	if m.infos != nil && len(faction.Raw) > 0 {
		if err := m.infos.SaveFactionInfo(ctx, factionID, faction.Raw, now); err != nil {
			log.Warn().Err(err).Int("faction", factionID).Msg("Could not cache faction info")
		}
	}

	changes, err := m.tracker.Update(factionID, faction, now)
	if err != nil {
		return err
	}
	if len(changes) == 0 {
		return nil
	}

	for _, config := range configs {
		filtered := config.Filter(changes)
		if len(filtered) == 0 || config.ChannelID == "" {
			continue
		}
		log.Info().Str("guild", config.GuildID).Int("faction", factionID).Int("changes", len(filtered)).Msg("Sending faction stats notification")
		if _, err := m.sender.ChannelMessageSendEmbed(config.ChannelID, ChangesEmbed(faction.Name, filtered)); err != nil {
			log.Warn().Err(err).Str("guild", config.GuildID).Msg("Could not send faction stats notification")
		}
	}
	return nil
}

// The first guild whose monitoring key resolves is used for the whole faction
func (m *StatsMonitor) keyFor(ctx context.Context, configs []factionstats.NotifyConfig) (string, error) {
	var lastErr error = ErrNoMonitorKey
	for _, config := range configs {
		server := guildconfig.ServerConfig{GuildID: config.GuildID, FactionID: config.FactionID}
		if m.servers != nil {
			if stored, err := m.servers.Get(config.GuildID); err == nil {
				server = stored
			}
		}
		key, err := m.keys.KeyFor(ctx, server)
		if err == nil {
			return key, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func ChangesEmbed(factionName string, changes []factionstats.Change) *discordgo.MessageEmbed {
	lines := make([]string, 0, len(changes))
	for _, change := range changes {
		lines = append(lines, fmt.Sprintf("**%s**: %s → %s (%s)", metricName(change.Metric),
			format.Compact(change.Previous), format.Compact(change.Current), format.Percent(change.Percent)))
	}
	return &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s stats changed", factionName),
		Description: strings.Join(lines, "\n"),
		Color:       colorInfo,
	}
}

func metricName(metric string) string {
	name := strings.ReplaceAll(metric, "_", " ")
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
