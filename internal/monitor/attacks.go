package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"brotherowl/internal/common"
	"brotherowl/internal/format"
	"brotherowl/internal/guildconfig"
	"brotherowl/internal/tornapi"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const maxSeenAttacks = 1000

type AttackMonitor struct {
	guilds GuildLister
	torn   AttackSource
	keys   KeyResolver
	sender Sender
	clock  common.Clock

	mu       sync.Mutex
	started  time.Time
	lastPoll map[string]time.Time
	seen     map[string]struct{}
	order    []string // seen codes, oldest first
}

func NewAttackMonitor(guilds GuildLister, torn AttackSource, keys KeyResolver, sender Sender, clock common.Clock) *AttackMonitor {
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &AttackMonitor{
		guilds:   guilds,
		torn:     torn,
		keys:     keys,
		sender:   sender,
		clock:    clock,
		started:  clock.Now(),
		lastPoll: map[string]time.Time{},
		seen:     map[string]struct{}{},
	}
}

func (m *AttackMonitor) Check(ctx context.Context) {
	configs, err := m.guilds.List()
	if err != nil {
		log.Error().Err(err).Msg("Could not list guilds for attack monitoring")
		return
	}
	for _, config := range configs {
		if !config.AttacksEnabled || config.FactionID == 0 || config.AttackChannel == "" {
			continue
		}
		if err := m.checkGuild(ctx, config); err != nil {
			log.Warn().Err(err).Str("guild", config.GuildID).Int("faction", config.FactionID).Msg("Attack check failed")
		}
	}
}

func (m *AttackMonitor) checkGuild(ctx context.Context, config guildconfig.ServerConfig) error {
	key, err := m.keys.KeyFor(ctx, config)
	if err != nil {
		return err
	}
	attacks, err := m.torn.Attacks(ctx, key, config.FactionID)
	if err != nil {
		return err
	}

	// every attack gets one delivery attempt, a failed send does not hold back the rest
	fresh := m.filter(config.GuildID, config.FactionID, attacks)
	reported := 0
	for _, attack := range fresh {
		if _, err := m.sender.ChannelMessageSendEmbed(config.AttackChannel, attackNotice(attack)); err != nil {
			log.Error().Err(err).Str("guild", config.GuildID).Str("attack", attack.Code).Msg("Could not report attack")
			continue
		}
		reported++
	}
	if len(fresh) > 0 {
		log.Info().Str("guild", config.GuildID).Int("attacks", reported).Int("failed", len(fresh)-reported).Msg("Reported incoming attacks")
	}
	return nil
}

// filter keeps the attacks against the faction that happened after the last
// poll and were never reported, and marks them as seen
func (m *AttackMonitor) filter(guildID string, factionID int, attacks []tornapi.Attack) []tornapi.Attack {
	m.mu.Lock()
	defer m.mu.Unlock()

	since, ok := m.lastPoll[guildID]
	if !ok {
		since = m.started
	}
	m.lastPoll[guildID] = m.clock.Now()

	fresh := []tornapi.Attack{}
	for _, attack := range attacks {
		if int(attack.DefenderFaction) != factionID || !attack.Ended().After(since) {
			continue
		}
		code := attack.Code
		if code == "" {
			code = attack.ID
		}
		if _, seen := m.seen[code]; seen {
			continue
		}
		m.markSeen(code)
		fresh = append(fresh, attack)
	}
	return fresh
}

// Drops the oldest half once the set grows past the cap
func (m *AttackMonitor) markSeen(code string) {
	m.seen[code] = struct{}{}
	m.order = append(m.order, code)
	if len(m.order) <= maxSeenAttacks {
		return
	}
	half := len(m.order) / 2
	for _, old := range m.order[:half] {
		delete(m.seen, old)
	}
	m.order = append([]string(nil), m.order[half:]...)
}

func attackNotice(attack tornapi.Attack) *discordgo.MessageEmbed {
	attacker := attack.AttackerName
	if attacker == "" {
		attacker = "Someone"
	}
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s was attacked", attack.DefenderName),
		Description: fmt.Sprintf("**%s** attacked **%s**: %s", attacker, attack.DefenderName, attack.Result),
		Color:       colorAlert,
		Timestamp:   attack.Ended().Format(time.RFC3339),
	}
	if attack.AttackerFactionTag != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Attacker faction", Value: attack.AttackerFactionTag, Inline: true})
	}
	if attack.Respect > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Respect", Value: format.Float(attack.Respect, 2), Inline: true})
	}
	return embed
}
