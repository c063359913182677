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

const ChainCooldown = 5 * time.Minute

type ChainMonitor struct {
	guilds GuildLister
	torn   ChainSource
	keys   KeyResolver
	sender Sender
	clock  common.Clock

	mu           sync.Mutex
	cooldowns    map[string]time.Time
	housekeeping common.TimedExecutor
}

func NewChainMonitor(guilds GuildLister, torn ChainSource, keys KeyResolver, sender Sender, clock common.Clock) *ChainMonitor {
	if clock == nil {
		clock = common.SystemClock{}
	}
	m := &ChainMonitor{guilds: guilds, torn: torn, keys: keys, sender: sender, clock: clock, cooldowns: map[string]time.Time{}}
	m.housekeeping = common.NewTimedExecutor(ChainCooldown, clock, m.sweep)
	return m
}

// ShouldAlert tells if a chain is long enough and close enough to breaking
func ShouldAlert(chain tornapi.Chain, minChain int, warningMinutes int) bool {
	if !chain.Active() || chain.Current < minChain {
		return false
	}
	return chain.Timeout/60 <= warningMinutes
}

func (m *ChainMonitor) Check(ctx context.Context) {
	m.housekeeping.Execute()
	configs, err := m.guilds.List()
	if err != nil {
		log.Error().Err(err).Msg("Could not list guilds for chain monitoring")
		return
	}
	for _, config := range configs {
		if !config.ChainEnabled || config.FactionID == 0 || config.ChainChannel == "" {
			continue
		}
		if err := m.checkGuild(ctx, config); err != nil {
			log.Warn().Err(err).Str("guild", config.GuildID).Int("faction", config.FactionID).Msg("Chain check failed")
		}
	}
}

func (m *ChainMonitor) checkGuild(ctx context.Context, config guildconfig.ServerConfig) error {
	key, err := m.keys.KeyFor(ctx, config)
	if err != nil {
		return err
	}
	chain, err := m.torn.Chain(ctx, key, config.FactionID)
	if err != nil {
		return err
	}
	if !ShouldAlert(chain, config.MinChain, config.WarningMinutes) {
		return nil
	}
	if !m.claim(fmt.Sprintf("%s:%d", config.GuildID, chain.Current)) {
		log.Debug().Str("guild", config.GuildID).Int("chain", chain.Current).Msg("Chain alert in cooldown")
		return nil
	}

	log.Info().Str("guild", config.GuildID).Int("chain", chain.Current).Int("timeout", chain.Timeout).Msg("Sending chain alert")
	_, err = m.sender.ChannelMessageSendEmbed(config.ChainChannel, chainAlert(chain))
	return err
}

// claim reports whether an alert may go out for this key and starts its cooldown
func (m *ChainMonitor) claim(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	if last, ok := m.cooldowns[key]; ok && now.Sub(last) < ChainCooldown {
		return false
	}
	m.cooldowns[key] = now
	return true
}

// sweep forgets the cooldowns that already ran out
func (m *ChainMonitor) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	for key, last := range m.cooldowns {
		if now.Sub(last) >= ChainCooldown {
			delete(m.cooldowns, key)
		}
	}
	log.Debug().Int("cooldowns", len(m.cooldowns)).Msg("Chain cooldowns swept")
}

func chainAlert(chain tornapi.Chain) *discordgo.MessageEmbed {
	remaining := time.Duration(chain.Timeout) * time.Second
	return &discordgo.MessageEmbed{
		Title:       "Chain about to break!",
		Description: fmt.Sprintf("The chain is at **%s** hits and breaks in **%s**", format.Number(int64(chain.Current)), format.Duration(remaining)),
		Color:       colorAlert,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Next bonus", Value: format.Number(int64(nextBonus(chain.Current))), Inline: true},
			{Name: "Modifier", Value: format.Float(chain.Modifier, 2), Inline: true},
		},
	}
}

// Chain bonuses are at 10, 25, 50, 100 and doubling from there
func nextBonus(current int) int {
	for _, bonus := range []int{10, 25, 50} {
		if current < bonus {
			return bonus
		}
	}
	bonus := 100
	for bonus <= current {
		bonus *= 2
	}
	return bonus
}
