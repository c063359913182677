// Package monitor holds the polling loops that watch chains, attacks and
// faction stats and push alerts to the configured channels.
package monitor

import (
	"context"
	"errors"
	"fmt"

	"brotherowl/internal/guildconfig"
	"brotherowl/internal/storage"
	"brotherowl/internal/tornapi"

	"github.com/bwmarrin/discordgo"
)

// Teal for informative messages, red for alerts
const (
	colorInfo  int = 0x008080
	colorAlert int = 0xE74C3C
)

var ErrNoMonitorKey = errors.New("no api key configured for monitoring")

type Sender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type GuildLister interface {
	List() ([]guildconfig.ServerConfig, error)
}

type ChainSource interface {
	Chain(ctx context.Context, key string, factionID int) (tornapi.Chain, error)
}

type AttackSource interface {
	Attacks(ctx context.Context, key string, factionID int) ([]tornapi.Attack, error)
}

type FactionSource interface {
	Faction(ctx context.Context, key string, factionID int) (tornapi.Faction, error)
}

type KeyResolver interface {
	KeyFor(ctx context.Context, config guildconfig.ServerConfig) (string, error)
}

type KeyStore interface {
	GetAPIKeys(ctx context.Context, userID string) (storage.APIKeys, error)
}

// StoredKeys uses the key of the member who configured the guild, falling
// back to the bot's own key
type StoredKeys struct {
	Store    KeyStore
	Fallback string
}

func (k StoredKeys) KeyFor(ctx context.Context, config guildconfig.ServerConfig) (string, error) {
	if config.KeyOwner != "" && k.Store != nil {
		keys, err := k.Store.GetAPIKeys(ctx, config.KeyOwner)
		if err == nil && keys.Torn != "" {
			return keys.Torn, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return "", fmt.Errorf("failed to read key of %s: %w", config.KeyOwner, err)
		}
	}
	if k.Fallback != "" {
		return k.Fallback, nil
	}
	return "", ErrNoMonitorKey
}
