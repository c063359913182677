// Package mirrors queries the community stat services that republish spy reports.
package mirrors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"brotherowl/internal/cache"
	"brotherowl/internal/common"

	"github.com/rs/zerolog/log"
)

// Mirror answers are reused for an hour
const cacheTTL = time.Hour

type Client struct {
	endpoints map[Provider]string
	proxy     *common.Proxy
	cache     cache.Cache
}

func NewClient(c cache.Cache, clock common.Clock) *Client {
	header := map[string]string{
		"User-Agent": "BrotherOwl/1.0",
		"Accept":     "application/json",
	}
	endpoints := make(map[Provider]string, len(defaultEndpoints))
	for provider, endpoint := range defaultEndpoints {
		endpoints[provider] = endpoint
	}
	restrictions := []common.Restriction{{Requests: 60, Duration: time.Minute}}
	return &Client{endpoints: endpoints, proxy: common.NewProxy(header, restrictions, clock), cache: c}
}

// Point a provider somewhere else; the template takes the player id then the key
func (c *Client) SetEndpoint(provider Provider, template string) {
	c.endpoints[provider] = template
}

// Lookup asks one mirror for a player. Any failure means the mirror is unavailable
func (c *Client) Lookup(ctx context.Context, provider Provider, playerID int, key string) (Spy, bool) {
	if key == "" {
		return Spy{}, false
	}
	template, ok := c.endpoints[provider]
	if !ok {
		return Spy{}, false
	}

	cacheKey := fmt.Sprintf("mirror:%s:%d", provider, playerID)
	if c.cache != nil {
		if data, err := c.cache.Get(ctx, cacheKey); err == nil {
			var spy Spy
			if json.Unmarshal(data, &spy) == nil {
				log.Debug().Str("provider", provider.String()).Int("player", playerID).Msg("Using cached mirror data")
				return spy, true
			}
		} else if !errors.Is(err, cache.ErrNotFound) {
			log.Warn().Err(err).Msg("Mirror cache unavailable")
		}
	}

	data, err := c.proxy.Request(ctx, fmt.Sprintf(template, playerID, key), key, true)
	if err != nil {
		log.Info().Err(err).Str("provider", provider.String()).Int("player", playerID).Msg("Mirror unavailable")
		return Spy{}, false
	}
	spy, err := Parse(provider, data)
	if err != nil {
		log.Info().Err(err).Str("provider", provider.String()).Int("player", playerID).Msg("Mirror answer not usable")
		return Spy{}, false
	}

	if c.cache != nil {
		if encoded, err := json.Marshal(spy); err == nil {
			if err := c.cache.Set(ctx, cacheKey, encoded, cacheTTL); err != nil {
				log.Warn().Err(err).Msg("Could not cache mirror answer")
			}
		}
	}
	return spy, true
}
