// Package tornapi talks to the official Torn API.
package tornapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"brotherowl/internal/common"

	"github.com/rs/zerolog/log"
)

const DefaultBaseURL = "https://api.torn.com"

var ErrNoKey = errors.New("no torn api key available")

type TornApi struct {
	baseURL string
	proxy   *common.Proxy
}

func NewTornApi(baseURL string, restrictions []common.Restriction, clock common.Clock) *TornApi {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	header := map[string]string{"User-Agent": "BrotherOwl/1.0"}
	return &TornApi{baseURL: baseURL, proxy: common.NewProxy(header, restrictions, clock)}
}

// Profile of any player. id 0 means the owner of the key
func (api *TornApi) User(ctx context.Context, key string, id int) (Profile, error) {
	data, err := api.request(ctx, key, "user", id, "profile", true)
	if err != nil {
		return Profile{}, err
	}
	return UnmarshalProfile(data)
}

// Battle stats are only visible to the owner of the key
func (api *TornApi) BattleStats(ctx context.Context, key string) (BattleStats, error) {
	data, err := api.request(ctx, key, "user", 0, "battlestats", true)
	if err != nil {
		return BattleStats{}, err
	}
	return UnmarshalBattleStats(data)
}

func (api *TornApi) PersonalStats(ctx context.Context, key string, id int) (PersonalStats, error) {
	data, err := api.request(ctx, key, "user", id, "personalstats", true)
	if err != nil {
		return PersonalStats{}, err
	}
	return UnmarshalPersonalStats(data)
}

func (api *TornApi) Faction(ctx context.Context, key string, factionID int) (Faction, error) {
	data, err := api.request(ctx, key, "faction", factionID, "basic,stats,territory", true)
	if err != nil {
		return Faction{}, err
	}
	return UnmarshalFaction(data)
}

// Chain and attack polling is not vital: under pressure it yields to user commands
func (api *TornApi) Chain(ctx context.Context, key string, factionID int) (Chain, error) {
	data, err := api.request(ctx, key, "faction", factionID, "chain", false)
	if err != nil {
		return Chain{}, err
	}
	return UnmarshalChain(data)
}

func (api *TornApi) Attacks(ctx context.Context, key string, factionID int) ([]Attack, error) {
	data, err := api.request(ctx, key, "faction", factionID, "attacks", false)
	if err != nil {
		return nil, err
	}
	return UnmarshalAttacks(data)
}

func (api *TornApi) request(ctx context.Context, key string, resource string, id int, selections string, vital bool) ([]byte, error) {
	if key == "" {
		return nil, ErrNoKey
	}

	path := "/" + resource + "/"
	if id > 0 {
		path += strconv.Itoa(id)
	}
	query := url.Values{}
	query.Set("selections", selections)
	query.Set("key", key)
	u := api.baseURL + path + "?" + query.Encode()

	log.Debug().Str("resource", resource).Int("id", id).Str("selections", selections).Msg("Requesting torn api")
	data, err := api.proxy.Request(ctx, u, key, vital)
	if err != nil {
		return nil, fmt.Errorf("%s/%d %s: %w", resource, id, selections, err)
	}
	return data, nil
}
