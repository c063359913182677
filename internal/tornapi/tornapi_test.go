package tornapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"brotherowl/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApi(t *testing.T, handler http.HandlerFunc) *TornApi {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewTornApi(server.URL, []common.Restriction{{Requests: 100, Duration: 1}}, nil)
}

func TestUserProfile(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/123", r.URL.Path)
		assert.Equal(t, "profile", r.URL.Query().Get("selections"))
		assert.Equal(t, "k", r.URL.Query().Get("key"))
		w.Write([]byte(`{"player_id":123,"name":"Owl","level":42,"awards":120,
			"faction":{"faction_id":9,"faction_name":"Nest","position":"Member"},
			"status":{"description":"Okay","state":"Okay","until":0}}`))
	})

	profile, err := api.User(context.Background(), "k", 123)
	require.NoError(t, err)
	assert.Equal(t, "Owl", profile.Name)
	assert.Equal(t, 42, profile.Level)
	assert.Equal(t, 120, profile.Awards)
	assert.Equal(t, 9, profile.Faction.FactionID)
}

func TestErrorEnvelope(t *testing.T) {
	api := newTestApi(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":{"code":2,"error":"Incorrect Key"}}`))
	})

	_, err := api.User(context.Background(), "bad", 1)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 2, apiErr.Code)
	assert.Equal(t, "Incorrect Key", apiErr.Message)
}

func TestMissingKey(t *testing.T) {
	api := NewTornApi("http://unused", nil, nil)
	_, err := api.BattleStats(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestBattleStatsTotalFilledIn(t *testing.T) {
	stats, err := UnmarshalBattleStats([]byte(`{"strength":1.5,"speed":2,"dexterity":3,"defense":4}`))
	require.NoError(t, err)
	assert.Equal(t, 10.5, stats.Total)
}

func TestUnmarshalFactionTerritory(t *testing.T) {
	faction, err := UnmarshalFaction([]byte(`{"ID":9,"name":"Nest","respect":1000,"best_chain":250,
		"members":{"1":{"name":"a","level":1},"2":{"name":"b","level":2}},
		"stats":{"attackswon":50},"territory":[]}`))
	require.NoError(t, err)
	assert.Equal(t, 0, faction.TerritoryCount())
	assert.ElementsMatch(t, []int{1, 2}, faction.MemberIDs())
	assert.Equal(t, float64(50), faction.Stats["attackswon"])
	assert.NotEmpty(t, faction.Raw)

	faction, err = UnmarshalFaction([]byte(`{"ID":9,"territory":{"AAA":{},"BBB":{}}}`))
	require.NoError(t, err)
	assert.Equal(t, 2, faction.TerritoryCount())
}

func TestUnmarshalChain(t *testing.T) {
	chain, err := UnmarshalChain([]byte(`{"chain":{"current":15,"max":25,"timeout":200,"modifier":1.1,"cooldown":0}}`))
	require.NoError(t, err)
	assert.Equal(t, 15, chain.Current)
	assert.Equal(t, 200, chain.Timeout)
	assert.True(t, chain.Active())
}

func TestUnmarshalAttacksSortedAndStealthTolerant(t *testing.T) {
	attacks, err := UnmarshalAttacks([]byte(`{"attacks":{
		"2":{"code":"b","timestamp_ended":200,"attacker_id":"","attacker_name":"","defender_id":5,"defender_faction":9,"result":"Hospitalized"},
		"1":{"code":"a","timestamp_ended":100,"attacker_id":7,"attacker_faction":3,"defender_id":5,"defender_faction":"9","result":"Mugged"}}}`))
	require.NoError(t, err)
	require.Len(t, attacks, 2)
	assert.Equal(t, "a", attacks[0].Code)
	assert.Equal(t, FlexInt(9), attacks[0].DefenderFaction)
	assert.Equal(t, FlexInt(0), attacks[1].AttackerID)
	assert.Equal(t, "2", attacks[1].ID)
}
