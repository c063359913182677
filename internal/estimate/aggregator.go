// Package estimate blends the official API, saved spies, stat mirrors and
// a few heuristics into a single battle stat estimate.
package estimate

import (
	"context"
	"time"

	"brotherowl/internal/common"
	"brotherowl/internal/mirrors"
	"brotherowl/internal/storage"
	"brotherowl/internal/tornapi"

	"github.com/rs/zerolog/log"
)

// Each award is worth roughly this much total stats. Crude, kept for compatibility
const awardsStatFactor = 50_000

type PlayerStatEstimate struct {
	PlayerID   int
	Name       string
	Level      int
	Strength   float64
	Speed      float64
	Dexterity  float64
	Defense    float64
	Total      float64
	Confidence Confidence
	Sources    []string
	UpdatedAt  time.Time
}

func (e PlayerStatEstimate) HasBreakdown() bool {
	return e.Strength > 0 && e.Speed > 0 && e.Dexterity > 0 && e.Defense > 0
}

type Credentials struct {
	PlayerID     int // the caller's own Torn id, 0 if unknown
	TornKey      string
	TornStatsKey string
}

// Indirect evidence used when no source has a full report
type Signals struct {
	Damage     float64
	Turns      float64
	OwnPrimary float64
	Awards     int
	FactionID  int
}

type TornSource interface {
	BattleStats(ctx context.Context, key string) (tornapi.BattleStats, error)
	Faction(ctx context.Context, key string, factionID int) (tornapi.Faction, error)
}

type SpyStore interface {
	LatestSpy(ctx context.Context, targetID int) (storage.Spy, error)
	AverageSpyTotal(ctx context.Context, playerIDs []int) (float64, int, error)
}

type MirrorSource interface {
	Lookup(ctx context.Context, provider mirrors.Provider, playerID int, key string) (mirrors.Spy, bool)
}

type Aggregator struct {
	torn    TornSource
	spies   SpyStore
	mirrors MirrorSource
	clock   common.Clock
}

func NewAggregator(torn TornSource, spies SpyStore, mirrorSource MirrorSource, clock common.Clock) *Aggregator {
	if clock == nil {
		clock = common.SystemClock{}
	}
	return &Aggregator{torn: torn, spies: spies, mirrors: mirrorSource, clock: clock}
}

// Estimate always returns a result; sources that fail only lower the confidence
func (a *Aggregator) Estimate(ctx context.Context, playerID int, creds Credentials, signals Signals) PlayerStatEstimate {
	now := a.clock.Now()

	if est, ok := a.official(ctx, playerID, creds); ok {
		return est
	}
	if est, ok := a.localSpy(ctx, playerID, now); ok {
		return est
	}
	if est, ok := a.mirror(ctx, playerID, creds, now); ok {
		return est
	}
	if est, ok := a.predict(ctx, playerID, creds, signals); ok {
		return est
	}

	log.Debug().Int("player", playerID).Msg("No stat source available")
	return PlayerStatEstimate{PlayerID: playerID, Confidence: None, Sources: []string{}}
}

// Only a player's own key can read their battle stats
func (a *Aggregator) official(ctx context.Context, playerID int, creds Credentials) (PlayerStatEstimate, bool) {
	if a.torn == nil || creds.TornKey == "" || creds.PlayerID == 0 || creds.PlayerID != playerID {
		return PlayerStatEstimate{}, false
	}
	stats, err := a.torn.BattleStats(ctx, creds.TornKey)
	if err != nil {
		log.Info().Err(err).Int("player", playerID).Msg("Official battle stats unavailable")
		return PlayerStatEstimate{}, false
	}
	return PlayerStatEstimate{
		PlayerID:   playerID,
		Strength:   stats.Strength,
		Speed:      stats.Speed,
		Dexterity:  stats.Dexterity,
		Defense:    stats.Defense,
		Total:      stats.Total,
		Confidence: High,
		Sources:    []string{SourceTorn},
		UpdatedAt:  a.clock.Now(),
	}, true
}

func (a *Aggregator) localSpy(ctx context.Context, playerID int, now time.Time) (PlayerStatEstimate, bool) {
	if a.spies == nil {
		return PlayerStatEstimate{}, false
	}
	spy, err := a.spies.LatestSpy(ctx, playerID)
	if err != nil {
		return PlayerStatEstimate{}, false
	}
	if spy.Strength <= 0 || spy.Speed <= 0 || spy.Dexterity <= 0 || spy.Defense <= 0 {
		return PlayerStatEstimate{}, false
	}
	return PlayerStatEstimate{
		PlayerID:   playerID,
		Strength:   spy.Strength,
		Speed:      spy.Speed,
		Dexterity:  spy.Dexterity,
		Defense:    spy.Defense,
		Total:      spy.Total,
		Confidence: ConfidenceFor(spy.Timestamp, now),
		Sources:    []string{SourceLocal},
		UpdatedAt:  spy.Timestamp,
	}, true
}

func (a *Aggregator) mirror(ctx context.Context, playerID int, creds Credentials, now time.Time) (PlayerStatEstimate, bool) {
	if a.mirrors == nil {
		return PlayerStatEstimate{}, false
	}
	for _, provider := range mirrors.Priority {
		key := creds.TornKey
		if provider.UsesTornStatsKey() {
			key = creds.TornStatsKey
		}
		spy, ok := a.mirrors.Lookup(ctx, provider, playerID, key)
		if !ok || !spy.Complete() {
			continue
		}
		confidence := Low
		if !spy.UpdatedAt.IsZero() {
			confidence = ConfidenceFor(spy.UpdatedAt, now)
		}
		return PlayerStatEstimate{
			PlayerID:   playerID,
			Name:       spy.Name,
			Level:      spy.Level,
			Strength:   spy.Strength,
			Speed:      spy.Speed,
			Dexterity:  spy.Dexterity,
			Defense:    spy.Defense,
			Total:      spy.Total,
			Confidence: confidence,
			Sources:    []string{provider.String()},
			UpdatedAt:  spy.UpdatedAt,
		}, true
	}
	return PlayerStatEstimate{}, false
}

// Prediction from damage first, then awards, then the faction's average spy
func (a *Aggregator) predict(ctx context.Context, playerID int, creds Credentials, signals Signals) (PlayerStatEstimate, bool) {
	est := PlayerStatEstimate{PlayerID: playerID, Confidence: Low, Sources: []string{SourcePrediction}}

	if primary := EstimatePrimary(signals.Damage, signals.Turns, signals.OwnPrimary); primary > 0 {
		est.Total = EstimateTotal(primary, Low)
		return est, true
	}
	if signals.Awards > 0 {
		est.Total = float64(signals.Awards) * awardsStatFactor
		return est, true
	}
	if signals.FactionID != 0 && a.torn != nil && a.spies != nil && creds.TornKey != "" {
		faction, err := a.torn.Faction(ctx, creds.TornKey, signals.FactionID)
		if err != nil {
			log.Info().Err(err).Int("faction", signals.FactionID).Msg("Faction unavailable for prediction")
			return PlayerStatEstimate{}, false
		}
		average, count, err := a.spies.AverageSpyTotal(ctx, faction.MemberIDs())
		if err != nil {
			log.Warn().Err(err).Int("faction", signals.FactionID).Msg("Could not average faction spies")
			return PlayerStatEstimate{}, false
		}
		if count > 0 && average > 0 {
			est.Total = average
			return est, true
		}
	}
	return PlayerStatEstimate{}, false
}
