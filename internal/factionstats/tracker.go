// Package factionstats keeps a rolling history of faction counters and
// decides which changes deserve a notification.
package factionstats

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"sync"
	"time"

	"brotherowl/internal/storage"
	"brotherowl/internal/tornapi"

	"github.com/rs/zerolog/log"
)

const (
	MaxEntries = 2160
	MaxAge     = 90 * 24 * time.Hour
)

var ErrInsufficientData = errors.New("not enough history for this period")

type Period string

const (
	Day   Period = "day"
	Week  Period = "week"
	Month Period = "month"
)

var periods = map[Period]time.Duration{
	Day:   24 * time.Hour,
	Week:  7 * 24 * time.Hour,
	Month: 30 * 24 * time.Hour,
}

func ParsePeriod(s string) (Period, time.Duration, error) {
	p := Period(s)
	d, ok := periods[p]
	if !ok {
		return "", 0, fmt.Errorf("unknown period %q", s)
	}
	return p, d, nil
}

// Ordered oldest first
type History []Snapshot

type Comparison struct {
	Period   Period
	Latest   Snapshot
	Previous Snapshot
	Changes  []Change
}

type Tracker struct {
	mu         sync.Mutex
	repo       storage.Repository[History]
	thresholds map[string]float64
}

func NewTracker(repo storage.Repository[History]) *Tracker {
	return &Tracker{repo: repo, thresholds: DefaultThresholds}
}

// Update records a new snapshot and returns the significant changes
// against the snapshot before it. The first snapshot of a faction yields nothing
func (t *Tracker) Update(factionID int, faction tornapi.Faction, now time.Time) ([]Change, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := strconv.Itoa(factionID)
	history, err := t.history(key)
	if err != nil {
		return nil, err
	}

	snapshot := Normalize(faction, now)
	var changes []Change
	if len(history) > 0 {
		changes = Diff(history[len(history)-1], snapshot, t.thresholds)
	}

	history = prune(append(history, snapshot), now)
	if err := t.repo.Set(key, history); err != nil {
		return nil, fmt.Errorf("failed to save history of faction %d: %w", factionID, err)
	}
	log.Debug().Int("faction", factionID).Int("snapshots", len(history)).Int("changes", len(changes)).Msg("Faction snapshot recorded")
	return changes, nil
}

// Compare the latest snapshot with the one nearest to one period earlier
func (t *Tracker) Compare(factionID int, period Period) (Comparison, error) {
	window, ok := periods[period]
	if !ok {
		return Comparison{}, fmt.Errorf("unknown period %q", period)
	}

	t.mu.Lock()
	history, err := t.history(strconv.Itoa(factionID))
	t.mu.Unlock()
	if err != nil {
		return Comparison{}, err
	}
	if len(history) < 2 {
		return Comparison{}, ErrInsufficientData
	}

	latest := history[len(history)-1]
	previous, ok := nearest(history[:len(history)-1], latest.Timestamp.Add(-window), window/2)
	if !ok {
		return Comparison{}, ErrInsufficientData
	}
	return Comparison{Period: period, Latest: latest, Previous: previous, Changes: Compare(previous, latest)}, nil
}

func (t *Tracker) Latest(factionID int) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	history, err := t.history(strconv.Itoa(factionID))
	if err != nil || len(history) == 0 {
		return Snapshot{}, false
	}
	return history[len(history)-1], true
}

func (t *Tracker) history(key string) (History, error) {
	history, err := t.repo.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return History{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history %s: %w", key, err)
	}
	return history, nil
}

// Snapshot closest to target, accepted only within tolerance
func nearest(history History, target time.Time, tolerance time.Duration) (Snapshot, bool) {
	best := -1
	var bestDiff time.Duration
	for i, snapshot := range history {
		diff := absDuration(snapshot.Timestamp.Sub(target))
		if best == -1 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best == -1 || bestDiff > tolerance {
		return Snapshot{}, false
	}
	return history[best], true
}

func prune(history History, now time.Time) History {
	cutoff := now.Add(-MaxAge)
	start := 0
	for start < len(history) && history[start].Timestamp.Before(cutoff) {
		start++
	}
	if len(history)-start > MaxEntries {
		start = len(history) - MaxEntries
	}
	return slices.Clone(history[start:])
}

func sortChanges(changes []Change) {
	slices.SortFunc(changes, func(a, b Change) int {
		return cmp.Compare(a.Metric, b.Metric)
	})
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
