package factionstats

import (
	"time"

	"brotherowl/internal/tornapi"
)

type Snapshot struct {
	Timestamp time.Time          `json:"timestamp"`
	Counters  map[string]float64 `json:"counters"`
}

// Counters taken from the top level of the faction payload. Everything under
// "stats" is copied as well, under its own name
func Normalize(f tornapi.Faction, now time.Time) Snapshot {
	counters := map[string]float64{
		"respect":    f.Respect,
		"members":    float64(len(f.Members)),
		"territory":  float64(f.TerritoryCount()),
		"best_chain": float64(f.BestChain),
		"capacity":   float64(f.Capacity),
	}
	for name, value := range f.Stats {
		if _, ok := counters[name]; !ok {
			counters[name] = value
		}
	}
	return Snapshot{Timestamp: now, Counters: counters}
}

// Percent thresholds above which a change is worth a notification.
// Metrics not listed here are recorded but never notified
var DefaultThresholds = map[string]float64{
	"respect":          5,
	"members":          10,
	"territory":        10,
	"best_chain":       10,
	"attackswon":       10,
	"attackslost":      10,
	"attacksdamage":    10,
	"moneymugged":      20,
	"organisedcrimes":  20,
	"hosps":            15,
	"jails":            15,
	"drugsused":        25,
	"revives":          20,
	"medicalitemsused": 25,
}

type Change struct {
	Metric    string  `json:"metric"`
	Previous  float64 `json:"previous"`
	Current   float64 `json:"current"`
	Percent   float64 `json:"percent"`
	Threshold float64 `json:"threshold"`
}

func PercentChange(current float64, previous float64) float64 {
	if previous == 0 {
		if current != 0 {
			return 100
		}
		return 0
	}
	return ((current - previous) / previous) * 100
}

// Changes between two snapshots whose size reaches the metric threshold
func Diff(previous Snapshot, current Snapshot, thresholds map[string]float64) []Change {
	changes := []Change{}
	for metric, value := range current.Counters {
		threshold, tracked := thresholds[metric]
		if !tracked {
			continue
		}
		before, ok := previous.Counters[metric]
		if !ok || before == value {
			continue
		}
		percent := PercentChange(value, before)
		if abs(percent) >= threshold {
			changes = append(changes, Change{Metric: metric, Previous: before, Current: value, Percent: percent, Threshold: threshold})
		}
	}
	sortChanges(changes)
	return changes
}

// All differences, notified or not
func Compare(previous Snapshot, current Snapshot) []Change {
	changes := []Change{}
	for metric, value := range current.Counters {
		before, ok := previous.Counters[metric]
		if !ok {
			continue
		}
		changes = append(changes, Change{Metric: metric, Previous: before, Current: value, Percent: PercentChange(value, before)})
	}
	sortChanges(changes)
	return changes
}
