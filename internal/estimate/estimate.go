package estimate

import (
	"math"
	"time"
)

type Confidence string

const (
	High   Confidence = "high"
	Medium Confidence = "medium"
	Low    Confidence = "low"
	None   Confidence = "none"
)

const (
	SourceTorn       = "torn"
	SourceLocal      = "spy"
	SourcePrediction = "prediction"
)

const day = 24 * time.Hour

// Confidence of a spy report given its age
func ConfidenceFor(spyTime time.Time, now time.Time) Confidence {
	if spyTime.IsZero() {
		return None
	}
	age := now.Sub(spyTime)
	switch {
	case age < 7*day:
		return High
	case age < 30*day:
		return Medium
	default:
		return Low
	}
}

// Fair fight multiplier as a step function of enemy/your
func FairFight(yourTotal float64, enemyTotal float64) float64 {
	if yourTotal <= 0 || enemyTotal <= 0 {
		return 0
	}
	ratio := enemyTotal / yourTotal
	switch {
	case ratio <= 0.25:
		return 1.0
	case ratio <= 0.5:
		return 1.5
	case ratio <= 0.75:
		return 2.0
	case ratio <= 1.0:
		return 3.0
	case ratio <= 1.25:
		return 3.5
	case ratio <= 1.5:
		return 4.0
	default:
		return 5.0
	}
}

// Respect for a hit. A level that yields zero base respect counts as 1
func Respect(level int, fairFight float64) float64 {
	base := float64(level) * 0.25
	if base == 0 {
		base = 1
	}
	return base * fairFight
}

// Primary stat guess from the damage an enemy took, rounded to the nearest thousand
func EstimatePrimary(damage float64, turns float64, ownPrimary float64) float64 {
	if damage <= 0 || turns <= 0 || ownPrimary <= 0 {
		return 0
	}
	dpt := damage / turns
	estimated := math.Pow(dpt/240, 0.65) * ownPrimary
	return math.Round(estimated/1000) * 1000
}

var totalMultipliers = map[Confidence]float64{
	High:   3.5,
	Medium: 3.8,
	Low:    4.2,
}

func EstimateTotal(primary float64, confidence Confidence) float64 {
	multiplier, ok := totalMultipliers[confidence]
	if !ok {
		multiplier = totalMultipliers[Low]
	}
	return primary * multiplier
}

type Verdict struct {
	Label       string
	Description string
}

var Unknown = Verdict{"unknown", "Insufficient data for recommendation"}

// Advice from the ratio your/enemy
func Recommendation(yourTotal float64, enemyTotal float64) Verdict {
	if yourTotal <= 0 || enemyTotal <= 0 {
		return Unknown
	}
	ratio := yourTotal / enemyTotal
	switch {
	case ratio > 1.5:
		return Verdict{"highly favorable", "You significantly outmatch this opponent"}
	case ratio > 1.1:
		return Verdict{"favorable", "You have an advantage"}
	case ratio > 0.9:
		return Verdict{"even", "Battle could go either way"}
	case ratio > 0.7:
		return Verdict{"unfavorable", "Opponent has an advantage"}
	default:
		return Verdict{"highly unfavorable", "Opponent significantly outmatches you"}
	}
}
