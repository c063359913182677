package common

import (
	"time"

	"golang.org/x/time/rate"
)

// A restriction means that only the specified number of requests
// are allowed for a specific time duration
type Restriction struct {
	Requests int
	Duration time.Duration
}

// Torn allows 100 requests per minute for each key
var TornRestrictions = []Restriction{{Requests: 100, Duration: time.Minute}}

// Token bucket that refills the whole restriction over its duration
func (rest *Restriction) limiter() *rate.Limiter {
	if rest.Requests <= 0 || rest.Duration <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(rest.Duration/time.Duration(rest.Requests)), rest.Requests)
}
