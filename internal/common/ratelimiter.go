package common

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// How long every request is held back after the remote side answered 429
const rateLimitCooldown = 30 * time.Second

type RateLimiter struct {
	mu                   sync.Mutex
	limiters             []*rate.Limiter        // One token bucket per restriction
	pendingVitalRequests map[uuid.UUID]struct{} // Set of pending vital requests
	stopwatch            Stopwatch              // Cool-down after a 429
}

func NewRateLimiter(restrictions []Restriction, clock Clock) *RateLimiter {
	rl := &RateLimiter{pendingVitalRequests: make(map[uuid.UUID]struct{})}
	for i := range restrictions {
		rl.limiters = append(rl.limiters, restrictions[i].limiter())
	}
	rl.stopwatch = NewStopwatch(rateLimitCooldown, clock)
	return rl
}

// Decide if request is allowed.
// If the request is not allowed but vital, execution
// will block here until it is allowed or the context is done
func (rl *RateLimiter) Allowed(ctx context.Context, vital bool) bool {

	if !vital {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		if stopped, _ := rl.stopwatch.Stopped(); !stopped {
			log.Warn().Msg("Rejecting a non vital request while cooling down after a rate limit")
			return false
		}
		if len(rl.pendingVitalRequests) > 0 {
			log.Warn().Msg("Rejecting non vital request because the vital queue is not empty")
			return false
		}
		for _, limiter := range rl.limiters {
			if !limiter.Allow() {
				log.Warn().Msg("Rejecting a non vital request because restrictions do not allow it")
				return false
			}
		}
		return true
	}

	// Give this request a unique identifier while it waits
	thisuuid := uuid.New()
	rl.mu.Lock()
	rl.pendingVitalRequests[thisuuid] = struct{}{}
	_, remaining := rl.stopwatch.Stopped()
	rl.mu.Unlock()
	defer func() {
		rl.mu.Lock()
		delete(rl.pendingVitalRequests, thisuuid)
		rl.mu.Unlock()
	}()

	if remaining < 0 {
		log.Warn().Str("request", thisuuid.String()).Dur("wait", -remaining).Msg("Vital request delayed by rate limit cool-down")
		select {
		case <-ctx.Done():
			return false
		case <-time.After(-remaining):
		}
	}
	for _, limiter := range rl.limiters {
		if err := limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Str("request", thisuuid.String()).Msg("Vital request abandoned")
			return false
		}
	}
	return true
}

func (rl *RateLimiter) ReceivedRateLimit() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.stopwatch.Start()
}
