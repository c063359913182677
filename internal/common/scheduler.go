package common

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Runs a task every interval until the context is cancelled.
// The task also runs once right away
type Scheduler struct {
	Name     string
	Interval time.Duration
	Task     func(ctx context.Context)
}

func (s Scheduler) Run(ctx context.Context) {
	log.Info().Str("loop", s.Name).Dur("interval", s.Interval).Msg("Starting loop")

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Task(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("loop", s.Name).Msg("Loop stopped")
			return
		case <-ticker.C:
			s.Task(ctx)
		}
	}
}
