package common

import (
	"time"
)

// This stopwatch keeps track of time. You can set a timeout for it,
// make it start counting time, and ask it if the timeout has been reached
type Stopwatch struct {
	Timeout   time.Duration
	startTime time.Time
	Running   bool
	clock     Clock
}

func NewStopwatch(timeout time.Duration, clock Clock) Stopwatch {
	if clock == nil {
		clock = SystemClock{}
	}
	return Stopwatch{Timeout: timeout, clock: clock}
}

func (s *Stopwatch) Start() {
	s.Running = true
	s.startTime = s.now()
}

func (s *Stopwatch) Stop() {
	s.Running = false
}

// Return the time elapsed since this stopwatch
// stopped (reached its timeout).
// Note that if the number is negative, the timeout still
// has not been reached
func (s *Stopwatch) TimeStopped() time.Duration {
	return s.now().Sub(s.startTime.Add(s.Timeout))
}

// A stopwatch that was never started counts as stopped
func (s *Stopwatch) Stopped() (bool, time.Duration) {
	if !s.Running {
		return true, 0
	}
	elapsed := s.TimeStopped()
	return elapsed >= 0, elapsed
}

func (s *Stopwatch) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}
