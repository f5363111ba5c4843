package workflow

import (
	"errors"
	"math"
	"time"

	"github.com/pavelanni/sheetcheck/internal/model"
)

// RetryPolicy controls how the result poller waits between attempts.
//
// The first poll happens InitialDelay after grading starts. Each following
// poll waits Interval, multiplied by Multiplier per attempt and capped at
// MaxInterval. At least one of MaxAttempts and Timeout must be set.
type RetryPolicy struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxInterval  time.Duration
	Multiplier   float64
	MaxAttempts  int
	Timeout      time.Duration
}

// DefaultRetryPolicy polls every two seconds after an initial three second
// delay, for at most ten minutes.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InitialDelay: 3 * time.Second,
		Interval:     2 * time.Second,
		MaxInterval:  30 * time.Second,
		Multiplier:   1,
		MaxAttempts:  300,
		Timeout:      10 * time.Minute,
	}
}

// PolicyFromConfig converts the CLI poll settings into a policy.
func PolicyFromConfig(c model.PollConfig) RetryPolicy {
	return RetryPolicy{
		InitialDelay: c.InitialDelay,
		Interval:     c.Interval,
		MaxInterval:  c.MaxInterval,
		Multiplier:   c.Multiplier,
		MaxAttempts:  c.MaxAttempts,
		Timeout:      c.Timeout,
	}
}

// Validate reports whether the policy is usable.
func (p RetryPolicy) Validate() error {
	switch {
	case p.InitialDelay < 0 || p.Interval < 0 || p.MaxInterval < 0 || p.Timeout < 0:
		return errors.New("poll durations must not be negative")
	case p.Interval == 0:
		return errors.New("poll interval must be positive")
	case p.Multiplier < 1:
		return errors.New("poll multiplier must be at least 1")
	case p.MaxAttempts < 0:
		return errors.New("poll max attempts must not be negative")
	case p.MaxAttempts == 0 && p.Timeout == 0:
		return errors.New("poll needs a max attempts or timeout bound")
	case p.Timeout > 0 && p.Timeout < p.InitialDelay:
		return errors.New("poll timeout must not be shorter than the initial delay")
	}
	return nil
}

// Delay returns how long to wait before the given 1-based attempt.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return p.InitialDelay
	}
	d := float64(p.Interval) * math.Pow(p.Multiplier, float64(attempt-2))
	if p.MaxInterval > 0 && d > float64(p.MaxInterval) {
		return p.MaxInterval
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// Clock abstracts time so the poller can be driven without real delays.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// RealClock is the wall clock.
var RealClock Clock = realClock{}
