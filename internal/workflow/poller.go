package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pavelanni/sheetcheck/internal/metrics"
	"github.com/pavelanni/sheetcheck/internal/model"
)

// ResultFetcher asks the grading service for its result set once.
type ResultFetcher interface {
	FetchResults(ctx context.Context) (model.ResultSet, bool, error)
}

// Poller repeatedly fetches results until they are ready, the policy runs
// out, a request fails, or ctx is done. Polls never overlap.
type Poller struct {
	fetcher ResultFetcher
	policy  RetryPolicy
	clock   Clock
}

// NewPoller creates a poller. A nil clock uses the wall clock.
func NewPoller(f ResultFetcher, policy RetryPolicy, clock Clock) *Poller {
	if clock == nil {
		clock = RealClock
	}
	return &Poller{fetcher: f, policy: policy, clock: clock}
}

// Run polls until a validated result set is available. onAttempt, if not
// nil, is called with the attempt number before each request.
func (p *Poller) Run(ctx context.Context, onAttempt func(int)) (model.ResultSet, error) {
	if err := p.policy.Validate(); err != nil {
		return model.ResultSet{}, fmt.Errorf("invalid retry policy: %w", err)
	}

	start := p.clock.Now()
	deadline := start.Add(p.policy.Timeout)

	for attempt := 1; ; attempt++ {
		if p.policy.MaxAttempts > 0 && attempt > p.policy.MaxAttempts {
			return model.ResultSet{}, fmt.Errorf("%w: gave up after %d attempts",
				ErrPollExhausted, p.policy.MaxAttempts)
		}
		delay := p.policy.Delay(attempt)
		if p.policy.Timeout > 0 && p.clock.Now().Add(delay).After(deadline) {
			return model.ResultSet{}, fmt.Errorf("%w: no results after %s",
				ErrPollExhausted, p.policy.Timeout)
		}

		select {
		case <-ctx.Done():
			return model.ResultSet{}, ctx.Err()
		case <-p.clock.After(delay):
		}

		if onAttempt != nil {
			onAttempt(attempt)
		}
		rs, ready, err := p.fetcher.FetchResults(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return model.ResultSet{}, ctxErr
			}
			metrics.Polls().WithLabelValues(metrics.OutcomeError).Inc()
			slog.Error("poll failed", "attempt", attempt, "error", err)
			return model.ResultSet{}, fmt.Errorf("%w: %w", ErrPollFailed, err)
		}
		if !ready {
			metrics.Polls().WithLabelValues(metrics.OutcomeNotReady).Inc()
			slog.Debug("results not ready", "attempt", attempt, "next_delay", p.policy.Delay(attempt+1))
			continue
		}

		metrics.Polls().WithLabelValues(metrics.OutcomeReady).Inc()
		if err := ValidateResultSet(rs); err != nil {
			slog.Error("rejecting result set", "attempt", attempt, "error", err)
			return model.ResultSet{}, err
		}
		slog.Info("results ready", "attempt", attempt, "students", rs.TotalStudents,
			"waited", p.clock.Now().Sub(start))
		return rs, nil
	}
}
