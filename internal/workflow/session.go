// Package workflow drives one grading run against the external service:
// the upload gate, the result poller and delivery of the final result set.
//
// A Session moves through
//
//	awaiting_key -> awaiting_responses -> grading -> ready | failed
//
// Failed uploads leave the state unchanged. Only the poll loop can fail a
// session, and a failed or ready session never changes again; start a new
// Session to grade another batch.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pavelanni/sheetcheck/internal/grader"
	"github.com/pavelanni/sheetcheck/internal/metrics"
	"github.com/pavelanni/sheetcheck/internal/model"
	"github.com/pavelanni/sheetcheck/internal/stats"
)

// Grader is the part of the grading service a session uses.
type Grader interface {
	UploadAnswerKey(ctx context.Context, up model.Upload) error
	UploadStudentResponses(ctx context.Context, up model.Upload) error
	ResultFetcher
}

// Option configures a Session.
type Option func(*Session)

// WithPolicy sets the result poll policy.
func WithPolicy(p RetryPolicy) Option {
	return func(s *Session) { s.policy = p }
}

// WithClock replaces the wall clock used by the poller.
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithReadyHook registers fn to receive the result set before the session
// reports ready.
func WithReadyHook(fn func(model.ResultSet)) Option {
	return func(s *Session) { s.onReady = append(s.onReady, fn) }
}

// Session is one upload → grade → results run.
type Session struct {
	id        string
	grader    Grader
	policy    RetryPolicy
	clock     Clock
	onReady   []func(model.ResultSet)
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	state     model.SessionState
	uploads   model.UploadStatus
	uploading bool
	closed    bool
	attempts  int
	err       error
	results   *model.ResultSet
	stats     *model.Stats
	pollDone  chan struct{}
}

// New creates a session waiting for an answer key.
func New(g Grader, opts ...Option) (*Session, error) {
	s := &Session{
		id:     uuid.NewString(),
		grader: g,
		policy: DefaultRetryPolicy(),
		clock:  RealClock,
		state:  model.StateAwaitingKey,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry policy: %w", err)
	}
	s.startedAt = s.clock.Now()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// SubmitAnswerKey uploads the answer key. It may be repeated until student
// responses have been accepted; the service keeps the latest key.
func (s *Session) SubmitAnswerKey(ctx context.Context, up model.Upload) error {
	if err := s.beginUpload(model.StateAwaitingKey, model.StateAwaitingResponses); err != nil {
		return err
	}

	err := s.grader.UploadAnswerKey(ctx, up)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = false
	if err != nil {
		countUpload("answer_key", err)
		slog.Warn("answer key upload failed", "session", s.id, "file", up.Name, "error", err)
		return fmt.Errorf("upload answer key: %w", err)
	}
	countUpload("answer_key", nil)
	if s.closed {
		return ErrClosed
	}
	s.uploads.AnswerKeyAccepted = true
	s.state = model.StateAwaitingResponses
	slog.Info("answer key accepted", "session", s.id, "file", up.Name)
	return nil
}

// SubmitStudentResponses uploads the student responses and, once the
// service accepts them, starts polling for results. It fails with
// ErrAnswerKeyRequired, without contacting the service, until an answer key
// has been accepted.
func (s *Session) SubmitStudentResponses(ctx context.Context, up model.Upload) error {
	s.mu.Lock()
	keyAccepted := s.uploads.AnswerKeyAccepted
	s.mu.Unlock()
	if !keyAccepted {
		return ErrAnswerKeyRequired
	}
	if err := s.beginUpload(model.StateAwaitingResponses); err != nil {
		return err
	}

	err := s.grader.UploadStudentResponses(ctx, up)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploading = false
	if err != nil {
		countUpload("student_responses", err)
		slog.Warn("student responses upload failed", "session", s.id, "file", up.Name, "error", err)
		return fmt.Errorf("upload student responses: %w", err)
	}
	countUpload("student_responses", nil)
	if s.closed {
		return ErrClosed
	}
	s.uploads.StudentResponsesAccepted = true
	s.state = model.StateGrading
	slog.Info("student responses accepted, grading started", "session", s.id, "file", up.Name)

	s.pollDone = make(chan struct{})
	go s.poll()
	return nil
}

func (s *Session) beginUpload(allowed ...model.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.uploading {
		return ErrBusy
	}
	for _, st := range allowed {
		if s.state == st {
			s.uploading = true
			return nil
		}
	}
	return fmt.Errorf("%w: session is %s", ErrInvalidState, s.state)
}

func (s *Session) poll() {
	defer close(s.pollDone)

	start := time.Now()
	poller := NewPoller(s.grader, s.policy, s.clock)
	rs, err := poller.Run(s.ctx, func(n int) {
		s.mu.Lock()
		s.attempts = n
		s.mu.Unlock()
	})
	metrics.GradingWait().Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.Canceled) {
			err = ErrClosed
		}
		slog.Error("grading did not finish", "session", s.id, "error", err)
		s.finish(model.StateFailed, err)
		return
	}

	st, err := stats.Aggregate(rs.Percentages())
	if err != nil {
		slog.Warn("no statistics for result set", "session", s.id, "error", err)
	}
	for _, fn := range s.onReady {
		fn(rs)
	}
	metrics.ResultStudents().Set(float64(len(rs.Results)))

	s.mu.Lock()
	s.results = &rs
	if err == nil {
		s.stats = &st
	}
	s.mu.Unlock()
	s.finish(model.StateReady, nil)
}

// finish moves the session into a terminal state exactly once.
func (s *Session) finish(state model.SessionState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.state = state
	s.err = err
	metrics.SessionsFinished().WithLabelValues(string(state)).Inc()
	close(s.done)
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() model.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := model.SessionSnapshot{
		ID:        s.id,
		State:     s.state,
		Uploads:   s.uploads,
		Attempts:  s.attempts,
		StartedAt: s.startedAt,
		Err:       s.err,
		Results:   s.results,
	}
	if s.stats != nil {
		st := *s.stats
		snap.Stats = &st
	}
	return snap
}

// Wait blocks until the session is ready or failed, or ctx is done.
func (s *Session) Wait(ctx context.Context) (model.ResultSet, error) {
	select {
	case <-ctx.Done():
		return model.ResultSet{}, ctx.Err()
	case <-s.done:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return model.ResultSet{}, s.err
	}
	return *s.results, nil
}

// Close stops a running poll and waits for it to exit. A session that has
// not finished is marked failed with ErrClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	pollDone := s.pollDone
	s.mu.Unlock()

	s.cancel()
	if pollDone != nil {
		<-pollDone
	}
	s.finish(model.StateFailed, ErrClosed)
	return nil
}

func isRejected(err error) bool {
	return errors.Is(err, grader.ErrUploadRejected)
}

func countUpload(kind string, err error) {
	outcome := metrics.OutcomeAccepted
	switch {
	case err == nil:
	case isRejected(err):
		outcome = metrics.OutcomeRejected
	default:
		outcome = metrics.OutcomeError
	}
	metrics.Uploads().WithLabelValues(kind, outcome).Inc()
}
