// Package handler exposes one grading workflow session over a local JSON
// API. A single session is current at a time; POST /session replaces it.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/sheetcheck/internal/model"
	"github.com/pavelanni/sheetcheck/internal/store"
	"github.com/pavelanni/sheetcheck/internal/workflow"
)

// Summarizer writes a narrative summary of a graded class.
type Summarizer interface {
	Summarize(ctx context.Context, rs model.ResultSet, st model.Stats) (string, error)
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store      *store.Store
	grader     workflow.Grader
	summarizer Summarizer
	serviceURL string
	opts       []workflow.Option
	now        func() time.Time

	mu      sync.Mutex
	session *workflow.Session
}

// New creates a Handler with a fresh session. summarizer may be nil, in
// which case /session/summary answers 503. opts are applied to every
// session the handler creates.
func New(s *store.Store, g workflow.Grader, summarizer Summarizer, serviceURL string, opts ...workflow.Option) (*Handler, error) {
	h := &Handler{
		store:      s,
		grader:     g,
		summarizer: summarizer,
		serviceURL: serviceURL,
		opts:       opts,
		now:        time.Now,
	}
	sess, err := h.newSession()
	if err != nil {
		return nil, err
	}
	h.session = sess
	return h, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Route("/session", func(r chi.Router) {
		r.Get("/", h.handleSession)
		r.Post("/", h.handleRestart)
		r.Post("/answer-key", h.handleAnswerKey)
		r.Post("/responses", h.handleResponses)
		r.Get("/results", h.handleResults)
		r.Get("/results/{studentID}", h.handleStudent)
		r.Get("/stats", h.handleStats)
		r.Get("/export", h.handleExport)
		r.Get("/report", h.handleReport)
		r.Get("/summary", h.handleSummary)
	})
}

// Close stops the current session.
func (h *Handler) Close() error {
	h.mu.Lock()
	sess := h.session
	h.mu.Unlock()
	return sess.Close()
}

func (h *Handler) current() *workflow.Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.session
}

// newSession builds a session that stores its results on delivery.
func (h *Handler) newSession() (*workflow.Session, error) {
	var sess *workflow.Session
	onReady := workflow.WithReadyHook(func(rs model.ResultSet) {
		if err := h.store.Replace(sess.ID(), rs, h.now()); err != nil {
			slog.Error("store result set", "session", sess.ID(), "error", err)
		}
	})
	opts := append(append([]workflow.Option{}, h.opts...), onReady)
	sess, err := workflow.New(h.grader, opts...)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	slog.Info("session started", "session", sess.ID())
	return sess, nil
}

// restart closes the current session, clears held results and starts over.
func (h *Handler) restart() (*workflow.Session, error) {
	next, err := h.newSession()
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	prev := h.session
	h.session = next
	h.mu.Unlock()

	if err := prev.Close(); err != nil {
		slog.Warn("close previous session", "session", prev.ID(), "error", err)
	}
	if err := h.store.Clear(); err != nil {
		return nil, fmt.Errorf("clear results: %w", err)
	}
	return next, nil
}
