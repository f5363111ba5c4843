package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/sheetcheck/internal/export"
	"github.com/pavelanni/sheetcheck/internal/i18n"
	"github.com/pavelanni/sheetcheck/internal/model"
	"github.com/pavelanni/sheetcheck/internal/ranking"
	"github.com/pavelanni/sheetcheck/internal/report"
	"github.com/pavelanni/sheetcheck/internal/stats"
	"github.com/pavelanni/sheetcheck/internal/store"
)

// studentView decorates a result with its display tier and rank badge.
type studentView struct {
	model.StudentResult
	Tier      model.Tier    `json:"tier"`
	TierLabel string        `json:"tier_label"`
	Badge     ranking.Badge `json:"badge"`
}

type resultsView struct {
	SessionID     string         `json:"session_id"`
	TotalStudents int            `json:"total_students"`
	TotalMarks    float64        `json:"total_marks,omitempty"`
	Tiers         map[string]int `json:"tiers"`
	Results       []studentView  `json:"results"`
}

func (h *Handler) decorate(r *http.Request, res model.StudentResult) studentView {
	tier := ranking.PerformanceTier(res.Percentage)
	badge, err := ranking.RankBadge(res.Rank)
	if err != nil {
		slog.Warn("invalid rank in stored result", "student", res.StudentID, "rank", res.Rank)
	}
	return studentView{
		StudentResult: res,
		Tier:          tier,
		TierLabel:     i18n.TierLabel(r.Context(), tier.Label),
		Badge:         badge,
	}
}

// held returns the current result set, writing a 404 when none is held.
func (h *Handler) held(w http.ResponseWriter, r *http.Request) (*model.ResultSet, bool) {
	rs, err := h.store.Current()
	if err != nil {
		h.writeFailure(w, r, err)
		return nil, false
	}
	if rs == nil {
		writeError(w, http.StatusNotFound, "no_results", i18n.T(r.Context(), "ErrNoResults"))
		return nil, false
	}
	return rs, true
}

func parseFilter(r *http.Request) (store.Filter, error) {
	var f store.Filter
	q := r.URL.Query()
	if label := q.Get("tier"); label != "" {
		tier, ok := ranking.TierByLabel(label)
		if !ok {
			return f, fmt.Errorf("unknown tier %q", label)
		}
		f.Tier = tier.Label
	}
	if minStr := q.Get("min"); minStr != "" {
		v, err := strconv.ParseFloat(minStr, 64)
		if err != nil || v < 0 || v > 100 {
			return f, fmt.Errorf("min must be a number between 0 and 100, got %q", minStr)
		}
		f.MinPercentage = v
	}
	return f, nil
}

func (h *Handler) handleResults(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_query",
			i18n.Td(r.Context(), "ErrBadQuery", map[string]any{"Detail": err.Error()}))
		return
	}

	info, ok, err := h.store.Info()
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no_results", i18n.T(r.Context(), "ErrNoResults"))
		return
	}

	students, err := h.store.Students(filter)
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	tiers, err := h.store.TierCounts()
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	out := resultsView{
		SessionID:     info.SessionID,
		TotalStudents: info.TotalStudents,
		TotalMarks:    info.TotalMarks,
		Tiers:         tiers,
		Results:       make([]studentView, 0, len(students)),
	}
	for _, s := range students {
		out.Results = append(out.Results, h.decorate(r, s))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleStudent(w http.ResponseWriter, r *http.Request) {
	id := model.StudentID(chi.URLParam(r, "studentID"))
	res, err := h.store.Student(id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "student_not_found",
			i18n.Td(r.Context(), "ErrStudentNotFound", map[string]any{"StudentID": string(id)}))
		return
	}
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.decorate(r, res))
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.held(w, r)
	if !ok {
		return
	}
	st, err := stats.Aggregate(rs.Percentages())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.held(w, r)
	if !ok {
		return
	}
	art, ok := export.Results(rs, h.now())
	if !ok {
		writeError(w, http.StatusNotFound, "no_results", i18n.T(r.Context(), "ErrNoResults"))
		return
	}
	w.Header().Set("Content-Type", art.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename))
	if _, err := art.WriteTo(w); err != nil {
		slog.Error("write export", "error", err)
	}
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	rs, ok := h.held(w, r)
	if !ok {
		return
	}
	var stp *model.Stats
	if st, err := stats.Aggregate(rs.Percentages()); err == nil {
		stp = &st
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := report.Write(r.Context(), w, *rs, stp); err != nil {
		slog.Error("write report", "error", err)
	}
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	if h.summarizer == nil {
		writeError(w, http.StatusServiceUnavailable, "llm_unavailable", i18n.T(r.Context(), "ErrSummaryUnavailable"))
		return
	}
	rs, ok := h.held(w, r)
	if !ok {
		return
	}
	st, err := stats.Aggregate(rs.Percentages())
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	summary, err := h.summarizer.Summarize(r.Context(), *rs, st)
	if err != nil {
		slog.Error("class summary failed", "error", err)
		writeError(w, http.StatusBadGateway, "summary_failed", i18n.T(r.Context(), "ErrSummaryFailed"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary, "stats": st})
}
