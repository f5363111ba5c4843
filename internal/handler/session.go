package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pavelanni/sheetcheck/internal/i18n"
	"github.com/pavelanni/sheetcheck/internal/model"
	"github.com/pavelanni/sheetcheck/internal/workflow"
)

const maxUploadBytes = 32 << 20

type sessionView struct {
	model.SessionSnapshot
	StateLabel string `json:"state_label"`
	Error      string `json:"error,omitempty"`
	ErrorCode  string `json:"error_code,omitempty"`
	NoData     bool   `json:"no_data,omitempty"`
}

func (h *Handler) view(r *http.Request, sess *workflow.Session) sessionView {
	snap := sess.Snapshot()
	v := sessionView{
		SessionSnapshot: snap,
		StateLabel:      i18n.StateLabel(r.Context(), snap.State),
	}
	if snap.Err != nil {
		v.Error = i18n.ErrorMessage(r.Context(), snap.Err, h.serviceURL)
		v.ErrorCode = i18n.ErrorKind(snap.Err)
	}
	v.NoData = snap.State == model.StateReady && snap.Stats == nil
	return v
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.view(r, h.current()))
}

func (h *Handler) handleRestart(w http.ResponseWriter, r *http.Request) {
	sess, err := h.restart()
	if err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.view(r, sess))
}

func (h *Handler) handleAnswerKey(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, (*workflow.Session).SubmitAnswerKey)
}

func (h *Handler) handleResponses(w http.ResponseWriter, r *http.Request) {
	h.handleUpload(w, r, (*workflow.Session).SubmitStudentResponses)
}

type submitFunc func(*workflow.Session, context.Context, model.Upload) error

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request, submit submitFunc) {
	sess := h.current()

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, hdr, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			writeError(w, http.StatusBadRequest, "missing_file", i18n.T(r.Context(), "ErrMissingFile"))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request",
			i18n.Td(r.Context(), "ErrBadQuery", map[string]any{"Detail": err.Error()}))
		return
	}
	defer file.Close()

	slog.Info("upload received", "path", r.URL.Path, "file", hdr.Filename, "bytes", hdr.Size)
	if err := submit(sess, r.Context(), model.Upload{Name: hdr.Filename, Content: file}); err != nil {
		h.writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view(r, sess))
}
