package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/pavelanni/sheetcheck/internal/i18n"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}

// writeFailure maps err onto an HTTP status and a localized message.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := i18n.ErrorKind(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeError(w, status, kind, i18n.ErrorMessage(r.Context(), err, h.serviceURL))
}

func statusFor(kind string) int {
	switch kind {
	case "answer_key_required", "busy", "invalid_state", "session_closed", "no_data":
		return http.StatusConflict
	case "upload_rejected":
		return http.StatusUnprocessableEntity
	case "service_unreachable", "poll_failed", "poll_exhausted", "malformed_results":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
