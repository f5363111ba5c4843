package i18n

import (
	"context"
	"errors"

	"github.com/pavelanni/sheetcheck/internal/grader"
	"github.com/pavelanni/sheetcheck/internal/model"
	"github.com/pavelanni/sheetcheck/internal/ranking"
	"github.com/pavelanni/sheetcheck/internal/stats"
	"github.com/pavelanni/sheetcheck/internal/workflow"
)

var tierMessageIDs = map[string]string{
	ranking.LabelExcellent:        "TierExcellent",
	ranking.LabelGood:             "TierGood",
	ranking.LabelSatisfactory:     "TierSatisfactory",
	ranking.LabelPass:             "TierPass",
	ranking.LabelNeedsImprovement: "TierNeedsImprovement",
}

var stateMessageIDs = map[model.SessionState]string{
	model.StateAwaitingKey:       "StateAwaitingKey",
	model.StateAwaitingResponses: "StateAwaitingResponses",
	model.StateGrading:           "StateGrading",
	model.StateReady:             "StateReady",
	model.StateFailed:            "StateFailed",
}

// TierLabel translates a canonical tier label.
func TierLabel(ctx context.Context, label string) string {
	if id, ok := tierMessageIDs[label]; ok {
		return T(ctx, id)
	}
	return label
}

// StateLabel describes a session state for display.
func StateLabel(ctx context.Context, state model.SessionState) string {
	if id, ok := stateMessageIDs[state]; ok {
		return T(ctx, id)
	}
	return string(state)
}

// ErrorKind classifies err for API responses. It returns "" for nil.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, workflow.ErrAnswerKeyRequired):
		return "answer_key_required"
	case errors.Is(err, workflow.ErrBusy):
		return "busy"
	case errors.Is(err, workflow.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, workflow.ErrClosed):
		return "session_closed"
	case errors.Is(err, workflow.ErrPollExhausted):
		return "poll_exhausted"
	case errors.Is(err, workflow.ErrMalformedResults):
		return "malformed_results"
	case errors.Is(err, workflow.ErrPollFailed):
		return "poll_failed"
	case errors.Is(err, grader.ErrUploadRejected):
		return "upload_rejected"
	case errors.Is(err, grader.ErrTransport):
		return "service_unreachable"
	case errors.Is(err, stats.ErrNoData):
		return "no_data"
	default:
		return "internal"
	}
}

// ErrorMessage turns err into a localized message for the user. serviceURL
// is mentioned when the grading service could not be reached.
func ErrorMessage(ctx context.Context, err error, serviceURL string) string {
	switch ErrorKind(err) {
	case "":
		return ""
	case "answer_key_required":
		return T(ctx, "ErrAnswerKeyRequired")
	case "busy":
		return T(ctx, "ErrBusy")
	case "invalid_state":
		return T(ctx, "ErrInvalidState")
	case "session_closed":
		return T(ctx, "ErrSessionClosed")
	case "poll_exhausted":
		return T(ctx, "ErrPollExhausted")
	case "malformed_results":
		return T(ctx, "ErrMalformedResults")
	case "poll_failed":
		return T(ctx, "ErrFetchResults")
	case "upload_rejected":
		detail := err.Error()
		var rej *grader.RejectedError
		if errors.As(err, &rej) && rej.Detail != "" {
			detail = rej.Detail
		}
		return Td(ctx, "ErrUploadRejected", map[string]any{"Detail": detail})
	case "service_unreachable":
		return Td(ctx, "ErrServiceUnreachable", map[string]any{"URL": serviceURL})
	case "no_data":
		return T(ctx, "NoData")
	default:
		return Td(ctx, "ErrUnexpected", map[string]any{"Detail": err.Error()})
	}
}
