package workflow

import "errors"

var (
	// ErrAnswerKeyRequired is returned when student responses are submitted
	// before the grading service accepted an answer key.
	ErrAnswerKeyRequired = errors.New("answer key must be accepted before student responses")
	// ErrInvalidState is returned for operations the current state does not allow.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrBusy is returned when an upload is already in flight on the session.
	ErrBusy = errors.New("another upload is in progress")
	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("session closed")

	// ErrPollFailed wraps the request failure that ended the poll loop.
	ErrPollFailed = errors.New("polling for results failed")
	// ErrPollExhausted is returned when the retry policy ran out of attempts or time.
	ErrPollExhausted = errors.New("results not ready within poll limits")
	// ErrMalformedResults is returned when a delivered result set fails validation.
	ErrMalformedResults = errors.New("malformed result set")
)
