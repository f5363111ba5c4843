// Package grader is the HTTP client for the external grading service.
//
// The service grades asynchronously: an answer key upload builds the
// reference context, a student responses upload starts a background
// grading job, and GET /results answers {"status":"no_results"} until the
// job has written its result set.
package grader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/pavelanni/sheetcheck/internal/model"
)

const (
	// DefaultBaseURL is where the grading service listens in development.
	DefaultBaseURL = "http://127.0.0.1:8000"

	defaultTimeout = 60 * time.Second

	pathAnswerKey = "/upload/solved"
	pathResponses = "/upload/students"
	pathResults   = "/results"

	statusOK        = "ok"
	statusNoResults = "no_results"
)

var (
	// ErrUploadRejected matches every *RejectedError.
	ErrUploadRejected = errors.New("upload rejected by grading service")
	// ErrTransport wraps network-level failures reaching the service.
	ErrTransport = errors.New("grading service unreachable")
	// ErrBadResponse is returned when a response cannot be understood.
	ErrBadResponse = errors.New("unexpected response from grading service")
)

// RejectedError is returned when the service answers an upload with a
// non-success status.
type RejectedError struct {
	Path       string
	StatusCode int
	Detail     string
}

func (e *RejectedError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: upload rejected (HTTP %d)", e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s: upload rejected (HTTP %d): %s", e.Path, e.StatusCode, e.Detail)
}

// Is reports whether target is ErrUploadRejected.
func (e *RejectedError) Is(target error) bool {
	return target == ErrUploadRejected
}

// Client talks to one grading service instance.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// New creates a client for the service at baseURL. A zero timeout uses the
// default of one minute.
func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// BaseURL returns the service address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// uploadResponse is the body of a successful upload, or FastAPI's error body.
type uploadResponse struct {
	Status string          `json:"status"`
	Detail json.RawMessage `json:"detail"`
}

// statusResponse is the envelope shared by / and /results.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Ping checks that the service answers on its root endpoint.
func (c *Client) Ping(ctx context.Context) error {
	body, code, err := c.do(ctx, http.MethodGet, "/", nil, "")
	if err != nil {
		return err
	}
	if code != http.StatusOK {
		return fmt.Errorf("%w: GET / returned HTTP %d", ErrBadResponse, code)
	}
	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("%w: parse health response: %v", ErrBadResponse, err)
	}
	slog.Debug("grading service health", "status", resp.Status, "message", resp.Message)
	return nil
}

// UploadAnswerKey sends the answer key document. It issues exactly one request.
func (c *Client) UploadAnswerKey(ctx context.Context, up model.Upload) error {
	return c.upload(ctx, pathAnswerKey, up)
}

// UploadStudentResponses sends the student responses sheet, which starts
// grading on the service. It issues exactly one request.
func (c *Client) UploadStudentResponses(ctx context.Context, up model.Upload) error {
	return c.upload(ctx, pathResponses, up)
}

// FetchResults asks for the result set once. ready is false while the
// grading job is still running.
func (c *Client) FetchResults(ctx context.Context) (rs model.ResultSet, ready bool, err error) {
	body, code, err := c.do(ctx, http.MethodGet, pathResults, nil, "")
	if err != nil {
		return model.ResultSet{}, false, err
	}
	if code != http.StatusOK {
		return model.ResultSet{}, false, fmt.Errorf("%w: GET %s returned HTTP %d: %s",
			ErrBadResponse, pathResults, code, truncate(string(body), 200))
	}

	var env statusResponse
	if err := json.Unmarshal(body, &env); err != nil {
		return model.ResultSet{}, false, fmt.Errorf("%w: parse results: %v (body: %s)",
			ErrBadResponse, err, truncate(string(body), 200))
	}
	switch env.Status {
	case "":
	case statusNoResults:
		return model.ResultSet{}, false, nil
	default:
		return model.ResultSet{}, false, fmt.Errorf("%w: results status %q", ErrBadResponse, env.Status)
	}

	if err := json.Unmarshal(body, &rs); err != nil {
		return model.ResultSet{}, false, fmt.Errorf("%w: parse result set: %v", ErrBadResponse, err)
	}
	return rs, true, nil
}

func (c *Client) upload(ctx context.Context, path string, up model.Upload) error {
	data, err := io.ReadAll(up.Content)
	if err != nil {
		return fmt.Errorf("read %s: %w", up.Name, err)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, up.Name))
	hdr.Set("Content-Type", mimetype.Detect(data).String())
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("build multipart body: %w", err)
	}

	slog.Debug("uploading file", "path", path, "file", up.Name, "bytes", len(data))
	body, code, err := c.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType())
	if err != nil {
		return err
	}

	var resp uploadResponse
	_ = json.Unmarshal(body, &resp)
	if code/100 != 2 || resp.Status != statusOK {
		detail := detailText(resp.Detail)
		if detail == "" {
			detail = truncate(strings.TrimSpace(string(body)), 200)
		}
		return &RejectedError{Path: path, StatusCode: code, Detail: detail}
	}

	slog.Info("upload accepted", "path", path, "file", up.Name, "detail", detailText(resp.Detail))
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, fmt.Errorf("%w: %s %s: %v", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read %s response: %v", ErrTransport, path, err)
	}
	slog.Debug("grading service response", "method", method, "path", path,
		"status", resp.StatusCode, "duration", time.Since(start))
	return data, resp.StatusCode, nil
}

// detailText flattens FastAPI's detail field, which is a string for
// application errors and a list of objects for validation errors.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return truncate(string(raw), 200)
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
