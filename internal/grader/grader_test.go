package grader

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pavelanni/sheetcheck/internal/model"
)

const resultsJSON = `{
  "total_students": 2,
  "total_marks": 10,
  "results": [
    {"student_id": 101, "total_score": 9.0, "total_possible": 10, "percentage": 90.0, "rank": 1,
     "per_question": [{"question": "Q1", "max_marks": 10, "marks_obtained": 9.0, "similarity": 0.912, "percentage": 90.0}]},
    {"student_id": "S-2", "total_score": 3.0, "total_possible": 10, "percentage": 30.0, "rank": 2,
     "per_question": [{"question": "Q1", "max_marks": 10, "marks_obtained": 3.0, "similarity": 0.55, "percentage": 30.0}]}
  ]
}`

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL, 0)
}

func upload(name, content string) model.Upload {
	return model.Upload{Name: name, Content: strings.NewReader(content)}
}

func TestUploadAnswerKey(t *testing.T) {
	var gotFile, gotName, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("FormFile: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotFile, gotName = string(data), hdr.Filename
		_, _ = io.WriteString(w, `{"status":"ok","detail":"solved sheet uploaded and context built"}`)
	})

	if err := c.UploadAnswerKey(context.Background(), upload("key.txt", "Q1 [5 marks]: gravity")); err != nil {
		t.Fatalf("UploadAnswerKey: %v", err)
	}
	if gotPath != "/upload/solved" {
		t.Errorf("path = %q, want /upload/solved", gotPath)
	}
	if gotName != "key.txt" || gotFile != "Q1 [5 marks]: gravity" {
		t.Errorf("file passed as %q=%q", gotName, gotFile)
	}
}

func TestUploadRejected(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		body       string
		wantDetail string
	}{
		{"status not ok", http.StatusOK, `{"status":"error","detail":"bad sheet"}`, "bad sheet"},
		{"server error", http.StatusInternalServerError, `Internal Server Error`, "Internal Server Error"},
		{"validation error", http.StatusUnprocessableEntity,
			`{"detail":[{"loc":["body","file"],"msg":"field required"}]}`, "field required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, tt.body)
			})
			err := c.UploadStudentResponses(context.Background(), upload("answers.csv", "student_id,Q1\n1,x\n"))
			if !errors.Is(err, ErrUploadRejected) {
				t.Fatalf("err = %v, want ErrUploadRejected", err)
			}
			var rej *RejectedError
			if !errors.As(err, &rej) {
				t.Fatalf("err = %T, want *RejectedError", err)
			}
			if rej.StatusCode != tt.code || rej.Path != "/upload/students" {
				t.Errorf("RejectedError = %+v", rej)
			}
			if rej.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", rej.Detail, tt.wantDetail)
			}
		})
	}
}

func TestUploadRejectedLongDetail(t *testing.T) {
	body := strings.Repeat("ошибка ", 60)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, body)
	})

	err := c.UploadAnswerKey(context.Background(), upload("key.txt", "Q1"))
	var rej *RejectedError
	if !errors.As(err, &rej) {
		t.Fatalf("err = %v, want *RejectedError", err)
	}
	if !utf8.ValidString(rej.Detail) {
		t.Errorf("Detail is not valid UTF-8: %q", rej.Detail)
	}
	if got := utf8.RuneCountInString(rej.Detail); got != 203 {
		t.Errorf("Detail has %d runes, want 200 plus ellipsis", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "abc", 5, "abc"},
		{"exact", "abcde", 5, "abcde"},
		{"ascii", "abcdef", 3, "abc..."},
		{"multibyte", "привет", 2, "пр..."},
		{"mixed", "aé€😀b", 4, "aé€😀..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncate(tt.in, tt.n); got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
		})
	}
}

func TestUploadTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c := New(srv.URL, 0)
	srv.Close()

	err := c.UploadAnswerKey(context.Background(), upload("key.txt", "Q1: a"))
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err = %v, want ErrTransport", err)
	}
	if errors.Is(err, ErrUploadRejected) {
		t.Error("transport failure must not look like a rejection")
	}
}

func TestFetchResultsNotReady(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"no_results"}`)
	})
	_, ready, err := c.FetchResults(context.Background())
	if err != nil {
		t.Fatalf("FetchResults: %v", err)
	}
	if ready {
		t.Error("ready = true, want false")
	}
}

func TestFetchResultsReady(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/results" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = io.WriteString(w, resultsJSON)
	})
	rs, ready, err := c.FetchResults(context.Background())
	if err != nil {
		t.Fatalf("FetchResults: %v", err)
	}
	if !ready {
		t.Fatal("ready = false, want true")
	}
	if rs.TotalStudents != 2 || len(rs.Results) != 2 {
		t.Fatalf("unexpected result set: %+v", rs)
	}
	if rs.Results[0].StudentID != "101" {
		t.Errorf("numeric student_id decoded as %q, want 101", rs.Results[0].StudentID)
	}
	if rs.Results[1].StudentID != "S-2" {
		t.Errorf("string student_id decoded as %q", rs.Results[1].StudentID)
	}
	if q := rs.Results[0].PerQuestion[0]; q.Similarity != 0.912 || q.MarksObtained != 9 {
		t.Errorf("per-question decoded as %+v", q)
	}
}

func TestFetchResultsBadResponse(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
	}{
		{"http error", http.StatusInternalServerError, "boom"},
		{"not json", http.StatusOK, "<html>"},
		{"unknown status", http.StatusOK, `{"status":"error"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = io.WriteString(w, tt.body)
			})
			_, ready, err := c.FetchResults(context.Background())
			if !errors.Is(err, ErrBadResponse) {
				t.Fatalf("err = %v, want ErrBadResponse", err)
			}
			if ready {
				t.Error("ready must be false on error")
			}
		})
	}
}

func TestFetchResultsCanceled(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"no_results"}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := c.FetchResults(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message":"AI Answer Validator API","status":"running"}`)
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
