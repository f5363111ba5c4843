// Package export serializes the held result set into a downloadable artifact.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pavelanni/sheetcheck/internal/model"
)

// ContentType is the media type of every artifact.
const ContentType = "application/json"

// Artifact is an exported result set ready to be written or downloaded.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Filename returns the artifact name for an export made at now (UTC date).
func Filename(now time.Time) string {
	return "grading-results-" + now.UTC().Format(time.DateOnly) + ".json"
}

// Results encodes the whole result set. It reports false, and returns a zero
// Artifact, when rs is nil.
func Results(rs *model.ResultSet, now time.Time) (Artifact, bool) {
	if rs == nil {
		return Artifact{}, false
	}
	doc := *rs
	if doc.Results == nil {
		doc.Results = []model.StudentResult{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		// Only non-finite floats fail to encode; validated result sets never carry them.
		return Artifact{}, false
	}
	return Artifact{
		Filename:    Filename(now),
		ContentType: ContentType,
		Data:        append(data, '\n'),
	}, true
}

// WriteTo writes the artifact body to w.
func (a Artifact) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(a.Data)
	return int64(n), err
}

// Save writes the artifact to path. An empty path or an existing directory
// gets the generated filename; "-" writes to stdout.
func (a Artifact) Save(path string) (string, error) {
	if path == "-" {
		_, err := a.WriteTo(os.Stdout)
		return path, err
	}
	if path == "" {
		path = a.Filename
	} else if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		path = filepath.Join(path, a.Filename)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	if _, err := a.WriteTo(f); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	return path, f.Close()
}
