// Package testutil provides shared test utilities and fixtures.
//
// Besides the HTTP assertion helpers it builds detection-log fixtures in the
// positional line format the tracker writes, so query and api tests do not
// each hand-assemble CSV strings.
package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// LogRow describes one fixture line. Box geometry is fixed; only the fields
// queries filter on are configurable.
type LogRow struct {
	Frame      int
	ObjectID   int
	Type       string
	Confidence float64
	Timestamp  string // 2006-01-02 15:04:05.000000
}

// Line renders r in the twelve-column log format.
func (r LogRow) Line() string {
	frame := r.Frame
	if frame == 0 {
		frame = 1
	}
	return fmt.Sprintf("%d,%d,%s,100,50,40,20,%g,-1,-1,-1,%s", frame, r.ObjectID, r.Type, r.Confidence, r.Timestamp)
}

// LogContent joins rows into file contents, one line each with a trailing
// newline.
func LogContent(rows ...LogRow) []byte {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(r.Line())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// WriteLog writes rows to dir/name on disk, creating dir, and returns the
// full path.
func WriteLog(t *testing.T, dir, name string, rows ...LogRow) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, LogContent(rows...), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// SampleRows is the two-object day used across query tests: object 7 is a
// confident car at 10:00, object 8 a low-confidence car at 10:05.
func SampleRows() []LogRow {
	return []LogRow{
		{Frame: 1, ObjectID: 7, Type: "car", Confidence: 0.5, Timestamp: "2024-01-01 10:00:00.000000"},
		{Frame: 301, ObjectID: 8, Type: "car", Confidence: 0.2, Timestamp: "2024-01-01 10:05:00.000000"},
	}
}
