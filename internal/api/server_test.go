package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/camera.report/internal/db"
	"github.com/banshee-data/camera.report/internal/fsutil"
	"github.com/banshee-data/camera.report/internal/httputil"
	"github.com/banshee-data/camera.report/internal/query"
	"github.com/banshee-data/camera.report/internal/records"
	"github.com/banshee-data/camera.report/internal/testutil"
)

const camDir = "/results/10.0.0.5_554"

func newTestServer(t *testing.T, database *db.DB) *Server {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll(camDir, 0o755))
	require.NoError(t, mfs.WriteFile(camDir+"/2024-01-01.txt", testutil.LogContent(testutil.SampleRows()...), 0o644))
	return NewServer(mfs, camDir, database)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := testutil.NewTestRecorder()
	s.ServeMux().ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, path))
	return w
}

func TestHandleCount(t *testing.T) {
	s := newTestServer(t, nil)

	w := get(t, s, "/api/count?date=2024-01-01&start_time=09:00:00&end_time=11:00:00&confidence_threshold=0.3")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var res query.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, map[string]int{"car": 1}, res.ByType)
	assert.Equal(t, camDir+"/2024-01-01.txt", res.Path)
}

func TestHandleCount_DefaultThreshold(t *testing.T) {
	s := newTestServer(t, nil)

	w := get(t, s, "/api/count?date=2024-01-01&start_time=09:00:00&end_time=11:00:00")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var res query.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)
}

func TestHandleCount_Errors(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name    string
		path    string
		status  int
		message string
		code    string
	}{
		{"missing params", "/api/count?date=2024-01-01", http.StatusBadRequest, "required", ""},
		{"start after end", "/api/count?date=2024-01-01&start_time=12:00:00&end_time=11:00:00", http.StatusBadRequest, query.ErrInvalidRange.Error(), CodeInvalidRange},
		{"bad time", "/api/count?date=2024-01-01&start_time=9am&end_time=11:00:00", http.StatusBadRequest, "parse start time", ""},
		{"bad threshold", "/api/count?date=2024-01-01&start_time=09:00:00&end_time=11:00:00&confidence_threshold=2", http.StatusBadRequest, "confidence_threshold", ""},
		{"bad detailed", "/api/count?date=2024-01-01&start_time=09:00:00&end_time=11:00:00&detailed=maybe", http.StatusBadRequest, "detailed", ""},
		{"missing log", "/api/count?date=2024-01-02&start_time=09:00:00&end_time=11:00:00", http.StatusNotFound, "no data file found", CodeLogNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, s, tt.path)
			testutil.AssertStatusCode(t, w.Code, tt.status)

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Contains(t, body["error"], tt.message)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestHandleCount_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)
	w := testutil.NewTestRecorder()
	s.ServeMux().ServeHTTP(w, testutil.NewTestRequest(http.MethodPost, "/api/count"))
	testutil.AssertStatusCode(t, w.Code, http.StatusMethodNotAllowed)
}

func TestHandleCountDB_NotConfigured(t *testing.T) {
	s := newTestServer(t, nil)
	w := get(t, s, "/api/count/db?date=2024-01-01&start_time=09:00:00&end_time=11:00:00")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestHandleCountDB(t *testing.T) {
	database, err := db.NewDB(filepath.Join(t.TempDir(), "camera.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	base := time.Date(2024, 1, 1, 10, 0, 0, 0, time.Local)
	run, err := database.StartRun(ctx, "10.0.0.5_554", false, base)
	require.NoError(t, err)
	sink, err := database.NewRunSink(ctx, run)
	require.NoError(t, err)
	require.NoError(t, sink.Write(records.NewRecord(1, 7, "car", 120, 60, 40, 20, 0.5, base)))
	require.NoError(t, sink.Write(records.NewRecord(301, 8, "car", 120, 60, 40, 20, 0.2, base.Add(5*time.Minute))))
	require.NoError(t, sink.Write(records.NewRecord(302, 9, "person", 120, 60, 40, 20, 0.9, base.Add(5*time.Minute))))
	require.NoError(t, sink.Close())

	s := newTestServer(t, database)
	w := get(t, s, "/api/count/db?date=2024-01-01&start_time=09:00:00&end_time=11:00:00&camera=10.0.0.5_554")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var res DBCount
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, 1, res.Count)
	assert.Equal(t, map[string]int{"car": 1}, res.ByType)
	assert.Equal(t, "10.0.0.5_554", res.Camera)

	w = get(t, s, "/api/count/db?date=2024-01-01&start_time=12:00:00&end_time=11:00:00")
	testutil.AssertStatusCode(t, w.Code, http.StatusBadRequest)
}

func TestHandleHourlyChart(t *testing.T) {
	s := newTestServer(t, nil)

	w := get(t, s, "/charts/hourly?date=2024-01-01&start_time=09:00:00&end_time=11:00:00")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "Unique vehicles per hour")
	assert.Contains(t, w.Body.String(), "10:00")

	w = get(t, s, "/charts/hourly?date=2024-01-02&start_time=09:00:00&end_time=11:00:00")
	testutil.AssertStatusCode(t, w.Code, http.StatusNotFound)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := get(t, s, "/healthz")
	testutil.AssertStatusCode(t, w.Code, http.StatusOK)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, false, body["database"])
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	w := testutil.NewTestRecorder()
	h.ServeHTTP(w, testutil.NewTestRequest(http.MethodGet, "/healthz"))

	testutil.AssertStatusCode(t, w.Code, http.StatusTeapot)
	assert.Contains(t, buf.String(), "418")
	assert.Contains(t, buf.String(), "/healthz")
}

func TestClient_Count(t *testing.T) {
	ts := httptest.NewServer(newTestServer(t, nil).ServeMux())
	defer ts.Close()

	c := NewClient(ts.URL+"/", nil)
	p := query.Params{Date: "2024-01-01", StartTime: "09:00:00", EndTime: "11:00:00", ConfidenceThreshold: 0.3}

	res, err := c.Count(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count)

	p.Date = "2024-01-02"
	_, err = c.Count(context.Background(), p)
	assert.True(t, errors.Is(err, query.ErrLogNotFound), "got %v", err)

	p.Date = "2024-01-01"
	p.StartTime = "12:00:00"
	_, err = c.Count(context.Background(), p)
	assert.True(t, errors.Is(err, query.ErrInvalidRange), "got %v", err)
}

func TestClient_ServerError(t *testing.T) {
	mock := httputil.NewMockHTTPClient().Respond(http.StatusInternalServerError, `{"error":"query failed: boom"}`)
	c := NewClient("http://camera.local:8080", mock)

	_, err := c.Count(context.Background(), query.Params{Date: "2024-01-01", StartTime: "09:00:00", EndTime: "11:00:00"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")

	require.Len(t, mock.Requests(), 1)
	u := mock.Requests()[0].URL
	assert.Equal(t, "/api/count", u.Path)
	assert.Equal(t, "2024-01-01", u.Query().Get("date"))
	assert.True(t, strings.HasPrefix(u.String(), "http://camera.local:8080/"))
}

func TestClient_MapsErrorCodesNotMessages(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"reworded range message", http.StatusBadRequest, `{"error":"window is backwards","code":"invalid_range"}`, query.ErrInvalidRange},
		{"reworded not-found message", http.StatusNotFound, `{"error":"nothing logged that day","code":"log_not_found"}`, query.ErrLogNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient("http://camera.local:8080", httputil.NewMockHTTPClient().Respond(tt.status, tt.body))
			_, err := c.Count(context.Background(), query.Params{Date: "2024-01-01", StartTime: "09:00:00", EndTime: "11:00:00"})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// a 404 without a code, e.g. an older server or an unknown route, is not a missing log
	c := NewClient("http://camera.local:8080", httputil.NewMockHTTPClient().Respond(http.StatusNotFound, "404 page not found"))
	_, err := c.Count(context.Background(), query.Params{Date: "2024-01-01", StartTime: "09:00:00", EndTime: "11:00:00"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, query.ErrLogNotFound))
}
