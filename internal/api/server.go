// Package api serves vehicle counts over HTTP, from the day logs and from
// the SQLite mirror.
package api

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/camera.report/internal/db"
	"github.com/banshee-data/camera.report/internal/fsutil"
	"github.com/banshee-data/camera.report/internal/httputil"
	"github.com/banshee-data/camera.report/internal/labels"
	"github.com/banshee-data/camera.report/internal/query"
	"github.com/banshee-data/camera.report/internal/version"
)

// ANSI escape codes for the request log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// DefaultConfidenceThreshold applies when the request omits one.
const DefaultConfidenceThreshold = 0.3

type Server struct {
	fs  fsutil.FileSystem
	dir string
	db  *db.DB
}

// NewServer answers log queries from dir on fs. database may be nil, in
// which case the /api/count/db route reports that it is not configured.
func NewServer(fs fsutil.FileSystem, dir string, database *db.DB) *Server {
	return &Server{fs: fs, dir: dir, db: database}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/count", s.handleCount)
	mux.HandleFunc("/api/count/db", s.handleCountDB)
	mux.HandleFunc("/charts/hourly", s.handleHourlyChart)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// paramsFromRequest reads the query parameters shared by every count route.
func (s *Server) paramsFromRequest(r *http.Request) (query.Params, error) {
	q := r.URL.Query()
	p := query.Params{
		Date:                q.Get("date"),
		StartTime:           q.Get("start_time"),
		EndTime:             q.Get("end_time"),
		ConfidenceThreshold: DefaultConfidenceThreshold,
		Dir:                 s.dir,
	}
	if p.Date == "" || p.StartTime == "" || p.EndTime == "" {
		return p, errors.New("date, start_time and end_time are required")
	}
	if v := q.Get("confidence_threshold"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			return p, fmt.Errorf("invalid 'confidence_threshold' parameter: %q", v)
		}
		p.ConfidenceThreshold = f
	}
	if v := q.Get("detailed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return p, fmt.Errorf("invalid 'detailed' parameter: %q", v)
		}
		p.Detailed = b
	}
	return p, nil
}

// Error codes in count replies.
const (
	CodeInvalidRange = "invalid_range"
	CodeLogNotFound  = "log_not_found"
)

// writeQueryError maps query errors onto status codes.
func writeQueryError(w http.ResponseWriter, err error) {
	var parseErr *time.ParseError
	switch {
	case errors.Is(err, query.ErrInvalidRange):
		httputil.WriteErrorCode(w, http.StatusBadRequest, CodeInvalidRange, err.Error())
	case errors.As(err, &parseErr):
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, query.ErrLogNotFound):
		httputil.WriteErrorCode(w, http.StatusNotFound, CodeLogNotFound, err.Error())
	default:
		httputil.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("query failed: %v", err))
	}
}

func (s *Server) runQuery(w http.ResponseWriter, r *http.Request) (*query.Result, bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return nil, false
	}
	p, err := s.paramsFromRequest(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	res, err := query.Run(s.fs, p)
	if err != nil {
		writeQueryError(w, err)
		return nil, false
	}
	return res, true
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runQuery(w, r)
	if !ok {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

// DBCount is the response of /api/count/db.
type DBCount struct {
	Camera string         `json:"camera,omitempty"`
	Start  time.Time      `json:"start"`
	End    time.Time      `json:"end"`
	Count  int            `json:"count"`
	ByType map[string]int `json:"by_type"`
}

func (s *Server) handleCountDB(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w, http.MethodGet)
		return
	}
	if s.db == nil {
		httputil.WriteError(w, http.StatusNotFound, "database not configured")
		return
	}
	p, err := s.paramsFromRequest(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	start, end, err := p.Window()
	if err != nil {
		writeQueryError(w, err)
		return
	}

	q := db.CountQuery{
		Camera:    r.URL.Query().Get("camera"),
		Start:     start,
		End:       end,
		Threshold: p.ConfidenceThreshold,
		Types:     labels.VehicleTypes(),
	}
	count, err := s.db.CountUniqueVehicles(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	byType, err := s.db.CountByType(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, DBCount{Camera: q.Camera, Start: start, End: end, Count: count, ByType: byType})
}

func (s *Server) handleHourlyChart(w http.ResponseWriter, r *http.Request) {
	res, ok := s.runQuery(w, r)
	if !ok {
		return
	}

	x := make([]string, 0, len(res.Hourly))
	y := make([]opts.BarData, 0, len(res.Hourly))
	for _, h := range res.Hourly {
		x = append(x, h.Hour.Format("15:04"))
		y = append(y, opts.BarData{Value: h.Count})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Vehicles per hour", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Unique vehicles per hour",
			Subtitle: fmt.Sprintf("%s %s to %s, total %d", res.Start.Format("2006-01-02"), res.Start.Format("15:04:05"), res.End.Format("15:04:05"), res.Count),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("vehicles", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)

	page := components.NewPage()
	page.AddCharts(bar)

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  version.String(),
		"database": s.db != nil,
	})
}
