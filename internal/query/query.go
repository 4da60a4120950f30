// Package query counts distinct vehicles in a day log within a time window.
package query

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/camera.report/internal/fsutil"
	"github.com/banshee-data/camera.report/internal/labels"
	"github.com/banshee-data/camera.report/internal/records"
)

// TimeLayout is the layout of Date + " " + StartTime/EndTime.
const TimeLayout = "2006-01-02 15:04:05"

var (
	// ErrInvalidRange is returned when the start of the window is after its end.
	ErrInvalidRange = errors.New("start time must be less than or equal to end time")
	// ErrLogNotFound is returned when no day log exists for the date.
	ErrLogNotFound = errors.New("no data file found for the given date")
)

// Params selects a day log and a window within it.
type Params struct {
	Date                string // YYYY-MM-DD
	StartTime           string // HH:MM:SS
	EndTime             string // HH:MM:SS
	ConfidenceThreshold float64
	Dir                 string // camera directory holding the day logs
	Detailed            bool
}

// Window parses the start and end of the query in the local zone.
func (p Params) Window() (start, end time.Time, err error) {
	start, err = time.ParseInLocation(TimeLayout, p.Date+" "+p.StartTime, time.Local)
	if err != nil {
		return start, end, fmt.Errorf("parse start time: %w", err)
	}
	end, err = time.ParseInLocation(TimeLayout, p.Date+" "+p.EndTime, time.Local)
	if err != nil {
		return start, end, fmt.Errorf("parse end time: %w", err)
	}
	if start.After(end) {
		return start, end, ErrInvalidRange
	}
	return start, end, nil
}

// HourCount is the number of distinct vehicles seen within one hour.
type HourCount struct {
	Hour  time.Time `json:"hour"`
	Count int       `json:"count"`
}

// Result summarises the rows that passed the filters.
type Result struct {
	Path             string         `json:"path,omitempty"`
	Start            time.Time      `json:"start"`
	End              time.Time      `json:"end"`
	Count            int            `json:"count"` // distinct object ids
	Rows             int            `json:"rows"`  // rows kept
	Total            int            `json:"total"` // rows read
	ByType           map[string]int `json:"by_type"`
	MeanConfidence   float64        `json:"mean_confidence"`
	MedianConfidence float64        `json:"median_confidence"`
	Hourly           []HourCount    `json:"hourly"`
}

// ResolvePath finds the day log for date under dir. The flat layout
// <dir>/<date>[_detailed].txt is tried first, then the per-day directory
// the tracker writes, <dir>/<date>/<date>[_detailed].txt.
func ResolvePath(fs fsutil.FileSystem, dir, date string, detailed bool) (string, error) {
	name := records.DayFileName(date, detailed)
	for _, p := range []string{
		filepath.Join(dir, name),
		filepath.Join(dir, date, name),
	} {
		if fs.Exists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrLogNotFound, dir)
}

// Run validates the window, loads the day log and summarises it. The window
// is checked before the filesystem is touched.
func Run(fs fsutil.FileSystem, p Params) (*Result, error) {
	start, end, err := p.Window()
	if err != nil {
		return nil, err
	}
	path, err := ResolvePath(fs, p.Dir, p.Date, p.Detailed)
	if err != nil {
		return nil, err
	}
	recs, err := records.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}

	res := Summarize(recs, start, end, p.ConfidenceThreshold)
	res.Path = path
	return res, nil
}

// Keep reports whether r passes the window, confidence and vehicle filters.
// Both ends of the window are inclusive.
func Keep(r records.Record, start, end time.Time, threshold float64) bool {
	return !r.Timestamp.Before(start) &&
		!r.Timestamp.After(end) &&
		r.Confidence >= threshold &&
		labels.IsVehicle(r.VehicleType)
}

// Summarize filters recs and aggregates what is left.
func Summarize(recs []records.Record, start, end time.Time, threshold float64) *Result {
	res := &Result{
		Start:  start,
		End:    end,
		Total:  len(recs),
		ByType: make(map[string]int),
	}

	ids := make(map[int]bool)
	byType := make(map[string]map[int]bool)
	byHour := make(map[int64]map[int]bool) // keyed by hour start, Unix seconds
	var confs []float64

	for _, r := range recs {
		if !Keep(r, start, end, threshold) {
			continue
		}
		res.Rows++
		ids[r.ObjectID] = true
		addID(byType, r.VehicleType, r.ObjectID)
		addID(byHour, hourOf(r.Timestamp).Unix(), r.ObjectID)
		confs = append(confs, r.Confidence)
	}

	res.Count = len(ids)
	for typ, set := range byType {
		res.ByType[typ] = len(set)
	}
	if len(confs) > 0 {
		res.MeanConfidence = stat.Mean(confs, nil)
		sort.Float64s(confs)
		res.MedianConfidence = stat.Quantile(0.5, stat.Empirical, confs, nil)
	}
	for h := hourOf(start); !h.After(end); h = h.Add(time.Hour) {
		res.Hourly = append(res.Hourly, HourCount{Hour: h, Count: len(byHour[h.Unix()])})
	}
	return res
}

// hourOf truncates t to the start of its wall-clock hour in t's zone.
func hourOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
}

func addID[K comparable](m map[K]map[int]bool, k K, id int) {
	set, ok := m[k]
	if !ok {
		set = make(map[int]bool)
		m[k] = set
	}
	set[id] = true
}
