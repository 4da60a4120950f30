// Package records defines the per-detection log line written by the tracker
// and read back by the query tool, and where those logs live on disk.
package records

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/camera.report/internal/security"
)

// TimestampLayout is the wall-clock format of the last column, microsecond
// precision, local time.
const TimestampLayout = "2006-01-02 15:04:05.000000"

// DateLayout names the per-day directory and file.
const DateLayout = "2006-01-02"

// parseLayout accepts any fractional precision, including none.
const parseLayout = "2006-01-02 15:04:05"

// Reserved is the value of the unused x, y, z columns.
const Reserved = -1

// Columns is the positional schema of a log line. Files carry no header.
var Columns = []string{
	"frame_number", "object_id", "vehicle_type",
	"bb_left", "bb_top", "box_width", "box_height",
	"confidence", "x", "y", "z", "timestamp",
}

// Record is one detection as written to the day log.
type Record struct {
	FrameNumber int       `json:"frame_number"`
	ObjectID    int       `json:"object_id"`
	VehicleType string    `json:"vehicle_type"`
	BBLeft      float64   `json:"bb_left"`
	BBTop       float64   `json:"bb_top"`
	BoxWidth    float64   `json:"box_width"`
	BoxHeight   float64   `json:"box_height"`
	Confidence  float64   `json:"confidence"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Z           float64   `json:"z"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewRecord builds a record from a centre/size box, deriving the top-left
// corner and filling the reserved coordinates.
func NewRecord(frame, objectID int, vehicleType string, cx, cy, w, h, confidence float64, ts time.Time) Record {
	return Record{
		FrameNumber: frame,
		ObjectID:    objectID,
		VehicleType: vehicleType,
		BBLeft:      cx - w/2,
		BBTop:       cy - h/2,
		BoxWidth:    w,
		BoxHeight:   h,
		Confidence:  confidence,
		X:           Reserved,
		Y:           Reserved,
		Z:           Reserved,
		Timestamp:   ts,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Fields renders r in Columns order.
func (r Record) Fields() []string {
	return []string{
		strconv.Itoa(r.FrameNumber),
		strconv.Itoa(r.ObjectID),
		r.VehicleType,
		formatFloat(r.BBLeft),
		formatFloat(r.BBTop),
		formatFloat(r.BoxWidth),
		formatFloat(r.BoxHeight),
		formatFloat(r.Confidence),
		formatFloat(r.X),
		formatFloat(r.Y),
		formatFloat(r.Z),
		r.Timestamp.Format(TimestampLayout),
	}
}

// ParseFields is the inverse of Fields. Timestamps are read in the local
// zone.
func ParseFields(f []string) (Record, error) {
	if len(f) != len(Columns) {
		return Record{}, fmt.Errorf("expected %d fields, got %d", len(Columns), len(f))
	}

	var r Record
	var err error
	if r.FrameNumber, err = strconv.Atoi(strings.TrimSpace(f[0])); err != nil {
		return Record{}, fmt.Errorf("frame_number: %w", err)
	}
	if r.ObjectID, err = strconv.Atoi(strings.TrimSpace(f[1])); err != nil {
		return Record{}, fmt.Errorf("object_id: %w", err)
	}
	r.VehicleType = strings.TrimSpace(f[2])

	floats := []*float64{&r.BBLeft, &r.BBTop, &r.BoxWidth, &r.BoxHeight, &r.Confidence, &r.X, &r.Y, &r.Z}
	for i, dst := range floats {
		col := i + 3
		if *dst, err = strconv.ParseFloat(strings.TrimSpace(f[col]), 64); err != nil {
			return Record{}, fmt.Errorf("%s: %w", Columns[col], err)
		}
	}

	if r.Timestamp, err = time.ParseInLocation(parseLayout, strings.TrimSpace(f[11]), time.Local); err != nil {
		return Record{}, fmt.Errorf("timestamp: %w", err)
	}
	return r, nil
}

// HostToken derives the per-camera directory name from a stream URL: the
// credentials and scheme are dropped, the host:port segment is kept and its
// colon becomes an underscore.
//
//	rtsp://admin:pw@192.168.1.10:554/Streaming/101 -> 192.168.1.10_554
func HostToken(streamURL string) string {
	s := streamURL
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	} else if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.Index(s, "/"); i >= 0 {
		s = s[:i]
	}
	return security.SanitizeFilename(strings.ReplaceAll(s, ":", "_"))
}

// LogFileName returns <YYYY-MM-DD>[_detailed].txt for day.
func LogFileName(day time.Time, detailed bool) string {
	return DayFileName(day.Format(DateLayout), detailed)
}

// DayFileName is LogFileName for an already formatted date.
func DayFileName(date string, detailed bool) string {
	if detailed {
		return date + "_detailed.txt"
	}
	return date + ".txt"
}

// LogPath returns <root>/<host>/<YYYY-MM-DD>/<YYYY-MM-DD>[_detailed].txt.
func LogPath(root, hostToken string, day time.Time, detailed bool) string {
	return filepath.Join(root, hostToken, day.Format(DateLayout), LogFileName(day, detailed))
}
