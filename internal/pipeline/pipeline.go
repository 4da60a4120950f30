// Package pipeline turns tracked frames into detection records.
//
// The camera, the detector and the multi-object tracker are injected as
// Source and Tracker so the record logic runs without a model. Processing is
// single threaded: one frame is read, tracked and logged before the next is
// read.
package pipeline

import (
	"github.com/banshee-data/camera.report/internal/records"
)

// Frame is an opaque decoded image owned by the caller of Source.Read.
type Frame interface {
	Close() error
}

// Source yields frames. Read reports false at end of stream or on a read
// failure; the two are not distinguished.
type Source interface {
	Read() (Frame, bool)
	Close() error
}

// Detection is one box from the detector, in frame pixels, with the id the
// tracker assigned to it. HasID is false when the tracker could not
// associate the box.
type Detection struct {
	CX, CY     float64
	W, H       float64
	Confidence float64
	ClassID    int
	TrackID    int
	HasID      bool
}

// Result is the tracker output for a single frame, in detector order.
type Result struct {
	Detections []Detection
}

// Tracked reports whether any detection carries a track id.
func (r Result) Tracked() bool {
	for _, d := range r.Detections {
		if d.HasID {
			return true
		}
	}
	return false
}

// Labeler resolves a class id to a vehicle type name.
type Labeler interface {
	Label(classID int) string
}

// Tracker runs detection and association on one frame. Association state
// lives inside the implementation and persists across calls.
type Tracker interface {
	Labeler
	Track(Frame) (Result, error)
}

// Sink receives emitted records.
type Sink interface {
	Write(records.Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(records.Record) error

// Write calls f(r).
func (f SinkFunc) Write(r records.Record) error { return f(r) }

// MultiSink writes to each sink in order and stops at the first error.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(r records.Record) error {
	for _, s := range m {
		if err := s.Write(r); err != nil {
			return err
		}
	}
	return nil
}
