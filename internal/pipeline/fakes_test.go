package pipeline

import (
	"errors"
	"fmt"

	"github.com/banshee-data/camera.report/internal/records"
)

type fakeFrame struct {
	src *fakeSource
}

func (f fakeFrame) Close() error {
	f.src.framesClosed++
	return nil
}

// fakeSource yields n frames and then reports end of stream.
type fakeSource struct {
	n            int
	reads        int
	framesClosed int
	closed       bool
}

func (s *fakeSource) Read() (Frame, bool) {
	if s.reads >= s.n {
		return nil, false
	}
	s.reads++
	return fakeFrame{src: s}, true
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// scriptedTracker returns results in order, an empty result once they run
// out, and failAt (1-based call number) makes that call fail.
type scriptedTracker struct {
	results []Result
	calls   int
	failAt  int
}

var errTrack = errors.New("inference failed")

func (t *scriptedTracker) Track(Frame) (Result, error) {
	t.calls++
	if t.calls == t.failAt {
		return Result{}, errTrack
	}
	if t.calls <= len(t.results) {
		return t.results[t.calls-1], nil
	}
	return Result{}, nil
}

func (t *scriptedTracker) Label(classID int) string {
	switch classID {
	case 2:
		return "car"
	case 7:
		return "truck"
	}
	return fmt.Sprintf("class%d", classID)
}

type labelFunc func(int) string

func (f labelFunc) Label(id int) string { return f(id) }

type collectSink struct {
	recs []records.Record
	err  error
}

func (s *collectSink) Write(r records.Record) error {
	if s.err != nil {
		return s.err
	}
	s.recs = append(s.recs, r)
	return nil
}

func car(id int, cx, cy float64) Detection {
	return Detection{CX: cx, CY: cy, W: 40, H: 20, Confidence: 0.9, ClassID: 2, TrackID: id, HasID: true}
}

func frames(dets ...[]Detection) []Result {
	out := make([]Result, len(dets))
	for i, d := range dets {
		out[i] = Result{Detections: d}
	}
	return out
}
