package vision

import (
	"fmt"

	"github.com/banshee-data/camera.report/internal/bytetrack"
	"github.com/banshee-data/camera.report/internal/labels"
	"github.com/banshee-data/camera.report/internal/pipeline"
)

// Model pairs a Detector with a ByteTrack associator and implements
// pipeline.Tracker.
type Model struct {
	det     *Detector
	tracker *bytetrack.Tracker
	labels  labels.Table
}

// NewModel returns a Model. tracker may be nil for detection-only use.
func NewModel(det *Detector, tracker *bytetrack.Tracker, names labels.Table) *Model {
	return &Model{det: det, tracker: tracker, labels: names}
}

// Label implements pipeline.Labeler.
func (m *Model) Label(classID int) string {
	return m.labels.Label(classID)
}

// Detect runs the detector only; no detection carries a track id.
func (m *Model) Detect(f pipeline.Frame) (pipeline.Result, error) {
	vf, ok := f.(*Frame)
	if !ok {
		return pipeline.Result{}, fmt.Errorf("vision: unsupported frame type %T", f)
	}
	cands, err := m.det.Detect(vf.Mat)
	if err != nil {
		return pipeline.Result{}, err
	}
	res := pipeline.Result{Detections: make([]pipeline.Detection, len(cands))}
	for i, c := range cands {
		res.Detections[i] = pipeline.Detection{
			CX: c.CX, CY: c.CY, W: c.W, H: c.H,
			Confidence: c.Score,
			ClassID:    c.ClassID,
		}
	}
	return res, nil
}

// Track implements pipeline.Tracker: detect, then associate. Detections the
// tracker leaves without an id are dropped, matching the behaviour of the
// bundled YOLO trackers.
func (m *Model) Track(f pipeline.Frame) (pipeline.Result, error) {
	res, err := m.Detect(f)
	if err != nil || m.tracker == nil {
		return res, err
	}

	boxes := make([]bytetrack.Box, len(res.Detections))
	for i, d := range res.Detections {
		boxes[i] = bytetrack.Box{CX: d.CX, CY: d.CY, W: d.W, H: d.H, Score: d.Confidence, ClassID: d.ClassID}
	}
	tracks := m.tracker.Update(boxes)

	out := pipeline.Result{Detections: make([]pipeline.Detection, 0, len(tracks))}
	for _, t := range tracks {
		d := res.Detections[t.Index]
		d.TrackID = t.ID
		d.HasID = true
		out.Detections = append(out.Detections, d)
	}
	return out, nil
}

// Close releases the detector.
func (m *Model) Close() error {
	return m.det.Close()
}
