package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/camera.report/internal/bytetrack"
	"github.com/banshee-data/camera.report/internal/history"
)

// feed runs one frame of boxes through the tracker and the processor.
func feed(t *testing.T, p *Processor, bt *bytetrack.Tracker, boxes []bytetrack.Box) {
	t.Helper()
	var res Result
	for _, tr := range bt.Update(boxes) {
		b := tr.Box
		res.Detections = append(res.Detections, Detection{
			CX: b.CX, CY: b.CY, W: b.W, H: b.H,
			Confidence: b.Score, ClassID: b.ClassID,
			TrackID: tr.ID, HasID: true,
		})
	}
	_, err := p.ProcessFrame(start, res, &scriptedTracker{})
	require.NoError(t, err)
}

func TestOcclusionLogsOneFirstSighting(t *testing.T) {
	cfg := bytetrack.DefaultConfig()
	vehicle := []bytetrack.Box{{CX: 200, CY: 120, W: 40, H: 20, Score: 0.9, ClassID: 2}}

	tests := []struct {
		name     string
		occluded int
		wantIDs  []int
	}{
		{"short occlusion", 10, []int{1}},
		{"occluded for the whole buffer", cfg.TrackBuffer, []int{1}},
		{"lost past the buffer", cfg.TrackBuffer + 1, []int{1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &collectSink{}
			p := NewProcessor(Config{Sink: sink, History: history.New(30, cfg.TrackBuffer+1)})
			bt := bytetrack.New(cfg)

			feed(t, p, bt, vehicle)
			for i := 0; i < tt.occluded; i++ {
				feed(t, p, bt, nil)
			}
			// a track born after the first frame needs a second sighting
			feed(t, p, bt, vehicle)
			feed(t, p, bt, vehicle)

			var got []int
			for _, r := range sink.recs {
				got = append(got, r.ObjectID)
			}
			assert.Equal(t, tt.wantIDs, got)
		})
	}
}
