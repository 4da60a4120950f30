package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/camera.report/internal/history"
	"github.com/banshee-data/camera.report/internal/monitoring"
	"github.com/banshee-data/camera.report/internal/records"
	"github.com/banshee-data/camera.report/internal/timeutil"
)

// Stats counts what a Processor has done.
type Stats struct {
	Frames        int // frames read
	TrackedFrames int // frames with at least one track id
	Records       int // records emitted
	Evicted       int // history entries dropped
}

// Config configures a Processor.
type Config struct {
	History  *history.History
	Sink     Sink
	Clock    timeutil.Clock
	Detailed bool // emit every detection instead of first sightings only
}

// Processor owns the frame counter and the track history for one stream.
type Processor struct {
	history  *history.History
	sink     Sink
	clock    timeutil.Clock
	detailed bool

	frame int // number of the next frame, 1-based
	stats Stats
}

// NewProcessor returns a Processor. A nil History gets the default capacity
// with eviction disabled; a nil Clock uses wall time.
func NewProcessor(cfg Config) *Processor {
	h := cfg.History
	if h == nil {
		h = history.New(history.DefaultCapacity, 0)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Processor{
		history:  h,
		sink:     cfg.Sink,
		clock:    clock,
		detailed: cfg.Detailed,
		frame:    1,
	}
}

// Stats returns a snapshot of the counters.
func (p *Processor) Stats() Stats {
	return p.stats
}

// FrameNumber returns the number the next processed frame will get.
func (p *Processor) FrameNumber() int {
	return p.frame
}

// ProcessFrame logs one tracked frame captured at ts. Every detection with a
// track id updates the history; a record is emitted when the processor is in
// detailed mode or the id is seen for the first time. The frame number
// advances exactly once per call, including frames without track ids. It
// returns the number of records emitted.
func (p *Processor) ProcessFrame(ts time.Time, res Result, labels Labeler) (int, error) {
	frame := p.frame
	p.frame++
	p.stats.Frames++
	defer func() { p.stats.Evicted += p.history.Advance() }()

	if !res.Tracked() {
		return 0, nil
	}
	p.stats.TrackedFrames++

	emitted := 0
	for _, d := range res.Detections {
		if !d.HasID {
			continue
		}
		n := p.history.Observe(d.TrackID, d.CX, d.CY)
		if !p.detailed && n != 1 {
			continue
		}
		rec := records.NewRecord(frame, d.TrackID, labels.Label(d.ClassID), d.CX, d.CY, d.W, d.H, d.Confidence, ts)
		if p.sink != nil {
			if err := p.sink.Write(rec); err != nil {
				return emitted, fmt.Errorf("frame %d: write record for track %d: %w", frame, d.TrackID, err)
			}
		}
		emitted++
		p.stats.Records++
	}
	return emitted, nil
}

// Run reads frames from src until the stream ends, ctx is cancelled or a
// collaborator fails. End of stream returns nil. Tracker and sink errors are
// returned as-is for the caller to treat as fatal. Cancellation is checked
// between frames only; a blocked Read or Track is not interrupted. src is
// closed on every path.
func (p *Processor) Run(ctx context.Context, src Source, tr Tracker) error {
	defer func() {
		if cerr := src.Close(); cerr != nil {
			monitoring.Logf("pipeline: close source: %v", cerr)
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, ok := src.Read()
		if !ok {
			return nil
		}

		ts := p.clock.Now()
		res, err := tr.Track(frame)
		if err == nil {
			_, err = p.ProcessFrame(ts, res, tr)
		} else {
			err = fmt.Errorf("frame %d: track: %w", p.frame, err)
		}
		if cerr := frame.Close(); cerr != nil {
			monitoring.Logf("pipeline: close frame: %v", cerr)
		}
		if err != nil {
			return err
		}
	}
}
