// Package bytetrack associates per-frame detections into tracks with stable
// integer ids, in the manner of ByteTrack: confident boxes are matched
// first, then the remaining live tracks get a second chance against the
// low-confidence boxes.
//
// A track born after the first frame is tentative: it gets an id but is not
// reported until a detection matches it again on the next frame, and it is
// dropped at once if none does. Single-frame false positives therefore never
// surface as tracks. Tracks born on the first frame are confirmed
// immediately.
package bytetrack

import (
	"sort"
)

// secondStageMinIoU is the overlap a low-confidence box needs to keep a
// track alive.
const secondStageMinIoU = 0.5

// Box is a detection in centre/size form.
type Box struct {
	CX, CY  float64
	W, H    float64
	Score   float64
	ClassID int
}

// Track is a detection that was associated with an id this frame. Index is
// the position of the detection in the slice passed to Update.
type Track struct {
	ID    int
	Index int
	Box   Box
}

type track struct {
	id     int
	box    Box
	vx, vy float64 // centre velocity, px per frame
	hits      int
	lost      int // consecutive frames without a match
	confirmed bool
}

// predicted extrapolates the centre by the frames elapsed since the last
// match.
func (t *track) predicted() Box {
	b := t.box
	steps := float64(t.lost + 1)
	b.CX += t.vx * steps
	b.CY += t.vy * steps
	return b
}

func (t *track) update(b Box) {
	steps := float64(t.lost + 1)
	if t.hits > 0 {
		t.vx = 0.5*t.vx + 0.5*(b.CX-t.box.CX)/steps
		t.vy = 0.5*t.vy + 0.5*(b.CY-t.box.CY)/steps
	}
	t.box = b
	t.hits++
	t.lost = 0
	if t.hits > 1 {
		t.confirmed = true
	}
}

// Tracker holds association state across frames. It is not safe for
// concurrent use; the pipeline drives it from a single goroutine.
type Tracker struct {
	cfg    Config
	tracks []*track
	nextID int
	frame  int
}

// New returns a Tracker using cfg.
func New(cfg Config) *Tracker {
	return &Tracker{cfg: cfg}
}

// Active returns the number of tracks currently held, including lost ones
// still inside the buffer and tentative ones.
func (t *Tracker) Active() int {
	return len(t.tracks)
}

// Update associates one frame of detections. Ids are positive, increase
// monotonically and are never reused. The result is ordered by detection
// index; detections left without a confirmed id are omitted.
func (t *Tracker) Update(dets []Box) []Track {
	t.frame++

	var high, low []int
	for i, d := range dets {
		switch {
		case d.Score >= t.cfg.TrackHighThresh:
			high = append(high, i)
		case d.Score > t.cfg.TrackLowThresh:
			low = append(low, i)
		}
	}

	all := make([]int, len(t.tracks))
	for i := range t.tracks {
		all[i] = i
	}

	assigned := make(map[int]*track, len(dets))
	usedTrack := make(map[int]bool, len(t.tracks))

	// first stage: confident boxes against every held track
	minIoU := 1 - t.cfg.MatchThresh
	for _, m := range t.match(all, high, dets, minIoU) {
		assigned[m.det] = t.tracks[m.trk]
		usedTrack[m.trk] = true
	}

	// second stage: low boxes against tracks that were live last frame
	var live []int
	for i, tr := range t.tracks {
		if !usedTrack[i] && tr.lost == 0 && tr.confirmed {
			live = append(live, i)
		}
	}
	for _, m := range t.match(live, low, dets, secondStageMinIoU) {
		assigned[m.det] = t.tracks[m.trk]
		usedTrack[m.trk] = true
	}

	for di, tr := range assigned {
		tr.update(dets[di])
	}

	// age out unmatched tracks
	kept := t.tracks[:0]
	for i, tr := range t.tracks {
		if !usedTrack[i] {
			if !tr.confirmed {
				continue
			}
			tr.lost++
			if tr.lost > t.cfg.TrackBuffer {
				continue
			}
		}
		kept = append(kept, tr)
	}
	t.tracks = kept

	// birth
	for _, di := range high {
		if _, ok := assigned[di]; ok || dets[di].Score < t.cfg.NewTrackThresh {
			continue
		}
		t.nextID++
		tr := &track{id: t.nextID, confirmed: t.frame == 1}
		tr.update(dets[di])
		t.tracks = append(t.tracks, tr)
		assigned[di] = tr
	}

	out := make([]Track, 0, len(assigned))
	for di, tr := range assigned {
		if tr.confirmed {
			out = append(out, Track{ID: tr.id, Index: di, Box: dets[di]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

type pair struct {
	trk, det int
	iou      float64
}

// match greedily pairs tracks and detections by descending IoU, ignoring
// pairs below minIoU. Class changes are allowed; detectors often flip
// between car and truck on the same vehicle.
func (t *Tracker) match(trks, dets []int, boxes []Box, minIoU float64) []pair {
	var cands []pair
	for _, ti := range trks {
		p := t.tracks[ti].predicted()
		for _, di := range dets {
			if v := IoU(p, boxes[di]); v > 0 && v >= minIoU {
				cands = append(cands, pair{trk: ti, det: di, iou: v})
			}
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].iou > cands[j].iou })

	usedT := make(map[int]bool)
	usedD := make(map[int]bool)
	var out []pair
	for _, c := range cands {
		if usedT[c.trk] || usedD[c.det] {
			continue
		}
		usedT[c.trk] = true
		usedD[c.det] = true
		out = append(out, c)
	}
	return out
}

// IoU returns the intersection over union of two centre/size boxes.
func IoU(a, b Box) float64 {
	ax1, ay1, ax2, ay2 := a.CX-a.W/2, a.CY-a.H/2, a.CX+a.W/2, a.CY+a.H/2
	bx1, by1, bx2, by2 := b.CX-b.W/2, b.CY-b.H/2, b.CX+b.W/2, b.CY+b.H/2

	iw := min(ax2, bx2) - max(ax1, bx1)
	ih := min(ay2, by2) - max(ay1, by1)
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := a.W*a.H + b.W*b.H - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
