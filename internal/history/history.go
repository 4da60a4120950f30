// Package history keeps a short trail of recent centroids for every track id
// reported by the tracker.
//
// The buffer is the only per-object state the tracking pipeline owns. Its
// length after an update is what decides whether a detection is the first
// sighting of a track.
package history

import "sync"

// DefaultCapacity is the number of centroids retained per track.
const DefaultCapacity = 30

// Point is a single centroid observation in frame pixels.
type Point struct {
	X float64
	Y float64
}

type trail struct {
	points   []Point
	lastSeen int64 // frame tick of the most recent Observe
}

// History maps track ids to their most recent centroids, oldest first.
type History struct {
	capacity   int
	evictAfter int64
	tick       int64
	trails     map[int]*trail

	mu sync.Mutex
}

// New creates a History holding up to capacity points per track. Tracks not
// observed for more than evictAfter frames are dropped by Advance; a value
// <= 0 disables eviction so the key set grows for the life of the process.
func New(capacity, evictAfter int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{
		capacity:   capacity,
		evictAfter: int64(evictAfter),
		trails:     make(map[int]*trail),
	}
}

// Capacity returns the per-track point limit.
func (h *History) Capacity() int {
	return h.capacity
}

// Observe appends (x, y) to the trail for trackID, creating it on first use,
// trims the oldest point once the trail exceeds capacity, and returns the
// resulting length. A return value of 1 marks the first observation.
func (h *History) Observe(trackID int, x, y float64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	tr, ok := h.trails[trackID]
	if !ok {
		tr = &trail{points: make([]Point, 0, h.capacity+1)}
		h.trails[trackID] = tr
	}
	tr.points = append(tr.points, Point{X: x, Y: y})
	if len(tr.points) > h.capacity {
		// at most one point is appended per call
		copy(tr.points, tr.points[1:])
		tr.points = tr.points[:len(tr.points)-1]
	}
	tr.lastSeen = h.tick
	return len(tr.points)
}

// Points returns a copy of the trail for trackID, oldest first. Unknown ids
// return nil.
func (h *History) Points(trackID int) []Point {
	h.mu.Lock()
	defer h.mu.Unlock()

	tr, ok := h.trails[trackID]
	if !ok {
		return nil
	}
	out := make([]Point, len(tr.points))
	copy(out, tr.points)
	return out
}

// Len returns the current trail length for trackID.
func (h *History) Len(trackID int) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if tr, ok := h.trails[trackID]; ok {
		return len(tr.points)
	}
	return 0
}

// Size returns the number of track ids currently held.
func (h *History) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.trails)
}

// Advance moves the frame tick forward by one and evicts trails that have
// not been observed within the eviction window. It returns the number of
// trails removed.
func (h *History) Advance() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.tick++
	if h.evictAfter <= 0 {
		return 0
	}

	removed := 0
	for id, tr := range h.trails {
		if h.tick-tr.lastSeen > h.evictAfter {
			delete(h.trails, id)
			removed++
		}
	}
	return removed
}
