// Package yolo decodes raw YOLOv8 detection heads and parses device
// strings. It has no OpenCV dependency so it can be tested anywhere.
package yolo

import (
	"fmt"
	"strconv"
	"strings"
)

// Candidate is a decoded box before non-maximum suppression, in frame
// pixels.
type Candidate struct {
	CX, CY  float64
	W, H    float64
	Score   float64
	ClassID int
}

// Left returns the x coordinate of the left edge.
func (c Candidate) Left() float64 { return c.CX - c.W/2 }

// Top returns the y coordinate of the top edge.
func (c Candidate) Top() float64 { return c.CY - c.H/2 }

// Decode reads a YOLOv8 output laid out as [channels][anchors]: channels 0-3
// are cx, cy, w, h in network input pixels and the rest are per-class
// scores. Boxes are scaled by (scaleX, scaleY) into frame pixels and kept
// when their best class score reaches minScore.
func Decode(data []float32, channels, anchors int, scaleX, scaleY, minScore float64) ([]Candidate, error) {
	if channels <= 4 {
		return nil, fmt.Errorf("yolo: need more than 4 channels, got %d", channels)
	}
	if len(data) < channels*anchors {
		return nil, fmt.Errorf("yolo: output has %d values, want %d", len(data), channels*anchors)
	}

	at := func(c, i int) float64 { return float64(data[c*anchors+i]) }

	var out []Candidate
	for i := 0; i < anchors; i++ {
		best, bestScore := -1, minScore
		for c := 4; c < channels; c++ {
			if s := at(c, i); s >= bestScore {
				best, bestScore = c-4, s
			}
		}
		if best < 0 {
			continue
		}
		out = append(out, Candidate{
			CX:      at(0, i) * scaleX,
			CY:      at(1, i) * scaleY,
			W:       at(2, i) * scaleX,
			H:       at(3, i) * scaleY,
			Score:   bestScore,
			ClassID: best,
		})
	}
	return out, nil
}

// Device is the parsed form of a "cpu" or "cuda:N" device string.
type Device struct {
	CUDA  bool
	Index int
}

func (d Device) String() string {
	if d.CUDA {
		return "cuda:" + strconv.Itoa(d.Index)
	}
	return "cpu"
}

// ParseDevice accepts "cpu", "cuda", "cuda:N" and a bare GPU index "N".
func ParseDevice(s string) (Device, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case s == "cpu":
		return Device{}, nil
	case s == "cuda":
		return Device{CUDA: true}, nil
	case strings.HasPrefix(s, "cuda:"):
		s = strings.TrimPrefix(s, "cuda:")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return Device{}, fmt.Errorf("invalid device %q: want cpu or cuda:N", s)
	}
	return Device{CUDA: true, Index: n}, nil
}
