// Package vision adapts OpenCV (through gocv) to the pipeline: RTSP capture,
// YOLOv8 ONNX inference and box drawing.
package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/banshee-data/camera.report/internal/pipeline"
)

// Frame wraps a decoded image.
type Frame struct {
	Mat gocv.Mat
}

// Close releases the image memory.
func (f *Frame) Close() error {
	return f.Mat.Close()
}

// Capture reads frames from a stream URL or file.
type Capture struct {
	vc *gocv.VideoCapture
}

// OpenCapture opens url. The capture buffer is kept at one frame so a slow
// consumer sees recent frames rather than a backlog.
func OpenCapture(url string) (*Capture, error) {
	vc, err := gocv.VideoCaptureFile(url)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("open stream: capture not opened")
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)
	return &Capture{vc: vc}, nil
}

// Read implements pipeline.Source. A closed stream, a failed read and an
// empty image all end the stream.
func (c *Capture) Read() (pipeline.Frame, bool) {
	if !c.vc.IsOpened() {
		return nil, false
	}
	m := gocv.NewMat()
	if ok := c.vc.Read(&m); !ok || m.Empty() {
		m.Close()
		return nil, false
	}
	return &Frame{Mat: m}, true
}

// Close releases the stream.
func (c *Capture) Close() error {
	return c.vc.Close()
}
