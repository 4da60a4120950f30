package vision

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"github.com/banshee-data/camera.report/internal/monitoring"
	"github.com/banshee-data/camera.report/internal/vision/yolo"
)

// DetectorConfig configures a Detector.
type DetectorConfig struct {
	WeightsPath    string // YOLOv8 ONNX export
	Device         string // "cpu" or "cuda:N"
	InputSize      int
	ScoreThreshold float64
	NMSThreshold   float64
}

// Detector runs a YOLOv8 ONNX model through the OpenCV DNN module.
type Detector struct {
	net gocv.Net
	cfg DetectorConfig
}

// NewDetector loads the weights and selects the backend for cfg.Device.
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	dev, err := yolo.ParseDevice(cfg.Device)
	if err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromONNX(cfg.WeightsPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load model from %s", cfg.WeightsPath)
	}

	backend, target := gocv.NetBackendDefault, gocv.NetTargetCPU
	if dev.CUDA {
		backend, target = gocv.NetBackendCUDA, gocv.NetTargetCUDA
		if dev.Index != 0 {
			monitoring.Logf("vision: OpenCV picks the CUDA device; %s requested", dev)
		}
	}
	if err := net.SetPreferableBackend(backend); err != nil {
		net.Close()
		return nil, fmt.Errorf("set backend for %s: %w", dev, err)
	}
	if err := net.SetPreferableTarget(target); err != nil {
		net.Close()
		return nil, fmt.Errorf("set target for %s: %w", dev, err)
	}
	monitoring.Logf("vision: loaded %s on %s, input %dpx", cfg.WeightsPath, dev, cfg.InputSize)

	return &Detector{net: net, cfg: cfg}, nil
}

// Detect returns candidate boxes in frame pixels after non-maximum
// suppression, highest score first.
func (d *Detector) Detect(frame gocv.Mat) ([]yolo.Candidate, error) {
	size := d.cfg.InputSize
	blob := gocv.BlobFromImage(frame, 1.0/255.0, image.Pt(size, size), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	dims := out.Size()
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected output shape %v", dims)
	}
	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read output: %w", err)
	}

	scaleX := float64(frame.Cols()) / float64(size)
	scaleY := float64(frame.Rows()) / float64(size)
	cands, err := yolo.Decode(data, dims[1], dims[2], scaleX, scaleY, d.cfg.ScoreThreshold)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, nil
	}

	rects := make([]image.Rectangle, len(cands))
	scores := make([]float32, len(cands))
	for i, c := range cands {
		x, y := int(math.Round(c.Left())), int(math.Round(c.Top()))
		rects[i] = image.Rect(x, y, x+int(math.Round(c.W)), y+int(math.Round(c.H)))
		scores[i] = float32(c.Score)
	}
	keep := gocv.NMSBoxes(rects, scores, float32(d.cfg.ScoreThreshold), float32(d.cfg.NMSThreshold))

	kept := make([]yolo.Candidate, 0, len(keep))
	for _, i := range keep {
		kept = append(kept, cands[i])
	}
	return kept, nil
}

// Close releases the network.
func (d *Detector) Close() error {
	return d.net.Close()
}
