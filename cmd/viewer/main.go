// Command viewer shows a live stream with detector boxes drawn on it. It
// writes nothing; press q in the window to quit.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/banshee-data/camera.report/internal/cliutil"
	"github.com/banshee-data/camera.report/internal/config"
	"github.com/banshee-data/camera.report/internal/labels"
	"github.com/banshee-data/camera.report/internal/timeutil"
	"github.com/banshee-data/camera.report/internal/version"
	"github.com/banshee-data/camera.report/internal/vision"
)

var (
	trainedWeights = flag.String("trained_weights", "", "YOLOv8 ONNX weights (env TRAINED_WEIGHTS)")
	rtspURL        = flag.String("rtsp_url", "", "RTSP stream URL (env RTSP_URL)")
	device         = flag.String("device", "cuda:0", "Inference device: cpu, cuda or cuda:N")
	configPath     = flag.String("config", "", "JSON tuning file")
	envFile        = flag.String("env", ".env", "Environment file read before flags fall back to the environment")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("viewer", version.String())
		return
	}

	if err := cliutil.LoadEnv(*envFile); err != nil {
		log.Fatalf("failed to load environment: %v", err)
	}
	weights := cliutil.Fallback(*trainedWeights, "TRAINED_WEIGHTS")
	url := cliutil.Fallback(*rtspURL, "RTSP_URL")
	if weights == "" || url == "" {
		log.Fatal("--trained_weights and --rtsp_url are required")
	}

	cfg, err := config.LoadOrEmpty(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}
	if err := timeutil.SetLocalZone(cfg.GetTimezone()); err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}
	names, err := labels.LoadOrDefault(cfg.GetLabelsPath())
	if err != nil {
		log.Fatalf("failed to load labels: %v", err)
	}

	det, err := vision.NewDetector(vision.DetectorConfig{
		WeightsPath:    weights,
		Device:         *device,
		InputSize:      cfg.GetInputSize(),
		ScoreThreshold: cfg.GetScoreThreshold(),
		NMSThreshold:   cfg.GetNMSThreshold(),
	})
	if err != nil {
		log.Fatalf("failed to load model: %v", err)
	}
	model := vision.NewModel(det, nil, names)
	defer model.Close()

	capture, err := vision.OpenCapture(url)
	if err != nil {
		log.Fatalf("failed to open stream: %v", err)
	}
	defer capture.Close()

	window := vision.NewWindow("YOLOv8 Inference")
	defer window.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	frames := 0
	for ctx.Err() == nil {
		f, ok := capture.Read()
		if !ok {
			break
		}
		frames++

		res, err := model.Detect(f)
		if err != nil {
			f.Close()
			log.Fatalf("frame %d: detect: %v", frames, err)
		}
		vf := f.(*vision.Frame)
		vision.Annotate(&vf.Mat, res.Detections, model)
		quit := window.Show(vf.Mat)
		f.Close()
		if quit {
			break
		}
	}
	log.Printf("viewer stopped after %d frames", frames)
}
