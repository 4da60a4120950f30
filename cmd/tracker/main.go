// Command tracker reads an RTSP stream, tracks vehicles and appends one
// record per new track to a per-camera, per-day log.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/camera.report/internal/bytetrack"
	"github.com/banshee-data/camera.report/internal/cliutil"
	"github.com/banshee-data/camera.report/internal/config"
	"github.com/banshee-data/camera.report/internal/db"
	"github.com/banshee-data/camera.report/internal/fsutil"
	"github.com/banshee-data/camera.report/internal/history"
	"github.com/banshee-data/camera.report/internal/labels"
	"github.com/banshee-data/camera.report/internal/natsfeed"
	"github.com/banshee-data/camera.report/internal/pipeline"
	"github.com/banshee-data/camera.report/internal/records"
	"github.com/banshee-data/camera.report/internal/timeutil"
	"github.com/banshee-data/camera.report/internal/version"
	"github.com/banshee-data/camera.report/internal/vision"
)

var (
	trainedWeights = flag.String("trained_weights", "", "YOLOv8 ONNX weights (env TRAINED_WEIGHTS)")
	rtspURL        = flag.String("rtsp_url", "", "RTSP stream URL (env RTSP_URL)")
	typeTracker    = flag.String("type_tracker", "bytetrack.yaml", "Tracker configuration YAML")
	device         = flag.String("device", "cuda:0", "Inference device: cpu, cuda or cuda:N")
	detailed       = flag.Bool("detailed", false, "Write every detection instead of first sightings only")
	configPath     = flag.String("config", "", "JSON tuning file")
	dbPath         = flag.String("db", "", "SQLite database to mirror records into (overrides db_path)")
	natsURL        = flag.String("nats_url", "", "NATS server to publish records to (overrides nats_url)")
	envFile        = flag.String("env", ".env", "Environment file read before flags fall back to the environment")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("tracker", version.String())
		return
	}
	if err := run(); err != nil {
		log.Printf("tracker: %v", err)
		os.Exit(1)
	}
}

// run returns instead of exiting so every deferred close, including the NATS
// flush and the database handles, happens before the process ends.
func run() error {
	if err := cliutil.LoadEnv(*envFile); err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}
	weights := cliutil.Fallback(*trainedWeights, "TRAINED_WEIGHTS")
	url := cliutil.Fallback(*rtspURL, "RTSP_URL")
	if weights == "" || url == "" {
		return errors.New("--trained_weights and --rtsp_url are required")
	}

	cfg, err := config.LoadOrEmpty(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := timeutil.SetLocalZone(cfg.GetTimezone()); err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	trackerCfg, err := bytetrack.LoadConfig(*typeTracker)
	if err != nil {
		return fmt.Errorf("failed to load tracker config: %w", err)
	}
	if err := cfg.ValidateEviction(trackerCfg.TrackBuffer); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	names, err := labels.LoadOrDefault(cfg.GetLabelsPath())
	if err != nil {
		return fmt.Errorf("failed to load labels: %w", err)
	}

	det, err := vision.NewDetector(vision.DetectorConfig{
		WeightsPath:    weights,
		Device:         *device,
		InputSize:      cfg.GetInputSize(),
		ScoreThreshold: cfg.GetScoreThreshold(),
		NMSThreshold:   cfg.GetNMSThreshold(),
	})
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}
	model := vision.NewModel(det, bytetrack.New(trackerCfg), names)
	defer model.Close()

	// Run closes the capture.
	capture, err := vision.OpenCapture(url)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	host := records.HostToken(url)
	writer := records.NewWriter(fsutil.OSFileSystem{}, cfg.GetResultsRoot(), host, *detailed)
	defer writer.Close()
	sinks := pipeline.MultiSink{writer}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		database *db.DB
		dbRun    *db.Run
	)
	if path := cliutil.FirstNonEmpty(*dbPath, cfg.GetDBPath()); path != "" {
		database, err = db.NewDB(path)
		if err != nil {
			capture.Close()
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		dbRun, err = database.StartRun(ctx, host, *detailed, time.Now())
		if err != nil {
			capture.Close()
			return fmt.Errorf("failed to start run: %w", err)
		}
		runSink, err := database.NewRunSink(ctx, dbRun)
		if err != nil {
			capture.Close()
			return fmt.Errorf("failed to prepare database sink: %w", err)
		}
		defer runSink.Close()
		sinks = append(sinks, runSink)
	}

	pub, err := natsfeed.Connect(cliutil.FirstNonEmpty(*natsURL, cfg.GetNATSURL()), cfg.GetNATSSubject(), host)
	if err != nil {
		capture.Close()
		return fmt.Errorf("failed to connect to nats: %w", err)
	}
	defer pub.Close()
	if pub.Enabled() {
		if dbRun != nil {
			pub.SetRun(dbRun.ID)
		}
		sinks = append(sinks, pub)
	}

	proc := pipeline.NewProcessor(pipeline.Config{
		History:  history.New(cfg.GetHistoryLength(), cfg.GetTrackEvictionFrames()),
		Sink:     sinks,
		Detailed: *detailed,
	})

	log.Printf("tracking %s into %s (detailed=%v, device=%s)", host, cfg.GetResultsRoot(), *detailed, *device)
	runErr := proc.Run(ctx, capture, model)

	stats := proc.Stats()
	log.Printf("stream ended: %d frames, %d with tracks, %d records, %d tracks evicted",
		stats.Frames, stats.TrackedFrames, stats.Records, stats.Evicted)
	if path := writer.Path(); path != "" {
		log.Printf("last log: %s", path)
	}

	if database != nil {
		if err := database.FinishRun(context.Background(), dbRun.ID, time.Now(), stats); err != nil {
			log.Printf("failed to finish run: %v", err)
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
