package bytetrack

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/camera.report/internal/monitoring"
)

// Config mirrors the tracker YAML files shipped with YOLO models. Keys that
// only matter to appearance-based trackers (gmc_method, with_reid, ...) are
// accepted and ignored.
type Config struct {
	TrackerType     string  `yaml:"tracker_type"`
	TrackHighThresh float64 `yaml:"track_high_thresh"`
	TrackLowThresh  float64 `yaml:"track_low_thresh"`
	NewTrackThresh  float64 `yaml:"new_track_thresh"`
	TrackBuffer     int     `yaml:"track_buffer"`
	MatchThresh     float64 `yaml:"match_thresh"`
}

// DefaultConfig matches the stock bytetrack.yaml.
func DefaultConfig() Config {
	return Config{
		TrackerType:     "bytetrack",
		TrackHighThresh: 0.25,
		TrackLowThresh:  0.1,
		NewTrackThresh:  0.25,
		TrackBuffer:     30,
		MatchThresh:     0.8,
	}
}

var builtin = map[string]string{
	"bytetrack.yaml": "bytetrack",
	"botsort.yaml":   "botsort",
}

// LoadConfig reads a tracker YAML. When path does not exist and names one of
// the stock files (bytetrack.yaml, botsort.yaml) the built-in defaults are
// used, so the default flag value works without the file on disk. Keys
// missing from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		kind, ok := builtin[filepath.Base(path)]
		if !ok {
			return Config{}, fmt.Errorf("tracker config %s: %w", path, err)
		}
		monitoring.Logf("bytetrack: %s not found, using built-in %s defaults", path, kind)
		cfg.TrackerType = kind
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read tracker config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse tracker config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid tracker config %s: %w", path, err)
	}
	if cfg.TrackerType == "botsort" {
		monitoring.Logf("bytetrack: botsort requested, associating on IoU only")
	}
	return cfg, nil
}

// Validate checks threshold ranges and the tracker type.
func (c Config) Validate() error {
	switch c.TrackerType {
	case "bytetrack", "botsort":
	default:
		return fmt.Errorf("unsupported tracker_type %q", c.TrackerType)
	}
	for name, v := range map[string]float64{
		"track_high_thresh": c.TrackHighThresh,
		"track_low_thresh":  c.TrackLowThresh,
		"new_track_thresh":  c.NewTrackThresh,
		"match_thresh":      c.MatchThresh,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %g", name, v)
		}
	}
	if c.TrackLowThresh > c.TrackHighThresh {
		return fmt.Errorf("track_low_thresh %g above track_high_thresh %g", c.TrackLowThresh, c.TrackHighThresh)
	}
	if c.TrackBuffer < 1 {
		return fmt.Errorf("track_buffer must be at least 1, got %d", c.TrackBuffer)
	}
	return nil
}
