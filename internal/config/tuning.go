package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/camera.report/internal/timeutil"
)

// ExampleConfigPath is the annotated example shipped with the repository.
const ExampleConfigPath = "config/camera.example.json"

// Defaults applied by the Get* accessors when a field is omitted.
const (
	DefaultHistoryLength       = 30
	DefaultTrackEvictionFrames = 9000
	DefaultResultsRoot         = "./Results"
	DefaultInputSize           = 640
	DefaultScoreThreshold      = 0.25
	DefaultNMSThreshold        = 0.45
	DefaultNATSSubject         = "camera.detections"
)

// TuningConfig holds the optional knobs for the tracker, viewer and query
// commands. Every field is a pointer so a partial file only overrides what
// it names.
type TuningConfig struct {
	// Track history
	HistoryLength       *int `json:"history_length,omitempty"`
	TrackEvictionFrames *int `json:"track_eviction_frames,omitempty"` // <= 0 keeps every id

	// Output
	ResultsRoot *string `json:"results_root,omitempty"`
	Timezone    *string `json:"timezone,omitempty"` // tz database name; empty uses the host zone

	// Detector
	InputSize      *int     `json:"input_size,omitempty"`
	ScoreThreshold *float64 `json:"score_threshold,omitempty"`
	NMSThreshold   *float64 `json:"nms_threshold,omitempty"`
	LabelsPath     *string  `json:"labels_path,omitempty"`

	// Mirrors
	DBPath      *string `json:"db_path,omitempty"`
	NATSURL     *string `json:"nats_url,omitempty"`
	NATSSubject *string `json:"nats_subject,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be at most 1MB.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadOrEmpty loads path when it is non-empty, otherwise returns an empty
// config so every accessor yields its default.
func LoadOrEmpty(path string) (*TuningConfig, error) {
	if path == "" {
		return EmptyTuningConfig(), nil
	}
	return LoadTuningConfig(path)
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.HistoryLength != nil && *c.HistoryLength < 1 {
		return fmt.Errorf("history_length must be at least 1, got %d", *c.HistoryLength)
	}
	if c.InputSize != nil && (*c.InputSize < 32 || *c.InputSize%32 != 0) {
		return fmt.Errorf("input_size must be a positive multiple of 32, got %d", *c.InputSize)
	}
	if c.ScoreThreshold != nil && (*c.ScoreThreshold < 0 || *c.ScoreThreshold > 1) {
		return fmt.Errorf("score_threshold must be between 0 and 1, got %f", *c.ScoreThreshold)
	}
	if c.NMSThreshold != nil && (*c.NMSThreshold < 0 || *c.NMSThreshold > 1) {
		return fmt.Errorf("nms_threshold must be between 0 and 1, got %f", *c.NMSThreshold)
	}
	if c.ResultsRoot != nil && *c.ResultsRoot == "" {
		return fmt.Errorf("results_root must not be empty")
	}
	if c.Timezone != nil && *c.Timezone != "" && !timeutil.IsZoneValid(*c.Timezone) {
		return fmt.Errorf("timezone %q is not in the tz database", *c.Timezone)
	}
	if c.NATSSubject != nil && *c.NATSSubject == "" {
		return fmt.Errorf("nats_subject must not be empty")
	}
	return nil
}

// ValidateEviction checks track_eviction_frames against the tracker's
// track_buffer. The tracker can revive an id after up to trackBuffer missed
// frames, so a shorter eviction window would forget a live id and log its
// first sighting twice.
func (c *TuningConfig) ValidateEviction(trackBuffer int) error {
	evict := c.GetTrackEvictionFrames()
	if evict > 0 && evict <= trackBuffer {
		return fmt.Errorf("track_eviction_frames (%d) must exceed the tracker track_buffer (%d)", evict, trackBuffer)
	}
	return nil
}

// GetHistoryLength returns the history_length value or the default.
func (c *TuningConfig) GetHistoryLength() int {
	if c.HistoryLength == nil {
		return DefaultHistoryLength
	}
	return *c.HistoryLength
}

// GetTrackEvictionFrames returns the track_eviction_frames value or the default.
func (c *TuningConfig) GetTrackEvictionFrames() int {
	if c.TrackEvictionFrames == nil {
		return DefaultTrackEvictionFrames
	}
	return *c.TrackEvictionFrames
}

// GetResultsRoot returns the results_root value or the default.
func (c *TuningConfig) GetResultsRoot() string {
	if c.ResultsRoot == nil {
		return DefaultResultsRoot
	}
	return *c.ResultsRoot
}

// GetInputSize returns the input_size value or the default.
func (c *TuningConfig) GetInputSize() int {
	if c.InputSize == nil {
		return DefaultInputSize
	}
	return *c.InputSize
}

// GetScoreThreshold returns the score_threshold value or the default.
func (c *TuningConfig) GetScoreThreshold() float64 {
	if c.ScoreThreshold == nil {
		return DefaultScoreThreshold
	}
	return *c.ScoreThreshold
}

// GetNMSThreshold returns the nms_threshold value or the default.
func (c *TuningConfig) GetNMSThreshold() float64 {
	if c.NMSThreshold == nil {
		return DefaultNMSThreshold
	}
	return *c.NMSThreshold
}

// GetLabelsPath returns labels_path, empty for the built-in table.
func (c *TuningConfig) GetLabelsPath() string {
	if c.LabelsPath == nil {
		return ""
	}
	return *c.LabelsPath
}

// GetDBPath returns db_path, empty when the SQLite mirror is off.
func (c *TuningConfig) GetDBPath() string {
	if c.DBPath == nil {
		return ""
	}
	return *c.DBPath
}

// GetNATSURL returns nats_url, empty when the live feed is off.
func (c *TuningConfig) GetNATSURL() string {
	if c.NATSURL == nil {
		return ""
	}
	return *c.NATSURL
}

// GetNATSSubject returns the nats_subject value or the default.
func (c *TuningConfig) GetNATSSubject() string {
	if c.NATSSubject == nil {
		return DefaultNATSSubject
	}
	return *c.NATSSubject
}

// GetTimezone returns timezone, empty for the host zone.
func (c *TuningConfig) GetTimezone() string {
	if c.Timezone == nil {
		return ""
	}
	return *c.Timezone
}
