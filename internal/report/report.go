// Package report aggregates run counters and writes the summary.yaml file
// placed next to the sorted photos.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the summary file created inside every run directory.
const FileName = "summary.yaml"

// Counters tracks per-run totals. Processed counts every attempted photo,
// including ones that failed; Errors counts the failures separately.
type Counters struct {
	Processed     int `yaml:"processed"`
	Matched       int `yaml:"matched"`
	AlmostMatched int `yaml:"almost_matched"`
	NotMatched    int `yaml:"not_matched"`
	Errors        int `yaml:"errors"`
}

// Summary is the serialized run report.
type Summary struct {
	RunID           string    `yaml:"run_id"`
	StartedAt       time.Time `yaml:"started_at"`
	FinishedAt      time.Time `yaml:"finished_at"`
	DurationSeconds float64   `yaml:"duration_seconds"`
	// PhotosPerSecond is omitted for instantaneous runs where the rate
	// would divide by zero.
	PhotosPerSecond float64  `yaml:"photos_per_second,omitempty"`
	Threshold       float64  `yaml:"threshold"`
	AlmostThreshold float64  `yaml:"almost_threshold"`
	ReferenceCount  int      `yaml:"reference_count"`
	Counters        Counters `yaml:"counters"`
}

// Summarize builds the run summary from counters and timing.
func Summarize(runID string, c Counters, threshold, almost float64, refCount int, start, end time.Time) Summary {
	duration := end.Sub(start).Seconds()
	summary := Summary{
		RunID:           runID,
		StartedAt:       start.UTC(),
		FinishedAt:      end.UTC(),
		DurationSeconds: duration,
		Threshold:       threshold,
		AlmostThreshold: almost,
		ReferenceCount:  refCount,
		Counters:        c,
	}
	if duration > 0 {
		summary.PhotosPerSecond = float64(c.Processed) / duration
	}
	return summary
}

// Write serializes the summary as YAML into the run directory.
func Write(runDir string, summary Summary) error {
	data, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	path := filepath.Join(runDir, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write summary %s: %w", path, err)
	}
	return nil
}
