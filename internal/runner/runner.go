// Package runner drives a classification run: it walks the input photos in
// batches, classifies each one against the reference store and routes it
// into the matching bucket directory.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/face-matcher/internal/classify"
	"github.com/kozaktomas/face-matcher/internal/fileutil"
	"github.com/kozaktomas/face-matcher/internal/fingerprint"
	"github.com/kozaktomas/face-matcher/internal/imaging"
	"github.com/kozaktomas/face-matcher/internal/reference"
	"github.com/kozaktomas/face-matcher/internal/report"
	"github.com/kozaktomas/face-matcher/internal/results"
)

// RunDirs holds the per-run output directory layout.
type RunDirs struct {
	Root          string
	Matched       string
	AlmostMatched string
	NotMatched    string
}

// For maps a classification bucket to its target directory.
func (d RunDirs) For(bucket classify.Bucket) string {
	switch bucket {
	case classify.BucketMatched:
		return d.Matched
	case classify.BucketAlmostMatched:
		return d.AlmostMatched
	default:
		return d.NotMatched
	}
}

// PrepareRunDir creates a fresh timestamped run directory next to output
// with one subdirectory per bucket. An existing directory with the same
// name is replaced.
func PrepareRunDir(output string, now time.Time) (RunDirs, error) {
	root := fmt.Sprintf("%s_%s", output, now.Format("20060102_150405"))
	if err := os.RemoveAll(root); err != nil {
		return RunDirs{}, fmt.Errorf("remove existing run directory: %w", err)
	}

	dirs := RunDirs{
		Root:          root,
		Matched:       filepath.Join(root, "matched"),
		AlmostMatched: filepath.Join(root, "almost_matched"),
		NotMatched:    filepath.Join(root, "not_matched"),
	}
	for _, dir := range []string{dirs.Matched, dirs.AlmostMatched, dirs.NotMatched} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return RunDirs{}, fmt.Errorf("create run directory %s: %w", dir, err)
		}
	}
	return dirs, nil
}

// Runner classifies photos against a loaded reference store.
type Runner struct {
	Detector      fingerprint.Detector
	Refs          *reference.Store
	Logger        *slog.Logger
	Results       *results.Store
	Thresholds    classify.Thresholds
	BatchSize     int
	DetectTimeout time.Duration
	MaxImageSize  int
	ShowProgress  bool
}

// Run processes paths in batches and returns the final counters. Per-photo
// failures are isolated: the photo is logged, recorded and counted as an
// error while the run continues. Only context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, paths []string, dirs RunDirs, runID string) (report.Counters, error) {
	var counters report.Counters

	batchSize := r.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}

	var bar *progressbar.ProgressBar
	if r.ShowProgress {
		bar = progressbar.NewOptions(len(paths),
			progressbar.OptionSetDescription("Classifying photos"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	for start := 0; start < len(paths); start += batchSize {
		end := start + batchSize
		if end > len(paths) {
			end = len(paths)
		}
		r.Logger.Info("processing batch",
			"from", start+1, "to", end, "total", len(paths))

		for _, path := range paths[start:end] {
			if err := ctx.Err(); err != nil {
				return counters, fmt.Errorf("run canceled: %w", err)
			}

			counters.Processed++
			if err := r.processPhoto(ctx, path, dirs, runID, &counters); err != nil {
				counters.Errors++
				r.Logger.Error("failed to process photo", "path", path, "error", err)
				if dbErr := r.Results.RecordError(ctx, runID, path, err); dbErr != nil {
					r.Logger.Error("failed to record photo error", "path", path, "error", dbErr)
				}
			}
			if bar != nil {
				_ = bar.Add(1)
			}
		}
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	return counters, nil
}

func (r *Runner) processPhoto(ctx context.Context, path string, dirs RunDirs, runID string, counters *report.Counters) error {
	imageData, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read photo: %w", err)
	}

	imageData, err = imaging.Downscale(imageData, r.MaxImageSize)
	if err != nil {
		return fmt.Errorf("invalid photo: %w", err)
	}

	faces, err := r.detectWithTimeout(ctx, imageData)
	if err != nil {
		return fmt.Errorf("detect faces: %w", err)
	}

	embeddings := make([][]float32, len(faces))
	for i, face := range faces {
		embeddings[i] = face.Embedding
	}

	result := classify.Classify(embeddings, r.Refs.Faces(), r.Thresholds)

	if err := fileutil.CopyFileTo(path, dirs.For(result.Bucket)); err != nil {
		return fmt.Errorf("copy photo to %s: %w", result.Bucket, err)
	}

	switch result.Bucket {
	case classify.BucketMatched:
		counters.Matched++
	case classify.BucketAlmostMatched:
		counters.AlmostMatched++
	case classify.BucketNotMatched:
		counters.NotMatched++
	}

	attrs := []any{
		"path", path,
		"bucket", result.Bucket,
		"faces", result.FacesCount,
		"confidence", result.BestConfidence,
	}
	if result.Reason != "" {
		attrs = append(attrs, "reason", result.Reason)
	}
	r.Logger.Info("classified photo", attrs...)

	if err := r.Results.RecordPhoto(ctx, runID, path, result); err != nil {
		r.Logger.Error("failed to record photo result", "path", path, "error", err)
	}
	return nil
}

func (r *Runner) detectWithTimeout(ctx context.Context, imageData []byte) ([]fingerprint.FaceDetection, error) {
	if r.DetectTimeout <= 0 {
		return r.Detector.DetectFaces(ctx, imageData)
	}
	detectCtx, cancel := context.WithTimeout(ctx, r.DetectTimeout)
	defer cancel()
	return r.Detector.DetectFaces(detectCtx, imageData)
}
