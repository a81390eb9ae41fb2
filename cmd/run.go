package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-matcher/internal/classify"
	"github.com/kozaktomas/face-matcher/internal/config"
	"github.com/kozaktomas/face-matcher/internal/fileutil"
	"github.com/kozaktomas/face-matcher/internal/fingerprint"
	"github.com/kozaktomas/face-matcher/internal/reference"
	"github.com/kozaktomas/face-matcher/internal/report"
	"github.com/kozaktomas/face-matcher/internal/results"
	"github.com/kozaktomas/face-matcher/internal/runlog"
	"github.com/kozaktomas/face-matcher/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Classify photos against reference faces",
	Long: `Classify every photo in the input directory against the reference
faces and copy each one into matched/, almost_matched/ or not_matched/
inside a new timestamped run directory.

A photo is MATCHED when any of its faces reaches the threshold against
any reference, ALMOST_MATCHED when the best confidence lands within 0.1
below the threshold, and NOT_MATCHED otherwise. Source photos are never
modified or moved.

Examples:
  # Classify photos against a single reference face
  face-matcher run --input-dir ./photos --reference ./anna.jpg

  # Use a directory of reference faces and a stricter threshold
  face-matcher run --input-dir ./photos --reference-dir ./family --threshold 0.85

  # Classify a single photo
  face-matcher run --input-file ./party.jpg --reference ./anna.jpg`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("input-dir", "", "Directory of photos to classify")
	runCmd.Flags().String("input-file", "", "Single photo to classify")
	runCmd.Flags().String("reference", "", "Single reference face image")
	runCmd.Flags().String("reference-dir", "", "Directory of reference face images")
	runCmd.Flags().Float64("threshold", 0.8, "Matching threshold in [0, 1] (higher = stricter)")
	runCmd.Flags().String("output", "./matched_photos", "Output directory prefix for the run")

	runCmd.MarkFlagsMutuallyExclusive("input-dir", "input-file")
	runCmd.MarkFlagsOneRequired("input-dir", "input-file")
	runCmd.MarkFlagsMutuallyExclusive("reference", "reference-dir")
	runCmd.MarkFlagsOneRequired("reference", "reference-dir")
}

// runFlags holds the parsed flags for the run command.
type runFlags struct {
	inputDir     string
	inputFile    string
	reference    string
	referenceDir string
	threshold    float64
	output       string
}

func parseRunFlags(cmd *cobra.Command) (*runFlags, error) {
	flags := &runFlags{
		inputDir:     mustGetString(cmd, "input-dir"),
		inputFile:    mustGetString(cmd, "input-file"),
		reference:    mustGetString(cmd, "reference"),
		referenceDir: mustGetString(cmd, "reference-dir"),
		threshold:    mustGetFloat64(cmd, "threshold"),
		output:       mustGetString(cmd, "output"),
	}
	if flags.threshold < 0 || flags.threshold > 1 {
		return nil, fmt.Errorf("threshold must be between 0 and 1, got %v", flags.threshold)
	}
	return flags, nil
}

// collectInputPaths resolves the photos to classify from the input flags.
func collectInputPaths(flags *runFlags) ([]string, error) {
	if flags.inputFile != "" {
		if !fileutil.IsImageFile(flags.inputFile) {
			return nil, fmt.Errorf("unsupported image file: %s", flags.inputFile)
		}
		if _, err := os.Stat(flags.inputFile); err != nil {
			return nil, fmt.Errorf("input file: %w", err)
		}
		return []string{flags.inputFile}, nil
	}

	paths, err := fileutil.ListImages(flags.inputDir)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no supported images found in %s", flags.inputDir)
	}
	return paths, nil
}

// loadReferences builds the reference store from either a single image or
// a directory of images.
func loadReferences(ctx context.Context, loader *reference.Loader, flags *runFlags) (*reference.Store, error) {
	if flags.reference != "" {
		return loader.LoadImage(ctx, flags.reference)
	}
	store, _, err := loader.LoadDirectory(ctx, flags.referenceDir)
	return store, err
}

func runRun(cmd *cobra.Command, args []string) error {
	flags, err := parseRunFlags(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	detector := fingerprint.NewEmbeddingClient(cfg.Embedding.URL, cfg.Embedding.Model)
	thresholds := classify.NewThresholds(flags.threshold)

	paths, err := collectInputPaths(flags)
	if err != nil {
		return err
	}

	startedAt := time.Now()
	dirs, err := runner.PrepareRunDir(flags.output, startedAt)
	if err != nil {
		return err
	}

	logger, err := runlog.Open(dirs.Root)
	if err != nil {
		return err
	}
	defer logger.Close()

	fmt.Printf("Matching threshold: %.2f (almost range %s)\n", thresholds.Match, thresholds.AlmostRange())
	fmt.Printf("Loading reference faces...\n")
	logger.Info("starting run",
		"threshold", thresholds.Match,
		"almost_threshold", thresholds.Almost,
		"photos", len(paths),
		"output", dirs.Root)

	loader := reference.NewLoader(detector, logger.Logger, cfg.Run.MaxImageSize)
	refs, err := loadReferences(ctx, loader, flags)
	if err != nil {
		return fmt.Errorf("load references: %w", err)
	}
	fmt.Printf("Loaded %d reference face(s)\n", refs.Len())

	store, err := results.Open(ctx, filepath.Join(dirs.Root, results.FileName))
	if err != nil {
		return err
	}
	defer store.Close()

	runID, err := store.BeginRun(ctx, thresholds, refs.Len())
	if err != nil {
		return err
	}

	r := &runner.Runner{
		Detector:      detector,
		Refs:          refs,
		Logger:        logger.Logger,
		Results:       store,
		Thresholds:    thresholds,
		BatchSize:     cfg.Run.BatchSize,
		DetectTimeout: cfg.Run.DetectTimeout,
		MaxImageSize:  cfg.Run.MaxImageSize,
		ShowProgress:  isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()),
	}

	counters, runErr := r.Run(ctx, paths, dirs, runID)
	finishedAt := time.Now()

	// The summary is written even for interrupted runs so partial results
	// stay inspectable. A fresh context lets the wrap-up finish after
	// a cancellation.
	wrapCtx := context.Background()
	summary := report.Summarize(runID, counters,
		thresholds.Match, thresholds.Almost, refs.Len(), startedAt, finishedAt)
	if err := store.FinishRun(wrapCtx, runID, counters); err != nil {
		logger.Error("failed to finish run record", "error", err)
	}
	if err := report.Write(dirs.Root, summary); err != nil {
		logger.Error("failed to write summary", "error", err)
	}
	logger.Info("run finished",
		"processed", counters.Processed,
		"matched", counters.Matched,
		"almost_matched", counters.AlmostMatched,
		"not_matched", counters.NotMatched,
		"errors", counters.Errors,
		"duration", finishedAt.Sub(startedAt))

	printRunSummary(summary, dirs.Root)
	return runErr
}
