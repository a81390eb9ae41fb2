package reference

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kozaktomas/face-matcher/internal/fileutil"
	"github.com/kozaktomas/face-matcher/internal/fingerprint"
	"github.com/kozaktomas/face-matcher/internal/imaging"
)

// MaxReferenceImages caps how many files a reference directory load will
// process. Files beyond the cap are skipped with a warning, not an error.
const MaxReferenceImages = 100

// Stats reports the outcome of a directory load.
type Stats struct {
	Loaded  int
	Skipped int
}

// Loader builds a Store from reference images using the face detector.
type Loader struct {
	detector     fingerprint.Detector
	logger       *slog.Logger
	maxImageSize int
}

func NewLoader(detector fingerprint.Detector, logger *slog.Logger, maxImageSize int) *Loader {
	return &Loader{detector: detector, logger: logger, maxImageSize: maxImageSize}
}

// embedFirstFace reads one reference image and returns the embedding of its
// first detected face. Multiple faces produce a warning, zero faces an error.
func (l *Loader) embedFirstFace(ctx context.Context, path string) ([]float32, error) {
	imageData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference image: %w", err)
	}

	imageData, err = imaging.Downscale(imageData, l.maxImageSize)
	if err != nil {
		return nil, fmt.Errorf("invalid reference image %s: %w", path, err)
	}

	faces, err := l.detector.DetectFaces(ctx, imageData)
	if err != nil {
		return nil, fmt.Errorf("detect faces in %s: %w", path, err)
	}
	if len(faces) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFacesDetected, path)
	}
	if len(faces) > 1 {
		l.logger.Warn("multiple faces in reference image, using the first face",
			"path", path, "faces", len(faces))
	}

	return faces[0].Embedding, nil
}

// LoadImage builds a store from a single reference image. Fails when the
// image has no detectable face.
func (l *Loader) LoadImage(ctx context.Context, path string) (*Store, error) {
	embedding, err := l.embedFirstFace(ctx, path)
	if err != nil {
		return nil, err
	}

	store := NewStore()
	if err := store.Add(filepath.Base(path), embedding); err != nil {
		return nil, err
	}

	l.logger.Info("loaded reference face", "path", path)
	return store, nil
}

// LoadDirectory builds a store from a directory of reference images.
// Per-file failures are logged and counted as skipped; the load only fails
// when no file yields an embedding.
func (l *Loader) LoadDirectory(ctx context.Context, dir string) (*Store, Stats, error) {
	paths, err := fileutil.ListImages(dir)
	if err != nil {
		return nil, Stats{}, err
	}

	store := NewStore()
	var stats Stats

	for i, path := range paths {
		if store.Len() >= MaxReferenceImages {
			remaining := len(paths) - i
			stats.Skipped += remaining
			l.logger.Warn("reached reference image limit, skipping remaining images",
				"limit", MaxReferenceImages, "skipped", remaining)
			break
		}

		embedding, err := l.embedFirstFace(ctx, path)
		if err != nil {
			l.logger.Warn("skipping reference image", "path", path, "error", err)
			stats.Skipped++
			continue
		}

		if err := store.Add(filepath.Base(path), embedding); err != nil {
			l.logger.Warn("skipping duplicate reference identity", "path", path, "error", err)
			stats.Skipped++
			continue
		}
		stats.Loaded++
	}

	if store.Len() == 0 {
		return nil, stats, fmt.Errorf("%w: %s", ErrEmptyReferenceSet, dir)
	}

	l.logger.Info("loaded reference faces", "loaded", stats.Loaded, "skipped", stats.Skipped)
	return store, stats, nil
}
