// Package runlog provides the per-run structured logger. Every run writes a
// run.log file with one JSON record per line inside its output directory.
package runlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// FileName is the log file created inside every run directory.
const FileName = "run.log"

// Logger owns the run.log file handle alongside the slog logger writing
// into it.
type Logger struct {
	*slog.Logger
	file *os.File
}

// Open creates run.log inside runDir and returns a JSON logger bound to it.
func Open(runDir string) (*Logger, error) {
	path := filepath.Join(runDir, FileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}

	opts := slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			}
			return attr
		},
	}

	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(file, &opts)),
		file:   file,
	}, nil
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	if err := l.file.Sync(); err != nil {
		l.file.Close()
		return fmt.Errorf("sync log file: %w", err)
	}
	return l.file.Close()
}
