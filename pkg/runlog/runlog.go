// Package runlog sets up the human-readable activity log: timestamped text
// lines mirrored to stdout and an append-only file. It is observability
// only; recovery relies solely on the identifier log.
package runlog

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Open returns a logger writing INFO-and-above text lines to stdout and,
// when path is non-empty, to an append-only file at path. The returned
// closer releases the file handle.
func Open(path string) (*slog.Logger, io.Closer, error) {
	var w io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)

	if path != "" {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open activity log %s: %w", path, err)
		}
		w = io.MultiWriter(os.Stdout, f)
		closer = f
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	return logger, closer, nil
}
