// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/ckaznable/encore/internal/config"
)

// Setup applies the configured level and formatter. With toFile set, output
// goes to the configured log file (parent directories are created) so that
// a full-screen UI is not overwritten; otherwise it goes to stderr. The
// returned closer releases the file and is never nil.
func Setup(cfg config.LoggingConfig, toFile bool) (io.Closer, error) {
	log.SetLevel(cfg.Level)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})

	if !toFile {
		log.SetOutput(os.Stderr)
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	log.SetOutput(f)
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Module returns the logger entry for one component.
func Module(name string) *log.Entry {
	return log.WithFields(log.Fields{"module": name})
}
