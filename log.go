package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/tunebox/internal/config"
	"github.com/mitchellh/go-homedir"
)

// setupLog routes the default logger to the configured file, or to stderr
// when no file is set. The returned function closes the file.
func setupLog(c config.LogConfig, debug bool) (func() error, error) {
	opts := log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           logLevel(c.Level, debug),
	}

	if c.File == "" {
		log.SetDefault(log.NewWithOptions(os.Stderr, opts))
		return func() error { return nil }, nil
	}

	path, err := homedir.Expand(c.File)
	if err != nil {
		return nil, fmt.Errorf("unable to expand log path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	log.SetDefault(log.NewWithOptions(f, opts))
	return f.Close, nil
}

func logLevel(level string, debug bool) log.Level {
	if debug {
		return log.DebugLevel
	}
	l, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel
	}
	return l
}
