package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/dramaplay/internal/config"
)

func getLogFilePath() (string, error) {
	dir, err := config.DefaultCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, config.AppName+".log"), nil
}

// setupLog sends log output to a file, since stdout belongs to the TUI.
func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)

	logFile, err := getLogFilePath()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}

	log.SetOutput(f)
	log.SetReportTimestamp(true)
	log.SetTimeFormat(time.RFC3339)
	log.SetLevel(log.InfoLevel)
	return f.Close, nil
}
