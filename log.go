package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"github.com/jrick/logrotate/rotator"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/term"
)

const maxLogFiles = 10

type logConfig struct {
	Debug bool   `env:"READALOUD_DEBUG"`
	File  string `env:"READALOUD_LOG_FILE"`
	JSON  bool   `env:"READALOUD_LOG_JSON"`
}

// setupLog configures the package logger. Output goes to stderr and, when
// READALOUD_LOG_FILE is set, to a rotated log file as well.
func setupLog() (func() error, error) {
	cfg, err := env.ParseAs[logConfig]()
	if err != nil {
		return nil, fmt.Errorf("error parsing log config: %w", err)
	}

	var out io.Writer = os.Stderr
	closer := func() error { return nil }

	if cfg.File != "" {
		path, err := homedir.Expand(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("unable to expand log file path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("unable to create log directory: %w", err)
		}
		r, err := rotator.New(path, 1024, false, maxLogFiles)
		if err != nil {
			return nil, fmt.Errorf("unable to create log rotator: %w", err)
		}
		out = io.MultiWriter(os.Stderr, r)
		closer = r.Close
	}

	log.SetOutput(out)
	log.SetReportTimestamp(true)
	if cfg.JSON || !term.IsTerminal(int(os.Stderr.Fd())) { //nolint:gosec
		log.SetFormatter(log.JSONFormatter)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	return closer, nil
}

// setDebug raises the log level once flags have been parsed.
func setDebug(debug bool) {
	if debug {
		log.SetLevel(log.DebugLevel)
	}
}
