// Package observability wires the pipeline's operational surface: slog
// setup, prometheus run counters with an optional scrape endpoint, OTLP
// phase tracing and the end-of-run peak memory probe.
//
// Everything here writes to stderr or to side channels; stdout belongs to
// the data plane.
package observability

import (
	"log/slog"
	"os"
)

// LogFormat selects the slog handler encoding.
const (
	// LogFormatText renders human-readable key=value records.
	LogFormatText = "text"

	// LogFormatJSON renders one JSON object per record.
	LogFormatJSON = "json"
)

// SetupLogger installs the process-wide slog default and returns it.
// verbose lowers the level to debug, quiet raises it to warn.
func SetupLogger(verbose, quiet bool, format string) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	if quiet {
		level = slog.LevelWarn
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == LogFormatJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}
