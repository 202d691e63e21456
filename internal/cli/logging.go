package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/log"

	"github.com/roach88/archivist/internal/config"
)

// newLogger builds the process logger. Text and logfmt output go through
// charmbracelet/log; json uses the standard JSON handler so lines stay
// machine-readable.
func newLogger(w io.Writer, cfg config.LogConfig) (*slog.Logger, error) {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	switch cfg.Format {
	case config.LogFormatJSON:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.Level(level),
		})), nil
	case config.LogFormatText, config.LogFormatLogfmt:
		opts := log.Options{
			Level:           level,
			ReportTimestamp: true,
			Prefix:          "archivist",
		}
		if cfg.Format == config.LogFormatLogfmt {
			opts.Formatter = log.LogfmtFormatter
		}
		return slog.New(log.NewWithOptions(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}
