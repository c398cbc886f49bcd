// README: zerolog logger construction from config.
package infra

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"laundry/internal/config"
)

func NewLogger(cfg config.LogConfig) zerolog.Logger {
	return newLogger(cfg, os.Stdout)
}

func newLogger(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "laundry-api").Logger()
}
