// Package logger configures the application logger.
package logger

import (
	"io"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/unblockhq/unblock/types"
)

// timestamps at millisecond precision, matching the engine's clock
const timestampFormat = "2006-01-02 15:04:05.000"

// New builds a logrus logger from config. An unknown level falls back to
// info rather than failing startup.
func New(cfg types.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		if cfg.Level != "" {
			log.Warnf("invalid log level %q, using info", cfg.Level)
		}
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: timestampFormat,
			FullTimestamp:   true,
		})
	}
	return log
}

// Nop returns a logger that discards everything; used in tests.
func Nop() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}
