// Package logging configures the process-wide zerolog logger. Everything else
// in the application logs through L() so output format and level are decided
// in one place.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init configures the global logger from LOG_LEVEL and LOG_FORMAT.
// LOG_FORMAT=console enables the human-readable writer for local dev;
// the default is JSON lines on stderr.
func Init() {
	level := zerolog.InfoLevel
	if s := os.Getenv("LOG_LEVEL"); s != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(s)); err == nil {
			level = parsed
		}
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "console") {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}
}

// L returns the global logger.
func L() *zerolog.Logger {
	return &log.Logger
}
