package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logger fields
const (
	COMPONENT = "component"
	REQUEST   = "requestId"
	ROUTE     = "route"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

// Setup configures the global logger level and output.
// Valid levels are debug, info, warn and error; anything else falls back to info.
func Setup(level string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// New returns a logger tagged with component={name}.
// Package level loggers are created before Setup runs, so the output is fixed
// here and only the level is controlled globally.
func New(name string) zerolog.Logger {
	return zerolog.New(os.Stdout).With().Timestamp().Str(COMPONENT, name).Logger()
}
