package main

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerOptions configures the global zerolog logger from flags or
// environment.
type LoggerOptions struct {
	Level  string `long:"log-level"  env:"LOG_LEVEL"  description:"Log level: trace, debug, info, warn, error" default:"info"`
	Format string `long:"log-format" env:"LOG_FORMAT" description:"Log format: console or json"                default:"console"`
}

// Setup installs the configured level and writer on the global logger.
func (o *LoggerOptions) Setup() {
	level, err := zerolog.ParseLevel(strings.ToLower(o.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if o.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	})
}
