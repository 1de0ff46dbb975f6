package config

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("component", "config").Logger()
}

// SetLogger replaces the package logger.
func SetLogger(l zerolog.Logger) {
	log = l
}
