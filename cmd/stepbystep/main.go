package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"

	"github.com/Cogwheel-Validator/spectra-step-by-step/config"
	"github.com/Cogwheel-Validator/spectra-step-by-step/contract"
	"github.com/Cogwheel-Validator/spectra-step-by-step/host"
	"github.com/Cogwheel-Validator/spectra-step-by-step/lcd"
	"github.com/Cogwheel-Validator/spectra-step-by-step/rpc"
)

var log zerolog.Logger

// components receive a child of log tagged with their name
var components = []struct {
	name string
	set  func(zerolog.Logger)
}{
	{"rpc", rpc.SetLogger},
	{"host", host.SetLogger},
	{"strategy", contract.SetLogger},
	{"lcd", lcd.SetLogger},
	{"config", config.SetLogger},
}

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Logger()
	shareLogger(nil)
}

// shareLogger hands log to the other packages. With a provider every event is also
// emitted as an OpenTelemetry log record.
func shareLogger(provider otellog.LoggerProvider) {
	for _, c := range components {
		l := log.With().Str("component", c.name).Logger()
		if provider != nil {
			l = l.Hook(rpc.NewOTelHook(provider, c.name))
		}
		c.set(l)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
