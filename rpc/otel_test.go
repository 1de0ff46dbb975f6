package rpc_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/zeebo/assert"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/log/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/Cogwheel-Validator/spectra-step-by-step/rpc"
)

func TestOTelHook_ForwardsEvents(t *testing.T) {
	var buf bytes.Buffer
	exporter, err := stdoutlog.New(stdoutlog.WithWriter(&buf))
	assert.NoError(t, err)
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	logger := zerolog.New(io.Discard).Level(zerolog.InfoLevel).Hook(rpc.NewOTelHook(provider, "strategy"))
	logger.Info().Str("receiver", "terra1user").Msg("Strategy planned")
	logger.Warn().Msg("strategy hops are not chained")
	logger.Debug().Msg("below the logger level")
	assert.NoError(t, provider.ForceFlush(context.Background()))

	out := buf.String()
	assert.Equal(t, strings.Count(out, "Strategy planned"), 1)
	assert.Equal(t, strings.Count(out, "strategy hops are not chained"), 1)
	assert.False(t, strings.Contains(out, "below the logger level"))
	assert.True(t, strings.Contains(out, `"strategy"`))
}

func TestNewOTelSDK_InstallsLoggerProvider(t *testing.T) {
	defer global.SetLoggerProvider(noop.NewLoggerProvider())

	shutdown, err := rpc.NewOTelSDK(context.Background(), &rpc.OTelConfig{
		ServiceName:     "stepbystep",
		ServiceVersion:  "test",
		Environment:     "LOCAL",
		EnableLogs:      true,
		DevelopmentMode: true,
	})
	assert.NoError(t, err)
	_, ok := global.GetLoggerProvider().(*sdklog.LoggerProvider)
	assert.True(t, ok)
	assert.NoError(t, shutdown(context.Background()))
}

func TestNewOTelSDK_OTLPTLSMaterial(t *testing.T) {
	defer global.SetLoggerProvider(noop.NewLoggerProvider())
	dir := t.TempDir()
	notPEM := filepath.Join(dir, "ca.pem")
	assert.NoError(t, os.WriteFile(notPEM, []byte("not a certificate"), 0o600))

	cases := map[string]string{
		"missing CA file": filepath.Join(dir, "missing.pem"),
		"CA without PEM":  notPEM,
	}
	for name, caFile := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := rpc.NewOTelSDK(context.Background(), &rpc.OTelConfig{
				ServiceName:    "stepbystep",
				EnableLogs:     true,
				UseOTLPLogs:    true,
				OTLPLogsURL:    "localhost:4318",
				OTLPCACertFile: caFile,
			})
			assert.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), "TLS config for logs"))
		})
	}

	shutdown, err := rpc.NewOTelSDK(context.Background(), &rpc.OTelConfig{
		ServiceName:  "stepbystep",
		EnableLogs:   true,
		UseOTLPLogs:  true,
		OTLPLogsURL:  "localhost:4318",
		InsecureOTLP: true,
	})
	assert.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
