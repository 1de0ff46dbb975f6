package rpc

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
)

// OTelHook forwards zerolog events to an OpenTelemetry logger named after the component.
// Fields added with the event builder stay in the zerolog output only.
type OTelHook struct {
	logger    otellog.Logger
	component string
}

// NewOTelHook creates a hook emitting to provider. Pass global.GetLoggerProvider() to follow the
// provider NewOTelSDK installs.
func NewOTelHook(provider otellog.LoggerProvider, component string) *OTelHook {
	return &OTelHook{logger: provider.Logger(component), component: component}
}

func (h *OTelHook) Run(e *zerolog.Event, level zerolog.Level, message string) {
	ctx := e.GetCtx()
	if ctx == nil {
		ctx = context.Background()
	}

	var record otellog.Record
	record.SetTimestamp(time.Now())
	record.SetSeverity(severity(level))
	record.SetSeverityText(level.String())
	record.SetBody(otellog.StringValue(message))
	record.AddAttributes(otellog.String("component", h.component))
	h.logger.Emit(ctx, record)
}

func severity(level zerolog.Level) otellog.Severity {
	switch level {
	case zerolog.TraceLevel:
		return otellog.SeverityTrace
	case zerolog.DebugLevel:
		return otellog.SeverityDebug
	case zerolog.InfoLevel:
		return otellog.SeverityInfo
	case zerolog.WarnLevel:
		return otellog.SeverityWarn
	case zerolog.ErrorLevel:
		return otellog.SeverityError
	case zerolog.FatalLevel, zerolog.PanicLevel:
		return otellog.SeverityFatal
	default:
		return otellog.SeverityUndefined
	}
}
