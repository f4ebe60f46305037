package observability

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// InitLogger initializes the global zerolog logger
func InitLogger(serviceName, env, level string) {
	initLogger(os.Stdout, serviceName, env, level)
}

// logOutput is the writer chosen by InitLogger, kept so exporters can be
// attached next to it later.
var logOutput io.Writer = os.Stderr

func initLogger(out io.Writer, serviceName, env, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if env == "development" {
		logOutput = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
		log.Logger = zerolog.New(logOutput).With().
			Timestamp().
			Str("service", serviceName).
			Logger()
		return
	}

	logOutput = out
	log.Logger = zerolog.New(logOutput).
		With().
		Timestamp().
		Caller().
		Str("service", serviceName).
		Logger()
}

// attachLogWriter sends every global log record to w as well.
func attachLogWriter(w io.Writer) {
	log.Logger = log.Logger.Output(zerolog.MultiLevelWriter(logOutput, w))
}

// LoggerFromContext returns the logger attached to ctx, or the global logger,
// enriched with the active trace and span ids
func LoggerFromContext(ctx context.Context) *zerolog.Logger {
	logger := log.Logger
	if ctxLogger := zerolog.Ctx(ctx); ctxLogger.GetLevel() != zerolog.Disabled {
		logger = *ctxLogger
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		logger = logger.With().
			Str("trace_id", span.SpanContext().TraceID().String()).
			Str("span_id", span.SpanContext().SpanID().String()).
			Logger()
	}

	return &logger
}

// GetLogger returns the global logger
func GetLogger() *zerolog.Logger {
	return &log.Logger
}
