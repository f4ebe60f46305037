package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	otellog "go.opentelemetry.io/otel/log"
)

// logBridge forwards zerolog JSON records to an OpenTelemetry logger.
type logBridge struct {
	logger otellog.Logger
}

func newLogBridge(logger otellog.Logger) *logBridge {
	return &logBridge{logger: logger}
}

var _ zerolog.LevelWriter = (*logBridge)(nil)

func (b *logBridge) Write(p []byte) (int, error) {
	return b.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel decodes one record. Records that are not JSON objects are sent
// as a plain body.
func (b *logBridge) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	var record otellog.Record
	record.SetObservedTimestamp(time.Now())
	record.SetSeverity(severityOf(level))
	record.SetSeverityText(level.String())

	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		record.SetBody(otellog.StringValue(string(p)))
		b.logger.Emit(context.Background(), record)
		return len(p), nil
	}

	if msg, ok := fields[zerolog.MessageFieldName].(string); ok {
		record.SetBody(otellog.StringValue(msg))
	}

	for key, value := range fields {
		switch key {
		case zerolog.MessageFieldName, zerolog.LevelFieldName, zerolog.TimestampFieldName:
			continue
		}
		record.AddAttributes(otellog.KeyValue{Key: key, Value: logValue(value)})
	}

	b.logger.Emit(context.Background(), record)
	return len(p), nil
}

func logValue(value interface{}) otellog.Value {
	switch v := value.(type) {
	case string:
		return otellog.StringValue(v)
	case bool:
		return otellog.BoolValue(v)
	case float64:
		if v == float64(int64(v)) {
			return otellog.Int64Value(int64(v))
		}
		return otellog.Float64Value(v)
	case nil:
		return otellog.Value{}
	default:
		return otellog.StringValue(fmt.Sprint(v))
	}
}

func severityOf(level zerolog.Level) otellog.Severity {
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
