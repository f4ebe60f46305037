package observability

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

type recordingExporter struct {
	mu      sync.Mutex
	records []sdklog.Record
}

func (e *recordingExporter) Export(ctx context.Context, records []sdklog.Record) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, r := range records {
		e.records = append(e.records, r.Clone())
	}
	return nil
}

func (e *recordingExporter) Shutdown(ctx context.Context) error   { return nil }
func (e *recordingExporter) ForceFlush(ctx context.Context) error { return nil }

func TestLogBridge_ForwardsRecords(t *testing.T) {
	exporter := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	logger := zerolog.New(newLogBridge(provider.Logger("test"))).With().Timestamp().Logger()
	logger.Warn().
		Str("widget_id", "w1").
		Uint64("star", 5).
		Bool("counted", true).
		Msg("added 5 stars to w1 with count 1")

	require.Len(t, exporter.records, 1)
	record := exporter.records[0]
	assert.Equal(t, "added 5 stars to w1 with count 1", record.Body().AsString())
	assert.Equal(t, otellog.SeverityWarn, record.Severity())
	assert.Equal(t, "warn", record.SeverityText())

	attrs := map[string]otellog.Value{}
	record.WalkAttributes(func(kv otellog.KeyValue) bool {
		attrs[kv.Key] = kv.Value
		return true
	})
	assert.Equal(t, "w1", attrs["widget_id"].AsString())
	assert.Equal(t, int64(5), attrs["star"].AsInt64())
	assert.True(t, attrs["counted"].AsBool())
	assert.NotContains(t, attrs, zerolog.LevelFieldName)
	assert.NotContains(t, attrs, zerolog.TimestampFieldName)
	assert.NotContains(t, attrs, zerolog.MessageFieldName)
}

func TestLogBridge_NonJSON(t *testing.T) {
	exporter := &recordingExporter{}
	provider := sdklog.NewLoggerProvider(sdklog.WithProcessor(sdklog.NewSimpleProcessor(exporter)))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	n, err := newLogBridge(provider.Logger("test")).Write([]byte("plain text"))
	require.NoError(t, err)
	assert.Equal(t, len("plain text"), n)

	require.Len(t, exporter.records, 1)
	assert.Equal(t, "plain text", exporter.records[0].Body().AsString())
}
