package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/widgetfeedback/internal/adapters/events"
	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
	"github.com/zatekoja/widgetfeedback/internal/domain/providers"
)

func receive(t *testing.T, ch <-chan *entities.WidgetEvent) *entities.WidgetEvent {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestMemoryEventBus_PublishSubscribe(t *testing.T) {
	bus := events.NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	channel := providers.GetWidgetChannel("w1")
	ch, err := bus.Subscribe(ctx, channel)
	require.NoError(t, err)

	event := entities.NewWidgetEvent("w1", entities.WidgetEventTypeFeedbackAdded, "alice", nil)
	require.NoError(t, bus.Publish(ctx, channel, event))

	got := receive(t, ch)
	assert.Equal(t, event.ID, got.ID)
	assert.Equal(t, "w1", got.WidgetID)
}

func TestMemoryEventBus_ChannelsAreIsolated(t *testing.T) {
	bus := events.NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := bus.Subscribe(ctx, providers.GetWidgetChannel("w1"))
	require.NoError(t, err)

	event := entities.NewWidgetEvent("w2", entities.WidgetEventTypeFeedbackAdded, "bob", nil)
	require.NoError(t, bus.Publish(ctx, providers.GetWidgetChannel("w2"), event))

	select {
	case got := <-ch:
		t.Fatalf("unexpected event %v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryEventBus_ContextCancelClosesSubscription(t *testing.T) {
	bus := events.NewMemoryEventBus()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := bus.Subscribe(ctx, providers.EventChannelWidgetUpdates)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
}

func TestMemoryEventBus_Close(t *testing.T) {
	bus := events.NewMemoryEventBus()
	ctx := context.Background()

	ch, err := bus.Subscribe(ctx, providers.EventChannelWidgetUpdates)
	require.NoError(t, err)

	require.NoError(t, bus.Close())

	_, ok := <-ch
	assert.False(t, ok)

	late, err := bus.Subscribe(ctx, providers.EventChannelWidgetUpdates)
	require.NoError(t, err)
	_, ok = <-late
	assert.False(t, ok)
}
