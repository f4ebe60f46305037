package events

import (
	"context"
	"sync"

	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
	"github.com/zatekoja/widgetfeedback/internal/domain/providers"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/observability"
)

// MemoryEventBus delivers events to subscribers of the same process.
// It backs single-instance deployments that run without Redis.
type MemoryEventBus struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan *entities.WidgetEvent]struct{}
	closed      bool
}

// NewMemoryEventBus creates a new in-process event bus
func NewMemoryEventBus() providers.EventBus {
	return &MemoryEventBus{
		subscribers: make(map[string]map[chan *entities.WidgetEvent]struct{}),
	}
}

// Publish delivers event to every current subscriber of channel. Slow
// subscribers whose buffer is full miss the event.
func (b *MemoryEventBus) Publish(ctx context.Context, channel string, event *entities.WidgetEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for subscriber := range b.subscribers[channel] {
		select {
		case subscriber <- event:
		default:
			observability.LoggerFromContext(ctx).Warn().
				Str("channel", channel).
				Str("event_id", event.ID).
				Msg("subscriber channel full, skipping event")
		}
	}
	return nil
}

// Subscribe returns a channel of events published on channel until ctx is done
func (b *MemoryEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.WidgetEvent, error) {
	eventChan := make(chan *entities.WidgetEvent, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(eventChan)
		return eventChan, nil
	}
	if b.subscribers[channel] == nil {
		b.subscribers[channel] = make(map[chan *entities.WidgetEvent]struct{})
	}
	b.subscribers[channel][eventChan] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.removeSubscriber(channel, eventChan)
	}()

	return eventChan, nil
}

func (b *MemoryEventBus) removeSubscriber(channel string, eventChan chan *entities.WidgetEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers, ok := b.subscribers[channel]
	if !ok {
		return
	}
	if _, ok := subscribers[eventChan]; !ok {
		return
	}
	delete(subscribers, eventChan)
	close(eventChan)
	if len(subscribers) == 0 {
		delete(b.subscribers, channel)
	}
}

// Unsubscribe closes every subscription on channel
func (b *MemoryEventBus) Unsubscribe(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for subscriber := range b.subscribers[channel] {
		close(subscriber)
	}
	delete(b.subscribers, channel)
	return nil
}

// Close closes every subscription
func (b *MemoryEventBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for channel, subscribers := range b.subscribers {
		for subscriber := range subscribers {
			close(subscriber)
		}
		delete(b.subscribers, channel)
	}
	b.closed = true
	return nil
}
