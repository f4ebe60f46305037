package providers

import (
	"context"

	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
)

// EventBus defines the interface for publishing and subscribing to events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.WidgetEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.WidgetEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelWidgetUpdates is the channel for all widget updates
	EventChannelWidgetUpdates = "widget:updates"

	// EventChannelWidgetPrefix is the prefix for widget-specific channels
	EventChannelWidgetPrefix = "widget:events:"
)

// GetWidgetChannel returns the channel name for a specific widget
func GetWidgetChannel(widgetID string) string {
	return EventChannelWidgetPrefix + widgetID
}
