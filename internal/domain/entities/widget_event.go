package entities

import (
	"time"

	"github.com/google/uuid"
)

// WidgetEventType represents the type of widget event
type WidgetEventType string

const (
	WidgetEventTypeFeedbackAdded  WidgetEventType = "feedback_added"
	WidgetEventTypeRatingRecorded WidgetEventType = "rating_recorded"
)

// WidgetEvent represents a real-time update event for a widget
type WidgetEvent struct {
	ID            string                 `json:"id"`
	WidgetID      string                 `json:"widget_id"`
	EventType     WidgetEventType        `json:"event_type"`
	AccountID     string                 `json:"account_id"`
	Timestamp     time.Time              `json:"timestamp"`
	ChangedFields map[string]interface{} `json:"changed_fields"`
}

// NewWidgetEvent creates a new widget event
func NewWidgetEvent(widgetID string, eventType WidgetEventType, accountID string, changedFields map[string]interface{}) *WidgetEvent {
	return &WidgetEvent{
		ID:            uuid.New().String(),
		WidgetID:      widgetID,
		EventType:     eventType,
		AccountID:     accountID,
		Timestamp:     time.Now().UTC(),
		ChangedFields: changedFields,
	}
}
