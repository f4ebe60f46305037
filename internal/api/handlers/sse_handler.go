package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
	"github.com/zatekoja/widgetfeedback/internal/domain/providers"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/observability"
)

const defaultHeartbeatInterval = 30 * time.Second

// SSEHandler handles Server-Sent Events for real-time widget updates
type SSEHandler struct {
	eventBus  providers.EventBus
	clients   map[string]map[chan *entities.WidgetEvent]bool // channel -> clients
	mu        sync.RWMutex
	heartbeat time.Duration
}

// NewSSEHandler creates a new SSE handler
func NewSSEHandler(eventBus providers.EventBus) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		clients:   make(map[string]map[chan *entities.WidgetEvent]bool),
		heartbeat: defaultHeartbeatInterval,
	}
}

// WithHeartbeat overrides the heartbeat interval
func (h *SSEHandler) WithHeartbeat(interval time.Duration) *SSEHandler {
	h.heartbeat = interval
	return h
}

// StreamWidgetUpdates handles SSE connections for widget-specific updates
// GET /api/stream/widgets/{id}
func (h *SSEHandler) StreamWidgetUpdates(w http.ResponseWriter, r *http.Request) {
	widgetID := r.PathValue("id")
	if widgetID == "" {
		respondWithError(w, http.StatusBadRequest, "widget ID is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondWithError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx)
	channel := providers.GetWidgetChannel(widgetID)

	eventChan, err := h.eventBus.Subscribe(ctx, channel)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to channel")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientChan := make(chan *entities.WidgetEvent, 10)
	h.registerClient(channel, clientChan)
	defer h.unregisterClient(channel, clientChan)

	h.sendEvent(w, "connected", map[string]interface{}{
		"widget_id": widgetID,
		"timestamp": time.Now(),
	})
	flusher.Flush()

	go h.forwardEvents(ctx, eventChan, clientChan)

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Str("widget_id", widgetID).Msg("client disconnected from widget stream")
			return
		case <-ticker.C:
			h.sendEvent(w, "heartbeat", map[string]interface{}{
				"timestamp": time.Now(),
			})
			flusher.Flush()
		case event, ok := <-clientChan:
			if !ok {
				logger.Debug().Str("widget_id", widgetID).Msg("event stream closed")
				return
			}
			if event == nil {
				continue
			}
			h.sendEvent(w, string(event.EventType), event)
			flusher.Flush()
		}
	}
}

// forwardEvents forwards events from the event bus to a client channel and
// closes it once the subscription ends.
func (h *SSEHandler) forwardEvents(ctx context.Context, eventChan <-chan *entities.WidgetEvent, clientChan chan<- *entities.WidgetEvent) {
	defer close(clientChan)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			select {
			case clientChan <- event:
			default:
				// client too slow, drop
			}
		}
	}
}

func (h *SSEHandler) registerClient(channel string, clientChan chan *entities.WidgetEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[channel] == nil {
		h.clients[channel] = make(map[chan *entities.WidgetEvent]bool)
	}
	h.clients[channel][clientChan] = true
}

func (h *SSEHandler) unregisterClient(channel string, clientChan chan *entities.WidgetEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if clients, exists := h.clients[channel]; exists {
		delete(clients, clientChan)
		if len(clients) == 0 {
			delete(h.clients, channel)
		}
	}
}

// sendEvent writes one SSE frame
func (h *SSEHandler) sendEvent(w http.ResponseWriter, eventType string, data interface{}) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		observability.GetLogger().Error().Err(err).Str("event", eventType).Msg("failed to marshal event data")
		return
	}

	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", jsonData)
}

// GetClientCount returns the number of connected clients
func (h *SSEHandler) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	count := 0
	for _, clients := range h.clients {
		count += len(clients)
	}
	return count
}
