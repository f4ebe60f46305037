package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
	"github.com/zatekoja/widgetfeedback/internal/domain/providers"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/observability"
)

// CacheInvalidationService drops cached widget responses when a widget changes
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start begins listening for widget updates
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelWidgetUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to widget updates: %w", err)
	}

	go s.processEvents(eventChan)
	observability.GetLogger().Info().Msg("cache invalidation service started")
	return nil
}

// Stop stops the service and waits for the event loop to exit
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	<-s.done
	observability.GetLogger().Info().Msg("cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.WidgetEvent) {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			return
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

func (s *CacheInvalidationService) handleEvent(event *entities.WidgetEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger := observability.GetLogger()
	if err := s.InvalidateWidgetCache(ctx, event.WidgetID); err != nil {
		logger.Warn().Err(err).
			Str("event_id", event.ID).
			Str("widget_id", event.WidgetID).
			Msg("failed to invalidate widget cache")
		return
	}

	logger.Debug().
		Str("event_id", event.ID).
		Str("widget_id", event.WidgetID).
		Str("event_type", string(event.EventType)).
		Msg("invalidated widget cache")
}

// InvalidateWidgetCache deletes every cached response of a widget
func (s *CacheInvalidationService) InvalidateWidgetCache(ctx context.Context, widgetID string) error {
	if err := s.cache.DeletePattern(ctx, WidgetCachePattern(widgetID)); err != nil {
		return fmt.Errorf("failed to invalidate widget cache: %w", err)
	}
	return nil
}

// WidgetCachePattern returns the key pattern matching cached responses of a widget
func WidgetCachePattern(widgetID string) string {
	return providers.HTTPCacheKeyPrefix + "*/api/widgets/" + escapeGlob(widgetID) + "/*"
}

var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}
