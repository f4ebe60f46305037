package services

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
	"github.com/zatekoja/widgetfeedback/internal/domain/providers"
	"github.com/zatekoja/widgetfeedback/internal/domain/repositories"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/widgetfeedback/pkg/errors"
)

// SubmitFeedbackInput is one feedback submission. AccountID is the
// authenticated caller.
type SubmitFeedbackInput struct {
	Feedback   string
	WidgetID   string
	WidgetLink string
	AccountID  string
	Star       uint64
}

// SubmitFeedbackResult reports the outcome of a submission.
type SubmitFeedbackResult struct {
	RatingCounted bool `json:"rating_counted"`
}

// FeedbackService runs feedback operations against the persisted state.
type FeedbackService struct {
	repo     repositories.FeedbackStateRepository
	eventBus providers.EventBus
	cache    providers.CacheProvider
	metrics  *observability.Metrics
}

// NewFeedbackService creates a new feedback service. eventBus and metrics
// may be nil.
func NewFeedbackService(repo repositories.FeedbackStateRepository, eventBus providers.EventBus, metrics *observability.Metrics) *FeedbackService {
	return &FeedbackService{
		repo:     repo,
		eventBus: eventBus,
		metrics:  metrics,
	}
}

// WithCache makes AddFeedback drop the widget's cached responses before it
// returns, so the submitting client reads its own write.
func (s *FeedbackService) WithCache(cache providers.CacheProvider) *FeedbackService {
	s.cache = cache
	return s
}

// GetFeedbacks returns the feedback list of a widget. ok is false when the
// widget has never received feedback.
func (s *FeedbackService) GetFeedbacks(ctx context.Context, widgetID string) (feedbacks []string, ok bool, err error) {
	ctx, span := observability.StartSpan(ctx, "FeedbackService.GetFeedbacks")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("widget.id", widgetID))

	err = s.view(ctx, func(state *entities.FeedbackState) error {
		feedbacks, ok = state.GetFeedbacks(widgetID)
		return nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, false, err
	}
	return feedbacks, ok, nil
}

// GetStar returns the weighted average rating of a widget. ok is false when
// the widget has no counted ratings.
func (s *FeedbackService) GetStar(ctx context.Context, widgetID string) (*entities.WidgetStar, bool, error) {
	ctx, span := observability.StartSpan(ctx, "FeedbackService.GetStar")
	defer span.End()
	observability.SetSpanAttributes(span, attribute.String("widget.id", widgetID))

	var (
		star entities.WidgetStar
		ok   bool
	)
	err := s.view(ctx, func(state *entities.FeedbackState) error {
		star, ok = state.GetStar(widgetID)
		return nil
	})
	if err != nil {
		observability.RecordError(span, err)
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &star, true, nil
}

// AddFeedback records a submission and, for a first-time voter, its rating.
// Events are published only after the state has been persisted.
func (s *FeedbackService) AddFeedback(ctx context.Context, input SubmitFeedbackInput) (*SubmitFeedbackResult, error) {
	ctx, span := observability.StartSpan(ctx, "FeedbackService.AddFeedback")
	defer span.End()
	observability.SetSpanAttributes(span,
		attribute.String("widget.id", input.WidgetID),
		attribute.String("account.id", input.AccountID),
	)

	logger := observability.LoggerFromContext(ctx)

	var ratingCounted bool
	start := time.Now()
	err := s.repo.Update(ctx, func(state *entities.FeedbackState) error {
		ratingCounted = !state.HasVoted(input.AccountID)
		state.WithLogger(logger).AddFeedback(input.Feedback, input.WidgetID, input.WidgetLink, input.AccountID, input.Star)
		return nil
	})
	observability.RecordStoreMetric(ctx, s.metrics, "update", time.Since(start))
	if err != nil {
		observability.RecordError(span, err)
		return nil, wrapStoreError(err)
	}

	observability.SetSpanAttributes(span, attribute.Bool("feedback.rating_counted", ratingCounted))
	observability.RecordSubmission(ctx, s.metrics, input.WidgetID, ratingCounted)

	s.invalidateCache(ctx, input.WidgetID)

	s.publish(ctx, entities.NewWidgetEvent(input.WidgetID, entities.WidgetEventTypeFeedbackAdded, input.AccountID,
		map[string]interface{}{
			"feedback": entities.FormatFeedback(input.AccountID, input.Feedback),
		}))
	if ratingCounted {
		s.publish(ctx, entities.NewWidgetEvent(input.WidgetID, entities.WidgetEventTypeRatingRecorded, input.AccountID,
			map[string]interface{}{
				"star": input.Star,
			}))
	}

	return &SubmitFeedbackResult{RatingCounted: ratingCounted}, nil
}

func (s *FeedbackService) view(ctx context.Context, fn func(state *entities.FeedbackState) error) error {
	start := time.Now()
	err := s.repo.View(ctx, fn)
	observability.RecordStoreMetric(ctx, s.metrics, "view", time.Since(start))
	if err != nil {
		return wrapStoreError(err)
	}
	return nil
}

func (s *FeedbackService) invalidateCache(ctx context.Context, widgetID string) {
	if s.cache == nil {
		return
	}

	if err := s.cache.DeletePattern(ctx, WidgetCachePattern(widgetID)); err != nil {
		observability.LoggerFromContext(ctx).Warn().
			Err(err).
			Str("widget_id", widgetID).
			Msg("failed to invalidate widget cache")
	}
}

func (s *FeedbackService) publish(ctx context.Context, event *entities.WidgetEvent) {
	if s.eventBus == nil {
		return
	}

	for _, channel := range []string{providers.EventChannelWidgetUpdates, providers.GetWidgetChannel(event.WidgetID)} {
		if err := s.eventBus.Publish(ctx, channel, event); err != nil {
			observability.LoggerFromContext(ctx).Warn().
				Err(err).
				Str("channel", channel).
				Str("event_type", string(event.EventType)).
				Msg("failed to publish widget event")
		}
	}
}

// wrapStoreError keeps typed errors from the repository and wraps anything
// else as internal.
func wrapStoreError(err error) error {
	if _, ok := apperrors.AsAppError(err); ok {
		return err
	}
	return apperrors.NewInternalError("feedback store failure", err)
}
