package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/zatekoja/widgetfeedback/internal/application/services"
	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/observability"
)

// AccountIDHeader carries the caller's account when the body omits it
const AccountIDHeader = "X-Account-ID"

// FeedbackService defines the feedback operations used by the handler.
type FeedbackService interface {
	GetFeedbacks(ctx context.Context, widgetID string) ([]string, bool, error)
	AddFeedback(ctx context.Context, input services.SubmitFeedbackInput) (*services.SubmitFeedbackResult, error)
	GetStar(ctx context.Context, widgetID string) (*entities.WidgetStar, bool, error)
}

// FeedbackHandler handles widget feedback and ratings.
type FeedbackHandler struct {
	service FeedbackService
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(service FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{service: service}
}

type feedbackRequest struct {
	Feedback   string  `json:"feedback"`
	WidgetLink string  `json:"widget_link"`
	AccountID  string  `json:"account_id"`
	Star       *uint64 `json:"star"`
}

type feedbacksResponse struct {
	WidgetID  string   `json:"widget_id"`
	Feedbacks []string `json:"feedbacks"`
}

type submitFeedbackResponse struct {
	Status        string `json:"status"`
	RatingCounted bool   `json:"rating_counted"`
}

// GetFeedbacks handles GET /api/widgets/{id}/feedback
func (h *FeedbackHandler) GetFeedbacks(w http.ResponseWriter, r *http.Request) {
	widgetID := r.PathValue("id")
	if widgetID == "" {
		respondWithError(w, http.StatusBadRequest, "widget ID is required")
		return
	}

	feedbacks, ok, err := h.service.GetFeedbacks(r.Context(), widgetID)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("widget_id", widgetID).Msg("failed to get feedbacks")
		respondWithAppError(w, err, "failed to get feedbacks")
		return
	}
	if !ok {
		respondWithError(w, http.StatusNotFound, "widget has no feedback")
		return
	}

	respondWithJSON(w, http.StatusOK, feedbacksResponse{
		WidgetID:  widgetID,
		Feedbacks: feedbacks,
	})
}

// SubmitFeedback handles POST /api/widgets/{id}/feedback
func (h *FeedbackHandler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	widgetID := r.PathValue("id")
	if widgetID == "" {
		respondWithError(w, http.StatusBadRequest, "widget ID is required")
		return
	}

	var payload feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	if payload.Star == nil {
		respondWithError(w, http.StatusBadRequest, "star is required")
		return
	}

	accountID := strings.TrimSpace(payload.AccountID)
	if accountID == "" {
		accountID = strings.TrimSpace(r.Header.Get(AccountIDHeader))
	}
	if accountID == "" {
		respondWithError(w, http.StatusBadRequest, "account ID is required")
		return
	}

	result, err := h.service.AddFeedback(r.Context(), services.SubmitFeedbackInput{
		Feedback:   payload.Feedback,
		WidgetID:   widgetID,
		WidgetLink: payload.WidgetLink,
		AccountID:  accountID,
		Star:       *payload.Star,
	})
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("widget_id", widgetID).Msg("failed to submit feedback")
		respondWithAppError(w, err, "failed to submit feedback")
		return
	}

	respondWithJSON(w, http.StatusCreated, submitFeedbackResponse{
		Status:        "received",
		RatingCounted: result.RatingCounted,
	})
}

// GetStar handles GET /api/widgets/{id}/star
func (h *FeedbackHandler) GetStar(w http.ResponseWriter, r *http.Request) {
	widgetID := r.PathValue("id")
	if widgetID == "" {
		respondWithError(w, http.StatusBadRequest, "widget ID is required")
		return
	}

	star, ok, err := h.service.GetStar(r.Context(), widgetID)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("widget_id", widgetID).Msg("failed to get star")
		respondWithAppError(w, err, "failed to get star")
		return
	}
	if !ok {
		respondWithError(w, http.StatusNotFound, "widget has no ratings")
		return
	}

	respondWithJSON(w, http.StatusOK, star)
}
