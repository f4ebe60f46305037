package routes

import (
	"net/http"

	"github.com/zatekoja/widgetfeedback/internal/api/handlers"
	"github.com/zatekoja/widgetfeedback/internal/api/middleware"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	feedbackHandler *handlers.FeedbackHandler
	sseHandler      *handlers.SSEHandler

	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. sseHandler and cacheMiddleware may be nil.
func NewRouter(
	feedbackHandler *handlers.FeedbackHandler,
	sseHandler *handlers.SSEHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		feedbackHandler: feedbackHandler,
		sseHandler:      sseHandler,
		cacheMiddleware: cacheMiddleware,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Widget endpoints
	r.mux.HandleFunc("GET /api/widgets/{id}/feedback", r.feedbackHandler.GetFeedbacks)
	r.mux.HandleFunc("POST /api/widgets/{id}/feedback", r.feedbackHandler.SubmitFeedback)
	r.mux.HandleFunc("GET /api/widgets/{id}/star", r.feedbackHandler.GetStar)

	// Real-time updates
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/stream/widgets/{id}", r.sseHandler.StreamWidgetUpdates)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// Observability wraps the mux directly so it sees the matched route.
	var handler http.Handler = r.mux
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
