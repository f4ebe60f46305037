package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/zatekoja/widgetfeedback/internal/adapters/database"
	"github.com/zatekoja/widgetfeedback/internal/application/services"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/clients/redis"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/observability"
	"github.com/zatekoja/widgetfeedback/pkg/config"
)

// seed submits sample feedback to the configured store. Feedback is
// append-only, so every run adds another round of entries; the accounts are
// fresh each run so their ratings count.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	observability.InitLogger(cfg.OTEL.ServiceName+"-seed", cfg.App.Env, cfg.App.LogLevel)

	ctx := context.Background()

	var redisClient *redis.Client
	if cfg.Store.Backend == config.StoreBackendRedis {
		redisClient, err = redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer redisClient.Close()
	}

	repo, closeStore, err := database.NewStateRepository(ctx, cfg, redisClient)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open feedback store")
	}
	defer closeStore()

	service := services.NewFeedbackService(repo, nil, nil)

	run := uuid.New().String()[:8]
	submissions := []struct {
		widgetID string
		account  string
		feedback string
		star     uint64
	}{
		{"checkout-button", "ada", "clear and quick", 5},
		{"checkout-button", "grace", "label could be bigger", 3},
		{"checkout-button", "linus", "works", 4},
		{"search-bar", "ada", "autocomplete is great", 5},
		{"search-bar", "ken", "slow on mobile", 2},
		{"search-bar", "barbara", "fine", 4},
		{"newsletter-signup", "grace", "too many fields", 1},
	}

	for _, s := range submissions {
		account := s.account + "-" + run
		result, err := service.AddFeedback(ctx, services.SubmitFeedbackInput{
			Feedback:   s.feedback,
			WidgetID:   s.widgetID,
			WidgetLink: "https://example.com/widgets/" + s.widgetID,
			AccountID:  account,
			Star:       s.star,
		})
		if err != nil {
			log.Error().Err(err).Str("widget_id", s.widgetID).Str("account_id", account).Msg("failed to seed feedback")
			continue
		}
		log.Info().Str("widget_id", s.widgetID).Str("account_id", account).Bool("rating_counted", result.RatingCounted).Msg("seeded feedback")
	}

	for _, widgetID := range []string{"checkout-button", "search-bar", "newsletter-signup"} {
		star, ok, err := service.GetStar(ctx, widgetID)
		if err != nil || !ok {
			continue
		}
		log.Info().Str("widget_id", widgetID).Float64("average", star.Average).Msg("widget rating")
	}
}
