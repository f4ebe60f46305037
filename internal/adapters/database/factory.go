package database

import (
	"context"
	"fmt"

	"github.com/zatekoja/widgetfeedback/internal/domain/repositories"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/clients/postgres"
	redisclient "github.com/zatekoja/widgetfeedback/internal/infrastructure/clients/redis"
	"github.com/zatekoja/widgetfeedback/pkg/config"
)

// NewStateRepository builds the feedback state backend selected by cfg. The
// redis backend needs redisClient. The returned func releases whatever the
// backend opened.
func NewStateRepository(ctx context.Context, cfg *config.Config, redisClient *redisclient.Client) (repositories.FeedbackStateRepository, func(), error) {
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		pgClient, err := postgres.NewClient(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		adapter := NewFeedbackStateAdapter(pgClient, cfg.Store.Key)
		if err := adapter.EnsureSchema(ctx); err != nil {
			pgClient.Close()
			return nil, nil, err
		}
		return adapter, func() { pgClient.Close() }, nil
	case config.StoreBackendRedis:
		if redisClient == nil {
			return nil, nil, fmt.Errorf("store backend %q requires a Redis client", cfg.Store.Backend)
		}
		return NewRedisFeedbackStateAdapter(redisClient, cfg.Store.Key), func() {}, nil
	case config.StoreBackendMemory:
		return NewMemoryFeedbackStateAdapter(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
