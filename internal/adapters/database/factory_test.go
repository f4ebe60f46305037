package database_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/widgetfeedback/internal/adapters/database"
	"github.com/zatekoja/widgetfeedback/pkg/config"
)

func TestNewStateRepository(t *testing.T) {
	ctx := context.Background()

	cfg := &config.Config{Store: config.StoreConfig{Backend: config.StoreBackendMemory, Key: "default"}}
	repo, closeFn, err := database.NewStateRepository(ctx, cfg, nil)
	require.NoError(t, err)
	defer closeFn()
	assert.IsType(t, &database.MemoryFeedbackStateAdapter{}, repo)

	cfg.Store.Backend = config.StoreBackendRedis
	_, _, err = database.NewStateRepository(ctx, cfg, nil)
	assert.Error(t, err)

	cfg.Store.Backend = "sqlite"
	_, _, err = database.NewStateRepository(ctx, cfg, nil)
	assert.Error(t, err)
}
