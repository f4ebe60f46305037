//go:build integration

package database_test

import (
	"context"
	"os"
	"strconv"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/widgetfeedback/internal/adapters/database"
	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
	redisclient "github.com/zatekoja/widgetfeedback/internal/infrastructure/clients/redis"
	"github.com/zatekoja/widgetfeedback/pkg/config"
)

func newTestRedisClient(t *testing.T) *redisclient.Client {
	t.Helper()

	cfg := &config.RedisConfig{Host: "localhost", Port: 6379}
	if host := os.Getenv("TEST_REDIS_HOST"); host != "" {
		cfg.Host = host
	}
	if port, err := strconv.Atoi(os.Getenv("TEST_REDIS_PORT")); err == nil {
		cfg.Port = port
	}

	client, err := redisclient.NewClient(context.Background(), cfg)
	if err != nil {
		t.Skipf("Redis unavailable: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisFeedbackStateAdapter_RoundTrip(t *testing.T) {
	ctx := context.Background()
	client := newTestRedisClient(t)
	storeKey := "test-" + uuid.NewString()
	t.Cleanup(func() { client.Client().Del(ctx, "feedback:state:"+storeKey) })

	repo := database.NewRedisFeedbackStateAdapter(client, storeKey)

	require.NoError(t, repo.Update(ctx, func(state *entities.FeedbackState) error {
		state.AddFeedback("ok", "w1", "l", "alice", 5)
		return nil
	}))
	require.NoError(t, repo.Update(ctx, func(state *entities.FeedbackState) error {
		state.AddFeedback("great", "w2", "l", "alice", 1)
		return nil
	}))

	require.NoError(t, repo.View(ctx, func(state *entities.FeedbackState) error {
		_, ok := state.GetStar("w2")
		assert.False(t, ok)

		feedbacks, ok := state.GetFeedbacks("w2")
		require.True(t, ok)
		assert.Equal(t, []string{"alice said great "}, feedbacks)
		return nil
	}))
}

func TestRedisFeedbackStateAdapter_ConcurrentUpdates(t *testing.T) {
	ctx := context.Background()
	client := newTestRedisClient(t)
	storeKey := "test-" + uuid.NewString()
	t.Cleanup(func() { client.Client().Del(ctx, "feedback:state:"+storeKey) })

	repo := database.NewRedisFeedbackStateAdapter(client, storeKey)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs <- repo.Update(ctx, func(state *entities.FeedbackState) error {
				state.AddFeedback("f", "w", "l", "acc"+strconv.Itoa(i), uint64(i))
				return nil
			})
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.NoError(t, repo.View(ctx, func(state *entities.FeedbackState) error {
		ratings := state.Ratings("w")
		require.Len(t, ratings, writers)
		for i, r := range ratings {
			assert.Equal(t, uint64(i+1), r.Count)
		}
		return nil
	}))
}
