package database

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
	"github.com/zatekoja/widgetfeedback/internal/domain/repositories"
	redisclient "github.com/zatekoja/widgetfeedback/internal/infrastructure/clients/redis"
	apperrors "github.com/zatekoja/widgetfeedback/pkg/errors"
	"github.com/zatekoja/widgetfeedback/pkg/retry"
)

const redisStateKeyPrefix = "feedback:state:"

// stringGetter is satisfied by both *redis.Client and *redis.Tx.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// RedisFeedbackStateAdapter persists the feedback state snapshot under a
// single Redis key. Update is an optimistic WATCH/MULTI transaction that is
// retried when another writer commits first, so fn may run more than once.
type RedisFeedbackStateAdapter struct {
	client   *redisclient.Client
	key      string
	retryCfg retry.Config
}

// NewRedisFeedbackStateAdapter creates a new Redis state adapter for storeKey.
func NewRedisFeedbackStateAdapter(client *redisclient.Client, storeKey string) *RedisFeedbackStateAdapter {
	return &RedisFeedbackStateAdapter{
		client: client,
		key:    redisStateKeyPrefix + storeKey,
		retryCfg: retry.Config{
			MaxAttempts:     10,
			InitialDelay:    5 * time.Millisecond,
			MaxDelay:        200 * time.Millisecond,
			BackoffFactor:   2.0,
			MaxTotalTimeout: 5 * time.Second,
			ShouldRetry: func(err error) bool {
				return errors.Is(err, redis.TxFailedErr)
			},
		},
	}
}

var _ repositories.FeedbackStateRepository = (*RedisFeedbackStateAdapter)(nil)

// View loads the snapshot and passes it to fn.
func (a *RedisFeedbackStateAdapter) View(ctx context.Context, fn func(state *entities.FeedbackState) error) error {
	state, err := a.load(ctx, a.client.Client())
	if err != nil {
		return err
	}
	return fn(state)
}

// Update loads the snapshot, passes it to fn and writes it back unless the
// key changed in the meantime, in which case the whole call is retried.
func (a *RedisFeedbackStateAdapter) Update(ctx context.Context, fn func(state *entities.FeedbackState) error) error {
	txf := func(tx *redis.Tx) error {
		state, err := a.load(ctx, tx)
		if err != nil {
			return err
		}

		if err := fn(state); err != nil {
			return err
		}

		data, err := json.Marshal(state)
		if err != nil {
			return apperrors.NewInternalError("failed to encode feedback state", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, a.key, data, 0)
			return nil
		})
		return err
	}

	err := retry.Do(ctx, a.retryCfg, func() error {
		return a.client.Client().Watch(ctx, txf, a.key)
	})
	if errors.Is(err, redis.TxFailedErr) {
		return apperrors.NewConflictError("feedback state kept changing during update", err)
	}
	return err
}

func (a *RedisFeedbackStateAdapter) load(ctx context.Context, cmd stringGetter) (*entities.FeedbackState, error) {
	data, err := cmd.Get(ctx, a.key).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, apperrors.NewExternalError("failed to load feedback state from Redis", err)
	}

	state, err := entities.DecodeFeedbackState(data)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load feedback state", err)
	}
	return state, nil
}
