package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
	"github.com/zatekoja/widgetfeedback/internal/domain/repositories"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/widgetfeedback/pkg/errors"
)

const (
	feedbackStateTable = "feedback_state"
	emptyFeedbackState = `{"widget_feedbacks":{},"widget_ratings":{},"voted_accounts":[]}`
)

const feedbackStateSchema = `CREATE TABLE IF NOT EXISTS feedback_state (
	store_key  TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	version    BIGINT NOT NULL DEFAULT 1,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// FeedbackStateAdapter persists the feedback state snapshot as one JSONB row
// in Postgres. Update holds a row lock for the duration of the call.
type FeedbackStateAdapter struct {
	client   *postgres.Client
	db       *goqu.Database
	storeKey string
}

// NewFeedbackStateAdapter creates a new feedback state adapter for storeKey.
func NewFeedbackStateAdapter(client *postgres.Client, storeKey string) *FeedbackStateAdapter {
	return &FeedbackStateAdapter{
		client:   client,
		db:       goqu.New("postgres", client.DB()),
		storeKey: storeKey,
	}
}

var _ repositories.FeedbackStateRepository = (*FeedbackStateAdapter)(nil)

// EnsureSchema creates the snapshot table if it does not exist.
func (a *FeedbackStateAdapter) EnsureSchema(ctx context.Context) error {
	if _, err := a.client.DB().ExecContext(ctx, feedbackStateSchema); err != nil {
		return apperrors.NewInternalError("failed to create feedback_state table", err)
	}
	return nil
}

// View loads the snapshot and passes it to fn.
func (a *FeedbackStateAdapter) View(ctx context.Context, fn func(state *entities.FeedbackState) error) error {
	query, args, err := a.db.From(feedbackStateTable).
		Select("state").
		Where(goqu.C("store_key").Eq(a.storeKey)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build feedback state query", err)
	}

	state, err := a.loadState(a.client.DB().QueryRowContext(ctx, query, args...))
	if err != nil {
		return err
	}
	return fn(state)
}

// Update loads the snapshot under a row lock, passes it to fn and writes the
// result back in the same transaction.
func (a *FeedbackStateAdapter) Update(ctx context.Context, fn func(state *entities.FeedbackState) error) (err error) {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = a.seedState(ctx, tx); err != nil {
		return err
	}

	query, args, err := a.db.From(feedbackStateTable).
		Select("state").
		Where(goqu.C("store_key").Eq(a.storeKey)).
		ForUpdate(exp.Wait).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build feedback state query", err)
	}

	state, err := a.loadState(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return err
	}

	if err = fn(state); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return apperrors.NewInternalError("failed to encode feedback state", err)
	}

	query, args, err = a.db.Update(feedbackStateTable).
		Set(goqu.Record{
			"state":      string(data),
			"version":    goqu.L("version + 1"),
			"updated_at": time.Now().UTC(),
		}).
		Where(goqu.C("store_key").Eq(a.storeKey)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build feedback state update", err)
	}

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to save feedback state", err)
	}

	if err = tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit feedback state", err)
	}
	return nil
}

// seedState inserts an empty snapshot for the store key unless one exists,
// so the following SELECT ... FOR UPDATE always has a row to lock.
func (a *FeedbackStateAdapter) seedState(ctx context.Context, tx *sql.Tx) error {
	query, args, err := a.db.Insert(feedbackStateTable).
		Rows(goqu.Record{
			"store_key":  a.storeKey,
			"state":      emptyFeedbackState,
			"updated_at": time.Now().UTC(),
		}).
		OnConflict(goqu.DoNothing()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build feedback state insert", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to create feedback state", err)
	}
	return nil
}

func (a *FeedbackStateAdapter) loadState(row *sql.Row) (*entities.FeedbackState, error) {
	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entities.NewFeedbackState(), nil
		}
		return nil, apperrors.NewInternalError("failed to load feedback state", err)
	}

	state, err := entities.DecodeFeedbackState(data)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to load feedback state", err)
	}
	return state, nil
}
