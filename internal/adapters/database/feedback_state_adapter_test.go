package database_test

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/widgetfeedback/internal/adapters/database"
	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
	"github.com/zatekoja/widgetfeedback/internal/infrastructure/clients/postgres"
	apperrors "github.com/zatekoja/widgetfeedback/pkg/errors"
)

const (
	selectStateSQL       = `SELECT "state" FROM "feedback_state" WHERE`
	selectStateLockedSQL = `SELECT "state" FROM "feedback_state" WHERE .+ FOR UPDATE`
	seedStateSQL         = `INSERT INTO "feedback_state" .+ ON CONFLICT DO NOTHING`
	updateStateSQL       = `UPDATE "feedback_state" SET`
)

func newMockAdapter(t *testing.T) (*database.FeedbackStateAdapter, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return database.NewFeedbackStateAdapter(postgres.NewClientFromDB(db), "default"), mock
}

// stateArg matches a JSON snapshot argument and runs check against it.
type stateArg struct {
	check func(state *entities.FeedbackState) bool
}

func (a stateArg) Match(v driver.Value) bool {
	var data []byte
	switch value := v.(type) {
	case string:
		data = []byte(value)
	case []byte:
		data = value
	default:
		return false
	}
	state, err := entities.DecodeFeedbackState(data)
	if err != nil {
		return false
	}
	return a.check(state)
}

func TestFeedbackStateAdapter_View_NoRow(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(selectStateSQL).
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows([]string{"state"}))

	called := false
	err := adapter.View(context.Background(), func(state *entities.FeedbackState) error {
		called = true
		_, ok := state.GetFeedbacks("w1")
		assert.False(t, ok)
		return nil
	})

	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackStateAdapter_View_ExistingRow(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	snapshot := `{"widget_feedbacks":{"w1":["alice said nice "]},"widget_ratings":{"w1":[{"star":5,"count":1}]},"voted_accounts":["alice"]}`
	mock.ExpectQuery(selectStateSQL).
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(snapshot))

	err := adapter.View(context.Background(), func(state *entities.FeedbackState) error {
		feedbacks, ok := state.GetFeedbacks("w1")
		require.True(t, ok)
		assert.Equal(t, []string{"alice said nice "}, feedbacks)

		star, ok := state.GetStar("w1")
		require.True(t, ok)
		assert.Equal(t, 5.0, star.Average)
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackStateAdapter_View_QueryError(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectQuery(selectStateSQL).
		WithArgs("default").
		WillReturnError(errors.New("connection reset"))

	err := adapter.View(context.Background(), func(state *entities.FeedbackState) error {
		t.Fatal("fn must not run when the snapshot cannot be loaded")
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeInternal, apperrors.TypeOf(err))
}

func TestFeedbackStateAdapter_Update_PersistsSnapshot(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	existing := `{"widget_feedbacks":{"w1":["alice said ok "]},"widget_ratings":{"w1":[{"star":5,"count":1}]},"voted_accounts":["alice"]}`

	mock.ExpectBegin()
	mock.ExpectExec(seedStateSQL).
		WithArgs(sqlmock.AnyArg(), "default", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(selectStateLockedSQL).
		WithArgs("default").
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(existing))
	mock.ExpectExec(updateStateSQL).
		WithArgs(stateArg{check: func(state *entities.FeedbackState) bool {
			feedbacks, _ := state.GetFeedbacks("w2")
			_, rated := state.GetStar("w2")
			return len(feedbacks) == 1 && feedbacks[0] == "alice said great " && !rated
		}}, sqlmock.AnyArg(), "default").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := adapter.Update(context.Background(), func(state *entities.FeedbackState) error {
		state.AddFeedback("great", "w2", "l", "alice", 1)
		return nil
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackStateAdapter_Update_FnErrorRollsBack(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec(seedStateSQL).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(selectStateLockedSQL).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(`{}`))
	mock.ExpectRollback()

	cause := errors.New("abort")
	err := adapter.Update(context.Background(), func(state *entities.FeedbackState) error {
		return cause
	})

	assert.ErrorIs(t, err, cause)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackStateAdapter_Update_SaveErrorRollsBack(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectBegin()
	mock.ExpectExec(seedStateSQL).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(selectStateLockedSQL).
		WillReturnRows(sqlmock.NewRows([]string{"state"}).AddRow(`{}`))
	mock.ExpectExec(updateStateSQL).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := adapter.Update(context.Background(), func(state *entities.FeedbackState) error {
		state.AddFeedback("f", "w", "l", "a", 1)
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeInternal, apperrors.TypeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFeedbackStateAdapter_EnsureSchema(t *testing.T) {
	adapter, mock := newMockAdapter(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS feedback_state`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, adapter.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
