package database

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
	"github.com/zatekoja/widgetfeedback/internal/domain/repositories"
	apperrors "github.com/zatekoja/widgetfeedback/pkg/errors"
)

// MemoryFeedbackStateAdapter keeps the encoded snapshot in process memory.
// Every call decodes a fresh copy, so a failed Update leaves no trace.
type MemoryFeedbackStateAdapter struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryFeedbackStateAdapter creates an empty in-memory state store.
func NewMemoryFeedbackStateAdapter() *MemoryFeedbackStateAdapter {
	return &MemoryFeedbackStateAdapter{}
}

var _ repositories.FeedbackStateRepository = (*MemoryFeedbackStateAdapter)(nil)

// View decodes the snapshot and passes it to fn.
func (a *MemoryFeedbackStateAdapter) View(ctx context.Context, fn func(state *entities.FeedbackState) error) error {
	a.mu.Lock()
	data := a.data
	a.mu.Unlock()

	state, err := entities.DecodeFeedbackState(data)
	if err != nil {
		return apperrors.NewInternalError("failed to load feedback state", err)
	}
	return fn(state)
}

// Update runs fn against the snapshot and keeps the result if fn succeeds.
func (a *MemoryFeedbackStateAdapter) Update(ctx context.Context, fn func(state *entities.FeedbackState) error) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	state, err := entities.DecodeFeedbackState(a.data)
	if err != nil {
		return apperrors.NewInternalError("failed to load feedback state", err)
	}

	if err := fn(state); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return apperrors.NewInternalError("failed to encode feedback state", err)
	}
	a.data = data
	return nil
}
