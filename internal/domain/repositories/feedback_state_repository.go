package repositories

import (
	"context"

	"github.com/zatekoja/widgetfeedback/internal/domain/entities"
)

// FeedbackStateRepository loads and persists the feedback state as a single
// snapshot. Implementations guarantee that calls never interleave within one
// snapshot: fn always sees the result of every previously committed Update.
type FeedbackStateRepository interface {
	// View loads the current snapshot and passes it to fn. Changes made by fn
	// are discarded.
	View(ctx context.Context, fn func(state *entities.FeedbackState) error) error

	// Update loads the current snapshot, passes it to fn and, if fn returns
	// nil, persists the whole snapshot atomically. A store that has never been
	// written starts empty.
	Update(ctx context.Context, fn func(state *entities.FeedbackState) error) error
}
