package outbox

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists outbox entries. Insert is expected to run inside the
// same transaction as the status change it describes.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error

	// GetPending locks and returns up to limit unpublished entries, oldest first
	GetPending(ctx context.Context, limit int) ([]*Entry, error)

	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed bumps the retry count; the entry becomes failed once retries run out
	MarkFailed(ctx context.Context, id uuid.UUID) error
}
