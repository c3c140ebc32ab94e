package token

import (
	"context"

	"github.com/jun/wopigate/internal/model"
)

// Store persists token records keyed by token ID.
// Implementations only need per-record atomicity.
type Store interface {
	// Put inserts a new token record.
	Put(ctx context.Context, t *model.Token) error

	// Get returns the token record, or nil when it does not exist.
	Get(ctx context.Context, tokenID string) (*model.Token, error)

	// Delete removes the token record and reports whether it existed.
	Delete(ctx context.Context, tokenID string) (bool, error)
}
