package adapter

import (
	"context"

	"github.com/jun/wopigate/internal/model"
)

// SessionProvider resolves platform sessions.
type SessionProvider interface {
	// GetSession returns the live session with the given ID, or nil when no
	// such session exists.
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)
}
