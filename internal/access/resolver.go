// Package access decides whether a platform session may read or write a
// document, from document ownership and share entries.
package access

import (
	"context"
	"fmt"

	"github.com/jun/wopigate/internal/adapter"
	"github.com/jun/wopigate/internal/model"
)

// Resolver answers READ/CONTRIB questions for a session on a document.
// Decisions are recomputed on every call and never cached.
type Resolver struct {
	sessions  adapter.SessionProvider
	documents adapter.DocumentStore
}

// NewResolver creates a Resolver.
func NewResolver(sessions adapter.SessionProvider, documents adapter.DocumentStore) *Resolver {
	return &Resolver{sessions: sessions, documents: documents}
}

// Can reports whether the user behind sessionID may exercise right on the
// document: the user owns it, or a share entry grants right to the user or
// to one of the user's groups. An absent session is never allowed.
func (r *Resolver) Can(ctx context.Context, sessionID, documentID string, right model.Right) (bool, error) {
	session, err := r.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return false, nil
	}

	count, err := r.documents.CountAccessible(ctx, documentID, session.UserID, session.GroupIDs, right)
	if err != nil {
		return false, fmt.Errorf("failed to count accessible documents: %w", err)
	}
	return count == 1, nil
}
