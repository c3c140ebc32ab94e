// Package token issues, validates and revokes the bearer tokens a WOPI
// client presents on every protocol call.
//
// A token is only as good as the platform session it was issued under:
// validation re-reads the live session and the user's rights on every call.
package token

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jun/wopigate/internal/adapter"
	"github.com/jun/wopigate/internal/crypto"
	"github.com/jun/wopigate/internal/model"
)

// Validation failure reasons.
const (
	ReasonMissingToken    = "missing token"
	ReasonTokenNotFound   = "token not found"
	ReasonSessionNotFound = "session not found"
	ReasonInvalidUser     = "invalid user"
	ReasonForbidden       = "insufficient rights"
)

// Authorizer decides whether a session may exercise a right on a document.
type Authorizer interface {
	Can(ctx context.Context, sessionID, documentID string, right model.Right) (bool, error)
}

// Validation is the outcome of Manager.Validate.
// Token is set whenever the token record was found, even if Valid is false.
type Validation struct {
	Valid  bool
	Token  *model.Token
	Reason string
}

// Manager issues and validates tokens.
type Manager struct {
	store     Store
	sessions  adapter.SessionProvider
	access    Authorizer
	encryptor crypto.Encryptor
	now       func() time.Time
}

// NewManager creates a Manager. Session IDs are sealed with encryptor before
// they reach the store.
func NewManager(store Store, sessions adapter.SessionProvider, access Authorizer, encryptor crypto.Encryptor) *Manager {
	return &Manager{
		store:     store,
		sessions:  sessions,
		access:    access,
		encryptor: encryptor,
		now:       time.Now,
	}
}

// Issue mints a token binding session and its user to documentID.
// Rights are not checked here; every protocol call checks them.
func (m *Manager) Issue(ctx context.Context, session *model.Session, documentID string) (*model.Token, error) {
	t := &model.Token{
		ID:          uuid.New().String(),
		SessionID:   session.ID,
		DocumentID:  documentID,
		UserID:      session.UserID,
		DisplayName: session.DisplayName,
		Date:        m.now().UTC(),
	}

	sealed, err := m.encryptor.Encrypt(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to seal session: %w", err)
	}
	record := *t
	record.SessionID = sealed

	if err := m.store.Put(ctx, &record); err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return t, nil
}

// Validate checks that tokenID exists for documentID, that its session is
// still live and still belongs to the token's user, and that the user holds
// right on the document.
func (m *Manager) Validate(ctx context.Context, tokenID, documentID string, right model.Right) Validation {
	if tokenID == "" {
		return Validation{Reason: ReasonMissingToken}
	}

	t, err := m.get(ctx, tokenID)
	if err != nil {
		return Validation{Reason: err.Error()}
	}
	if t == nil || t.DocumentID != documentID {
		return Validation{Reason: ReasonTokenNotFound}
	}

	session, err := m.sessions.GetSession(ctx, t.SessionID)
	if err != nil {
		return Validation{Token: t, Reason: fmt.Sprintf("session lookup failed: %v", err)}
	}
	if session == nil {
		return Validation{Token: t, Reason: ReasonSessionNotFound}
	}
	if session.UserID != t.UserID {
		return Validation{Token: t, Reason: ReasonInvalidUser}
	}

	can, err := m.access.Can(ctx, t.SessionID, documentID, right)
	if err != nil {
		return Validation{Token: t, Reason: fmt.Sprintf("access check failed: %v", err)}
	}
	if !can {
		return Validation{Token: t, Reason: ReasonForbidden}
	}
	return Validation{Valid: true, Token: t}
}

// Revoke deletes the token. Revoking an unknown token is not an error;
// existed reports whether a record was removed.
func (m *Manager) Revoke(ctx context.Context, tokenID string) (existed bool, err error) {
	existed, err = m.store.Delete(ctx, tokenID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	return existed, nil
}

// OwnedByUser reports whether tokenID was issued to userID for documentID.
func (m *Manager) OwnedByUser(ctx context.Context, userID, tokenID, documentID string) (bool, error) {
	t, err := m.store.Get(ctx, tokenID)
	if err != nil {
		return false, fmt.Errorf("failed to get token: %w", err)
	}
	if t == nil {
		return false, nil
	}
	return t.UserID == userID && t.DocumentID == documentID, nil
}

// get loads a token record and opens its session ID.
func (m *Manager) get(ctx context.Context, tokenID string) (*model.Token, error) {
	t, err := m.store.Get(ctx, tokenID)
	if err != nil {
		return nil, fmt.Errorf("token lookup failed: %w", err)
	}
	if t == nil {
		return nil, nil
	}

	sessionID, err := m.encryptor.Decrypt(ctx, t.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	t.SessionID = sessionID
	return t, nil
}
