package token

import (
	"context"
	"strings"
	"testing"

	"github.com/jun/wopigate/internal/access"
	"github.com/jun/wopigate/internal/adapter/dynamo"
	"github.com/jun/wopigate/internal/crypto"
	"github.com/jun/wopigate/internal/model"
)

type fixture struct {
	manager  *Manager
	store    *MockStore
	sessions *dynamo.SessionStore
	session  *model.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	sessions := dynamo.NewSessionStore(nil, "")
	docs := dynamo.NewDocumentStore(nil, "")
	docs.Put(ctx, &model.Document{
		ID:     "doc1",
		Name:   "notes.txt",
		Owner:  "owner",
		Shared: []model.Share{{GroupID: "G", Read: true}},
	})

	session := &model.Session{ID: "s1", UserID: "reader", DisplayName: "Reader", GroupIDs: []string{"G"}}
	sessions.PutSession(ctx, session)

	store := NewMockStore()
	m := NewManager(store, sessions, access.NewResolver(sessions, docs), crypto.NewMockEncryptor())
	return &fixture{manager: m, store: store, sessions: sessions, session: session}
}

func TestManager_IssueBindsSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, err := f.manager.Issue(ctx, f.session, "doc1")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if tok.ID == "" || tok.UserID != "reader" || tok.DisplayName != "Reader" || tok.DocumentID != "doc1" {
		t.Errorf("Unexpected token: %+v", tok)
	}
	if tok.SessionID != "s1" {
		t.Errorf("Expected session 's1' on returned token, got %q", tok.SessionID)
	}

	stored, _ := f.store.Get(ctx, tok.ID)
	if stored.SessionID == "s1" {
		t.Error("Expected session ID to be sealed at rest")
	}
}

func TestManager_IssueDistinctTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.manager.Issue(ctx, f.session, "doc1")
	b, _ := f.manager.Issue(ctx, f.session, "doc1")
	if a.ID == b.ID {
		t.Error("Expected one token per open action")
	}
}

func TestManager_ValidateRights(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, _ := f.manager.Issue(ctx, f.session, "doc1")

	v := f.manager.Validate(ctx, tok.ID, "doc1", model.RightRead)
	if !v.Valid {
		t.Fatalf("Expected READ to be valid, got reason %q", v.Reason)
	}
	if v.Token == nil || v.Token.SessionID != "s1" {
		t.Errorf("Expected opened token record, got %+v", v.Token)
	}

	v = f.manager.Validate(ctx, tok.ID, "doc1", model.RightContrib)
	if v.Valid {
		t.Error("Expected CONTRIB to be invalid for read-only share")
	}
	if v.Reason != ReasonForbidden {
		t.Errorf("Expected reason %q, got %q", ReasonForbidden, v.Reason)
	}
}

func TestManager_ValidateSessionGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, _ := f.manager.Issue(ctx, f.session, "doc1")
	f.sessions.DeleteSession(ctx, "s1")

	for _, right := range []model.Right{model.RightRead, model.RightContrib} {
		v := f.manager.Validate(ctx, tok.ID, "doc1", right)
		if v.Valid {
			t.Errorf("Expected invalid token for %s after session ended", right)
		}
		if v.Reason != ReasonSessionNotFound {
			t.Errorf("Expected reason %q, got %q", ReasonSessionNotFound, v.Reason)
		}
	}
}

func TestManager_ValidateUserMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, _ := f.manager.Issue(ctx, f.session, "doc1")
	f.sessions.PutSession(ctx, &model.Session{ID: "s1", UserID: "someone-else", GroupIDs: []string{"G"}})

	v := f.manager.Validate(ctx, tok.ID, "doc1", model.RightRead)
	if v.Valid {
		t.Error("Expected invalid token when session user changed")
	}
	if v.Reason != ReasonInvalidUser {
		t.Errorf("Expected reason %q, got %q", ReasonInvalidUser, v.Reason)
	}
}

func TestManager_ValidateUnknownOrWrongDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, _ := f.manager.Issue(ctx, f.session, "doc1")

	if v := f.manager.Validate(ctx, "nope", "doc1", model.RightRead); v.Valid || v.Reason != ReasonTokenNotFound {
		t.Errorf("Unknown token: got %+v", v)
	}
	if v := f.manager.Validate(ctx, tok.ID, "doc2", model.RightRead); v.Valid || v.Reason != ReasonTokenNotFound {
		t.Errorf("Wrong document: got %+v", v)
	}
	if v := f.manager.Validate(ctx, "", "doc1", model.RightRead); v.Valid || v.Reason != ReasonMissingToken {
		t.Errorf("Missing token: got %+v", v)
	}
}

func TestManager_RevokeIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, _ := f.manager.Issue(ctx, f.session, "doc1")

	existed, err := f.manager.Revoke(ctx, tok.ID)
	if err != nil || !existed {
		t.Fatalf("First revoke: existed=%v err=%v", existed, err)
	}
	existed, err = f.manager.Revoke(ctx, tok.ID)
	if err != nil {
		t.Fatalf("Second revoke should not fail: %v", err)
	}
	if existed {
		t.Error("Expected second revoke to report no record")
	}

	v := f.manager.Validate(ctx, tok.ID, "doc1", model.RightRead)
	if v.Valid {
		t.Error("Expected revoked token to be invalid")
	}
}

func TestManager_OwnedByUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tok, _ := f.manager.Issue(ctx, f.session, "doc1")

	tests := []struct {
		user, token, doc string
		want             bool
	}{
		{"reader", tok.ID, "doc1", true},
		{"other", tok.ID, "doc1", false},
		{"reader", tok.ID, "doc2", false},
		{"reader", "unknown", "doc1", false},
	}
	for _, tc := range tests {
		got, err := f.manager.OwnedByUser(ctx, tc.user, tc.token, tc.doc)
		if err != nil {
			t.Fatalf("OwnedByUser error: %v", err)
		}
		if got != tc.want {
			t.Errorf("OwnedByUser(%s, %s, %s) = %v, want %v", tc.user, tc.token, tc.doc, got, tc.want)
		}
	}
}

func TestManager_ValidateCorruptSeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.store.Put(ctx, &model.Token{ID: "raw", SessionID: "s1", DocumentID: "doc1", UserID: "reader"})

	v := f.manager.Validate(ctx, "raw", "doc1", model.RightRead)
	if v.Valid {
		t.Error("Expected token with unsealed session to be invalid")
	}
	if !strings.Contains(v.Reason, "failed to open session") {
		t.Errorf("Unexpected reason %q", v.Reason)
	}
}
