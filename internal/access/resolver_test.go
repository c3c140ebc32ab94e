package access

import (
	"context"
	"errors"
	"testing"

	"github.com/jun/wopigate/internal/adapter/dynamo"
	"github.com/jun/wopigate/internal/model"
)

func newResolver(t *testing.T) (*Resolver, *dynamo.SessionStore) {
	t.Helper()
	ctx := context.Background()

	sessions := dynamo.NewSessionStore(nil, "")
	docs := dynamo.NewDocumentStore(nil, "")
	docs.Put(ctx, &model.Document{
		ID:    "doc1",
		Name:  "notes.txt",
		Owner: "owner",
		Shared: []model.Share{
			{GroupID: "G", Read: true, Contrib: false},
		},
	})

	sessions.PutSession(ctx, &model.Session{ID: "s-owner", UserID: "owner"})
	sessions.PutSession(ctx, &model.Session{ID: "s-member", UserID: "member", GroupIDs: []string{"G"}})
	sessions.PutSession(ctx, &model.Session{ID: "s-nogroup", UserID: "member2"})

	return NewResolver(sessions, docs), sessions
}

func TestResolver_GroupReadOnlyShare(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	canRead, err := r.Can(ctx, "s-member", "doc1", model.RightRead)
	if err != nil {
		t.Fatalf("Can(READ) failed: %v", err)
	}
	if !canRead {
		t.Error("Expected group member to pass READ")
	}

	canWrite, err := r.Can(ctx, "s-member", "doc1", model.RightContrib)
	if err != nil {
		t.Fatalf("Can(CONTRIB) failed: %v", err)
	}
	if canWrite {
		t.Error("Expected group member to fail CONTRIB")
	}
}

func TestResolver_Owner(t *testing.T) {
	r, _ := newResolver(t)
	ctx := context.Background()

	for _, right := range []model.Right{model.RightRead, model.RightContrib} {
		ok, err := r.Can(ctx, "s-owner", "doc1", right)
		if err != nil || !ok {
			t.Errorf("Expected owner to have %s, got %v (%v)", right, ok, err)
		}
	}
}

func TestResolver_EmptyGroupsOnlyOwnership(t *testing.T) {
	r, _ := newResolver(t)

	ok, _ := r.Can(context.Background(), "s-nogroup", "doc1", model.RightRead)
	if ok {
		t.Error("Expected user without groups and not owner to be denied")
	}
}

func TestResolver_AbsentSession(t *testing.T) {
	r, sessions := newResolver(t)
	ctx := context.Background()

	sessions.DeleteSession(ctx, "s-owner")

	ok, err := r.Can(ctx, "s-owner", "doc1", model.RightRead)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if ok {
		t.Error("Expected absent session to be denied")
	}
}

func TestResolver_MissingDocument(t *testing.T) {
	r, _ := newResolver(t)

	ok, _ := r.Can(context.Background(), "s-owner", "nope", model.RightRead)
	if ok {
		t.Error("Expected missing document to be denied")
	}
}

type failingSessions struct{}

func (failingSessions) GetSession(context.Context, string) (*model.Session, error) {
	return nil, errors.New("boom")
}

func TestResolver_SessionError(t *testing.T) {
	r := NewResolver(failingSessions{}, dynamo.NewDocumentStore(nil, ""))

	ok, err := r.Can(context.Background(), "s", "doc1", model.RightRead)
	if err == nil {
		t.Error("Expected error from failing session provider")
	}
	if ok {
		t.Error("Expected denial on error")
	}
}
