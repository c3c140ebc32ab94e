package token

import (
	"context"
	"testing"

	"github.com/jun/wopigate/internal/model"
)

func TestMockStore_PutGetDelete(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()

	if err := m.Put(ctx, &model.Token{ID: "t1", UserID: "u1"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := m.Put(ctx, &model.Token{ID: "t1"}); err == nil {
		t.Error("Expected error on duplicate token ID")
	}

	got, _ := m.Get(ctx, "t1")
	if got == nil || got.UserID != "u1" {
		t.Fatalf("Expected token for u1, got %+v", got)
	}

	existed, _ := m.Delete(ctx, "t1")
	if !existed {
		t.Error("Expected Delete to report existing record")
	}
	got, _ = m.Get(ctx, "t1")
	if got != nil {
		t.Error("Expected nil after delete")
	}
	if m.Deletes() != 1 {
		t.Errorf("Expected 1 delete call, got %d", m.Deletes())
	}
}
