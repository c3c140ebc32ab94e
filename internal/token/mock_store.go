package token

import (
	"context"
	"fmt"
	"sync"

	"github.com/jun/wopigate/internal/model"
)

// MockStore implements Store using an in-memory map for testing and DEV_MODE.
type MockStore struct {
	tokens  map[string]model.Token
	mu      sync.Mutex
	deletes int
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		tokens: make(map[string]model.Token),
	}
}

func (m *MockStore) Put(ctx context.Context, t *model.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tokens[t.ID]; ok {
		return fmt.Errorf("token %s already exists", t.ID)
	}
	m.tokens[t.ID] = *t
	return nil
}

func (m *MockStore) Get(ctx context.Context, tokenID string) (*model.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[tokenID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (m *MockStore) Delete(ctx context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deletes++
	_, ok := m.tokens[tokenID]
	delete(m.tokens, tokenID)
	return ok, nil
}

// Deletes returns how many Delete calls the store received.
func (m *MockStore) Deletes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deletes
}

// Len returns the number of stored tokens.
func (m *MockStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}
