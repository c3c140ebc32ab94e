package discovery

import (
	"context"
	"sync"

	"github.com/jun/wopigate/internal/model"
)

// MockStore implements Store in memory for testing and DEV_MODE.
type MockStore struct {
	records []model.DiscoveryRecord
	mu      sync.RWMutex

	// ReplaceErr, when set, makes Replace fail without touching the set.
	ReplaceErr error
}

// NewMockStore creates an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

func (m *MockStore) Replace(ctx context.Context, records []model.DiscoveryRecord) error {
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	next := make([]model.DiscoveryRecord, len(records))
	copy(next, records)

	m.mu.Lock()
	m.records = next
	m.mu.Unlock()
	return nil
}

func (m *MockStore) Find(ctx context.Context, contentType, action string) (*model.DiscoveryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r := pick(m.records, contentType, action)
	if r == nil {
		return nil, nil
	}
	found := *r
	return &found, nil
}

func (m *MockStore) List(ctx context.Context) ([]model.DiscoveryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.DiscoveryRecord, len(m.records))
	copy(out, m.records)
	return out, nil
}
