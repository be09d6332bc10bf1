package memory

import (
	"context"
	"sync"

	"scrip/pkg/domain"
	audit "scrip/pkg/platform/audit"
)

// InMemoryStore keeps audit events in process memory. Used by tests and
// by deployments without a Kafka sink configured.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// ListByVault returns all events recorded against one vault, in append order.
func (s *InMemoryStore) ListByVault(_ context.Context, vaultID domain.VaultID) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Event
	for _, e := range s.events {
		if e.VaultID == vaultID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListAll returns all audit events across all vaults.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events...), nil
}
