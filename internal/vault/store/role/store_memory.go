package role

import (
	"context"
	"fmt"
	"sync"

	"scrip/internal/vault/models"
	"scrip/pkg/domain"
	"scrip/pkg/platform/sentinel"
)

type entryKey struct {
	vault   domain.VaultID
	address domain.Address
}

// InMemory keeps role entries in process memory guarded by a mutex.
// Entries are tombstoned, never removed from the map, so the registry
// keeps its audit history for the life of the process.
type InMemory struct {
	mu      sync.RWMutex
	entries map[entryKey]*models.RoleEntry
}

// NewInMemory creates an empty in-memory role store.
func NewInMemory() *InMemory {
	return &InMemory{
		entries: make(map[entryKey]*models.RoleEntry),
	}
}

// Create persists a new registration. Returns ErrAlreadyUsed when an
// entry (active or tombstoned) exists for the (vault, address) pair;
// re-registration goes through removal plus a fresh entry, never
// update-in-place.
func (s *InMemory) Create(ctx context.Context, e *models.RoleEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey{vault: e.VaultID, address: e.Address}
	if _, ok := s.entries[key]; ok {
		return fmt.Errorf("role entry %s/%s: %w", e.VaultID, e.Address, sentinel.ErrAlreadyUsed)
	}
	cp := *e
	s.entries[key] = &cp
	return nil
}

// Find returns a copy of the entry or ErrNotFound. ErrNotFound means
// "never registered", which is distinct from a tombstoned entry.
func (s *InMemory) Find(ctx context.Context, vaultID domain.VaultID, address domain.Address) (*models.RoleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[entryKey{vault: vaultID, address: address}]
	if !ok {
		return nil, fmt.Errorf("role entry %s/%s: %w", vaultID, address, sentinel.ErrNotFound)
	}
	cp := *e
	return &cp, nil
}

// Execute runs an atomic validate-then-mutate against one entry under the
// store lock.
func (s *InMemory) Execute(ctx context.Context, vaultID domain.VaultID, address domain.Address,
	validate func(*models.RoleEntry) error, mutate func(*models.RoleEntry)) (*models.RoleEntry, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey{vault: vaultID, address: address}
	e, ok := s.entries[key]
	if !ok {
		return nil, fmt.Errorf("role entry %s/%s: %w", vaultID, address, sentinel.ErrNotFound)
	}

	scratch := *e
	if err := validate(&scratch); err != nil {
		return nil, err
	}
	mutate(&scratch)

	s.entries[key] = &scratch
	cp := scratch
	return &cp, nil
}
