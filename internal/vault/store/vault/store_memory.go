package vault

import (
	"context"
	"fmt"
	"sync"

	"scrip/internal/vault/models"
	"scrip/pkg/domain"
	"scrip/pkg/platform/sentinel"
)

// InMemory keeps vault records in process memory guarded by a mutex. The
// mutex is the serialization substrate for this store: Execute holds it
// across validate and mutate so no interleaved partial effects are
// observable.
type InMemory struct {
	mu     sync.RWMutex
	vaults map[domain.VaultID]*models.Vault
}

// NewInMemory creates an empty in-memory vault store.
func NewInMemory() *InMemory {
	return &InMemory{
		vaults: make(map[domain.VaultID]*models.Vault),
	}
}

// Create persists a new vault. Returns ErrAlreadyUsed when a vault exists
// at the derived ID, which is how a second initialize by the same
// authority collides with the first.
func (s *InMemory) Create(ctx context.Context, v *models.Vault) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vaults[v.ID]; ok {
		return fmt.Errorf("vault %s: %w", v.ID, sentinel.ErrAlreadyUsed)
	}
	cp := *v
	s.vaults[v.ID] = &cp
	return nil
}

// FindByID returns a copy of the vault or ErrNotFound.
func (s *InMemory) FindByID(ctx context.Context, id domain.VaultID) (*models.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vaults[id]
	if !ok {
		return nil, fmt.Errorf("vault %s: %w", id, sentinel.ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

// Execute runs an atomic validate-then-mutate against one vault under the
// store lock. The mutation happens on a scratch copy; nothing becomes
// visible unless validate passes and the conservation invariant still
// holds afterwards.
func (s *InMemory) Execute(ctx context.Context, id domain.VaultID,
	validate func(*models.Vault) error, mutate func(*models.Vault)) (*models.Vault, error) {

	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.vaults[id]
	if !ok {
		return nil, fmt.Errorf("vault %s: %w", id, sentinel.ErrNotFound)
	}

	scratch := *v
	if err := validate(&scratch); err != nil {
		return nil, err
	}
	mutate(&scratch)
	if err := scratch.CheckInvariant(); err != nil {
		return nil, err
	}

	s.vaults[id] = &scratch
	cp := scratch
	return &cp, nil
}
