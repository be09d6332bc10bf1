package assets

import (
	"context"
	"fmt"
	"math"
	"sync"

	"scrip/pkg/domain"
	"scrip/pkg/platform/sentinel"
)

// InMemoryEngine keeps balances in process memory. Suitable for tests and
// single-instance deployments; use RedisEngine when instances share state.
type InMemoryEngine struct {
	mu       sync.RWMutex
	balances map[accountKey]uint64
}

type accountKey struct {
	asset   domain.AssetID
	address domain.Address
}

// NewInMemoryEngine creates an empty in-memory asset engine.
func NewInMemoryEngine() *InMemoryEngine {
	return &InMemoryEngine{
		balances: make(map[accountKey]uint64),
	}
}

func (e *InMemoryEngine) Mint(ctx context.Context, asset domain.AssetID, to domain.Address, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := accountKey{asset: asset, address: to}
	if e.balances[key] > math.MaxUint64-amount {
		return fmt.Errorf("mint %s to %s: balance overflow: %w", asset, to, sentinel.ErrConflict)
	}
	e.balances[key] += amount
	return nil
}

func (e *InMemoryEngine) Burn(ctx context.Context, asset domain.AssetID, from domain.Address, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := accountKey{asset: asset, address: from}
	if e.balances[key] < amount {
		return fmt.Errorf("burn %s from %s: %w", asset, from, sentinel.ErrInsufficientFunds)
	}
	e.balances[key] -= amount
	return nil
}

func (e *InMemoryEngine) Transfer(ctx context.Context, asset domain.AssetID, from, to domain.Address, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	fromKey := accountKey{asset: asset, address: from}
	toKey := accountKey{asset: asset, address: to}
	if e.balances[fromKey] < amount {
		return fmt.Errorf("transfer %s from %s: %w", asset, from, sentinel.ErrInsufficientFunds)
	}
	if e.balances[toKey] > math.MaxUint64-amount {
		return fmt.Errorf("transfer %s to %s: balance overflow: %w", asset, to, sentinel.ErrConflict)
	}
	e.balances[fromKey] -= amount
	e.balances[toKey] += amount
	return nil
}

func (e *InMemoryEngine) Balance(ctx context.Context, asset domain.AssetID, of domain.Address) (uint64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.balances[accountKey{asset: asset, address: of}], nil
}
