// Package cache provides a read-through Redis cache for role lookups.
// Transfers hit the registry twice per request (sender and recipient), so
// hot entries are worth keeping close.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"scrip/internal/vault/models"
	"scrip/pkg/domain"
)

var (
	roleCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrip_role_cache_hits_total",
		Help: "Role lookups served from the Redis cache",
	})
	roleCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scrip_role_cache_misses_total",
		Help: "Role lookups that fell through to the backing store",
	})
)

const roleKeyPrefix = "roles:"

// DefaultTTL bounds staleness for cached entries that miss an explicit
// invalidation (e.g. a mutation on another instance crashing mid-flight).
const DefaultTTL = 5 * time.Minute

// RoleReader is the narrow read interface the cache wraps.
type RoleReader interface {
	Find(ctx context.Context, vaultID domain.VaultID, address domain.Address) (*models.RoleEntry, error)
}

// RoleCache is a read-through cache over a role store. Mutating callers
// must Invalidate after every registration or removal so deactivation is
// visible immediately, not at TTL expiry.
type RoleCache struct {
	client *redis.Client
	source RoleReader
	ttl    time.Duration
}

// NewRoleCache wraps source with a Redis read-through cache.
func NewRoleCache(client *redis.Client, source RoleReader) *RoleCache {
	return &RoleCache{client: client, source: source, ttl: DefaultTTL}
}

func roleKey(vaultID domain.VaultID, address domain.Address) string {
	return roleKeyPrefix + vaultID.String() + ":" + address.String()
}

// Find returns the role entry for (vault, address), consulting Redis
// first. Only found entries are cached: a not-found result must keep
// meaning "never registered", so it is always answered by the store.
func (c *RoleCache) Find(ctx context.Context, vaultID domain.VaultID, address domain.Address) (*models.RoleEntry, error) {
	key := roleKey(vaultID, address)

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var e models.RoleEntry
		if err := json.Unmarshal(raw, &e); err == nil {
			roleCacheHits.Inc()
			return &e, nil
		}
		// Unreadable payload: drop it and fall through to the store.
		_ = c.client.Del(ctx, key).Err()
	} else if !errors.Is(err, redis.Nil) {
		// Redis being down must not take lookups with it.
		return c.source.Find(ctx, vaultID, address)
	}

	roleCacheMisses.Inc()
	e, err := c.source.Find(ctx, vaultID, address)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(e); err == nil {
		_ = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	return e, nil
}

// Invalidate drops the cached entry for (vault, address).
func (c *RoleCache) Invalidate(ctx context.Context, vaultID domain.VaultID, address domain.Address) {
	_ = c.client.Del(ctx, roleKey(vaultID, address)).Err()
}
