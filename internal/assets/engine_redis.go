package assets

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"scrip/pkg/domain"
	"scrip/pkg/platform/sentinel"
)

const balanceKeyPrefix = "assets:bal:"

// Lua scripts make check-and-move atomic server-side; WATCH/MULTI would
// race under pipeline retries. Redis integers are signed 64-bit, which
// bounds balances at 2^63-1 on this engine.
var (
	burnScript = redis.NewScript(`
local bal = tonumber(redis.call('GET', KEYS[1]) or '0')
local amt = tonumber(ARGV[1])
if bal < amt then return -1 end
redis.call('DECRBY', KEYS[1], amt)
return 1`)

	transferScript = redis.NewScript(`
local bal = tonumber(redis.call('GET', KEYS[1]) or '0')
local amt = tonumber(ARGV[1])
if bal < amt then return -1 end
redis.call('DECRBY', KEYS[1], amt)
redis.call('INCRBY', KEYS[2], amt)
return 1`)
)

// RedisEngine keeps balances in Redis so multiple instances observe the
// same accounts. This is the production-recommended engine for
// distributed deployments.
type RedisEngine struct {
	client *redis.Client
}

// NewRedisEngine constructs a Redis-backed asset engine.
func NewRedisEngine(client *redis.Client) *RedisEngine {
	return &RedisEngine{client: client}
}

func balanceKey(asset domain.AssetID, addr domain.Address) string {
	return balanceKeyPrefix + asset.String() + ":" + addr.String()
}

// unavailable marks a failed Redis command so callers can tell an engine
// outage apart from a domain rejection.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
}

func (e *RedisEngine) Mint(ctx context.Context, asset domain.AssetID, to domain.Address, amount uint64) error {
	if err := e.client.IncrBy(ctx, balanceKey(asset, to), int64(amount)).Err(); err != nil {
		return fmt.Errorf("mint %s to %s: %w", asset, to, unavailable(err))
	}
	return nil
}

func (e *RedisEngine) Burn(ctx context.Context, asset domain.AssetID, from domain.Address, amount uint64) error {
	res, err := burnScript.Run(ctx, e.client,
		[]string{balanceKey(asset, from)}, amount).Int()
	if err != nil {
		return fmt.Errorf("burn %s from %s: %w", asset, from, unavailable(err))
	}
	if res < 0 {
		return fmt.Errorf("burn %s from %s: %w", asset, from, sentinel.ErrInsufficientFunds)
	}
	return nil
}

func (e *RedisEngine) Transfer(ctx context.Context, asset domain.AssetID, from, to domain.Address, amount uint64) error {
	res, err := transferScript.Run(ctx, e.client,
		[]string{balanceKey(asset, from), balanceKey(asset, to)}, amount).Int()
	if err != nil {
		return fmt.Errorf("transfer %s from %s: %w", asset, from, unavailable(err))
	}
	if res < 0 {
		return fmt.Errorf("transfer %s from %s: %w", asset, from, sentinel.ErrInsufficientFunds)
	}
	return nil
}

func (e *RedisEngine) Balance(ctx context.Context, asset domain.AssetID, of domain.Address) (uint64, error) {
	val, err := e.client.Get(ctx, balanceKey(asset, of)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance %s of %s: %w", asset, of, unavailable(err))
	}
	bal, err := strconv.ParseUint(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse balance %s of %s: %w", asset, of, err)
	}
	return bal, nil
}
