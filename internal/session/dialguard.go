package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lgtm-migrator/dtel/pkg/utils"
)

// DialGuard serializes initiation attempts against one callee number across
// shards. Two shards can both pass the store's busy check before either has
// persisted a record; the guard closes that window.
type DialGuard interface {
	Acquire(ctx context.Context, number string) (bool, error)
	Release(ctx context.Context, number string)
}

// RedisDialGuard implements DialGuard over the shared Redis.
type RedisDialGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisDialGuard(rdb *redis.Client) *RedisDialGuard {
	// TTL only needs to outlive one initiation attempt; it is a crash
	// backstop, not a lease.
	return &RedisDialGuard{rdb: rdb, ttl: 30 * time.Second}
}

func (g *RedisDialGuard) Acquire(ctx context.Context, number string) (bool, error) {
	return utils.AcquireDialGuard(ctx, g.rdb, "dtel:dial:"+number, g.ttl)
}

func (g *RedisDialGuard) Release(ctx context.Context, number string) {
	_ = utils.ReleaseDialGuard(ctx, g.rdb, "dtel:dial:"+number)
}

// NopDialGuard always acquires; used in tests and single-shard setups
// without Redis.
type NopDialGuard struct{}

func (NopDialGuard) Acquire(ctx context.Context, number string) (bool, error) { return true, nil }
func (NopDialGuard) Release(ctx context.Context, number string)               {}
