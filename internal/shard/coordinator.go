package shard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Procedure names a remote operation a shard can ask a peer to perform on
// its in-memory call registry.
type Procedure string

const (
	// ProcRegisterCall asks the peer to load a persisted call by id and
	// register it locally as the non-primary side.
	ProcRegisterCall Procedure = "register_call"
	// ProcPropagatePickup pushes a pickup record into the peer's copy.
	ProcPropagatePickup Procedure = "propagate_pickup"
	// ProcPropagateHold pushes a hold toggle into the peer's copy.
	ProcPropagateHold Procedure = "propagate_hold"
	// ProcEndCall tells the peer the call ended and to drop its copy.
	ProcEndCall Procedure = "end_call"
)

// Invocation is the wire unit of cross-shard signaling. Payload shape is
// owned by the procedure's handler.
type Invocation struct {
	Procedure Procedure       `json:"procedure"`
	CallID    string          `json:"call_id"`
	FromShard int             `json:"from_shard"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ErrPeerUnreachable means the target shard had no live subscriber: the
// process is down or still starting. Delivery is at-most-once; callers must
// treat the store as the source of truth, not this signal.
var ErrPeerUnreachable = errors.New("shard: peer unreachable")

// Invoker delivers invocations to peer shards.
type Invoker interface {
	Invoke(ctx context.Context, shardID int, inv Invocation) error
}

// Handler processes invocations addressed to this shard.
type Handler func(ctx context.Context, inv Invocation) error

// RedisInvoker carries invocations over Redis pub/sub, one channel per
// shard. Pub/sub gives exactly the at-most-once, no-retry semantics the
// coordination layer wants.
type RedisInvoker struct {
	rdb     *redis.Client
	shardID int
	log     *slog.Logger
}

func NewRedisInvoker(rdb *redis.Client, shardID int, log *slog.Logger) *RedisInvoker {
	return &RedisInvoker{rdb: rdb, shardID: shardID, log: log}
}

func channelFor(shardID int) string {
	return fmt.Sprintf("dtel:shard:%d", shardID)
}

func (r *RedisInvoker) Invoke(ctx context.Context, shardID int, inv Invocation) error {
	inv.FromShard = r.shardID
	buf, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("shard: marshal invocation: %w", err)
	}

	receivers, err := r.rdb.Publish(ctx, channelFor(shardID), buf).Result()
	if err != nil {
		return fmt.Errorf("%w: shard %d: %v", ErrPeerUnreachable, shardID, err)
	}
	if receivers == 0 {
		return fmt.Errorf("%w: shard %d has no subscriber", ErrPeerUnreachable, shardID)
	}
	return nil
}

// Listen subscribes to this shard's channel and dispatches invocations to
// the handler until ctx is canceled. Handler errors are logged, never
// retried; the store read path repairs any missed signal.
func (r *RedisInvoker) Listen(ctx context.Context, handle Handler) error {
	sub := r.rdb.Subscribe(ctx, channelFor(r.shardID))
	// Confirm the subscription before reporting ready; the publish-side
	// receiver count depends on it.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("shard: subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var inv Invocation
				if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
					r.log.Warn("dropping malformed invocation", "err", err)
					continue
				}
				handleCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				if err := handle(handleCtx, inv); err != nil {
					r.log.Warn("invocation handler failed",
						"procedure", string(inv.Procedure),
						"call_id", inv.CallID,
						"from_shard", inv.FromShard,
						"err", err)
				}
				cancel()
			}
		}
	}()
	return nil
}
