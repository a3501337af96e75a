// Package shard locates the process that owns a channel and relays call
// state mutations between processes.
//
// No shard ever shares memory with another; the persistent store is the
// convergence point and remote invocations are at-most-once performance
// hints layered on top of it.
package shard

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/lgtm-migrator/dtel/internal/transport"
)

// ErrUnknown means the owning shard could not be determined: the channel is
// gone, the gateway is unreachable, or the guild id is malformed.
var ErrUnknown = errors.New("shard: unknown")

// Resolver computes the owning shard for a channel from the platform's
// partitioning function over the channel's parent guild id.
type Resolver struct {
	shardID    int
	shardCount int
	tp         transport.Transport
}

func NewResolver(shardID, shardCount int, tp transport.Transport) *Resolver {
	return &Resolver{shardID: shardID, shardCount: shardCount, tp: tp}
}

// Self returns this process's shard id.
func (r *Resolver) Self() int { return r.shardID }

// IsLocal reports whether a shard id names this process.
func (r *Resolver) IsLocal(id int) bool { return id == r.shardID }

// ForChannel resolves the shard owning a channel. The result is exact, not
// a guess: a single-shard fleet short-circuits, everything else goes through
// the channel's parent guild id.
func (r *Resolver) ForChannel(ctx context.Context, channelID string) (int, error) {
	if r.shardCount <= 1 {
		return r.shardID, nil
	}

	ch, err := r.tp.FetchChannel(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("%w: channel %s: %v", ErrUnknown, channelID, err)
	}
	if ch.GuildID == "" {
		// Direct-message channels are owned by shard 0 by platform convention.
		return 0, nil
	}
	return ForGuild(ch.GuildID, r.shardCount)
}

// ForGuild applies the platform partitioning function: the guild snowflake's
// timestamp bits shifted out, modulo the shard count.
func ForGuild(guildID string, shardCount int) (int, error) {
	id, err := strconv.ParseUint(guildID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: guild id %q: %v", ErrUnknown, guildID, err)
	}
	return int((id >> 22) % uint64(shardCount)), nil
}
