package shard

import (
	"context"
	"fmt"
	"sync"
)

// MemoryInvoker routes invocations to in-process handlers; useful for tests
// that stand up two "shards" in one process.
type MemoryInvoker struct {
	mu       sync.Mutex
	handlers map[int]Handler

	// Down marks shards as unreachable.
	Down map[int]bool
}

func NewMemoryInvoker() *MemoryInvoker {
	return &MemoryInvoker{handlers: map[int]Handler{}, Down: map[int]bool{}}
}

// Register installs the handler for a shard id.
func (m *MemoryInvoker) Register(shardID int, h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[shardID] = h
}

func (m *MemoryInvoker) Invoke(ctx context.Context, shardID int, inv Invocation) error {
	m.mu.Lock()
	h, ok := m.handlers[shardID]
	down := m.Down[shardID]
	m.mu.Unlock()

	if down || !ok {
		return fmt.Errorf("%w: shard %d", ErrPeerUnreachable, shardID)
	}
	return h(ctx, inv)
}
