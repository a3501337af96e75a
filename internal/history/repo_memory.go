package history

import (
	"context"
	"sync"
	"time"

	"github.com/lgtm-migrator/dtel/internal/session"
)

// MemoryRepo is a simple in-memory history repository for tests.

type MemoryRepo struct {
	mu sync.Mutex

	Calls    []session.Record
	Mappings []session.RelayMapping
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) CallByID(ctx context.Context, callID string) (session.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.Calls {
		if rec.ID == callID {
			return rec, nil
		}
	}
	return session.Record{}, session.ErrNotFound
}

func (r *MemoryRepo) ListCalls(ctx context.Context, from, to time.Time) ([]session.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Record, 0)
	for _, rec := range r.Calls {
		if rec.Started.At.Before(from) || !rec.Started.At.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *MemoryRepo) CountMessages(ctx context.Context, callID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.Mappings {
		if m.CallID == callID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepo) ListMappings(ctx context.Context, callID string) ([]session.RelayMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.RelayMapping, 0)
	for _, m := range r.Mappings {
		if m.CallID == callID {
			out = append(out, m)
		}
	}
	return out, nil
}
