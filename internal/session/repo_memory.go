package session

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository useful for tests. It enforces the
// same write-once/terminal guards as the Postgres implementation.
type MemoryRepo struct {
	mu   sync.Mutex
	recs map[string]Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{recs: map[string]Record{}} }

func (r *MemoryRepo) Create(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.ID] = rec
	return nil
}

func (r *MemoryRepo) ByID(ctx context.Context, id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (r *MemoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recs, id)
	return nil
}

func (r *MemoryRepo) SetPickedUp(ctx context.Context, id string, p ActionStamp) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok || rec.PickedUp != nil {
		return nil
	}
	stamp := p
	rec.PickedUp = &stamp
	r.recs[id] = rec
	return nil
}

func (r *MemoryRepo) SetHold(ctx context.Context, id string, h Hold) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok || !rec.Active {
		return nil
	}
	rec.Hold = h
	r.recs[id] = rec
	return nil
}

func (r *MemoryRepo) End(ctx context.Context, id string, e ActionStamp, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	if !ok || rec.Ended != nil {
		return nil
	}
	stamp := e
	rec.Ended = &stamp
	rec.EndReason = reason
	rec.Active = false
	r.recs[id] = rec
	return nil
}

// Active reports whether a stored record is still non-terminal; used by
// tests asserting the one-call-per-endpoint invariant.
func (r *MemoryRepo) Active(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[id]
	return ok && rec.Active
}

// Has reports whether a record exists at all.
func (r *MemoryRepo) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.recs[id]
	return ok
}

// MemoryRelayRepo is an in-memory RelayRepository useful for tests.
type MemoryRelayRepo struct {
	mu   sync.Mutex
	maps map[string]map[string]RelayMapping // call id -> original message id
}

func NewMemoryRelayRepo() *MemoryRelayRepo {
	return &MemoryRelayRepo{maps: map[string]map[string]RelayMapping{}}
}

func (r *MemoryRelayRepo) Create(ctx context.Context, m RelayMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byMsg, ok := r.maps[m.CallID]
	if !ok {
		byMsg = map[string]RelayMapping{}
		r.maps[m.CallID] = byMsg
	}
	byMsg[m.OriginalMessageID] = m
	return nil
}

func (r *MemoryRelayRepo) Delete(ctx context.Context, callID, originalMessageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if byMsg, ok := r.maps[callID]; ok {
		delete(byMsg, originalMessageID)
	}
	return nil
}

func (r *MemoryRelayRepo) ByCall(ctx context.Context, callID string) ([]RelayMapping, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RelayMapping
	for _, m := range r.maps[callID] {
		out = append(out, m)
	}
	return out, nil
}
