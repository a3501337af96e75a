package endpoint

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository useful for tests.
// It is not intended for production use.
type MemoryRepo struct {
	mu          sync.Mutex
	byNumber    map[string]Endpoint
	busyNumbers map[string]bool
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byNumber:    map[string]Endpoint{},
		busyNumbers: map[string]bool{},
	}
}

func (r *MemoryRepo) Put(e Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Locale == "" {
		e.Locale = DefaultLocale
	}
	r.byNumber[e.Number] = e
}

// SetBusy marks a number as having a non-terminal call.
func (r *MemoryRepo) SetBusy(number string, busy bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.busyNumbers[number] = busy
}

func (r *MemoryRepo) ByNumber(ctx context.Context, number string) (Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byNumber[number]
	if !ok {
		return Endpoint{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepo) ByChannel(ctx context.Context, channelID string) (Endpoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byNumber {
		if e.ChannelID == channelID {
			return e, nil
		}
	}
	return Endpoint{}, ErrNotFound
}

func (r *MemoryRepo) FetchPair(ctx context.Context, fromNumber, toNumber string) (Pair, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out Pair
	if e, ok := r.byNumber[fromNumber]; ok {
		ep := e
		out.From = &ep
		out.FromBusy = r.busyNumbers[fromNumber]
	}
	if e, ok := r.byNumber[toNumber]; ok {
		ep := e
		out.To = &ep
		out.ToBusy = r.busyNumbers[toNumber]
	}
	return out, nil
}
