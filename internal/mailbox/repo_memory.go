package mailbox

import (
	"context"
	"sync"
)

// MemoryRepo is an in-memory Repository useful for tests.
type MemoryRepo struct {
	mu       sync.Mutex
	boxes    map[string]Mailbox
	messages map[string][]Message
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{boxes: map[string]Mailbox{}, messages: map[string][]Message{}}
}

func (r *MemoryRepo) Put(m Mailbox) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.boxes[m.Number] = m
}

func (r *MemoryRepo) ByNumber(ctx context.Context, number string) (Mailbox, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.boxes[number]
	if ok {
		m.MessageCount += len(r.messages[number])
	}
	return m, ok, nil
}

func (r *MemoryRepo) Append(ctx context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	box, ok := r.boxes[m.Number]
	if !ok || !box.Receiving {
		return ErrNotReceiving
	}
	if box.MessageCount+len(r.messages[m.Number]) >= MessageLimit {
		return ErrFull
	}
	r.messages[m.Number] = append(r.messages[m.Number], m)
	return nil
}

// Messages returns the stored entries for a number.
func (r *MemoryRepo) Messages(number string) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages[number]))
	copy(out, r.messages[number])
	return out
}
