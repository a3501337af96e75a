package mailbox

import (
	"context"
	"errors"
	"testing"
)

func TestMailbox_FullAndCanReceive(t *testing.T) {
	m := Mailbox{Receiving: true, MessageCount: MessageLimit - 1}
	if m.Full() || !m.CanReceive() {
		t.Fatalf("expected receiving mailbox under cap")
	}

	m.MessageCount = MessageLimit
	if !m.Full() || m.CanReceive() {
		t.Fatalf("expected full mailbox to stop receiving")
	}

	m = Mailbox{Receiving: false, MessageCount: 0}
	if m.CanReceive() {
		t.Fatalf("non-receiving mailbox must not receive")
	}
}

func TestMemoryRepo_MissingMailboxIsNotAnError(t *testing.T) {
	r := NewMemoryRepo()
	_, ok, err := r.ByNumber(context.Background(), "01100000000")
	if err != nil || ok {
		t.Fatalf("got ok=%v err=%v", ok, err)
	}

	r.Put(Mailbox{Number: "01100000000", Autoreply: "away"})
	m, ok, err := r.ByNumber(context.Background(), "01100000000")
	if err != nil || !ok || m.Autoreply != "away" {
		t.Fatalf("got %+v ok=%v err=%v", m, ok, err)
	}
}

func TestService_LeaveMessage(t *testing.T) {
	r := NewMemoryRepo()
	r.Put(Mailbox{Number: "01100000000", Receiving: true})
	svc := NewService(r)

	m, err := svc.Leave(context.Background(), "01100000000", "user-1", "call me back")
	if err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if m.ID == "" || m.Content != "call me back" {
		t.Fatalf("unexpected message: %+v", m)
	}
	if got := r.Messages("01100000000"); len(got) != 1 {
		t.Fatalf("stored %d messages, want 1", len(got))
	}
}

func TestRepo_AppendReChecksAtomically(t *testing.T) {
	r := NewMemoryRepo()
	r.Put(Mailbox{Number: "01100000000", Receiving: true, MessageCount: MessageLimit - 1})
	ctx := context.Background()

	if err := r.Append(ctx, Message{ID: "m1", Number: "01100000000"}); err != nil {
		t.Fatalf("Append() under cap error = %v", err)
	}
	// The service's pre-check can go stale under concurrency; the repo is the
	// backstop.
	if err := r.Append(ctx, Message{ID: "m2", Number: "01100000000"}); !errors.Is(err, ErrFull) {
		t.Fatalf("Append() at cap error = %v, want %v", err, ErrFull)
	}
	if err := r.Append(ctx, Message{ID: "m3", Number: "01100000009"}); !errors.Is(err, ErrNotReceiving) {
		t.Fatalf("Append() without mailbox error = %v, want %v", err, ErrNotReceiving)
	}
}

func TestService_LeaveRejections(t *testing.T) {
	r := NewMemoryRepo()
	r.Put(Mailbox{Number: "01100000001", Receiving: false})
	r.Put(Mailbox{Number: "01100000002", Receiving: true, MessageCount: MessageLimit})
	svc := NewService(r)
	ctx := context.Background()

	if _, err := svc.Leave(ctx, "01100000009", "u", "x"); !errors.Is(err, ErrNotReceiving) {
		t.Fatalf("no mailbox: err = %v, want %v", err, ErrNotReceiving)
	}
	if _, err := svc.Leave(ctx, "01100000001", "u", "x"); !errors.Is(err, ErrNotReceiving) {
		t.Fatalf("not receiving: err = %v, want %v", err, ErrNotReceiving)
	}
	if _, err := svc.Leave(ctx, "01100000002", "u", "x"); !errors.Is(err, ErrFull) {
		t.Fatalf("full: err = %v, want %v", err, ErrFull)
	}
}
