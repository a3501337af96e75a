package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresCallAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, 1)

	if err := svc.Append(context.Background(), Event{Type: EventTypeCallEnded}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{CallID: "c"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, 3)

	if err := svc.CallEnded(context.Background(), "c1", "", "missed"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].Reason != "missed" {
		t.Fatalf("expected reason captured")
	}
	if evs[0].Type != EventTypeCallEnded {
		t.Fatalf("expected call_ended")
	}
	if evs[0].ShardID != 3 {
		t.Fatalf("expected shard id stamped")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp filled")
	}
}
