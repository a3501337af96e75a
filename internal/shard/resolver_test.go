package shard

import (
	"context"
	"errors"
	"testing"

	"github.com/lgtm-migrator/dtel/internal/transport"
)

func TestForGuild_Deterministic(t *testing.T) {
	// 427819072 >> 22 == 102; 102 % 4 == 2.
	got, err := ForGuild("427819072", 4)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != 2 {
		t.Fatalf("got shard %d, want 2", got)
	}

	if _, err := ForGuild("not-a-snowflake", 4); !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestResolver_SingleShardIsAlwaysLocal(t *testing.T) {
	tp := transport.NewMemory()
	r := NewResolver(0, 1, tp)
	got, err := r.ForChannel(context.Background(), "whatever")
	if err != nil || got != 0 {
		t.Fatalf("got %d, %v", got, err)
	}
}

func TestResolver_ForChannelUsesGuildID(t *testing.T) {
	tp := transport.NewMemory()
	tp.AddChannel(transport.Channel{ID: "c1", GuildID: "427819072"})
	r := NewResolver(0, 4, tp)

	got, err := r.ForChannel(context.Background(), "c1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != 2 {
		t.Fatalf("got shard %d, want 2", got)
	}
	if r.IsLocal(got) {
		t.Fatalf("shard 2 should not be local to shard 0")
	}
}

func TestResolver_MissingChannelIsUnknown(t *testing.T) {
	tp := transport.NewMemory()
	r := NewResolver(0, 4, tp)
	if _, err := r.ForChannel(context.Background(), "gone"); !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
}

func TestMemoryInvoker_RoutesAndFails(t *testing.T) {
	inv := NewMemoryInvoker()
	var seen []Invocation
	inv.Register(1, func(ctx context.Context, i Invocation) error {
		seen = append(seen, i)
		return nil
	})

	if err := inv.Invoke(context.Background(), 1, Invocation{Procedure: ProcEndCall, CallID: "c"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(seen) != 1 || seen[0].CallID != "c" {
		t.Fatalf("invocation not delivered")
	}

	if err := inv.Invoke(context.Background(), 2, Invocation{}); !errors.Is(err, ErrPeerUnreachable) {
		t.Fatalf("expected ErrPeerUnreachable, got %v", err)
	}

	inv.Down[1] = true
	if err := inv.Invoke(context.Background(), 1, Invocation{}); !errors.Is(err, ErrPeerUnreachable) {
		t.Fatalf("expected ErrPeerUnreachable for down shard, got %v", err)
	}
}
