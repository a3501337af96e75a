package perms

import (
	"context"
	"fmt"
	"testing"
)

func TestCachedResolver_MaintainerListWins(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, userID string) ([]string, error) {
		calls++
		return nil, nil
	}
	r := NewCachedResolver(fetch, RoleMap{}, []string{"boss"})

	lvl, err := r.Level(context.Background(), "boss")
	if err != nil || lvl != LevelMaintainer {
		t.Fatalf("got %v, %v", lvl, err)
	}
	if calls != 0 {
		t.Fatalf("maintainer lookup should not hit the fetcher")
	}
}

func TestCachedResolver_ClassifiesAndCaches(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context, userID string) ([]string, error) {
		calls++
		return []string{"r-support"}, nil
	}
	r := NewCachedResolver(fetch, RoleMap{CustomerSupport: "r-support"}, nil)

	for i := 0; i < 3; i++ {
		lvl, err := r.Level(context.Background(), "u1")
		if err != nil || lvl != LevelCustomerSupport {
			t.Fatalf("got %v, %v", lvl, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected 1 fetch, got %d", calls)
	}
}

func TestCachedResolver_EvictsOldestAtCap(t *testing.T) {
	fetched := map[string]int{}
	fetch := func(ctx context.Context, userID string) ([]string, error) {
		fetched[userID]++
		return nil, nil
	}
	r := NewCachedResolver(fetch, RoleMap{}, nil)
	r.cap = 2

	for _, u := range []string{"a", "b", "c"} {
		if _, err := r.Level(context.Background(), u); err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
	}
	// "a" was evicted; asking again re-fetches.
	if _, err := r.Level(context.Background(), "a"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if fetched["a"] != 2 {
		t.Fatalf("expected re-fetch after eviction, got %d", fetched["a"])
	}
	if fetched["b"] != 1 {
		t.Fatalf("b should still be cached")
	}
}

func TestCachedResolver_FetcherErrorDegradesToNone(t *testing.T) {
	fetch := func(ctx context.Context, userID string) ([]string, error) {
		return nil, fmt.Errorf("membership service down")
	}
	r := NewCachedResolver(fetch, RoleMap{}, nil)
	lvl, err := r.Level(context.Background(), "u1")
	if err == nil {
		t.Fatalf("expected error surfaced")
	}
	if lvl != LevelNone {
		t.Fatalf("expected LevelNone, got %v", lvl)
	}
}

func TestLevelString(t *testing.T) {
	if LevelMaintainer.String() != "maintainer" || LevelNone.String() != "none" {
		t.Fatalf("unexpected level strings")
	}
}
