package onboarding

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client)
}

func TestStoreRoundTrip(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	state := NewState("acct-1", false)
	state.Profile = ProfileFields{FirstName: "Dana", LastName: "Reyes"}
	state.DomainName = "brightsmiles.dental"

	if err := store.Set(ctx, state); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	got, err := store.Get(ctx, "acct-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored state")
	}
	if got.CurrentStep != state.CurrentStep || got.DomainName != "brightsmiles.dental" {
		t.Fatalf("state did not round-trip: %+v", got)
	}
	if got.Profile.FirstName != "Dana" {
		t.Fatalf("profile did not round-trip: %+v", got.Profile)
	}
}

func TestStoreGetMissingReturnsNil(t *testing.T) {
	store := testStore(t)

	got, err := store.Get(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing state, got %+v", got)
	}
}

func TestStoreDelete(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, NewState("acct-1", false)); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Delete(ctx, "acct-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	got, err := store.Get(ctx, "acct-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != nil {
		t.Fatal("state should be destroyed")
	}
}
