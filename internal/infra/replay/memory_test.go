package replay

import (
	"context"
	"testing"
	"time"

	"gatepass/internal/clock"
)

func TestMemoryStoreClaims(t *testing.T) {
	c := clock.NewFake(time.Unix(1_700_000_000, 0))
	store := NewMemoryStore(c)
	ctx := context.Background()

	holder, err := store.Claim(ctx, "abc", "north", 30*time.Second)
	if err != nil || holder != "north" {
		t.Fatalf("first claim: %s %v", holder, err)
	}
	if holder, _ := store.Claim(ctx, "abc", "north", 30*time.Second); holder != "north" {
		t.Fatalf("same gate should keep its claim, got %s", holder)
	}
	if holder, _ := store.Claim(ctx, "abc", "south", 30*time.Second); holder != "north" {
		t.Fatalf("other gate should see the first holder, got %s", holder)
	}

	c.Advance(31 * time.Second)
	if store.Len() != 0 {
		t.Fatalf("expected expired claim to be collected, got %d", store.Len())
	}
	if holder, _ := store.Claim(ctx, "abc", "south", 30*time.Second); holder != "south" {
		t.Fatalf("expired claim should be replaceable, got %s", holder)
	}
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	store := NewMemoryStore(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Claim(ctx, "abc", "north", time.Second); err == nil {
		t.Fatal("expected cancelled context error")
	}
}
