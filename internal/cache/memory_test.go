package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/xianyu-agent/internal/clock"
)

func TestMemoryCache_TTL(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	c := NewMemoryCache(clk, 0)
	defer c.Close()
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get(ctx, "k")
	if err != nil || string(got) != "v" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	got[0] = 'x'
	again, _ := c.Get(ctx, "k")
	if string(again) != "v" {
		t.Fatalf("Get must return a copy, got %q", again)
	}

	clk.Advance(time.Minute)
	if _, err := c.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss after ttl, got %v", err)
	}
	if ok, _ := c.Exists(ctx, "k"); ok {
		t.Fatalf("expired key reported as existing")
	}
	c.RemoveExpired()
	if c.Len() != 0 {
		t.Fatalf("RemoveExpired left %d entries", c.Len())
	}
}

func TestMemoryCache_SetNX(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	c := NewMemoryCache(clk, 0)
	ctx := context.Background()

	if ok, _ := c.SetNX(ctx, "order:1", []byte("1"), 10*time.Minute); !ok {
		t.Fatalf("first SetNX should store")
	}
	if ok, _ := c.SetNX(ctx, "order:1", []byte("1"), 10*time.Minute); ok {
		t.Fatalf("second SetNX within ttl should not store")
	}
	clk.Advance(10 * time.Minute)
	if ok, _ := c.SetNX(ctx, "order:1", []byte("1"), 10*time.Minute); !ok {
		t.Fatalf("SetNX after expiry should store")
	}
	_ = c.Delete(ctx, "order:1")
	if ok, _ := c.Exists(ctx, "order:1"); ok {
		t.Fatalf("Delete did not remove key")
	}
}

func TestMemoryCache_BackgroundSweep(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	c := NewMemoryCache(clk, time.Minute)
	defer c.Close()
	_ = c.Set(context.Background(), "k", nil, time.Second)

	clk.BlockUntil(1)
	clk.Advance(time.Minute)

	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("sweep did not remove expired key")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
