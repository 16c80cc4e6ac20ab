package cache

import (
	"context"
	"testing"
	"time"
)

func TestCache_Expiry(t *testing.T) {
	c := New[string, int](0)
	defer c.Close()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "short", 1, time.Second)
	c.Set(ctx, "forever", 2, 0)

	if v, ok := c.Get(ctx, "short"); !ok || v != 1 {
		t.Fatalf("Get(short) = %d, %v; want 1, true", v, ok)
	}

	now = now.Add(2 * time.Second)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("expired entry should not be returned")
	}
	if v, ok := c.Get(ctx, "forever"); !ok || v != 2 {
		t.Errorf("Get(forever) = %d, %v; want 2, true", v, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	c.deleteExpired()
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	if n != 1 {
		t.Errorf("items after sweep = %d, want 1", n)
	}
}

func TestCache_SetIfAbsent(t *testing.T) {
	c := New[string, string](0)
	defer c.Close()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if !c.SetIfAbsent(ctx, "route", "first", time.Minute) {
		t.Fatal("first SetIfAbsent should store")
	}
	if c.SetIfAbsent(ctx, "route", "second", time.Minute) {
		t.Fatal("second SetIfAbsent should not overwrite a live entry")
	}
	if v, _ := c.Get(ctx, "route"); v != "first" {
		t.Errorf("value = %q, want first", v)
	}

	now = now.Add(2 * time.Minute)
	if !c.SetIfAbsent(ctx, "route", "third", time.Minute) {
		t.Error("SetIfAbsent should store over an expired entry")
	}

	c.Delete(ctx, "route")
	if _, ok := c.Get(ctx, "route"); ok {
		t.Error("deleted key still present")
	}
}

func TestCache_CloseIdempotent(t *testing.T) {
	c := New[int, int](10 * time.Millisecond)
	c.Close()
	c.Close()
}
