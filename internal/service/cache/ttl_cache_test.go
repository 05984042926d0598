package cache

import (
	"testing"
	"time"
)

func TestTTLCacheSetGet(t *testing.T) {
	c := NewTTLCache()

	c.Set("k", 42, time.Minute)
	v, ok := c.Get("k")
	if !ok || v.(int) != 42 {
		t.Fatalf("expected 42, got %v ok=%v", v, ok)
	}
}

func TestTTLCacheExpiry(t *testing.T) {
	c := NewTTLCache()

	c.Set("k", "v", 10*time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not evicted, len=%d", c.Len())
	}
}

func TestTTLCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewTTLCache()

	c.Set("k", "v", 0)
	time.Sleep(15 * time.Millisecond)

	if _, ok := c.Get("k"); !ok {
		t.Fatal("zero-ttl entry must not expire")
	}
}

func TestTTLCacheReplaceWhole(t *testing.T) {
	c := NewTTLCache()

	c.Set("k", []string{"a", "b"}, time.Minute)
	c.Set("k", []string{"c"}, time.Minute)

	v, ok := GetTyped[[]string](c, "k")
	if !ok || len(v) != 1 || v[0] != "c" {
		t.Fatalf("expected replacement value, got %v", v)
	}
}

func TestGetTypedMismatch(t *testing.T) {
	c := NewTTLCache()

	c.Set("k", "string value", time.Minute)
	if _, ok := GetTyped[int](c, "k"); ok {
		t.Fatal("type mismatch must report miss")
	}
}
