package cache_test

import (
	"testing"
	"time"

	"github.com/red-hat-storage/noobaa-core/internal/cache"
)

func TestPutGetInvalidate(t *testing.T) {
	c, err := cache.New(time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if _, ok := c.Get("id1"); ok {
		t.Fatalf("expected miss before Put")
	}
	if err := c.Put("id1", "alice"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	name, ok := c.Get("id1")
	if !ok || name != "alice" {
		t.Fatalf("Get after Put = (%q, %v), want (alice, true)", name, ok)
	}
	c.Invalidate("id1")
	if _, ok := c.Get("id1"); ok {
		t.Fatalf("expected miss after Invalidate")
	}
	// invalidating an absent key is a no-op, not an error
	c.Invalidate("never-existed")
}

func TestEntryExpiresAfterTTL(t *testing.T) {
	c, err := cache.New(20 * time.Millisecond)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	if err := c.Put("id1", "alice"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if _, ok := c.Get("id1"); ok {
		t.Fatalf("expected entry to have expired")
	}
}
