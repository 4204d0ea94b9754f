package cache

import (
	"context"
	"testing"
	"time"
)

func TestNilCacheIsSafe(t *testing.T) {
	var c *Cache

	if _, ok := c.Get(context.Background(), "k"); ok {
		t.Error("nil cache reported a hit")
	}
	c.Set(context.Background(), "k", "v") // must not panic
	if err := c.Close(); err != nil {
		t.Errorf("Close on nil cache: %v", err)
	}
}

func TestNewEmptyAddrDisablesCache(t *testing.T) {
	if c := New("", time.Minute); c != nil {
		t.Error("empty addr should return nil cache")
	}
}

func TestNewDefaultTTL(t *testing.T) {
	c := New("localhost:6379", 0)
	if c == nil {
		t.Fatal("expected a cache instance")
	}
	if c.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want %v", c.ttl, DefaultTTL)
	}
	_ = c.Close()
}

func TestKeyNamespaces(t *testing.T) {
	if got := WhoisKey("example.com"); got != "phishguard:whois:example.com" {
		t.Errorf("WhoisKey = %q", got)
	}
	if got := ExpansionKey("http://bit.ly/x"); got != "phishguard:expand:http://bit.ly/x" {
		t.Errorf("ExpansionKey = %q", got)
	}
}
