package cache

import (
	"bytes"
	"testing"
	"time"
)

func TestCachePutGetRoundTrip(t *testing.T) {
	c, err := New(Options{Capacity: 10})
	if err != nil {
		t.Fatal(err)
	}
	c.Put("k1", []byte("hello"), "text/plain", 0)

	got, ct, ok := c.Get("k1")
	if !ok || !bytes.Equal(got, []byte("hello")) || ct != "text/plain" {
		t.Fatalf("Get = %q,%q,%v", got, ct, ok)
	}

	counters := c.Counters()
	if counters.Hits != 1 || counters.Misses != 0 {
		t.Fatalf("counters = %+v", counters)
	}
}

func TestCacheMissIncrementsCounter(t *testing.T) {
	c, _ := New(Options{Capacity: 10})
	if _, _, ok := c.Get("missing"); ok {
		t.Fatalf("expected miss")
	}
	if c.Counters().Misses != 1 {
		t.Fatalf("expected 1 miss, got %+v", c.Counters())
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	c, _ := New(Options{Capacity: 10})
	c.Put("k", []byte("v"), "text/plain", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	if _, _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry to have expired")
	}
}

func TestCacheCompressionRoundTripsLargePayload(t *testing.T) {
	c, err := New(Options{Capacity: 10, CompressionOn: true})
	if err != nil {
		t.Fatal(err)
	}
	payload := bytes.Repeat([]byte("abc"), 1000) // > 1 KiB
	c.Put("big", payload, "application/octet-stream", 0)

	got, _, ok := c.Get("big")
	if !ok || !bytes.Equal(got, payload) {
		t.Fatalf("compressed round trip mismatch")
	}
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, _ := New(Options{Capacity: 2})
	c.Put("a", []byte("1"), "", 0)
	c.Put("b", []byte("2"), "", 0)
	c.Put("c", []byte("3"), "", 0) // evicts "a"

	if _, _, ok := c.Get("a"); ok {
		t.Fatalf("expected a to be evicted")
	}
	if c.Counters().Evictions != 1 {
		t.Fatalf("expected 1 eviction, got %+v", c.Counters())
	}
}

func TestCacheHitRate(t *testing.T) {
	var cnt Counters
	if cnt.HitRate() != 0 {
		t.Fatalf("expected 0 hit rate with no lookups")
	}
	cnt = Counters{Hits: 3, Misses: 1}
	if cnt.HitRate() != 0.75 {
		t.Fatalf("hit rate = %v, want 0.75", cnt.HitRate())
	}
}

func TestQueryKeyStableOverFilterPermutation(t *testing.T) {
	a := QueryKey(QueryKeyInput{QueryText: "q", TopK: 5, Threshold: 0.5, DimensionTag: 384, Filters: []string{"lang:go", "path:src"}})
	b := QueryKey(QueryKeyInput{QueryText: "q", TopK: 5, Threshold: 0.5, DimensionTag: 384, Filters: []string{"path:src", "lang:go"}})
	if a != b {
		t.Fatalf("expected filter-order-independent key, got %q vs %q", a, b)
	}
}

func TestQueryKeyChangesForSignificantFields(t *testing.T) {
	base := QueryKeyInput{QueryText: "q", TopK: 5, Threshold: 0.5, DimensionTag: 384}
	baseKey := QueryKey(base)

	variants := []QueryKeyInput{
		{QueryText: "other", TopK: 5, Threshold: 0.5, DimensionTag: 384},
		{QueryText: "q", TopK: 6, Threshold: 0.5, DimensionTag: 384},
		{QueryText: "q", TopK: 5, Threshold: 0.9, DimensionTag: 384},
		{QueryText: "q", TopK: 5, Threshold: 0.5, DimensionTag: 768},
	}
	for _, v := range variants {
		if QueryKey(v) == baseKey {
			t.Fatalf("expected key to change for variant %+v", v)
		}
	}
}
