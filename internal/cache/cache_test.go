package cache_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"interlace/internal/cache"
	"interlace/internal/document"
)

func doc(uri string, version int32, text string) *document.Document {
	return document.New(uri, "html", version, text)
}

func newCountingCache(maxEntries int) (*cache.Cache[string], *int) {
	calls := 0
	c := cache.New(func(d *document.Document) (string, error) {
		calls++
		return "parsed:" + d.Text, nil
	}, cache.Options{MaxEntries: maxEntries})
	return c, &calls
}

func TestGetCachesByVersion(t *testing.T) {
	c, calls := newCountingCache(5)
	defer c.Dispose()

	d := doc("file:///a.html", 1, "hello")
	v1, err := c.Get(d)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	v2, err := c.Get(d)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v1 != v2 || v1 != "parsed:hello" {
		t.Errorf("expected identical values, got %q and %q", v1, v2)
	}
	if *calls != 1 {
		t.Errorf("expected 1 parse call, got %d", *calls)
	}
}

func TestGetRecomputesOnVersionBump(t *testing.T) {
	c, calls := newCountingCache(5)
	defer c.Dispose()

	if _, err := c.Get(doc("file:///a.html", 1, "one")); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	v, err := c.Get(doc("file:///a.html", 2, "two"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "parsed:two" {
		t.Errorf("expected recomputed value, got %q", v)
	}
	if *calls != 2 {
		t.Errorf("expected 2 parse calls, got %d", *calls)
	}
}

func TestEvictionDropsLeastRecentlyUsed(t *testing.T) {
	c, calls := newCountingCache(3)
	defer c.Dispose()

	for i := 0; i < 3; i++ {
		uri := fmt.Sprintf("file:///%d.html", i)
		if _, err := c.Get(doc(uri, 1, uri)); err != nil {
			t.Fatalf("Get failed: %v", err)
		}
	}
	// Touch 0 and 1 so 2 becomes the oldest.
	if _, err := c.Get(doc("file:///0.html", 1, "file:///0.html")); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := c.Get(doc("file:///1.html", 1, "file:///1.html")); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if _, err := c.Get(doc("file:///3.html", 1, "file:///3.html")); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got := c.Len(); got != 3 {
		t.Fatalf("expected 3 entries after eviction, got %d", got)
	}

	before := *calls
	if _, err := c.Get(doc("file:///2.html", 1, "file:///2.html")); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *calls != before+1 {
		t.Errorf("expected evicted entry to be recomputed, calls %d -> %d", before, *calls)
	}

	before = *calls
	if _, err := c.Get(doc("file:///1.html", 1, "file:///1.html")); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *calls != before {
		t.Errorf("recently used entry should have survived eviction")
	}
}

func TestParseErrorNotCached(t *testing.T) {
	fail := true
	calls := 0
	c := cache.New(func(d *document.Document) (string, error) {
		calls++
		if fail {
			return "", errors.New("parse exploded")
		}
		return "ok", nil
	}, cache.Options{MaxEntries: 5})
	defer c.Dispose()

	d := doc("file:///a.html", 1, "x")
	if _, err := c.Get(d); err == nil {
		t.Fatal("expected error from failing parse")
	}
	if c.Len() != 0 {
		t.Fatal("failed parse must not poison the cache")
	}

	fail = false
	v, err := c.Get(d)
	if err != nil {
		t.Fatalf("retry should recompute cleanly: %v", err)
	}
	if v != "ok" || calls != 2 {
		t.Errorf("got %q after %d calls", v, calls)
	}
}

func TestOnDocumentRemoved(t *testing.T) {
	c, calls := newCountingCache(5)
	defer c.Dispose()

	d := doc("file:///a.html", 1, "x")
	if _, err := c.Get(d); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	c.OnDocumentRemoved(d.URI)
	if c.Len() != 0 {
		t.Fatal("entry should be gone after removal")
	}
	if _, err := c.Get(d); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if *calls != 2 {
		t.Errorf("expected recomputation after removal, got %d calls", *calls)
	}
}

func TestSweepDropsIdleEntries(t *testing.T) {
	c := cache.New(func(d *document.Document) (string, error) {
		return "parsed:" + d.Text, nil
	}, cache.Options{MaxEntries: 5, CleanupInterval: 20 * time.Millisecond})
	defer c.Dispose()

	if _, err := c.Get(doc("file:///a.html", 1, "x")); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry before the sweep, got %d", c.Len())
	}

	deadline := time.Now().Add(5 * time.Second)
	for c.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("idle entry was never swept, %d entries remain", c.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDisposeIsIdempotent(t *testing.T) {
	c, _ := newCountingCache(5)
	if _, err := c.Get(doc("file:///a.html", 1, "x")); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	c.Dispose()
	c.Dispose()
	if c.Len() != 0 {
		t.Fatal("dispose should clear entries")
	}
}
