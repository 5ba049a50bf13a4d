package livecache

import (
	"testing"
)

func TestCacheEmptyWatchHasNoValue(t *testing.T) {
	c := NewCache[[]string]()
	if _, ok := c.Load(); ok {
		t.Fatal("fresh cache reports a value")
	}
	_, ch := c.Watch()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %v", v)
	default:
	}
}

func TestCacheReplaysLastValue(t *testing.T) {
	c := NewCache[int]()
	c.Store(1)
	c.Store(2)

	_, ch := c.Watch()
	select {
	case v := <-ch:
		if v != 2 {
			t.Fatalf("replayed %d, want 2", v)
		}
	default:
		t.Fatal("late watcher did not get the cached value")
	}
	if c.Version() != 2 {
		t.Fatalf("version = %d", c.Version())
	}
}

func TestCacheSlowWatcherGetsLatest(t *testing.T) {
	c := NewCache[int]()
	_, ch := c.Watch()
	for i := 1; i <= 10; i++ {
		c.Store(i)
	}
	if v := <-ch; v != 10 {
		t.Fatalf("got %d, want 10", v)
	}
	select {
	case v := <-ch:
		t.Fatalf("stale value %d left in channel", v)
	default:
	}
}

func TestCacheUnwatch(t *testing.T) {
	c := NewCache[int]()
	id, ch := c.Watch()
	c.Unwatch(id)
	c.Unwatch(id)
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if c.Watchers() != 0 {
		t.Fatalf("watchers = %d", c.Watchers())
	}
	c.Store(1)
}
