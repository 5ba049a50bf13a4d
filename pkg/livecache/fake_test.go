package livecache

import (
	"testing"
	"time"

	"github.com/rubiojr/topicsync/pkg/livecache/livecachetest"
)

func newFakeConn(t *testing.T) *livecachetest.Conn {
	t.Helper()
	c := livecachetest.NewConn()
	t.Cleanup(c.Close)
	return c
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	if !livecachetest.Eventually(5*time.Second, cond) {
		t.Fatalf("timed out waiting for %s", what)
	}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("no value received")
	}
	var zero T
	return zero
}
