package integration_tests

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rubiojr/topicsync/pkg/api"
	"github.com/rubiojr/topicsync/pkg/config"
	"github.com/rubiojr/topicsync/pkg/livecache/livecachetest"
	"github.com/rubiojr/topicsync/pkg/session"
	"github.com/rubiojr/topicsync/pkg/storage"
)

// backend is a reference server bound to a fixed address so it can be
// stopped and started again while clients keep their sessions.
type backend struct {
	t     *testing.T
	addr  string
	store *storage.Store
	token string

	srv  *api.Server
	http *http.Server
}

func newBackend(t *testing.T, token string) *backend {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	b := &backend{t: t, store: store, token: token}
	b.start("127.0.0.1:0")
	t.Cleanup(func() {
		b.stop()
		_ = store.Close()
	})
	return b
}

func (b *backend) start(addr string) {
	b.t.Helper()
	var (
		ln  net.Listener
		err error
	)
	for i := 0; i < 50; i++ {
		ln, err = net.Listen("tcp", addr)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		b.t.Fatalf("listening on %s: %v", addr, err)
	}
	b.addr = ln.Addr().String()
	b.srv = api.NewServer(b.store, api.Options{Token: b.token})
	hs := &http.Server{Handler: b.srv.Handler()}
	b.http = hs
	go func() { _ = hs.Serve(ln) }()
}

func (b *backend) stop() {
	if b.http == nil {
		return
	}
	b.srv.Close()
	_ = b.http.Close()
	b.http = nil
}

func (b *backend) restart() {
	b.t.Helper()
	b.stop()
	b.start(b.addr)
}

func (b *backend) url() string {
	return "http://" + b.addr
}

func newSession(t *testing.T, b *backend, token string) *session.Session {
	t.Helper()
	cfg := config.ClientConfig{
		ServerURL:      b.url(),
		Token:          token,
		InitialBackoff: config.Duration{Duration: 10 * time.Millisecond},
		MaxBackoff:     config.Duration{Duration: 100 * time.Millisecond},
	}
	cfg.ApplyDefaults()
	s, err := session.New(cfg)
	if err != nil {
		t.Fatalf("creating session: %v", err)
	}
	t.Cleanup(s.Close)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("starting session: %v", err)
	}
	if !livecachetest.Eventually(5*time.Second, s.Connection().IsConnected) {
		t.Fatal("session did not connect")
	}
	return s
}

// waitFor reads values from ch until match accepts one. poke runs between
// reads so a write whose invalidation raced the server-side subscription is
// retried.
func waitFor[T any](t *testing.T, ch <-chan T, poke func(), match func(T) bool) T {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case v := <-ch:
			if match(v) {
				return v
			}
		case <-time.After(200 * time.Millisecond):
			if poke != nil {
				poke()
			}
		case <-deadline:
			t.Fatal("expected value never arrived")
		}
	}
}
