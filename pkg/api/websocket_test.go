package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/clock/testclock"

	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/realtime"
)

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial ws: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) realtime.Frame {
	t.Helper()
	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var f realtime.Frame
	if err := ws.ReadJSON(&f); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return f
}

// barrier sends a frame the server rejects; the error reply proves every
// frame sent before it has been processed. Frames read on the way are
// returned.
func barrier(t *testing.T, ws *websocket.Conn) []realtime.Frame {
	t.Helper()
	if err := ws.WriteJSON(realtime.Frame{Type: "barrier"}); err != nil {
		t.Fatal(err)
	}
	var before []realtime.Frame
	for {
		f := readFrame(t, ws)
		if f.Type == realtime.FrameError && f.Detail == "barrier" {
			return before
		}
		before = append(before, f)
	}
}

func subscribe(t *testing.T, ws *websocket.Conn, token *string, topics ...string) {
	t.Helper()
	for _, topic := range topics {
		if err := ws.WriteJSON(realtime.SubscribeFrame(topic, token)); err != nil {
			t.Fatal(err)
		}
	}
	barrier(t, ws)
}

func TestWebsocketPushesInvalidations(t *testing.T) {
	_, ts := newTestServer(t, Options{})
	ws := dialWS(t, ts)
	subscribe(t, ws, nil, core.TopicBadges, core.TopicStats)

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/badges", "", core.NewBadge{Name: "Gold"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	seen := map[string]bool{}
	for len(seen) < 2 {
		f := readFrame(t, ws)
		if f.Type != realtime.FrameEvent {
			t.Fatalf("unexpected frame %+v", f)
		}
		seen[f.Event] = true
	}
	if !seen[core.TopicBadges] || !seen[core.TopicStats] {
		t.Fatalf("events seen: %v", seen)
	}
}

func TestWebsocketOnlySubscribedTopics(t *testing.T) {
	srv, ts := newTestServer(t, Options{})
	ws := dialWS(t, ts)
	subscribe(t, ws, nil, core.TopicNotifications)

	srv.Publish(core.TopicBadges, Invalidation{Topic: core.TopicBadges})
	srv.Publish(core.TopicNotifications, Invalidation{Topic: core.TopicNotifications, ID: "n1"})

	f := readFrame(t, ws)
	if f.Event != core.TopicNotifications {
		t.Fatalf("got event %q, want notifications", f.Event)
	}

	if err := ws.WriteJSON(realtime.UnsubscribeFrame(core.TopicNotifications)); err != nil {
		t.Fatal(err)
	}
	barrier(t, ws)
	srv.Publish(core.TopicNotifications, Invalidation{Topic: core.TopicNotifications})
	time.Sleep(20 * time.Millisecond)
	for _, f := range barrier(t, ws) {
		if f.Type == realtime.FrameEvent {
			t.Fatalf("event after unsubscribe: %+v", f)
		}
	}
}

func TestWebsocketRejectsBadToken(t *testing.T) {
	srv, ts := newTestServer(t, Options{Token: "secret"})
	ws := dialWS(t, ts)

	wrong := "nope"
	if err := ws.WriteJSON(realtime.SubscribeFrame(core.TopicBadges, &wrong)); err != nil {
		t.Fatal(err)
	}
	f := readFrame(t, ws)
	if f.Type != realtime.FrameError || f.Message != "unauthorized" {
		t.Fatalf("expected unauthorized error, got %+v", f)
	}

	good := "secret"
	subscribe(t, ws, &good, core.TopicBadges)
	srv.Publish(core.TopicBadges, Invalidation{Topic: core.TopicBadges})
	if f := readFrame(t, ws); f.Event != core.TopicBadges {
		t.Fatalf("unexpected frame %+v", f)
	}
}

func TestWebsocketHeartbeat(t *testing.T) {
	clk := testclock.NewClock(time.Now())
	_, ts := newTestServer(t, Options{HeartbeatInterval: 30 * time.Second, Clock: clk})
	ws := dialWS(t, ts)

	if err := clk.WaitAdvance(30*time.Second, 5*time.Second, 1); err != nil {
		t.Fatal(err)
	}
	if f := readFrame(t, ws); f.Type != realtime.FrameHeartbeat {
		t.Fatalf("expected heartbeat, got %+v", f)
	}
}

func TestWebsocketClientLibraryEndToEnd(t *testing.T) {
	_, ts := newTestServer(t, Options{Token: "secret"})

	conn := realtime.NewConnection(realtime.ConnectionConfig{
		URL:            "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws",
		Token:          "secret",
		InitialBackoff: 10 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	})
	defer conn.Close()

	l := conn.Listen(core.TopicBadges)
	conn.SubscribeTopic(core.TopicBadges)
	conn.Connect(t.Context())

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	for {
		doJSON(t, http.MethodPost, ts.URL+"/api/notifications", "secret", core.NewNotification{Title: "noise"})
		resp := doJSON(t, http.MethodPost, ts.URL+"/api/badges", "secret", core.NewBadge{Name: time.Now().Format(time.RFC3339Nano)})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		select {
		case ev := <-l.C:
			if ev.Name != core.TopicBadges {
				t.Fatalf("event = %+v", ev)
			}
			return
		case <-tick.C:
		case <-deadline:
			t.Fatal("no badges event delivered through the client connection")
		}
	}
}
