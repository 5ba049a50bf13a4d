package realtime

import (
	"testing"
)

func TestHubDeliversByName(t *testing.T) {
	h := NewHub(4)
	badges := h.Listen("badges")
	badges2 := h.Listen("badges")
	stats := h.Listen("stats")
	defer badges.Close()
	defer badges2.Close()
	defer stats.Close()

	if n := h.Broadcast(Event{Name: "badges"}); n != 2 {
		t.Fatalf("delivered to %d listeners, want 2", n)
	}
	for _, l := range []*Listener{badges, badges2} {
		select {
		case ev := <-l.C:
			if ev.Name != "badges" {
				t.Fatalf("unexpected event %q", ev.Name)
			}
		default:
			t.Fatal("expected an event")
		}
	}
	select {
	case ev := <-stats.C:
		t.Fatalf("stats listener received %q", ev.Name)
	default:
	}
}

func TestHubDropsForSlowListener(t *testing.T) {
	h := NewHub(1)
	slow := h.Listen("x")
	defer slow.Close()

	h.Broadcast(Event{Name: "x"})
	if n := h.Broadcast(Event{Name: "x"}); n != 0 {
		t.Fatalf("expected second event to be dropped, delivered=%d", n)
	}
	if slow.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", slow.Dropped())
	}
}

func TestListenerCloseIsIdempotent(t *testing.T) {
	h := NewHub(0)
	l := h.Listen("x")
	if h.Size("x") != 1 {
		t.Fatalf("size = %d", h.Size("x"))
	}
	l.Close()
	l.Close()
	if h.Size("x") != 0 {
		t.Fatalf("size after close = %d", h.Size("x"))
	}
	if _, ok := <-l.C; ok {
		t.Fatal("expected closed channel")
	}
}

func TestHubCloseClosesListeners(t *testing.T) {
	h := NewHub(0)
	l := h.Listen("x")
	h.Close()
	h.Close()

	if _, ok := <-l.C; ok {
		t.Fatal("expected closed channel after hub close")
	}
	late := h.Listen("x")
	if _, ok := <-late.C; ok {
		t.Fatal("expected listener on closed hub to be closed")
	}
	late.Close()
	l.Close()
}

func TestProtocolFrames(t *testing.T) {
	sub, err := SubscribeFrame("badges", nil).Subscription()
	if err != nil {
		t.Fatal(err)
	}
	if sub.Topic != "badges" || sub.Token != nil {
		t.Fatalf("unexpected subscription %+v", sub)
	}
	if string(SubscribeFrame("badges", nil).Data) != `{"topic":"badges","token":null}` {
		t.Fatalf("unexpected subscribe payload %s", SubscribeFrame("badges", nil).Data)
	}

	tok := "secret"
	sub, err = SubscribeFrame("stats", &tok).Subscription()
	if err != nil || sub.Token == nil || *sub.Token != "secret" {
		t.Fatalf("unexpected subscription %+v err=%v", sub, err)
	}

	topic, err := UnsubscribeFrame("badges").Topic()
	if err != nil || topic != "badges" {
		t.Fatalf("topic=%q err=%v", topic, err)
	}
	if string(UnsubscribeFrame("badges").Data) != `"badges"` {
		t.Fatalf("unexpected unsubscribe payload %s", UnsubscribeFrame("badges").Data)
	}

	if _, err := UnsubscribeFrame("x").Subscription(); err == nil {
		t.Fatal("expected type mismatch error")
	}
	if _, err := (Frame{Type: FrameSubscribe, Data: []byte(`{"token":null}`)}).Subscription(); err == nil {
		t.Fatal("expected missing topic error")
	}
}
