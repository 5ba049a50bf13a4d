// Package realtime owns the single persistent link between a client session
// and the backend, and the in-process fan-out of the events it receives.
//
// A Connection multiplexes any number of topic subscriptions over one
// websocket. Inbound events are delivered through a Hub: every Listen call
// gets its own buffered channel, and a listener whose buffer is full misses
// that event instead of stalling the read loop. Events are invalidation
// triggers, so a missed one is recovered by the next.
package realtime

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"
)

// Event is one inbound push message. Payload is opaque to this package.
type Event struct {
	Name       string
	Payload    json.RawMessage
	ReceivedAt time.Time
}

// Hub fans out events to listeners registered by event name. It is safe for
// concurrent use.
type Hub struct {
	mu        sync.RWMutex
	listeners map[string]map[uint64]*Listener
	nextID    uint64
	bufSize   int
	closed    bool
}

// NewHub constructs a hub with the given per-listener buffer size. If
// bufSize <= 0, a default of 32 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		listeners: make(map[string]map[uint64]*Listener),
		bufSize:   bufSize,
	}
}

// Listener is an independent view over the events with one name. Receive
// from C; the channel is closed by Close or when the hub shuts down.
type Listener struct {
	C <-chan Event

	ch      chan Event
	id      uint64
	name    string
	hub     *Hub
	dropped atomic.Uint64
	once    sync.Once
}

// Listen registers a new listener for events named name. Listening on a
// closed hub returns a listener whose channel is already closed.
func (h *Hub) Listen(name string) *Listener {
	ch := make(chan Event, h.bufSize)
	l := &Listener{C: ch, ch: ch, name: name, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		l.once.Do(func() { close(ch) })
		return l
	}
	l.id = h.nextID
	h.nextID++
	byID, ok := h.listeners[name]
	if !ok {
		byID = make(map[uint64]*Listener)
		h.listeners[name] = byID
	}
	byID[l.id] = l
	return l
}

// Event returns the event name this listener receives.
func (l *Listener) Event() string {
	return l.name
}

// Dropped returns how many events were discarded because the buffer was full.
func (l *Listener) Dropped() uint64 {
	return l.dropped.Load()
}

// Close unregisters the listener and closes its channel. Safe to call more
// than once.
func (l *Listener) Close() {
	l.hub.remove(l)
}

func (h *Hub) remove(l *Listener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if byID, ok := h.listeners[l.name]; ok {
		delete(byID, l.id)
		if len(byID) == 0 {
			delete(h.listeners, l.name)
		}
	}
	l.once.Do(func() { close(l.ch) })
}

// Broadcast delivers ev to every listener registered for ev.Name and returns
// how many received it. Listeners with a full buffer are skipped.
func (h *Hub) Broadcast(ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, l := range h.listeners[ev.Name] {
		select {
		case l.ch <- ev:
			delivered++
		default:
			l.dropped.Add(1)
		}
	}
	return delivered
}

// Size returns the number of listeners registered for name.
func (h *Hub) Size(name string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners[name])
}

// Close closes every listener channel. Later Listen calls return closed
// listeners.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for name, byID := range h.listeners {
		for _, l := range byID {
			l.once.Do(func() { close(l.ch) })
		}
		delete(h.listeners, name)
	}
}
