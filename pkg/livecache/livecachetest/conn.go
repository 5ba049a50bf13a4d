// Package livecachetest provides an in-memory connection for testing code
// built on livecache without a server.
package livecachetest

import (
	"sync"
	"time"

	"github.com/rubiojr/topicsync/pkg/realtime"
)

// Conn records topic traffic and lets tests drive the connected state and
// inbound events by hand. The zero value is not usable; use NewConn.
type Conn struct {
	hub *realtime.Hub

	mu        sync.Mutex
	connected bool
	subs      map[string]int
	unsubs    map[string]int
	listens   map[string]int
	hooks     map[int]func()
	nextHook  int
}

func NewConn() *Conn {
	return &Conn{
		hub:     realtime.NewHub(32),
		subs:    make(map[string]int),
		unsubs:  make(map[string]int),
		listens: make(map[string]int),
		hooks:   make(map[int]func()),
	}
}

func (c *Conn) SubscribeTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic]++
}

func (c *Conn) UnsubscribeTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unsubs[topic]++
}

func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Conn) OnConnect(fn func()) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextHook
	c.nextHook++
	c.hooks[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.hooks, id)
	}
}

func (c *Conn) Listen(event string) *realtime.Listener {
	c.mu.Lock()
	c.listens[event]++
	c.mu.Unlock()
	return c.hub.Listen(event)
}

// Connect flips to connected and runs the connect hooks in registration
// order.
func (c *Conn) Connect() {
	c.mu.Lock()
	c.connected = true
	hooks := make([]func(), 0, len(c.hooks))
	for i := 0; i < c.nextHook; i++ {
		if fn, ok := c.hooks[i]; ok {
			hooks = append(hooks, fn)
		}
	}
	c.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

func (c *Conn) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
}

// Emit delivers an invalidation event for topic to its listeners.
func (c *Conn) Emit(topic string) {
	c.Broadcast(realtime.Event{Name: topic, ReceivedAt: time.Now()})
}

func (c *Conn) Broadcast(ev realtime.Event) {
	c.hub.Broadcast(ev)
}

// Counts returns how many subscribe, unsubscribe and listen calls topic saw.
func (c *Conn) Counts(topic string) (subs, unsubs, listens int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs[topic], c.unsubs[topic], c.listens[topic]
}

// Active reports whether topic currently holds a wire subscription.
func (c *Conn) Active(topic string) bool {
	subs, unsubs, _ := c.Counts(topic)
	return subs > unsubs
}

func (c *Conn) HookCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.hooks)
}

// ListenerCount returns the listeners currently attached for event.
func (c *Conn) ListenerCount(event string) int {
	return c.hub.Size(event)
}

// Close closes every listener handed out.
func (c *Conn) Close() {
	c.hub.Close()
}

// Eventually polls cond until it holds or the timeout expires.
func Eventually(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
