package livecache

import (
	"sync"

	"github.com/rubiojr/topicsync/pkg/realtime"
)

// Conn is the connection surface the cache layer needs. *realtime.Connection
// satisfies it.
type Conn interface {
	TopicSubscriber
	IsConnected() bool
	OnConnect(fn func()) (remove func())
	Listen(event string) *realtime.Listener
}

// Binding delivers the invalidation events of one topic to a callback, with
// the listener installed at most once no matter how often or when Install is
// called relative to the connection coming up.
type Binding struct {
	conn         Conn
	topic        string
	onInvalidate func(realtime.Event)

	mu         sync.Mutex
	installed  bool
	closed     bool
	listener   *realtime.Listener
	removeHook func()
	wg         sync.WaitGroup
}

// BindInvalidationListener prepares a binding for topic. Nothing is
// registered until Install is called.
func BindInvalidationListener(conn Conn, topic string, onInvalidate func(realtime.Event)) *Binding {
	return &Binding{conn: conn, topic: topic, onInvalidate: onInvalidate}
}

// Install installs the listener now when the connection is up, otherwise on
// the next connect.
func (b *Binding) Install() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.installed || b.closed {
		return
	}
	if b.conn.IsConnected() {
		b.installLocked()
		return
	}
	if b.removeHook == nil {
		b.removeHook = b.conn.OnConnect(b.onConnect)
	}
	// The connection may have come up between the check and the hook
	// registration, in which case the hook missed this connect.
	if b.conn.IsConnected() {
		b.installLocked()
	}
}

func (b *Binding) onConnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.installed || b.closed {
		return
	}
	b.installLocked()
}

func (b *Binding) installLocked() {
	b.listener = b.conn.Listen(b.topic)
	b.installed = true
	logger.Named(b.topic).Debugf("invalidation listener installed")

	l := b.listener
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for ev := range l.C {
			b.onInvalidate(ev)
		}
	}()
}

// Installed reports whether the listener is active.
func (b *Binding) Installed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.installed && !b.closed
}

// Close removes the connect hook and the listener, and waits for the last
// callback to return.
func (b *Binding) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	remove := b.removeHook
	l := b.listener
	b.mu.Unlock()

	if remove != nil {
		remove()
	}
	if l != nil {
		l.Close()
	}
	b.wg.Wait()
}
