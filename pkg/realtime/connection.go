package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/rubiojr/topicsync/pkg/log"
)

var logger = log.ForService("realtime")

// State is the lifecycle state of a Connection.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ConnectionConfig configures a Connection. Only URL is required.
type ConnectionConfig struct {
	// URL is the websocket endpoint, e.g. ws://127.0.0.1:8420/ws.
	URL string
	// Token is sent with every subscribe frame. Empty means null.
	Token string
	// Header is sent with the websocket handshake.
	Header http.Header
	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// ReadTimeout bounds the silence tolerated from the server. Heartbeats
	// reset it.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	ListenerBuffer int
	Clock          clock.Clock
}

func (cfg *ConnectionConfig) setDefaults() {
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 2 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
}

// Connection is the single physical link to the server. Topic subscriptions
// are multiplexed over it and inbound events are fanned out to listeners.
//
// The connection keeps the set of desired topics. SubscribeTopic while
// disconnected only records the topic; every successful connect, first or
// reconnect, sends a subscribe frame for each desired topic. Callers never
// have to re-issue subscriptions themselves.
type Connection struct {
	cfg     ConnectionConfig
	id      string
	hub     *Hub
	backoff func(time.Duration, int) time.Duration

	mu       sync.Mutex
	state    State
	running  bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}
	link     *link
	desired  map[string]struct{}
	hooks    map[uint64]func()
	nextHook uint64
	token    *string
}

// NewConnection constructs a disconnected Connection. Nothing is dialed until
// Connect is called.
func NewConnection(cfg ConnectionConfig) *Connection {
	cfg.setDefaults()
	c := &Connection{
		cfg:     cfg,
		id:      uuid.NewString(),
		hub:     NewHub(cfg.ListenerBuffer),
		backoff: retry.ExpBackoff(cfg.InitialBackoff, cfg.MaxBackoff, 2, false),
		desired: make(map[string]struct{}),
		hooks:   make(map[uint64]func()),
	}
	c.setTokenLocked(cfg.Token)
	return c
}

// ID identifies this connection in logs.
func (c *Connection) ID() string {
	return c.id
}

// Connect starts dialing in the background and keeps the link up, re-dialing
// with exponential backoff after failures, until ctx is cancelled or
// Disconnect is called. Calling Connect while connecting or connected is a
// no-op. Dial failures are logged and retried, never returned.
func (c *Connection) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running || c.closed {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.running = true
	c.cancel = cancel
	c.done = make(chan struct{})
	c.state = Connecting
	go c.run(runCtx, c.done)
}

// IsConnected reports whether the link is currently established.
func (c *Connection) IsConnected() bool {
	return c.State() == Connected
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnConnect registers fn to run after every transition to Connected,
// including reconnects. It is not called for a link that is already up when
// it is registered. Hooks run in registration order on a goroutine of their
// own and may call Disconnect or Close. The returned function removes the
// hook.
func (c *Connection) OnConnect(fn func()) (remove func()) {
	c.mu.Lock()
	id := c.nextHook
	c.nextHook++
	c.hooks[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.hooks, id)
		c.mu.Unlock()
	}
}

// SubscribeTopic declares interest in topic. The declaration is sent
// immediately when connected, and again after every reconnect until
// UnsubscribeTopic is called. It never blocks on the network.
func (c *Connection) SubscribeTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.desired[topic] = struct{}{}
	if c.state == Connected && c.link != nil {
		c.link.enqueue(SubscribeFrame(topic, c.token))
		logger.Debugf("subscribe %s", topic)
		return
	}
	logger.Debugf("subscribe %s deferred until connected", topic)
}

// UnsubscribeTopic withdraws interest in topic. Nothing is sent when the
// topic was not subscribed or the link is down.
func (c *Connection) UnsubscribeTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.desired[topic]; !ok {
		return
	}
	delete(c.desired, topic)
	if c.state == Connected && c.link != nil {
		c.link.enqueue(UnsubscribeFrame(topic))
		logger.Debugf("unsubscribe %s", topic)
	}
}

// Topics returns the desired topics, sorted.
func (c *Connection) Topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sortedTopicsLocked()
}

func (c *Connection) sortedTopicsLocked() []string {
	topics := make([]string, 0, len(c.desired))
	for t := range c.desired {
		topics = append(topics, t)
	}
	sort.Strings(topics)
	return topics
}

// Listen returns a new listener for inbound events named event. Each call
// yields an independent view. If the connection never comes up the listener
// simply never receives anything.
func (c *Connection) Listen(event string) *Listener {
	return c.hub.Listen(event)
}

// SetToken replaces the credential sent with later subscribe frames,
// including the ones replayed on reconnect.
func (c *Connection) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setTokenLocked(token)
}

func (c *Connection) setTokenLocked(token string) {
	if token == "" {
		c.token = nil
		return
	}
	c.token = &token
}

// Disconnect stops the reconnect loop and releases the transport. It is safe
// to call when the connection was never established. Connect may be called
// again afterwards; desired topics are kept.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done, l := c.cancel, c.done, c.link
	c.mu.Unlock()

	cancel()
	if l != nil {
		l.close()
	}
	<-done
}

// Close disconnects and closes every listener. The connection cannot be
// reused.
func (c *Connection) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Disconnect()
	c.hub.Close()
}

func (c *Connection) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// run is the dial/serve/re-dial loop. One run goroutine exists per Connect.
func (c *Connection) run(ctx context.Context, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		c.running = false
		c.state = Disconnected
		c.link = nil
		c.mu.Unlock()
		close(done)
	}()

	attempt := 0
	hooksDone := closedChan()
	for {
		if ctx.Err() != nil {
			return
		}
		c.setState(Connecting)
		ws, _, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
		if err != nil {
			c.setState(Disconnected)
			if ctx.Err() != nil {
				return
			}
			delay := c.delay(attempt)
			attempt++
			logger.Warnf("dial %s failed (%v), retrying in %s", c.cfg.URL, err, delay)
			if !c.sleep(ctx, delay) {
				return
			}
			continue
		}
		attempt = 0

		l := newLink(ws)
		hooks := c.established(l)
		logger.Infof("connected to %s (connection %s)", c.cfg.URL, c.id)
		hooksDone = runHooks(hooks, hooksDone)

		err = c.serve(ctx, l, hooksDone)

		c.mu.Lock()
		c.state = Disconnected
		c.link = nil
		c.mu.Unlock()

		if ctx.Err() != nil {
			logger.Infof("disconnected from %s", c.cfg.URL)
			return
		}
		logger.Warnf("connection lost (%v), reconnecting", err)
		if !c.sleep(ctx, c.delay(0)) {
			return
		}
	}
}

func (c *Connection) delay(attempt int) time.Duration {
	d := c.backoff(0, attempt)
	if d < c.cfg.InitialBackoff {
		d = c.cfg.InitialBackoff
	}
	if d > c.cfg.MaxBackoff {
		d = c.cfg.MaxBackoff
	}
	return d
}

func (c *Connection) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-c.cfg.Clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// established publishes the new link, queues a subscribe frame for every
// desired topic and returns a snapshot of the connect hooks. Doing both under
// c.mu keeps the replay ordered before any later (un)subscribe call.
func (c *Connection) established(l *link) []func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Connected
	c.link = l
	for _, topic := range c.sortedTopicsLocked() {
		l.enqueue(SubscribeFrame(topic, c.token))
	}
	ids := make([]uint64, 0, len(c.hooks))
	for id := range c.hooks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	hooks := make([]func(), 0, len(ids))
	for _, id := range ids {
		hooks = append(hooks, c.hooks[id])
	}
	return hooks
}

// runHooks calls hooks in order on their own goroutine, after the hooks of
// the previous connect (prev) have returned. The returned channel is closed
// when the last one returns. Keeping them off the run goroutine lets a hook
// call Disconnect or Close.
func runHooks(hooks []func(), prev <-chan struct{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-prev
		for _, fn := range hooks {
			fn()
		}
	}()
	return done
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// serve runs the reader and writer for l until either fails or ctx ends.
// Reading starts once the connect hooks have returned, so listeners they
// install see every event of the new link.
func (c *Connection) serve(ctx context.Context, l *link, hooksDone <-chan struct{}) error {
	errCh := make(chan error, 2)
	go func() { errCh <- l.writeLoop(c.cfg.WriteTimeout) }()
	go func() {
		select {
		case <-hooksDone:
		case <-ctx.Done():
			errCh <- ctx.Err()
			return
		}
		errCh <- c.readLoop(l)
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		err = ctx.Err()
	}
	l.close()
	<-errCh
	if err == nil {
		err = errors.New("link closed")
	}
	return err
}

func (c *Connection) readLoop(l *link) error {
	extend := func() {
		_ = l.ws.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	}
	extend()
	l.ws.SetPongHandler(func(string) error {
		extend()
		return nil
	})

	for {
		_, data, err := l.ws.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		extend()

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Debugf("skipping malformed frame: %v", err)
			continue
		}
		switch f.Type {
		case FrameEvent:
			if f.Event == "" {
				continue
			}
			n := c.hub.Broadcast(Event{Name: f.Event, Payload: f.Data, ReceivedAt: c.cfg.Clock.Now()})
			logger.Debugf("event %s delivered to %d listeners", f.Event, n)
		case FrameHeartbeat:
			logger.Debugf("heartbeat %s", f.TS)
		case FrameError:
			logger.Warnf("server error: %s %s", f.Message, f.Detail)
		default:
			logger.Debugf("ignoring frame type %q", f.Type)
		}
	}
}

// link is one established websocket plus its outbound queue. Frames are
// written by a single goroutine in enqueue order.
type link struct {
	ws *websocket.Conn

	mu        sync.Mutex
	queue     []Frame
	wake      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

func newLink(ws *websocket.Conn) *link {
	return &link{
		ws:     ws,
		wake:   make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (l *link) enqueue(f Frame) {
	l.mu.Lock()
	l.queue = append(l.queue, f)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *link) drain() []Frame {
	l.mu.Lock()
	defer l.mu.Unlock()
	frames := l.queue
	l.queue = nil
	return frames
}

func (l *link) writeLoop(timeout time.Duration) error {
	for {
		select {
		case <-l.closed:
			return nil
		case <-l.wake:
		}
		for _, f := range l.drain() {
			_ = l.ws.SetWriteDeadline(time.Now().Add(timeout))
			if err := l.ws.WriteJSON(f); err != nil {
				return fmt.Errorf("writing %s frame: %w", f.Type, err)
			}
		}
	}
}

func (l *link) close() {
	l.closeOnce.Do(func() {
		close(l.closed)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = l.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		_ = l.ws.Close()
	})
}
