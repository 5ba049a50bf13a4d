package livecache

import (
	"context"
	"sync"
	"time"

	"github.com/rubiojr/topicsync/pkg/log"
	"github.com/rubiojr/topicsync/pkg/realtime"
)

// FetchFunc is the authoritative read of a collection.
type FetchFunc[T any] func(ctx context.Context) (T, error)

type adapterOptions struct {
	coalesce     bool
	fetchTimeout time.Duration
}

type AdapterOption func(*adapterOptions)

// WithoutCoalescing makes every invalidation event run its own fetch, one
// after the other, in arrival order. Events are counted as they arrive, so a
// burst larger than the listener buffer is not dropped while a fetch runs.
func WithoutCoalescing() AdapterOption {
	return func(o *adapterOptions) { o.coalesce = false }
}

// WithFetchTimeout bounds background fetches (first-consumer refetch and
// invalidations). Refresh and Mutate use the caller's context as is.
func WithFetchTimeout(d time.Duration) AdapterOption {
	return func(o *adapterOptions) { o.fetchTimeout = d }
}

// Adapter binds a topic, a cache and a fetch function for one entity
// collection.
type Adapter[T any] struct {
	topic        string
	fetch        FetchFunc[T]
	fetchTimeout time.Duration
	logger       *log.Logger

	cache     *Cache[T]
	stream    *Stream[T]
	binding *Binding
	// runner is a *Coalescer, or a *Sequencer when coalescing is off.
	runner interface {
		Trigger()
		Wait()
	}

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	started   uint64
	stored    uint64
	closeOnce sync.Once
}

func NewAdapter[T any](conn Conn, topic string, fetch FetchFunc[T], opts ...AdapterOption) *Adapter[T] {
	o := adapterOptions{coalesce: true}
	for _, opt := range opts {
		opt(&o)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter[T]{
		topic:        topic,
		fetch:        fetch,
		fetchTimeout: o.fetchTimeout,
		logger:       logger.Named(topic),
		cache:        NewCache[T](),
		ctx:          ctx,
		cancel:       cancel,
	}
	a.stream = NewStream(conn, topic, a.cache, a.backgroundLoad)

	if o.coalesce {
		a.runner = NewCoalescer(a.invalidated)
	} else {
		a.runner = NewSequencer(a.invalidated)
	}
	a.binding = BindInvalidationListener(conn, topic, func(realtime.Event) {
		a.runner.Trigger()
	})
	return a
}

// Topic returns the topic this adapter is bound to.
func (a *Adapter[T]) Topic() string {
	return a.topic
}

// InstallListenerOnce wires invalidation events to refetches. Safe to call
// any number of times, before or after the connection is up.
func (a *Adapter[T]) InstallListenerOnce() {
	a.binding.Install()
}

// ListenerInstalled reports whether invalidations are being received.
func (a *Adapter[T]) ListenerInstalled() bool {
	return a.binding.Installed()
}

// GetAll attaches a consumer to the shared stream of this collection.
func (a *Adapter[T]) GetAll() *Subscription[T] {
	return a.stream.Subscribe()
}

// Consumers returns the number of attached consumers.
func (a *Adapter[T]) Consumers() int {
	return a.stream.Count()
}

// Current returns the cached value, if any.
func (a *Adapter[T]) Current() (T, bool) {
	return a.cache.Load()
}

// Refresh fetches the collection now. On success the cache is updated and
// the fresh value returned; on failure the cache is left untouched.
func (a *Adapter[T]) Refresh(ctx context.Context) (T, error) {
	return a.load(ctx)
}

// Mutate runs fn and, when it succeeds, refreshes the collection.
func (a *Adapter[T]) Mutate(ctx context.Context, fn func(ctx context.Context) error) (T, error) {
	if err := fn(ctx); err != nil {
		var zero T
		return zero, err
	}
	return a.load(ctx)
}

// load fetches and stores the result unless a fetch started later has
// already stored its own.
func (a *Adapter[T]) load(ctx context.Context) (T, error) {
	a.mu.Lock()
	a.started++
	seq := a.started
	a.mu.Unlock()

	v, err := a.fetch(ctx)
	if err != nil {
		var zero T
		return zero, err
	}

	a.mu.Lock()
	if seq > a.stored {
		a.stored = seq
		a.cache.Store(v)
	} else {
		a.logger.Debugf("discarding stale fetch result")
	}
	a.mu.Unlock()
	return v, nil
}

func (a *Adapter[T]) backgroundLoad(ctx context.Context) error {
	if a.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.fetchTimeout)
		defer cancel()
	}
	_, err := a.load(ctx)
	return err
}

func (a *Adapter[T]) invalidated() {
	if a.ctx.Err() != nil {
		return
	}
	if err := a.backgroundLoad(a.ctx); err != nil {
		a.logger.Warnf("refetch after invalidation failed: %v", err)
	}
}

// Close stops receiving invalidations and cancels background fetches.
func (a *Adapter[T]) Close() {
	a.closeOnce.Do(func() {
		a.cancel()
		a.binding.Close()
		a.runner.Wait()
		a.stream.Close()
	})
}
