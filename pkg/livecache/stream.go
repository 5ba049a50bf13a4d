package livecache

import (
	"context"
	"sync"

	"github.com/rubiojr/topicsync/pkg/log"
)

var logger = log.ForService("livecache")

// TopicSubscriber is the part of the connection a Stream drives. Both calls
// must return without waiting on the network.
type TopicSubscriber interface {
	SubscribeTopic(topic string)
	UnsubscribeTopic(topic string)
}

// RefetchFunc performs the authoritative read for a collection and stores the
// result in its cache.
type RefetchFunc func(ctx context.Context) error

// Stream is a managed topic stream: a shared view over a Cache whose topic
// subscription on the connection lives exactly as long as there is at least
// one consumer.
type Stream[T any] struct {
	topic   string
	conn    TopicSubscriber
	cache   *Cache[T]
	refetch RefetchFunc
	logger  *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	count int
}

// NewStream builds the managed stream for topic. refetch runs once, in the
// background, every time the consumer count goes from 0 to 1.
func NewStream[T any](conn TopicSubscriber, topic string, cache *Cache[T], refetch RefetchFunc) *Stream[T] {
	ctx, cancel := context.WithCancel(context.Background())
	return &Stream[T]{
		topic:   topic,
		conn:    conn,
		cache:   cache,
		refetch: refetch,
		logger:  logger.Named(topic),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Topic returns the managed topic.
func (s *Stream[T]) Topic() string {
	return s.topic
}

// Count returns the number of attached consumers.
func (s *Stream[T]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Subscribe attaches a consumer. The subscription channel receives the
// cached value right away when there is one, then every update. The first
// consumer subscribes the topic and starts a refetch; later ones do neither.
func (s *Stream[T]) Subscribe() *Subscription[T] {
	s.mu.Lock()
	s.count++
	first := s.count == 1
	if first {
		s.conn.SubscribeTopic(s.topic)
	}
	id, ch := s.cache.Watch()
	s.mu.Unlock()

	if first {
		s.logger.Debugf("first consumer attached, subscribing")
		s.startRefetch()
	}
	return &Subscription[T]{C: ch, id: id, stream: s}
}

func (s *Stream[T]) startRefetch() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.refetch(s.ctx); err != nil {
			s.logger.Warnf("refetch failed: %v", err)
		}
	}()
}

func (s *Stream[T]) release(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Unwatch(id)
	s.count--
	if s.count == 0 {
		s.conn.UnsubscribeTopic(s.topic)
		s.logger.Debugf("last consumer detached, unsubscribed")
	}
}

// Close cancels refetches still running and waits for them. Consumers that
// are still attached keep their (now frozen) subscriptions until they Close.
func (s *Stream[T]) Close() {
	s.cancel()
	s.wg.Wait()
}

// Subscription is one attached consumer of a Stream.
type Subscription[T any] struct {
	C <-chan T

	id     uint64
	stream *Stream[T]
	once   sync.Once
}

// Close detaches the consumer and closes C. Safe to call more than once.
func (sub *Subscription[T]) Close() {
	sub.once.Do(func() {
		sub.stream.release(sub.id)
	})
}
