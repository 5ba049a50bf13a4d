// Package session owns everything a client process shares: one realtime
// connection, one REST client and one service per entity collection, all
// created together and torn down together.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/rubiojr/topicsync/pkg/client"
	"github.com/rubiojr/topicsync/pkg/config"
	"github.com/rubiojr/topicsync/pkg/livecache"
	"github.com/rubiojr/topicsync/pkg/log"
	"github.com/rubiojr/topicsync/pkg/realtime"
	"github.com/rubiojr/topicsync/pkg/services/badges"
	"github.com/rubiojr/topicsync/pkg/services/extrawork"
	"github.com/rubiojr/topicsync/pkg/services/notifications"
	"github.com/rubiojr/topicsync/pkg/services/stats"
)

var logger = log.ForService("session")

type Services struct {
	Badges        *badges.Service
	ExtraWork     *extrawork.Service
	Notifications *notifications.Service
	Stats         *stats.Service
}

type Session struct {
	cfg      config.ClientConfig
	conn     *realtime.Connection
	client   *client.Client
	services Services

	mu      sync.Mutex
	started bool
	closed  bool
	cancel  context.CancelFunc
}

func New(cfg config.ClientConfig) (*Session, error) {
	token, err := cfg.ResolveToken()
	if err != nil {
		return nil, err
	}
	wsURL, err := cfg.WebsocketURL()
	if err != nil {
		return nil, err
	}
	cl, err := client.New(cfg.ServerURL, token, cfg.RequestTimeout.Duration)
	if err != nil {
		return nil, fmt.Errorf("creating rest client: %w", err)
	}

	conn := realtime.NewConnection(realtime.ConnectionConfig{
		URL:            wsURL,
		Token:          token,
		InitialBackoff: cfg.InitialBackoff.Duration,
		MaxBackoff:     cfg.MaxBackoff.Duration,
		ReadTimeout:    cfg.ReadTimeout.Duration,
		ListenerBuffer: cfg.ListenerBuffer,
	})

	opts := []livecache.AdapterOption{livecache.WithFetchTimeout(cfg.RequestTimeout.Duration)}
	s := &Session{
		cfg:    cfg,
		conn:   conn,
		client: cl,
		services: Services{
			Badges:        badges.New(conn, cl, cfg.Topics.Badges, opts...),
			ExtraWork:     extrawork.New(conn, cl, cfg.Topics.ExtraWork, opts...),
			Notifications: notifications.New(conn, cl, cfg.Topics.Notifications, opts...),
			Stats:         stats.New(conn, cl, cfg.Topics.Stats, opts...),
		},
	}
	logger.Debugf("session created for %s (connection %s)", cfg.ServerURL, conn.ID())
	return s, nil
}

// Start installs the invalidation listeners, connects, and follows token
// file rotations when a token file is configured. Calling it again is a
// no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("session closed")
	}
	if s.started {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	if s.cfg.TokenFile != "" {
		if err := config.Watch(ctx, s.cfg.TokenFile, s.reloadToken); err != nil {
			cancel()
			return err
		}
	}

	s.services.Badges.InstallListenerOnce()
	s.services.ExtraWork.InstallListenerOnce()
	s.services.Notifications.InstallListenerOnce()
	s.services.Stats.InstallListenerOnce()

	s.conn.Connect(ctx)
	s.cancel = cancel
	s.started = true
	return nil
}

func (s *Session) reloadToken() {
	token, err := s.cfg.ResolveToken()
	if err != nil {
		logger.Warnf("token file rotation: %v", err)
		return
	}
	s.conn.SetToken(token)
	s.client.SetToken(token)
	logger.Infof("credentials reloaded from %s", s.cfg.TokenFile)
}

func (s *Session) Services() Services {
	return s.services
}

func (s *Session) Connection() *realtime.Connection {
	return s.conn
}

func (s *Session) Client() *client.Client {
	return s.client
}

// Close tears the session down in reverse order of construction.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.services.Stats.Close()
	s.services.Notifications.Close()
	s.services.ExtraWork.Close()
	s.services.Badges.Close()
	s.conn.Close()
}
