// Package api is the reference backend: a REST surface over the storage
// layer plus a websocket endpoint that pushes invalidation events to the
// topics each client subscribed to.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/pubsub/v2"

	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/log"
)

var logger = log.ForService("api")

// Store is the persistence the server needs. *storage.Store implements it.
type Store interface {
	ListBadges(ctx context.Context) ([]core.Badge, error)
	CreateBadge(ctx context.Context, b core.NewBadge) (core.Badge, error)
	DeleteBadge(ctx context.Context, id string) error

	ListExtraWork(ctx context.Context) ([]core.ExtraWork, error)
	CreateExtraWork(ctx context.Context, w core.NewExtraWork) (core.ExtraWork, error)
	ReviewExtraWork(ctx context.Context, id string, approve bool) (core.ExtraWork, error)

	ListNotifications(ctx context.Context) ([]core.Notification, error)
	CreateNotification(ctx context.Context, n core.NewNotification) (core.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) (int64, error)

	Stats(ctx context.Context) (core.PlatformStats, error)
}

type Options struct {
	// Token, when set, is required as a bearer token on /api routes and in
	// websocket subscribe frames.
	Token             string
	HeartbeatInterval time.Duration
	Clock             clock.Clock
}

type Server struct {
	store     Store
	hub       *pubsub.SimpleHub
	clock     clock.Clock
	heartbeat time.Duration

	mu       sync.RWMutex
	token    string
	sessions map[string]*wsSession
}

func NewServer(store Store, opts Options) *Server {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.WallClock
	}
	return &Server{
		store:     store,
		hub:       pubsub.NewSimpleHub(nil),
		clock:     opts.Clock,
		heartbeat: opts.HeartbeatInterval,
		token:     opts.Token,
		sessions:  make(map[string]*wsSession),
	}
}

// SetToken swaps the required token, e.g. after a config reload. Existing
// websocket subscriptions are kept.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Server) currentToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// tokenMatches reports whether presented satisfies the configured token.
// Anything matches when no token is configured.
func (s *Server) tokenMatches(presented string) bool {
	want := s.currentToken()
	if want == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(want), []byte(presented)) == 1
}

// Publish pushes an invalidation for topic to every subscribed session.
func (s *Server) Publish(topic string, payload any) {
	s.hub.Publish(topic, payload)
}

// invalidate announces a change on topic and on the stats topic, which is
// derived from every collection.
func (s *Server) invalidate(topic, action, id string) {
	now := s.clock.Now().UTC()
	s.Publish(topic, Invalidation{Topic: topic, Action: action, ID: id, At: now})
	if topic != core.TopicStats {
		s.Publish(core.TopicStats, Invalidation{Topic: core.TopicStats, Action: "changed", At: now})
	}
}

// Handler returns the full HTTP surface with CORS and auth applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return CorsMiddleware(s.authMiddleware(mux))
}

// Close hangs up every websocket session.
func (s *Server) Close() {
	s.mu.Lock()
	sessions := make([]*wsSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.close()
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("encoding JSON response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, error, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: error, Message: message})
}

// writeStoreError maps storage errors onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, core.ErrInvalid):
		s.writeError(w, http.StatusBadRequest, "invalid", err.Error())
	case errors.Is(err, core.ErrConflict):
		s.writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		logger.Errorf("request failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}
		presented := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !s.tokenMatches(presented) {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func CorsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
