package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/version"
)

const maxBodyBytes = 1 << 20

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", core.ErrInvalid, err)
	}
	return nil
}

func (s *Server) HandleListBadges(w http.ResponseWriter, r *http.Request) {
	badges, err := s.store.ListBadges(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, badges)
}

func (s *Server) HandleCreateBadge(w http.ResponseWriter, r *http.Request) {
	var in core.NewBadge
	if err := decodeBody(r, &in); err != nil {
		s.writeStoreError(w, err)
		return
	}
	b, err := s.store.CreateBadge(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.invalidate(core.TopicBadges, "created", b.ID)
	s.writeJSON(w, http.StatusCreated, b)
}

func (s *Server) HandleDeleteBadge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.DeleteBadge(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.invalidate(core.TopicBadges, "deleted", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleListExtraWork(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListExtraWork(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) HandleCreateExtraWork(w http.ResponseWriter, r *http.Request) {
	var in core.NewExtraWork
	if err := decodeBody(r, &in); err != nil {
		s.writeStoreError(w, err)
		return
	}
	e, err := s.store.CreateExtraWork(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.invalidate(core.TopicExtraWork, "created", e.ID)
	s.writeJSON(w, http.StatusCreated, e)
}

func (s *Server) HandleReviewExtraWork(approve bool) http.HandlerFunc {
	action := "rejected"
	if approve {
		action = "approved"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := s.store.ReviewExtraWork(r.Context(), r.PathValue("id"), approve)
		if err != nil {
			s.writeStoreError(w, err)
			return
		}
		s.invalidate(core.TopicExtraWork, action, e.ID)
		s.writeJSON(w, http.StatusOK, e)
	}
}

func (s *Server) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListNotifications(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) HandleCreateNotification(w http.ResponseWriter, r *http.Request) {
	var in core.NewNotification
	if err := decodeBody(r, &in); err != nil {
		s.writeStoreError(w, err)
		return
	}
	n, err := s.store.CreateNotification(r.Context(), in)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.invalidate(core.TopicNotifications, "created", n.ID)
	s.writeJSON(w, http.StatusCreated, n)
}

func (s *Server) HandleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.store.MarkNotificationRead(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.invalidate(core.TopicNotifications, "read", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.MarkAllNotificationsRead(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if n > 0 {
		s.invalidate(core.TopicNotifications, "read", "")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	sessions := len(s.sessions)
	s.mu.RUnlock()

	s.writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: s.clock.Now().UTC(),
		Version:   version.APIVersion(),
		Sessions:  sessions,
	})
}
