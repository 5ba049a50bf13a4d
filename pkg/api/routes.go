package api

import (
	"net/http"
)

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/badges", s.HandleListBadges)
	mux.HandleFunc("POST /api/badges", s.HandleCreateBadge)
	mux.HandleFunc("DELETE /api/badges/{id}", s.HandleDeleteBadge)

	mux.HandleFunc("GET /api/extra-work", s.HandleListExtraWork)
	mux.HandleFunc("POST /api/extra-work", s.HandleCreateExtraWork)
	mux.HandleFunc("POST /api/extra-work/{id}/approve", s.HandleReviewExtraWork(true))
	mux.HandleFunc("POST /api/extra-work/{id}/reject", s.HandleReviewExtraWork(false))

	mux.HandleFunc("GET /api/notifications", s.HandleListNotifications)
	mux.HandleFunc("POST /api/notifications", s.HandleCreateNotification)
	mux.HandleFunc("POST /api/notifications/read-all", s.HandleMarkAllNotificationsRead)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.HandleMarkNotificationRead)

	mux.HandleFunc("GET /api/stats", s.HandleStats)
	mux.HandleFunc("GET /health", s.HandleHealth)
	mux.HandleFunc("GET /ws", s.HandleWebsocket)
}
