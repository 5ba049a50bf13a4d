// Package core holds the entities shared by the client services and the
// reference backend, and the topic names their invalidations travel on.
package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default topic names. Each one doubles as the invalidation event name.
const (
	TopicBadges        = "badges"
	TopicExtraWork     = "extra-work"
	TopicNotifications = "notifications"
	TopicStats         = "stats"
)

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid input")
	ErrConflict = errors.New("conflict")
)

type Badge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type NewBadge struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

func (b NewBadge) Validate() error {
	if strings.TrimSpace(b.Name) == "" {
		return fmt.Errorf("%w: badge name is required", ErrInvalid)
	}
	return nil
}

// WorkStatus is the review state of an extra work entry.
type WorkStatus string

const (
	WorkPending  WorkStatus = "pending"
	WorkApproved WorkStatus = "approved"
	WorkRejected WorkStatus = "rejected"
)

// MaxHoursPerEntry caps a single extra work entry.
const MaxHoursPerEntry = 24

type ExtraWork struct {
	ID          string     `json:"id"`
	User        string     `json:"user"`
	Hours       float64    `json:"hours"`
	Description string     `json:"description"`
	Status      WorkStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
}

type NewExtraWork struct {
	User        string  `json:"user"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
}

func (w NewExtraWork) Validate() error {
	if strings.TrimSpace(w.User) == "" {
		return fmt.Errorf("%w: user is required", ErrInvalid)
	}
	if w.Hours <= 0 || w.Hours > MaxHoursPerEntry {
		return fmt.Errorf("%w: hours must be in (0, %d]", ErrInvalid, MaxHoursPerEntry)
	}
	return nil
}

type Notification struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

type NewNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (n NewNotification) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: notification title is required", ErrInvalid)
	}
	return nil
}

// PlatformStats is an aggregate over every other collection.
type PlatformStats struct {
	Badges              int       `json:"badges"`
	ExtraWorkPending    int       `json:"extra_work_pending"`
	ExtraWorkApproved   int       `json:"extra_work_approved"`
	ExtraWorkRejected   int       `json:"extra_work_rejected"`
	ApprovedHours       float64   `json:"approved_hours"`
	Notifications       int       `json:"notifications"`
	UnreadNotifications int       `json:"unread_notifications"`
	GeneratedAt         time.Time `json:"generated_at"`
}
