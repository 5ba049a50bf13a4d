package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidation(t *testing.T) {
	tests := []struct {
		name  string
		input interface{ Validate() error }
		ok    bool
	}{
		{"badge ok", NewBadge{Name: "Gold"}, true},
		{"badge blank name", NewBadge{Name: "  "}, false},
		{"work ok", NewExtraWork{User: "ana", Hours: 2.5}, true},
		{"work no user", NewExtraWork{Hours: 1}, false},
		{"work zero hours", NewExtraWork{User: "ana"}, false},
		{"work too many hours", NewExtraWork{User: "ana", Hours: 25}, false},
		{"notification ok", NewNotification{Title: "hi"}, true},
		{"notification no title", NewNotification{Body: "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("abcdefghij", 6); got != "abc..." {
		t.Errorf("got %q", got)
	}
	if got := Truncate("ñañañaña", 5); got != "ña..." {
		t.Errorf("got %q", got)
	}
}

func TestPrettyText(t *testing.T) {
	b := Badge{Name: "Gold", Description: "top"}
	if got := b.PrettyText(); got != "🏅 Gold - top" {
		t.Errorf("badge: %q", got)
	}
	w := ExtraWork{User: "ana", Hours: 2, Description: "deploy", Status: WorkPending, CreatedAt: time.Now()}
	if got := w.PrettyText(); got != "ana: 2.0h deploy [pending]" {
		t.Errorf("work: %q", got)
	}
	n := Notification{Title: "hi", Read: true}
	if got := n.PrettyText(); got != "○ hi" {
		t.Errorf("notification: %q", got)
	}
}
