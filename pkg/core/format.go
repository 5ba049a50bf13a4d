package core

import (
	"fmt"
	"strings"
)

// Truncate shortens s to at most max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func (b Badge) PrettyText() string {
	var sb strings.Builder
	icon := b.Icon
	if icon == "" {
		icon = "🏅"
	}
	fmt.Fprintf(&sb, "%s %s", icon, b.Name)
	if b.Description != "" {
		fmt.Fprintf(&sb, " - %s", Truncate(b.Description, 100))
	}
	return sb.String()
}

func (w ExtraWork) PrettyText() string {
	return fmt.Sprintf("%s: %.1fh %s [%s]", w.User, w.Hours, Truncate(w.Description, 80), w.Status)
}

func (n Notification) PrettyText() string {
	mark := "●"
	if n.Read {
		mark = "○"
	}
	if n.Body == "" {
		return fmt.Sprintf("%s %s", mark, n.Title)
	}
	return fmt.Sprintf("%s %s: %s", mark, n.Title, Truncate(n.Body, 100))
}
