package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/services/extrawork"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1).
			Margin(0, 0, 1, 0)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214")).
			Margin(1, 0, 0, 0)

	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	summaryStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("32")).
			Border(lipgloss.ThickBorder()).
			BorderForeground(lipgloss.Color("32")).
			Padding(0, 1).
			Margin(1, 0, 0, 0)

	noDataStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	statusStyles = map[core.WorkStatus]lipgloss.Style{
		core.WorkPending:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		core.WorkApproved: lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		core.WorkRejected: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}

	titleCaser = cases.Title(language.English)
)

// formatNumber formats a number with K/M suffixes for readability
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	} else if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// formatTime formats a time relative to now or as an absolute date
func formatTime(t time.Time) string {
	return formatTimeAt(t, time.Now())
}

func formatTimeAt(t, now time.Time) string {
	diff := now.Sub(t)

	if diff < 24*time.Hour {
		if diff < time.Hour {
			minutes := int(diff.Minutes())
			if minutes < 1 {
				return "just now"
			}
			return fmt.Sprintf("%d minutes ago", minutes)
		}
		return fmt.Sprintf("%d hours ago", int(diff.Hours()))
	}

	if diff < 7*24*time.Hour {
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	}

	if t.Year() == now.Year() {
		return t.Format("Jan 2, 15:04")
	}
	return t.Format("Jan 2, 2006")
}

// formatHours renders a fractional hour count, dropping a trailing ".0".
func formatHours(h float64) string {
	s := fmt.Sprintf("%.1f", h)
	return strings.TrimSuffix(s, ".0") + "h"
}

func renderTitle(topic string) string {
	return titleStyle.Render(titleCaser.String(strings.ReplaceAll(topic, "-", " ")))
}

func renderBadges(list []core.Badge) string {
	var sb strings.Builder
	sb.WriteString(renderTitle(core.TopicBadges))
	sb.WriteString("\n")
	if len(list) == 0 {
		sb.WriteString(noDataStyle.Render("No badges yet."))
		return sb.String()
	}
	for _, b := range list {
		sb.WriteString(itemStyle.Render(b.PrettyText()))
		sb.WriteString(" ")
		sb.WriteString(metaStyle.Render(b.ID + " · " + formatTime(b.CreatedAt)))
		sb.WriteString("\n")
	}
	sb.WriteString(summaryStyle.Render(fmt.Sprintf("%s badges", formatNumber(len(list)))))
	return sb.String()
}

func renderExtraWork(list []core.ExtraWork) string {
	var sb strings.Builder
	sb.WriteString(renderTitle(core.TopicExtraWork))
	sb.WriteString("\n")
	if len(list) == 0 {
		sb.WriteString(noDataStyle.Render("No extra work submitted."))
		return sb.String()
	}
	for _, status := range []core.WorkStatus{core.WorkPending, core.WorkApproved, core.WorkRejected} {
		group := extrawork.ByStatus(list, status)
		if len(group) == 0 {
			continue
		}
		style := statusStyles[status]
		sb.WriteString("\n")
		sb.WriteString(style.Bold(true).Render(fmt.Sprintf("%s (%d)", titleCaser.String(string(status)), len(group))))
		sb.WriteString("\n")
		for _, w := range group {
			line := fmt.Sprintf("%s %s %s", w.User, formatHours(w.Hours), core.Truncate(w.Description, 80))
			sb.WriteString(itemStyle.Render(line))
			sb.WriteString(" ")
			sb.WriteString(metaStyle.Render(w.ID + " · " + formatTime(w.CreatedAt)))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func renderNotifications(list []core.Notification) string {
	var sb strings.Builder
	sb.WriteString(renderTitle(core.TopicNotifications))
	sb.WriteString("\n")
	if len(list) == 0 {
		sb.WriteString(noDataStyle.Render("No notifications."))
		return sb.String()
	}
	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
		sb.WriteString(itemStyle.Render(n.PrettyText()))
		sb.WriteString(" ")
		sb.WriteString(metaStyle.Render(n.ID + " · " + formatTime(n.CreatedAt)))
		sb.WriteString("\n")
	}
	sb.WriteString(summaryStyle.Render(fmt.Sprintf("%d unread of %s", unread, formatNumber(len(list)))))
	return sb.String()
}

func renderStats(s core.PlatformStats) string {
	var sb strings.Builder
	sb.WriteString(renderTitle(core.TopicStats))
	sb.WriteString("\n")
	rows := [][2]string{
		{"Badges", formatNumber(s.Badges)},
		{"Extra work pending", formatNumber(s.ExtraWorkPending)},
		{"Extra work approved", formatNumber(s.ExtraWorkApproved)},
		{"Extra work rejected", formatNumber(s.ExtraWorkRejected)},
		{"Approved hours", formatHours(s.ApprovedHours)},
		{"Notifications", formatNumber(s.Notifications)},
		{"Unread notifications", formatNumber(s.UnreadNotifications)},
	}
	for _, r := range rows {
		sb.WriteString(itemStyle.Render(fmt.Sprintf("%-22s %s", r[0]+":", r[1])))
		sb.WriteString("\n")
	}
	if !s.GeneratedAt.IsZero() {
		sb.WriteString(metaStyle.Render("generated " + formatTime(s.GeneratedAt)))
	}
	return sb.String()
}
