package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/rubiojr/topicsync/pkg/core"
)

func (c *Client) ListBadges(ctx context.Context) ([]core.Badge, error) {
	var out []core.Badge
	err := c.do(ctx, http.MethodGet, "/api/badges", nil, &out)
	return out, err
}

func (c *Client) CreateBadge(ctx context.Context, b core.NewBadge) (core.Badge, error) {
	var out core.Badge
	err := c.do(ctx, http.MethodPost, "/api/badges", b, &out)
	return out, err
}

func (c *Client) DeleteBadge(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/badges/"+url.PathEscape(id), nil, nil)
}

func (c *Client) ListExtraWork(ctx context.Context) ([]core.ExtraWork, error) {
	var out []core.ExtraWork
	err := c.do(ctx, http.MethodGet, "/api/extra-work", nil, &out)
	return out, err
}

func (c *Client) CreateExtraWork(ctx context.Context, w core.NewExtraWork) (core.ExtraWork, error) {
	var out core.ExtraWork
	err := c.do(ctx, http.MethodPost, "/api/extra-work", w, &out)
	return out, err
}

// ReviewExtraWork approves or rejects a pending entry.
func (c *Client) ReviewExtraWork(ctx context.Context, id string, approve bool) (core.ExtraWork, error) {
	action := "reject"
	if approve {
		action = "approve"
	}
	var out core.ExtraWork
	err := c.do(ctx, http.MethodPost, "/api/extra-work/"+url.PathEscape(id)+"/"+action, nil, &out)
	return out, err
}

func (c *Client) ListNotifications(ctx context.Context) ([]core.Notification, error) {
	var out []core.Notification
	err := c.do(ctx, http.MethodGet, "/api/notifications", nil, &out)
	return out, err
}

func (c *Client) SendNotification(ctx context.Context, n core.NewNotification) (core.Notification, error) {
	var out core.Notification
	err := c.do(ctx, http.MethodPost, "/api/notifications", n, &out)
	return out, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/notifications/read-all", nil, nil)
}

func (c *Client) Stats(ctx context.Context) (core.PlatformStats, error) {
	var out core.PlatformStats
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &out)
	return out, err
}
