// Package notifications keeps the notification inbox in sync with the server.
package notifications

import (
	"context"
	"fmt"

	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/livecache"
)

type API interface {
	ListNotifications(ctx context.Context) ([]core.Notification, error)
	SendNotification(ctx context.Context, n core.NewNotification) (core.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
	MarkAllNotificationsRead(ctx context.Context) error
}

type Service struct {
	*livecache.Adapter[[]core.Notification]
	api API
}

func New(conn livecache.Conn, api API, topic string, opts ...livecache.AdapterOption) *Service {
	if topic == "" {
		topic = core.TopicNotifications
	}
	return &Service{
		Adapter: livecache.NewAdapter(conn, topic, api.ListNotifications, opts...),
		api:     api,
	}
}

func (s *Service) Send(ctx context.Context, n core.NewNotification) (core.Notification, error) {
	if err := n.Validate(); err != nil {
		return core.Notification{}, err
	}
	var sent core.Notification
	_, err := s.Mutate(ctx, func(ctx context.Context) error {
		var err error
		sent, err = s.api.SendNotification(ctx, n)
		return err
	})
	if err != nil {
		return sent, fmt.Errorf("sending notification: %w", err)
	}
	return sent, nil
}

func (s *Service) MarkRead(ctx context.Context, id string) error {
	_, err := s.Mutate(ctx, func(ctx context.Context) error {
		return s.api.MarkNotificationRead(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context) error {
	_, err := s.Mutate(ctx, s.api.MarkAllNotificationsRead)
	if err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// Unread counts unread notifications in list.
func Unread(list []core.Notification) int {
	n := 0
	for _, item := range list {
		if !item.Read {
			n++
		}
	}
	return n
}
