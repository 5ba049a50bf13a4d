// Package badges keeps the badge catalog in sync with the server.
package badges

import (
	"context"
	"fmt"

	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/livecache"
)

// API is the REST surface the service needs. *client.Client implements it.
type API interface {
	ListBadges(ctx context.Context) ([]core.Badge, error)
	CreateBadge(ctx context.Context, b core.NewBadge) (core.Badge, error)
	DeleteBadge(ctx context.Context, id string) error
}

type Service struct {
	*livecache.Adapter[[]core.Badge]
	api API
}

func New(conn livecache.Conn, api API, topic string, opts ...livecache.AdapterOption) *Service {
	if topic == "" {
		topic = core.TopicBadges
	}
	return &Service{
		Adapter: livecache.NewAdapter(conn, topic, api.ListBadges, opts...),
		api:     api,
	}
}

// Create adds a badge and refreshes the catalog.
func (s *Service) Create(ctx context.Context, b core.NewBadge) (core.Badge, error) {
	if err := b.Validate(); err != nil {
		return core.Badge{}, err
	}
	var created core.Badge
	_, err := s.Mutate(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.api.CreateBadge(ctx, b)
		return err
	})
	if err != nil {
		return created, fmt.Errorf("creating badge: %w", err)
	}
	return created, nil
}

// Delete removes a badge and refreshes the catalog.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.Mutate(ctx, func(ctx context.Context) error {
		return s.api.DeleteBadge(ctx, id)
	})
	if err != nil {
		return fmt.Errorf("deleting badge %s: %w", id, err)
	}
	return nil
}
