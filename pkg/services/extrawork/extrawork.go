// Package extrawork keeps the extra work ledger in sync with the server.
package extrawork

import (
	"context"
	"fmt"

	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/livecache"
)

type API interface {
	ListExtraWork(ctx context.Context) ([]core.ExtraWork, error)
	CreateExtraWork(ctx context.Context, w core.NewExtraWork) (core.ExtraWork, error)
	ReviewExtraWork(ctx context.Context, id string, approve bool) (core.ExtraWork, error)
}

type Service struct {
	*livecache.Adapter[[]core.ExtraWork]
	api API
}

func New(conn livecache.Conn, api API, topic string, opts ...livecache.AdapterOption) *Service {
	if topic == "" {
		topic = core.TopicExtraWork
	}
	return &Service{
		Adapter: livecache.NewAdapter(conn, topic, api.ListExtraWork, opts...),
		api:     api,
	}
}

// Submit records a new pending entry.
func (s *Service) Submit(ctx context.Context, w core.NewExtraWork) (core.ExtraWork, error) {
	if err := w.Validate(); err != nil {
		return core.ExtraWork{}, err
	}
	var created core.ExtraWork
	_, err := s.Mutate(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.api.CreateExtraWork(ctx, w)
		return err
	})
	if err != nil {
		return created, fmt.Errorf("submitting extra work: %w", err)
	}
	return created, nil
}

func (s *Service) Approve(ctx context.Context, id string) (core.ExtraWork, error) {
	return s.review(ctx, id, true)
}

func (s *Service) Reject(ctx context.Context, id string) (core.ExtraWork, error) {
	return s.review(ctx, id, false)
}

func (s *Service) review(ctx context.Context, id string, approve bool) (core.ExtraWork, error) {
	var reviewed core.ExtraWork
	_, err := s.Mutate(ctx, func(ctx context.Context) error {
		var err error
		reviewed, err = s.api.ReviewExtraWork(ctx, id, approve)
		return err
	})
	if err != nil {
		return reviewed, fmt.Errorf("reviewing extra work %s: %w", id, err)
	}
	return reviewed, nil
}

// ByStatus filters entries, keeping their order.
func ByStatus(entries []core.ExtraWork, status core.WorkStatus) []core.ExtraWork {
	var out []core.ExtraWork
	for _, e := range entries {
		if e.Status == status {
			out = append(out, e)
		}
	}
	return out
}

// Pending returns the cached entries awaiting review.
func (s *Service) Pending() []core.ExtraWork {
	entries, _ := s.Current()
	return ByStatus(entries, core.WorkPending)
}
