// Package stats keeps the platform statistics in sync with the server.
// Statistics are read-only; they change as a side effect of mutations on
// the other collections, which the server announces on the stats topic.
package stats

import (
	"context"

	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/livecache"
)

type API interface {
	Stats(ctx context.Context) (core.PlatformStats, error)
}

type Service struct {
	*livecache.Adapter[core.PlatformStats]
}

func New(conn livecache.Conn, api API, topic string, opts ...livecache.AdapterOption) *Service {
	if topic == "" {
		topic = core.TopicStats
	}
	return &Service{Adapter: livecache.NewAdapter(conn, topic, api.Stats, opts...)}
}
