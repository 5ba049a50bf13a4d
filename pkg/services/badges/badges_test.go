package badges

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/livecache/livecachetest"
)

type fakeAPI struct {
	mu     sync.Mutex
	badges []core.Badge
	lists  int
	fail   error
}

func (f *fakeAPI) ListBadges(context.Context) ([]core.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.fail != nil {
		return nil, f.fail
	}
	return append([]core.Badge(nil), f.badges...), nil
}

func (f *fakeAPI) CreateBadge(_ context.Context, b core.NewBadge) (core.Badge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	created := core.Badge{ID: fmt.Sprint(len(f.badges) + 1), Name: b.Name, CreatedAt: time.Now()}
	f.badges = append(f.badges, created)
	return created, nil
}

func (f *fakeAPI) DeleteBadge(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, b := range f.badges {
		if b.ID == id {
			f.badges = append(f.badges[:i], f.badges[i+1:]...)
			return nil
		}
	}
	return core.ErrNotFound
}

func (f *fakeAPI) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

func TestBadgesSharedStream(t *testing.T) {
	conn := livecachetest.NewConn()
	defer conn.Close()
	api := &fakeAPI{badges: []core.Badge{{ID: "1", Name: "Gold"}}}
	svc := New(conn, api, "")
	defer svc.Close()

	first := svc.GetAll()
	select {
	case got := <-first.C:
		if len(got) != 1 || got[0].Name != "Gold" {
			t.Fatalf("got %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no badges delivered")
	}

	second := svc.GetAll()
	select {
	case got := <-second.C:
		if len(got) != 1 {
			t.Fatalf("got %+v", got)
		}
	default:
		t.Fatal("cached badges not replayed")
	}
	if subs, _, _ := conn.Counts("badges"); subs != 1 || api.listCalls() != 1 {
		t.Fatalf("subs=%d lists=%d", subs, api.listCalls())
	}

	first.Close()
	second.Close()
	if _, unsubs, _ := conn.Counts("badges"); unsubs != 1 {
		t.Fatalf("unsubs = %d", unsubs)
	}
}

func TestBadgesCreateAndDeleteRefresh(t *testing.T) {
	conn := livecachetest.NewConn()
	defer conn.Close()
	api := &fakeAPI{}
	svc := New(conn, api, "team-badges")
	defer svc.Close()

	if svc.Topic() != "team-badges" {
		t.Fatalf("topic = %q", svc.Topic())
	}
	if _, err := svc.Create(context.Background(), core.NewBadge{}); !errors.Is(err, core.ErrInvalid) {
		t.Fatalf("err = %v", err)
	}
	if api.listCalls() != 0 {
		t.Fatal("invalid badge reached the api")
	}

	b, err := svc.Create(context.Background(), core.NewBadge{Name: "Silver"})
	if err != nil {
		t.Fatal(err)
	}
	if cur, _ := svc.Current(); len(cur) != 1 || cur[0].ID != b.ID {
		t.Fatalf("cache = %+v", cur)
	}

	if err := svc.Delete(context.Background(), b.ID); err != nil {
		t.Fatal(err)
	}
	if cur, _ := svc.Current(); len(cur) != 0 {
		t.Fatalf("cache after delete = %+v", cur)
	}
	if err := svc.Delete(context.Background(), "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestBadgesInvalidationRefetches(t *testing.T) {
	conn := livecachetest.NewConn()
	defer conn.Close()
	api := &fakeAPI{}
	svc := New(conn, api, "")
	defer svc.Close()

	svc.InstallListenerOnce()
	conn.Connect()

	api.mu.Lock()
	api.badges = []core.Badge{{ID: "9", Name: "Remote"}}
	api.mu.Unlock()
	conn.Emit("badges")

	ok := livecachetest.Eventually(5*time.Second, func() bool {
		cur, _ := svc.Current()
		return len(cur) == 1 && cur[0].Name == "Remote"
	})
	if !ok {
		t.Fatal("cache not refreshed after invalidation")
	}
}
