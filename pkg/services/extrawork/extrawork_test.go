package extrawork

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/livecache/livecachetest"
)

type fakeAPI struct {
	mu      sync.Mutex
	entries []core.ExtraWork
}

func (f *fakeAPI) ListExtraWork(context.Context) ([]core.ExtraWork, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.ExtraWork(nil), f.entries...), nil
}

func (f *fakeAPI) CreateExtraWork(_ context.Context, w core.NewExtraWork) (core.ExtraWork, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := core.ExtraWork{ID: w.User + "-1", User: w.User, Hours: w.Hours, Status: core.WorkPending}
	f.entries = append(f.entries, e)
	return e, nil
}

func (f *fakeAPI) ReviewExtraWork(_ context.Context, id string, approve bool) (core.ExtraWork, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].ID != id {
			continue
		}
		if f.entries[i].Status != core.WorkPending {
			return core.ExtraWork{}, core.ErrConflict
		}
		f.entries[i].Status = core.WorkRejected
		if approve {
			f.entries[i].Status = core.WorkApproved
		}
		return f.entries[i], nil
	}
	return core.ExtraWork{}, core.ErrNotFound
}

func TestExtraWorkLifecycle(t *testing.T) {
	conn := livecachetest.NewConn()
	defer conn.Close()
	svc := New(conn, &fakeAPI{}, "")
	defer svc.Close()

	if _, err := svc.Submit(context.Background(), core.NewExtraWork{User: "ana", Hours: 30}); !errors.Is(err, core.ErrInvalid) {
		t.Fatalf("err = %v", err)
	}

	e, err := svc.Submit(context.Background(), core.NewExtraWork{User: "ana", Hours: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(svc.Pending()) != 1 {
		t.Fatalf("pending = %+v", svc.Pending())
	}

	approved, err := svc.Approve(context.Background(), e.ID)
	if err != nil || approved.Status != core.WorkApproved {
		t.Fatalf("approve = %+v, %v", approved, err)
	}
	if len(svc.Pending()) != 0 {
		t.Fatal("approved entry still pending in cache")
	}

	if _, err := svc.Reject(context.Background(), e.ID); !errors.Is(err, core.ErrConflict) {
		t.Fatalf("err = %v", err)
	}
}

func TestByStatus(t *testing.T) {
	entries := []core.ExtraWork{
		{ID: "1", Status: core.WorkPending},
		{ID: "2", Status: core.WorkApproved},
		{ID: "3", Status: core.WorkPending},
	}
	got := ByStatus(entries, core.WorkPending)
	if len(got) != 2 || got[0].ID != "1" || got[1].ID != "3" {
		t.Fatalf("got %+v", got)
	}
	if ByStatus(nil, core.WorkRejected) != nil {
		t.Fatal("expected nil for empty input")
	}
}
