package integration_tests

import (
	"context"
	"testing"
	"time"

	"github.com/rubiojr/topicsync/pkg/client"
	"github.com/rubiojr/topicsync/pkg/core"
	"github.com/rubiojr/topicsync/pkg/livecache/livecachetest"
)

func TestTwoSessionsStayInSync(t *testing.T) {
	b := newBackend(t, "")
	viewer := newSession(t, b, "")
	editor := newSession(t, b, "")
	ctx := context.Background()

	// Stats first: frames are handled in order, so once extra-work pushes
	// arrive the stats subscription is live too.
	stats := viewer.Services().Stats.GetAll()
	defer stats.Close()
	work := viewer.Services().ExtraWork.GetAll()
	defer work.Close()

	waitFor(t, work.C, nil, func(l []core.ExtraWork) bool { return len(l) == 0 })

	submit := func() core.ExtraWork {
		w, err := editor.Services().ExtraWork.Submit(ctx, core.NewExtraWork{User: "ana", Hours: 2, Description: "release"})
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		return w
	}
	first := submit()
	waitFor(t, work.C, func() { submit() }, func(l []core.ExtraWork) bool {
		for _, w := range l {
			if w.ID == first.ID {
				return true
			}
		}
		return false
	})

	if _, err := editor.Services().ExtraWork.Approve(ctx, first.ID); err != nil {
		t.Fatalf("approve: %v", err)
	}
	waitFor(t, work.C, nil, func(l []core.ExtraWork) bool {
		for _, w := range l {
			if w.ID == first.ID {
				return w.Status == core.WorkApproved
			}
		}
		return false
	})
	st := waitFor(t, stats.C, nil, func(s core.PlatformStats) bool { return s.ExtraWorkApproved == 1 })
	if st.ApprovedHours != 2 {
		t.Fatalf("approved hours = %v, want 2", st.ApprovedHours)
	}

	// The editor's own cache was refreshed by the mutation.
	list, ok := editor.Services().ExtraWork.Current()
	if !ok || len(list) == 0 {
		t.Fatalf("editor cache = %+v (loaded=%v)", list, ok)
	}
}

func TestSessionSurvivesServerRestart(t *testing.T) {
	b := newBackend(t, "")
	s := newSession(t, b, "")

	badges := s.Services().Badges.GetAll()
	defer badges.Close()
	waitFor(t, badges.C, nil, func(l []core.Badge) bool { return len(l) == 0 })

	b.restart()

	cl, err := client.New(b.url(), "", 5*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	create := func() {
		if _, err := cl.CreateBadge(context.Background(), core.NewBadge{Name: "restart-" + time.Now().Format(time.RFC3339Nano)}); err != nil {
			t.Logf("create badge: %v", err)
		}
	}
	if !livecachetest.Eventually(5*time.Second, s.Connection().IsConnected) {
		t.Fatal("session did not reconnect")
	}
	create()
	waitFor(t, badges.C, create, func(l []core.Badge) bool { return len(l) > 0 })
}

func TestTokenIsEnforced(t *testing.T) {
	b := newBackend(t, "secret")
	ctx := context.Background()

	intruder := newSession(t, b, "wrong")
	if _, err := intruder.Services().Badges.Create(ctx, core.NewBadge{Name: "nope"}); err == nil {
		t.Fatal("expected create with wrong token to fail")
	}
	if _, err := intruder.Services().Badges.Refresh(ctx); err == nil {
		t.Fatal("expected list with wrong token to fail")
	}

	owner := newSession(t, b, "secret")
	badge, err := owner.Services().Badges.Create(ctx, core.NewBadge{Name: "gold"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	list, ok := owner.Services().Badges.Current()
	if !ok || len(list) != 1 || list[0].ID != badge.ID {
		t.Fatalf("owner cache = %+v", list)
	}
}
