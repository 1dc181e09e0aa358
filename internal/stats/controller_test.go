package stats

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/remote"
	"expensetracker/internal/status"
)

type fakeStats struct {
	mu      sync.Mutex
	fetchFn func(ctx context.Context, username string, p core.Period) (core.StatsSnapshot, error)
	calls   []core.Period
}

func (f *fakeStats) FetchStats(ctx context.Context, username string, p core.Period) (core.StatsSnapshot, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	fn := f.fetchFn
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, username, p)
	}
	return core.StatsSnapshot{Month: p.Month, Year: p.Year, TotalSpent: core.Money{Cents: 700}}, nil
}

func march2024() time.Time {
	return time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)
}

func newController(svc *fakeStats) (*Controller, *status.Channel) {
	ch := status.NewChannel(nil)
	return NewController(svc, ch, nil, WithClock(march2024)), ch
}

func TestDefaultPeriodIsCurrent(t *testing.T) {
	c, _ := newController(&fakeStats{})
	if got := c.Period(); got != (core.Period{Month: 3, Year: 2024}) {
		t.Fatalf("period = %v", got)
	}
	if _, ok := c.Snapshot(); ok {
		t.Fatal("no snapshot expected before the first refresh")
	}
}

func TestSetPeriod(t *testing.T) {
	tests := []struct {
		name    string
		period  core.Period
		changed bool
		err     error
	}{
		{"same", core.Period{Month: 3, Year: 2024}, false, nil},
		{"new month", core.Period{Month: 4, Year: 2024}, true, nil},
		{"month zero", core.Period{Month: 0, Year: 2024}, false, core.ErrInvalidMonth},
		{"month 13", core.Period{Month: 13, Year: 2024}, false, core.ErrInvalidMonth},
		{"year too early", core.Period{Month: 1, Year: 1999}, false, core.ErrInvalidYear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(&fakeStats{})
			changed, err := c.SetPeriod(tt.period)
			if !errors.Is(err, tt.err) || changed != tt.changed {
				t.Fatalf("SetPeriod = %v, %v; want %v, %v", changed, err, tt.changed, tt.err)
			}
			if err != nil && c.Period() != (core.Period{Month: 3, Year: 2024}) {
				t.Fatal("invalid period must not be selected")
			}
		})
	}
}

func TestRefreshStoresSnapshot(t *testing.T) {
	svc := &fakeStats{fetchFn: func(_ context.Context, _ string, p core.Period) (core.StatsSnapshot, error) {
		// the key is missing from the payload
		return core.StatsSnapshot{TotalSpent: core.Money{Cents: 6550}, HighestExpense: core.Money{Cents: 3750}}, nil
	}}
	c, _ := newController(svc)

	ok, err := c.Refresh(context.Background(), "alice", c.Period())
	if err != nil || !ok {
		t.Fatalf("Refresh = %v, %v", ok, err)
	}
	snap, held := c.Snapshot()
	if !held || snap.TotalSpent.String() != "65.50" || snap.Period() != c.Period() {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	fail := false
	svc := &fakeStats{}
	svc.fetchFn = func(_ context.Context, _ string, p core.Period) (core.StatsSnapshot, error) {
		if fail {
			return core.StatsSnapshot{}, &remote.RemoteError{StatusCode: http.StatusInternalServerError}
		}
		return core.StatsSnapshot{Month: p.Month, Year: p.Year, TotalSpent: core.Money{Cents: 700}}, nil
	}
	c, ch := newController(svc)
	_, _ = c.Refresh(context.Background(), "alice", c.Period())

	fail = true
	ok, err := c.Refresh(context.Background(), "alice", core.Period{Month: 4, Year: 2024})
	if ok || err != nil {
		t.Fatalf("Refresh = %v, %v", ok, err)
	}
	snap, held := c.Snapshot()
	if !held || snap.Month != 3 || snap.TotalSpent.Cents != 700 {
		t.Fatalf("snapshot changed on failure: %+v", snap)
	}
	if got := ch.Latest(); got.Kind != status.KindFailure || got.Message != MsgFetchFailed {
		t.Fatalf("unexpected status %+v", got)
	}
}

func TestRefreshSurfacesServerMessage(t *testing.T) {
	svc := &fakeStats{fetchFn: func(context.Context, string, core.Period) (core.StatsSnapshot, error) {
		return core.StatsSnapshot{}, &remote.RemoteError{StatusCode: http.StatusNotFound, Message: "User not found"}
	}}
	c, ch := newController(svc)
	_, _ = c.Refresh(context.Background(), "ghost", c.Period())
	if ch.Latest().Message != "User not found" {
		t.Fatalf("unexpected status %+v", ch.Latest())
	}
}

func TestRefreshValidation(t *testing.T) {
	svc := &fakeStats{}
	c, _ := newController(svc)

	if _, err := c.Refresh(context.Background(), "", c.Period()); !errors.Is(err, core.ErrEmptyUsername) {
		t.Fatalf("expected ErrEmptyUsername, got %v", err)
	}
	if _, err := c.Refresh(context.Background(), "alice", core.Period{Month: 2, Year: 1990}); !errors.Is(err, core.ErrInvalidYear) {
		t.Fatalf("expected ErrInvalidYear, got %v", err)
	}
	if len(svc.calls) != 0 {
		t.Fatal("invalid refresh reached the service")
	}
}

func TestLastRequestWins(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	svc := &fakeStats{fetchFn: func(_ context.Context, _ string, p core.Period) (core.StatsSnapshot, error) {
		if p.Month == 1 {
			close(started)
			<-release
		}
		return core.StatsSnapshot{Month: p.Month, Year: p.Year}, nil
	}}
	c, _ := newController(svc)

	done := make(chan bool)
	go func() {
		ok, _ := c.Refresh(context.Background(), "alice", core.Period{Month: 1, Year: 2024})
		done <- ok
	}()
	<-started

	if ok, _ := c.Refresh(context.Background(), "alice", core.Period{Month: 2, Year: 2024}); !ok {
		t.Fatal("newer refresh should apply")
	}
	close(release)
	if <-done {
		t.Fatal("older refresh completing last must be dropped")
	}
	if snap, _ := c.Snapshot(); snap.Month != 2 {
		t.Fatalf("snapshot month = %d, want 2", snap.Month)
	}
}

func TestReset(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	svc := &fakeStats{fetchFn: func(_ context.Context, _ string, p core.Period) (core.StatsSnapshot, error) {
		close(started)
		<-release
		return core.StatsSnapshot{Month: p.Month, Year: p.Year}, nil
	}}
	c, _ := newController(svc)
	_, _ = c.SetPeriod(core.Period{Month: 7, Year: 2023})

	done := make(chan bool)
	go func() {
		ok, _ := c.Refresh(context.Background(), "alice", c.Period())
		done <- ok
	}()
	<-started
	c.Reset()
	close(release)

	if <-done {
		t.Fatal("refresh issued before reset must be dropped")
	}
	if _, held := c.Snapshot(); held {
		t.Fatal("reset snapshot was repopulated")
	}
	if c.Period() != (core.Period{Month: 3, Year: 2024}) {
		t.Fatalf("period not restored: %v", c.Period())
	}
}

func TestRefreshAtFinishedEpoch(t *testing.T) {
	svc := &fakeStats{}
	c, ch := newController(svc)
	epoch := c.Epoch()
	c.Reset()

	ok, err := c.RefreshAt(context.Background(), epoch, "alice", c.Period())
	if ok || err != nil {
		t.Fatalf("RefreshAt = %v, %v", ok, err)
	}
	if len(svc.calls) != 0 {
		t.Fatalf("no fetch expected from a finished epoch, got %v", svc.calls)
	}
	if _, held := c.Snapshot(); held {
		t.Fatal("snapshot must stay empty")
	}
	if got := ch.Latest(); !got.IsZero() {
		t.Fatalf("no status expected, got %+v", got)
	}
}
