// Package stats holds the monthly aggregate snapshot and the period it is
// selected for.
package stats

import (
	"context"
	"sync"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/remote"
	"expensetracker/internal/status"
)

// MsgFetchFailed is published when a refresh fails without a server message.
const MsgFetchFailed = "Failed to fetch stats"

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the clock used to pick the default period.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller holds the selected period and at most one snapshot. Refreshes
// are last-request-wins; the lock is never held across a service call.
type Controller struct {
	mu       sync.Mutex
	period   core.Period
	snapshot *core.StatsSnapshot
	epoch    uint64
	issued   uint64
	applied  uint64

	svc    remote.StatsService
	status *status.Channel
	logger *log.Logger
	now    func() time.Time
}

// NewController returns a controller with no snapshot and the current month
// selected. Failures are published on ch.
func NewController(svc remote.StatsService, ch *status.Channel, logger *log.Logger, opts ...Option) *Controller {
	c := &Controller{
		svc:    svc,
		status: ch,
		logger: log.OrDiscard(logger).WithComponent(log.ComponentStats),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.period = core.CurrentPeriod(c.now())
	return c
}

// Period is the currently selected month and year.
func (c *Controller) Period() core.Period {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.period
}

// SetPeriod selects p and reports whether the selection changed. It never
// fetches; the caller decides whether a refresh is due.
func (c *Controller) SetPeriod(p core.Period) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.period == p {
		return false, nil
	}
	c.period = p
	return true, nil
}

// Snapshot returns the held snapshot, if any.
func (c *Controller) Snapshot() (core.StatsSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snapshot == nil {
		return core.StatsSnapshot{}, false
	}
	return *c.snapshot, true
}

// Epoch identifies the current session. Reset starts a new one.
func (c *Controller) Epoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// Reset drops the snapshot, restores the current period and invalidates
// refreshes still in flight.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.issued++
	c.applied = c.issued
	c.snapshot = nil
	c.period = core.CurrentPeriod(c.now())
}

// Refresh fetches the snapshot for (username, p) and replaces the held one
// unless a later request has already been applied. A failure leaves the held
// snapshot as it was.
func (c *Controller) Refresh(ctx context.Context, username string, p core.Period) (bool, error) {
	return c.RefreshAt(ctx, c.Epoch(), username, p)
}

// RefreshAt is Refresh bound to epoch: nothing is fetched once Reset has
// moved past it, and a reply arriving after Reset is dropped silently.
func (c *Controller) RefreshAt(ctx context.Context, epoch uint64, username string, p core.Period) (bool, error) {
	if username == "" {
		return false, core.ErrEmptyUsername
	}
	if err := p.Validate(); err != nil {
		c.status.Failure(ctx, log.OpStats, err.Error())
		return false, err
	}

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "Skipping stats refresh from a finished session", log.FieldUsername, username)
		return false, nil
	}
	c.issued++
	seq := c.issued
	c.mu.Unlock()

	fields := log.NewFields().WithUsername(username).WithPeriod(p.Month, p.Year).WithSeq(seq)
	snap, err := c.svc.FetchStats(ctx, username, p)

	c.mu.Lock()
	if seq <= c.applied {
		c.mu.Unlock()
		c.logger.DebugContext(ctx, "Discarding stale stats response", fields.ToSlice()...)
		return false, nil
	}
	if err != nil {
		c.mu.Unlock()
		c.logger.WarnContext(ctx, "Stats fetch failed", fields.WithError(err).ToSlice()...)
		c.status.Failure(ctx, log.OpStats, remote.MessageOr(err, MsgFetchFailed))
		return false, nil
	}
	// the service may omit the key; the snapshot is for what was asked
	snap.Month, snap.Year = p.Month, p.Year
	c.applied = seq
	c.snapshot = &snap
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "Stats snapshot replaced", fields.ToSlice()...)
	return true, nil
}
