// Package tracker is the client context: it owns one session, entry store,
// stats controller and status channel, and decides when a fetch is due.
//
// Lifecycle is init (New) → authenticate (Login) → teardown (Logout). A
// Tracker can be logged into again after teardown.
package tracker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/core"
	"expensetracker/internal/entries"
	"expensetracker/internal/filter"
	"expensetracker/internal/log"
	"expensetracker/internal/remote"
	"expensetracker/internal/session"
	"expensetracker/internal/stats"
	"expensetracker/internal/status"
)

// ErrNotAuthenticated is returned by operations that need a logged-in user.
var ErrNotAuthenticated = errors.New("not logged in")

// Confirmer is asked before an entry is deleted. Returning false aborts the
// delete with no request and no error.
type Confirmer func(ctx context.Context, e core.Entry) bool

// Option configures a Tracker.
type Option func(*options)

type options struct {
	strictDelete bool
	now          func() time.Time
}

// WithStrictDelete counts a delete as successful only on 204.
func WithStrictDelete(strict bool) Option {
	return func(o *options) { o.strictDelete = strict }
}

// WithClock sets the clock used for the default stats period.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Tracker owns one client session and everything loaded for it. It is safe
// for concurrent use.
type Tracker struct {
	session *session.Manager
	entries *entries.Store
	stats   *stats.Controller
	status  *status.Channel
	logger  *log.Logger

	// lifecycle makes reading the user and the component epochs atomic with
	// respect to Logout. It is never held across a network call.
	lifecycle sync.RWMutex

	mu       sync.Mutex
	criteria core.FilterCriteria
}

// scope is the user and component epochs a piece of work was started in.
// Results arriving after Logout no longer match and are dropped.
type scope struct {
	username     string
	entriesEpoch uint64
	statsEpoch   uint64
}

func (t *Tracker) begin() (scope, error) {
	t.lifecycle.RLock()
	defer t.lifecycle.RUnlock()
	u := t.session.Username()
	if u == "" {
		return scope{}, ErrNotAuthenticated
	}
	return scope{username: u, entriesEpoch: t.entries.Epoch(), statsEpoch: t.stats.Epoch()}, nil
}

// New wires a logged-out tracker to svc.
func New(svc remote.Service, logger *log.Logger, opts ...Option) *Tracker {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	logger = log.OrDiscard(logger)
	ch := status.NewChannel(logger)
	return &Tracker{
		session:  session.NewManager(svc, ch, logger),
		entries:  entries.NewStore(svc, ch, logger, entries.WithStrictDelete(o.strictDelete)),
		stats:    stats.NewController(svc, ch, logger, stats.WithClock(o.now)),
		status:   ch,
		logger:   logger.WithComponent(log.ComponentApp),
		criteria: core.NoFilter(),
	}
}

func (t *Tracker) Status() *status.Channel { return t.status }

func (t *Tracker) Session() session.Snapshot { return t.session.Snapshot() }

func (t *Tracker) SetForm(f session.FormMode) { t.session.SetForm(f) }

func (t *Tracker) Entries() []core.Entry { return t.entries.Entries() }

func (t *Tracker) Draft() core.EntryDraft { return t.entries.Draft() }

func (t *Tracker) UpdateDraft(fn func(*core.EntryDraft)) { t.entries.UpdateDraft(fn) }

func (t *Tracker) Stats() (core.StatsSnapshot, bool) { return t.stats.Snapshot() }

func (t *Tracker) Period() core.Period { return t.stats.Period() }

// Login authenticates and, on success, loads entries and stats for the
// selected period concurrently before returning.
func (t *Tracker) Login(ctx context.Context, username, password string) (bool, error) {
	ok, err := t.session.Login(ctx, username, password)
	if err != nil || !ok {
		return ok, err
	}
	sc, err := t.begin()
	if err != nil || sc.username != username {
		// logged out before the initial sync could start
		return true, nil
	}
	return true, t.syncAll(ctx, sc)
}

func (t *Tracker) syncAll(ctx context.Context, sc scope) error {
	var g errgroup.Group
	g.Go(func() error {
		t.entries.LoadAt(ctx, sc.entriesEpoch, sc.username)
		return nil
	})
	g.Go(func() error {
		_, err := t.stats.RefreshAt(ctx, sc.statsEpoch, sc.username, t.stats.Period())
		return err
	})
	return g.Wait()
}

func (t *Tracker) Register(ctx context.Context, username, password string) error {
	return t.session.Register(ctx, username, password)
}

// Logout ends the session and tears down every cache. Requests still in
// flight complete into the void: they neither refill a cache nor publish a
// status. Status subscribers must not call back into the tracker.
func (t *Tracker) Logout(ctx context.Context) {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	t.entries.Reset()
	t.stats.Reset()
	t.session.Logout(ctx)
	t.mu.Lock()
	t.criteria = core.NoFilter()
	t.mu.Unlock()
}

// AddEntry creates draft for the logged-in user. After a successful create
// the stats for the period selected at that moment are refreshed.
func (t *Tracker) AddEntry(ctx context.Context, draft core.EntryDraft) (bool, error) {
	sc, err := t.begin()
	if err != nil {
		return false, err
	}
	ok, err := t.entries.CreateAt(ctx, sc.entriesEpoch, sc.username, draft)
	if err != nil || !ok {
		return ok, err
	}
	t.refreshAfterMutation(ctx, sc)
	return true, nil
}

// SubmitDraft submits the draft held by the entry store.
func (t *Tracker) SubmitDraft(ctx context.Context) (bool, error) {
	return t.AddEntry(ctx, t.entries.Draft())
}

// DeleteEntry asks confirm first; a nil Confirmer counts as declined.
func (t *Tracker) DeleteEntry(ctx context.Context, id core.EntryID, confirm Confirmer) (bool, error) {
	asked, err := t.begin()
	if err != nil {
		return false, err
	}
	if id == "" {
		return false, core.ErrEmptyEntryID
	}
	if confirm == nil || !confirm(ctx, t.lookup(id)) {
		t.logger.DebugContext(ctx, "Delete declined", log.FieldEntryID, id)
		return false, nil
	}
	// the session may have ended while the user was deciding
	sc, err := t.begin()
	if err != nil || sc != asked {
		return false, ErrNotAuthenticated
	}
	res, err := t.entries.DeleteAt(ctx, sc.entriesEpoch, sc.username, id)
	if err != nil {
		return false, err
	}
	if res.Resynced {
		t.refreshAfterMutation(ctx, sc)
	}
	return res.Deleted, nil
}

func (t *Tracker) lookup(id core.EntryID) core.Entry {
	for _, e := range t.entries.Entries() {
		if e.ID == id {
			return e
		}
	}
	return core.Entry{ID: id}
}

func (t *Tracker) refreshAfterMutation(ctx context.Context, sc scope) {
	if _, err := t.stats.RefreshAt(ctx, sc.statsEpoch, sc.username, t.stats.Period()); err != nil {
		t.logger.WarnContext(ctx, "Stats refresh after mutation failed", log.FieldError, err)
	}
}

// RefreshEntries reloads the entry list on request.
func (t *Tracker) RefreshEntries(ctx context.Context) error {
	sc, err := t.begin()
	if err != nil {
		return err
	}
	t.entries.LoadAt(ctx, sc.entriesEpoch, sc.username)
	return nil
}

// RefreshStats refetches the snapshot for the selected period. Without a
// logged-in user nothing is fetched.
func (t *Tracker) RefreshStats(ctx context.Context) error {
	sc, err := t.begin()
	if err != nil {
		return err
	}
	_, err = t.stats.RefreshAt(ctx, sc.statsEpoch, sc.username, t.stats.Period())
	return err
}

// SetPeriod selects p and refreshes stats if it changed while logged in.
func (t *Tracker) SetPeriod(ctx context.Context, p core.Period) (bool, error) {
	changed, err := t.stats.SetPeriod(p)
	if err != nil {
		t.status.Failure(ctx, log.OpStats, err.Error())
		return false, err
	}
	if !changed {
		return false, nil
	}
	sc, err := t.begin()
	if err != nil {
		return true, nil
	}
	if _, err := t.stats.RefreshAt(ctx, sc.statsEpoch, sc.username, p); err != nil {
		return true, err
	}
	return true, nil
}

func (t *Tracker) Criteria() core.FilterCriteria {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.criteria
}

func (t *Tracker) SetFilter(c core.FilterCriteria) error {
	mode, err := normalizeMode(c.Mode)
	if err != nil {
		return err
	}
	c.Mode = mode
	t.mu.Lock()
	t.criteria = c
	t.mu.Unlock()
	return nil
}

func (t *Tracker) SetSearch(term string) {
	t.mu.Lock()
	t.criteria.SearchTerm = term
	t.mu.Unlock()
}

// SetModeFilter accepts "all" or a payment mode, in any case.
func (t *Tracker) SetModeFilter(mode string) error {
	mode, err := normalizeMode(mode)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.criteria.Mode = mode
	t.mu.Unlock()
	return nil
}

func normalizeMode(mode string) (string, error) {
	if mode == "" || strings.EqualFold(mode, core.ModeAll) {
		return core.ModeAll, nil
	}
	m, err := core.ParsePaymentMode(mode)
	if err != nil {
		return "", err
	}
	return string(m), nil
}

// Filtered applies the current criteria to the current cache. It is
// recomputed on every call.
func (t *Tracker) Filtered() filter.Result {
	return filter.Apply(t.entries.Entries(), t.Criteria())
}
