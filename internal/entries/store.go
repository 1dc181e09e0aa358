// Package entries holds the canonical local copy of the user's entries.
//
// The cache is only ever replaced wholesale by Load. Create and Delete never
// touch it; after a successful mutation they resync from the server, so the
// cache always equals some server response.
package entries

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/remote"
	"expensetracker/internal/status"
)

// Status messages published by the store.
const (
	MsgCreated      = "Entry created successfully"
	MsgCreateFailed = "Failed to create entry"
	MsgDeleted      = "Entry deleted"
	MsgDeleteFailed = "Failed to delete entry"
	MsgLoadFailed   = "Failed to fetch entries"
)

// Option configures a Store.
type Option func(*Store)

// WithStrictDelete makes a delete count as successful only on 204.
func WithStrictDelete(strict bool) Option {
	return func(s *Store) { s.strictDelete = strict }
}

// Store caches one user's entries and owns the entry draft. It is safe for
// concurrent use; the lock is never held across a service call.
type Store struct {
	mu      sync.Mutex
	entries []core.Entry
	draft   core.EntryDraft
	epoch   uint64 // bumped by Reset; work started in an older epoch is dropped
	issued  uint64 // last sequence number handed to a Load
	applied uint64 // sequence number of the response the cache holds

	svc          remote.EntryService
	status       *status.Channel
	logger       *log.Logger
	strictDelete bool
}

// DeleteResult reports what a delete did.
type DeleteResult struct {
	Deleted  bool // the server confirmed the delete
	Resynced bool // a resync of the cache was issued afterwards
}

// NewStore returns an empty store with the default draft. Outcomes are
// published on ch.
func NewStore(svc remote.EntryService, ch *status.Channel, logger *log.Logger, opts ...Option) *Store {
	s := &Store{
		entries: []core.Entry{},
		draft:   core.NewDraft(),
		svc:     svc,
		status:  ch,
		logger:  log.OrDiscard(logger).WithComponent(log.ComponentEntries),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entries returns a copy of the cache in server order.
func (s *Store) Entries() []core.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Entry{}, s.entries...)
}

// Draft returns the unsaved entry being edited.
func (s *Store) Draft() core.EntryDraft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// UpdateDraft applies fn to the current draft.
func (s *Store) UpdateDraft(fn func(*core.EntryDraft)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.draft)
}

// ResetDraft restores the draft defaults.
func (s *Store) ResetDraft() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = core.NewDraft()
}

// Epoch identifies the current session of the store. Reset starts a new one.
func (s *Store) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Reset empties the cache, restores the default draft and starts a new
// epoch. Loads, creates and deletes still in flight are invalidated so they
// cannot repopulate the cache or publish a status.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.issued++
	s.applied = s.issued
	s.entries = []core.Entry{}
	s.draft = core.NewDraft()
}

// nextSeq hands out a load sequence number, unless epoch is over.
func (s *Store) nextSeq(epoch uint64) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return 0, false
	}
	s.issued++
	return s.issued, true
}

func (s *Store) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return epoch == s.epoch
}

// Load fetches the user's entries and replaces the cache if no newer load has
// been applied meanwhile. It reports whether this call's response was applied.
func (s *Store) Load(ctx context.Context, username string) bool {
	return s.LoadAt(ctx, s.Epoch(), username)
}

// LoadAt is Load bound to epoch: nothing is fetched or applied once Reset
// has moved past it.
func (s *Store) LoadAt(ctx context.Context, epoch uint64, username string) bool {
	if username == "" {
		return false
	}
	seq, ok := s.nextSeq(epoch)
	if !ok {
		s.logger.DebugContext(ctx, "Skipping entries load from a finished session", log.FieldUsername, username)
		return false
	}
	listing, err := s.svc.ListEntries(ctx, username)

	s.mu.Lock()
	if seq <= s.applied {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Discarding stale entries response",
			log.FieldUsername, username, log.FieldSeq, seq)
		return false
	}
	if err != nil {
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "Entries fetch failed",
			log.FieldUsername, username, log.FieldSeq, seq, log.FieldError, err)
		s.status.Failure(ctx, log.OpLoad, MsgLoadFailed)
		return false
	}

	s.applied = seq
	switch listing.Kind {
	case remote.ListingEntries:
		s.entries = append([]core.Entry{}, listing.Entries...)
	default:
		s.entries = []core.Entry{}
	}
	count := len(s.entries)
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Entries cache replaced",
		log.FieldUsername, username, log.FieldSeq, seq, log.FieldEntries, count)
	if listing.Kind == remote.ListingMessage && listing.Message != "" {
		s.status.Failure(ctx, log.OpLoad, listing.Message)
	}
	return true
}

// Create submits draft and, on a 201, resets the draft and resyncs. It
// returns only validation errors; remote failures go to the status channel
// and leave cache and draft untouched.
func (s *Store) Create(ctx context.Context, username string, draft core.EntryDraft) (bool, error) {
	return s.CreateAt(ctx, s.Epoch(), username, draft)
}

// CreateAt is Create bound to epoch. A reply arriving after Reset is dropped
// without touching the draft, the cache or the status.
func (s *Store) CreateAt(ctx context.Context, epoch uint64, username string, draft core.EntryDraft) (bool, error) {
	if err := draft.Validate(); err != nil {
		s.status.Failure(ctx, log.OpCreate, err.Error())
		return false, err
	}
	if username == "" {
		s.status.Failure(ctx, log.OpCreate, MsgCreateFailed)
		return false, core.ErrEmptyUsername
	}

	resp, err := s.svc.CreateEntry(ctx, username, draft)
	if !s.current(epoch) {
		s.logger.DebugContext(ctx, "Discarding create reply from a finished session", log.FieldUsername, username)
		return false, nil
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Entry create failed", log.FieldUsername, username, log.FieldError, err)
		s.status.Failure(ctx, log.OpCreate, remote.MessageOr(err, MsgCreateFailed))
		return false, nil
	}
	if !resp.Created() {
		s.logger.WarnContext(ctx, "Entry create returned unexpected status",
			log.FieldUsername, username, log.FieldStatusCode, resp.StatusCode)
		s.status.Failure(ctx, log.OpCreate, MsgCreateFailed)
		return false, nil
	}

	s.ResetDraft()
	s.logger.InfoContext(ctx, "Entry created", log.FieldUsername, username)
	s.status.Success(ctx, log.OpCreate, MsgCreated)
	s.LoadAt(ctx, epoch, username)
	return true, nil
}

// Delete removes id on the server and resyncs. Confirmation is the caller's
// job. Any 2xx counts as deleted unless strict mode is on; a transport
// failure or rejection reports failure and skips the resync.
func (s *Store) Delete(ctx context.Context, username string, id core.EntryID) (bool, error) {
	res, err := s.DeleteAt(ctx, s.Epoch(), username, id)
	return res.Deleted, err
}

// DeleteAt is Delete bound to epoch. A reply arriving after Reset is dropped
// without a status or a resync.
func (s *Store) DeleteAt(ctx context.Context, epoch uint64, username string, id core.EntryID) (DeleteResult, error) {
	if id == "" {
		s.status.Failure(ctx, log.OpDelete, core.ErrEmptyEntryID.Error())
		return DeleteResult{}, core.ErrEmptyEntryID
	}

	resp, err := s.svc.DeleteEntry(ctx, id)
	if !s.current(epoch) {
		s.logger.DebugContext(ctx, "Discarding delete reply from a finished session", log.FieldEntryID, id)
		return DeleteResult{}, nil
	}
	if err != nil {
		var re *remote.RemoteError
		if errors.As(err, &re) {
			s.logger.WarnContext(ctx, "Entry delete rejected",
				log.FieldEntryID, id, log.FieldStatusCode, re.StatusCode, log.FieldError, err)
		} else {
			s.logger.ErrorContext(ctx, "Entry delete failed", log.FieldEntryID, id, log.FieldError, err)
		}
		s.status.Failure(ctx, log.OpDelete, MsgDeleteFailed)
		return DeleteResult{}, nil
	}

	res := DeleteResult{Deleted: true, Resynced: true}
	if s.strictDelete && resp.StatusCode != http.StatusNoContent {
		res.Deleted = false
		s.logger.WarnContext(ctx, "Entry delete returned unexpected status",
			log.FieldEntryID, id, log.FieldStatusCode, resp.StatusCode)
		s.status.Failure(ctx, log.OpDelete, MsgDeleteFailed)
	} else {
		s.logger.InfoContext(ctx, "Entry deleted", log.FieldEntryID, id, log.FieldStatusCode, resp.StatusCode)
		s.status.Success(ctx, log.OpDelete, MsgDeleted)
	}

	// the server answered 2xx, so its list may have changed either way
	s.LoadAt(ctx, epoch, username)
	return res, nil
}
