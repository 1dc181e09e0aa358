// Package memory is an in-process stand-in for the expense service. It keeps
// users and entries in maps and computes monthly stats on request.
package memory

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/remote"
)

const dateLayout = "2006-01-02"

var _ remote.Service = (*Store)(nil)

type Store struct {
	mu      sync.Mutex
	users   map[string]string
	entries map[string][]core.Entry
	nextID  int64
	now     func() time.Time
}

type Option func(*Store)

// WithClock fixes the time used to date new entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		users:   make(map[string]string),
		entries: make(map[string][]core.Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewFromFiles seeds accounts from base/seed_users.txt, one "username:password"
// per line. A missing file yields an empty store.
func NewFromFiles(base string, opts ...Option) *Store {
	s := New(opts...)
	for _, line := range readLines(filepath.Join(base, "seed_users.txt")) {
		user, pass, ok := strings.Cut(line, ":")
		user = strings.TrimSpace(user)
		if !ok || user == "" || pass == "" {
			continue
		}
		s.users[user] = pass
	}
	return s
}

// AddUser registers an account directly, bypassing the register endpoint.
func (s *Store) AddUser(username, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = password
}

func (s *Store) Login(_ context.Context, c core.Credentials) (remote.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pass, ok := s.users[c.Username]
	if !ok || pass != c.Password {
		return remote.Response{}, reject(http.StatusUnauthorized, "Invalid username or password")
	}
	return reply(http.StatusOK, `"Login successful"`), nil
}

func (s *Store) Register(_ context.Context, c core.Credentials) (remote.Response, error) {
	if err := c.Validate(); err != nil {
		return remote.Response{}, reject(http.StatusBadRequest, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[c.Username]; exists {
		return remote.Response{}, reject(http.StatusConflict, "User already exists")
	}
	s.users[c.Username] = c.Password
	return reply(http.StatusCreated, `"User created"`), nil
}

// ListEntries answers an unknown user with a string payload, the way the
// real service does.
func (s *Store) ListEntries(_ context.Context, username string) (remote.EntryListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return remote.EntryListing{Kind: remote.ListingMessage, Message: "User not found"}, nil
	}
	out := append([]core.Entry{}, s.entries[username]...)
	return remote.EntryListing{Kind: remote.ListingEntries, Entries: out}, nil
}

func (s *Store) CreateEntry(_ context.Context, username string, d core.EntryDraft) (remote.Response, error) {
	if err := d.Validate(); err != nil {
		return remote.Response{}, reject(http.StatusBadRequest, err.Error())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return remote.Response{}, reject(http.StatusNotFound, "User not found")
	}
	s.nextID++
	e := core.Entry{
		ID:       core.EntryID(strconv.FormatInt(s.nextID, 10)),
		Owner:    username,
		Name:     d.Name,
		Type:     d.Type,
		Quantity: d.Quantity,
		Price:    d.Price,
		Mode:     d.Mode,
		Note:     d.Note,
		Date:     s.now().Format(dateLayout),
	}
	s.entries[username] = append(s.entries[username], e)
	return reply(http.StatusCreated, fmt.Sprintf(`{"eid":%d}`, s.nextID)), nil
}

func (s *Store) DeleteEntry(_ context.Context, id core.EntryID) (remote.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for user, list := range s.entries {
		for i, e := range list {
			if e.ID != id {
				continue
			}
			s.entries[user] = append(list[:i:i], list[i+1:]...)
			return reply(http.StatusNoContent, ""), nil
		}
	}
	return remote.Response{}, reject(http.StatusNotFound, "Entry not found")
}

// FetchStats aggregates the user's entries dated in p. The daily average
// divides by the number of days in the month.
func (s *Store) FetchStats(_ context.Context, username string, p core.Period) (core.StatsSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[username]; !ok {
		return core.StatsSnapshot{}, reject(http.StatusNotFound, "User not found")
	}
	snap := core.StatsSnapshot{Month: p.Month, Year: p.Year}
	for _, e := range s.entries[username] {
		d, err := time.Parse(dateLayout, e.Date)
		if err != nil || int(d.Month()) != p.Month || d.Year() != p.Year {
			continue
		}
		line := e.LineTotal()
		snap.TotalSpent = snap.TotalSpent.Add(line)
		if line.Cents > snap.HighestExpense.Cents {
			snap.HighestExpense = line
		}
	}
	days := daysIn(p)
	if days > 0 {
		snap.AverageDailySpent = core.FromFloat(snap.TotalSpent.Float() / float64(days))
	}
	return snap, nil
}

func daysIn(p core.Period) int {
	if p.Month < 1 || p.Month > 12 {
		return 0
	}
	return time.Date(p.Year, time.Month(p.Month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func reply(code int, body string) remote.Response {
	return remote.Response{StatusCode: code, Body: []byte(body)}
}

func reject(code int, msg string) error {
	return &remote.RemoteError{StatusCode: code, Message: msg}
}

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
