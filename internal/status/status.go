// Package status holds the single most recent human-readable outcome of an
// operation. Every component publishes here; the presentation layer reads it.
package status

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"expensetracker/internal/log"
)

type Kind int

const (
	KindInfo Kind = iota
	KindSuccess
	KindFailure
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	default:
		return "info"
	}
}

// Status is one outcome message. The zero value means nothing has happened yet.
type Status struct {
	Kind      Kind
	Message   string
	Operation string
	At        time.Time
}

func (s Status) IsZero() bool {
	return s.Message == "" && s.At.IsZero()
}

// Channel keeps the latest Status. Publishing overwrites; there is no history.
type Channel struct {
	mu     sync.Mutex
	latest Status
	subs   map[int]func(Status)
	nextID int
	now    func() time.Time
	logger *log.Logger
}

func NewChannel(logger *log.Logger) *Channel {
	return &Channel{
		subs:   make(map[int]func(Status)),
		now:    time.Now,
		logger: log.OrDiscard(logger).WithComponent(log.ComponentStatus),
	}
}

func (c *Channel) Success(ctx context.Context, op, msg string) {
	c.Publish(ctx, Status{Kind: KindSuccess, Operation: op, Message: msg})
}

func (c *Channel) Failure(ctx context.Context, op, msg string) {
	c.Publish(ctx, Status{Kind: KindFailure, Operation: op, Message: msg})
}

func (c *Channel) Info(ctx context.Context, op, msg string) {
	c.Publish(ctx, Status{Kind: KindInfo, Operation: op, Message: msg})
}

// Publish replaces the latest status and notifies subscribers synchronously,
// outside the lock.
func (c *Channel) Publish(ctx context.Context, s Status) {
	if s.At.IsZero() {
		s.At = c.now()
	}

	c.mu.Lock()
	c.latest = s
	subs := make([]func(Status), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	level := slog.LevelInfo
	if s.Kind == KindFailure {
		level = slog.LevelWarn
	}
	c.logger.LogContext(ctx, level, "Status published",
		log.FieldKind, s.Kind.String(),
		log.FieldOperation, s.Operation,
		log.FieldMessage, s.Message)

	for _, fn := range subs {
		fn(s)
	}
}

func (c *Channel) Latest() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// Subscribe registers fn for every future Publish. The returned func removes it.
func (c *Channel) Subscribe(fn func(Status)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}
