// Package remote describes the Auth, Entry and Stats services the client
// consumes. Adapters live in subpackages: httpapi talks to the real service,
// memory is an in-process stand-in.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"expensetracker/internal/core"
)

// Ports for outbound adapters.
type (
	AuthService interface {
		Login(ctx context.Context, c core.Credentials) (Response, error)
		Register(ctx context.Context, c core.Credentials) (Response, error)
	}

	EntryService interface {
		// ListEntries returns the tagged decoding of the entries payload.
		ListEntries(ctx context.Context, username string) (EntryListing, error)
		CreateEntry(ctx context.Context, username string, d core.EntryDraft) (Response, error)
		DeleteEntry(ctx context.Context, id core.EntryID) (Response, error)
	}

	StatsService interface {
		FetchStats(ctx context.Context, username string, p core.Period) (core.StatsSnapshot, error)
	}

	// Service is the full remote surface.
	Service interface {
		AuthService
		EntryService
		StatsService
	}
)

// Response is a successful (2xx) reply. Callers inspect StatusCode because
// the contracts distinguish 200, 201 and 204.
type Response struct {
	StatusCode int
	Body       []byte
}

// Created reports a 201 reply.
func (r Response) Created() bool {
	return r.StatusCode == http.StatusCreated
}

// RemoteError is a non-2xx reply. Message carries the server payload when it
// had one.
type RemoteError struct {
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote returned %d", e.StatusCode)
	}
	return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Message)
}

// MessageOr returns the server-provided message carried by err, or fallback
// when err is a transport failure or the server sent no payload.
func MessageOr(err error, fallback string) string {
	var re *RemoteError
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return fallback
}
