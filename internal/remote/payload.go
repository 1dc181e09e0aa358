package remote

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"expensetracker/internal/core"
)

type ListingKind int

const (
	// ListingEntries means the payload was an array of entries.
	ListingEntries ListingKind = iota
	// ListingMessage means the payload was a string, e.g. "User not found".
	ListingMessage
	// ListingUnexpected covers any other shape (object, number, empty body).
	ListingUnexpected
)

// EntryListing is the entries endpoint payload decided by shape rather than
// assumed to be an array.
type EntryListing struct {
	Kind    ListingKind
	Entries []core.Entry
	Message string
}

// DecodeEntryListing inspects body and tags it. Only a malformed array is an
// error; every other shape is a valid listing of the matching kind.
func DecodeEntryListing(body []byte) (EntryListing, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return EntryListing{Kind: ListingUnexpected}, nil
	}
	if !json.Valid(trimmed) {
		return EntryListing{Kind: ListingMessage, Message: string(trimmed)}, nil
	}
	switch trimmed[0] {
	case '[':
		entries := []core.Entry{}
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return EntryListing{}, fmt.Errorf("decode entries: %w", err)
		}
		return EntryListing{Kind: ListingEntries, Entries: entries}, nil
	case '"':
		var msg string
		if err := json.Unmarshal(trimmed, &msg); err != nil {
			return EntryListing{}, fmt.Errorf("decode message: %w", err)
		}
		return EntryListing{Kind: ListingMessage, Message: msg}, nil
	default:
		return EntryListing{Kind: ListingUnexpected}, nil
	}
}

// messageKeys are tried in order when an error payload is a JSON object.
var messageKeys = []string{"message", "error", "detail"}

// MessageFromBody extracts the human-readable part of an error payload: a
// JSON string is unquoted, an object yields its message/error/detail field,
// anything else is returned as trimmed text.
func MessageFromBody(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err == nil {
			return strings.TrimSpace(s)
		}
	case '{':
		var obj map[string]any
		if err := json.Unmarshal(trimmed, &obj); err == nil {
			for _, k := range messageKeys {
				if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
	}
	return string(trimmed)
}
