// Package filter is the search and aggregation engine applied to the entry
// cache. It is pure: no state, no I/O, same input same output.
package filter

import (
	"strings"

	"expensetracker/internal/core"
)

// Result is the filtered view and its derived total.
type Result struct {
	Entries []core.Entry
	Total   core.Money
}

// Apply returns the entries passing criteria in their original order, plus
// the sum of quantity * price over them. The input slice is not modified.
func Apply(entries []core.Entry, c core.FilterCriteria) Result {
	m := newMatcher(c)
	out := make([]core.Entry, 0, len(entries))
	for _, e := range entries {
		if m.match(e) {
			out = append(out, e)
		}
	}
	return Result{Entries: out, Total: Total(out)}
}

// Total sums quantity * price over entries. Missing numbers count as zero.
func Total(entries []core.Entry) core.Money {
	var total core.Money
	for _, e := range entries {
		total = total.Add(e.LineTotal())
	}
	return total
}

// Matches reports whether a single entry passes criteria.
func Matches(e core.Entry, c core.FilterCriteria) bool {
	return newMatcher(c).match(e)
}

type matcher struct {
	term string
	mode string
}

func newMatcher(c core.FilterCriteria) matcher {
	mode := c.Mode
	if strings.EqualFold(mode, core.ModeAll) {
		mode = ""
	}
	return matcher{term: strings.ToLower(c.SearchTerm), mode: mode}
}

func (m matcher) match(e core.Entry) bool {
	return m.matchesSearch(e) && m.matchesMode(e)
}

func (m matcher) matchesSearch(e core.Entry) bool {
	if m.term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Name), m.term) ||
		strings.Contains(strings.ToLower(e.Type), m.term) ||
		strings.Contains(strings.ToLower(e.Note), m.term)
}

func (m matcher) matchesMode(e core.Entry) bool {
	if m.mode == "" {
		return true
	}
	return e.Mode != "" && strings.EqualFold(string(e.Mode), m.mode)
}
