package composer

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/kingrea/trailhead/internal/geo"
)

// DefaultMinQueryLength is the shortest query sent to the provider.
const DefaultMinQueryLength = 3

// Ticket identifies one search request. Only the most recently issued ticket
// is current; results for any other ticket are discarded.
type Ticket struct {
	gen   uint64
	Query string
}

// SearchSession implements last-request-wins search-as-you-type.
type SearchSession struct {
	adapter geo.Adapter
	minLen  int

	mu  sync.Mutex
	gen uint64
}

// NewSearchSession builds a session. minLen <= 0 uses DefaultMinQueryLength.
func NewSearchSession(adapter geo.Adapter, minLen int) *SearchSession {
	if minLen <= 0 {
		minLen = DefaultMinQueryLength
	}
	return &SearchSession{adapter: adapter, minLen: minLen}
}

// Begin issues a ticket for text, invalidating every earlier ticket.
func (s *SearchSession) Begin(text string) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	return Ticket{gen: s.gen, Query: strings.TrimSpace(text)}
}

// Cancel invalidates every outstanding ticket.
func (s *SearchSession) Cancel() {
	s.mu.Lock()
	s.gen++
	s.mu.Unlock()
}

// Current reports whether t is still the latest ticket.
func (s *SearchSession) Current(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return t.gen == s.gen
}

// Lookup runs the search for t. Stale tickets, short queries and provider
// failures all yield nil.
func (s *SearchSession) Lookup(ctx context.Context, t Ticket) []geo.Suggestion {
	if !s.Current(t) || s.adapter == nil {
		return nil
	}
	if utf8.RuneCountInString(t.Query) < s.minLen {
		return nil
	}
	results, err := s.adapter.Search(ctx, t.Query)
	if err != nil || !s.Current(t) {
		return nil
	}
	return results
}
