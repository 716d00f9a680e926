package knowledge

import (
	"fmt"
	"strings"
)

// TaskIntent is the planner's structured task, e.g.
// {action: flight_search, departure: SHA, arrival: BJS, date: 2026-01-30}.
type TaskIntent map[string]string

// Action returns the intent's action label, falling back to its category.
func (t TaskIntent) Action() string {
	if a := strings.TrimSpace(t["action"]); a != "" {
		return a
	}
	return strings.TrimSpace(t["category"])
}

// Clone returns an independent copy.
func (t TaskIntent) Clone() TaskIntent {
	out := make(TaskIntent, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// Matcher looks up shortcuts in a Store. It holds no mutable state.
type Matcher struct {
	store *Store
}

// NewMatcher binds a matcher to store. A nil store matches nothing.
func NewMatcher(store *Store) *Matcher {
	if store == nil {
		store = NewStore()
	}
	return &Matcher{store: store}
}

// Store returns the backing store.
func (m *Matcher) Store() *Store { return m.store }

// Match returns the first entry, in load order, whose site and intent patterns
// both hold. It returns ErrNoKnowledgeMatch otherwise.
func (m *Matcher) Match(site string, intent TaskIntent) (Entry, error) {
	for _, e := range m.store.entries {
		if e.Site.Matches(site) && e.Intent.Matches(intent) {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: site %q action %q", ErrNoKnowledgeMatch, NormalizeSite(site), intent.Action())
}

// ForSite returns the entries whose site pattern holds for site, in load order.
func (m *Matcher) ForSite(site string) []Entry {
	var out []Entry
	for _, e := range m.store.entries {
		if e.Site.Matches(site) {
			out = append(out, e)
		}
	}
	return out
}
