package knowledge

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func mustEntry(t *testing.T, name, site, intent, template string) Entry {
	t.Helper()
	e, err := NewEntry(name, site, intent, template, nil)
	require.NoError(t, err)
	return e
}

func literalEntry(name, site, intent, template string) Entry {
	return Entry{
		Name:     name,
		Site:     MustSitePattern(site),
		Intent:   MustIntentPattern(intent),
		Template: MustTemplate(template),
	}
}

func TestMatchTravelScenario(t *testing.T) {
	store := NewStore(
		mustEntry(t, "oneway", "example-travel.com", "oneway_flight_search",
			"https://example-travel.com/flights/{departure}-{arrival}?date={date}"),
	)
	m := NewMatcher(store)

	intent := TaskIntent{"action": "oneway_flight_search", "departure": "SHA", "arrival": "HKG", "date": "2026-02-01"}
	e, err := m.Match("example-travel.com", intent)
	require.NoError(t, err)
	assert.Equal(t, "oneway", e.Name)

	_, err = m.Match("example-travel.com", TaskIntent{"action": "hotel_search"})
	assert.True(t, errors.Is(err, ErrNoKnowledgeMatch))

	_, err = m.Match("other.com", intent)
	assert.ErrorIs(t, err, ErrNoKnowledgeMatch)
}

func TestMatchFirstDeclaredWins(t *testing.T) {
	m := NewMatcher(NewStore(
		mustEntry(t, "curated", "flights.ctrip.com", "oneway_flight_search", "https://curated/"),
		mustEntry(t, "generic", "domain:ctrip.com", "prefix:oneway", "https://generic/"),
	))

	e, err := m.Match("https://flights.ctrip.com/", TaskIntent{"action": "oneway_flight_search"})
	require.NoError(t, err)
	assert.Equal(t, "curated", e.Name)

	e, err = m.Match("m.ctrip.com", TaskIntent{"action": "oneway_flight_search"})
	require.NoError(t, err)
	assert.Equal(t, "generic", e.Name)
}

func TestMatchNilStore(t *testing.T) {
	_, err := NewMatcher(nil).Match("a.com", TaskIntent{"action": "x"})
	assert.ErrorIs(t, err, ErrNoKnowledgeMatch)
}

func TestForSite(t *testing.T) {
	m := NewMatcher(NewStore(
		mustEntry(t, "a1", "a.com", "x", "https://a/1"),
		mustEntry(t, "b", "b.com", "x", "https://b/"),
		mustEntry(t, "a2", "domain:a.com", "y", "https://a/2"),
	))
	var names []string
	for _, e := range m.ForSite("www.a.com") {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"a1", "a2"}, names)
}

func TestMatchConcurrentReads(t *testing.T) {
	m := NewMatcher(NewStore(mustEntry(t, "a", "a.com", "s", "https://a/")))
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				e, err := m.Match("a.com", TaskIntent{"action": "s"})
				if err != nil || e.Name != "a" {
					t.Errorf("unexpected match %q: %v", e.Name, err)
					return
				}
			}
		}()
	}
	wg.Wait()
}

// Given any number of entries that all match, the earliest one is returned.
func TestProperty_Match_FirstDeclared(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "matching")
		first := rapid.IntRange(0, 5).Draw(rt, "non-matching prefix")

		var entries []Entry
		for i := 0; i < first; i++ {
			entries = append(entries, literalEntry(fmt.Sprintf("miss-%d", i), "other.com", "*", "https://miss/"))
		}
		for i := 0; i < n; i++ {
			site := rapid.SampledFrom([]string{"a.com", "domain:a.com", "prefix:a.", "*"}).Draw(rt, "site")
			intent := rapid.SampledFrom([]string{"search", "prefix:sea", "*"}).Draw(rt, "intent")
			entries = append(entries, literalEntry(fmt.Sprintf("hit-%d", i), site, intent, "https://hit/"))
		}

		e, err := NewMatcher(NewStore(entries...)).Match("a.com", TaskIntent{"action": "search"})
		require.NoError(rt, err)
		require.Equal(rt, "hit-0", e.Name)
	})
}
