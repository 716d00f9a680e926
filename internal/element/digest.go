package element

import (
	"fmt"
	"sort"
	"strings"
)

// Entry pairs a result with the element it describes.
type Entry struct {
	Element PageElement `json:"element"`
	Result  Result      `json:"result"`
}

// Digest is a snapshot grouped by category for presentation to the planner.
type Digest struct {
	groups map[Category][]Entry
}

// Group pairs results with elements by position and groups them by category.
// Each group is ordered by confidence descending, then element index ascending.
func Group(results []Result, elements []PageElement) Digest {
	d := Digest{groups: make(map[Category][]Entry)}
	n := min(len(results), len(elements))
	for i := 0; i < n; i++ {
		r := results[i]
		d.groups[r.Category] = append(d.groups[r.Category], Entry{Element: elements[i], Result: r})
	}
	for _, entries := range d.groups {
		sort.SliceStable(entries, func(a, b int) bool {
			if entries[a].Result.Confidence != entries[b].Result.Confidence {
				return entries[a].Result.Confidence > entries[b].Result.Confidence
			}
			return entries[a].Result.ElementIndex < entries[b].Result.ElementIndex
		})
	}
	return d
}

// Entries returns the group for a category.
func (d Digest) Entries(c Category) []Entry {
	return d.groups[c]
}

// Counts returns the number of elements per non-empty category.
func (d Digest) Counts() map[Category]int {
	counts := make(map[Category]int, len(d.groups))
	for c, entries := range d.groups {
		counts[c] = len(entries)
	}
	return counts
}

// Render produces the text block the planner reads, categories in display order.
func (d Digest) Render() string {
	var b strings.Builder
	for _, c := range displayOrder {
		entries := d.groups[c]
		if len(entries) == 0 {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "=== %s (%d) ===\n", c, len(entries))
		for _, e := range entries {
			fmt.Fprintf(&b, "[%d]<%s>%s/> (confidence:%d)", e.Result.ElementIndex, e.Element.TagName, e.Element.Text, e.Result.Confidence)
			if e.Result.Detail != "" {
				fmt.Fprintf(&b, " [%s]", e.Result.Detail)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// PrimaryCandidates keeps results at or above threshold, preserving order.
func PrimaryCandidates(results []Result, threshold int) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Category != Unknown && r.Confidence >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// FindDates returns DATE and CALENDAR entries. A non-empty target narrows the
// result to entries whose text or detail contains it.
func FindDates(results []Result, elements []PageElement, target string) []Entry {
	n := min(len(results), len(elements))
	out := make([]Entry, 0)
	for i := 0; i < n; i++ {
		r := results[i]
		if r.Category != Date && r.Category != Calendar {
			continue
		}
		if target != "" && !strings.Contains(elements[i].Text, target) && !strings.Contains(r.Detail, target) {
			continue
		}
		out = append(out, Entry{Element: elements[i], Result: r})
	}
	return out
}
