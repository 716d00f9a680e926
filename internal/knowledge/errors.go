package knowledge

import (
	"errors"
	"fmt"
)

var (
	// ErrNoKnowledgeMatch means no entry covers the site and intent. Callers fall
	// back to element-level interaction.
	ErrNoKnowledgeMatch = errors.New("no knowledge match")
	// ErrMalformedEntry marks an entry dropped at load time.
	ErrMalformedEntry = errors.New("malformed knowledge entry")
)

// Diagnostic describes one entry (or source) skipped during load.
type Diagnostic struct {
	Source string `json:"source"`
	Entry  string `json:"entry,omitempty"`
	Line   int    `json:"line,omitempty"`
	Reason string `json:"reason"`
}

func (d Diagnostic) String() string {
	loc := d.Source
	if d.Line > 0 {
		loc = fmt.Sprintf("%s:%d", d.Source, d.Line)
	}
	if d.Entry != "" {
		return fmt.Sprintf("%s: entry %q: %s", loc, d.Entry, d.Reason)
	}
	return fmt.Sprintf("%s: %s", loc, d.Reason)
}

// Err returns the diagnostic as an error wrapping ErrMalformedEntry.
func (d Diagnostic) Err() error {
	return fmt.Errorf("%s: %w", d.String(), ErrMalformedEntry)
}
