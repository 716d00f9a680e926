// Package recorder writes a rotating JSONL trace of classification and
// shortcut decisions so a run can be replayed and audited later.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"waypoint-mcp-server/internal/element"
	"waypoint-mcp-server/internal/knowledge"
	"waypoint-mcp-server/internal/navigation"
)

const (
	MaxRotatedFiles = 3
	TraceDir        = "data/trace"
)

// Event types.
const (
	EventClassification = "classification"
	EventShortcut       = "shortcut"
	EventNavigation     = "navigation"
)

// Event represents a single record in the trace.
type Event struct {
	Timestamp time.Time   `json:"ts"`
	Type      string      `json:"type"`
	SessionID string      `json:"session_id,omitempty"`
	Data      interface{} `json:"data"`
}

// ClassificationSummary is the payload of a classification event.
type ClassificationSummary struct {
	Snapshot string         `json:"snapshot"`
	URL      string         `json:"url,omitempty"`
	Elements int            `json:"elements"`
	Counts   map[string]int `json:"counts"`
	Primary  []int          `json:"primary"`
}

// ShortcutRecord is the payload of a shortcut event.
type ShortcutRecord struct {
	Site     string               `json:"site"`
	Intent   knowledge.TaskIntent `json:"intent"`
	Decision navigation.Decision  `json:"decision"`
}

// NavigationRecord is the payload of a navigation event.
type NavigationRecord struct {
	URL     string `json:"url"`
	Elapsed string `json:"elapsed"`
	Error   string `json:"error,omitempty"`
}

// Recorder manages rotating trace files. A nil *Recorder ignores all calls.
type Recorder struct {
	mu       sync.Mutex
	file     *os.File
	encoder  *json.Encoder
	basePath string
	now      func() time.Time
}

// NewRecorder creates a recorder instance.
// It ensures the directory exists.
func NewRecorder(basePath string) (*Recorder, error) {
	if basePath == "" {
		basePath = TraceDir
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{
		basePath: basePath,
		now:      time.Now,
	}, nil
}

// Dir returns the trace directory.
func (r *Recorder) Dir() string { return r.basePath }

// Start begins a new trace file labelled with label.
// It rotates old files to ensure we only keep the last N traces.
func (r *Recorder) Start(label string) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
		r.encoder = nil
	}

	if err := r.rotate(); err != nil {
		return fmt.Errorf("rotate traces: %w", err)
	}

	filename := fmt.Sprintf("trace_%013d_%s.jsonl", r.now().UnixMilli(), sanitize(label))
	f, err := os.Create(filepath.Join(r.basePath, filename))
	if err != nil {
		return err
	}

	r.file = f
	r.encoder = json.NewEncoder(f)
	return nil
}

// Log writes an event to the current trace file. It is a no-op before Start.
func (r *Recorder) Log(eventType, sessionID string, data interface{}) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return
	}

	_ = r.encoder.Encode(Event{
		Timestamp: r.now(),
		Type:      eventType,
		SessionID: sessionID,
		Data:      data,
	})
}

// Classification records a summary of one classified snapshot.
func (r *Recorder) Classification(sessionID, snapshot, url string, results []element.Result, threshold int) {
	if r == nil {
		return
	}
	summary := ClassificationSummary{
		Snapshot: snapshot,
		URL:      url,
		Elements: len(results),
		Counts:   make(map[string]int),
		Primary:  []int{},
	}
	for _, res := range results {
		summary.Counts[res.Category.String()]++
	}
	for _, res := range element.PrimaryCandidates(results, threshold) {
		summary.Primary = append(summary.Primary, res.ElementIndex)
	}
	r.Log(EventClassification, sessionID, summary)
}

// Shortcut records a resolver decision.
func (r *Recorder) Shortcut(sessionID, site string, intent knowledge.TaskIntent, d navigation.Decision) {
	r.Log(EventShortcut, sessionID, ShortcutRecord{Site: site, Intent: intent, Decision: d})
}

// Navigation records a navigation outcome.
func (r *Recorder) Navigation(sessionID, url string, elapsed time.Duration, err error) {
	rec := NavigationRecord{URL: url, Elapsed: elapsed.String()}
	if err != nil {
		rec.Error = err.Error()
	}
	r.Log(EventNavigation, sessionID, rec)
}

// rotate keeps only the newest MaxRotatedFiles-1 traces, making room for the
// one about to be created. File names sort chronologically.
func (r *Recorder) rotate() error {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return err
	}

	var traces []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "trace_") || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		traces = append(traces, e.Name())
	}

	sort.Sort(sort.Reverse(sort.StringSlice(traces)))

	keep := MaxRotatedFiles - 1
	for i := keep; i < len(traces); i++ {
		_ = os.Remove(filepath.Join(r.basePath, traces[i]))
	}
	return nil
}

// Close finishes the current recording.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		r.encoder = nil
		return err
	}
	return nil
}

func sanitize(label string) string {
	if label == "" {
		return "run"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '-'
	}, label)
}
