package mangle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"waypoint-mcp-server/internal/element"
	"waypoint-mcp-server/internal/knowledge"
	"waypoint-mcp-server/internal/navigation"
)

// Predicates of schemas/waypoint.mg.
const (
	PredClassified        = "classified"
	PredSnapshotOf        = "snapshot_of"
	PredPrimaryThreshold  = "primary_threshold"
	PredShortcutHit       = "shortcut_hit"
	PredShortcutMiss      = "shortcut_miss"
	PredNavigationEvent   = "navigation_event"
	PredPrimaryCandidate  = "primary_candidate"
	PredDateTarget        = "date_target"
	PredInteractiveTarget = "interactive_target"
	PredSlowNavigation    = "slow_navigation"
	PredShortcutGap       = "shortcut_gap"
)

// ClassificationFacts emits one classified row per result.
func ClassificationFacts(snapshot string, results []element.Result, at time.Time) []Fact {
	facts := make([]Fact, 0, len(results))
	for _, r := range results {
		facts = append(facts, Fact{
			Predicate: PredClassified,
			Args:      []interface{}{snapshot, r.ElementIndex, r.Category.String(), r.Confidence},
			Timestamp: at,
		})
	}
	return facts
}

// ThresholdFact pins the primary threshold a snapshot was classified under.
// primary_candidate only derives for snapshots that carry one.
func ThresholdFact(snapshot string, threshold int, at time.Time) Fact {
	return Fact{Predicate: PredPrimaryThreshold, Args: []interface{}{snapshot, threshold}, Timestamp: at}
}

// SnapshotFact records where a snapshot came from.
func SnapshotFact(snapshot, session, url string, at time.Time) Fact {
	return Fact{Predicate: PredSnapshotOf, Args: []interface{}{snapshot, session, url}, Timestamp: at}
}

// ShortcutFact records a resolver decision as a hit or a miss.
func ShortcutFact(site string, intent knowledge.TaskIntent, d navigation.Decision, at time.Time) Fact {
	host := knowledge.NormalizeSite(site)
	if d.Kind == navigation.Navigate {
		return Fact{Predicate: PredShortcutHit, Args: []interface{}{host, d.Entry, d.Destination}, Timestamp: at}
	}
	return Fact{Predicate: PredShortcutMiss, Args: []interface{}{host, intent.Action(), d.Reason.String()}, Timestamp: at}
}

// NavigationFact records a completed navigation.
func NavigationFact(session, url string, elapsed time.Duration, at time.Time) Fact {
	return Fact{
		Predicate: PredNavigationEvent,
		Args:      []interface{}{session, url, elapsed.Milliseconds()},
		Timestamp: at,
	}
}

// Candidate is a derived primary_candidate row.
type Candidate struct {
	Snapshot string `json:"snapshot"`
	Index    int    `json:"index"`
	Category string `json:"category"`
}

// PrimaryCandidates returns the derived primary candidates of one snapshot,
// ordered by element index.
func (e *Engine) PrimaryCandidates(ctx context.Context, snapshot string) ([]Candidate, error) {
	facts, err := e.Evaluate(ctx, PredPrimaryCandidate)
	if err != nil {
		return nil, err
	}
	out := make([]Candidate, 0)
	for _, f := range facts {
		if len(f.Args) != 3 || f.Args[0] != snapshot {
			continue
		}
		idx, err := asInt(f.Args[1])
		if err != nil {
			continue
		}
		cat, _ := f.Args[2].(string)
		out = append(out, Candidate{Snapshot: snapshot, Index: idx, Category: cat})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out, nil
}

// IndexesOf returns the sorted element indexes of a derived (Snapshot, Index)
// predicate such as date_target or interactive_target.
func (e *Engine) IndexesOf(ctx context.Context, predicate, snapshot string) ([]int, error) {
	facts, err := e.Evaluate(ctx, predicate)
	if err != nil {
		return nil, err
	}
	out := make([]int, 0)
	for _, f := range facts {
		if len(f.Args) != 2 || f.Args[0] != snapshot {
			continue
		}
		if idx, err := asInt(f.Args[1]); err == nil {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out, nil
}

func asInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("not an integer: %v", v)
	}
}
