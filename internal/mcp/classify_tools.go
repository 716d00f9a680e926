package mcp

import (
	"context"
	"fmt"
	"time"

	"waypoint-mcp-server/internal/element"
	"waypoint-mcp-server/internal/mangle"

	"github.com/google/uuid"
)

// Classification is the payload returned for one classified snapshot.
type Classification struct {
	Snapshot    string           `json:"snapshot"`
	SessionID   string           `json:"session_id,omitempty"`
	URL         string           `json:"url,omitempty"`
	Count       int              `json:"count"`
	Counts      map[string]int   `json:"counts"`
	Primary     []element.Result `json:"primary"`
	Digest      string           `json:"digest,omitempty"`
	Results     []element.Result `json:"results,omitempty"`
	DateMatches []element.Entry  `json:"date_matches,omitempty"`
}

// classify runs the classifier over elements, records classified facts and a
// trace summary, and builds the response payload. A non-empty targetDate adds
// the DATE and CALENDAR elements whose text or detail mentions it.
func (s *Server) classify(ctx context.Context, sessionID, url string, elements []element.PageElement, withResults bool, targetDate string) Classification {
	results := s.classifier.ClassifyAll(elements)
	threshold := s.cfg.Classifier.GetPrimaryThreshold()
	snapshot := "snap-" + uuid.NewString()
	now := s.now()

	facts := []mangle.Fact{mangle.ThresholdFact(snapshot, threshold, now)}
	facts = append(facts, mangle.ClassificationFacts(snapshot, results, now)...)
	facts = append(facts, mangle.SnapshotFact(snapshot, sessionID, url, now))
	s.record(ctx, facts...)
	s.recorder.Classification(sessionID, snapshot, url, results, threshold)
	s.metrics.RecordClassification(results)

	digest := element.Group(results, elements)
	counts := make(map[string]int)
	for c, n := range digest.Counts() {
		counts[c.String()] = n
	}

	out := Classification{
		Snapshot:  snapshot,
		SessionID: sessionID,
		URL:       url,
		Count:     len(results),
		Counts:    counts,
		Primary:   element.PrimaryCandidates(results, threshold),
		Digest:    digest.Render(),
	}
	if withResults {
		out.Results = results
	}
	if targetDate != "" {
		out.DateMatches = element.FindDates(results, elements, targetDate)
	}
	return out
}

// ClassifyElementsTool classifies a snapshot taken from a live session or
// supplied inline.
type ClassifyElementsTool struct {
	server *Server
}

func (t *ClassifyElementsTool) Name() string { return "classify-elements" }
func (t *ClassifyElementsTool) Description() string {
	return `Classify interactive page elements into semantic categories
(DATE, CALENDAR, BUTTON, INPUT, LINK, DROPDOWN, CHECKBOX, TAB, MODAL, ICON, TEXT, UNKNOWN).

SOURCES (exactly one):
- session_id: snapshot the live page of a session
- elements: [{index, tag_name, text, attributes}]
- elements_text: serialized lines such as [33]<button>Search/>

Returns: {snapshot, count, counts, primary, digest}. primary lists results with
confidence >= classifier.primary_threshold; digest groups elements by category.
Set include_results=true for the full per-element list. target_date adds
date_matches, the date pickers and calendar cells showing that date.`
}
func (t *ClassifyElementsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "Snapshot this session's current page",
			},
			"elements": map[string]interface{}{
				"type":        "array",
				"description": "Inline elements",
				"items": map[string]interface{}{
					"type": "object",
					"properties": map[string]interface{}{
						"index":      map[string]interface{}{"type": "integer"},
						"tag_name":   map[string]interface{}{"type": "string"},
						"text":       map[string]interface{}{"type": "string"},
						"attributes": map[string]interface{}{"type": "object", "additionalProperties": map[string]interface{}{"type": "string"}},
					},
				},
			},
			"elements_text": map[string]interface{}{
				"type":        "string",
				"description": "Serialized element lines",
			},
			"include_results": map[string]interface{}{
				"type":        "boolean",
				"description": "Include every per-element result (default false)",
			},
			"target_date": map[string]interface{}{
				"type":        "string",
				"description": "Return date_matches: DATE/CALENDAR elements whose text contains this, e.g. 30 or 1月30日",
			},
		},
	}
}
func (t *ClassifyElementsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	withResults := getBoolArg(args, "include_results", false)
	targetDate := getStringArg(args, "target_date")

	elements, inline, err := getElementsArg(args)
	if err != nil {
		return nil, err
	}
	sessionID := getStringArg(args, "session_id")
	if inline {
		return t.server.classify(ctx, sessionID, "", elements, withResults, targetDate), nil
	}
	if sessionID == "" {
		return nil, fmt.Errorf("one of session_id, elements or elements_text is required")
	}

	sessions, err := t.server.requireSessions()
	if err != nil {
		return nil, err
	}
	elements, url, err := sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return t.server.classify(ctx, sessionID, url, elements, withResults, targetDate), nil
}

// PrimaryCandidatesTool reads Mangle-derived candidates for a snapshot.
type PrimaryCandidatesTool struct {
	server *Server
}

func (t *PrimaryCandidatesTool) Name() string { return "primary-candidates" }
func (t *PrimaryCandidatesTool) Description() string {
	return `Return the derived primary candidates of a classified snapshot.

Requires mangle.enable. With dates_only=true returns only date_target indexes
(primary DATE or CALENDAR elements).`
}
func (t *PrimaryCandidatesTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"snapshot":   map[string]interface{}{"type": "string", "description": "Snapshot id from classify-elements"},
			"dates_only": map[string]interface{}{"type": "boolean", "description": "Only date targets"},
		},
		"required": []string{"snapshot"},
	}
}
func (t *PrimaryCandidatesTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	snapshot := getStringArg(args, "snapshot")
	if snapshot == "" {
		return nil, fmt.Errorf("snapshot is required")
	}
	engine := t.server.engine
	if engine == nil || !engine.Enabled() {
		return nil, fmt.Errorf("mangle engine disabled")
	}

	if getBoolArg(args, "dates_only", false) {
		indexes, err := engine.IndexesOf(ctx, mangle.PredDateTarget, snapshot)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"snapshot": snapshot, "date_targets": indexes}, nil
	}

	candidates, err := engine.PrimaryCandidates(ctx, snapshot)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"snapshot": snapshot, "count": len(candidates), "candidates": candidates}, nil
}

// QueryFactsTool evaluates the program and returns all facts of one predicate,
// or the bindings of a single-atom query.
type QueryFactsTool struct {
	server *Server
}

func (t *QueryFactsTool) Name() string { return "query-facts" }
func (t *QueryFactsTool) Description() string {
	return `Evaluate the fact program and return every fact of a predicate, e.g.
shortcut_gap (sites and actions whose shortcuts lacked parameters),
slow_navigation, interactive_target.

since_seconds restricts a recorded predicate (navigation_event, shortcut_hit, ...)
to facts recorded in the last N seconds. query takes one Mangle atom such as
snapshot_of(S, "session-1", Url). and returns its variable bindings.`
}
func (t *QueryFactsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"predicate":     map[string]interface{}{"type": "string", "description": "Predicate name"},
			"query":         map[string]interface{}{"type": "string", "description": "Single Mangle atom; overrides predicate"},
			"since_seconds": map[string]interface{}{"type": "integer", "description": "Only recorded facts newer than this many seconds"},
			"limit":         map[string]interface{}{"type": "integer", "description": "Maximum facts returned (default 100)"},
		},
	}
}
func (t *QueryFactsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	predicate := getStringArg(args, "predicate")
	query := getStringArg(args, "query")
	if predicate == "" && query == "" {
		return nil, fmt.Errorf("predicate or query is required")
	}
	engine := t.server.engine
	if engine == nil || !engine.Enabled() {
		return nil, fmt.Errorf("mangle engine disabled")
	}
	limit := getIntArg(args, "limit", 100)

	if query != "" {
		bindings, err := engine.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		total := len(bindings)
		if limit > 0 && len(bindings) > limit {
			bindings = bindings[:limit]
		}
		return map[string]interface{}{"query": query, "count": total, "bindings": bindings}, nil
	}

	var facts []mangle.Fact
	if since := getIntArg(args, "since_seconds", 0); since > 0 {
		facts = engine.QueryTemporal(predicate, t.server.now().Add(-time.Duration(since)*time.Second), time.Time{})
	} else {
		var err error
		if facts, err = engine.Evaluate(ctx, predicate); err != nil {
			return nil, err
		}
	}
	total := len(facts)
	if limit > 0 && len(facts) > limit {
		facts = facts[:limit]
	}
	return map[string]interface{}{"predicate": predicate, "count": total, "facts": facts}, nil
}
