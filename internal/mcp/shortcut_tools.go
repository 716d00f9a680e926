package mcp

import (
	"context"
	"fmt"
	"time"

	"waypoint-mcp-server/internal/knowledge"
	"waypoint-mcp-server/internal/knowledge/intent"
	"waypoint-mcp-server/internal/mangle"
	"waypoint-mcp-server/internal/navigation"

	"go.uber.org/zap"
)

// resolve runs the resolver and records the decision as a fact and a trace event.
func (s *Server) resolve(ctx context.Context, sessionID, site string, intent knowledge.TaskIntent) navigation.Decision {
	_, resolver := s.knowledgeBase()
	d := resolver.Resolve(site, intent)
	s.record(ctx, mangle.ShortcutFact(site, intent, d, s.now()))
	s.recorder.Shortcut(sessionID, site, intent, d)
	s.metrics.RecordShortcut(d)
	return d
}

var intentSchema = map[string]interface{}{
	"type":        "object",
	"description": `Task intent, e.g. {"action":"flight_search","departure_city":"北京","arrival_city":"上海","date":"明天"}`,
	"additionalProperties": map[string]interface{}{
		"type": "string",
	},
}

// ResolveShortcutTool answers whether a curated shortcut covers a task.
type ResolveShortcutTool struct {
	server *Server
}

func (t *ResolveShortcutTool) Name() string { return "resolve-shortcut" }
func (t *ResolveShortcutTool) Description() string {
	return `Resolve a knowledge shortcut for a site and task intent without touching the browser.

Returns: {decision: {kind, destination, entry, reason, missing}}.
kind=navigate carries the fully rendered destination URL.
kind=fallback means drive the page step by step; reason is no_knowledge_match
or missing_parameter (missing lists the intent keys to supply).

Instead of intent, query accepts a one-way flight request as a sentence, e.g.
"1月30日从上海到北京的机票". Keys given in intent override the parsed ones.`
}
func (t *ResolveShortcutTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"site":   map[string]interface{}{"type": "string", "description": "Site host or URL"},
			"intent": intentSchema,
			"query":  map[string]interface{}{"type": "string", "description": "Free-text flight request; used when intent is absent or partial"},
		},
		"required": []string{"site"},
	}
}
func (t *ResolveShortcutTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	site := getStringArg(args, "site")
	if site == "" {
		return nil, fmt.Errorf("site is required")
	}
	task, err := t.taskIntent(args)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"site": knowledge.NormalizeSite(site), "decision": t.server.resolve(ctx, "", site, task)}, nil
}

// taskIntent reads the intent argument, the query argument, or both merged.
func (t *ResolveShortcutTool) taskIntent(args map[string]interface{}) (knowledge.TaskIntent, error) {
	query := getStringArg(args, "query")
	if query == "" {
		return getIntentArg(args, "intent")
	}
	parsed, ok := intent.ParseQuery(query, t.server.now())
	if !ok {
		return nil, fmt.Errorf("query %q needs a date and two known cities", query)
	}
	if raw, present := args["intent"]; present && raw != nil {
		explicit, err := getIntentValues(args, "intent")
		if err != nil {
			return nil, err
		}
		for k, v := range explicit {
			parsed[k] = v
		}
	}
	return parsed, nil
}

// FollowShortcutTool resolves against a session's page and navigates on a hit.
type FollowShortcutTool struct {
	server *Server
}

func (t *FollowShortcutTool) Name() string { return "follow-shortcut" }
func (t *FollowShortcutTool) Description() string {
	return `Resolve a shortcut for the session's current site and act on it.

On a hit the session navigates straight to the rendered destination.
On a fallback the current page is snapshotted and classified so the planner can
continue element by element; the classification is returned.

site defaults to the session's current URL.`
}
func (t *FollowShortcutTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": map[string]interface{}{"type": "string", "description": "Target session"},
			"site":       map[string]interface{}{"type": "string", "description": "Override the site to resolve against"},
			"intent":     intentSchema,
		},
		"required": []string{"session_id", "intent"},
	}
}
func (t *FollowShortcutTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID := getStringArg(args, "session_id")
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	intent, err := getIntentArg(args, "intent")
	if err != nil {
		return nil, err
	}
	sessions, err := t.server.requireSessions()
	if err != nil {
		return nil, err
	}
	sess, ok := sessions.GetSession(sessionID)
	if !ok {
		return nil, fmt.Errorf("unknown session: %s", sessionID)
	}

	site := getStringArg(args, "site")
	if site == "" {
		site = sess.URL
	}
	d := t.server.resolve(ctx, sessionID, site, intent)

	if d.Kind == navigation.Navigate {
		started := time.Now()
		err := sessions.Navigate(ctx, sessionID, d.Destination)
		t.server.navigated(sessionID, d.Destination, time.Since(started), err)
		if err != nil {
			return nil, fmt.Errorf("follow %s: %w", d.Entry, err)
		}
		sess, _ = sessions.GetSession(sessionID)
		return map[string]interface{}{"decision": d, "navigated": true, "session": sess}, nil
	}

	elements, url, err := sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"decision":       d,
		"navigated":      false,
		"classification": t.server.classify(ctx, sessionID, url, elements, false, ""),
	}, nil
}

// ListKnowledgeTool lists the loaded shortcut entries.
type ListKnowledgeTool struct {
	server *Server
}

func (t *ListKnowledgeTool) Name() string { return "list-knowledge" }
func (t *ListKnowledgeTool) Description() string {
	return `List loaded shortcut entries in match order, optionally only those whose site pattern accepts site.`
}
func (t *ListKnowledgeTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"site": map[string]interface{}{"type": "string", "description": "Optional site filter"},
		},
	}
}
func (t *ListKnowledgeTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	matcher, _ := t.server.knowledgeBase()
	var entries []knowledge.Entry
	if site := getStringArg(args, "site"); site != "" {
		entries = matcher.ForSite(site)
	} else {
		entries = matcher.Store().Entries()
	}
	if entries == nil {
		entries = []knowledge.Entry{}
	}
	return map[string]interface{}{"count": len(entries), "entries": entries}, nil
}

// ReloadKnowledgeTool re-reads knowledge.path and swaps the store in.
type ReloadKnowledgeTool struct {
	server *Server
}

func (t *ReloadKnowledgeTool) Name() string { return "reload-knowledge" }
func (t *ReloadKnowledgeTool) Description() string {
	return `Reload shortcut entries from knowledge.path. Malformed entries are skipped and reported.
On a read failure the current store stays in place.`
}
func (t *ReloadKnowledgeTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ReloadKnowledgeTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	path := t.server.cfg.Knowledge.Path
	if path == "" {
		return nil, fmt.Errorf("knowledge.path is not configured")
	}
	store, diags, err := knowledge.Load(path, t.server.logger)
	if err != nil {
		return nil, err
	}
	t.server.setKnowledge(store)
	t.server.logger.Info("knowledge reloaded", zap.String("path", path), zap.Int("entries", store.Len()), zap.Int("skipped", len(diags)))
	if diags == nil {
		diags = []knowledge.Diagnostic{}
	}
	return map[string]interface{}{"entries": store.Len(), "diagnostics": diags}, nil
}
