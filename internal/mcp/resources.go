package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"waypoint-mcp-server/internal/mangle"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	resourceMIMEJSON = "application/json"
)

func (s *Server) registerAllResources() {
	if s == nil || s.mcpServer == nil {
		return
	}

	s.mcpServer.AddResource(
		mcp.NewResource(
			"waypoint://about",
			"Waypoint About",
			mcp.WithMIMEType(resourceMIMEJSON),
			mcp.WithResourceDescription("Server info, loaded knowledge size and usage notes."),
		),
		s.handleAboutResource,
	)

	s.mcpServer.AddResource(
		mcp.NewResource(
			"waypoint://knowledge",
			"Knowledge Entries",
			mcp.WithMIMEType(resourceMIMEJSON),
			mcp.WithResourceDescription("Loaded shortcut entries in match order."),
		),
		s.handleKnowledgeResource,
	)

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"waypoint://snapshot/{snapshotId}/classified{?limit}",
			"Snapshot Classification",
			mcp.WithTemplateMIMEType(resourceMIMEJSON),
			mcp.WithTemplateDescription("classified facts recorded for one snapshot."),
		),
		s.handleSnapshotResource,
	)
}

func (s *Server) handleAboutResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	matcher, _ := s.knowledgeBase()
	payload := map[string]interface{}{
		"name":              s.cfg.Server.Name,
		"version":           s.cfg.Server.Version,
		"knowledge_entries": matcher.Store().Len(),
		"primary_threshold": s.cfg.Classifier.GetPrimaryThreshold(),
		"facts_enabled":     s.engine != nil && s.engine.Enabled(),
		"notes": []string{
			"Try resolve-shortcut first; a navigate decision skips step-by-step form filling.",
			"On fallback, classify-elements groups the page by category with primary candidates first.",
		},
		"timestamp_ms": s.now().UnixMilli(),
	}
	return jsonContents(request.Params.URI, payload)
}

func (s *Server) handleKnowledgeResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	matcher, _ := s.knowledgeBase()
	entries := matcher.Store().Entries()
	return jsonContents(request.Params.URI, map[string]interface{}{"count": len(entries), "entries": entries})
}

func (s *Server) handleSnapshotResource(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if s.engine == nil {
		return nil, fmt.Errorf("mangle engine unavailable")
	}

	snapshot := argString(request.Params.Arguments["snapshotId"])
	if snapshot == "" {
		return nil, fmt.Errorf("missing snapshotId")
	}
	limit := asInt(request.Params.Arguments["limit"])
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}

	facts := selectSnapshotFacts(s.engine.FactsByPredicate(mangle.PredClassified), snapshot, limit)
	return jsonContents(request.Params.URI, map[string]interface{}{
		"snapshot": snapshot,
		"limit":    limit,
		"count":    len(facts),
		"facts":    facts,
	})
}

// selectSnapshotFacts keeps facts whose first argument is snapshot, in order.
func selectSnapshotFacts(source []mangle.Fact, snapshot string, limit int) []mangle.Fact {
	out := make([]mangle.Fact, 0, min(limit, len(source)))
	for _, f := range source {
		if len(out) >= limit {
			break
		}
		if len(f.Args) == 0 || fmt.Sprintf("%v", f.Args[0]) != snapshot {
			continue
		}
		out = append(out, f)
	}
	return out
}

func jsonContents(uri string, payload interface{}) ([]mcp.ResourceContents, error) {
	text, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: resourceMIMEJSON,
			Text:     string(text),
		},
	}, nil
}

func asInt(v any) int {
	switch value := v.(type) {
	case int:
		return value
	case int64:
		return int(value)
	case float64:
		return int(value)
	case string:
		var n int
		_, _ = fmt.Sscanf(value, "%d", &n)
		return n
	case []string:
		if len(value) == 0 {
			return 0
		}
		return asInt(value[0])
	default:
		return 0
	}
}
