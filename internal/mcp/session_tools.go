package mcp

import (
	"context"
	"fmt"
	"time"
)

type ListSessionsTool struct {
	server *Server
}

func (t *ListSessionsTool) Name() string { return "list-sessions" }
func (t *ListSessionsTool) Description() string {
	return `List all browser sessions managed by the detached Rod instance.

Returns: {sessions: [{id, url, title, status}]}. Use an id as session_id for
classify-elements, follow-shortcut and navigate-url.`
}
func (t *ListSessionsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ListSessionsTool) Execute(_ context.Context, _ map[string]interface{}) (interface{}, error) {
	sessions, err := t.server.requireSessions()
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"sessions": sessions.List()}, nil
}

type CreateSessionTool struct {
	server *Server
}

func (t *CreateSessionTool) Name() string { return "create-session" }
func (t *CreateSessionTool) Description() string {
	return `Open a new isolated (incognito) browser tab.

PREREQUISITE: launch-browser.

Returns: {session: {id, url, title}}.`
}
func (t *CreateSessionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"url": map[string]interface{}{
				"type":        "string",
				"description": "Optional URL to navigate after opening the session",
			},
		},
	}
}
func (t *CreateSessionTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessions, err := t.server.requireSessions()
	if err != nil {
		return nil, err
	}
	url := getStringArg(args, "url")
	if url == "" {
		url = "about:blank"
	}

	sess, err := sessions.CreateSession(ctx, url)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"session": sess}, nil
}

type NavigateURLTool struct {
	server *Server
}

func (t *NavigateURLTool) Name() string { return "navigate-url" }
func (t *NavigateURLTool) Description() string {
	return `Load a URL in a session and wait for the load event.

Returns: {session: {id, url, title}, elapsed_ms}.`
}
func (t *NavigateURLTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": map[string]interface{}{"type": "string", "description": "Target session"},
			"url":        map[string]interface{}{"type": "string", "description": "Destination URL"},
		},
		"required": []string{"session_id", "url"},
	}
}
func (t *NavigateURLTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID := getStringArg(args, "session_id")
	url := getStringArg(args, "url")
	if sessionID == "" || url == "" {
		return nil, fmt.Errorf("session_id and url are required")
	}
	sessions, err := t.server.requireSessions()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	err = sessions.Navigate(ctx, sessionID, url)
	elapsed := time.Since(started)
	t.server.navigated(sessionID, url, elapsed, err)
	if err != nil {
		return nil, err
	}

	sess, _ := sessions.GetSession(sessionID)
	return map[string]interface{}{"session": sess, "elapsed_ms": elapsed.Milliseconds()}, nil
}

type CloseSessionTool struct {
	server *Server
}

func (t *CloseSessionTool) Name() string { return "close-session" }
func (t *CloseSessionTool) Description() string {
	return `Close a session's tab and forget the session.

Returns: {session_id, status: "closed"}.`
}
func (t *CloseSessionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"session_id": map[string]interface{}{"type": "string", "description": "Session to close"},
		},
		"required": []string{"session_id"},
	}
}
func (t *CloseSessionTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	sessionID := getStringArg(args, "session_id")
	if sessionID == "" {
		return nil, fmt.Errorf("session_id is required")
	}
	sessions, err := t.server.requireSessions()
	if err != nil {
		return nil, err
	}
	if err := sessions.CloseSession(sessionID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"session_id": sessionID, "status": "closed"}, nil
}

// LaunchBrowserTool starts Chrome using the configured launch command.
type LaunchBrowserTool struct {
	server *Server
}

func (t *LaunchBrowserTool) Name() string { return "launch-browser" }
func (t *LaunchBrowserTool) Description() string {
	return `Start or attach to Chrome as configured (browser.launch or browser.debugger_url).

Idempotent: safe to call if already running.

Returns: {status: "started"|"already_connected", control_url}`
}
func (t *LaunchBrowserTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *LaunchBrowserTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	sessions, err := t.server.requireSessions()
	if err != nil {
		return nil, err
	}
	if sessions.IsConnected() {
		return map[string]interface{}{
			"status":      "already_connected",
			"control_url": sessions.ControlURL(),
		}, nil
	}

	if err := sessions.Start(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status":      "started",
		"control_url": sessions.ControlURL(),
	}, nil
}

// ShutdownBrowserTool stops the managed Chrome instance and clears sessions.
type ShutdownBrowserTool struct {
	server *Server
}

func (t *ShutdownBrowserTool) Name() string { return "shutdown-browser" }
func (t *ShutdownBrowserTool) Description() string {
	return `Stop Chrome and close all sessions. Recorded facts are kept.`
}
func (t *ShutdownBrowserTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":       "object",
		"properties": map[string]interface{}{},
	}
}
func (t *ShutdownBrowserTool) Execute(ctx context.Context, _ map[string]interface{}) (interface{}, error) {
	sessions, err := t.server.requireSessions()
	if err != nil {
		return nil, err
	}
	if err := sessions.Shutdown(ctx); err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"status": "stopped",
	}, nil
}
