package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"waypoint-mcp-server/internal/browser"
	"waypoint-mcp-server/internal/config"
	"waypoint-mcp-server/internal/element"
	"waypoint-mcp-server/internal/knowledge"
	"waypoint-mcp-server/internal/mangle"
	"waypoint-mcp-server/internal/metrics"
	"waypoint-mcp-server/internal/navigation"
	"waypoint-mcp-server/internal/recorder"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// Server wires the MCP runtime to the classifier, the knowledge base, the Rod
// session manager and the Mangle fact buffer.
type Server struct {
	cfg        config.Config
	logger     *zap.Logger
	sessions   *browser.SessionManager
	engine     *mangle.Engine
	recorder   *recorder.Recorder
	metrics    *metrics.Collector
	classifier *element.Classifier
	now        func() time.Time

	kbMu     sync.RWMutex
	matcher  *knowledge.Matcher
	resolver *navigation.Resolver

	tools     map[string]Tool
	mcpServer *mcpserver.MCPServer
}

// Tool describes the contract for MCP tool implementations.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) (interface{}, error)
}

// Deps are the collaborators a Server needs. Every field is optional; tools
// that need a missing collaborator report an error when called.
type Deps struct {
	Sessions  *browser.SessionManager
	Engine    *mangle.Engine
	Knowledge *knowledge.Store
	Recorder  *recorder.Recorder
	Metrics   *metrics.Collector
	Logger    *zap.Logger
	Clock     func() time.Time
}

// NewServer constructs the Waypoint MCP server and registers all tools.
func NewServer(cfg config.Config, deps Deps) (*Server, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	mcpSrv := mcpserver.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithLogging(),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
	)

	classifierOpts := []element.Option{element.WithLogger(logger.Named("classifier"))}
	if cfg.Classifier.Workers > 0 {
		classifierOpts = append(classifierOpts, element.WithWorkers(cfg.Classifier.Workers))
	}
	if cfg.Classifier.ParallelThreshold > 0 {
		classifierOpts = append(classifierOpts, element.WithParallelThreshold(cfg.Classifier.ParallelThreshold))
	}

	server := &Server{
		cfg:        cfg,
		logger:     logger.Named("mcp"),
		sessions:   deps.Sessions,
		engine:     deps.Engine,
		recorder:   deps.Recorder,
		metrics:    deps.Metrics,
		classifier: element.NewClassifier(classifierOpts...),
		now:        clock,
		tools:      make(map[string]Tool),
		mcpServer:  mcpSrv,
	}
	server.setKnowledge(deps.Knowledge)

	server.registerAllTools()
	server.registerAllResources()
	return server, nil
}

// Start launches the stdio server.
func (s *Server) Start(ctx context.Context) error {
	stdio := mcpserver.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// StartSSE hosts the server over HTTP using SSE endpoints with graceful shutdown.
func (s *Server) StartSSE(ctx context.Context, port int) error {
	sseServer := mcpserver.NewSSEServer(s.mcpServer, mcpserver.WithBaseURL("http://localhost:"+strconv.Itoa(port)))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("sse server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// ExecuteTool executes a tool directly (used by the CLI and tests).
func (s *Server) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	tool, exists := s.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return tool.Execute(ctx, args)
}

// ToolNames lists registered tool names.
func (s *Server) ToolNames() []string {
	names := make([]string, 0, len(s.tools))
	for name := range s.tools {
		names = append(names, name)
	}
	return names
}

func (s *Server) registerAllTools() {
	// Browser session management
	s.registerTool(&LaunchBrowserTool{server: s})
	s.registerTool(&ShutdownBrowserTool{server: s})
	s.registerTool(&CreateSessionTool{server: s})
	s.registerTool(&ListSessionsTool{server: s})
	s.registerTool(&NavigateURLTool{server: s})
	s.registerTool(&CloseSessionTool{server: s})

	// Classification
	s.registerTool(&ClassifyElementsTool{server: s})
	s.registerTool(&PrimaryCandidatesTool{server: s})
	s.registerTool(&QueryFactsTool{server: s})

	// Knowledge-driven shortcuts
	s.registerTool(&ResolveShortcutTool{server: s})
	s.registerTool(&FollowShortcutTool{server: s})
	s.registerTool(&ListKnowledgeTool{server: s})
	s.registerTool(&ReloadKnowledgeTool{server: s})
}

func (s *Server) registerTool(tool Tool) {
	s.tools[tool.Name()] = tool

	schema, err := json.Marshal(tool.InputSchema())
	if err != nil {
		schema = json.RawMessage(`{"type":"object"}`)
	}

	mcpTool := mcp.NewToolWithRawSchema(tool.Name(), tool.Description(), schema)
	s.mcpServer.AddTool(mcpTool, s.wrapTool(tool))
}

func (s *Server) wrapTool(tool Tool) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		started := time.Now()
		result, err := tool.Execute(ctx, args)
		s.metrics.RecordToolCall(tool.Name(), time.Since(started), err)
		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", tool.Name()), zap.Duration("elapsed", time.Since(started)), zap.Error(err))
			return &mcp.CallToolResult{
				Content: []mcp.Content{mcp.NewTextContent(fmt.Sprintf("tool %s failed: %v", tool.Name(), err))},
				IsError: true,
			}, nil
		}
		s.logger.Debug("tool executed", zap.String("tool", tool.Name()), zap.Duration("elapsed", time.Since(started)))

		payload := marshalToolPayload(tool.Name(), result)
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent(string(payload))},
			IsError: false,
		}, nil
	}
}

func marshalToolPayload(toolName string, result interface{}) []byte {
	payload, marshalErr := json.Marshal(result)
	if marshalErr == nil {
		return payload
	}

	fallback := map[string]interface{}{
		"success": false,
		"error":   fmt.Sprintf("tool %s returned non-serializable payload: %v", toolName, marshalErr),
	}
	payload, fallbackErr := json.Marshal(fallback)
	if fallbackErr == nil {
		return payload
	}

	return []byte(fmt.Sprintf(`{"success":false,"error":"tool %s failed to encode payload"}`, toolName))
}

// setKnowledge swaps the knowledge base in one step so concurrent resolves see
// either the old or the new store, never a mix.
func (s *Server) setKnowledge(store *knowledge.Store) {
	matcher := knowledge.NewMatcher(store)
	opts := []navigation.ResolverOption{navigation.WithResolverLogger(s.logger.Named("resolver"))}
	if s.cfg.Knowledge.ShouldEnrich() {
		opts = append(opts, navigation.WithEnrichment(s.now))
	}
	resolver := navigation.NewResolver(matcher, opts...)

	s.kbMu.Lock()
	s.matcher = matcher
	s.resolver = resolver
	s.kbMu.Unlock()
	s.metrics.SetKnowledgeEntries(matcher.Store().Len())
}

func (s *Server) knowledgeBase() (*knowledge.Matcher, *navigation.Resolver) {
	s.kbMu.RLock()
	defer s.kbMu.RUnlock()
	return s.matcher, s.resolver
}

func (s *Server) requireSessions() (*browser.SessionManager, error) {
	if s.sessions == nil {
		return nil, fmt.Errorf("browser session manager unavailable")
	}
	return s.sessions, nil
}

// navigated reports a finished navigation to the trace and metrics.
func (s *Server) navigated(sessionID, url string, elapsed time.Duration, err error) {
	s.recorder.Navigation(sessionID, url, elapsed, err)
	s.metrics.RecordNavigation(elapsed, err)
}

// record pushes facts to the engine; failures are logged, never returned.
func (s *Server) record(ctx context.Context, facts ...mangle.Fact) {
	if s.engine == nil || len(facts) == 0 {
		return
	}
	if err := s.engine.AddFacts(ctx, facts); err != nil {
		s.logger.Warn("record facts failed", zap.Error(err))
	}
}
