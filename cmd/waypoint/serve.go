package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"waypoint-mcp-server/internal/browser"
	"waypoint-mcp-server/internal/knowledge"
	"waypoint-mcp-server/internal/logging"
	"waypoint-mcp-server/internal/mangle"
	mcpserver "waypoint-mcp-server/internal/mcp"
	"waypoint-mcp-server/internal/metrics"
	"waypoint-mcp-server/internal/recorder"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var ssePort int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio, or SSE with --sse-port",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if ssePort != 0 {
				cfg.MCP.SSEPort = ssePort
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger, closeLog, err := logging.New(cfg.Server)
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			defer closeLog()

			engine, err := mangle.NewEngine(cfg.Mangle, logger.Named("mangle"))
			if err != nil {
				return fmt.Errorf("init mangle engine: %w", err)
			}

			store, diags, err := knowledge.Load(cfg.Knowledge.Path, logger.Named("knowledge"))
			if err != nil {
				logger.Warn("knowledge unavailable, serving without shortcuts", zap.String("path", cfg.Knowledge.Path), zap.Error(err))
			}

			var rec *recorder.Recorder
			if cfg.Recorder.Enable {
				rec, err = recorder.NewRecorder(cfg.Recorder.Dir)
				if err != nil {
					return fmt.Errorf("init recorder: %w", err)
				}
				if err := rec.Start("serve"); err != nil {
					return fmt.Errorf("start recorder: %w", err)
				}
				defer rec.Close()
			}

			sessions := browser.NewSessionManager(cfg.Browser, engine, logger)
			if cfg.Browser.AutoStart {
				if err := sessions.Start(ctx); err != nil {
					return fmt.Errorf("start browser: %w", err)
				}
			} else {
				logger.Info("browser auto-start disabled; use launch-browser to start later")
			}
			defer func() { _ = sessions.Shutdown(context.Background()) }()

			server, err := mcpserver.NewServer(cfg, mcpserver.Deps{
				Sessions:  sessions,
				Engine:    engine,
				Knowledge: store,
				Recorder:  rec,
				Metrics:   metrics.NewCollector("waypoint", logger),
				Logger:    logger,
			})
			if err != nil {
				return fmt.Errorf("init mcp server: %w", err)
			}

			logger.Info("starting waypoint",
				zap.Int("sse_port", cfg.MCP.SSEPort),
				zap.Int("knowledge_entries", store.Len()),
				zap.Int("knowledge_skipped", len(diags)),
			)
			if cfg.MCP.SSEPort > 0 {
				err = server.StartSSE(ctx, cfg.MCP.SSEPort)
			} else {
				err = server.Start(ctx)
			}
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("server exited with error", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&ssePort, "sse-port", 0, "Serve SSE on this port (overrides mcp.sse_port)")
	return cmd
}
