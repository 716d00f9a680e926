package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"waypoint-mcp-server/internal/config"
)

type rootOptions struct {
	configPath   string
	workspaceDir string
	noWorkspace  bool
}

func main() {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "waypoint",
		Short: "Classify page elements and resolve knowledge shortcuts for browser agents",
		Long: `waypoint labels interactive page elements (DATE, CALENDAR, BUTTON, ...) so a
planner can find the right control, and resolves curated URL shortcuts that skip
step-by-step form filling when the task intent carries every parameter.

Run "waypoint serve" to expose both as MCP tools.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file (default $"+config.EnvConfigPath+")")
	root.PersistentFlags().StringVar(&opts.workspaceDir, "workspace-dir", "", "Workspace root containing .waypoint/ (default: walk up from cwd)")
	root.PersistentFlags().BoolVar(&opts.noWorkspace, "no-workspace", false, "Skip .waypoint/ discovery")

	root.AddCommand(
		newServeCmd(opts),
		newClassifyCmd(opts),
		newResolveCmd(opts),
		newKnowledgeCmd(opts),
		newInitCmd(),
	)
	return root
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, _, err := config.LoadWithWorkspace(config.ExplicitPath(o.configPath), config.WorkspaceOptions{
		Disable:     o.noWorkspace,
		ExplicitDir: o.workspaceDir,
	})
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a .waypoint/ workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			if err := config.InitWorkspace(root); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized workspace in %s\n", root)
			return nil
		},
	}
}
