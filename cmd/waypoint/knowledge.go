package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"waypoint-mcp-server/internal/knowledge"
)

var errMalformedKnowledge = errors.New("knowledge has malformed entries")

func newKnowledgeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Inspect shortcut knowledge files",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Validate knowledge entries and report every malformed one",
		Long: `Load a knowledge file or directory the way the server does and print one line
per skipped entry. Exits non-zero when anything was skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				path = cfg.Knowledge.Path
			}
			return runKnowledgeCheck(cmd.OutOrStdout(), path)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list [path]",
		Short: "List loaded entries in match order",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				path = cfg.Knowledge.Path
			}
			store, _, err := knowledge.Load(path, zap.NewNop())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, e := range store.Entries() {
				fmt.Fprintf(w, "%-24s site=%-28s intent=%-28s %s\n", e.Name, e.Site, e.Intent, e.Template)
			}
			return nil
		},
	})
	return cmd
}

func runKnowledgeCheck(w io.Writer, path string) error {
	store, diags, err := knowledge.Load(path, zap.NewNop())
	if err != nil {
		return err
	}
	for _, d := range diags {
		fmt.Fprintln(w, d.String())
	}
	fmt.Fprintf(w, "%d entries loaded, %d skipped\n", store.Len(), len(diags))
	if len(diags) > 0 {
		return fmt.Errorf("%w: %d skipped", errMalformedKnowledge, len(diags))
	}
	return nil
}
