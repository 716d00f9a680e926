package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"waypoint-mcp-server/internal/knowledge"
	"waypoint-mcp-server/internal/knowledge/intent"
	"waypoint-mcp-server/internal/navigation"
)

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var (
		knowledgePath string
		noEnrich      bool
		query         string
	)
	cmd := &cobra.Command{
		Use:   "resolve <site> [key=value...]",
		Short: "Resolve a knowledge shortcut for a site and task intent",
		Example: `  waypoint resolve flights.ctrip.com action=oneway_flight_search departure=上海 arrival=北京 date=明天
  waypoint resolve ctrip.com --query "1月30日从上海到北京的机票"
  waypoint resolve example-travel.com action=oneway_flight_search departure=SHA arrival=HKG date=2026-02-01 --knowledge ./knowledge`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if knowledgePath == "" {
				knowledgePath = cfg.Knowledge.Path
			}
			task, err := buildIntent(query, args[1:], time.Now())
			if err != nil {
				return err
			}

			store, diags, err := knowledge.Load(knowledgePath, zap.NewNop())
			if err != nil {
				return err
			}
			for _, d := range diags {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", d)
			}

			var resolverOpts []navigation.ResolverOption
			if cfg.Knowledge.ShouldEnrich() && !noEnrich {
				resolverOpts = append(resolverOpts, navigation.WithEnrichment(time.Now))
			}
			resolver := navigation.NewResolver(knowledge.NewMatcher(store), resolverOpts...)
			return writeDecision(cmd.OutOrStdout(), resolver.Resolve(args[0], task))
		},
	}
	cmd.Flags().StringVar(&knowledgePath, "knowledge", "", "Knowledge file or directory (default knowledge.path)")
	cmd.Flags().BoolVar(&noEnrich, "no-enrich", false, "Do not derive city codes and normalized dates")
	cmd.Flags().StringVar(&query, "query", "", "One-way flight request as a sentence; key=value pairs override it")
	return cmd
}

// buildIntent parses query when given and overlays the key=value pairs.
func buildIntent(query string, pairs []string, now time.Time) (knowledge.TaskIntent, error) {
	if query == "" {
		return parseIntent(pairs)
	}
	parsed, ok := intent.ParseQuery(query, now)
	if !ok {
		return nil, fmt.Errorf("query %q needs a date and two known cities", query)
	}
	extra, err := parsePairs(pairs)
	if err != nil {
		return nil, err
	}
	for k, v := range extra {
		parsed[k] = v
	}
	return parsed, nil
}

// parseIntent turns key=value pairs into a task intent.
func parseIntent(pairs []string) (knowledge.TaskIntent, error) {
	task, err := parsePairs(pairs)
	if err != nil {
		return nil, err
	}
	if task.Action() == "" {
		return nil, fmt.Errorf("intent needs action=... or category=...")
	}
	return task, nil
}

func parsePairs(pairs []string) (knowledge.TaskIntent, error) {
	out := make(knowledge.TaskIntent, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("intent argument %q is not key=value", p)
		}
		out[k] = v
	}
	return out, nil
}

func writeDecision(w io.Writer, d navigation.Decision) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(d)
}
