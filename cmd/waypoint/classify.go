package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"waypoint-mcp-server/internal/config"
	"waypoint-mcp-server/internal/element"
)

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "classify <file|->",
		Short: "Classify a snapshot file (JSON element array or serialized lines)",
		Long: `Classify every element of a snapshot.

The input is either a JSON array of {index, tag_name, text, attributes} objects
or serialized element lines such as:

  [0]<input type="date" id="depart">/>
  [1]<button>Search/>

Use "-" to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "text" && format != "json" {
				return fmt.Errorf("unknown format %q (want text or json)", format)
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			return runClassify(cmd.OutOrStdout(), data, format, cfg.Classifier)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text or json")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// decodeElements accepts a JSON element array, falling back to serialized lines.
func decodeElements(data []byte) []element.PageElement {
	var elements []element.PageElement
	if err := json.Unmarshal(data, &elements); err == nil {
		return elements
	}
	return element.ParseSnapshot(string(data))
}

func runClassify(w io.Writer, data []byte, format string, cfg config.ClassifierConfig) error {
	var classifierOpts []element.Option
	if cfg.Workers > 0 {
		classifierOpts = append(classifierOpts, element.WithWorkers(cfg.Workers))
	}
	if cfg.ParallelThreshold > 0 {
		classifierOpts = append(classifierOpts, element.WithParallelThreshold(cfg.ParallelThreshold))
	}

	elements := decodeElements(data)
	results := element.NewClassifier(classifierOpts...).ClassifyAll(elements)
	primary := element.PrimaryCandidates(results, cfg.GetPrimaryThreshold())

	if format == "json" {
		entries := make([]element.Entry, len(results))
		for i := range results {
			entries[i] = element.Entry{Element: elements[i], Result: results[i]}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"count":   len(results),
			"primary": primary,
			"entries": entries,
		})
	}

	if len(elements) == 0 {
		_, err := fmt.Fprintln(w, "no elements")
		return err
	}
	if _, err := io.WriteString(w, element.Group(results, elements).Render()); err != nil {
		return err
	}
	indexes := make([]string, len(primary))
	for i, r := range primary {
		indexes[i] = fmt.Sprintf("%d", r.ElementIndex)
	}
	_, err := fmt.Fprintf(w, "\nprimary candidates: [%s]\n", strings.Join(indexes, " "))
	return err
}
