package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Entry is one curated shortcut. Entries are treated as immutable once built.
type Entry struct {
	Name        string            `json:"name"`
	Site        SitePattern       `json:"site"`
	Intent      IntentPattern     `json:"intent"`
	Template    Template          `json:"template"`
	Defaults    map[string]string `json:"defaults,omitempty"`
	Description string            `json:"description,omitempty"`
}

// NewEntry parses the textual forms of an entry.
func NewEntry(name, site, intent, template string, defaults map[string]string) (Entry, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Entry{}, fmt.Errorf("entry has no name")
	}
	sp, err := ParseSitePattern(site)
	if err != nil {
		return Entry{}, fmt.Errorf("site: %w", err)
	}
	ip, err := ParseIntentPattern(intent)
	if err != nil {
		return Entry{}, fmt.Errorf("intent: %w", err)
	}
	tpl, err := ParseTemplate(template)
	if err != nil {
		return Entry{}, fmt.Errorf("template: %w", err)
	}

	var copied map[string]string
	if len(defaults) > 0 {
		copied = make(map[string]string, len(defaults))
		for k, v := range defaults {
			copied[k] = v
		}
	}
	return Entry{Name: name, Site: sp, Intent: ip, Template: tpl, Defaults: copied}, nil
}

// Store is the ordered, read-only collection of entries.
type Store struct {
	entries []Entry
}

// NewStore keeps entries in the given order.
func NewStore(entries ...Entry) *Store {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return &Store{entries: out}
}

// Entries returns the entries in load order.
func (s *Store) Entries() []Entry {
	if s == nil {
		return nil
	}
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.entries)
}

type sourceFile struct {
	Entries []yaml.Node `yaml:"entries"`
}

type sourceEntry struct {
	Name        string            `yaml:"name"`
	Site        string            `yaml:"site"`
	Intent      string            `yaml:"intent"`
	Template    string            `yaml:"template"`
	Defaults    map[string]string `yaml:"defaults"`
	Description string            `yaml:"description"`
}

// Parse decodes one YAML source. Each entry is decoded from its own node so a
// malformed entry is dropped with a diagnostic and never spoils its neighbours.
func Parse(source string, data []byte) ([]Entry, []Diagnostic) {
	return parse(source, data, make(map[string]struct{}))
}

// parse records accepted names in names so duplicates are caught across sources.
func parse(source string, data []byte, names map[string]struct{}) ([]Entry, []Diagnostic) {
	var file sourceFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, []Diagnostic{{Source: source, Reason: err.Error()}}
	}

	var (
		entries []Entry
		diags   []Diagnostic
	)
	for i := range file.Entries {
		node := &file.Entries[i]
		label := fmt.Sprintf("#%d", i+1)

		var raw sourceEntry
		if err := node.Decode(&raw); err != nil {
			diags = append(diags, Diagnostic{Source: source, Entry: label, Line: node.Line, Reason: err.Error()})
			continue
		}
		if raw.Name != "" {
			label = raw.Name
		}
		if _, dup := names[strings.TrimSpace(raw.Name)]; dup {
			diags = append(diags, Diagnostic{Source: source, Entry: label, Line: node.Line, Reason: "duplicate entry name"})
			continue
		}

		e, err := NewEntry(raw.Name, raw.Site, raw.Intent, raw.Template, raw.Defaults)
		if err != nil {
			diags = append(diags, Diagnostic{Source: source, Entry: label, Line: node.Line, Reason: err.Error()})
			continue
		}
		e.Description = strings.TrimSpace(raw.Description)
		names[e.Name] = struct{}{}
		entries = append(entries, e)
	}
	return entries, diags
}

// Load reads a YAML file, or every *.yaml and *.yml file of a directory in
// lexical order, into a Store. Malformed entries are logged and reported as
// diagnostics; only an unreadable path is an error.
func Load(path string, logger *zap.Logger) (*Store, []Diagnostic, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	files, err := sourceFiles(path)
	if err != nil {
		return NewStore(), nil, fmt.Errorf("load knowledge %s: %w", path, err)
	}

	var (
		entries []Entry
		diags   []Diagnostic
		names   = make(map[string]struct{})
	)
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			diags = append(diags, Diagnostic{Source: f, Reason: err.Error()})
			continue
		}
		es, ds := parse(f, data, names)
		entries = append(entries, es...)
		diags = append(diags, ds...)
	}

	for _, d := range diags {
		logger.Warn("knowledge entry skipped",
			zap.String("source", d.Source),
			zap.String("entry", d.Entry),
			zap.Int("line", d.Line),
			zap.String("reason", d.Reason),
		)
	}
	logger.Info("knowledge loaded",
		zap.String("path", path),
		zap.Int("files", len(files)),
		zap.Int("entries", len(entries)),
		zap.Int("skipped", len(diags)),
	)
	return NewStore(entries...), diags, nil
}

func sourceFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(de.Name())) {
		case ".yaml", ".yml":
			files = append(files, filepath.Join(path, de.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
