package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level Waypoint config.
	WorkspaceDirName = ".waypoint"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
	// EnvConfigPath names the config file when no --config flag is given.
	EnvConfigPath = "WAYPOINT_CONFIG"
)

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely (--no-workspace flag).
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up (--workspace-dir flag).
	ExplicitDir string
}

// Config captures all tunable settings for the Waypoint server and CLI.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Browser    BrowserConfig    `yaml:"browser"`
	MCP        MCPConfig        `yaml:"mcp"`
	Mangle     MangleConfig     `yaml:"mangle"`
	Knowledge  KnowledgeConfig  `yaml:"knowledge"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Recorder   RecorderConfig   `yaml:"recorder"`
}

type ServerConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	// LogFile receives JSON logs with size rotation. Empty logs to stderr.
	LogFile string `yaml:"log_file"`
	// LogLevel is one of debug | info | warn | error.
	LogLevel string `yaml:"log_level"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). Required when launch is empty.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional launch command: a Chrome binary (or "auto" to let Rod find or download one)
	// followed by --flag=value switches.
	Launch []string `yaml:"launch"`
	// AutoStart controls whether the server launches/attaches to Chrome at startup.
	AutoStart bool `yaml:"auto_start"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// Default navigation timeout (e.g., "15s").
	DefaultNavigationTimeout string `yaml:"default_navigation_timeout"`
	// Viewport width for new sessions (default: 1920).
	ViewportWidth int `yaml:"viewport_width"`
	// Viewport height for new sessions (default: 1080).
	ViewportHeight int `yaml:"viewport_height"`
}

type MCPConfig struct {
	// When set, starts an SSE server on this port instead of stdio-only.
	SSEPort int `yaml:"sse_port"`
}

// MangleConfig controls the embedded deductive engine.
type MangleConfig struct {
	Enable          bool   `yaml:"enable"`
	SchemaPath      string `yaml:"schema_path"`
	FactBufferLimit int    `yaml:"fact_buffer_limit"`
}

// KnowledgeConfig points at the curated shortcut source.
type KnowledgeConfig struct {
	// Path is a YAML file or a directory of *.yaml / *.yml files.
	Path string `yaml:"path"`
	// Enrich derives city codes and normalized dates from the raw intent.
	Enrich *bool `yaml:"enrich"`
}

// ClassifierConfig tunes element classification.
type ClassifierConfig struct {
	// PrimaryThreshold is the confidence at which a result counts as a primary candidate.
	PrimaryThreshold int `yaml:"primary_threshold"`
	// Workers bounds batch parallelism; 0 uses GOMAXPROCS.
	Workers int `yaml:"workers"`
	// ParallelThreshold is the batch size below which classification stays sequential.
	ParallelThreshold int `yaml:"parallel_threshold"`
}

// RecorderConfig controls the JSONL decision trace.
type RecorderConfig struct {
	Enable bool   `yaml:"enable"`
	Dir    string `yaml:"dir"`
}

// DefaultConfig provides reasonable defaults for local development.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Name:     "waypoint-mcp",
			Version:  "0.1.0",
			LogFile:  "waypoint-mcp.log",
			LogLevel: "info",
		},
		Browser: BrowserConfig{
			AutoStart:                false,
			DefaultNavigationTimeout: "15s",
			ViewportWidth:            1920,
			ViewportHeight:           1080,
		},
		MCP: MCPConfig{
			SSEPort: 0,
		},
		Mangle: MangleConfig{
			Enable:          true,
			SchemaPath:      "schemas/waypoint.mg",
			FactBufferLimit: 4096,
		},
		Knowledge: KnowledgeConfig{
			Path: "knowledge",
		},
		Classifier: ClassifierConfig{
			PrimaryThreshold:  80,
			Workers:           0,
			ParallelThreshold: 256,
		},
		Recorder: RecorderConfig{
			Enable: false,
			Dir:    "data/trace",
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// ExplicitPath picks the --config flag value, falling back to $WAYPOINT_CONFIG.
func ExplicitPath(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(EnvConfigPath)
}

// DiscoverWorkspace walks up from startDir looking for a .waypoint/config.yaml file.
// Returns the workspace root directory (parent of .waypoint/) or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace implements multi-layer config merge:
//
//	DefaultConfig() <- .waypoint/config.yaml <- explicit --config <- CLI flags
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	if !opts.Disable {
		var err error
		if opts.ExplicitDir != "" {
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, cwdErr := os.Getwd()
			if cwdErr != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", cwdErr)
			}
			wsDir, err = DiscoverWorkspace(cwd)
			if err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			wsConfigPath := filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)
			raw, err := os.ReadFile(wsConfigPath)
			if err != nil {
				return cfg, "", fmt.Errorf("reading workspace config %s: %w", wsConfigPath, err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, "", fmt.Errorf("parsing workspace config %s: %w", wsConfigPath, err)
			}
			cfg = resolveWorkspacePaths(cfg, wsDir)
		}
	}

	if explicitConfig != "" {
		raw, err := os.ReadFile(explicitConfig)
		if err != nil {
			return cfg, wsDir, fmt.Errorf("reading explicit config %s: %w", explicitConfig, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, wsDir, fmt.Errorf("parsing explicit config %s: %w", explicitConfig, err)
		}
	}

	return cfg, wsDir, cfg.Validate()
}

// InitWorkspace creates a .waypoint/ directory with template files at root.
func InitWorkspace(root string) error {
	wsDir := filepath.Join(root, WorkspaceDirName)

	if _, err := os.Stat(wsDir); err == nil {
		return fmt.Errorf("workspace directory already exists: %s", wsDir)
	}

	dirs := []string{
		wsDir,
		filepath.Join(wsDir, "knowledge"),
		filepath.Join(wsDir, "data"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	templateConfig := `# Waypoint project-level configuration
# Values here override defaults but are overridden by --config and CLI flags.

# Paths are relative to the directory that holds .waypoint/.
knowledge:
  path: ".waypoint/knowledge"

# classifier:
#   primary_threshold: 80
#   workers: 4

# browser:
#   headless: false
#   viewport_width: 1280
#   viewport_height: 720

recorder:
  enable: false
  dir: ".waypoint/data/trace"
`
	configPath := filepath.Join(wsDir, WorkspaceConfigFile)
	if err := os.WriteFile(configPath, []byte(templateConfig), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	gitignoreContent := "# Runtime data (logs, traces) - do not version control\ndata/\n"
	gitignorePath := filepath.Join(wsDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte(gitignoreContent), 0644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	return nil
}

// resolveWorkspacePaths resolves relative paths in the config against the workspace directory.
func resolveWorkspacePaths(cfg Config, wsDir string) Config {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(wsDir, p)
	}

	cfg.Server.LogFile = resolve(cfg.Server.LogFile)
	cfg.Mangle.SchemaPath = resolve(cfg.Mangle.SchemaPath)
	cfg.Knowledge.Path = resolve(cfg.Knowledge.Path)
	cfg.Recorder.Dir = resolve(cfg.Recorder.Dir)
	return cfg
}

// Validate ensures required fields exist so the server can start deterministically.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name is required")
	}
	if c.Server.LogLevel != "" {
		if _, err := zapcore.ParseLevel(c.Server.LogLevel); err != nil {
			return fmt.Errorf("server.log_level: %w", err)
		}
	}
	if c.Browser.AutoStart {
		if c.Browser.DebuggerURL == "" && len(c.Browser.Launch) == 0 {
			return errors.New("browser.debugger_url or browser.launch must be provided")
		}
	}
	if c.Classifier.PrimaryThreshold < 0 || c.Classifier.PrimaryThreshold > 100 {
		return fmt.Errorf("classifier.primary_threshold %d outside [0,100]", c.Classifier.PrimaryThreshold)
	}
	if c.Classifier.Workers < 0 {
		return errors.New("classifier.workers must not be negative")
	}
	if c.Recorder.Enable && c.Recorder.Dir == "" {
		return errors.New("recorder.dir is required when recorder.enable is set")
	}
	return nil
}

// Level returns the parsed log level, defaulting to info.
func (s ServerConfig) Level() zapcore.Level {
	lvl, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	if b.DefaultNavigationTimeout == "" {
		return 15 * time.Second
	}
	d, err := time.ParseDuration(b.DefaultNavigationTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true // default to headless
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1920
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 1080
	}
	return b.ViewportHeight
}

// ShouldEnrich returns whether intents are enriched before rendering (default: true).
func (k KnowledgeConfig) ShouldEnrich() bool {
	if k.Enrich == nil {
		return true
	}
	return *k.Enrich
}

// GetPrimaryThreshold returns the primary-candidate threshold with a sane default.
func (c ClassifierConfig) GetPrimaryThreshold() int {
	if c.PrimaryThreshold <= 0 {
		return 80
	}
	return c.PrimaryThreshold
}
