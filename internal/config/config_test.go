package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Name != "waypoint-mcp" {
		t.Errorf("expected server name 'waypoint-mcp', got %q", cfg.Server.Name)
	}
	if cfg.Server.LogFile != "waypoint-mcp.log" {
		t.Errorf("expected log file 'waypoint-mcp.log', got %q", cfg.Server.LogFile)
	}
	if cfg.Server.LogLevel != "info" {
		t.Errorf("expected log level 'info', got %q", cfg.Server.LogLevel)
	}

	if cfg.Browser.AutoStart {
		t.Error("expected AutoStart to be false")
	}
	if cfg.Browser.DefaultNavigationTimeout != "15s" {
		t.Errorf("expected navigation timeout '15s', got %q", cfg.Browser.DefaultNavigationTimeout)
	}

	if !cfg.Mangle.Enable {
		t.Error("expected Mangle.Enable to be true")
	}
	if cfg.Mangle.SchemaPath != "schemas/waypoint.mg" {
		t.Errorf("expected schema path 'schemas/waypoint.mg', got %q", cfg.Mangle.SchemaPath)
	}

	if cfg.Knowledge.Path != "knowledge" {
		t.Errorf("expected knowledge path 'knowledge', got %q", cfg.Knowledge.Path)
	}
	if !cfg.Knowledge.ShouldEnrich() {
		t.Error("expected enrichment on by default")
	}
	if cfg.Classifier.PrimaryThreshold != 80 {
		t.Errorf("expected primary threshold 80, got %d", cfg.Classifier.PrimaryThreshold)
	}
	if cfg.Recorder.Enable {
		t.Error("expected Recorder.Enable to be false")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadEmptyPath(t *testing.T) {
	_, err := Load("")
	if err == nil {
		t.Fatal("expected error for empty path")
	}
	if err.Error() != "config path is required" {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("expected error for non-existent file")
	}
}

func TestLoadValidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  name: "test-server"
  version: "1.0.0"
  log_file: ""
  log_level: debug

browser:
  debugger_url: "ws://localhost:9222"
  auto_start: true
  headless: false
  default_navigation_timeout: "20s"
  viewport_width: 1280

knowledge:
  path: "/srv/knowledge"
  enrich: false

classifier:
  primary_threshold: 85
  workers: 4
  parallel_threshold: 64

recorder:
  enable: true
  dir: "/tmp/trace"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Server.Name != "test-server" {
		t.Errorf("expected server name 'test-server', got %q", cfg.Server.Name)
	}
	if cfg.Server.LogFile != "" {
		t.Errorf("expected empty log file, got %q", cfg.Server.LogFile)
	}
	if cfg.Server.Level().String() != "debug" {
		t.Errorf("expected debug level, got %s", cfg.Server.Level())
	}
	if cfg.Browser.IsHeadless() {
		t.Error("expected headless false")
	}
	if cfg.Browser.NavigationTimeout() != 20*time.Second {
		t.Errorf("expected 20s navigation timeout, got %v", cfg.Browser.NavigationTimeout())
	}
	if cfg.Browser.GetViewportHeight() != 1080 {
		t.Errorf("expected default viewport height, got %d", cfg.Browser.GetViewportHeight())
	}
	if cfg.Knowledge.Path != "/srv/knowledge" || cfg.Knowledge.ShouldEnrich() {
		t.Errorf("unexpected knowledge config: %+v", cfg.Knowledge)
	}
	if cfg.Classifier.GetPrimaryThreshold() != 85 || cfg.Classifier.Workers != 4 || cfg.Classifier.ParallelThreshold != 64 {
		t.Errorf("unexpected classifier config: %+v", cfg.Classifier)
	}
	if !cfg.Recorder.Enable || cfg.Recorder.Dir != "/tmp/trace" {
		t.Errorf("unexpected recorder config: %+v", cfg.Recorder)
	}
	// Untouched sections keep defaults.
	if cfg.Mangle.FactBufferLimit != 4096 {
		t.Errorf("expected default fact buffer limit, got %d", cfg.Mangle.FactBufferLimit)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("invalid: yaml: content:"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestValidate(t *testing.T) {
	valid := func(mut func(*Config)) Config {
		cfg := DefaultConfig()
		mut(&cfg)
		return cfg
	}

	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{
			name:   "empty server name",
			cfg:    valid(func(c *Config) { c.Server.Name = "" }),
			errMsg: "server.name is required",
		},
		{
			name:   "bad log level",
			cfg:    valid(func(c *Config) { c.Server.LogLevel = "loud" }),
			errMsg: "server.log_level",
		},
		{
			name:   "auto_start without debugger_url or launch",
			cfg:    valid(func(c *Config) { c.Browser.AutoStart = true }),
			errMsg: "browser.debugger_url or browser.launch must be provided",
		},
		{
			name: "auto_start with launch",
			cfg: valid(func(c *Config) {
				c.Browser.AutoStart = true
				c.Browser.Launch = []string{"chrome"}
			}),
		},
		{
			name:   "threshold above 100",
			cfg:    valid(func(c *Config) { c.Classifier.PrimaryThreshold = 101 }),
			errMsg: "classifier.primary_threshold",
		},
		{
			name:   "negative workers",
			cfg:    valid(func(c *Config) { c.Classifier.Workers = -1 }),
			errMsg: "classifier.workers",
		},
		{
			name:   "recorder without dir",
			cfg:    valid(func(c *Config) { c.Recorder = RecorderConfig{Enable: true} }),
			errMsg: "recorder.dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.errMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tt.errMsg)
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestNavigationTimeoutFallback(t *testing.T) {
	for _, v := range []string{"", "soon"} {
		b := BrowserConfig{DefaultNavigationTimeout: v}
		if b.NavigationTimeout() != 15*time.Second {
			t.Errorf("timeout %q: expected 15s fallback, got %v", v, b.NavigationTimeout())
		}
	}
}

func TestExplicitPath(t *testing.T) {
	t.Setenv(EnvConfigPath, "/etc/waypoint.yaml")
	if got := ExplicitPath("flag.yaml"); got != "flag.yaml" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := ExplicitPath(""); got != "/etc/waypoint.yaml" {
		t.Errorf("expected env path, got %q", got)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	cfg, err := Load("../../config.example.yaml")
	if err != nil {
		t.Fatalf("example config: %v", err)
	}
	if cfg.Knowledge.Path != "knowledge" || !cfg.Knowledge.ShouldEnrich() {
		t.Errorf("knowledge = %+v", cfg.Knowledge)
	}
	if len(cfg.Browser.Launch) != 1 || cfg.Browser.Launch[0] != "auto" {
		t.Errorf("launch = %v", cfg.Browser.Launch)
	}
	if cfg.Browser.GetViewportWidth() != 1280 {
		t.Errorf("viewport width = %d", cfg.Browser.GetViewportWidth())
	}
	if cfg.Classifier.ParallelThreshold != 64 {
		t.Errorf("parallel threshold = %d", cfg.Classifier.ParallelThreshold)
	}
}
