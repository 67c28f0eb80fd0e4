package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/l3aro/go-globaldce/internal/log"
	"github.com/l3aro/go-globaldce/pkg/irfile"
	"github.com/l3aro/go-globaldce/pkg/liveness"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"WorklistOrder", cfg.WorklistOrder, "fifo"},
		{"DependencyCacheSize", cfg.DependencyCacheSize, 0},
		{"Verify", cfg.Verify, false},
		{"OutputFormat", cfg.OutputFormat, "yaml"},
		{"Jobs", cfg.Jobs, 4},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogJSON", cfg.LogJSON, false},
		{"Verbose", cfg.Verbose, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("DefaultConfig().%s = %v, want %v", tt.name, tt.got, tt.expected)
			}
		})
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v, want nil", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "lifo order", mutate: func(c *Config) { c.WorklistOrder = "lifo" }},
		{name: "bad order", mutate: func(c *Config) { c.WorklistOrder = "random" }, errContains: "worklist_order"},
		{name: "bad format", mutate: func(c *Config) { c.OutputFormat = "xml" }, errContains: "output_format"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, errContains: "log_level"},
		{name: "negative cache", mutate: func(c *Config) { c.DependencyCacheSize = -1 }, errContains: "dependency_cache_size"},
		{name: "zero jobs", mutate: func(c *Config) { c.Jobs = 0 }, errContains: "jobs"},
		{name: "blank entry", mutate: func(c *Config) { c.EntryPoints = []string{"main", " "} }, errContains: "entry_points"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.errContains)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tests := []struct {
		name        string
		configYAML  string
		envVars     map[string]string
		checkCfg    func(*testing.T, *Config)
		errContains string
	}{
		{
			name: "load valid config from file",
			configYAML: `
entry_points: [main, _start]
worklist_order: lifo
dependency_cache_size: 256
verify: true
output_format: msgpack
jobs: 8
log_level: warn
`,
			checkCfg: func(t *testing.T, cfg *Config) {
				if !reflect.DeepEqual(cfg.EntryPoints, []string{"main", "_start"}) {
					t.Errorf("EntryPoints = %v, want [main _start]", cfg.EntryPoints)
				}
				if cfg.Order() != liveness.LIFO {
					t.Errorf("Order() = %v, want lifo", cfg.Order())
				}
				if cfg.DependencyCacheSize != 256 {
					t.Errorf("DependencyCacheSize = %v, want 256", cfg.DependencyCacheSize)
				}
				if !cfg.Verify {
					t.Error("Verify = false, want true")
				}
				if cfg.Format() != irfile.Msgpack {
					t.Errorf("Format() = %v, want msgpack", cfg.Format())
				}
				if cfg.Jobs != 8 {
					t.Errorf("Jobs = %v, want 8", cfg.Jobs)
				}
				if cfg.Level() != log.WarnLevel {
					t.Errorf("Level() = %v, want WARN", cfg.Level())
				}
			},
		},
		{
			name:       "env var overrides file values",
			configYAML: "worklist_order: lifo\njobs: 2\n",
			envVars: map[string]string{
				"GDCE_WORKLIST_ORDER": "fifo",
				"GDCE_ENTRY_POINTS":   "main, init ,",
				"GDCE_VERBOSE":        "yes",
			},
			checkCfg: func(t *testing.T, cfg *Config) {
				if cfg.Order() != liveness.FIFO {
					t.Errorf("Order() = %v, want fifo (from env)", cfg.Order())
				}
				if cfg.Jobs != 2 {
					t.Errorf("Jobs = %v, want 2 (from file)", cfg.Jobs)
				}
				if !reflect.DeepEqual(cfg.EntryPoints, []string{"main", "init"}) {
					t.Errorf("EntryPoints = %v, want [main init]", cfg.EntryPoints)
				}
				if cfg.Level() != log.DebugLevel {
					t.Errorf("Level() = %v, want DEBUG when verbose", cfg.Level())
				}
			},
		},
		{
			name: "invalid yaml",
			configYAML: `
jobs: 2
  invalid: indent
`,
			errContains: "failed to parse",
		},
		{
			name:        "invalid order in file",
			configYAML:  "worklist_order: sideways\n",
			errContains: "invalid worklist_order",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			configPath := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(configPath, []byte(tt.configYAML), 0644); err != nil {
				t.Fatalf("Failed to write config file: %v", err)
			}

			cfg, err := LoadFromFile(configPath)

			if tt.errContains != "" {
				if err == nil {
					t.Errorf("Expected error containing %q, got nil", tt.errContains)
				} else if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("Error = %q, should contain %q", err.Error(), tt.errContains)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if tt.checkCfg != nil {
				tt.checkCfg(t, cfg)
			}
		})
	}
}

func TestLoadLayersGlobalProjectAndDotEnv(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(project)

	global := DefaultConfig()
	global.Jobs = 3
	global.WorklistOrder = "lifo"
	if err := global.Save(GlobalConfigPath()); err != nil {
		t.Fatalf("Save(global) = %v", err)
	}

	if err := os.MkdirAll(".gdce", 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ProjectConfigPath(), []byte("worklist_order: fifo\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(".env", []byte("GDCE_DEPENDENCY_CACHE_SIZE=64\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("GDCE_DEPENDENCY_CACHE_SIZE") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if cfg.Jobs != 3 {
		t.Errorf("Jobs = %d, want 3 (global)", cfg.Jobs)
	}
	if cfg.WorklistOrder != "fifo" {
		t.Errorf("WorklistOrder = %q, want fifo (project)", cfg.WorklistOrder)
	}
	if cfg.DependencyCacheSize != 64 {
		t.Errorf("DependencyCacheSize = %d, want 64 (.env)", cfg.DependencyCacheSize)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.EntryPoints = []string{"main"}
	cfg.Verify = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() = %v", err)
	}
	loaded, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile() = %v", err)
	}
	if !reflect.DeepEqual(cfg, loaded) {
		t.Errorf("loaded = %+v, want %+v", loaded, cfg)
	}
}
