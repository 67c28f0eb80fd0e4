package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/l3aro/go-globaldce/internal/log"
	"github.com/l3aro/go-globaldce/pkg/irfile"
	"github.com/l3aro/go-globaldce/pkg/liveness"
)

// Config holds all configuration for gdce
type Config struct {
	// EntryPoints are definitions kept alive regardless of linkage, e.g. main.
	EntryPoints []string `yaml:"entry_points" env:"GDCE_ENTRY_POINTS"`

	// WorklistOrder is "fifo" or "lifo"
	WorklistOrder string `yaml:"worklist_order" env:"GDCE_WORKLIST_ORDER"`

	// DependencyCacheSize bounds the constant dependency cache; 0 is unbounded
	DependencyCacheSize int `yaml:"dependency_cache_size" env:"GDCE_DEPENDENCY_CACHE_SIZE"`

	// Verify cross-checks every run against a recursive reachability scan
	Verify bool `yaml:"verify" env:"GDCE_VERIFY"`

	// OutputFormat is used when the output path has no recognised extension
	OutputFormat string `yaml:"output_format" env:"GDCE_OUTPUT_FORMAT"`

	// Jobs is the number of modules processed in parallel
	Jobs int `yaml:"jobs" env:"GDCE_JOBS"`

	// Logging
	LogLevel string `yaml:"log_level" env:"GDCE_LOG_LEVEL"`
	LogJSON  bool   `yaml:"log_json" env:"GDCE_LOG_JSON"`
	Verbose  bool   `yaml:"verbose" env:"GDCE_VERBOSE"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		EntryPoints:         nil,
		WorklistOrder:       "fifo",
		DependencyCacheSize: 0,
		Verify:              false,
		OutputFormat:        "yaml",
		Jobs:                4,
		LogLevel:            "info",
		LogJSON:             false,
		Verbose:             false,
	}
}

// GlobalConfigPath returns the global config file path (~/.gdce/config.yaml)
func GlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".gdce/config.yaml"
	}
	return filepath.Join(home, ".gdce", "config.yaml")
}

// ProjectConfigPath returns the project-level config file path (./.gdce/config.yaml)
func ProjectConfigPath() string {
	return ".gdce/config.yaml"
}

// Load reads configuration with the following priority (highest to lowest):
// 1. Environment variables, including a .env file in the working directory
// 2. Project-level config (./.gdce/config.yaml)
// 3. Global config (~/.gdce/config.yaml)
// 4. Defaults
func Load() (*Config, error) {
	cfg := DefaultConfig()

	for _, path := range []string{GlobalConfigPath(), ProjectConfigPath()} {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	// A missing .env is fine; variables already set in the environment win.
	_ = godotenv.Load()
	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromFile reads configuration from a specific YAML file path
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	if data, err := os.ReadFile(path); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to the specified YAML file path.
// It creates parent directories if they don't exist.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", path, err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GDCE_ENTRY_POINTS"); v != "" {
		cfg.EntryPoints = splitList(v)
	}
	if v := os.Getenv("GDCE_WORKLIST_ORDER"); v != "" {
		cfg.WorklistOrder = v
	}
	if v := os.Getenv("GDCE_DEPENDENCY_CACHE_SIZE"); v != "" {
		if i := parseInt(v); i >= 0 {
			cfg.DependencyCacheSize = i
		}
	}
	if v := os.Getenv("GDCE_VERIFY"); v != "" {
		cfg.Verify = parseBool(v)
	}
	if v := os.Getenv("GDCE_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = v
	}
	if v := os.Getenv("GDCE_JOBS"); v != "" {
		if i := parseInt(v); i > 0 {
			cfg.Jobs = i
		}
	}
	if v := os.Getenv("GDCE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GDCE_LOG_JSON"); v != "" {
		cfg.LogJSON = parseBool(v)
	}
	if v := os.Getenv("GDCE_VERBOSE"); v != "" {
		cfg.Verbose = parseBool(v)
	}
}

// Validate checks that the configuration has valid fields
func (c *Config) Validate() error {
	if _, err := liveness.ParseOrder(c.WorklistOrder); err != nil {
		return fmt.Errorf("invalid worklist_order: %w", err)
	}
	if _, err := irfile.ParseFormat(c.OutputFormat); err != nil {
		return fmt.Errorf("invalid output_format: %w", err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}
	if c.DependencyCacheSize < 0 {
		return fmt.Errorf("dependency_cache_size must be non-negative")
	}
	if c.Jobs <= 0 {
		return fmt.Errorf("jobs must be positive")
	}
	for _, name := range c.EntryPoints {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("entry_points must not contain empty names")
		}
	}

	return nil
}

// Order returns the parsed worklist order. Call Validate first.
func (c *Config) Order() liveness.Order {
	o, _ := liveness.ParseOrder(c.WorklistOrder)
	return o
}

// Format returns the parsed output format. Call Validate first.
func (c *Config) Format() irfile.Format {
	f, _ := irfile.ParseFormat(c.OutputFormat)
	return f
}

// Level returns the effective log level; Verbose forces debug.
func (c *Config) Level() log.Level {
	if c.Verbose {
		return log.DebugLevel
	}
	l, _ := log.ParseLevel(c.LogLevel)
	return l
}

// splitList splits a comma separated list, dropping blanks
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes"
}

// parseInt attempts to parse a string as int, returning -1 on failure
func parseInt(s string) int {
	var i int
	if _, err := fmt.Sscanf(s, "%d", &i); err != nil {
		return -1
	}
	return i
}
