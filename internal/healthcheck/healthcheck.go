package healthcheck

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/l3aro/go-globaldce/internal/config"
	"github.com/l3aro/go-globaldce/internal/scanner"
	"github.com/l3aro/go-globaldce/pkg/ir"
	"github.com/l3aro/go-globaldce/pkg/irfile"
)

// ModuleStatus is the health of one module file.
type ModuleStatus struct {
	Path        string
	Definitions int
	Status      string // "ok", "warning" or "error"
	Error       string
	// MissingEntries lists configured entry points the module lacks.
	MissingEntries []string
}

// HealthCheckResult contains the full health check output for display.
type HealthCheckResult struct {
	SavedPath      string
	SavedScope     string // "global" or "project"
	EffectivePath  string
	EffectiveScope string // "global" or "project"
	ConfigError    string
	Modules        []ModuleStatus
}

// HasErrors reports whether the config or any module failed.
func (r *HealthCheckResult) HasErrors() bool {
	if r.ConfigError != "" {
		return true
	}
	for _, m := range r.Modules {
		if m.Status == "error" {
			return true
		}
	}
	return false
}

// Check validates cfg and every module file under root. An empty root
// skips the module scan.
// savedPath is where the user saved config (may be empty outside init).
// effectivePath is the config file actually in use (considering priority).
func Check(cfg *config.Config, savedPath, effectivePath, root string) (*HealthCheckResult, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	result := &HealthCheckResult{
		SavedPath:      savedPath,
		SavedScope:     scopeFromPath(savedPath),
		EffectivePath:  effectivePath,
		EffectiveScope: scopeFromPath(effectivePath),
	}
	if err := cfg.Validate(); err != nil {
		result.ConfigError = err.Error()
	}
	if root == "" {
		return result, nil
	}

	files, err := scanner.Scan(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	for _, f := range files {
		result.Modules = append(result.Modules, checkModule(f.FullPath, f.Path, cfg.EntryPoints))
	}
	return result, nil
}

// CheckFile validates a single module file.
func CheckFile(cfg *config.Config, path string) ModuleStatus {
	return checkModule(path, path, cfg.EntryPoints)
}

func checkModule(fullPath, display string, entries []string) ModuleStatus {
	status := ModuleStatus{Path: display}

	m, err := irfile.ReadFile(fullPath)
	if err != nil {
		status.Status = "error"
		status.Error = err.Error()
		return status
	}
	status.Definitions = m.Len()

	if err := m.Validate(); err != nil {
		status.Status = "error"
		status.Error = err.Error()
		if ir.IsConsistencyFault(err) {
			status.Error = "inconsistent module: " + status.Error
		}
		return status
	}

	for _, name := range entries {
		if _, ok := m.Lookup(name); !ok {
			status.MissingEntries = append(status.MissingEntries, name)
		}
	}
	status.Status = "ok"
	if len(status.MissingEntries) > 0 {
		status.Status = "warning"
	}
	return status
}

// scopeFromPath determines "global" or "project" scope from a config file path.
// Returns empty string if path is empty.
func scopeFromPath(path string) string {
	if path == "" {
		return ""
	}

	home, err := os.UserHomeDir()
	if err == nil {
		globalDir := filepath.Join(home, ".gdce")
		if strings.HasPrefix(path, globalDir) {
			return "global"
		}
	}

	return "project"
}
