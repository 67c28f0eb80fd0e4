package healthcheck

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/l3aro/go-globaldce/internal/config"
)

func TestCheckWithNilConfig(t *testing.T) {
	_, err := Check(nil, "", "", "")
	if err == nil {
		t.Error("Expected error for nil config, got nil")
	}
}

func TestCheckReportsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.WorklistOrder = "sideways"

	result, err := Check(cfg, "", "", "")
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if !strings.Contains(result.ConfigError, "worklist_order") {
		t.Errorf("ConfigError = %q, want worklist_order complaint", result.ConfigError)
	}
	if !result.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
}

func TestCheckModules(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{
		"good.yaml": `name: good
definitions:
  - {name: main, kind: function}
`,
		"noentry.yaml": `name: noentry
definitions:
  - {name: lib, kind: function}
`,
		"broken.yaml": `name: broken
definitions:
  - {name: a, kind: function, operands: [{def: missing}]}
`,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(root, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	cfg := config.DefaultConfig()
	cfg.EntryPoints = []string{"main"}

	result, err := Check(cfg, "", "", root)
	if err != nil {
		t.Fatalf("Check() failed: %v", err)
	}
	if len(result.Modules) != 3 {
		t.Fatalf("len(Modules) = %d, want 3", len(result.Modules))
	}

	want := map[string]string{
		"broken.yaml":  "error",
		"good.yaml":    "ok",
		"noentry.yaml": "warning",
	}
	for _, m := range result.Modules {
		if m.Status != want[m.Path] {
			t.Errorf("%s: Status = %q, want %q (%s)", m.Path, m.Status, want[m.Path], m.Error)
		}
	}
	if !result.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
}

func TestScopeFromPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	tests := []struct {
		path string
		want string
	}{
		{"", ""},
		{filepath.Join(home, ".gdce", "config.yaml"), "global"},
		{".gdce/config.yaml", "project"},
	}
	for _, tt := range tests {
		if got := scopeFromPath(tt.path); got != tt.want {
			t.Errorf("scopeFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
