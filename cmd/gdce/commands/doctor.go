package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-globaldce/internal/config"
	"github.com/l3aro/go-globaldce/internal/healthcheck"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [dir]",
	Short: "Check configuration and module files",
	Long: `Validates the configuration in use and, when a directory is given, decodes
and validates every module file below it. Modules that lack a configured
entry point are reported as warnings.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, configPath, err := loadConfigWithPath(cmd)
		if err != nil {
			return err
		}

		root := ""
		if len(args) == 1 {
			root = args[0]
		}
		result, err := healthcheck.Check(cfg, configPath, configPath, root)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(cmd, result)
		if result.HasErrors() {
			return fmt.Errorf("health check failed")
		}
		return nil
	},
}

// loadConfigWithPath loads the config and reports which file it came from.
// Running without any config file is fine; defaults apply.
func loadConfigWithPath(cmd *cobra.Command) (*config.Config, string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.LoadFromFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		return cfg, path, nil
	}

	effectivePath := ""
	if fileExists(config.ProjectConfigPath()) {
		effectivePath = config.ProjectConfigPath()
	} else if fileExists(config.GlobalConfigPath()) {
		effectivePath = config.GlobalConfigPath()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, "", fmt.Errorf("loading config: %w", err)
	}
	return cfg, effectivePath, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

func displayDoctorResult(cmd *cobra.Command, result *healthcheck.HealthCheckResult) {
	w := cmd.OutOrStdout()
	if result.EffectivePath == "" {
		fmt.Fprintln(w, "Using config: defaults (run 'gdce init' to create one)")
	} else {
		fmt.Fprintf(w, "Using config: %s (%s)\n", result.EffectivePath, result.EffectiveScope)
	}
	if result.ConfigError != "" {
		fmt.Fprintf(w, "  Status: %s error\n  Error: %s\n", formatStatusIcon("error"), result.ConfigError)
	} else {
		fmt.Fprintf(w, "  Status: %s ok\n", formatStatusIcon("ok"))
	}

	if len(result.Modules) == 0 {
		return
	}
	fmt.Fprintln(w, "\nModules:")
	for _, m := range result.Modules {
		fmt.Fprintf(w, "  %s %s", formatStatusIcon(m.Status), m.Path)
		if m.Status != "error" {
			fmt.Fprintf(w, " (%d definitions)", m.Definitions)
		}
		fmt.Fprintln(w)
		if m.Error != "" {
			fmt.Fprintf(w, "      %s\n", m.Error)
		}
		if len(m.MissingEntries) > 0 {
			fmt.Fprintf(w, "      missing entry points: %s\n", strings.Join(m.MissingEntries, ", "))
		}
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case "ok":
		return "✓"
	case "warning":
		return "!"
	case "error":
		return "✗"
	default:
		return "?"
	}
}
