package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/l3aro/go-globaldce/internal/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize gdce configuration interactively",
	Long: `Guides you through setting up gdce configuration step by step and writes
it to the project (./.gdce/config.yaml) or global (~/.gdce/config.yaml) scope.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit(cmd)
	},
}

func runInit(cmd *cobra.Command) error {
	cfg := config.DefaultConfig()

	scope := "project"
	entries := "main"
	jobs := strconv.Itoa(cfg.Jobs)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should the configuration be saved?").
				Options(
					huh.NewOption("This project (./.gdce/config.yaml)", "project"),
					huh.NewOption("Global (~/.gdce/config.yaml)", "global"),
				).
				Value(&scope),
			huh.NewInput().
				Title("Entry points").
				Description("Comma separated definitions always kept alive").
				Placeholder("main").
				Value(&entries),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Worklist order").
				Description("Only changes discovery order, never the result").
				Options(
					huh.NewOption("FIFO (breadth first)", "fifo"),
					huh.NewOption("LIFO (depth first)", "lifo"),
				).
				Value(&cfg.WorklistOrder),
			huh.NewSelect[string]().
				Title("Output format").
				Description("Used when the output path has no module extension").
				Options(
					huh.NewOption("YAML", "yaml"),
					huh.NewOption("JSON", "json"),
					huh.NewOption("msgpack (.gdm)", "msgpack"),
				).
				Value(&cfg.OutputFormat),
			huh.NewInput().
				Title("Parallel jobs").
				Value(&jobs).
				Validate(func(s string) error {
					if n, err := strconv.Atoi(s); err != nil || n <= 0 {
						return fmt.Errorf("must be a positive number")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Verify every run against a recursive scan?").
				Affirmative("Yes").
				Negative("No").
				Value(&cfg.Verify),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	cfg.EntryPoints = nil
	for _, e := range strings.Split(entries, ",") {
		if e = strings.TrimSpace(e); e != "" {
			cfg.EntryPoints = append(cfg.EntryPoints, e)
		}
	}
	cfg.Jobs, _ = strconv.Atoi(jobs)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	configPath := config.ProjectConfigPath()
	if scope == "global" {
		configPath = config.GlobalConfigPath()
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "\n=== Configuration Preview ===")
	fmt.Fprintf(w, "Config path: %s\n", configPath)
	fmt.Fprintf(w, "Entry points: %s\n", strings.Join(cfg.EntryPoints, ", "))
	fmt.Fprintf(w, "Worklist order: %s\n", cfg.WorklistOrder)
	fmt.Fprintf(w, "Output format: %s\n", cfg.OutputFormat)
	fmt.Fprintf(w, "Jobs: %d\n", cfg.Jobs)
	fmt.Fprintf(w, "Verify: %t\n", cfg.Verify)
	fmt.Fprintln(w, "================================")

	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(w, "Configuration saved to: %s\n", configPath)
	return nil
}
