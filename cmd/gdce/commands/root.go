package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-globaldce/internal/config"
	"github.com/l3aro/go-globaldce/internal/log"
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "gdce",
	Short: "gdce - global dead definition elimination for IR modules",
	Long: `gdce removes functions, global variables and aliases that nothing reachable
from a module's roots refers to. Linkage groups are kept or dropped as a whole
and metadata naming removed definitions is pruned.

Commands:
  run         Prune one or more module files
  deps        List what a definition depends on
  why         Explain why a definition is kept, or confirm it is dead
  inspect     Summarise a module
  doctor      Check configuration and module files
  init        Create a configuration file interactively

Use "gdce [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().String("config", "", "Config file path (default: project then global config)")
	RootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(depsCmd)
	RootCmd.AddCommand(whyCmd)
	RootCmd.AddCommand(inspectCmd)
	RootCmd.AddCommand(doctorCmd)
	RootCmd.AddCommand(initCmd)
}

// loadConfig loads the configuration named by --config, or the layered
// default one, and applies --verbose.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) log.Logger {
	logger := log.New(log.LoggerConfig{
		Level:      cfg.Level(),
		JSONOutput: cfg.LogJSON,
		Output:     RootCmd.ErrOrStderr(),
	})
	return logger
}

// entryPoints merges --entry values with the configured ones.
func entryPoints(cmd *cobra.Command, cfg *config.Config) []string {
	entries := append([]string(nil), cfg.EntryPoints...)
	if flagged, _ := cmd.Flags().GetStringSlice("entry"); len(flagged) > 0 {
		entries = append(entries, flagged...)
	}
	return entries
}
