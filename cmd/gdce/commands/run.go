package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-globaldce/internal/config"
	"github.com/l3aro/go-globaldce/internal/log"
	"github.com/l3aro/go-globaldce/internal/scanner"
	"github.com/l3aro/go-globaldce/pkg/dirty"
	"github.com/l3aro/go-globaldce/pkg/globaldce"
	"github.com/l3aro/go-globaldce/pkg/irfile"
)

// FileReport is the outcome of pruning one module file
type FileReport struct {
	File    string            `json:"file"`
	Output  string            `json:"output,omitempty"`
	Skipped bool              `json:"skipped,omitempty"`
	Result  *globaldce.Result `json:"result,omitempty"`
	Error   string            `json:"error,omitempty"`
}

// RunOutput represents the output of the run command
type RunOutput struct {
	Files   []FileReport `json:"files"`
	Removed int          `json:"removed"`
	Failed  int          `json:"failed"`
}

var runCmd = &cobra.Command{
	Use:   "run <file|dir>...",
	Short: "Remove unreachable definitions from module files",
	Long: `Loads each module, marks everything reachable from its roots and removes
the rest. Directories are scanned for .yaml, .yml, .json and .gdm modules.

Without --write or --output the modules are only analysed and the report is
printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		applyRunFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runPrune(cmd, cfg, args)
	},
}

func init() {
	runCmd.Flags().StringP("output", "o", "", "Output file, or directory when several modules are given")
	runCmd.Flags().BoolP("write", "w", false, "Rewrite module files in place")
	runCmd.Flags().StringSliceP("entry", "e", nil, "Additional entry point (repeatable)")
	runCmd.Flags().Bool("verify", false, "Cross-check the result against a recursive scan")
	runCmd.Flags().String("order", "", "Worklist order: fifo or lifo")
	runCmd.Flags().Int("cache-size", -1, "Bound on the constant dependency cache (0 = unbounded)")
	runCmd.Flags().String("format", "", "Output format when the output path has no module extension")
	runCmd.Flags().Bool("incremental", false, "Skip modules unchanged since their last prune")
	runCmd.Flags().IntP("jobs", "j", 0, "Modules processed in parallel")
	runCmd.Flags().Bool("json", false, "Output report as JSON")
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	cfg.EntryPoints = entryPoints(cmd, cfg)
	if v, _ := cmd.Flags().GetBool("verify"); v {
		cfg.Verify = true
	}
	if v, _ := cmd.Flags().GetString("order"); v != "" {
		cfg.WorklistOrder = v
	}
	if v, _ := cmd.Flags().GetInt("cache-size"); v >= 0 {
		cfg.DependencyCacheSize = v
	}
	if v, _ := cmd.Flags().GetString("format"); v != "" {
		cfg.OutputFormat = v
	}
	if v, _ := cmd.Flags().GetInt("jobs"); v > 0 {
		cfg.Jobs = v
	}
}

type pruneJob struct {
	src string // path as discovered
	rel string // path relative to the argument it came from
	dst string // empty for a dry run
}

func runPrune(cmd *cobra.Command, cfg *config.Config, args []string) error {
	write, _ := cmd.Flags().GetBool("write")
	output, _ := cmd.Flags().GetString("output")
	incremental, _ := cmd.Flags().GetBool("incremental")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if write && output != "" {
		return fmt.Errorf("--write and --output are mutually exclusive")
	}

	jobs, err := collectJobs(args)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no module files found")
	}
	if err := assignOutputs(jobs, write, output, cfg.Format()); err != nil {
		return err
	}

	logger := newLogger(cfg)

	var tracker *dirty.Tracker
	fingerprint := dirty.Fingerprint(strings.Join(cfg.EntryPoints, ","), cfg.WorklistOrder, output)
	if incremental {
		if !write && output == "" {
			return fmt.Errorf("--incremental needs --write or --output")
		}
		tracker, err = dirty.Open()
		if err != nil {
			return fmt.Errorf("loading incremental state: %w", err)
		}
	}

	reports := make([]FileReport, len(jobs))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(cfg.Jobs)

	for i, job := range jobs {
		g.Go(func() error {
			reports[i] = pruneOne(ctx, cfg, logger, tracker, fingerprint, job)
			// Cancellation stops the remaining jobs; module faults do not.
			return ctx.Err()
		})
	}
	waitErr := g.Wait()

	if tracker != nil {
		if err := tracker.Save(); err != nil {
			logger.Warn("failed to save incremental state", "error", err)
		}
	}

	out := RunOutput{Files: reports}
	for _, r := range reports {
		if r.Error != "" {
			out.Failed++
		}
		if r.Result != nil {
			out.Removed += r.Result.Stats.Removed
		}
	}

	if jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		printRun(cmd, out)
	}

	if waitErr != nil {
		return waitErr
	}
	if out.Failed > 0 {
		return fmt.Errorf("%d of %d module(s) failed", out.Failed, len(reports))
	}
	return nil
}

func pruneOne(ctx context.Context, cfg *config.Config, logger log.Logger, tracker *dirty.Tracker, fingerprint string, job pruneJob) FileReport {
	report := FileReport{File: job.src, Output: job.dst}
	if err := ctx.Err(); err != nil {
		report.Error = err.Error()
		return report
	}

	if tracker != nil {
		same, err := tracker.Unchanged(job.src, fingerprint)
		if err == nil && same {
			if _, statErr := os.Stat(job.dst); statErr == nil {
				logger.Debug("module unchanged since last prune", "file", job.src)
				report.Skipped = true
				return report
			}
		}
	}

	m, err := irfile.ReadFile(job.src)
	if err != nil {
		report.Error = err.Error()
		return report
	}

	res, err := globaldce.Run(ctx, m, globaldce.Options{
		EntryPoints: cfg.EntryPoints,
		Order:       cfg.Order(),
		CacheSize:   cfg.DependencyCacheSize,
		Verify:      cfg.Verify,
		Logger:      logger,
	})
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Result = &res

	if job.dst == "" {
		return report
	}
	// An unchanged module rewritten in place would only be reformatted.
	if res.Changed || job.dst != job.src {
		if err := irfile.WriteFile(job.dst, m); err != nil {
			report.Error = err.Error()
			return report
		}
	}
	if tracker != nil {
		if err := tracker.Record(job.src, fingerprint, res.Stats.Removed); err != nil {
			logger.Warn("failed to record module state", "file", job.src, "error", err)
		}
	}
	return report
}

// collectJobs expands directory arguments into the module files below them.
func collectJobs(args []string) ([]pruneJob, error) {
	var jobs []pruneJob
	seen := make(map[string]bool)
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		if !info.IsDir() {
			if !seen[arg] {
				seen[arg] = true
				jobs = append(jobs, pruneJob{src: arg, rel: filepath.Base(arg)})
			}
			continue
		}
		files, err := scanner.Scan(arg)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", arg, err)
		}
		for _, f := range files {
			if !seen[f.FullPath] {
				seen[f.FullPath] = true
				jobs = append(jobs, pruneJob{src: f.FullPath, rel: filepath.FromSlash(f.Path)})
			}
		}
	}
	return jobs, nil
}

// assignOutputs decides where each pruned module is written. A single
// module may be written to a file path; otherwise output is a directory
// mirroring the inputs.
func assignOutputs(jobs []pruneJob, write bool, output string, format irfile.Format) error {
	switch {
	case write:
		for i := range jobs {
			jobs[i].dst = jobs[i].src
		}
	case output == "":
	case len(jobs) == 1 && irfile.IsModuleFile(output):
		jobs[0].dst = output
	default:
		if info, err := os.Stat(output); err == nil && !info.IsDir() {
			return fmt.Errorf("output %s must be a directory when pruning several modules", output)
		}
		for i := range jobs {
			rel := jobs[i].rel
			if !irfile.IsModuleFile(rel) {
				rel = strings.TrimSuffix(rel, filepath.Ext(rel)) + format.Ext()
			}
			jobs[i].dst = filepath.Join(output, rel)
		}
	}
	return nil
}

func printRun(cmd *cobra.Command, out RunOutput) {
	w := cmd.OutOrStdout()
	for _, r := range out.Files {
		switch {
		case r.Error != "":
			fmt.Fprintf(w, "%s: error: %s\n", r.File, r.Error)
		case r.Skipped:
			fmt.Fprintf(w, "%s: unchanged, skipped\n", r.File)
		case r.Result == nil:
		case !r.Result.Changed:
			fmt.Fprintf(w, "%s: nothing to remove (%d definitions)\n", r.File, r.Result.Stats.Definitions)
		default:
			s := r.Result.Stats
			fmt.Fprintf(w, "%s: removed %d of %d definitions", r.File, s.Removed, s.Definitions)
			if s.DetachedMetadata > 0 {
				fmt.Fprintf(w, ", pruned %d metadata entries", s.DetachedMetadata)
			}
			fmt.Fprintln(w)
			for _, name := range r.Result.Removed {
				fmt.Fprintf(w, "  - %s\n", name)
			}
		}
		if r.Output != "" && r.Error == "" && r.Result != nil && (r.Result.Changed || r.Output != r.File) {
			fmt.Fprintf(w, "  written to %s\n", r.Output)
		}
	}
	if len(out.Files) > 1 {
		fmt.Fprintf(w, "\n%d module(s), %d definition(s) removed, %d failed\n", len(out.Files), out.Removed, out.Failed)
	}
}
