package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-globaldce/pkg/globaldce"
	"github.com/l3aro/go-globaldce/pkg/ir"
	"github.com/l3aro/go-globaldce/pkg/irfile"
	"github.com/l3aro/go-globaldce/pkg/metadata"
)

// ChainLink is one step of a liveness chain
type ChainLink struct {
	Name string `json:"name"`
	Root string `json:"root,omitempty"`
}

// WhyOutput represents the output of the why command
type WhyOutput struct {
	Module     string      `json:"module"`
	Definition string      `json:"definition"`
	Live       bool        `json:"live"`
	Chain      []ChainLink `json:"chain,omitempty"`
	// ReferencedBy lists the definitions that refer to a dead definition;
	// all of them are dead too.
	ReferencedBy []string `json:"referenced_by,omitempty"`
	// NamedByMetadata lists definitions whose metadata names it. Such
	// references never keep a definition alive.
	NamedByMetadata []string `json:"named_by_metadata,omitempty"`
}

var whyCmd = &cobra.Command{
	Use:   "why <file> <definition>",
	Short: "Explain why a definition is kept, or confirm it is dead",
	Long: `Runs the mark phase without modifying the module and prints the chain of
references from a root to the definition. Dead definitions are reported with
the (equally dead) definitions that refer to them.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		m, err := irfile.ReadFile(args[0])
		if err != nil {
			return err
		}

		p := globaldce.New(m, globaldce.Options{
			EntryPoints: entryPoints(cmd, cfg),
			Order:       cfg.Order(),
			CacheSize:   cfg.DependencyCacheSize,
			Logger:      newLogger(cfg),
		})
		out, err := explain(cmd.Context(), p, m, args[1])
		if err != nil {
			return err
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		printWhy(cmd, out)
		return nil
	},
}

func init() {
	whyCmd.Flags().StringSliceP("entry", "e", nil, "Additional entry point (repeatable)")
	whyCmd.Flags().Bool("json", false, "Output as JSON")
}

func explain(ctx context.Context, p *globaldce.Pass, m *ir.Module, name string) (*WhyOutput, error) {
	target, ok := m.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("definition %q not found in module %s", name, m.Name)
	}
	a, err := p.Analyze(ctx)
	if err != nil {
		return nil, err
	}

	out := &WhyOutput{Module: m.Name, Definition: name}
	for _, annotator := range metadata.FromModule(m).ReferencesTo(target.ID) {
		out.NamedByMetadata = append(out.NamedByMetadata, m.NameOf(annotator))
	}

	if a.Reachable.Contains(target.ID) {
		out.Live = true
		for _, id := range a.Propagator.Path(target.ID) {
			out.Chain = append(out.Chain, ChainLink{
				Name: m.NameOf(id),
				Root: string(a.Propagator.RootKind(id)),
			})
		}
		return out, nil
	}

	for _, id := range a.Catalog.Definitions() {
		if id == target.ID {
			continue
		}
		found, err := a.Index.DependenciesOfDef(id)
		if err != nil {
			return nil, err
		}
		if found.Contains(target.ID) {
			out.ReferencedBy = append(out.ReferencedBy, m.NameOf(id))
		}
	}
	return out, nil
}

func printWhy(cmd *cobra.Command, out *WhyOutput) {
	w := cmd.OutOrStdout()
	if !out.Live {
		fmt.Fprintf(w, "%s is dead: no root reaches it\n", out.Definition)
		if len(out.ReferencedBy) > 0 {
			fmt.Fprintf(w, "  referenced only by dead definitions: %s\n", strings.Join(out.ReferencedBy, ", "))
		}
	} else {
		fmt.Fprintf(w, "%s is live:\n", out.Definition)
		for i, link := range out.Chain {
			prefix := "  -> "
			if i == 0 {
				prefix = "  "
			}
			if link.Root != "" {
				fmt.Fprintf(w, "%s%s (%s)\n", prefix, link.Name, link.Root)
			} else {
				fmt.Fprintf(w, "%s%s\n", prefix, link.Name)
			}
		}
	}
	if len(out.NamedByMetadata) > 0 {
		fmt.Fprintf(w, "  named by metadata of: %s\n", strings.Join(out.NamedByMetadata, ", "))
	}
}
