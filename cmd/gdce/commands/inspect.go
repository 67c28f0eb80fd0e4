package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-globaldce/pkg/catalog"
	"github.com/l3aro/go-globaldce/pkg/ir"
	"github.com/l3aro/go-globaldce/pkg/irfile"
	"github.com/l3aro/go-globaldce/pkg/liveness"
	"github.com/l3aro/go-globaldce/pkg/metadata"
)

// GroupInfo describes one linkage group
type GroupInfo struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// InspectOutput represents the output of the inspect command
type InspectOutput struct {
	Module       string         `json:"module"`
	Definitions  int            `json:"definitions"`
	Constants    int            `json:"constants"`
	ByKind       map[string]int `json:"by_kind"`
	ByLinkage    map[string]int `json:"by_linkage"`
	Declarations int            `json:"declarations"`
	Preserved    int            `json:"preserved"`
	Roots        int            `json:"roots"`
	Groups       []GroupInfo    `json:"groups,omitempty"`
	Metadata     int            `json:"metadata"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Summarise a module",
	Long: `Prints definition counts by kind and linkage, the number of roots,
linkage groups with their members and the number of metadata associations.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := irfile.ReadFile(args[0])
		if err != nil {
			return err
		}
		if err := m.Validate(); err != nil {
			return err
		}
		out := inspectModule(m)

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			data, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}
		printInspect(cmd, out)
		return nil
	},
}

func init() {
	inspectCmd.Flags().Bool("json", false, "Output as JSON")
}

func inspectModule(m *ir.Module) *InspectOutput {
	cat := catalog.New(m)
	out := &InspectOutput{
		Module:      m.Name,
		Definitions: cat.Len(),
		Constants:   len(m.Consts()),
		ByKind:      make(map[string]int),
		ByLinkage:   make(map[string]int),
		Metadata:    metadata.FromModule(m).Len(),
	}
	for _, id := range cat.Definitions() {
		d, _ := cat.Definition(id)
		out.ByKind[d.Kind.String()]++
		out.ByLinkage[d.Linkage.String()]++
		if d.IsDeclaration {
			out.Declarations++
		}
		if d.Preserved {
			out.Preserved++
		}
		if liveness.IsRoot(d) != liveness.NotRoot {
			out.Roots++
		}
	}
	for _, g := range cat.Groups() {
		group, _ := m.Group(g)
		info := GroupInfo{Name: group.Name}
		for _, id := range cat.Members(g) {
			info.Members = append(info.Members, cat.Name(id))
		}
		out.Groups = append(out.Groups, info)
	}
	return out
}

func printInspect(cmd *cobra.Command, out *InspectOutput) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "=== Module %s ===\n\n", out.Module)
	fmt.Fprintf(w, "Definitions:  %d (%d roots, %d declarations, %d preserved)\n",
		out.Definitions, out.Roots, out.Declarations, out.Preserved)
	fmt.Fprintf(w, "Constants:    %d\n", out.Constants)
	fmt.Fprintf(w, "Metadata:     %d associations\n", out.Metadata)

	fmt.Fprintln(w, "\nBy kind:")
	printCounts(cmd, out.ByKind)
	fmt.Fprintln(w, "\nBy linkage:")
	printCounts(cmd, out.ByLinkage)

	if len(out.Groups) > 0 {
		fmt.Fprintln(w, "\nLinkage groups:")
		for _, g := range out.Groups {
			fmt.Fprintf(w, "  %s: %v\n", g.Name, g.Members)
		}
	}
}

func printCounts(cmd *cobra.Command, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(cmd.OutOrStdout(), "  %-22s %d\n", k, counts[k])
	}
}
