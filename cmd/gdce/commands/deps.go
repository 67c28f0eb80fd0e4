package commands

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/l3aro/go-globaldce/pkg/catalog"
	"github.com/l3aro/go-globaldce/pkg/deps"
	"github.com/l3aro/go-globaldce/pkg/ir"
	"github.com/l3aro/go-globaldce/pkg/irfile"
)

// DepInfo is one dependency of the queried definition
type DepInfo struct {
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Linkage string `json:"linkage"`
	Depth   int    `json:"depth"`
}

// DepsOutput represents the output of the deps command
type DepsOutput struct {
	Module     string    `json:"module"`
	Definition string    `json:"definition"`
	Transitive bool      `json:"transitive"`
	Deps       []DepInfo `json:"deps"`
	Count      int       `json:"count"`
}

var depsCmd = &cobra.Command{
	Use:   "deps <file> <definition>",
	Short: "List the definitions a definition depends on",
	Long: `Lists the definitions referenced by a definition, directly or through
constant expressions. With --transitive, lists everything kept alive by it,
including other members of linkage groups it pulls in.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := irfile.ReadFile(args[0])
		if err != nil {
			return err
		}
		transitive, _ := cmd.Flags().GetBool("transitive")
		out, err := dependenciesOf(m, args[1], transitive)
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
		printDeps(cmd, out)
		return nil
	},
}

func init() {
	depsCmd.Flags().BoolP("transitive", "t", false, "Follow dependencies transitively")
	depsCmd.Flags().Bool("json", false, "Output as JSON")
}

func dependenciesOf(m *ir.Module, name string, transitive bool) (*DepsOutput, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	start, ok := m.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("definition %q not found in module %s", name, m.Name)
	}

	cat := catalog.New(m)
	index := deps.New(m)
	depth := map[ir.DefID]int{start.ID: 0}
	queue := []ir.DefID{start.ID}
	var order []ir.DefID

	visit := func(id ir.DefID, d int) {
		if _, seen := depth[id]; seen {
			return
		}
		depth[id] = d
		order = append(order, id)
		queue = append(queue, id)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		found, err := index.DependenciesOfDef(id)
		if err != nil {
			return nil, err
		}
		next := depth[id] + 1
		direct := found.ToSlice()
		sort.Slice(direct, func(i, j int) bool { return cat.Position(direct[i]) < cat.Position(direct[j]) })
		for _, dep := range direct {
			visit(dep, next)
		}
		if !transitive {
			break
		}
		if g, ok := cat.GroupOf(id); ok {
			for _, member := range cat.Members(g) {
				visit(member, next)
			}
		}
	}

	out := &DepsOutput{Module: m.Name, Definition: name, Transitive: transitive}
	for _, id := range order {
		d, _ := cat.Definition(id)
		out.Deps = append(out.Deps, DepInfo{
			Name:    d.Name,
			Kind:    d.Kind.String(),
			Linkage: d.Linkage.String(),
			Depth:   depth[id],
		})
	}
	out.Count = len(out.Deps)
	return out, nil
}

func printDeps(cmd *cobra.Command, out *DepsOutput) {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "=== Dependencies of %s (%s) ===\n\n", out.Definition, out.Module)
	if out.Count == 0 {
		fmt.Fprintln(w, "No dependencies.")
		return
	}
	for _, d := range out.Deps {
		indent := ""
		if out.Transitive {
			for i := 1; i < d.Depth; i++ {
				indent += "  "
			}
		}
		fmt.Fprintf(w, "  %s%s [%s %s]\n", indent, d.Name, d.Linkage, d.Kind)
	}
	fmt.Fprintf(w, "\n%d dependencies\n", out.Count)
}
