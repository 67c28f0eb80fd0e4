package globaldce

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-globaldce/internal/log"
	"github.com/l3aro/go-globaldce/pkg/ir"
	"github.com/l3aro/go-globaldce/pkg/liveness"
)

func survivors(m *ir.Module) []string {
	var out []string
	for _, d := range m.Definitions() {
		out = append(out, d.Name)
	}
	sort.Strings(out)
	return out
}

func TestRun_DeadCallChainBehindCycle(t *testing.T) {
	m := ir.NewModule("scenario1")
	main := m.MustAdd("main", ir.Function, ir.InternalLinkage)
	a := m.MustAdd("helperA", ir.Function, ir.InternalLinkage)
	b := m.MustAdd("helperB", ir.Function, ir.InternalLinkage)
	c := m.MustAdd("deadC", ir.Function, ir.InternalLinkage)
	d := m.MustAdd("deadD", ir.Function, ir.InternalLinkage)
	main.AddOperand(ir.Ref(a.ID))
	a.AddOperand(ir.Ref(b.ID))
	b.AddOperand(ir.Ref(a.ID))
	c.AddOperand(ir.Ref(d.ID))

	res, err := Run(context.Background(), m, Options{EntryPoints: []string{"main"}, Verify: true})
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, []string{"deadC", "deadD"}, res.Removed)
	assert.Equal(t, []string{"helperA", "helperB", "main"}, survivors(m))
	assert.Equal(t, 5, res.Stats.Definitions)
	assert.Equal(t, 1, res.Stats.Roots)
	assert.Equal(t, 3, res.Stats.Reachable)
	assert.Equal(t, map[string]int{"function": 2}, res.Stats.RemovedByKind)
}

func TestRun_DeadMutualRecursion(t *testing.T) {
	m := ir.NewModule("cycle")
	m.MustAdd("main", ir.Function, ir.ExternalLinkage)
	even := m.MustAdd("isEven", ir.Function, ir.InternalLinkage)
	odd := m.MustAdd("isOdd", ir.Function, ir.InternalLinkage)
	even.AddOperand(ir.Ref(odd.ID))
	odd.AddOperand(ir.Ref(even.ID))

	res, err := Run(context.Background(), m, Options{})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"isEven", "isOdd"}, res.Removed)
	assert.Equal(t, []string{"main"}, survivors(m))
}

func TestRun_LinkageGroupKeepsUnreferencedMember(t *testing.T) {
	m := ir.NewModule("scenario2")
	main := m.MustAdd("main", ir.Function, ir.ExternalLinkage)
	g1 := m.MustAdd("global1", ir.GlobalVariable, ir.LinkOnceODRLinkage)
	g2 := m.MustAdd("global2", ir.GlobalVariable, ir.LinkOnceODRLinkage)
	grp := m.AddGroup("global1")
	g1.Group = grp
	g2.Group = grp
	main.AddOperand(ir.Ref(g1.ID))

	res, err := Run(context.Background(), m, Options{Verify: true})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, []string{"global1", "global2", "main"}, survivors(m))
}

func TestRun_MetadataNamingDeadDefinitionIsDropped(t *testing.T) {
	m := ir.NewModule("scenario3")
	x := m.MustAdd("funcX", ir.Function, ir.ExternalLinkage)
	y := m.MustAdd("funcY", ir.Function, ir.InternalLinkage)
	z := m.MustAdd("funcZ", ir.Function, ir.ExternalLinkage)
	x.Attach("associated", y.ID)
	x.Attach("associated", z.ID)

	res, err := Run(context.Background(), m, Options{Verify: true})
	require.NoError(t, err)

	assert.True(t, res.Changed)
	assert.Equal(t, []string{"funcY"}, res.Removed)
	assert.Equal(t, 1, res.Stats.DetachedMetadata)
	assert.Equal(t, []ir.Attachment{{Kind: "associated", Target: z.ID}}, x.Metadata)
	assert.NoError(t, m.Validate())
}

func TestRun_ConstantInitializerKeepsFunctionAlive(t *testing.T) {
	m := ir.NewModule("vtable")
	vt := m.MustAdd("vtable", ir.GlobalVariable, ir.ExternalLinkage)
	method := m.MustAdd("method", ir.Function, ir.InternalLinkage)
	orphan := m.MustAdd("orphan", ir.Function, ir.InternalLinkage)
	slot := m.AddConst("bitcast", ir.Ref(method.ID))
	vt.AddOperand(ir.CRef(m.AddConst("array", ir.CRef(slot.ID), ir.Leaf{Text: "null"}).ID))
	// orphan is only referenced from a constant nobody uses
	m.AddConst("bitcast", ir.Ref(orphan.ID))

	res, err := Run(context.Background(), m, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"orphan"}, res.Removed)
}

func TestRun_AllRootsIsNoOp(t *testing.T) {
	m := ir.NewModule("noop")
	a := m.MustAdd("a", ir.Function, ir.ExternalLinkage)
	b := m.MustAdd("b", ir.GlobalVariable, ir.ExternalLinkage)
	a.AddOperand(ir.Ref(b.ID))

	res, err := Run(context.Background(), m, Options{})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Empty(t, res.Removed)
	assert.Equal(t, 2, m.Len())
}

func TestRun_FaultLeavesModuleUntouched(t *testing.T) {
	m := ir.NewModule("fault")
	m.MustAdd("main", ir.Function, ir.ExternalLinkage)
	m.MustAdd("dead", ir.Function, ir.InternalLinkage)

	_, err := Run(context.Background(), m, Options{EntryPoints: []string{"missing"}})
	require.Error(t, err)
	assert.True(t, ir.IsConsistencyFault(err))
	assert.Equal(t, 2, m.Len())

	f, _ := m.Lookup("main")
	f.AddOperand(ir.Ref(ir.DefID(1000)))
	_, err = Run(context.Background(), m, Options{})
	assert.True(t, ir.IsConsistencyFault(err))
	assert.Equal(t, 2, m.Len())
}

func TestRun_FaultIsReturnedNotLogged(t *testing.T) {
	m := ir.NewModule("fault")
	m.MustAdd("main", ir.Function, ir.ExternalLinkage)

	var buf bytes.Buffer
	logger := log.New(log.LoggerConfig{Level: log.InfoLevel, Output: &buf})
	_, err := Run(context.Background(), m, Options{EntryPoints: []string{"missing"}, Logger: logger})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Empty(t, buf.String())
}

func TestRun_CancelledLeavesModuleUntouched(t *testing.T) {
	m := ir.NewModule("cancel")
	main := m.MustAdd("main", ir.Function, ir.ExternalLinkage)
	dead := m.MustAdd("dead", ir.Function, ir.InternalLinkage)
	main.AddOperand(ir.Leaf{Text: "i32 0"})
	_ = dead

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, m, Options{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, m.Len())
}

func TestPass_IsSingleUse(t *testing.T) {
	m := ir.NewModule("once")
	m.MustAdd("main", ir.Function, ir.ExternalLinkage)

	p := New(m, Options{})
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
	_, err = p.Analyze(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestAnalyze_DoesNotMutate(t *testing.T) {
	m := ir.NewModule("analyze")
	m.MustAdd("main", ir.Function, ir.ExternalLinkage)
	dead := m.MustAdd("dead", ir.Function, ir.InternalLinkage)

	a, err := New(m, Options{}).Analyze(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ir.DefID{dead.ID}, a.Dead())
	assert.Equal(t, 2, m.Len())
}

// randomModule builds a module with random references, shared and cyclic
// constants, linkage groups and metadata.
func randomModule(seed uint64, n int) (*ir.Module, []string) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	m := ir.NewModule(fmt.Sprintf("random-%d", seed))

	linkages := []ir.Linkage{
		ir.InternalLinkage, ir.InternalLinkage, ir.InternalLinkage, ir.PrivateLinkage,
		ir.LinkOnceODRLinkage, ir.ExternalLinkage, ir.AvailableExternallyLinkage,
	}
	kinds := []ir.Kind{ir.Function, ir.GlobalVariable, ir.Alias}

	defs := make([]*ir.Definition, n)
	for i := range defs {
		defs[i] = m.MustAdd(fmt.Sprintf("d%d", i), kinds[r.IntN(len(kinds))], linkages[r.IntN(len(linkages))])
		defs[i].IsDeclaration = r.IntN(10) == 0
		defs[i].Preserved = r.IntN(25) == 0
	}

	var consts []*ir.ConstExpr
	for i := 0; i < n/2; i++ {
		c := m.AddConst("struct")
		for k := r.IntN(3); k >= 0; k-- {
			switch {
			case len(consts) > 0 && r.IntN(2) == 0:
				c.Operands = append(c.Operands, ir.CRef(consts[r.IntN(len(consts))].ID))
			case r.IntN(4) == 0:
				c.Operands = append(c.Operands, ir.Leaf{Text: "i8 0"})
			default:
				c.Operands = append(c.Operands, ir.Ref(defs[r.IntN(n)].ID))
			}
		}
		consts = append(consts, c)
	}
	// Back edges make some constants cyclic.
	for i := 0; i < len(consts)/5; i++ {
		c := consts[r.IntN(len(consts))]
		c.Operands = append(c.Operands, ir.CRef(consts[r.IntN(len(consts))].ID))
	}

	for _, d := range defs {
		for k := r.IntN(3); k > 0; k-- {
			if len(consts) > 0 && r.IntN(3) == 0 {
				d.AddOperand(ir.CRef(consts[r.IntN(len(consts))].ID))
			} else {
				d.AddOperand(ir.Ref(defs[r.IntN(n)].ID))
			}
		}
		if r.IntN(8) == 0 {
			d.Attach("associated", defs[r.IntN(n)].ID)
		}
	}

	for g := 0; g < n/10; g++ {
		id := m.AddGroup(fmt.Sprintf("group%d", g))
		for k := 2 + r.IntN(3); k > 0; k-- {
			defs[r.IntN(n)].Group = id
		}
	}

	var entries []string
	if r.IntN(2) == 0 {
		entries = append(entries, defs[r.IntN(n)].Name)
	}
	return m, entries
}

func TestRun_MatchesRecursiveScanOnRandomModules(t *testing.T) {
	for seed := uint64(1); seed <= 40; seed++ {
		t.Run(fmt.Sprintf("seed%d", seed), func(t *testing.T) {
			m, entries := randomModule(seed, 30+int(seed)*3)

			want, err := ScanReachable(m, entries)
			require.NoError(t, err)
			wantNames := make([]string, 0, want.Len())
			for _, id := range want.IDs() {
				wantNames = append(wantNames, m.NameOf(id))
			}
			sort.Strings(wantNames)

			groupOf := make(map[string]ir.GroupID)
			for _, d := range m.Definitions() {
				if d.Group.IsValid() {
					groupOf[d.Name] = d.Group
				}
			}

			order := liveness.FIFO
			if seed%2 == 0 {
				order = liveness.LIFO
			}
			res, err := Run(context.Background(), m, Options{
				EntryPoints: entries,
				Order:       order,
				CacheSize:   int(seed % 4),
				Verify:      true,
			})
			require.NoError(t, err)

			// Soundness and completeness: survivors are exactly the scan.
			if diff := cmp.Diff(wantNames, survivors(m)); diff != "" {
				t.Fatalf("survivors mismatch (-scan +pass):\n%s", diff)
			}
			assert.Equal(t, res.Stats.Definitions-res.Stats.Removed, m.Len())

			// Linkage groups survive or die as a whole.
			alive := make(map[ir.GroupID]int)
			total := make(map[ir.GroupID]int)
			for name, g := range groupOf {
				total[g]++
				if _, ok := m.Lookup(name); ok {
					alive[g]++
				}
			}
			for g, n := range total {
				assert.True(t, alive[g] == 0 || alive[g] == n, "group %d partially removed", g)
			}

			// No operand or attachment names a removed definition.
			require.NoError(t, m.Validate())

			// A second run finds nothing left to do.
			again, err := Run(context.Background(), m, Options{EntryPoints: entries, Verify: true})
			require.NoError(t, err)
			assert.False(t, again.Changed)
		})
	}
}

func TestScanReachable_UnknownEntryPoint(t *testing.T) {
	m := ir.NewModule("scan")
	_, err := ScanReachable(m, []string{"ghost"})
	assert.True(t, ir.IsConsistencyFault(err))
}
