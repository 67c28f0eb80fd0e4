// Package liveness computes the set of definitions reachable from a
// module's roots. It runs a worklist to a fixed point, following
// dependency edges and linkage-group membership.
package liveness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/l3aro/go-globaldce/pkg/catalog"
	"github.com/l3aro/go-globaldce/pkg/deps"
	"github.com/l3aro/go-globaldce/pkg/ir"
)

// Order selects how the worklist is drained. It changes the discovery order,
// never the fixed point.
type Order int

const (
	FIFO Order = iota
	LIFO
)

func (o Order) String() string {
	if o == LIFO {
		return "lifo"
	}
	return "fifo"
}

// ParseOrder parses "fifo" or "lifo". An empty string means FIFO.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fifo", "bfs":
		return FIFO, nil
	case "lifo", "dfs":
		return LIFO, nil
	}
	return FIFO, fmt.Errorf("unknown worklist order %q (must be 'fifo' or 'lifo')", s)
}

// RootKind says why a definition was seeded as a root.
type RootKind string

const (
	NotRoot       RootKind = ""
	RootExternal  RootKind = "externally visible"
	RootPreserved RootKind = "compiler preserved"
	RootEntry     RootKind = "entry point"
)

// IsRoot reports whether d is alive a priori, ignoring entry points.
func IsRoot(d *ir.Definition) RootKind {
	if d.Preserved {
		return RootPreserved
	}
	if !d.IsDeclaration && !d.Linkage.IsDiscardableIfUnused() {
		return RootExternal
	}
	return NotRoot
}

// Propagator is the mark phase of the pass. Create one per run.
type Propagator struct {
	cat     *catalog.Catalog
	index   *deps.Index
	order   Order
	entries []string

	live       mapset.Set[ir.DefID]
	reason     map[ir.DefID]ir.DefID
	roots      map[ir.DefID]RootKind
	groupsDone map[ir.GroupID]bool

	worklist []ir.DefID
	head     int

	steps int
	done  bool
}

// Option configures a Propagator.
type Option func(*Propagator)

// WithOrder sets the worklist order.
func WithOrder(o Order) Option {
	return func(p *Propagator) {
		p.order = o
	}
}

// WithEntryPoints names additional roots.
func WithEntryPoints(names ...string) Option {
	return func(p *Propagator) {
		p.entries = append(p.entries, names...)
	}
}

// New creates a propagator over the catalogued definitions.
func New(cat *catalog.Catalog, index *deps.Index, opts ...Option) *Propagator {
	p := &Propagator{
		cat:        cat,
		index:      index,
		live:       mapset.NewThreadUnsafeSet[ir.DefID](),
		reason:     make(map[ir.DefID]ir.DefID),
		roots:      make(map[ir.DefID]RootKind),
		groupsDone: make(map[ir.GroupID]bool),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run seeds the roots and propagates until the worklist is empty. If ctx is
// cancelled first, Run returns ctx.Err() and the result must be discarded.
func (p *Propagator) Run(ctx context.Context) error {
	if p.done {
		return nil
	}
	if err := p.seed(); err != nil {
		return err
	}
	for {
		id, ok := p.pop()
		if !ok {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		p.steps++
		found, err := p.index.DependenciesOfDef(id)
		if err != nil {
			return err
		}
		next := found.ToSlice()
		slices.SortFunc(next, func(a, b ir.DefID) int {
			return p.cat.Position(a) - p.cat.Position(b)
		})
		for _, dep := range next {
			if err := p.mark(dep, id); err != nil {
				return err
			}
		}
	}
	p.done = true
	return nil
}

func (p *Propagator) seed() error {
	for _, id := range p.cat.Definitions() {
		d, _ := p.cat.Definition(id)
		if kind := IsRoot(d); kind != NotRoot {
			p.roots[id] = kind
			if err := p.mark(id, ir.NoDef); err != nil {
				return err
			}
		}
	}
	m := p.cat.Module()
	for _, name := range p.entries {
		d, ok := m.Lookup(name)
		if !ok || !p.cat.Contains(d.ID) {
			return ir.Faultf(name, "entry point is not defined in module %s", m.Name)
		}
		if _, isRoot := p.roots[d.ID]; !isRoot {
			p.roots[d.ID] = RootEntry
		}
		if err := p.mark(d.ID, ir.NoDef); err != nil {
			return err
		}
	}
	return nil
}

// mark adds id to the reachable set, remembering from where it was reached.
// The first member of a linkage group to become live pulls in the rest.
func (p *Propagator) mark(id, from ir.DefID) error {
	if !p.cat.Contains(id) {
		return ir.Faultf(p.cat.Name(id), "referenced by %s but not in the catalog", p.cat.Name(from))
	}
	if !p.live.Add(id) {
		return nil
	}
	p.reason[id] = from
	p.worklist = append(p.worklist, id)

	g, ok := p.cat.GroupOf(id)
	if !ok || p.groupsDone[g] {
		return nil
	}
	p.groupsDone[g] = true
	for _, member := range p.cat.Members(g) {
		if err := p.mark(member, id); err != nil {
			return err
		}
	}
	return nil
}

func (p *Propagator) pop() (ir.DefID, bool) {
	if p.head >= len(p.worklist) {
		p.worklist = p.worklist[:0]
		p.head = 0
		return ir.NoDef, false
	}
	var id ir.DefID
	if p.order == LIFO {
		id = p.worklist[len(p.worklist)-1]
		p.worklist = p.worklist[:len(p.worklist)-1]
	} else {
		id = p.worklist[p.head]
		p.head++
	}
	return id, true
}

// Done reports whether the fixed point has been reached.
func (p *Propagator) Done() bool {
	return p.done
}

// Steps returns the number of worklist entries processed.
func (p *Propagator) Steps() int {
	return p.steps
}

// Reachable returns the final reachable set. It panics if called before Run
// has reached the fixed point.
func (p *Propagator) Reachable() Set {
	if !p.done {
		panic("liveness: Reachable called before the fixed point")
	}
	return Set{set: p.live}
}

// Roots returns the seeded roots in catalog order.
func (p *Propagator) Roots() []ir.DefID {
	var out []ir.DefID
	for _, id := range p.cat.Definitions() {
		if _, ok := p.roots[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// RootKind returns why id was seeded, or NotRoot.
func (p *Propagator) RootKind(id ir.DefID) RootKind {
	return p.roots[id]
}

// Reason returns the definition through which id was first reached. Roots
// have no reason.
func (p *Propagator) Reason(id ir.DefID) (ir.DefID, bool) {
	from, ok := p.reason[id]
	if !ok || !from.IsValid() {
		return ir.NoDef, false
	}
	return from, true
}

// Path returns a chain root, ..., id along first-discovery edges, or nil if
// id is not reachable.
func (p *Propagator) Path(id ir.DefID) []ir.DefID {
	if !p.live.Contains(id) {
		return nil
	}
	path := []ir.DefID{id}
	for {
		from, ok := p.Reason(path[len(path)-1])
		if !ok {
			break
		}
		path = append(path, from)
	}
	slices.Reverse(path)
	return path
}

// Set is a read-only view of a reachable set.
type Set struct {
	set mapset.Set[ir.DefID]
}

// NewSet builds a read-only set, mainly for tests and cross-checks.
func NewSet(ids ...ir.DefID) Set {
	return Set{set: mapset.NewThreadUnsafeSet(ids...)}
}

// Contains reports whether id is reachable.
func (s Set) Contains(id ir.DefID) bool {
	return s.set != nil && s.set.Contains(id)
}

// Len returns the number of reachable definitions.
func (s Set) Len() int {
	if s.set == nil {
		return 0
	}
	return s.set.Cardinality()
}

// IDs returns the members sorted by ID.
func (s Set) IDs() []ir.DefID {
	if s.set == nil {
		return nil
	}
	out := s.set.ToSlice()
	slices.Sort(out)
	return out
}

// Equal reports whether both sets have the same members.
func (s Set) Equal(o Set) bool {
	if s.Len() != o.Len() {
		return false
	}
	if s.Len() == 0 {
		return true
	}
	return s.set.Equal(o.set)
}
