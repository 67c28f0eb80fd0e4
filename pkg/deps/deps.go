// Package deps answers "which definitions must exist for this value to be
// well-formed": it follows operand edges through constant expressions and
// memoizes the result per expression.
package deps

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/l3aro/go-globaldce/pkg/cache"
	"github.com/l3aro/go-globaldce/pkg/ir"
)

// Set is a set of definition IDs.
type Set = mapset.Set[ir.DefID]

// NewSet returns an empty, non thread-safe set.
func NewSet(ids ...ir.DefID) Set {
	return mapset.NewThreadUnsafeSet(ids...)
}

// Stats describes the work the index performed.
type Stats struct {
	Definitions int         `json:"definitions"`
	ConstWalks  int         `json:"const_walks"`
	Cache       cache.Stats `json:"cache"`
}

// Index computes and caches direct definition dependencies.
//
// An Index belongs to one pass run over one module. Constant IDs are only
// meaningful within that module, so an Index must never be reused for
// another module.
type Index struct {
	module    *ir.Module
	cacheSize int

	// consts maps a constant expression to every definition reachable
	// through its sub-structure.
	consts cache.Memo[ir.ConstID, Set]

	// defs maps a definition to the definitions its operands reference.
	defs map[ir.DefID]Set

	walks int
}

// Option configures an Index.
type Option func(*Index)

// WithCacheSize bounds the constant-expression cache. Zero means unbounded.
func WithCacheSize(n int) Option {
	return func(x *Index) {
		x.cacheSize = n
	}
}

// New creates an index over m. Nothing is computed until queried.
func New(m *ir.Module, opts ...Option) *Index {
	x := &Index{
		module: m,
		defs:   make(map[ir.DefID]Set),
	}
	for _, opt := range opts {
		opt(x)
	}
	x.consts = cache.New(cache.Options[ir.ConstID, Set]{MaxSize: x.cacheSize})
	return x
}

// DependenciesOfDef returns the definitions referenced by id's operands,
// directly or through constant expressions. The returned set is owned by
// the index and must not be modified.
func (x *Index) DependenciesOfDef(id ir.DefID) (Set, error) {
	if s, ok := x.defs[id]; ok {
		return s, nil
	}
	d, ok := x.module.Def(id)
	if !ok {
		return nil, ir.Faultf(x.module.NameOf(id), "dependency query for a definition that is not in the module")
	}
	out := NewSet()
	for _, op := range d.Operands {
		if err := x.collect(op, out); err != nil {
			return nil, faultIn(d.Name, err)
		}
	}
	x.defs[id] = out
	return out, nil
}

// DependenciesOf returns the definitions a value references. A DefRef
// contributes the referenced definition itself, a constant everything
// reachable through its operands. Use DependenciesOfDef for what a
// definition's own operands reference. The caller owns the result.
func (x *Index) DependenciesOf(v ir.Value) (Set, error) {
	out := NewSet()
	if err := x.collect(v, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Stats returns counters for the work done so far.
func (x *Index) Stats() Stats {
	return Stats{
		Definitions: len(x.defs),
		ConstWalks:  x.walks,
		Cache:       x.consts.Stats(),
	}
}

// collect adds the definitions v references to out.
func (x *Index) collect(v ir.Value, out Set) error {
	switch v := v.(type) {
	case ir.DefRef:
		if _, ok := x.module.Def(v.Def); !ok {
			return ir.Faultf("", "reference to missing definition %s", x.module.NameOf(v.Def))
		}
		out.Add(v.Def)
	case ir.ConstRef:
		s, err := x.constDeps(v.Const)
		if err != nil {
			return err
		}
		out.Append(s.ToSlice()...)
	case ir.Leaf:
	default:
		return ir.Faultf("", "unsupported operand %T", v)
	}
	return nil
}

func (x *Index) constDeps(id ir.ConstID) (Set, error) {
	if s, ok := x.consts.Get(id); ok {
		return s, nil
	}
	x.walks++
	w := newWalker(x)
	return w.visit(id)
}

func faultIn(def string, err error) error {
	if f, ok := err.(*ir.ConsistencyFault); ok && f.Def == "" {
		return &ir.ConsistencyFault{Def: def, Detail: f.Detail}
	}
	return err
}
