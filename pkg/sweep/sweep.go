// Package sweep deletes every definition outside a reachable set while
// keeping metadata associations consistent.
package sweep

import (
	"github.com/l3aro/go-globaldce/pkg/catalog"
	"github.com/l3aro/go-globaldce/pkg/ir"
	"github.com/l3aro/go-globaldce/pkg/liveness"
	"github.com/l3aro/go-globaldce/pkg/metadata"
)

// Result reports what a sweep removed.
type Result struct {
	Changed bool
	Removed []ir.DefID

	// Detached counts metadata attachments pruned from surviving
	// definitions because they named a removed one.
	Detached int

	// Constants counts constant expressions retired because they mention a
	// removed definition, directly or through another constant.
	Constants int
}

// Eliminator is the sweep phase of the pass.
type Eliminator struct {
	module *ir.Module
	cat    *catalog.Catalog
	table  *metadata.Table
}

// New creates an eliminator. table must have been built from the same module.
func New(m *ir.Module, cat *catalog.Catalog, table *metadata.Table) *Eliminator {
	return &Eliminator{module: m, cat: cat, table: table}
}

// Sweep removes, in catalog order, every definition that live does not
// contain. Definitions in live are left untouched apart from dropping
// metadata entries that name a removed definition.
func (e *Eliminator) Sweep(live liveness.Set) (Result, error) {
	var dead []*ir.Definition
	for _, id := range e.cat.Definitions() {
		if live.Contains(id) {
			continue
		}
		d, ok := e.module.Def(id)
		if !ok {
			return Result{}, ir.Faultf(e.cat.Name(id), "catalogued definition vanished before the sweep")
		}
		dead = append(dead, d)
	}

	var res Result
	for _, d := range dead {
		e.table.DropReferencesFrom(d.ID)
		d.Metadata = nil

		for _, annotator := range e.table.DropReferencesTo(d.ID) {
			if a, ok := e.module.Def(annotator); ok {
				res.Detached += a.DetachMetadataTo(d.ID)
			}
		}

		d.DropOperands()
		if err := e.module.Remove(d.ID); err != nil {
			return res, err
		}
		res.Removed = append(res.Removed, d.ID)
	}
	n, err := e.dropStaleConstants(res.Removed)
	if err != nil {
		return res, err
	}
	res.Constants = n
	res.Changed = len(res.Removed) > 0
	return res, nil
}

// dropStaleConstants retires constants that can no longer be materialised.
// A live definition never uses one: anything it reaches through a constant
// is live too.
func (e *Eliminator) dropStaleConstants(removed []ir.DefID) (int, error) {
	if len(removed) == 0 {
		return 0, nil
	}
	gone := make(map[ir.DefID]bool, len(removed))
	for _, id := range removed {
		gone[id] = true
	}
	stale := make(map[ir.ConstID]bool)
	consts := e.module.Consts()
	for changed := true; changed; {
		changed = false
		for _, c := range consts {
			if stale[c.ID] {
				continue
			}
			for _, op := range c.Operands {
				switch v := op.(type) {
				case ir.DefRef:
					if gone[v.Def] {
						stale[c.ID] = true
					}
				case ir.ConstRef:
					if stale[v.Const] {
						stale[c.ID] = true
					}
				}
				if stale[c.ID] {
					changed = true
					break
				}
			}
		}
	}
	for _, c := range consts {
		if stale[c.ID] {
			if err := e.module.RemoveConst(c.ID); err != nil {
				return 0, err
			}
		}
	}
	return len(stale), nil
}
