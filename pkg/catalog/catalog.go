// Package catalog provides a read-only view over the definitions of a module:
// their order, linkage and linkage-group membership.
package catalog

import (
	"github.com/l3aro/go-globaldce/pkg/ir"
)

// Catalog is a snapshot of a module's definition list taken when the
// catalog is created. It never mutates the module.
type Catalog struct {
	module  *ir.Module
	order   []ir.DefID
	index   map[ir.DefID]int
	members map[ir.GroupID][]ir.DefID
}

// New builds a catalog over the live definitions of m.
func New(m *ir.Module) *Catalog {
	defs := m.Definitions()
	c := &Catalog{
		module:  m,
		order:   make([]ir.DefID, 0, len(defs)),
		index:   make(map[ir.DefID]int, len(defs)),
		members: make(map[ir.GroupID][]ir.DefID),
	}
	for _, d := range defs {
		c.index[d.ID] = len(c.order)
		c.order = append(c.order, d.ID)
		if d.Group.IsValid() {
			c.members[d.Group] = append(c.members[d.Group], d.ID)
		}
	}
	return c
}

// Module returns the module the catalog was built from.
func (c *Catalog) Module() *ir.Module {
	return c.module
}

// Definitions returns the definition IDs in module order, without duplicates.
func (c *Catalog) Definitions() []ir.DefID {
	return append([]ir.DefID(nil), c.order...)
}

// Len returns the number of catalogued definitions.
func (c *Catalog) Len() int {
	return len(c.order)
}

// Contains reports whether id was a live definition when the catalog was built.
func (c *Catalog) Contains(id ir.DefID) bool {
	_, ok := c.index[id]
	return ok
}

// Position returns the catalog position of id, or -1.
func (c *Catalog) Position(id ir.DefID) int {
	if pos, ok := c.index[id]; ok {
		return pos
	}
	return -1
}

// Definition returns the definition behind id.
func (c *Catalog) Definition(id ir.DefID) (*ir.Definition, bool) {
	if !c.Contains(id) {
		return nil, false
	}
	return c.module.Def(id)
}

// Name returns the name of id.
func (c *Catalog) Name(id ir.DefID) string {
	return c.module.NameOf(id)
}

// Linkage returns the linkage class of id.
func (c *Catalog) Linkage(id ir.DefID) ir.Linkage {
	if d, ok := c.Definition(id); ok {
		return d.Linkage
	}
	return ir.ExternalLinkage
}

// GroupOf returns the linkage group id belongs to, if any.
func (c *Catalog) GroupOf(id ir.DefID) (ir.GroupID, bool) {
	d, ok := c.Definition(id)
	if !ok || !d.Group.IsValid() {
		return ir.NoGroup, false
	}
	return d.Group, true
}

// Members returns every definition in group g, in module order.
func (c *Catalog) Members(g ir.GroupID) []ir.DefID {
	return append([]ir.DefID(nil), c.members[g]...)
}

// Groups returns the IDs of every non-empty linkage group.
func (c *Catalog) Groups() []ir.GroupID {
	out := make([]ir.GroupID, 0, len(c.members))
	for _, g := range c.module.Groups() {
		if len(c.members[g.ID]) > 0 {
			out = append(out, g.ID)
		}
	}
	return out
}
