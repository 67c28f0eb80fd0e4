package globaldce

import (
	"github.com/l3aro/go-globaldce/pkg/ir"
	"github.com/l3aro/go-globaldce/pkg/liveness"
)

// ScanReachable computes the reachable set by plain recursion over the
// module, without the dependency index, the memo or the worklist. It is the
// reference the worklist result is checked against.
func ScanReachable(m *ir.Module, entryPoints []string) (liveness.Set, error) {
	s := &scan{
		m:       m,
		reached: make(map[ir.DefID]bool),
		members: make(map[ir.GroupID][]ir.DefID),
	}
	defs := m.Definitions()
	for _, d := range defs {
		if d.Group.IsValid() {
			s.members[d.Group] = append(s.members[d.Group], d.ID)
		}
	}
	for _, d := range defs {
		if liveness.IsRoot(d) != liveness.NotRoot {
			if err := s.walkDef(d.ID); err != nil {
				return liveness.Set{}, err
			}
		}
	}
	for _, name := range entryPoints {
		d, ok := m.Lookup(name)
		if !ok {
			return liveness.Set{}, ir.Faultf(name, "entry point is not defined in module %s", m.Name)
		}
		if err := s.walkDef(d.ID); err != nil {
			return liveness.Set{}, err
		}
	}

	ids := make([]ir.DefID, 0, len(s.reached))
	for id := range s.reached {
		ids = append(ids, id)
	}
	return liveness.NewSet(ids...), nil
}

type scan struct {
	m       *ir.Module
	reached map[ir.DefID]bool
	members map[ir.GroupID][]ir.DefID
}

func (s *scan) walkDef(id ir.DefID) error {
	if s.reached[id] {
		return nil
	}
	d, ok := s.m.Def(id)
	if !ok {
		return ir.Faultf(s.m.NameOf(id), "reference to missing definition")
	}
	s.reached[id] = true
	seen := make(map[ir.ConstID]bool)
	for _, op := range d.Operands {
		if err := s.walkValue(op, seen); err != nil {
			return err
		}
	}
	if d.Group.IsValid() {
		for _, member := range s.members[d.Group] {
			if err := s.walkDef(member); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *scan) walkValue(v ir.Value, seen map[ir.ConstID]bool) error {
	switch v := v.(type) {
	case ir.DefRef:
		return s.walkDef(v.Def)
	case ir.ConstRef:
		if seen[v.Const] {
			return nil
		}
		seen[v.Const] = true
		c, ok := s.m.Const(v.Const)
		if !ok {
			return ir.Faultf("", "reference to missing constant #%d", v.Const)
		}
		for _, op := range c.Operands {
			if err := s.walkValue(op, seen); err != nil {
				return err
			}
		}
	}
	return nil
}
