// Package metadata tracks which definitions are named by another
// definition's metadata attachments, so that deleting or replacing a
// definition never leaves an attachment pointing at nothing.
package metadata

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/l3aro/go-globaldce/pkg/ir"
)

// Table is the association relation annotated -> referenced, indexed in
// both directions. It does not own the definitions.
type Table struct {
	from map[ir.DefID]mapset.Set[ir.DefID]
	to   map[ir.DefID]mapset.Set[ir.DefID]
	size int
}

// New creates an empty table.
func New() *Table {
	return &Table{
		from: make(map[ir.DefID]mapset.Set[ir.DefID]),
		to:   make(map[ir.DefID]mapset.Set[ir.DefID]),
	}
}

// FromModule records every metadata attachment of the live definitions of m.
func FromModule(m *ir.Module) *Table {
	t := New()
	for _, d := range m.Definitions() {
		for _, a := range d.Metadata {
			t.Record(d.ID, a.Target)
		}
	}
	return t
}

// Record notes that annotated's metadata names referenced. Recording the
// same pair twice has no additional effect.
func (t *Table) Record(annotated, referenced ir.DefID) {
	out, ok := t.from[annotated]
	if !ok {
		out = mapset.NewThreadUnsafeSet[ir.DefID]()
		t.from[annotated] = out
	}
	if !out.Add(referenced) {
		return
	}
	in, ok := t.to[referenced]
	if !ok {
		in = mapset.NewThreadUnsafeSet[ir.DefID]()
		t.to[referenced] = in
	}
	in.Add(annotated)
	t.size++
}

// ReferencesTo returns every definition whose metadata names target,
// sorted by ID.
func (t *Table) ReferencesTo(target ir.DefID) []ir.DefID {
	return sorted(t.to[target])
}

// ReferencesFrom returns every definition named by def's metadata, sorted
// by ID.
func (t *Table) ReferencesFrom(def ir.DefID) []ir.DefID {
	return sorted(t.from[def])
}

// DropReferencesFrom removes every association where def is the annotated
// side. It is called right before def is deleted.
func (t *Table) DropReferencesFrom(def ir.DefID) {
	out, ok := t.from[def]
	if !ok {
		return
	}
	out.Each(func(target ir.DefID) bool {
		t.unlinkTo(target, def)
		return false
	})
	t.size -= out.Cardinality()
	delete(t.from, def)
}

// DropReferencesTo removes every association naming target and returns the
// annotated definitions that lost an entry, sorted by ID.
func (t *Table) DropReferencesTo(target ir.DefID) []ir.DefID {
	in, ok := t.to[target]
	if !ok {
		return nil
	}
	annotators := sorted(in)
	for _, a := range annotators {
		t.unlinkFrom(a, target)
	}
	t.size -= len(annotators)
	delete(t.to, target)
	return annotators
}

// Len returns the number of associations.
func (t *Table) Len() int {
	return t.size
}

// Pairs returns every association as (annotated, referenced), sorted.
func (t *Table) Pairs() [][2]ir.DefID {
	var out [][2]ir.DefID
	for _, a := range sortedKeys(t.from) {
		for _, r := range sorted(t.from[a]) {
			out = append(out, [2]ir.DefID{a, r})
		}
	}
	return out
}

func (t *Table) unlinkTo(target, annotated ir.DefID) {
	if in, ok := t.to[target]; ok {
		in.Remove(annotated)
		if in.Cardinality() == 0 {
			delete(t.to, target)
		}
	}
}

func (t *Table) unlinkFrom(annotated, target ir.DefID) {
	if out, ok := t.from[annotated]; ok {
		out.Remove(target)
		if out.Cardinality() == 0 {
			delete(t.from, annotated)
		}
	}
}

func sorted(s mapset.Set[ir.DefID]) []ir.DefID {
	if s == nil {
		return nil
	}
	out := s.ToSlice()
	slices.Sort(out)
	return out
}

func sortedKeys(m map[ir.DefID]mapset.Set[ir.DefID]) []ir.DefID {
	out := make([]ir.DefID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
