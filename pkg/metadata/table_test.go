package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/l3aro/go-globaldce/pkg/ir"
)

func TestTableRecordIsIdempotent(t *testing.T) {
	tbl := New()
	tbl.Record(1, 2)
	tbl.Record(1, 2)
	tbl.Record(3, 2)
	tbl.Record(1, 4)

	assert.Equal(t, 3, tbl.Len())
	assert.Equal(t, []ir.DefID{1, 3}, tbl.ReferencesTo(2))
	assert.Equal(t, []ir.DefID{2, 4}, tbl.ReferencesFrom(1))
	assert.Nil(t, tbl.ReferencesTo(1))
	assert.Equal(t, [][2]ir.DefID{{1, 2}, {1, 4}, {3, 2}}, tbl.Pairs())
}

func TestTableDropReferencesFrom(t *testing.T) {
	tbl := New()
	tbl.Record(1, 2)
	tbl.Record(1, 3)
	tbl.Record(4, 3)

	tbl.DropReferencesFrom(1)

	assert.Equal(t, 1, tbl.Len())
	assert.Nil(t, tbl.ReferencesFrom(1))
	assert.Nil(t, tbl.ReferencesTo(2))
	assert.Equal(t, []ir.DefID{4}, tbl.ReferencesTo(3))

	// Dropping an unknown definition is a no-op.
	tbl.DropReferencesFrom(99)
	assert.Equal(t, 1, tbl.Len())
}

func TestTableDropReferencesTo(t *testing.T) {
	tbl := New()
	tbl.Record(5, 2)
	tbl.Record(1, 2)
	tbl.Record(1, 3)

	annotators := tbl.DropReferencesTo(2)

	assert.Equal(t, []ir.DefID{1, 5}, annotators)
	assert.Equal(t, 1, tbl.Len())
	assert.Nil(t, tbl.ReferencesFrom(5))
	assert.Equal(t, []ir.DefID{3}, tbl.ReferencesFrom(1))
	assert.Nil(t, tbl.DropReferencesTo(2))
}

func TestTableSelfReference(t *testing.T) {
	tbl := New()
	tbl.Record(7, 7)
	tbl.DropReferencesFrom(7)
	assert.Equal(t, 0, tbl.Len())
	assert.Nil(t, tbl.ReferencesTo(7))
}

func TestFromModule(t *testing.T) {
	m := ir.NewModule("demo")
	x := m.MustAdd("funcX", ir.Function, ir.ExternalLinkage)
	y := m.MustAdd("funcY", ir.Function, ir.InternalLinkage)
	x.Attach("associated", y.ID)
	x.Attach("callback", y.ID)

	tbl := FromModule(m)

	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, []ir.DefID{x.ID}, tbl.ReferencesTo(y.ID))
}
