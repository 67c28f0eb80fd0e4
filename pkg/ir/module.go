package ir

import (
	"fmt"
)

// Definition is a named top-level entity: a function, a global variable or
// an alias.
type Definition struct {
	ID      DefID
	Name    string
	Kind    Kind
	Linkage Linkage

	// Preserved marks definitions the optimizer must keep even when nothing
	// references them (compiler-used lists, inline assembly references).
	Preserved bool

	// IsDeclaration is set for functions without a body and globals without
	// an initializer.
	IsDeclaration bool

	// Operands holds every value the definition contains directly: callees
	// and referenced globals of a function body, a variable's initializer,
	// an alias target.
	Operands []Value

	Group    GroupID
	Metadata []Attachment

	retired bool
}

// AddOperand appends operands to the definition.
func (d *Definition) AddOperand(vals ...Value) {
	d.Operands = append(d.Operands, vals...)
}

// Attach records a metadata entry naming target.
func (d *Definition) Attach(kind string, target DefID) {
	d.Metadata = append(d.Metadata, Attachment{Kind: kind, Target: target})
}

// DropOperands detaches every operand edge of the definition.
func (d *Definition) DropOperands() {
	d.Operands = nil
}

// DetachMetadataTo removes every attachment naming target and returns how
// many were removed.
func (d *Definition) DetachMetadataTo(target DefID) int {
	kept := d.Metadata[:0]
	for _, a := range d.Metadata {
		if a.Target != target {
			kept = append(kept, a)
		}
	}
	removed := len(d.Metadata) - len(kept)
	if len(kept) == 0 {
		kept = nil
	}
	d.Metadata = kept
	return removed
}

// IsRetired reports whether the definition has been removed from its module.
func (d *Definition) IsRetired() bool {
	return d.retired
}

func (d *Definition) String() string {
	return fmt.Sprintf("%s %s @%s", d.Linkage, d.Kind, d.Name)
}

// Module is a fully linked module: the ordered definition list plus the
// constant expressions and linkage groups they refer to.
type Module struct {
	Name string

	// Slot 0 of every arena is unused so the zero ID stays invalid.
	defs   []*Definition
	consts []*ConstExpr
	groups []*Group

	byName      map[string]DefID
	groupByName map[string]GroupID
	live        int
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{
		Name:        name,
		defs:        []*Definition{nil},
		consts:      []*ConstExpr{nil},
		groups:      []*Group{nil},
		byName:      make(map[string]DefID),
		groupByName: make(map[string]GroupID),
	}
}

// Add creates a definition and appends it to the module's definition list.
// Names must be unique among live definitions.
func (m *Module) Add(name string, kind Kind, linkage Linkage) (*Definition, error) {
	if name == "" {
		return nil, fmt.Errorf("definition name is empty")
	}
	if _, exists := m.byName[name]; exists {
		return nil, fmt.Errorf("duplicate definition %q", name)
	}
	d := &Definition{
		ID:      DefID(len(m.defs)),
		Name:    name,
		Kind:    kind,
		Linkage: linkage,
	}
	m.defs = append(m.defs, d)
	m.byName[name] = d.ID
	m.live++
	return d, nil
}

// MustAdd is like Add but panics on error. Intended for tests and fixtures.
func (m *Module) MustAdd(name string, kind Kind, linkage Linkage) *Definition {
	d, err := m.Add(name, kind, linkage)
	if err != nil {
		panic(err)
	}
	return d
}

// AddConst creates a constant expression. Operands may be appended later,
// which is how cyclic constants are built.
func (m *Module) AddConst(op string, operands ...Value) *ConstExpr {
	c := &ConstExpr{
		ID:       ConstID(len(m.consts)),
		Op:       op,
		Operands: operands,
	}
	m.consts = append(m.consts, c)
	return c
}

// AddGroup returns the linkage group with the given name, creating it on
// first use.
func (m *Module) AddGroup(name string) GroupID {
	if id, ok := m.groupByName[name]; ok {
		return id
	}
	g := &Group{ID: GroupID(len(m.groups)), Name: name}
	m.groups = append(m.groups, g)
	m.groupByName[name] = g.ID
	return g.ID
}

// Lookup finds a live definition by name.
func (m *Module) Lookup(name string) (*Definition, bool) {
	id, ok := m.byName[name]
	if !ok {
		return nil, false
	}
	return m.defs[id], true
}

// Def returns the live definition with the given ID.
func (m *Module) Def(id DefID) (*Definition, bool) {
	if !id.IsValid() || int(id) >= len(m.defs) {
		return nil, false
	}
	d := m.defs[id]
	if d.retired {
		return nil, false
	}
	return d, true
}

// Const returns the constant expression with the given ID.
func (m *Module) Const(id ConstID) (*ConstExpr, bool) {
	if !id.IsValid() || int(id) >= len(m.consts) {
		return nil, false
	}
	c := m.consts[id]
	if c.retired {
		return nil, false
	}
	return c, true
}

// Consts returns the live constant expressions in creation order.
func (m *Module) Consts() []*ConstExpr {
	out := make([]*ConstExpr, 0, len(m.consts)-1)
	for _, c := range m.consts[1:] {
		if !c.retired {
			out = append(out, c)
		}
	}
	return out
}

// RemoveConst retires a constant expression. Nothing live may still use it.
func (m *Module) RemoveConst(id ConstID) error {
	c, ok := m.Const(id)
	if !ok {
		return Faultf("", "remove of constant #%d that is not in the module", id)
	}
	c.Operands = nil
	c.retired = true
	return nil
}

// Group returns the linkage group with the given ID.
func (m *Module) Group(id GroupID) (*Group, bool) {
	if !id.IsValid() || int(id) >= len(m.groups) {
		return nil, false
	}
	return m.groups[id], true
}

// GroupByName finds a linkage group by name.
func (m *Module) GroupByName(name string) (GroupID, bool) {
	id, ok := m.groupByName[name]
	return id, ok
}

// Groups returns every linkage group in creation order.
func (m *Module) Groups() []*Group {
	return append([]*Group(nil), m.groups[1:]...)
}

// Definitions returns the live definitions in module order.
func (m *Module) Definitions() []*Definition {
	out := make([]*Definition, 0, m.live)
	for _, d := range m.defs[1:] {
		if !d.retired {
			out = append(out, d)
		}
	}
	return out
}

// Len returns the number of live definitions.
func (m *Module) Len() int {
	return m.live
}

// NameOf returns the name of a definition, including retired ones, for
// diagnostics.
func (m *Module) NameOf(id DefID) string {
	if !id.IsValid() || int(id) >= len(m.defs) {
		return fmt.Sprintf("<invalid %d>", id)
	}
	return m.defs[id].Name
}

// Remove retires a definition. The caller is responsible for detaching
// operands and metadata beforehand.
func (m *Module) Remove(id DefID) error {
	d, ok := m.Def(id)
	if !ok {
		return Faultf(m.NameOf(id), "remove of a definition that is not in the module")
	}
	d.retired = true
	delete(m.byName, d.Name)
	m.live--
	return nil
}

// Validate checks that every operand, constant operand, metadata target and
// group reference resolves. The first violation is returned as a
// *ConsistencyFault.
func (m *Module) Validate() error {
	for _, c := range m.Consts() {
		for _, op := range c.Operands {
			if err := m.checkValue(op); err != nil {
				return Faultf("", "constant #%d: %s", c.ID, err)
			}
		}
	}
	for _, d := range m.Definitions() {
		for _, op := range d.Operands {
			if err := m.checkValue(op); err != nil {
				return Faultf(d.Name, "operand: %s", err)
			}
		}
		for _, a := range d.Metadata {
			if _, ok := m.Def(a.Target); !ok {
				return Faultf(d.Name, "!%s metadata names missing definition %s", a.Kind, m.NameOf(a.Target))
			}
		}
		if d.Group.IsValid() {
			if _, ok := m.Group(d.Group); !ok {
				return Faultf(d.Name, "unknown linkage group %d", d.Group)
			}
		}
	}
	return nil
}

func (m *Module) checkValue(v Value) error {
	switch v := v.(type) {
	case DefRef:
		if _, ok := m.Def(v.Def); !ok {
			return fmt.Errorf("reference to missing definition %s", m.NameOf(v.Def))
		}
	case ConstRef:
		if _, ok := m.Const(v.Const); !ok {
			return fmt.Errorf("reference to missing constant #%d", v.Const)
		}
	case Leaf:
		if v.Text == "" {
			return fmt.Errorf("empty leaf operand")
		}
	case nil:
		return fmt.Errorf("nil operand")
	default:
		return fmt.Errorf("unsupported operand %T", v)
	}
	return nil
}
