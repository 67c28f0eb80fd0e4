package irfile

import (
	"fmt"

	"github.com/l3aro/go-globaldce/pkg/ir"
)

// Document is the serialized form of a module. Definitions and constants
// refer to each other by name, so the file is readable and diffable.
type Document struct {
	Name        string       `yaml:"name" json:"name" msgpack:"name"`
	Groups      []string     `yaml:"groups,omitempty" json:"groups,omitempty" msgpack:"groups,omitempty"`
	Constants   []Constant   `yaml:"constants,omitempty" json:"constants,omitempty" msgpack:"constants,omitempty"`
	Definitions []Definition `yaml:"definitions" json:"definitions" msgpack:"definitions"`
}

// Constant is a named constant expression.
type Constant struct {
	Name     string    `yaml:"name" json:"name" msgpack:"name"`
	Op       string    `yaml:"op" json:"op" msgpack:"op"`
	Operands []Operand `yaml:"operands,omitempty" json:"operands,omitempty" msgpack:"operands,omitempty"`
}

// Definition is one top-level definition.
type Definition struct {
	Name        string       `yaml:"name" json:"name" msgpack:"name"`
	Kind        string       `yaml:"kind" json:"kind" msgpack:"kind"`
	Linkage     string       `yaml:"linkage,omitempty" json:"linkage,omitempty" msgpack:"linkage,omitempty"`
	Operands    []Operand    `yaml:"operands,omitempty" json:"operands,omitempty" msgpack:"operands,omitempty"`
	Metadata    []Attachment `yaml:"metadata,omitempty" json:"metadata,omitempty" msgpack:"metadata,omitempty"`
	Group       string       `yaml:"group,omitempty" json:"group,omitempty" msgpack:"group,omitempty"`
	Preserved   bool         `yaml:"preserved,omitempty" json:"preserved,omitempty" msgpack:"preserved,omitempty"`
	Declaration bool         `yaml:"declaration,omitempty" json:"declaration,omitempty" msgpack:"declaration,omitempty"`
}

// Operand is exactly one of a definition reference, a constant reference or
// a leaf value.
type Operand struct {
	Def   string `yaml:"def,omitempty" json:"def,omitempty" msgpack:"def,omitempty"`
	Const string `yaml:"const,omitempty" json:"const,omitempty" msgpack:"const,omitempty"`
	Leaf  string `yaml:"leaf,omitempty" json:"leaf,omitempty" msgpack:"leaf,omitempty"`
}

// Attachment is a metadata entry naming another definition.
type Attachment struct {
	Kind string `yaml:"kind" json:"kind" msgpack:"kind"`
	Def  string `yaml:"def" json:"def" msgpack:"def"`
}

// Build converts the document into a module. Names are resolved after every
// definition and constant has been created, so forward references and
// cyclic constants are allowed.
func (doc *Document) Build() (*ir.Module, error) {
	m := ir.NewModule(doc.Name)
	for _, g := range doc.Groups {
		m.AddGroup(g)
	}

	consts := make(map[string]*ir.ConstExpr, len(doc.Constants))
	for _, c := range doc.Constants {
		if c.Name == "" {
			return nil, fmt.Errorf("constant with op %q has no name", c.Op)
		}
		if _, dup := consts[c.Name]; dup {
			return nil, fmt.Errorf("duplicate constant %q", c.Name)
		}
		ce := m.AddConst(c.Op)
		ce.Name = c.Name
		consts[c.Name] = ce
	}

	defs := make([]*ir.Definition, len(doc.Definitions))
	for i, d := range doc.Definitions {
		kind, err := ir.ParseKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("definition %q: %w", d.Name, err)
		}
		linkage, err := ir.ParseLinkage(d.Linkage)
		if err != nil {
			return nil, fmt.Errorf("definition %q: %w", d.Name, err)
		}
		def, err := m.Add(d.Name, kind, linkage)
		if err != nil {
			return nil, err
		}
		def.Preserved = d.Preserved
		def.IsDeclaration = d.Declaration
		if d.Group != "" {
			def.Group = m.AddGroup(d.Group)
		}
		defs[i] = def
	}

	resolve := func(op Operand) (ir.Value, error) {
		set := 0
		for _, s := range []string{op.Def, op.Const, op.Leaf} {
			if s != "" {
				set++
			}
		}
		if set != 1 {
			return nil, fmt.Errorf("operand must set exactly one of def, const, leaf")
		}
		switch {
		case op.Def != "":
			target, ok := m.Lookup(op.Def)
			if !ok {
				return nil, fmt.Errorf("unknown definition %q", op.Def)
			}
			return ir.Ref(target.ID), nil
		case op.Const != "":
			c, ok := consts[op.Const]
			if !ok {
				return nil, fmt.Errorf("unknown constant %q", op.Const)
			}
			return ir.CRef(c.ID), nil
		}
		return ir.Leaf{Text: op.Leaf}, nil
	}

	for _, c := range doc.Constants {
		ce := consts[c.Name]
		for _, op := range c.Operands {
			v, err := resolve(op)
			if err != nil {
				return nil, fmt.Errorf("constant %q: %w", c.Name, err)
			}
			ce.Operands = append(ce.Operands, v)
		}
	}

	for i, d := range doc.Definitions {
		def := defs[i]
		for _, op := range d.Operands {
			v, err := resolve(op)
			if err != nil {
				return nil, fmt.Errorf("definition %q: %w", d.Name, err)
			}
			def.AddOperand(v)
		}
		for _, a := range d.Metadata {
			target, ok := m.Lookup(a.Def)
			if !ok {
				return nil, fmt.Errorf("definition %q: !%s metadata names unknown definition %q", d.Name, a.Kind, a.Def)
			}
			def.Attach(a.Kind, target.ID)
		}
	}
	return m, nil
}

// FromModule converts the live part of a module into a document. Unnamed
// constants get a name derived from their ID.
func FromModule(m *ir.Module) (*Document, error) {
	doc := &Document{Name: m.Name}
	for _, g := range m.Groups() {
		doc.Groups = append(doc.Groups, g.Name)
	}

	live := m.Consts()
	names := make(map[ir.ConstID]string, len(live))
	taken := make(map[string]bool, len(live))
	for _, c := range live {
		if c.Name != "" {
			taken[c.Name] = true
		}
	}
	for _, c := range live {
		name := c.Name
		if name == "" {
			name = fmt.Sprintf("const.%d", c.ID)
			for taken[name] {
				name += "_"
			}
			taken[name] = true
		}
		names[c.ID] = name
	}

	operand := func(v ir.Value) (Operand, error) {
		switch v := v.(type) {
		case ir.DefRef:
			d, ok := m.Def(v.Def)
			if !ok {
				return Operand{}, ir.Faultf(m.NameOf(v.Def), "reference to missing definition")
			}
			return Operand{Def: d.Name}, nil
		case ir.ConstRef:
			name, ok := names[v.Const]
			if !ok {
				return Operand{}, ir.Faultf("", "reference to missing constant #%d", v.Const)
			}
			return Operand{Const: name}, nil
		case ir.Leaf:
			if v.Text == "" {
				return Operand{}, fmt.Errorf("empty leaf operand cannot be encoded")
			}
			return Operand{Leaf: v.Text}, nil
		}
		return Operand{}, fmt.Errorf("unsupported operand %T", v)
	}

	for _, c := range live {
		out := Constant{Name: names[c.ID], Op: c.Op}
		for _, v := range c.Operands {
			op, err := operand(v)
			if err != nil {
				return nil, err
			}
			out.Operands = append(out.Operands, op)
		}
		doc.Constants = append(doc.Constants, out)
	}

	for _, d := range m.Definitions() {
		out := Definition{
			Name:        d.Name,
			Kind:        d.Kind.String(),
			Linkage:     d.Linkage.String(),
			Preserved:   d.Preserved,
			Declaration: d.IsDeclaration,
		}
		if g, ok := m.Group(d.Group); ok {
			out.Group = g.Name
		}
		for _, v := range d.Operands {
			op, err := operand(v)
			if err != nil {
				return nil, err
			}
			out.Operands = append(out.Operands, op)
		}
		for _, a := range d.Metadata {
			target, ok := m.Def(a.Target)
			if !ok {
				return nil, ir.Faultf(d.Name, "!%s metadata names missing definition %s", a.Kind, m.NameOf(a.Target))
			}
			out.Metadata = append(out.Metadata, Attachment{Kind: a.Kind, Def: target.Name})
		}
		doc.Definitions = append(doc.Definitions, out)
	}
	return doc, nil
}
