package ir

import (
	"fmt"
	"strings"
)

// Value is an operand held by a definition or by a constant expression.
type Value interface {
	fmt.Stringer
	isValue()
}

// DefRef is an operand that names another definition.
type DefRef struct {
	Def DefID
}

// ConstRef is an operand that points at a shared constant expression.
type ConstRef struct {
	Const ConstID
}

// Leaf is a scalar constant. It references nothing. Text must not be empty.
type Leaf struct {
	Text string
}

func (DefRef) isValue()   {}
func (ConstRef) isValue() {}
func (Leaf) isValue()     {}

func (r DefRef) String() string   { return fmt.Sprintf("@%d", r.Def) }
func (r ConstRef) String() string { return fmt.Sprintf("#%d", r.Const) }
func (l Leaf) String() string     { return l.Text }

// Ref is shorthand for DefRef{Def: id}.
func Ref(id DefID) Value { return DefRef{Def: id} }

// CRef is shorthand for ConstRef{Const: id}.
func CRef(id ConstID) Value { return ConstRef{Const: id} }

// ConstExpr is a constant expression such as a cast, a struct initializer or
// an address computation. The same expression may be an operand of many
// definitions and of other expressions, and the operand graph may contain
// cycles.
type ConstExpr struct {
	ID       ConstID
	Name     string
	Op       string
	Operands []Value

	retired bool
}

func (c *ConstExpr) String() string {
	parts := make([]string, len(c.Operands))
	for i, op := range c.Operands {
		parts[i] = op.String()
	}
	return fmt.Sprintf("%s(%s)", c.Op, strings.Join(parts, ", "))
}

// Attachment is a metadata entry on a definition that names another
// definition, e.g. "associated" or "callback" metadata.
type Attachment struct {
	Kind   string
	Target DefID
}

// Group is a linkage group: its members are kept or discarded together.
type Group struct {
	ID   GroupID
	Name string
}
