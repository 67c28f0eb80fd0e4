package deps

import (
	"github.com/l3aro/go-globaldce/pkg/ir"
)

// walker computes constant dependencies with Tarjan's SCC algorithm. Every
// constant in a strongly connected component gets the same result, so a
// cyclic constant is never cached with a partial answer.
type walker struct {
	x       *Index
	counter int
	num     map[ir.ConstID]int
	low     map[ir.ConstID]int
	stack   []ir.ConstID
	onStack map[ir.ConstID]bool
	local   map[ir.ConstID]Set
	done    map[ir.ConstID]Set
}

func newWalker(x *Index) *walker {
	return &walker{
		x:       x,
		num:     make(map[ir.ConstID]int),
		low:     make(map[ir.ConstID]int),
		onStack: make(map[ir.ConstID]bool),
		local:   make(map[ir.ConstID]Set),
		done:    make(map[ir.ConstID]Set),
	}
}

func (w *walker) visit(id ir.ConstID) (Set, error) {
	c, ok := w.x.module.Const(id)
	if !ok {
		return nil, ir.Faultf("", "reference to missing constant #%d", id)
	}

	w.counter++
	w.num[id] = w.counter
	w.low[id] = w.counter
	w.stack = append(w.stack, id)
	w.onStack[id] = true

	set := NewSet()
	w.local[id] = set

	for _, op := range c.Operands {
		switch op := op.(type) {
		case ir.DefRef:
			if _, ok := w.x.module.Def(op.Def); !ok {
				return nil, ir.Faultf("", "constant #%d references missing definition %s", id, w.x.module.NameOf(op.Def))
			}
			set.Add(op.Def)
		case ir.ConstRef:
			child := op.Const
			if s, ok := w.done[child]; ok {
				set.Append(s.ToSlice()...)
				continue
			}
			if _, seen := w.num[child]; !seen {
				if s, ok := w.x.consts.Get(child); ok {
					set.Append(s.ToSlice()...)
					continue
				}
				s, err := w.visit(child)
				if err != nil {
					return nil, err
				}
				set.Append(s.ToSlice()...)
				w.low[id] = min(w.low[id], w.low[child])
			} else if w.onStack[child] {
				w.low[id] = min(w.low[id], w.num[child])
			}
		case ir.Leaf:
		default:
			return nil, ir.Faultf("", "constant #%d has unsupported operand %T", id, op)
		}
	}

	if w.low[id] != w.num[id] {
		return set, nil
	}

	// id is the root of a component: pop it and share one result.
	var members []ir.ConstID
	for {
		top := w.stack[len(w.stack)-1]
		w.stack = w.stack[:len(w.stack)-1]
		w.onStack[top] = false
		members = append(members, top)
		if top == id {
			break
		}
	}
	result := set
	if len(members) > 1 {
		result = NewSet()
		for _, m := range members {
			result.Append(w.local[m].ToSlice()...)
		}
	}
	for _, m := range members {
		w.done[m] = result
		w.x.consts.Set(m, result)
	}
	return result, nil
}
