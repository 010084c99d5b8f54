package cpu

import (
	"fmt"
	"strings"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/symbolic"
	"github.com/born-ml/symgraph/internal/tensor"
)

// Slot is the memory assigned to one computed node.
type Slot struct {
	ID     graph.ID
	Dims   [tensor.MaxRank]int
	Offset int // bytes from the start of the arena
	Size   int // bytes, elements × dtype width
	Elem   int // element offset in the interpreter arena
	Count  int // elements
}

// Plan is a bump allocation of every computed node of a function in
// topological order. Inputs and parameters are owned by the caller and the
// program respectively and take no arena space. Nothing is reused.
type Plan struct {
	Slots    []Slot
	Bytes    int
	Elements int
	byID     map[graph.ID]int
}

// Slot returns the slot of id.
func (p *Plan) Slot(id graph.ID) (Slot, bool) {
	i, ok := p.byID[id]
	if !ok {
		return Slot{}, false
	}
	return p.Slots[i], true
}

// String renders one line per slot.
func (p *Plan) String() string {
	var sb strings.Builder
	for _, s := range p.Slots {
		fmt.Fprintf(&sb, "%-6s offset=%-8d size=%-8d dims=%v\n", s.ID, s.Offset, s.Size, s.Dims)
	}
	fmt.Fprintf(&sb, "total %d bytes\n", p.Bytes)
	return sb.String()
}

// PlanFunction evaluates the shapes of fn under subst and assigns arena
// offsets in ascending id order.
func PlanFunction(fn *graph.Function, subst symbolic.Substitution) (*Plan, error) {
	p := &Plan{byID: make(map[graph.ID]int)}
	for _, n := range fn.Graph.Nodes() {
		switch n.Kind() {
		case graph.KindInput, graph.KindParameter:
			continue
		}
		dims, err := n.Shape().Evaluate(subst)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", n.ID(), err)
		}
		for axis, d := range dims {
			if d <= 0 {
				return nil, fmt.Errorf("plan %s: axis %d of %s evaluates to %d", n.ID(), axis, n.Shape(), d)
			}
		}
		count := dims[0] * dims[1] * dims[2] * dims[3]
		size := count * n.DType().Size()
		p.byID[n.ID()] = len(p.Slots)
		p.Slots = append(p.Slots, Slot{
			ID:     n.ID(),
			Dims:   dims,
			Offset: p.Bytes,
			Size:   size,
			Elem:   p.Elements,
			Count:  count,
		})
		p.Bytes += size
		p.Elements += count
	}
	return p, nil
}
