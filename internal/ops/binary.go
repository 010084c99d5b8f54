package ops

import (
	"github.com/born-ml/symgraph/internal/graph"
)

// BinaryOp is an elementwise arithmetic operation on two parents of equal
// shape and dtype. Implicit broadcasting happens before construction, so
// both parents always share the output shape.
//
// Backward pass (g = incoming gradient, y = output):
//   - add: g, g
//   - sub: g, -g
//   - mul: g*b, g*a
//   - div: g/b, -g*y/b
//   - pow: g*b*a^(b-1), g*y*log(a)
//   - maximum/minimum: g routed to the selected operand
//
// The Jacobian is diagonal, so the forward rule of parent i is the backward
// rule applied to the tangent of parent i.
type BinaryOp struct {
	base
}

// Add returns a + b.
func Add(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return binary(g, graph.KindAdd, a, b)
}

// Sub returns a - b.
func Sub(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return binary(g, graph.KindSub, a, b)
}

// Mul returns a * b.
func Mul(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return binary(g, graph.KindMul, a, b)
}

// Div returns a / b.
func Div(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return binary(g, graph.KindDiv, a, b)
}

// Pow returns a ** b for float operands.
func Pow(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return binary(g, graph.KindPow, a, b)
}

// Maximum returns the elementwise maximum.
func Maximum(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return binary(g, graph.KindMaximum, a, b)
}

// Minimum returns the elementwise minimum.
func Minimum(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return binary(g, graph.KindMinimum, a, b)
}

// Square returns x * x.
func Square(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return Mul(g, x, x)
}

func binary(g *graph.Graph, kind graph.Kind, a, b *graph.Node) (*graph.Node, error) {
	accept := numeric
	if kind.ProducesFloat() {
		accept = floating
	}
	c, err := coerce(g, kind.String(), []*graph.Node{a, b}, 0, accept)
	if err != nil {
		return nil, err
	}
	op := &BinaryOp{base: newBase(graph.NewBase(g, kind, c.nodes, nil, c.shape, c.dtype))}
	return insert(g, op)
}

// Equals matches the same kind over the same parents; add, mul, maximum and
// minimum also match swapped parents.
func (op *BinaryOp) Equals(other graph.Operator) bool {
	o, ok := other.(*BinaryOp)
	if !ok || o.Kind() != op.Kind() {
		return false
	}
	if op.SameStructure(o) {
		return true
	}
	switch op.Kind() {
	case graph.KindAdd, graph.KindMul, graph.KindMaximum, graph.KindMinimum:
		p, q := op.Parents(), o.Parents()
		return p[0] == q[1] && p[1] == q[0]
	}
	return false
}

// CopyTo implements graph.Operator.
func (op *BinaryOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &BinaryOp{base: b}, nil
}

// BackwardDiffParent implements graph.Operator.
func (op *BinaryOp) BackwardDiffParent(msg *graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	a, b := op.Parents()[0], op.Parents()[1]

	switch op.Kind() {
	case graph.KindAdd:
		return msg, nil

	case graph.KindSub:
		if index == 0 {
			return msg, nil
		}
		return Neg(g, msg)

	case graph.KindMul:
		if index == 0 {
			return Mul(g, msg, b)
		}
		return Mul(g, msg, a)

	case graph.KindDiv:
		if index == 0 {
			return Div(g, msg, b)
		}
		// d(a/b)/db = -a/b² = -y/b
		y, err := owner(&op.base)
		if err != nil {
			return nil, err
		}
		t, err := Mul(g, msg, y)
		if err != nil {
			return nil, err
		}
		t, err = Div(g, t, b)
		if err != nil {
			return nil, err
		}
		return Neg(g, t)

	case graph.KindPow:
		return op.powParent(msg, index)

	case graph.KindMaximum, graph.KindMinimum:
		return op.selectParent(msg, index)
	}
	return op.base.BackwardDiffParent(msg, index)
}

func (op *BinaryOp) powParent(msg *graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	a, b := op.Parents()[0], op.Parents()[1]
	if index == 0 {
		// b * a^(b-1)
		one, err := onesLike(g, b)
		if err != nil {
			return nil, err
		}
		bm1, err := Sub(g, b, one)
		if err != nil {
			return nil, err
		}
		p, err := Pow(g, a, bm1)
		if err != nil {
			return nil, err
		}
		d, err := Mul(g, b, p)
		if err != nil {
			return nil, err
		}
		return Mul(g, msg, d)
	}
	// y * log(a)
	y, err := owner(&op.base)
	if err != nil {
		return nil, err
	}
	la, err := Log(g, a)
	if err != nil {
		return nil, err
	}
	d, err := Mul(g, y, la)
	if err != nil {
		return nil, err
	}
	return Mul(g, msg, d)
}

// selectParent routes msg to the operand selected by maximum/minimum. Ties
// go to the first operand.
func (op *BinaryOp) selectParent(msg *graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	a, b := op.Parents()[0], op.Parents()[1]
	var lost *graph.Node // true where a was not selected
	var err error
	if op.Kind() == graph.KindMaximum {
		lost, err = Less(g, a, b)
	} else {
		lost, err = Greater(g, a, b)
	}
	if err != nil {
		return nil, err
	}
	zeros, err := zerosLike(g, msg)
	if err != nil {
		return nil, err
	}
	if index == 0 {
		return Where(g, lost, zeros, msg)
	}
	return Where(g, lost, msg, zeros)
}

// ForwardDiffParent implements graph.Operator.
func (op *BinaryOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	return op.BackwardDiffParent(msgs[index], index)
}
