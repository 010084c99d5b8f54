// Package ops defines the operator family of the symbolic graph.
//
// Every constructor takes the graph explicitly, validates its operands,
// derives the output shape and dtype, and hands the operator to
// graph.Insert, which interns or appends it. Validation always completes
// before the first node is inserted, so a failing constructor leaves the
// graph unchanged.
//
// Supported operations:
//   - Leaves: Input, Parameter, Constant, SymbolValue
//   - Elementwise binary: Add, Sub, Mul, Div, Pow, Maximum, Minimum
//   - Elementwise unary: Neg, Exp, Log, Sqrt, Sin, Cos, Tanh, Sigmoid, Abs, Sign
//   - Logical: Greater, Less, Equal, And, Or, Not (never differentiable)
//   - Selection and casting: Where, Cast
//   - Shape: Broadcast, Reshape, Transpose
//   - Reductions: Sum, Max, Mean
//   - Linear algebra: MatMul, Solve, Inverse
//   - Indexing: Gather, ScatterAdd
//
// Binary operators broadcast and cast implicitly by inserting explicit
// Broadcast and Cast nodes, governed by the graph policies.
package ops

import (
	"github.com/born-ml/symgraph/internal/graph"
)

// base adds the default differentiation rules to graph.Base.
type base struct {
	graph.Base
}

// BackwardDiffParent is only reached when a non-differentiable operator
// ends up inside a flow tree, which is an engine bug.
func (b *base) BackwardDiffParent(_ *graph.Node, index int) (*graph.Node, error) {
	return nil, graph.Internalf(b.Name(), "backward pass reached non-differentiable parent %d", index)
}

// ForwardDiffParent mirrors BackwardDiffParent for forward mode.
func (b *base) ForwardDiffParent(_ []*graph.Node, index int) (*graph.Node, error) {
	return nil, graph.Internalf(b.Name(), "forward pass reached non-differentiable parent %d", index)
}

// BackwardDiffCombine sums the messages.
func (b *base) BackwardDiffCombine(msgs []*graph.Node) (*graph.Node, error) {
	return sumMessages(b.Graph(), b.Name(), msgs)
}

// ForwardDiffCombine sums the contributions.
func (b *base) ForwardDiffCombine(msgs []*graph.Node) (*graph.Node, error) {
	return sumMessages(b.Graph(), b.Name(), msgs)
}

// sumMessages is the identity for one message and a sum for several.
// Combining zero messages is an engine bug.
func sumMessages(g *graph.Graph, op string, msgs []*graph.Node) (*graph.Node, error) {
	switch len(msgs) {
	case 0:
		return nil, graph.Internalf(op, "combine called with no messages")
	case 1:
		return msgs[0], nil
	}
	acc := msgs[0]
	for _, m := range msgs[1:] {
		var err error
		if acc, err = Add(g, acc, m); err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// newBase is a shorthand for graph.NewBase wrapped in base.
func newBase(b graph.Base) base {
	return base{Base: b}
}

// rebind translates the bookkeeping of op into g for CopyTo.
func rebind(op *base, g *graph.Graph, ancestors []*graph.Node) (base, error) {
	b, err := op.Rebind(g, ancestors)
	if err != nil {
		return base{}, err
	}
	return newBase(b), nil
}

// insert hands a fully derived operator to the graph.
func insert(g *graph.Graph, op graph.Operator) (*graph.Node, error) {
	return g.Insert(op, "")
}

// owner returns the node produced by op, used by rules that reuse the
// forward value (exp, sqrt, solve, ...).
func owner(op *base) (*graph.Node, error) {
	return op.OwnerNode()
}

// zerosLike returns a zero constant with the shape and dtype of n.
func zerosLike(g *graph.Graph, n *graph.Node) (*graph.Node, error) {
	return Constant(g, 0, n.DType(), n.Shape())
}

// onesLike returns a constant one with the shape and dtype of n.
func onesLike(g *graph.Graph, n *graph.Node) (*graph.Node, error) {
	return Constant(g, 1, n.DType(), n.Shape())
}
