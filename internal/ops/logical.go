package ops

import (
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/tensor"
)

// LogicalOp is a comparison or boolean operation. All its operands are
// arguments, so gradients never flow through it.
type LogicalOp struct {
	base
}

// Greater returns a > b.
func Greater(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return logical(g, graph.KindGreater, numeric, a, b)
}

// Less returns a < b.
func Less(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return logical(g, graph.KindLess, numeric, a, b)
}

// Equal returns a == b.
func Equal(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return logical(g, graph.KindEqual, nil, a, b)
}

// And returns a && b for bool operands.
func And(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return logical(g, graph.KindAnd, boolean, a, b)
}

// Or returns a || b for bool operands.
func Or(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return logical(g, graph.KindOr, boolean, a, b)
}

// Not returns !a for a bool operand.
func Not(g *graph.Graph, a *graph.Node) (*graph.Node, error) {
	return logical(g, graph.KindNot, boolean, a)
}

func logical(g *graph.Graph, kind graph.Kind, accept func(tensor.DataType) error, operands ...*graph.Node) (*graph.Node, error) {
	c, err := coerce(g, kind.String(), operands, 0, accept)
	if err != nil {
		return nil, err
	}
	op := &LogicalOp{base: newBase(graph.NewBase(g, kind, nil, c.nodes, c.shape, tensor.Bool8))}
	return insert(g, op)
}

// Equals implements graph.Operator.
func (op *LogicalOp) Equals(other graph.Operator) bool {
	o, ok := other.(*LogicalOp)
	return ok && op.SameStructure(o)
}

// CopyTo implements graph.Operator.
func (op *LogicalOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &LogicalOp{base: b}, nil
}

// WhereOp selects elementwise between two parents: out = cond ? a : b.
//
// Backward:
//
//	grad_a = where(cond, g, 0)
//	grad_b = where(cond, 0, g)
//
// The condition is an argument and receives no gradient.
type WhereOp struct {
	base
}

// Where returns cond ? a : b. cond must be bool.
func Where(g *graph.Graph, cond, a, b *graph.Node) (*graph.Node, error) {
	if err := g.Check(cond); err != nil {
		return nil, err
	}
	if err := boolean(cond.DType()); err != nil {
		return nil, graph.Constructionf("where", []*graph.Node{cond}, "condition %v", err)
	}
	c, err := coerce(g, "where", []*graph.Node{cond, a, b}, 1, nil)
	if err != nil {
		return nil, err
	}
	parents := []*graph.Node{c.nodes[1], c.nodes[2]}
	op := &WhereOp{base: newBase(graph.NewBase(g, graph.KindWhere, parents, c.nodes[:1], c.shape, c.dtype))}
	return insert(g, op)
}

// Condition returns the condition argument.
func (op *WhereOp) Condition() *graph.Node { return op.Arguments()[0] }

// Equals implements graph.Operator.
func (op *WhereOp) Equals(other graph.Operator) bool {
	o, ok := other.(*WhereOp)
	return ok && op.SameStructure(o)
}

// CopyTo implements graph.Operator.
func (op *WhereOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &WhereOp{base: b}, nil
}

// BackwardDiffParent implements graph.Operator.
func (op *WhereOp) BackwardDiffParent(msg *graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	zeros, err := zerosLike(g, msg)
	if err != nil {
		return nil, err
	}
	if index == 0 {
		return Where(g, op.Condition(), msg, zeros)
	}
	return Where(g, op.Condition(), zeros, msg)
}

// ForwardDiffParent implements graph.Operator.
func (op *WhereOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	return op.BackwardDiffParent(msgs[index], index)
}

// CastOp converts its parent to another dtype. It is differentiable only
// between float types.
type CastOp struct {
	base
}

// Cast converts x to dtype. Casting to the current dtype returns x.
func Cast(g *graph.Graph, x *graph.Node, dtype tensor.DataType) (*graph.Node, error) {
	if err := g.Check(x); err != nil {
		return nil, err
	}
	if x.DType() == dtype {
		return x, nil
	}
	op := &CastOp{base: newBase(graph.NewBase(g, graph.KindCast, []*graph.Node{x}, nil, x.Shape(), dtype))}
	return insert(g, op)
}

// Params renders the target dtype.
func (op *CastOp) Params() string { return "to=" + op.DType().String() }

// Equals implements graph.Operator.
func (op *CastOp) Equals(other graph.Operator) bool {
	o, ok := other.(*CastOp)
	return ok && op.SameStructure(o) && o.DType() == op.DType()
}

// CopyTo implements graph.Operator.
func (op *CastOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &CastOp{base: b}, nil
}

// BackwardDiffParent casts the gradient back to the input dtype.
func (op *CastOp) BackwardDiffParent(msg *graph.Node, _ int) (*graph.Node, error) {
	return Cast(op.Graph(), msg, op.Parents()[0].DType())
}

// ForwardDiffParent casts the tangent to the output dtype.
func (op *CastOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	return Cast(op.Graph(), msgs[index], op.DType())
}
