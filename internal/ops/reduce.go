package ops

import (
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/symbolic"
)

// ReduceOp collapses axes of its parent to size 1 (sum or max).
//
// Backward:
//   - sum: broadcast the gradient back to the input shape
//   - max: broadcast the gradient to the positions equal to the maximum,
//     split evenly between ties
type ReduceOp struct {
	base
	axes []int
}

// Sum adds the elements of x over axes (all axes when none are given).
func Sum(g *graph.Graph, x *graph.Node, axes ...int) (*graph.Node, error) {
	return reduce(g, graph.KindSum, x, axes)
}

// Max takes the maximum of x over axes (all axes when none are given).
func Max(g *graph.Graph, x *graph.Node, axes ...int) (*graph.Node, error) {
	return reduce(g, graph.KindMax, x, axes)
}

// Mean averages x over axes as Sum(x) / count, where count may be symbolic.
func Mean(g *graph.Graph, x *graph.Node, axes ...int) (*graph.Node, error) {
	if err := g.Check(x); err != nil {
		return nil, err
	}
	if err := floating(x.DType()); err != nil {
		return nil, graph.Constructionf("mean", []*graph.Node{x}, "%v", err)
	}
	norm, err := normalizeAxes("mean", x, axes)
	if err != nil {
		return nil, err
	}
	count := symbolic.Const(1)
	for _, a := range norm {
		count = count.Mul(x.Shape()[a])
	}
	s, err := Sum(g, x, norm...)
	if err != nil {
		return nil, err
	}
	if count.IsOne() {
		return s, nil
	}
	c, err := SymbolValue(g, count, x.DType(), s.Shape())
	if err != nil {
		return nil, err
	}
	return Div(g, s, c)
}

func reduce(g *graph.Graph, kind graph.Kind, x *graph.Node, axes []int) (*graph.Node, error) {
	if err := g.Check(x); err != nil {
		return nil, err
	}
	if err := numeric(x.DType()); err != nil {
		return nil, graph.Constructionf(kind.String(), []*graph.Node{x}, "%v", err)
	}
	norm, err := normalizeAxes(kind.String(), x, axes)
	if err != nil {
		return nil, err
	}
	if len(norm) == 0 {
		return x, nil
	}
	shape := x.Shape()
	for _, a := range norm {
		shape[a] = symbolic.Const(1)
	}
	op := &ReduceOp{
		base: newBase(graph.NewBase(g, kind, []*graph.Node{x}, nil, shape, x.DType())),
		axes: norm,
	}
	return insert(g, op)
}

// Axes returns the reduced axes in ascending order.
func (op *ReduceOp) Axes() []int { return append([]int(nil), op.axes...) }

// Params renders the axes.
func (op *ReduceOp) Params() string { return "axes=" + joinInts(op.axes) }

// Equals implements graph.Operator.
func (op *ReduceOp) Equals(other graph.Operator) bool {
	o, ok := other.(*ReduceOp)
	if !ok || !op.SameStructure(o) || len(o.axes) != len(op.axes) {
		return false
	}
	for i := range op.axes {
		if op.axes[i] != o.axes[i] {
			return false
		}
	}
	return true
}

// CopyTo implements graph.Operator.
func (op *ReduceOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &ReduceOp{base: b, axes: op.Axes()}, nil
}

// BackwardDiffParent implements graph.Operator.
func (op *ReduceOp) BackwardDiffParent(msg *graph.Node, _ int) (*graph.Node, error) {
	g := op.Graph()
	x := op.Parents()[0]
	gb, err := Broadcast(g, msg, x.Shape())
	if err != nil {
		return nil, err
	}
	if op.Kind() == graph.KindSum {
		return gb, nil
	}
	w, err := op.maxWeights()
	if err != nil {
		return nil, err
	}
	return Mul(g, gb, w)
}

// ForwardDiffParent implements graph.Operator.
func (op *ReduceOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	t := msgs[index]
	if op.Kind() == graph.KindSum {
		return Sum(g, t, op.axes...)
	}
	w, err := op.maxWeights()
	if err != nil {
		return nil, err
	}
	tw, err := Mul(g, t, w)
	if err != nil {
		return nil, err
	}
	return Sum(g, tw, op.axes...)
}

// maxWeights returns mask/count where mask marks the positions of x equal
// to the reduced maximum and count is the number of such positions.
func (op *ReduceOp) maxWeights() (*graph.Node, error) {
	g := op.Graph()
	x := op.Parents()[0]
	y, err := owner(&op.base)
	if err != nil {
		return nil, err
	}
	yb, err := Broadcast(g, y, x.Shape())
	if err != nil {
		return nil, err
	}
	eq, err := Equal(g, x, yb)
	if err != nil {
		return nil, err
	}
	mask, err := Cast(g, eq, x.DType())
	if err != nil {
		return nil, err
	}
	cnt, err := Sum(g, mask, op.axes...)
	if err != nil {
		return nil, err
	}
	cntb, err := Broadcast(g, cnt, x.Shape())
	if err != nil {
		return nil, err
	}
	return Div(g, mask, cntb)
}
