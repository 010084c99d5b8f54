package ops

import (
	"strconv"
	"strings"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/tensor"
)

// BroadcastOp expands size-1 dimensions of its parent to a target shape.
//
// Backward: sum the gradient over the expanded axes.
type BroadcastOp struct {
	base
}

// Broadcast expands x to shape. Broadcasting to the current shape returns x.
func Broadcast(g *graph.Graph, x *graph.Node, shape tensor.Shape) (*graph.Node, error) {
	if err := g.Check(x); err != nil {
		return nil, err
	}
	if x.Shape().Equal(shape) {
		return x, nil
	}
	if !x.Shape().CanBroadcastTo(shape) {
		return nil, graph.Constructionf("broadcast", []*graph.Node{x}, "cannot broadcast %s to %s", x.Shape(), shape)
	}
	op := &BroadcastOp{base: newBase(graph.NewBase(g, graph.KindBroadcast, []*graph.Node{x}, nil, shape, x.DType()))}
	return insert(g, op)
}

// Params renders the target shape.
func (op *BroadcastOp) Params() string { return "to=" + op.Shape().String() }

// Axes returns the expanded axes.
func (op *BroadcastOp) Axes() []int { return op.Parents()[0].Shape().BroadcastAxes(op.Shape()) }

// Equals implements graph.Operator.
func (op *BroadcastOp) Equals(other graph.Operator) bool {
	o, ok := other.(*BroadcastOp)
	return ok && op.SameStructure(o) && o.Shape().Equal(op.Shape())
}

// CopyTo implements graph.Operator.
func (op *BroadcastOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &BroadcastOp{base: b}, nil
}

// BackwardDiffParent sums over the broadcast axes.
func (op *BroadcastOp) BackwardDiffParent(msg *graph.Node, _ int) (*graph.Node, error) {
	return Sum(op.Graph(), msg, op.Axes()...)
}

// ForwardDiffParent broadcasts the tangent.
func (op *BroadcastOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	return Broadcast(op.Graph(), msgs[index], op.Shape())
}

// ReshapeOp reinterprets the row-major elements of its parent with another
// shape of the same symbolic element count.
type ReshapeOp struct {
	base
}

// Reshape returns x with a new shape.
func Reshape(g *graph.Graph, x *graph.Node, shape tensor.Shape) (*graph.Node, error) {
	if err := g.Check(x); err != nil {
		return nil, err
	}
	if x.Shape().Equal(shape) {
		return x, nil
	}
	if err := shape.Validate(); err != nil {
		return nil, graph.Constructionf("reshape", []*graph.Node{x}, "%v", err)
	}
	if !x.Shape().NumElements().Equal(shape.NumElements()) {
		return nil, graph.Constructionf("reshape", []*graph.Node{x}, "element count %s differs from %s",
			x.Shape().NumElements(), shape.NumElements())
	}
	op := &ReshapeOp{base: newBase(graph.NewBase(g, graph.KindReshape, []*graph.Node{x}, nil, shape, x.DType()))}
	return insert(g, op)
}

// Params renders the target shape.
func (op *ReshapeOp) Params() string { return "to=" + op.Shape().String() }

// Equals implements graph.Operator.
func (op *ReshapeOp) Equals(other graph.Operator) bool {
	o, ok := other.(*ReshapeOp)
	return ok && op.SameStructure(o) && o.Shape().Equal(op.Shape())
}

// CopyTo implements graph.Operator.
func (op *ReshapeOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &ReshapeOp{base: b}, nil
}

// BackwardDiffParent reshapes the gradient back.
func (op *ReshapeOp) BackwardDiffParent(msg *graph.Node, _ int) (*graph.Node, error) {
	return Reshape(op.Graph(), msg, op.Parents()[0].Shape())
}

// ForwardDiffParent reshapes the tangent.
func (op *ReshapeOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	return Reshape(op.Graph(), msgs[index], op.Shape())
}

// TransposeOp permutes the axes of its parent: out.dim[i] = in.dim[perm[i]].
type TransposeOp struct {
	base
	perm [tensor.MaxRank]int
}

// MatrixTranspose swaps the first two axes.
var MatrixTranspose = [tensor.MaxRank]int{1, 0, 2, 3}

// Transpose permutes the axes of x. The identity permutation returns x.
func Transpose(g *graph.Graph, x *graph.Node, perm [tensor.MaxRank]int) (*graph.Node, error) {
	if err := g.Check(x); err != nil {
		return nil, err
	}
	seen := [tensor.MaxRank]bool{}
	identity := true
	for i, p := range perm {
		if p < 0 || p >= tensor.MaxRank || seen[p] {
			return nil, graph.Constructionf("transpose", []*graph.Node{x}, "invalid permutation %v", perm)
		}
		seen[p] = true
		identity = identity && p == i
	}
	if identity {
		return x, nil
	}
	var shape tensor.Shape
	for i, p := range perm {
		shape[i] = x.Shape()[p]
	}
	op := &TransposeOp{
		base: newBase(graph.NewBase(g, graph.KindTranspose, []*graph.Node{x}, nil, shape, x.DType())),
		perm: perm,
	}
	return insert(g, op)
}

// T swaps the first two axes of x.
func T(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return Transpose(g, x, MatrixTranspose)
}

// Perm returns the permutation.
func (op *TransposeOp) Perm() [tensor.MaxRank]int { return op.perm }

// Params renders the permutation.
func (op *TransposeOp) Params() string { return "perm=" + joinInts(op.perm[:]) }

// Equals implements graph.Operator.
func (op *TransposeOp) Equals(other graph.Operator) bool {
	o, ok := other.(*TransposeOp)
	return ok && op.SameStructure(o) && o.perm == op.perm
}

// CopyTo implements graph.Operator.
func (op *TransposeOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &TransposeOp{base: b, perm: op.perm}, nil
}

// BackwardDiffParent applies the inverse permutation.
func (op *TransposeOp) BackwardDiffParent(msg *graph.Node, _ int) (*graph.Node, error) {
	var inv [tensor.MaxRank]int
	for i, p := range op.perm {
		inv[p] = i
	}
	return Transpose(op.Graph(), msg, inv)
}

// ForwardDiffParent transposes the tangent.
func (op *TransposeOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	return Transpose(op.Graph(), msgs[index], op.perm)
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = strconv.Itoa(x)
	}
	return strings.Join(parts, ",")
}

// normalizeAxes validates axes, drops duplicates and axes whose dimension
// is already 1, and returns them sorted. No axes means all axes.
func normalizeAxes(name string, x *graph.Node, axes []int) ([]int, error) {
	if len(axes) == 0 {
		axes = []int{0, 1, 2, 3}
	}
	var keep [tensor.MaxRank]bool
	for _, a := range axes {
		if a < 0 || a >= tensor.MaxRank {
			return nil, graph.Constructionf(name, []*graph.Node{x}, "axis %d out of range [0, %d)", a, tensor.MaxRank)
		}
		keep[a] = true
	}
	out := make([]int, 0, tensor.MaxRank)
	for a := range keep {
		if keep[a] && !x.Shape()[a].IsOne() {
			out = append(out, a)
		}
	}
	return out, nil
}
