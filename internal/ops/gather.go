package ops

import (
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/tensor"
)

// requireIndex checks that idx is an integer vector.
func requireIndex(name string, idx *graph.Node) error {
	if !idx.DType().IsInteger() {
		return graph.Constructionf(name, []*graph.Node{idx}, "index must be an integer type, got %s", idx.DType())
	}
	if idx.Shape().Rank() > 1 {
		return graph.Constructionf(name, []*graph.Node{idx}, "index must be a vector, got shape %s", idx.Shape())
	}
	return nil
}

// GatherOp selects rows of its parent: out[i] = x[idx[i]].
//
// The index is an argument. Backward scatters the gradient rows back into
// zeros shaped like x.
type GatherOp struct {
	base
}

// Gather returns the rows of x selected by idx, shaped (len(idx), x1, x2, x3).
func Gather(g *graph.Graph, x, idx *graph.Node) (*graph.Node, error) {
	if err := g.CheckAll(x, idx); err != nil {
		return nil, err
	}
	if err := requireIndex("gather", idx); err != nil {
		return nil, err
	}
	shape := x.Shape()
	shape[0] = idx.Shape()[0]
	op := &GatherOp{base: newBase(graph.NewBase(g, graph.KindGather, []*graph.Node{x}, []*graph.Node{idx}, shape, x.DType()))}
	return insert(g, op)
}

// Index returns the index argument.
func (op *GatherOp) Index() *graph.Node { return op.Arguments()[0] }

// Equals implements graph.Operator.
func (op *GatherOp) Equals(other graph.Operator) bool {
	o, ok := other.(*GatherOp)
	return ok && op.SameStructure(o)
}

// CopyTo implements graph.Operator.
func (op *GatherOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &GatherOp{base: b}, nil
}

// BackwardDiffParent implements graph.Operator.
func (op *GatherOp) BackwardDiffParent(msg *graph.Node, _ int) (*graph.Node, error) {
	g := op.Graph()
	zeros, err := zerosLike(g, op.Parents()[0])
	if err != nil {
		return nil, err
	}
	return ScatterAdd(g, zeros, op.Index(), msg)
}

// ForwardDiffParent implements graph.Operator.
func (op *GatherOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	return Gather(op.Graph(), msgs[index], op.Index())
}

// ScatterAddOp adds rows into a copy of its base: out = base; out[idx[i]] += rows[i].
// Repeated indices accumulate.
type ScatterAddOp struct {
	base
}

// ScatterAdd returns base with rows added at the positions in idx.
func ScatterAdd(g *graph.Graph, dst, idx, rows *graph.Node) (*graph.Node, error) {
	if err := g.CheckAll(dst, idx, rows); err != nil {
		return nil, err
	}
	if err := requireIndex("scatter_add", idx); err != nil {
		return nil, err
	}
	ds, rs := dst.Shape(), rows.Shape()
	if !rs[0].Equal(idx.Shape()[0]) || !ds[1].Equal(rs[1]) || !ds[2].Equal(rs[2]) || !ds[3].Equal(rs[3]) {
		return nil, graph.Constructionf("scatter_add", []*graph.Node{dst, idx, rows},
			"rows %s do not fit base %s with index %s", rs, ds, idx.Shape())
	}
	dtype := tensor.Promote(dst.DType(), rows.DType())
	if err := numeric(dtype); err != nil {
		return nil, graph.Constructionf("scatter_add", []*graph.Node{dst, rows}, "%v", err)
	}
	cd, cr, err := castPair(g, "scatter_add", dst, rows, dtype)
	if err != nil {
		return nil, err
	}
	op := &ScatterAddOp{base: newBase(graph.NewBase(g, graph.KindScatterAdd, []*graph.Node{cd, cr}, []*graph.Node{idx}, ds, dtype))}
	return insert(g, op)
}

// Index returns the index argument.
func (op *ScatterAddOp) Index() *graph.Node { return op.Arguments()[0] }

// Equals implements graph.Operator.
func (op *ScatterAddOp) Equals(other graph.Operator) bool {
	o, ok := other.(*ScatterAddOp)
	return ok && op.SameStructure(o)
}

// CopyTo implements graph.Operator.
func (op *ScatterAddOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &ScatterAddOp{base: b}, nil
}

// BackwardDiffParent passes the gradient through for the base and gathers
// it for the rows.
func (op *ScatterAddOp) BackwardDiffParent(msg *graph.Node, index int) (*graph.Node, error) {
	if index == 0 {
		return msg, nil
	}
	return Gather(op.Graph(), msg, op.Index())
}

// ForwardDiffParent scatters the row tangent into the base tangent when both
// are available, so the two contributions form a single node.
func (op *ScatterAddOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	dBase, dRows := msgs[0], msgs[1]
	if index == 0 {
		if dRows != nil {
			return nil, nil
		}
		return dBase, nil
	}
	if dBase == nil {
		var err error
		if dBase, err = zerosLike(g, op.Parents()[0]); err != nil {
			return nil, err
		}
	}
	return ScatterAdd(g, dBase, op.Index(), dRows)
}
