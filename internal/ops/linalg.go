package ops

import (
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/symbolic"
	"github.com/born-ml/symgraph/internal/tensor"
)

// requireMatrix checks that x has rank at most 2.
func requireMatrix(name string, x *graph.Node) error {
	if x.Shape().Rank() > 2 {
		return graph.Constructionf(name, []*graph.Node{x}, "expects a matrix (rank <= 2), got shape %s", x.Shape())
	}
	return nil
}

// requireSquare checks that x is a square matrix.
func requireSquare(name string, x *graph.Node) error {
	if err := requireMatrix(name, x); err != nil {
		return err
	}
	if !x.Shape()[0].Equal(x.Shape()[1]) {
		return graph.Constructionf(name, []*graph.Node{x}, "expects a square matrix, got shape %s", x.Shape())
	}
	return nil
}

// matShape returns (rows, cols, 1, 1).
func matShape(rows, cols symbolic.Poly) tensor.Shape {
	s := tensor.Scalar()
	s[0], s[1] = rows, cols
	return s
}

// MatMulOp is the matrix product of two parents: (M,K) @ (K,N) -> (M,N).
//
// Backward pass:
//   - grad_a = g @ b^T
//   - grad_b = a^T @ g
type MatMulOp struct {
	base
}

// MatMul returns a @ b.
func MatMul(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	if err := g.CheckAll(a, b); err != nil {
		return nil, err
	}
	if err := requireMatrix("matmul", a); err != nil {
		return nil, err
	}
	if err := requireMatrix("matmul", b); err != nil {
		return nil, err
	}
	if !a.Shape()[1].Equal(b.Shape()[0]) {
		return nil, graph.Constructionf("matmul", []*graph.Node{a, b}, "inner dimensions differ: %s vs %s", a.Shape(), b.Shape())
	}
	// Shapes are checked above; coerce only unifies the dtypes here.
	dtype := tensor.Promote(a.DType(), b.DType())
	if err := numeric(dtype); err != nil {
		return nil, graph.Constructionf("matmul", []*graph.Node{a, b}, "%v", err)
	}
	ca, cb, err := castPair(g, "matmul", a, b, dtype)
	if err != nil {
		return nil, err
	}
	shape := matShape(a.Shape()[0], b.Shape()[1])
	op := &MatMulOp{base: newBase(graph.NewBase(g, graph.KindMatMul, []*graph.Node{ca, cb}, nil, shape, dtype))}
	return insert(g, op)
}

// castPair casts a and b to dtype under the cast policy.
func castPair(g *graph.Graph, name string, a, b *graph.Node, dtype tensor.DataType) (*graph.Node, *graph.Node, error) {
	if a.DType() == dtype && b.DType() == dtype {
		return a, b, nil
	}
	if err := g.ApplyPolicy(graph.TriggerCast, "%s: implicit cast to %s", name, dtype); err != nil {
		return nil, nil, err
	}
	ca, err := Cast(g, a, dtype)
	if err != nil {
		return nil, nil, err
	}
	cb, err := Cast(g, b, dtype)
	if err != nil {
		return nil, nil, err
	}
	return ca, cb, nil
}

// Equals implements graph.Operator.
func (op *MatMulOp) Equals(other graph.Operator) bool {
	o, ok := other.(*MatMulOp)
	return ok && op.SameStructure(o)
}

// CopyTo implements graph.Operator.
func (op *MatMulOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &MatMulOp{base: b}, nil
}

// BackwardDiffParent implements graph.Operator.
func (op *MatMulOp) BackwardDiffParent(msg *graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	a, b := op.Parents()[0], op.Parents()[1]
	if index == 0 {
		bt, err := T(g, b)
		if err != nil {
			return nil, err
		}
		return MatMul(g, msg, bt)
	}
	at, err := T(g, a)
	if err != nil {
		return nil, err
	}
	return MatMul(g, at, msg)
}

// ForwardDiffParent implements graph.Operator.
func (op *MatMulOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	a, b := op.Parents()[0], op.Parents()[1]
	if index == 0 {
		return MatMul(g, msgs[0], b)
	}
	return MatMul(g, a, msgs[1])
}

// SolveOp solves A X = B for X with A square.
//
// Backward pass (X = output):
//
//	grad_B = solve(A^T, g)
//	grad_A = -grad_B @ X^T
//
// Forward pass:
//
//	dX = solve(A, dB - dA @ X)
//
// When only one of dA, dB is available the missing term is dropped rather
// than materialized as zeros.
type SolveOp struct {
	base
}

// Solve returns X with A X = B.
func Solve(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	if err := g.CheckAll(a, b); err != nil {
		return nil, err
	}
	if err := requireSquare("solve", a); err != nil {
		return nil, err
	}
	if err := requireMatrix("solve", b); err != nil {
		return nil, err
	}
	if !a.Shape()[1].Equal(b.Shape()[0]) {
		return nil, graph.Constructionf("solve", []*graph.Node{a, b}, "right-hand side %s does not match %s", b.Shape(), a.Shape())
	}
	dtype := tensor.Promote(a.DType(), b.DType())
	if err := floating(dtype); err != nil {
		return nil, graph.Constructionf("solve", []*graph.Node{a, b}, "%v", err)
	}
	ca, cb, err := castPair(g, "solve", a, b, dtype)
	if err != nil {
		return nil, err
	}
	op := &SolveOp{base: newBase(graph.NewBase(g, graph.KindSolve, []*graph.Node{ca, cb}, nil, cb.Shape(), dtype))}
	return insert(g, op)
}

// Equals implements graph.Operator.
func (op *SolveOp) Equals(other graph.Operator) bool {
	o, ok := other.(*SolveOp)
	return ok && op.SameStructure(o)
}

// CopyTo implements graph.Operator.
func (op *SolveOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &SolveOp{base: b}, nil
}

// BackwardDiffParent implements graph.Operator. Both parents share the
// node solve(A^T, g), which interning deduplicates.
func (op *SolveOp) BackwardDiffParent(msg *graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	a := op.Parents()[0]
	at, err := T(g, a)
	if err != nil {
		return nil, err
	}
	gb, err := Solve(g, at, msg)
	if err != nil {
		return nil, err
	}
	if index == 1 {
		return gb, nil
	}
	x, err := owner(&op.base)
	if err != nil {
		return nil, err
	}
	xt, err := T(g, x)
	if err != nil {
		return nil, err
	}
	ga, err := MatMul(g, gb, xt)
	if err != nil {
		return nil, err
	}
	return Neg(g, ga)
}

// ForwardDiffParent implements graph.Operator.
func (op *SolveOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	a := op.Parents()[0]
	dA, dB := msgs[0], msgs[1]

	if index == 0 && dB != nil {
		// Accounted for by the right-hand side contribution.
		return nil, nil
	}
	rhs := dB
	if dA != nil {
		x, err := owner(&op.base)
		if err != nil {
			return nil, err
		}
		ax, err := MatMul(g, dA, x)
		if err != nil {
			return nil, err
		}
		if dB != nil {
			rhs, err = Sub(g, dB, ax)
		} else {
			rhs, err = Neg(g, ax)
		}
		if err != nil {
			return nil, err
		}
	}
	return Solve(g, a, rhs)
}

// InverseOp is the inverse of a square matrix.
//
// Backward: grad_A = -Y^T @ g @ Y^T with Y = A^-1.
// Forward: dY = -Y @ dA @ Y.
type InverseOp struct {
	base
}

// Inverse returns A^-1.
func Inverse(g *graph.Graph, a *graph.Node) (*graph.Node, error) {
	if err := g.Check(a); err != nil {
		return nil, err
	}
	if err := requireSquare("inverse", a); err != nil {
		return nil, err
	}
	if err := floating(a.DType()); err != nil {
		return nil, graph.Constructionf("inverse", []*graph.Node{a}, "%v", err)
	}
	op := &InverseOp{base: newBase(graph.NewBase(g, graph.KindInverse, []*graph.Node{a}, nil, a.Shape(), a.DType()))}
	return insert(g, op)
}

// Equals implements graph.Operator.
func (op *InverseOp) Equals(other graph.Operator) bool {
	o, ok := other.(*InverseOp)
	return ok && op.SameStructure(o)
}

// CopyTo implements graph.Operator.
func (op *InverseOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &InverseOp{base: b}, nil
}

// BackwardDiffParent implements graph.Operator.
func (op *InverseOp) BackwardDiffParent(msg *graph.Node, _ int) (*graph.Node, error) {
	g := op.Graph()
	y, err := owner(&op.base)
	if err != nil {
		return nil, err
	}
	yt, err := T(g, y)
	if err != nil {
		return nil, err
	}
	t, err := MatMul(g, msg, yt)
	if err != nil {
		return nil, err
	}
	t, err = MatMul(g, yt, t)
	if err != nil {
		return nil, err
	}
	return Neg(g, t)
}

// ForwardDiffParent implements graph.Operator.
func (op *InverseOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	y, err := owner(&op.base)
	if err != nil {
		return nil, err
	}
	t, err := MatMul(g, msgs[index], y)
	if err != nil {
		return nil, err
	}
	t, err = MatMul(g, y, t)
	if err != nil {
		return nil, err
	}
	return Neg(g, t)
}
