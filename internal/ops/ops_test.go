package ops_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
	"github.com/born-ml/symgraph/internal/symbolic"
	"github.com/born-ml/symgraph/internal/tensor"
)

func dims(t *testing.T, d ...int) tensor.Shape {
	t.Helper()
	s, err := tensor.Dims(d...)
	require.NoError(t, err)
	return s
}

func symShape(t *testing.T, d ...symbolic.Poly) tensor.Shape {
	t.Helper()
	s, err := tensor.NewShape(d...)
	require.NoError(t, err)
	return s
}

func input(t *testing.T, g *graph.Graph, name string, dt tensor.DataType, s tensor.Shape) *graph.Node {
	t.Helper()
	n, err := ops.Input(g, name, dt, s)
	require.NoError(t, err)
	return n
}

func TestInterning_SameOperatorSameID(t *testing.T) {
	g := graph.New()
	x := input(t, g, "x", tensor.Float32, dims(t, 3))
	y := input(t, g, "y", tensor.Float32, dims(t, 3))

	a, err := ops.Add(g, x, y)
	require.NoError(t, err)
	b, err := ops.Add(g, x, y)
	require.NoError(t, err)
	assert.Equal(t, a.ID(), b.ID())

	// Commutative kinds also match swapped parents.
	c, err := ops.Add(g, y, x)
	require.NoError(t, err)
	assert.Equal(t, a.ID(), c.ID())

	d, err := ops.Sub(g, x, y)
	require.NoError(t, err)
	e, err := ops.Sub(g, y, x)
	require.NoError(t, err)
	assert.NotEqual(t, d.ID(), e.ID())

	assert.Equal(t, 5, g.Len())
}

func TestInterning_ParamsDistinguish(t *testing.T) {
	g := graph.New()
	x := input(t, g, "x", tensor.Float32, dims(t, 2, 3))

	s0, err := ops.Sum(g, x, 0)
	require.NoError(t, err)
	s1, err := ops.Sum(g, x, 1)
	require.NoError(t, err)
	s0again, err := ops.Sum(g, x, 0)
	require.NoError(t, err)

	assert.NotEqual(t, s0.ID(), s1.ID())
	assert.Equal(t, s0.ID(), s0again.ID())
}

func TestInterning_LeavesNeverMerge(t *testing.T) {
	g := graph.New()
	a, err := ops.Scalar(g, 1, tensor.Float32)
	require.NoError(t, err)
	b, err := ops.Scalar(g, 1, tensor.Float32)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestBroadcast_InsertsNodeOnlyForSmallerOperand(t *testing.T) {
	g := graph.New()
	m, n := symbolic.Sym("M"), symbolic.Sym("N")
	a := input(t, g, "a", tensor.Float32, symShape(t, symbolic.Const(1), n))
	b := input(t, g, "b", tensor.Float32, symShape(t, m, n))

	before := g.Len()
	sum, err := ops.Add(g, a, b)
	require.NoError(t, err)

	assert.True(t, sum.Shape().Equal(symShape(t, m, n)))
	assert.Equal(t, "(M, N, 1, 1)", sum.Shape().String())
	assert.Equal(t, before+2, g.Len())

	bcasts := g.NodesByKind(graph.KindBroadcast)
	require.Len(t, bcasts, 1)
	assert.Same(t, a, bcasts[0].Op().Parents()[0])

	parents := sum.Op().Parents()
	assert.Same(t, bcasts[0], parents[0])
	assert.Same(t, b, parents[1])
}

func TestBroadcast_Incompatible(t *testing.T) {
	g := graph.New()
	a := input(t, g, "a", tensor.Float32, dims(t, 2, 3))
	b := input(t, g, "b", tensor.Float32, dims(t, 4, 3))

	before := g.Len()
	_, err := ops.Add(g, a, b)
	var ce *graph.ConstructionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "add", ce.Op)
	assert.Equal(t, before, g.Len())
}

func TestPolicy_BroadcastRaise(t *testing.T) {
	g := graph.New(graph.WithBroadcastPolicy(graph.PolicyRaise))
	a := input(t, g, "a", tensor.Float32, dims(t, 1, 3))
	b := input(t, g, "b", tensor.Float32, dims(t, 2, 3))

	before := g.Len()
	_, err := ops.Mul(g, a, b)
	var pe *graph.PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, graph.TriggerBroadcast, pe.Trigger)
	assert.Equal(t, before, g.Len())
}

func TestPolicy_CastRaiseLeavesGraphUnchanged(t *testing.T) {
	// The cast is validated before any broadcast node could be inserted.
	g := graph.New(graph.WithCastPolicy(graph.PolicyRaise))
	a := input(t, g, "a", tensor.Float32, dims(t, 1, 3))
	b := input(t, g, "b", tensor.Int32, dims(t, 2, 3))

	before := g.Len()
	_, err := ops.Add(g, a, b)
	var pe *graph.PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, graph.TriggerCast, pe.Trigger)
	assert.Equal(t, before, g.Len())
}

func TestPolicy_CastWarnLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	g := graph.New(graph.WithLogger(logger), graph.WithCastPolicy(graph.PolicyWarn))
	a := input(t, g, "a", tensor.Float32, dims(t, 3))
	b := input(t, g, "b", tensor.Int32, dims(t, 3))

	out, err := ops.Add(g, a, b)
	require.NoError(t, err)
	assert.Equal(t, tensor.Float32, out.DType())
	assert.Len(t, g.NodesByKind(graph.KindCast), 1)
	assert.Contains(t, buf.String(), "implicit cast to float32")
}

func TestConstructionErrors(t *testing.T) {
	g := graph.New()
	m23 := input(t, g, "m23", tensor.Float32, dims(t, 2, 3))
	m33 := input(t, g, "m33", tensor.Float32, dims(t, 3, 3))
	ints := input(t, g, "i", tensor.Int32, dims(t, 3))
	flags := input(t, g, "f", tensor.Bool8, dims(t, 3))
	cube := input(t, g, "c", tensor.Float32, dims(t, 2, 2, 2))

	tests := []struct {
		name string
		fn   func() (*graph.Node, error)
		op   string
	}{
		{"matmul inner", func() (*graph.Node, error) { return ops.MatMul(g, m23, m23) }, "matmul"},
		{"matmul rank", func() (*graph.Node, error) { return ops.MatMul(g, cube, m33) }, "matmul"},
		{"solve square", func() (*graph.Node, error) { return ops.Solve(g, m23, m33) }, "solve"},
		{"inverse square", func() (*graph.Node, error) { return ops.Inverse(g, m23) }, "inverse"},
		{"exp int", func() (*graph.Node, error) { return ops.Exp(g, ints) }, "exp"},
		{"and float", func() (*graph.Node, error) { return ops.And(g, m33, m33) }, "and"},
		{"add bool", func() (*graph.Node, error) { return ops.Add(g, flags, flags) }, "add"},
		{"where cond", func() (*graph.Node, error) { return ops.Where(g, ints, ints, ints) }, "where"},
		{"reshape count", func() (*graph.Node, error) { return ops.Reshape(g, m23, dims(t, 5)) }, "reshape"},
		{"sum axis", func() (*graph.Node, error) { return ops.Sum(g, m23, 7) }, "sum"},
		{"gather index", func() (*graph.Node, error) { return ops.Gather(g, m33, m33) }, "gather"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := g.Len()
			_, err := tt.fn()
			var ce *graph.ConstructionError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.op, ce.Op)
			assert.Equal(t, before, g.Len())
		})
	}
}

func TestExpiredHandle(t *testing.T) {
	g := graph.New()
	x := input(t, g, "x", tensor.Float32, dims(t, 3))
	h := x.Handle()

	n, err := h.Deref()
	require.NoError(t, err)
	assert.Same(t, x, n)

	g.Release()
	_, err = h.Deref()
	assert.ErrorIs(t, err, graph.ErrExpired)

	_, err = ops.Neg(g, x)
	assert.ErrorIs(t, err, graph.ErrExpired)
}

func TestForeignNode(t *testing.T) {
	g1 := graph.New(graph.WithName("one"))
	g2 := graph.New(graph.WithName("two"))
	x := input(t, g1, "x", tensor.Float32, dims(t, 3))
	y := input(t, g2, "y", tensor.Float32, dims(t, 3))

	_, err := ops.Add(g2, x, y)
	assert.True(t, errors.Is(err, graph.ErrForeignNode))
}

func TestFlags(t *testing.T) {
	g := graph.New()
	x := input(t, g, "x", tensor.Float32, dims(t, 3))
	w, err := ops.Parameter(g, "w", tensor.Float32, dims(t, 3), 0.5)
	require.NoError(t, err)
	c, err := ops.Constant(g, 2, tensor.Float32, dims(t, 3))
	require.NoError(t, err)

	assert.True(t, x.IsInputDependent())
	assert.True(t, x.IsDifferentiable())
	assert.False(t, w.IsInputDependent())
	assert.True(t, w.IsDifferentiable())
	assert.False(t, c.IsDifferentiable())

	wc, err := ops.Mul(g, w, c)
	require.NoError(t, err)
	assert.False(t, wc.IsInputDependent())
	assert.True(t, wc.IsDifferentiable())

	xx, err := ops.Mul(g, x, x)
	require.NoError(t, err)
	assert.True(t, xx.IsInputDependent())

	cmp, err := ops.Greater(g, x, c)
	require.NoError(t, err)
	assert.False(t, cmp.IsDifferentiable())
	assert.Empty(t, cmp.Op().Parents())
	assert.Len(t, cmp.Op().Arguments(), 2)
	assert.Equal(t, tensor.Bool8, cmp.DType())

	sel, err := ops.Where(g, cmp, x, c)
	require.NoError(t, err)
	assert.True(t, sel.IsDifferentiable())
	assert.True(t, sel.IsInputDependent())

	cc, err := ops.Mul(g, c, c)
	require.NoError(t, err)
	assert.False(t, cc.IsDifferentiable())
}

func TestGradLevel(t *testing.T) {
	g := graph.New()
	x := input(t, g, "x", tensor.Float32, dims(t, 3))
	seed, err := ops.ConstantAtLevel(g, 1, tensor.Float32, dims(t, 3), 2)
	require.NoError(t, err)

	y, err := ops.Mul(g, x, seed)
	require.NoError(t, err)
	assert.Equal(t, 0, x.GradLevel())
	assert.Equal(t, 2, y.GradLevel())
}

func TestShapes(t *testing.T) {
	g := graph.New()
	n := symbolic.Sym("n")
	x := input(t, g, "x", tensor.Float32, symShape(t, n, symbolic.Const(3)))
	w := input(t, g, "w", tensor.Float32, dims(t, 3, 2))
	idx := input(t, g, "idx", tensor.Int64, dims(t, 5))

	mm, err := ops.MatMul(g, x, w)
	require.NoError(t, err)
	assert.Equal(t, "(n, 2, 1, 1)", mm.Shape().String())

	tr, err := ops.T(g, mm)
	require.NoError(t, err)
	assert.Equal(t, "(2, n, 1, 1)", tr.Shape().String())

	s, err := ops.Sum(g, x, 0)
	require.NoError(t, err)
	assert.Equal(t, "(1, 3, 1, 1)", s.Shape().String())

	mean, err := ops.Mean(g, x)
	require.NoError(t, err)
	assert.True(t, mean.Shape().IsScalar())
	assert.Len(t, g.NodesByKind(graph.KindSymbolValue), 1)

	r, err := ops.Reshape(g, x, symShape(t, symbolic.Const(3), n))
	require.NoError(t, err)
	assert.Equal(t, "(3, n, 1, 1)", r.Shape().String())

	gat, err := ops.Gather(g, x, idx)
	require.NoError(t, err)
	assert.Equal(t, "(5, 3, 1, 1)", gat.Shape().String())
	assert.Same(t, idx, gat.Op().Arguments()[0])
	assert.Len(t, gat.Op().Parents(), 1)

	sc, err := ops.ScatterAdd(g, x, idx, gat)
	require.NoError(t, err)
	assert.True(t, sc.Shape().Equal(x.Shape()))

	a := input(t, g, "a", tensor.Float64, dims(t, 3, 3))
	b := input(t, g, "b", tensor.Float64, dims(t, 3, 2))
	sol, err := ops.Solve(g, a, b)
	require.NoError(t, err)
	assert.Equal(t, "(3, 2, 1, 1)", sol.Shape().String())
}

func TestIdentityShortcuts(t *testing.T) {
	g := graph.New()
	x := input(t, g, "x", tensor.Float32, dims(t, 2, 3))
	before := g.Len()

	same, err := ops.Cast(g, x, tensor.Float32)
	require.NoError(t, err)
	assert.Same(t, x, same)

	same, err = ops.Broadcast(g, x, x.Shape())
	require.NoError(t, err)
	assert.Same(t, x, same)

	same, err = ops.Transpose(g, x, [tensor.MaxRank]int{0, 1, 2, 3})
	require.NoError(t, err)
	assert.Same(t, x, same)

	// Reducing an axis of size 1 is a no-op.
	same, err = ops.Sum(g, x, 2)
	require.NoError(t, err)
	assert.Same(t, x, same)

	assert.Equal(t, before, g.Len())
}

func TestCopyTo(t *testing.T) {
	src := graph.New()
	x := input(t, src, "x", tensor.Float32, dims(t, 3))
	y, err := ops.Sum(src, x, 0)
	require.NoError(t, err)

	dst := graph.New()
	nx, err := dst.Insert(mustCopy(t, x, dst, nil), "x")
	require.NoError(t, err)
	ny, err := dst.Insert(mustCopy(t, y, dst, []*graph.Node{nx}), "")
	require.NoError(t, err)

	assert.Equal(t, graph.KindSum, ny.Kind())
	assert.Equal(t, "axes=0", ny.Op().Params())
	assert.Same(t, nx, ny.Op().Parents()[0])
	assert.True(t, ny.Shape().Equal(y.Shape()))

	// The original operator still owns its own node.
	assert.Equal(t, y.ID(), y.Op().Owner())
}

func mustCopy(t *testing.T, n *graph.Node, g *graph.Graph, ancestors []*graph.Node) graph.Operator {
	t.Helper()
	op, err := n.Op().CopyTo(g, ancestors)
	require.NoError(t, err)
	return op
}

func TestCombine(t *testing.T) {
	g := graph.New()
	x := input(t, g, "x", tensor.Float32, dims(t, 3))
	y, err := ops.Exp(g, x)
	require.NoError(t, err)

	_, err = y.Op().BackwardDiffCombine(nil)
	var ie *graph.InternalError
	require.ErrorAs(t, err, &ie)

	one, err := y.Op().BackwardDiffCombine([]*graph.Node{x})
	require.NoError(t, err)
	assert.Same(t, x, one)

	two, err := y.Op().BackwardDiffCombine([]*graph.Node{x, y})
	require.NoError(t, err)
	assert.Equal(t, graph.KindAdd, two.Kind())
}

func TestNonDifferentiableRuleIsInternalError(t *testing.T) {
	g := graph.New()
	x := input(t, g, "x", tensor.Float32, dims(t, 3))
	c, err := ops.Greater(g, x, x)
	require.NoError(t, err)

	_, err = c.Op().BackwardDiffParent(x, 0)
	var ie *graph.InternalError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "greater", ie.Op)
}
