package graph_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
	"github.com/born-ml/symgraph/internal/tensor"
)

func must(t *testing.T) func(*graph.Node, error) *graph.Node {
	t.Helper()
	return func(n *graph.Node, err error) *graph.Node {
		t.Helper()
		require.NoError(t, err)
		return n
	}
}

func vec3(t *testing.T) tensor.Shape {
	t.Helper()
	s, err := tensor.Dims(3)
	require.NoError(t, err)
	return s
}

// diamond builds
//
//	#0 x   #1 y   #2 c
//	#3 add(x, y)
//	#4 mul(#3, c)
//	#5 exp(y)
func diamond(t *testing.T) (*graph.Graph, []*graph.Node) {
	t.Helper()
	g := graph.New()
	x := must(t)(ops.Input(g, "x", tensor.Float64, vec3(t)))
	y := must(t)(ops.Input(g, "y", tensor.Float64, vec3(t)))
	c := must(t)(ops.Constant(g, 2, tensor.Float64, vec3(t)))
	a := must(t)(ops.Add(g, x, y))
	b := must(t)(ops.Mul(g, a, c))
	e := must(t)(ops.Exp(g, y))
	return g, []*graph.Node{x, y, c, a, b, e}
}

func TestMasks(t *testing.T) {
	g, n := diamond(t)

	anc, err := g.AncestorsMask([]*graph.Node{n[4]})
	require.NoError(t, err)
	if diff := cmp.Diff(graph.Mask{true, true, true, true, true, false}, anc); diff != "" {
		t.Errorf("ancestors (-want +got):\n%s", diff)
	}

	desc, err := g.DescendantsMask([]*graph.Node{n[1]})
	require.NoError(t, err)
	if diff := cmp.Diff(graph.Mask{false, true, false, true, true, true}, desc); diff != "" {
		t.Errorf("descendants (-want +got):\n%s", diff)
	}

	flow := desc.And(anc)
	assert.Equal(t, []graph.ID{1, 3, 4}, flow.IDs())
	assert.Equal(t, 3, flow.Count())
	assert.False(t, flow.Has(99))
}

func TestMasks_EmptyAndFull(t *testing.T) {
	g, n := diamond(t)
	none := make(graph.Mask, g.Len())
	all := graph.Mask{true, true, true, true, true, true}

	for _, f := range []func([]*graph.Node) (graph.Mask, error){g.AncestorsMask, g.DescendantsMask} {
		m, err := f(nil)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(none, m))

		m, err = f(n)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(all, m))
	}
}

// Growing the seed set never shrinks a mask.
func TestMasks_Monotonic(t *testing.T) {
	g, n := diamond(t)
	subset := func(bits int) []*graph.Node {
		var out []*graph.Node
		for i := range n {
			if bits&(1<<i) != 0 {
				out = append(out, n[i])
			}
		}
		return out
	}
	contains := func(super, sub graph.Mask) bool {
		for i := range sub {
			if sub[i] && !super[i] {
				return false
			}
		}
		return true
	}

	for _, f := range []func([]*graph.Node) (graph.Mask, error){g.AncestorsMask, g.DescendantsMask} {
		for s := 0; s < 1<<len(n); s++ {
			small, err := f(subset(s))
			require.NoError(t, err)
			for i := range n {
				big, err := f(subset(s | 1<<i))
				require.NoError(t, err)
				assert.True(t, contains(big, small), "seed %b + %d", s, i)
			}
		}
	}
}

func TestMasks_ExpiredNode(t *testing.T) {
	g, n := diamond(t)
	other, m := diamond(t)
	_, err := g.AncestorsMask([]*graph.Node{m[0]})
	assert.ErrorIs(t, err, graph.ErrForeignNode)

	other.Release()
	_, err = g.DescendantsMask([]*graph.Node{m[0], n[0]})
	assert.ErrorIs(t, err, graph.ErrExpired)
}

func TestExtract(t *testing.T) {
	g, n := diamond(t)
	require.NoError(t, g.SetName(n[4], "out"))

	fn, mapping, err := g.Extract([]*graph.Node{n[0], n[1]}, []*graph.Node{n[4]})
	require.NoError(t, err)
	assert.Equal(t, 5, fn.Graph.Len(), "exp(y) is not needed")
	assert.Equal(t, 6, g.Len())
	assert.Equal(t, "graph.fn", fn.Graph.Name())

	_, ok := mapping[n[5].ID()]
	assert.False(t, ok)

	outs, err := fn.OutputNodes()
	require.NoError(t, err)
	assert.Equal(t, "out", outs[0].Name())
	assert.Equal(t, graph.KindMul, outs[0].Kind())
	assert.Same(t, fn.Graph, outs[0].Graph())

	ins, err := fn.InputNodes()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, []string{ins[0].Name(), ins[1].Name()})

	// The copy survives the source graph.
	g.Release()
	outs, err = fn.OutputNodes()
	require.NoError(t, err)
	assert.True(t, outs[0].IsInputDependent())
}

func TestExtract_PreservesScopes(t *testing.T) {
	g := graph.New()
	var x, y *graph.Node
	require.NoError(t, g.WithScope("enc", func() error {
		var err error
		if x, err = ops.Input(g, "x", tensor.Float64, vec3(t)); err != nil {
			return err
		}
		return g.WithScope("layer", func() error {
			y, err = ops.Tanh(g, x)
			return err
		})
	}))
	fn, mapping, err := g.Extract([]*graph.Node{x}, []*graph.Node{y})
	require.NoError(t, err)

	copied, err := mapping[y.ID()].Deref()
	require.NoError(t, err)
	assert.Equal(t, []string{"enc", "layer"}, copied.Scope())
	assert.Len(t, fn.Graph.NodesInScope("enc"), 1)
	assert.Len(t, fn.Graph.NodesInScope("enc", "layer"), 1)
}

func TestExtract_Errors(t *testing.T) {
	g, n := diamond(t)

	tests := []struct {
		name    string
		inputs  []*graph.Node
		outputs []*graph.Node
	}{
		{"unbound input", []*graph.Node{n[0]}, []*graph.Node{n[4]}},
		{"non-input leaf", []*graph.Node{n[0], n[1], n[2]}, []*graph.Node{n[4]}},
		{"computed input", []*graph.Node{n[3]}, []*graph.Node{n[4]}},
		{"duplicate input", []*graph.Node{n[0], n[1], n[0]}, []*graph.Node{n[4]}},
		{"no outputs", []*graph.Node{n[0]}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := g.Len()
			_, _, err := g.Extract(tt.inputs, tt.outputs)
			var cerr *graph.ConstructionError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, "extract", cerr.Op)
			assert.Equal(t, before, g.Len())
		})
	}
}

func TestExtract_CarriesUpdates(t *testing.T) {
	g := graph.New()
	x := must(t)(ops.Input(g, "x", tensor.Float64, vec3(t)))
	w := must(t)(ops.Parameter(g, "w", tensor.Float64, vec3(t), 0))
	step := must(t)(ops.Parameter(g, "step", tensor.Float64, vec3(t), 0))
	y := must(t)(ops.Mul(g, x, w))
	require.NoError(t, g.AddUpdate(w, must(t)(ops.Add(g, w, x))))
	require.NoError(t, g.AddUpdate(step, must(t)(ops.Exp(g, step))))

	fn, _, err := g.Extract([]*graph.Node{x}, []*graph.Node{y})
	require.NoError(t, err)
	require.Len(t, fn.Updates, 2)
	assert.Equal(t, "w", fn.Updates[0].Target.Name())
	assert.Equal(t, graph.KindAdd, fn.Updates[0].Value.Kind())
	assert.Same(t, fn.Graph, fn.Updates[1].Value.Graph())
	assert.Len(t, fn.Parameters(), 2)

	// An update that needs an input not listed makes extraction fail.
	_, _, err = g.Extract([]*graph.Node{}, []*graph.Node{step})
	var cerr *graph.ConstructionError
	assert.ErrorAs(t, err, &cerr)
}

func TestAddUpdate_Validation(t *testing.T) {
	g := graph.New()
	x := must(t)(ops.Input(g, "x", tensor.Float64, vec3(t)))
	w := must(t)(ops.Parameter(g, "w", tensor.Float64, vec3(t), 0))
	w32 := must(t)(ops.Parameter(g, "w32", tensor.Float32, vec3(t), 0))
	scalar := must(t)(ops.Scalar(g, 1, tensor.Float64))

	var cerr *graph.ConstructionError
	assert.ErrorAs(t, g.AddUpdate(x, w), &cerr, "target must be a parameter")
	assert.ErrorAs(t, g.AddUpdate(w, scalar), &cerr, "shape mismatch")
	assert.ErrorAs(t, g.AddUpdate(w32, w), &cerr, "dtype mismatch")
	require.NoError(t, g.AddUpdate(w, x))
	assert.ErrorAs(t, g.AddUpdate(w, x), &cerr, "second update")
	assert.Len(t, g.Updates(), 1)
}

func TestScopes(t *testing.T) {
	g := graph.New()
	g.PopScope()
	assert.Empty(t, g.Scope())

	g.PushScope("a")
	g.PushScope("b")
	assert.Equal(t, []string{"a", "b"}, g.Scope())
	x := must(t)(ops.Input(g, "x", tensor.Float64, vec3(t)))
	g.PopScope()
	y := must(t)(ops.Neg(g, x))
	g.PopScope()

	assert.Equal(t, []string{"a", "b"}, x.Scope())
	assert.Equal(t, []string{"a"}, y.Scope())
	assert.Equal(t, []*graph.Node{x}, g.NodesInScope("a", "b"))
	assert.Equal(t, []*graph.Node{y}, g.NodesInScope("a"))
	assert.Equal(t, []*graph.Node{y}, g.NodesByKind(graph.KindNeg))
}

func TestProvenance_NamesOnlyUnnamedNodes(t *testing.T) {
	g := graph.New()
	x := must(t)(ops.Input(g, "x", tensor.Float64, vec3(t)))
	var a, b *graph.Node
	err := g.Provenance(x, "grad", func() error {
		a = must(t)(ops.Exp(g, x))
		b = must(t)(ops.Sin(g, x))
		return g.SetName(b, "keep")
	})
	require.NoError(t, err)
	assert.Equal(t, "grad(x)", a.Name())
	assert.Equal(t, "keep", b.Name())
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    graph.Policy
		wantErr bool
	}{
		{in: "quiet", want: graph.PolicyQuiet},
		{in: "silent", want: graph.PolicyQuiet},
		{in: "WARN", want: graph.PolicyWarn},
		{in: "raise", want: graph.PolicyRaise},
		{in: "panic", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := graph.ParsePolicy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSummary(t *testing.T) {
	g, _ := diamond(t)
	s := g.Summary()
	assert.Contains(t, s, "ID")
	assert.Contains(t, s, "ANCESTORS")
	assert.Contains(t, s, "constant")
	assert.Contains(t, s, "#0,#1")
	assert.Contains(t, s, "in,diff")
}

func TestKind(t *testing.T) {
	k, ok := graph.ParseKind("scatter_add")
	require.True(t, ok)
	assert.Equal(t, graph.KindScatterAdd, k)
	assert.Equal(t, "scatter_add", k.String())

	_, ok = graph.ParseKind("conv2d")
	assert.False(t, ok)

	assert.True(t, graph.KindInput.IsLeaf())
	assert.True(t, graph.KindGreater.IsLogical())
	assert.True(t, graph.KindSum.ReducesOverAxes())
	assert.True(t, graph.KindSolve.IsLinearAlgebra())
	assert.True(t, graph.KindExp.ProducesFloat())
	assert.False(t, graph.KindTranspose.IsElementwise())
}
