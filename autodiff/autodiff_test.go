// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package autodiff_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/symgraph/autodiff"
	"github.com/born-ml/symgraph/backend/cpu"
	"github.com/born-ml/symgraph/graph"
	"github.com/born-ml/symgraph/ops"
	"github.com/born-ml/symgraph/tensor"
)

func TestPublicAPI_GradientAndTangent(t *testing.T) {
	g := graph.New(graph.WithName("public"))
	shape, err := tensor.NewShape(tensor.Sym("n"))
	require.NoError(t, err)

	x, err := ops.Input(g, "x", tensor.Float64, shape)
	require.NoError(t, err)
	dx, err := ops.Input(g, "dx", tensor.Float64, shape)
	require.NoError(t, err)
	sq, err := ops.Square(g, x)
	require.NoError(t, err)
	f, err := ops.Sum(g, sq)
	require.NoError(t, err)

	grads, err := autodiff.Gradient(f, []*graph.Node{x})
	require.NoError(t, err)
	require.NotNil(t, grads[0])

	tangents, err := autodiff.ForwardDiff([]*graph.Node{x}, []*graph.Node{dx}, []*graph.Node{f})
	require.NoError(t, err)
	require.NotNil(t, tangents[0])

	fn, _, err := g.Extract([]*graph.Node{x, dx}, []*graph.Node{grads[0], tangents[0]})
	require.NoError(t, err)
	prog, err := cpu.New().Compile(fn)
	require.NoError(t, err)

	out, err := prog.Run([]graph.Buffer{
		{Shape: [4]int{3, 1, 1, 1}, Data: []float64{1, 2, 3}},
		{Shape: [4]int{3, 1, 1, 1}, Data: []float64{1, 0, 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4, 6}, out[0].Data)
	assert.Equal(t, []float64{8}, out[1].Data)

	plan, err := cpu.PlanFunction(fn, tensor.Substitution{"n": 3})
	require.NoError(t, err)
	assert.NotEmpty(t, plan.Slots)
}

func TestPublicAPI_Policies(t *testing.T) {
	g := graph.New(graph.WithIndependentGradientPolicy(graph.PolicyRaise))
	s := tensor.Scalar()
	a, err := ops.Input(g, "a", tensor.Float32, s)
	require.NoError(t, err)
	b, err := ops.Input(g, "b", tensor.Float32, s)
	require.NoError(t, err)
	f, err := ops.Exp(g, a)
	require.NoError(t, err)

	_, err = autodiff.Gradient(f, []*graph.Node{b})
	var perr *graph.PolicyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, graph.TriggerIndependentGradient, perr.Trigger)
}
