package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/symgraph/internal/autodiff"
	"github.com/born-ml/symgraph/internal/backend/cpu"
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/loader"
	"github.com/born-ml/symgraph/internal/tensor"
)

const mlp = `
input "x" {
  shape = ["n", 3]
  dtype = "float64"
}

parameter "w" {
  shape = [3, 1]
  dtype = "float64"
  value = 0.5
}

constant "two" {
  value = 2
  dtype = "float64"
}

node "y" {
  op       = "matmul"
  operands = ["x", "w"]
  scope    = "dense"
}

node "act" {
  op       = "tanh"
  operands = ["y"]
  scope    = "dense"
}

node "scaled" {
  op       = "mul"
  operands = ["act", "two"]
}

node "loss" {
  op       = "mean"
  operands = ["scaled"]
}

node "w_next" {
  op       = "mul"
  operands = ["w", "two"]
}

update "w" { value = "w_next" }

objective = "loss"
targets   = ["w"]
outputs   = ["act"]
`

func TestParse_Model(t *testing.T) {
	m, err := loader.Parse([]byte(mlp), "mlp.hcl")
	require.NoError(t, err)

	require.Len(t, m.Inputs, 1)
	assert.Equal(t, "x", m.Inputs[0].Name())
	assert.Equal(t, []string{"n"}, m.Inputs[0].Shape().Symbols())
	assert.Equal(t, tensor.Float64, m.Inputs[0].DType())
	require.Len(t, m.Parameters, 1)

	y, ok := m.Node("y")
	require.True(t, ok)
	assert.Equal(t, graph.KindMatMul, y.Kind())
	assert.Equal(t, []string{"dense"}, y.Scope())
	assert.Equal(t, "y", y.Name())

	two, ok := m.Node("two")
	require.True(t, ok)
	assert.Equal(t, "two", two.Name())
	assert.True(t, two.Shape().IsScalar())

	require.NotNil(t, m.Objective)
	assert.Equal(t, "loss", m.Objective.Name())
	assert.Equal(t, []*graph.Node{m.Parameters[0]}, m.Targets)
	require.Len(t, m.Outputs, 1)
	assert.Equal(t, "act", m.Outputs[0].Name())
	assert.Len(t, m.Graph.Updates(), 1)
	assert.Equal(t, "mlp.hcl", m.Graph.Name())

	_, ok = m.Node("missing")
	assert.False(t, ok)
}

func TestParse_GradientOfLoadedModel(t *testing.T) {
	src := `
input "x" {
  shape = ["n", 3]
  dtype = "float64"
}
parameter "w" {
  shape = [3, 1]
  dtype = "float64"
  value = 1
}
node "y" {
  op       = "matmul"
  operands = ["x", "w"]
}
node "loss" {
  op       = "sum"
  operands = ["y"]
}
objective = "loss"
targets   = ["w"]
`
	m, err := loader.Parse([]byte(src), "linear.hcl")
	require.NoError(t, err)

	grads, err := autodiff.Gradient(m.Objective, m.Targets)
	require.NoError(t, err)

	fn, _, err := m.Graph.Extract(m.Inputs, append([]*graph.Node{m.Objective}, grads...))
	require.NoError(t, err)
	prog, err := cpu.New().Compile(fn)
	require.NoError(t, err)
	res, err := prog.Run([]graph.Buffer{{Shape: [4]int{2, 3, 1, 1}, Data: []float64{1, 2, 3, 4, 5, 6}}})
	require.NoError(t, err)

	assert.Equal(t, []float64{21}, res[0].Data)
	assert.Equal(t, []float64{5, 7, 9}, res[1].Data)
}

func TestParse_ShapeOperators(t *testing.T) {
	src := `
input "x" {
  shape = [2, 3]
}
node "xt" {
  op       = "transpose"
  operands = ["x"]
}
node "flat" {
  op       = "reshape"
  operands = ["xt"]
  shape    = [6]
}
node "wide" {
  op       = "broadcast"
  operands = ["flat"]
  shape    = [6, 4]
}
node "perm" {
  op       = "transpose"
  operands = ["wide"]
  axes     = [1, 0]
}
node "half" {
  op       = "cast"
  operands = ["perm"]
  dtype    = "float64"
}
`
	m, err := loader.Parse([]byte(src), "shapes.hcl")
	require.NoError(t, err)

	want := map[string][]int{"xt": {3, 2}, "flat": {6}, "wide": {6, 4}, "perm": {4, 6}}
	for name, d := range want {
		n, ok := m.Node(name)
		require.True(t, ok, name)
		s, err := tensor.Dims(d...)
		require.NoError(t, err)
		assert.True(t, n.Shape().Equal(s), "%s has shape %s", name, n.Shape())
	}
	half, _ := m.Node("half")
	assert.Equal(t, tensor.Float64, half.DType())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name       string
		src        string
		want       string
		diagnostic bool
	}{
		{
			name:       "unknown operator",
			src:        `input "x" {}` + "\n" + "node \"y\" {\n  op = \"conv\"\n  operands = [\"x\"]\n}",
			want:       "Unknown operator",
			diagnostic: true,
		},
		{
			name:       "unknown operand",
			src:        "node \"y\" {\n  op = \"exp\"\n  operands = [\"x\"]\n}",
			want:       "Unknown name",
			diagnostic: true,
		},
		{
			name:       "duplicate name",
			src:        `input "x" {}` + "\n" + `parameter "x" {}`,
			want:       "Duplicate name",
			diagnostic: true,
		},
		{
			name:       "unknown objective",
			src:        `input "x" {}` + "\n" + `objective = "loss"`,
			want:       "Unknown name",
			diagnostic: true,
		},
		{
			name:       "unknown block",
			src:        `layer "x" {}`,
			want:       "failed to decode",
			diagnostic: true,
		},
		{
			name: "arity",
			src:  `input "x" {}` + "\n" + "node \"y\" {\n  op = \"add\"\n  operands = [\"x\"]\n}",
			want: "add takes 2 operands, got 1",
		},
		{
			name: "bad shape element",
			src:  `input "x" { shape = [true] }`,
			want: "must be a number or a symbol name",
		},
		{
			name: "fractional dimension",
			src:  `input "x" { shape = [1.5] }`,
			want: "shape element 0",
		},
		{
			name: "bad dtype",
			src:  `input "x" { dtype = "float12" }`,
			want: "precision",
		},
		{
			name:       "optimizer without objective",
			src:        `parameter "w" {}` + "\n" + `optimizer "sgd" {}`,
			want:       "Missing objective",
			diagnostic: true,
		},
		{
			name:       "unknown optimizer",
			src:        `parameter "w" {}` + "\n" + `optimizer "rmsprop" {}` + "\n" + `objective = "w"`,
			want:       "Unknown optimizer",
			diagnostic: true,
		},
		{
			name:       "duplicate optimizer",
			src:        `optimizer "sgd" {}` + "\n" + `optimizer "adam" {}`,
			want:       "Duplicate optimizer",
			diagnostic: true,
		},
		{
			name: "cast without dtype",
			src:  `input "x" {}` + "\n" + "node \"y\" {\n  op = \"cast\"\n  operands = [\"x\"]\n}",
			want: "cast requires a dtype",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loader.Parse([]byte(tt.src), "bad.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Equal(t, tt.diagnostic, loader.IsDiagnostic(err))
		})
	}
}

func TestParse_Optimizer(t *testing.T) {
	src := `
input "x" {
  shape = [2]
  dtype = "float64"
}
parameter "w" {
  shape = [2]
  dtype = "float64"
  value = 1
}
node "wx" {
  op       = "mul"
  operands = ["w", "x"]
}
node "loss" {
  op       = "sum"
  operands = ["wx"]
}
optimizer "sgd" {
  lr       = 0.1
  momentum = 0.5
}
objective = "loss"
`
	m, err := loader.Parse([]byte(src), "train.hcl")
	require.NoError(t, err)
	require.NotNil(t, m.Optimizer)
	assert.InDelta(t, 0.1, m.Optimizer.LR(), 0)
	assert.Len(t, m.Graph.Updates(), 2)

	fn, _, err := m.Graph.Extract(m.Inputs, []*graph.Node{m.Objective})
	require.NoError(t, err)
	prog, err := cpu.New().CompileProgram(fn)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err := prog.Run([]graph.Buffer{{Shape: [4]int{2, 1, 1, 1}, Data: []float64{1, 2}}})
		require.NoError(t, err)
	}
	w, ok := prog.Parameter("w")
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{0.75, 0.5}, w.Data, 1e-12)
}

func TestParse_ConstructionErrorsPropagate(t *testing.T) {
	src := `
input "a" { shape = [2, 3] }
input "b" { shape = [2, 3] }
node "c" {
  op       = "matmul"
  operands = ["a", "b"]
}
`
	_, err := loader.Parse([]byte(src), "bad.hcl")
	var cerr *graph.ConstructionError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "matmul", cerr.Op)
	assert.False(t, loader.IsDiagnostic(err))

	_, err = loader.Parse([]byte(`input "x" {}`+"\n"+`update "x" { value = "x" }`), "bad.hcl")
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "update", cerr.Op)
}

func TestParse_GraphOptions(t *testing.T) {
	src := `
input "row" { shape = [1, 3] }
input "m" { shape = [2, 3] }
node "s" {
  op       = "add"
  operands = ["row", "m"]
}
`
	_, err := loader.Parse([]byte(src), "b.hcl", graph.WithBroadcastPolicy(graph.PolicyRaise))
	var perr *graph.PolicyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, graph.TriggerBroadcast, perr.Trigger)

	_, err = loader.Parse([]byte(src), "b.hcl")
	assert.NoError(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mlp.hcl")
	require.NoError(t, os.WriteFile(path, []byte(mlp), 0600))

	m, err := loader.Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, m.Graph.Name())

	_, err = loader.Load(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}
