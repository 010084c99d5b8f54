package optim_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/symgraph/internal/backend/cpu"
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
	"github.com/born-ml/symgraph/internal/optim"
	"github.com/born-ml/symgraph/internal/tensor"
)

// linear builds loss = sum(w * x) for a two-element w initialized to one,
// so the gradient of w is x.
type linear struct {
	g    *graph.Graph
	x, w *graph.Node
	loss *graph.Node
}

func newLinear(t *testing.T) *linear {
	t.Helper()
	g := graph.New()
	s, err := tensor.Dims(2)
	require.NoError(t, err)
	x, err := ops.Input(g, "x", tensor.Float64, s)
	require.NoError(t, err)
	w, err := ops.Parameter(g, "w", tensor.Float64, s, 1)
	require.NoError(t, err)
	wx, err := ops.Mul(g, w, x)
	require.NoError(t, err)
	loss, err := ops.Sum(g, wx)
	require.NoError(t, err)
	return &linear{g: g, x: x, w: w, loss: loss}
}

// train runs the extracted step function steps times on x = [1, 2].
func (l *linear) train(t *testing.T, steps int) *cpu.Program {
	t.Helper()
	fn, _, err := l.g.Extract([]*graph.Node{l.x}, []*graph.Node{l.loss})
	require.NoError(t, err)
	prog, err := cpu.New().CompileProgram(fn)
	require.NoError(t, err)
	for i := 0; i < steps; i++ {
		_, err := prog.Run([]graph.Buffer{{Shape: [4]int{2, 1, 1, 1}, Data: []float64{1, 2}}})
		require.NoError(t, err)
	}
	return prog
}

func param(t *testing.T, prog *cpu.Program, name string) []float64 {
	t.Helper()
	b, ok := prog.Parameter(name)
	require.True(t, ok, name)
	return b.Data
}

func TestSGD(t *testing.T) {
	l := newLinear(t)
	opt := optim.NewSGD(optim.SGDConfig{LR: 0.1})
	require.NoError(t, opt.Minimize(l.loss, []*graph.Node{l.w}))
	require.Len(t, l.g.Updates(), 1)
	assert.Equal(t, "sgd(w)", l.g.Updates()[0].Value.Name())

	prog := l.train(t, 2)
	assert.InDeltaSlice(t, []float64{0.8, 0.6}, param(t, prog, "w"), 1e-12)
}

func TestSGD_Momentum(t *testing.T) {
	l := newLinear(t)
	require.NoError(t, optim.NewSGD(optim.SGDConfig{LR: 0.1, Momentum: 0.5}).
		Minimize(l.loss, []*graph.Node{l.w}))
	require.Len(t, l.g.Updates(), 2)

	prog := l.train(t, 2)
	assert.InDeltaSlice(t, []float64{1.5, 3}, param(t, prog, "velocity(w)"), 1e-12)
	assert.InDeltaSlice(t, []float64{0.75, 0.5}, param(t, prog, "w"), 1e-12)
}

func TestAdam(t *testing.T) {
	l := newLinear(t)
	opt := optim.NewAdam(optim.AdamConfig{LR: 0.1})
	require.NoError(t, opt.Minimize(l.loss, []*graph.Node{l.w}))
	require.Len(t, l.g.Updates(), 4)

	// With a constant gradient the bias-corrected step is lr * sign(g).
	prog := l.train(t, 2)
	assert.InDeltaSlice(t, []float64{0.8, 0.8}, param(t, prog, "w"), 1e-6)
	assert.Equal(t, []float64{2}, param(t, prog, "adam_t(w)"))
}

func TestDefaults(t *testing.T) {
	assert.InDelta(t, 0.01, optim.NewSGD(optim.SGDConfig{}).LR(), 0)
	assert.InDelta(t, 0.001, optim.NewAdam(optim.AdamConfig{}).LR(), 0)

	opt, err := optim.New("ADAM", 0.5, 0, [2]float64{}, 0)
	require.NoError(t, err)
	assert.IsType(t, &optim.Adam{}, opt)
	assert.InDelta(t, 0.5, opt.LR(), 0)

	_, err = optim.New("rmsprop", 0, 0, [2]float64{}, 0)
	assert.ErrorContains(t, err, "unknown optimizer")
}

func TestMinimize_SkipsIndependentParameters(t *testing.T) {
	l := newLinear(t)
	s, err := tensor.Dims(2)
	require.NoError(t, err)
	unused, err := ops.Parameter(l.g, "unused", tensor.Float64, s, 0)
	require.NoError(t, err)

	require.NoError(t, optim.NewSGD(optim.SGDConfig{}).Minimize(l.loss, []*graph.Node{l.w, unused}))
	require.Len(t, l.g.Updates(), 1)
	assert.Same(t, l.w, l.g.Updates()[0].Target)
}

func TestMinimize_Errors(t *testing.T) {
	l := newLinear(t)
	sgd := optim.NewSGD(optim.SGDConfig{})

	var cerr *graph.ConstructionError
	err := sgd.Minimize(l.loss, []*graph.Node{l.x})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "sgd", cerr.Op)

	s, err := tensor.Dims(2)
	require.NoError(t, err)
	counter, err := ops.Parameter(l.g, "counter", tensor.Int32, s, 0)
	require.NoError(t, err)
	err = optim.NewAdam(optim.AdamConfig{}).Minimize(l.loss, []*graph.Node{counter})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "adam", cerr.Op)

	err = sgd.Minimize(l.loss, []*graph.Node{l.w, l.w})
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Error(), "listed twice")
	assert.Empty(t, l.g.Updates())

	require.NoError(t, sgd.Minimize(l.loss, []*graph.Node{l.w}))
	err = sgd.Minimize(l.loss, []*graph.Node{l.w})
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, "sgd", cerr.Op)
	assert.Contains(t, cerr.Error(), "already has an update")
}

func TestMinimize_RejectsBeforeRegistering(t *testing.T) {
	for _, opt := range []optim.Optimizer{
		optim.NewSGD(optim.SGDConfig{Momentum: 0.5}),
		optim.NewAdam(optim.AdamConfig{}),
	} {
		l := newLinear(t)
		s, err := tensor.Dims(2)
		require.NoError(t, err)
		b, err := ops.Parameter(l.g, "b", tensor.Float64, s, 0)
		require.NoError(t, err)
		shifted, err := ops.Add(l.g, l.loss, must(t)(ops.Sum(l.g, b)))
		require.NoError(t, err)
		frozen, err := ops.Constant(l.g, 3, tensor.Float64, s)
		require.NoError(t, err)
		require.NoError(t, l.g.AddUpdate(b, frozen))

		err = opt.Minimize(shifted, []*graph.Node{l.w, b})
		require.Error(t, err)
		require.Len(t, l.g.Updates(), 1)
		assert.Same(t, b, l.g.Updates()[0].Target)
	}
}

func must(t *testing.T) func(*graph.Node, error) *graph.Node {
	t.Helper()
	return func(n *graph.Node, err error) *graph.Node {
		t.Helper()
		require.NoError(t, err)
		return n
	}
}
