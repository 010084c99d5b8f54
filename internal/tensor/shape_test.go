package tensor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/symgraph/internal/symbolic"
	"github.com/born-ml/symgraph/internal/tensor"
)

func TestShape_NewShape(t *testing.T) {
	s, err := tensor.NewShape(symbolic.Sym("n"), symbolic.Const(3))
	require.NoError(t, err)
	assert.Equal(t, "(n, 3, 1, 1)", s.String())
	assert.Equal(t, 2, s.Rank())
	assert.Equal(t, "3*n", s.NumElements().String())

	_, err = tensor.Dims(1, 2, 3, 4, 5)
	require.Error(t, err)

	_, err = tensor.Dims(2, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be > 0")
}

func TestShape_Scalar(t *testing.T) {
	assert.True(t, tensor.Scalar().IsScalar())
	assert.Equal(t, 0, tensor.Scalar().Rank())

	v, err := tensor.Dims(3)
	require.NoError(t, err)
	assert.False(t, v.IsScalar())
	assert.Equal(t, 1, v.Rank())
}

func TestShape_Evaluate(t *testing.T) {
	s, err := tensor.NewShape(symbolic.Sym("b"), symbolic.Const(4))
	require.NoError(t, err)

	dims, err := s.Evaluate(symbolic.Substitution{"b": 2})
	require.NoError(t, err)
	assert.Equal(t, [4]int{2, 4, 1, 1}, dims)

	_, err = s.Evaluate(symbolic.Substitution{})
	require.ErrorIs(t, err, symbolic.ErrUnderdetermined)
}

func TestBroadcastShapes(t *testing.T) {
	n, m := symbolic.Sym("N"), symbolic.Sym("M")
	a, err := tensor.NewShape(symbolic.Const(1), n)
	require.NoError(t, err)
	b, err := tensor.NewShape(m, n)
	require.NoError(t, err)

	out, needs, err := tensor.BroadcastShapes(a, b)
	require.NoError(t, err)
	assert.True(t, needs)
	assert.True(t, out.Equal(b))
	assert.Equal(t, []int{0}, a.BroadcastAxes(out))
	assert.Empty(t, b.BroadcastAxes(out))

	_, needs, err = tensor.BroadcastShapes(b, b)
	require.NoError(t, err)
	assert.False(t, needs)

	c, err := tensor.NewShape(n, n)
	require.NoError(t, err)
	_, _, err = tensor.BroadcastShapes(b, c)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not compatible")
}

func TestDataType(t *testing.T) {
	_, err := tensor.NewDataType(tensor.Bool, 16)
	require.Error(t, err)

	dt, err := tensor.NewDataType(tensor.Float, 16)
	require.NoError(t, err)
	assert.Equal(t, "float16", dt.String())
	assert.Equal(t, 2, dt.Size())

	_, err = tensor.NewDataType(tensor.Int, 12)
	require.Error(t, err)

	parsed, err := tensor.ParseDataType("int64")
	require.NoError(t, err)
	assert.Equal(t, tensor.Int64, parsed)

	parsed, err = tensor.ParseDataType("bool")
	require.NoError(t, err)
	assert.Equal(t, tensor.Bool8, parsed)

	_, err = tensor.ParseDataType("quux8")
	require.Error(t, err)

	assert.Equal(t, tensor.Float64, tensor.Promote(tensor.Float32, tensor.Float64))
	assert.Equal(t, tensor.Float32, tensor.Promote(tensor.Int64, tensor.Float32))
	assert.Equal(t, tensor.Int32, tensor.Promote(tensor.Bool8, tensor.Int32))
}
