package ops

import (
	"fmt"
	"strconv"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/symbolic"
	"github.com/born-ml/symgraph/internal/tensor"
)

// InputOp is a value supplied by the caller at each evaluation.
type InputOp struct {
	base
	name string
}

// Input creates an input leaf. Float inputs are differentiable.
func Input(g *graph.Graph, name string, dtype tensor.DataType, shape tensor.Shape) (*graph.Node, error) {
	if err := shape.Validate(); err != nil {
		return nil, graph.Constructionf("input", nil, "%q: %v", name, err)
	}
	op := &InputOp{base: newBase(graph.NewBase(g, graph.KindInput, nil, nil, shape, dtype)), name: name}
	return g.Insert(op, name)
}

// Params returns the input name.
func (op *InputOp) Params() string { return "name=" + op.name }

// InputDependent is always true for inputs.
func (op *InputOp) InputDependent() bool { return true }

// IsDifferentiable is true for float inputs.
func (op *InputOp) IsDifferentiable() bool { return op.DType().IsFloat() }

// Equals only holds for the very same operator; distinct inputs never merge.
func (op *InputOp) Equals(other graph.Operator) bool {
	o, ok := other.(*InputOp)
	return ok && o == op
}

// CopyTo implements graph.Operator.
func (op *InputOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &InputOp{base: b, name: op.name}, nil
}

// ParameterOp is a persistent value owned by the backend between calls, such
// as a model weight.
type ParameterOp struct {
	base
	name    string
	initial float64
}

// Parameter creates a persistent leaf initialized to initial.
func Parameter(g *graph.Graph, name string, dtype tensor.DataType, shape tensor.Shape, initial float64) (*graph.Node, error) {
	if err := shape.Validate(); err != nil {
		return nil, graph.Constructionf("parameter", nil, "%q: %v", name, err)
	}
	op := &ParameterOp{
		base:    newBase(graph.NewBase(g, graph.KindParameter, nil, nil, shape, dtype)),
		name:    name,
		initial: initial,
	}
	return g.Insert(op, name)
}

// Initial returns the initial element value.
func (op *ParameterOp) Initial() float64 { return op.initial }

// Params renders name and initial value.
func (op *ParameterOp) Params() string {
	return fmt.Sprintf("name=%s init=%s", op.name, strconv.FormatFloat(op.initial, 'g', -1, 64))
}

// IsDifferentiable is true for float parameters.
func (op *ParameterOp) IsDifferentiable() bool { return op.DType().IsFloat() }

// Equals only holds for the very same operator.
func (op *ParameterOp) Equals(other graph.Operator) bool {
	o, ok := other.(*ParameterOp)
	return ok && o == op
}

// CopyTo implements graph.Operator.
func (op *ParameterOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &ParameterOp{base: b, name: op.name, initial: op.initial}, nil
}

// ConstantOp fills its shape with one value. It is never differentiable.
type ConstantOp struct {
	base
	value float64
	level int
}

// Constant creates a constant filled with value.
func Constant(g *graph.Graph, value float64, dtype tensor.DataType, shape tensor.Shape) (*graph.Node, error) {
	return ConstantAtLevel(g, value, dtype, shape, 0)
}

// Scalar creates a rank-0 constant.
func Scalar(g *graph.Graph, value float64, dtype tensor.DataType) (*graph.Node, error) {
	return Constant(g, value, dtype, tensor.Scalar())
}

// ConstantAtLevel creates a constant at differentiation depth level; the
// reverse-mode seed is created one level above its objective.
func ConstantAtLevel(g *graph.Graph, value float64, dtype tensor.DataType, shape tensor.Shape, level int) (*graph.Node, error) {
	if err := shape.Validate(); err != nil {
		return nil, graph.Constructionf("constant", nil, "%v", err)
	}
	if dtype.Kind == tensor.Bool && value != 0 && value != 1 {
		return nil, graph.Constructionf("constant", nil, "bool constant must be 0 or 1, got %g", value)
	}
	op := &ConstantOp{
		base:  newBase(graph.NewBase(g, graph.KindConstant, nil, nil, shape, dtype)),
		value: value,
		level: level,
	}
	return insert(g, op)
}

// Value returns the fill value.
func (op *ConstantOp) Value() float64 { return op.value }

// LeafGradLevel implements graph.GradLeveler.
func (op *ConstantOp) LeafGradLevel() int { return op.level }

// Params renders the value.
func (op *ConstantOp) Params() string {
	return "value=" + strconv.FormatFloat(op.value, 'g', -1, 64)
}

// Equals compares value, dtype and shape. Leaves are never interned, so this
// only serves exporters and tests.
func (op *ConstantOp) Equals(other graph.Operator) bool {
	o, ok := other.(*ConstantOp)
	return ok && o.value == op.value && o.DType() == op.DType() && o.Shape().Equal(op.Shape())
}

// CopyTo implements graph.Operator.
func (op *ConstantOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &ConstantOp{base: b, value: op.value, level: op.level}, nil
}

// SymbolValueOp fills its shape with the run-time value of a symbolic
// expression, e.g. the element count of a symbolic dimension.
type SymbolValueOp struct {
	base
	value symbolic.Poly
}

// SymbolValue creates a leaf holding value once its symbols are bound.
func SymbolValue(g *graph.Graph, value symbolic.Poly, dtype tensor.DataType, shape tensor.Shape) (*graph.Node, error) {
	if !dtype.IsNumeric() {
		return nil, graph.Constructionf("symbol_value", nil, "requires a numeric dtype, got %s", dtype)
	}
	op := &SymbolValueOp{
		base:  newBase(graph.NewBase(g, graph.KindSymbolValue, nil, nil, shape, dtype)),
		value: value,
	}
	return insert(g, op)
}

// Value returns the symbolic value.
func (op *SymbolValueOp) Value() symbolic.Poly { return op.value }

// Params renders the expression.
func (op *SymbolValueOp) Params() string { return "value=" + op.value.String() }

// Equals compares the expression, dtype and shape.
func (op *SymbolValueOp) Equals(other graph.Operator) bool {
	o, ok := other.(*SymbolValueOp)
	return ok && o.value.Equal(op.value) && o.DType() == op.DType() && o.Shape().Equal(op.Shape())
}

// CopyTo implements graph.Operator.
func (op *SymbolValueOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &SymbolValueOp{base: b, value: op.value}, nil
}
