package loader

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"

	"github.com/born-ml/symgraph/internal/symbolic"
	"github.com/born-ml/symgraph/internal/tensor"
)

// shapeOf converts a list such as ["n", 3] into a shape. Strings become
// symbols and numbers constants. A null value is the scalar shape.
func shapeOf(v cty.Value) (tensor.Shape, error) {
	if v.IsNull() {
		return tensor.Scalar(), nil
	}
	if !v.IsKnown() {
		return tensor.Shape{}, fmt.Errorf("shape must be known")
	}
	ty := v.Type()
	if !ty.IsListType() && !ty.IsTupleType() {
		return tensor.Shape{}, fmt.Errorf("shape must be a list, got %s", ty.FriendlyName())
	}

	var dims []symbolic.Poly
	it := v.ElementIterator()
	for it.Next() {
		_, el := it.Element()
		switch {
		case el.IsNull():
			return tensor.Shape{}, fmt.Errorf("shape element %d is null", len(dims))
		case el.Type() == cty.String:
			name := el.AsString()
			if name == "" {
				return tensor.Shape{}, fmt.Errorf("shape element %d is an empty symbol name", len(dims))
			}
			dims = append(dims, symbolic.Sym(name))
		case el.Type() == cty.Number:
			var d int64
			if err := gocty.FromCtyValue(el, &d); err != nil {
				return tensor.Shape{}, fmt.Errorf("shape element %d: %w", len(dims), err)
			}
			dims = append(dims, symbolic.Const(d))
		default:
			return tensor.Shape{}, fmt.Errorf("shape element %d must be a number or a symbol name, got %s",
				len(dims), el.Type().FriendlyName())
		}
	}
	return tensor.NewShape(dims...)
}

// scalarOf converts a number or bool to the fill value of a constant.
func scalarOf(v cty.Value) (float64, error) {
	if v.IsNull() || !v.IsKnown() {
		return 0, fmt.Errorf("value must be a known number")
	}
	switch v.Type() {
	case cty.Number:
		var f float64
		if err := gocty.FromCtyValue(v, &f); err != nil {
			return 0, fmt.Errorf("value: %w", err)
		}
		return f, nil
	case cty.Bool:
		if v.True() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("value must be a number or bool, got %s", v.Type().FriendlyName())
}

func dtypeOf(s string) (tensor.DataType, error) {
	if s == "" {
		return tensor.Float32, nil
	}
	return tensor.ParseDataType(s)
}
