// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/symgraph/internal/symbolic"
	"github.com/born-ml/symgraph/internal/tensor"
)

// Kind is a data type family.
type Kind = tensor.Kind

// Data type families.
const (
	Bool    = tensor.Bool
	Uint    = tensor.Uint
	Int     = tensor.Int
	Float   = tensor.Float
	Complex = tensor.Complex
)

// DataType is a (kind, precision) pair.
type DataType = tensor.DataType

// Common data types.
var (
	Bool8     = tensor.Bool8
	Uint8     = tensor.Uint8
	Int32     = tensor.Int32
	Int64     = tensor.Int64
	Float32   = tensor.Float32
	Float64   = tensor.Float64
	Complex64 = tensor.Complex64
)

// NewDataType validates and returns a data type.
func NewDataType(kind Kind, bits int) (DataType, error) {
	return tensor.NewDataType(kind, bits)
}

// ParseDataType parses names such as "float32" or "bool".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// Promote returns the common type of a binary operation.
func Promote(a, b DataType) DataType {
	return tensor.Promote(a, b)
}

// MaxRank is the fixed rank of every shape.
const MaxRank = tensor.MaxRank

// Shape is a rank-4 symbolic shape. Unused trailing axes have extent one.
type Shape = tensor.Shape

// Dim is a symbolic dimension: a polynomial with integer coefficients.
type Dim = symbolic.Poly

// Substitution binds shape symbols to values.
type Substitution = symbolic.Substitution

// Errors returned when evaluating or binding symbolic dimensions.
var (
	ErrUnderdetermined = symbolic.ErrUnderdetermined
	ErrBindConflict    = symbolic.ErrBindConflict
)

// Const returns a constant dimension.
func Const(c int64) Dim {
	return symbolic.Const(c)
}

// Sym returns the dimension named by a symbol.
func Sym(name string) Dim {
	return symbolic.Sym(name)
}

// Scalar returns the shape of a scalar.
func Scalar() Shape {
	return tensor.Scalar()
}

// NewShape builds a shape from up to four dimensions, padding with 1.
func NewShape(dims ...Dim) (Shape, error) {
	return tensor.NewShape(dims...)
}

// Dims builds a shape from concrete extents.
func Dims(dims ...int) (Shape, error) {
	return tensor.Dims(dims...)
}

// BroadcastShapes returns the broadcast of a and b and whether either
// operand had to be stretched.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	return tensor.BroadcastShapes(a, b)
}
