// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package ops provides the operator constructors of the symbolic graph.
//
// Every constructor takes the graph explicitly, validates its operands and
// returns the new node, or an existing identical one. A failing constructor
// returns *graph.ConstructionError and leaves the graph unchanged.
//
// Example:
//
//	g := graph.New()
//	shape, _ := tensor.Dims(2, 3)
//	x, _ := ops.Input(g, "x", tensor.Float32, shape)
//	w, _ := ops.Parameter(g, "w", tensor.Float32, shape, 0.1)
//	y, _ := ops.Mul(g, x, w)
//	loss, _ := ops.Sum(g, y)
//
// Binary operators broadcast and cast their operands implicitly, subject to
// the graph policies.
package ops

import (
	"github.com/born-ml/symgraph/graph"
	"github.com/born-ml/symgraph/internal/ops"
	"github.com/born-ml/symgraph/tensor"
)

// MatrixTranspose swaps the first two axes.
var MatrixTranspose = ops.MatrixTranspose

// Input creates an input leaf. Float inputs are differentiable.
func Input(g *graph.Graph, name string, dtype tensor.DataType, shape tensor.Shape) (*graph.Node, error) {
	return ops.Input(g, name, dtype, shape)
}

// Parameter creates a persistent leaf initialized to initial.
func Parameter(g *graph.Graph, name string, dtype tensor.DataType, shape tensor.Shape, initial float64) (*graph.Node, error) {
	return ops.Parameter(g, name, dtype, shape, initial)
}

// Constant creates a constant filled with value.
func Constant(g *graph.Graph, value float64, dtype tensor.DataType, shape tensor.Shape) (*graph.Node, error) {
	return ops.Constant(g, value, dtype, shape)
}

// Scalar creates a rank-0 constant.
func Scalar(g *graph.Graph, value float64, dtype tensor.DataType) (*graph.Node, error) {
	return ops.Scalar(g, value, dtype)
}

// ConstantAtLevel creates a constant at differentiation depth level; the
// reverse-mode seed is created one level above its objective.
func ConstantAtLevel(g *graph.Graph, value float64, dtype tensor.DataType, shape tensor.Shape, level int) (*graph.Node, error) {
	return ops.ConstantAtLevel(g, value, dtype, shape, level)
}

// SymbolValue creates a leaf holding value once its symbols are bound.
func SymbolValue(g *graph.Graph, value tensor.Dim, dtype tensor.DataType, shape tensor.Shape) (*graph.Node, error) {
	return ops.SymbolValue(g, value, dtype, shape)
}

// Add returns a + b.
func Add(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Add(g, a, b)
}

// Sub returns a - b.
func Sub(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Sub(g, a, b)
}

// Mul returns a * b.
func Mul(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Mul(g, a, b)
}

// Div returns a / b.
func Div(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Div(g, a, b)
}

// Pow returns a ** b for float operands.
func Pow(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Pow(g, a, b)
}

// Maximum returns the elementwise maximum.
func Maximum(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Maximum(g, a, b)
}

// Minimum returns the elementwise minimum.
func Minimum(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Minimum(g, a, b)
}

// Square returns x * x.
func Square(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.Square(g, x)
}

// Neg returns -x.
func Neg(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.Neg(g, x)
}

// Exp returns e^x.
func Exp(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.Exp(g, x)
}

// Log returns the natural logarithm of x.
func Log(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.Log(g, x)
}

// Sqrt returns the square root of x.
func Sqrt(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.Sqrt(g, x)
}

// Sin returns sin(x).
func Sin(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.Sin(g, x)
}

// Cos returns cos(x).
func Cos(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.Cos(g, x)
}

// Tanh returns tanh(x).
func Tanh(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.Tanh(g, x)
}

// Sigmoid returns 1/(1+e^-x).
func Sigmoid(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.Sigmoid(g, x)
}

// Abs returns |x|.
func Abs(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.Abs(g, x)
}

// Sign returns -1, 0 or 1 with the dtype of x.
func Sign(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.Sign(g, x)
}

// Greater returns a > b.
func Greater(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Greater(g, a, b)
}

// Less returns a < b.
func Less(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Less(g, a, b)
}

// Equal returns a == b.
func Equal(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Equal(g, a, b)
}

// And returns a && b for bool operands.
func And(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.And(g, a, b)
}

// Or returns a || b for bool operands.
func Or(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Or(g, a, b)
}

// Not returns !a for a bool operand.
func Not(g *graph.Graph, a *graph.Node) (*graph.Node, error) {
	return ops.Not(g, a)
}

// Where returns cond ? a : b. cond must be bool.
func Where(g *graph.Graph, cond, a, b *graph.Node) (*graph.Node, error) {
	return ops.Where(g, cond, a, b)
}

// Cast converts x to dtype. Casting to the current dtype returns x.
func Cast(g *graph.Graph, x *graph.Node, dtype tensor.DataType) (*graph.Node, error) {
	return ops.Cast(g, x, dtype)
}

// Broadcast expands x to shape. Broadcasting to the current shape returns x.
func Broadcast(g *graph.Graph, x *graph.Node, shape tensor.Shape) (*graph.Node, error) {
	return ops.Broadcast(g, x, shape)
}

// Reshape returns x with a new shape.
func Reshape(g *graph.Graph, x *graph.Node, shape tensor.Shape) (*graph.Node, error) {
	return ops.Reshape(g, x, shape)
}

// Transpose permutes the axes of x. The identity permutation returns x.
func Transpose(g *graph.Graph, x *graph.Node, perm [tensor.MaxRank]int) (*graph.Node, error) {
	return ops.Transpose(g, x, perm)
}

// T swaps the first two axes of x.
func T(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return ops.T(g, x)
}

// Sum adds the elements of x over axes (all axes when none are given).
func Sum(g *graph.Graph, x *graph.Node, axes ...int) (*graph.Node, error) {
	return ops.Sum(g, x, axes...)
}

// Max takes the maximum of x over axes (all axes when none are given).
func Max(g *graph.Graph, x *graph.Node, axes ...int) (*graph.Node, error) {
	return ops.Max(g, x, axes...)
}

// Mean averages x over axes as Sum(x) / count, where count may be symbolic.
func Mean(g *graph.Graph, x *graph.Node, axes ...int) (*graph.Node, error) {
	return ops.Mean(g, x, axes...)
}

// MatMul returns a @ b.
func MatMul(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.MatMul(g, a, b)
}

// Solve returns X with A X = B.
func Solve(g *graph.Graph, a, b *graph.Node) (*graph.Node, error) {
	return ops.Solve(g, a, b)
}

// Inverse returns A^-1.
func Inverse(g *graph.Graph, a *graph.Node) (*graph.Node, error) {
	return ops.Inverse(g, a)
}

// Gather returns the rows of x selected by idx, shaped (len(idx), x1, x2, x3).
func Gather(g *graph.Graph, x, idx *graph.Node) (*graph.Node, error) {
	return ops.Gather(g, x, idx)
}

// ScatterAdd returns base with rows added at the positions in idx.
func ScatterAdd(g *graph.Graph, dst, idx, rows *graph.Node) (*graph.Node, error) {
	return ops.ScatterAdd(g, dst, idx, rows)
}
