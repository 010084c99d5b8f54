// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the data types and symbolic shapes of graph nodes.
//
// # Overview
//
// Every node of a symgraph graph carries a DataType and a rank-4 Shape.
// Shape dimensions are polynomials over named symbols, so a batch axis can
// stay unknown until a program runs:
//
//	import "github.com/born-ml/symgraph/tensor"
//
//	func main() {
//	    batch, _ := tensor.NewShape(tensor.Sym("n"), tensor.Const(784))
//	    fmt.Println(batch)              // (n, 784, 1, 1)
//	    fmt.Println(batch.Symbols())    // [n]
//
//	    fixed, _ := tensor.Dims(2, 3)
//	    fmt.Println(fixed.Rank())       // 2
//	}
//
// # Supported Data Types
//
// Data types are (kind, precision) pairs:
//   - Bool8 (boolean masks)
//   - Uint8, Int32, Int64 (integers)
//   - Float32, Float64 (floating-point)
//   - Complex64
//
// Binary operators promote mixed operands to the more general kind and the
// wider precision.
//
// # Broadcasting
//
// Lower ranks are padded with trailing dimensions of extent one. During
// broadcasting an extent-one dimension stretches to match the other
// operand. Symbolic dimensions only match equal expressions.
package tensor
