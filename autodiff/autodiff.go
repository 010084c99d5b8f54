// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides automatic differentiation of symbolic graphs.
//
// Derivatives are built as ordinary nodes of the same graph, so they can be
// differentiated again, extracted and executed like any other node.
//
// Example:
//
//	import (
//	    "github.com/born-ml/symgraph/autodiff"
//	    "github.com/born-ml/symgraph/backend/cpu"
//	    "github.com/born-ml/symgraph/graph"
//	    "github.com/born-ml/symgraph/ops"
//	    "github.com/born-ml/symgraph/tensor"
//	)
//
//	func main() {
//	    g := graph.New()
//	    shape, _ := tensor.NewShape(tensor.Sym("n"))
//	    x, _ := ops.Input(g, "x", tensor.Float64, shape)
//	    sq, _ := ops.Square(g, x)
//	    f, _ := ops.Sum(g, sq)
//
//	    // Reverse mode: df/dx = 2x
//	    grads, _ := autodiff.Gradient(f, []*graph.Node{x})
//
//	    fn, _, _ := g.Extract([]*graph.Node{x}, grads)
//	    prog, _ := cpu.New().Compile(fn)
//	    out, _ := prog.Run([]graph.Buffer{{Shape: [4]int{3, 1, 1, 1}, Data: []float64{1, 2, 3}}})
//	    fmt.Println(out[0].Data) // [2 4 6]
//	}
package autodiff

import (
	"github.com/born-ml/symgraph/graph"
	"github.com/born-ml/symgraph/internal/autodiff"
)

// Gradient returns d objective / d target for every target, built in
// reverse mode. The objective must be a scalar. A nil entry means the
// objective does not depend on that target; the graph's independent
// gradient policy decides whether that is reported.
func Gradient(objective *graph.Node, targets []*graph.Node) ([]*graph.Node, error) {
	return autodiff.Gradient(objective, targets)
}

// ForwardDiff returns the directional derivative of every output along the
// tangents, built in forward mode. tangents[i] must match the shape and
// dtype of inputs[i]. A nil entry means the output does not depend on any
// input.
func ForwardDiff(inputs, tangents, outputs []*graph.Node) ([]*graph.Node, error) {
	return autodiff.ForwardDiff(inputs, tangents, outputs)
}
