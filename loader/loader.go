// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package loader builds graphs from HCL model descriptions.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/symgraph/autodiff"
//	    "github.com/born-ml/symgraph/loader"
//	)
//
//	model, err := loader.Load("model.hcl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	grads, err := autodiff.Gradient(model.Objective, model.Targets)
//
// A description declares input, parameter, constant and node blocks in
// build order, optional update blocks, and the objective, targets and
// outputs attributes:
//
//	input "x" {
//	  shape = ["n", 3]
//	}
//
//	parameter "w" {
//	  shape = [3, 1]
//	  value = 0.5
//	}
//
//	node "loss" {
//	  op       = "sum"
//	  operands = ["x"]
//	}
//
//	objective = "loss"
//	targets   = ["w"]
package loader

import (
	"github.com/born-ml/symgraph/graph"
	"github.com/born-ml/symgraph/internal/loader"
)

// Model is a loaded description.
type Model = loader.Model

// Load reads and builds the description at path. The graph is named after
// path and configured with opts.
func Load(path string, opts ...graph.Option) (*Model, error) {
	return loader.Load(path, opts...)
}

// Parse builds a description held in memory. filename is used in
// diagnostics and as the graph name.
func Parse(src []byte, filename string, opts ...graph.Option) (*Model, error) {
	return loader.Parse(src, filename, opts...)
}

// IsDiagnostic reports whether err is an HCL diagnostic (a syntax, schema
// or name resolution error) rather than a graph construction error.
func IsDiagnostic(err error) bool {
	return loader.IsDiagnostic(err)
}
