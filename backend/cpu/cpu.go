// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go reference backend for extracted graph
// functions.
//
// # Overview
//
// The backend evaluates every node in id order with float64 kernels and
// rounds each result to its node's dtype. Symbolic dimensions are bound
// from the shapes of the inputs of each call, and memory is planned with a
// bump allocator that is rebuilt only when those shapes change.
//
// # Basic Usage
//
//	backend := cpu.New()
//	prog, err := backend.Compile(fn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := prog.Run(inputs)
//
// Parameters are initialized on first use and persistent updates are
// applied after the outputs of each call are computed.
package cpu

import (
	"log/slog"

	"github.com/born-ml/symgraph/graph"
	internalcpu "github.com/born-ml/symgraph/internal/backend/cpu"
	"github.com/born-ml/symgraph/internal/parallel"
	"github.com/born-ml/symgraph/tensor"
)

// Backend compiles functions into Programs.
type Backend = internalcpu.Backend

// Compile-time check that Backend implements graph.Backend.
var _ graph.Backend = (*Backend)(nil)

// Program is a compiled function.
type Program = internalcpu.Program

// Plan is the memory layout of a function for one set of symbol values.
type Plan = internalcpu.Plan

// Slot is the memory assigned to one computed node.
type Slot = internalcpu.Slot

// Option configures a Backend.
type Option = internalcpu.Option

// New creates a CPU backend.
func New(opts ...Option) *Backend {
	return internalcpu.New(opts...)
}

// WithLogger sets the logger used for plan diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return internalcpu.WithLogger(logger)
}

// ParallelConfig controls how kernels split rows across goroutines.
type ParallelConfig = parallel.Config

// DefaultParallelConfig uses every CPU.
func DefaultParallelConfig() ParallelConfig {
	return parallel.DefaultConfig()
}

// WithParallel sets the row splitting of matmul and unary kernels.
func WithParallel(cfg ParallelConfig) Option {
	return internalcpu.WithParallel(cfg)
}

// PlanFunction lays out every computed node of fn once all shape symbols
// are bound by subst.
func PlanFunction(fn *graph.Function, subst tensor.Substitution) (*Plan, error) {
	return internalcpu.PlanFunction(fn, subst)
}
