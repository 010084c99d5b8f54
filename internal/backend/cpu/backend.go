// Package cpu implements a reference interpreter for extracted graph
// functions.
//
// Compile keeps the function and binds parameters; Run derives the symbolic
// sizes from the caller's input shapes, plans memory with a bump allocator
// and evaluates every node in id order with float64 kernels, rounding each
// result to its node's dtype. The plan is rebuilt only when the input shapes
// change between calls.
package cpu

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/parallel"
	"github.com/born-ml/symgraph/internal/tensor"
)

// Backend compiles functions into Programs.
type Backend struct {
	logger *slog.Logger
	par    parallel.Config
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger used for plan diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Backend) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithParallel sets how matmul and unary kernels split rows across
// goroutines. The default uses every CPU.
func WithParallel(cfg parallel.Config) Option {
	return func(b *Backend) { b.par = cfg }
}

// New creates a CPU backend.
func New(opts ...Option) *Backend {
	b := &Backend{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		par:    parallel.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the backend name.
func (b *Backend) Name() string {
	return "CPU"
}

// Compile implements graph.Backend.
func (b *Backend) Compile(fn *graph.Function) (graph.Executable, error) {
	return b.CompileProgram(fn)
}

// CompileProgram is Compile with the concrete result type.
func (b *Backend) CompileProgram(fn *graph.Function) (*Program, error) {
	inputs, err := fn.InputNodes()
	if err != nil {
		return nil, err
	}
	outputs, err := fn.OutputNodes()
	if err != nil {
		return nil, err
	}
	for _, n := range fn.Graph.Nodes() {
		if _, ok := kernels[n.Kind()]; !ok && !n.Kind().IsLeaf() {
			return nil, graph.Internalf("cpu", "no kernel for %s", n.Kind())
		}
		if n.DType().Kind == tensor.Complex {
			return nil, fmt.Errorf("cpu: %s: complex dtypes are not supported", n)
		}
	}
	return &Program{
		fn:      fn,
		inputs:  inputs,
		outputs: outputs,
		params:  make(map[graph.ID]*value),
		logger:  b.logger,
		par:     b.par,
	}, nil
}

var _ graph.Backend = (*Backend)(nil)
