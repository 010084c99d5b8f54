// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the symbolic computation graph.
//
// A Graph owns its nodes. Nodes are created by the constructors of package
// ops, which validate operands, derive the result shape and dtype, and
// reuse an existing node when an identical computation was already built.
//
// Example:
//
//	import (
//	    "github.com/born-ml/symgraph/graph"
//	    "github.com/born-ml/symgraph/ops"
//	    "github.com/born-ml/symgraph/tensor"
//	)
//
//	func main() {
//	    g := graph.New(graph.WithName("model"))
//	    shape, _ := tensor.NewShape(tensor.Sym("n"), tensor.Const(3))
//	    x, _ := ops.Input(g, "x", tensor.Float32, shape)
//	    y, _ := ops.Exp(g, x)
//
//	    // Extract a self-contained function computing y from x.
//	    fn, _, err := g.Extract([]*graph.Node{x}, []*graph.Node{y})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Print(fn.Graph.Summary())
//	}
//
// # Policies
//
// Implicit broadcasts, implicit casts and gradients of independent targets
// are governed by a Policy: PolicyQuiet continues silently, PolicyWarn logs
// a warning through the graph logger, PolicyRaise fails with *PolicyError.
package graph

import (
	"log/slog"

	"github.com/born-ml/symgraph/internal/graph"
)

// Graph owns all nodes and performs node interning.
type Graph = graph.Graph

// Node is one computed tensor expression.
type Node = graph.Node

// ID identifies a node inside its graph.
type ID = graph.ID

// Handle is a weak reference to a node.
type Handle = graph.Handle

// Operator describes how a node is computed.
type Operator = graph.Operator

// Kind enumerates the operators.
type Kind = graph.Kind

// Operator kinds.
const (
	KindInput       = graph.KindInput
	KindParameter   = graph.KindParameter
	KindConstant    = graph.KindConstant
	KindSymbolValue = graph.KindSymbolValue
	KindAdd         = graph.KindAdd
	KindSub         = graph.KindSub
	KindMul         = graph.KindMul
	KindDiv         = graph.KindDiv
	KindPow         = graph.KindPow
	KindMaximum     = graph.KindMaximum
	KindMinimum     = graph.KindMinimum
	KindNeg         = graph.KindNeg
	KindExp         = graph.KindExp
	KindLog         = graph.KindLog
	KindSqrt        = graph.KindSqrt
	KindSin         = graph.KindSin
	KindCos         = graph.KindCos
	KindTanh        = graph.KindTanh
	KindSigmoid     = graph.KindSigmoid
	KindAbs         = graph.KindAbs
	KindSign        = graph.KindSign
	KindGreater     = graph.KindGreater
	KindLess        = graph.KindLess
	KindEqual       = graph.KindEqual
	KindAnd         = graph.KindAnd
	KindOr          = graph.KindOr
	KindNot         = graph.KindNot
	KindWhere       = graph.KindWhere
	KindCast        = graph.KindCast
	KindBroadcast   = graph.KindBroadcast
	KindReshape     = graph.KindReshape
	KindTranspose   = graph.KindTranspose
	KindSum         = graph.KindSum
	KindMax         = graph.KindMax
	KindMatMul      = graph.KindMatMul
	KindSolve       = graph.KindSolve
	KindInverse     = graph.KindInverse
	KindGather      = graph.KindGather
	KindScatterAdd  = graph.KindScatterAdd
)

// Mask is a per-node boolean indexed by ID.
type Mask = graph.Mask

// Mapping relates node ids of a source graph to their copies in an
// extracted function.
type Mapping = graph.Mapping

// Function is a self-contained graph with an ordered input/output interface.
type Function = graph.Function

// Update pairs a persistent parameter with its next value.
type Update = graph.Update

// Buffer is a concrete dense tensor exchanged with a backend.
type Buffer = graph.Buffer

// Backend turns a Function into an Executable.
type Backend = graph.Backend

// Executable runs a compiled Function.
type Executable = graph.Executable

// Error types.
type (
	ConstructionError = graph.ConstructionError
	InternalError     = graph.InternalError
	PolicyError       = graph.PolicyError
)

// Sentinel errors for stale and foreign nodes.
var (
	ErrExpired     = graph.ErrExpired
	ErrForeignNode = graph.ErrForeignNode
)

// Policy selects the reaction to a policy trigger.
type Policy = graph.Policy

// Policies.
const (
	PolicyQuiet = graph.PolicyQuiet
	PolicyWarn  = graph.PolicyWarn
	PolicyRaise = graph.PolicyRaise
)

// Trigger names a situation governed by a policy.
type Trigger = graph.Trigger

// Policy triggers.
const (
	TriggerBroadcast           = graph.TriggerBroadcast
	TriggerCast                = graph.TriggerCast
	TriggerIndependentGradient = graph.TriggerIndependentGradient
)

// Policies holds one policy per trigger.
type Policies = graph.Policies

// DefaultPolicies returns the policies used by New.
func DefaultPolicies() Policies {
	return graph.DefaultPolicies()
}

// ParsePolicy parses "quiet", "warn" or "raise".
func ParsePolicy(s string) (Policy, error) {
	return graph.ParsePolicy(s)
}

// Option configures a Graph.
type Option = graph.Option

// New creates an empty graph.
func New(opts ...Option) *Graph {
	return graph.New(opts...)
}

// WithName sets the diagnostic graph name.
func WithName(name string) Option {
	return graph.WithName(name)
}

// WithLogger sets the logger used for policy warnings and diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return graph.WithLogger(logger)
}

// WithPolicies sets all policies at once.
func WithPolicies(p Policies) Option {
	return graph.WithPolicies(p)
}

// WithBroadcastPolicy sets the implicit broadcast policy.
func WithBroadcastPolicy(p Policy) Option {
	return graph.WithBroadcastPolicy(p)
}

// WithCastPolicy sets the implicit cast policy.
func WithCastPolicy(p Policy) Option {
	return graph.WithCastPolicy(p)
}

// WithIndependentGradientPolicy sets the policy for gradients of targets
// the objective does not depend on.
func WithIndependentGradientPolicy(p Policy) Option {
	return graph.WithIndependentGradientPolicy(p)
}
