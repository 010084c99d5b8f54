// Package optim builds optimization steps into a symbolic graph.
//
// An optimizer differentiates an objective with respect to a set of
// parameters and registers one persistent update per parameter. State such
// as momentum buffers becomes additional parameters of the graph, updated
// alongside the weights. Running an extracted function then performs one
// training step per call.
//
// Example usage:
//
//	opt := optim.NewAdam(optim.AdamConfig{LR: 0.001})
//	if err := opt.Minimize(loss, params); err != nil {
//	    return err
//	}
//	fn, _, err := g.Extract(inputs, []*graph.Node{loss})
//	prog, err := cpu.New().Compile(fn)
//	for batch := range batches {
//	    _, err = prog.Run(batch) // applies the updates
//	}
package optim

import (
	"fmt"
	"strings"

	"github.com/born-ml/symgraph/internal/autodiff"
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
)

// Optimizer is the base interface for all optimization algorithms.
type Optimizer interface {
	// Minimize registers the update rule of every parameter the objective
	// depends on. Parameters without a gradient keep their value.
	Minimize(objective *graph.Node, params []*graph.Node) error

	// LR returns the learning rate.
	LR() float64
}

// New returns the optimizer called name ("sgd" or "adam") configured from
// the shared settings. Zero values select the defaults of each optimizer.
func New(name string, lr, momentum float64, betas [2]float64, eps float64) (Optimizer, error) {
	switch strings.ToLower(name) {
	case "sgd":
		return NewSGD(SGDConfig{LR: lr, Momentum: momentum}), nil
	case "adam":
		return NewAdam(AdamConfig{LR: lr, Betas: betas, Eps: eps}), nil
	}
	return nil, fmt.Errorf("unknown optimizer %q (expected sgd or adam)", name)
}

// gradients validates params and differentiates objective. A parameter
// listed twice or already carrying an update is rejected before anything is
// registered.
func gradients(op string, objective *graph.Node, params []*graph.Node) ([]*graph.Node, error) {
	if objective == nil {
		return nil, graph.Constructionf(op, nil, "nil objective")
	}
	seen := make(map[*graph.Node]bool, len(params))
	for _, p := range params {
		if p == nil {
			return nil, graph.Constructionf(op, nil, "nil parameter")
		}
		if seen[p] {
			return nil, graph.Constructionf(op, []*graph.Node{p}, "%s is listed twice", p.Label())
		}
		seen[p] = true
		if p.Kind() != graph.KindParameter {
			return nil, graph.Constructionf(op, []*graph.Node{p}, "%s is not a parameter", p.Label())
		}
		if !p.DType().IsFloat() {
			return nil, graph.Constructionf(op, []*graph.Node{p}, "%s has non-float dtype %s", p.Label(), p.DType())
		}
	}
	for _, u := range objective.Graph().Updates() {
		if seen[u.Target] {
			return nil, graph.Constructionf(op, []*graph.Node{u.Target}, "%s already has an update", u.Target.Label())
		}
	}
	return autodiff.Gradient(objective, params)
}

// update is a parameter assignment built by a step and registered once
// every step has been built.
type update struct {
	target, value *graph.Node
}

func register(g *graph.Graph, updates []update) error {
	for _, u := range updates {
		if err := g.AddUpdate(u.target, u.value); err != nil {
			return err
		}
	}
	return nil
}

// fill returns a constant shaped like x.
func fill(g *graph.Graph, value float64, x *graph.Node) (*graph.Node, error) {
	return ops.Constant(g, value, x.DType(), x.Shape())
}

// scaled returns value * x.
func scaled(g *graph.Graph, value float64, x *graph.Node) (*graph.Node, error) {
	c, err := fill(g, value, x)
	if err != nil {
		return nil, err
	}
	return ops.Mul(g, c, x)
}

// state creates a zero-initialized parameter that mirrors p.
func state(g *graph.Graph, prefix string, p *graph.Node) (*graph.Node, error) {
	return ops.Parameter(g, prefix+"("+p.Label()+")", p.DType(), p.Shape(), 0)
}
