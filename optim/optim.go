// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers that build training steps into a graph.
//
// Minimize differentiates the objective and registers one persistent update
// per parameter. Every call of an extracted and compiled function then
// performs one optimization step.
//
// Example:
//
//	opt := optim.NewSGD(optim.SGDConfig{LR: 0.01, Momentum: 0.9})
//	if err := opt.Minimize(loss, []*graph.Node{w, b}); err != nil {
//	    log.Fatal(err)
//	}
//	fn, _, _ := g.Extract([]*graph.Node{x, y}, []*graph.Node{loss})
//	prog, _ := cpu.New().Compile(fn)
//	for _, batch := range batches {
//	    out, _ := prog.Run(batch) // out[0] is the loss before the step
//	}
package optim

import "github.com/born-ml/symgraph/internal/optim"

// Optimizer is the base interface for all optimization algorithms.
type Optimizer = optim.Optimizer

// SGD implements Stochastic Gradient Descent with optional momentum.
type SGD = optim.SGD

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig = optim.SGDConfig

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	return optim.NewSGD(config)
}

// Adam implements the Adam optimizer.
type Adam = optim.Adam

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig = optim.AdamConfig

// NewAdam creates a new Adam optimizer.
func NewAdam(config AdamConfig) *Adam {
	return optim.NewAdam(config)
}
