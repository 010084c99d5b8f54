package optim

import (
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
)

// SGD implements Stochastic Gradient Descent with optional momentum.
//
// Update rule without momentum:
//
//	param = param - lr * gradient
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + gradient
//	param = param - lr * velocity
//
// The velocity is a parameter named "velocity(<param>)".
type SGD struct {
	lr       float64
	momentum float64
}

// SGDConfig holds configuration for SGD optimizer.
type SGDConfig struct {
	LR       float64 // Learning rate (default: 0.01)
	Momentum float64 // Momentum factor (default: 0.0, range: [0, 1))
}

// NewSGD creates a new SGD optimizer.
func NewSGD(config SGDConfig) *SGD {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD{lr: config.LR, momentum: config.Momentum}
}

// LR returns the learning rate.
func (s *SGD) LR() float64 {
	return s.lr
}

// Minimize implements Optimizer.
func (s *SGD) Minimize(objective *graph.Node, params []*graph.Node) error {
	grads, err := gradients("sgd", objective, params)
	if err != nil {
		return err
	}
	g := objective.Graph()
	var pending []update
	for i, p := range params {
		grad := grads[i]
		if grad == nil {
			continue
		}
		if err := g.Provenance(p, "sgd", func() error {
			built, err := s.step(g, p, grad)
			pending = append(pending, built...)
			return err
		}); err != nil {
			return err
		}
	}
	return register(g, pending)
}

func (s *SGD) step(g *graph.Graph, p, grad *graph.Node) ([]update, error) {
	var out []update
	direction := grad
	if s.momentum != 0 {
		v, err := state(g, "velocity", p)
		if err != nil {
			return nil, err
		}
		decayed, err := scaled(g, s.momentum, v)
		if err != nil {
			return nil, err
		}
		if direction, err = ops.Add(g, decayed, grad); err != nil {
			return nil, err
		}
		out = append(out, update{v, direction})
	}

	delta, err := scaled(g, s.lr, direction)
	if err != nil {
		return nil, err
	}
	next, err := ops.Sub(g, p, delta)
	if err != nil {
		return nil, err
	}
	return append(out, update{p, next}), nil
}
