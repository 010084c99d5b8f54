package optim

import (
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
	"github.com/born-ml/symgraph/internal/tensor"
)

// Adam implements the Adam (Adaptive Moment Estimation) optimizer.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²
//	m_hat = m_t / (1 - beta1^t)
//	v_hat = v_t / (1 - beta2^t)
//	param = param - lr * m_hat / (sqrt(v_hat) + eps)
//
// Each parameter gets three state parameters: "adam_m(<param>)",
// "adam_v(<param>)" and the scalar step counter "adam_t(<param>)".
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014).
type Adam struct {
	lr    float64
	beta1 float64
	beta2 float64
	eps   float64
}

// AdamConfig holds configuration for Adam optimizer.
type AdamConfig struct {
	LR    float64    // Learning rate (default: 0.001)
	Betas [2]float64 // Coefficients for computing running averages (default: [0.9, 0.999])
	Eps   float64    // Term for numerical stability (default: 1e-8)
}

// NewAdam creates a new Adam optimizer with defaults for unset fields.
func NewAdam(config AdamConfig) *Adam {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam{lr: config.LR, beta1: config.Betas[0], beta2: config.Betas[1], eps: config.Eps}
}

// LR returns the learning rate.
func (a *Adam) LR() float64 {
	return a.lr
}

// Minimize implements Optimizer.
func (a *Adam) Minimize(objective *graph.Node, params []*graph.Node) error {
	grads, err := gradients("adam", objective, params)
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
		if err := g.Provenance(p, "adam", func() error {
			built, err := a.step(g, p, grad)
			pending = append(pending, built...)
			return err
		}); err != nil {
			return err
		}
	}
	return register(g, pending)
}

func (a *Adam) step(g *graph.Graph, p, grad *graph.Node) ([]update, error) {
	m, err := state(g, "adam_m", p)
	if err != nil {
		return nil, err
	}
	v, err := state(g, "adam_v", p)
	if err != nil {
		return nil, err
	}
	t, err := ops.Parameter(g, "adam_t("+p.Label()+")", p.DType(), tensor.Scalar(), 0)
	if err != nil {
		return nil, err
	}

	// t += 1
	one, err := ops.Scalar(g, 1, p.DType())
	if err != nil {
		return nil, err
	}
	tNext, err := ops.Add(g, t, one)
	if err != nil {
		return nil, err
	}

	// m = beta1*m + (1-beta1)*g
	mNext, err := a.average(g, a.beta1, m, grad)
	if err != nil {
		return nil, err
	}
	// v = beta2*v + (1-beta2)*g²
	sq, err := ops.Square(g, grad)
	if err != nil {
		return nil, err
	}
	vNext, err := a.average(g, a.beta2, v, sq)
	if err != nil {
		return nil, err
	}

	mHat, err := a.unbias(g, a.beta1, mNext, tNext)
	if err != nil {
		return nil, err
	}
	vHat, err := a.unbias(g, a.beta2, vNext, tNext)
	if err != nil {
		return nil, err
	}

	// param -= lr * m_hat / (sqrt(v_hat) + eps)
	root, err := ops.Sqrt(g, vHat)
	if err != nil {
		return nil, err
	}
	eps, err := fill(g, a.eps, p)
	if err != nil {
		return nil, err
	}
	denom, err := ops.Add(g, root, eps)
	if err != nil {
		return nil, err
	}
	ratio, err := ops.Div(g, mHat, denom)
	if err != nil {
		return nil, err
	}
	delta, err := scaled(g, a.lr, ratio)
	if err != nil {
		return nil, err
	}
	pNext, err := ops.Sub(g, p, delta)
	if err != nil {
		return nil, err
	}

	return []update{{m, mNext}, {v, vNext}, {t, tNext}, {p, pNext}}, nil
}

// average returns beta*acc + (1-beta)*x.
func (a *Adam) average(g *graph.Graph, beta float64, acc, x *graph.Node) (*graph.Node, error) {
	kept, err := scaled(g, beta, acc)
	if err != nil {
		return nil, err
	}
	added, err := scaled(g, 1-beta, x)
	if err != nil {
		return nil, err
	}
	return ops.Add(g, kept, added)
}

// unbias returns x / (1 - beta^t) with the scalar correction broadcast
// explicitly to the shape of x.
func (a *Adam) unbias(g *graph.Graph, beta float64, x, t *graph.Node) (*graph.Node, error) {
	b, err := ops.Scalar(g, beta, x.DType())
	if err != nil {
		return nil, err
	}
	pow, err := ops.Pow(g, b, t)
	if err != nil {
		return nil, err
	}
	one, err := ops.Scalar(g, 1, x.DType())
	if err != nil {
		return nil, err
	}
	corr, err := ops.Sub(g, one, pow)
	if err != nil {
		return nil, err
	}
	if corr, err = ops.Broadcast(g, corr, x.Shape()); err != nil {
		return nil, err
	}
	return ops.Div(g, x, corr)
}
