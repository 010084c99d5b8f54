package ops

import (
	"github.com/born-ml/symgraph/internal/graph"
)

// UnaryOp is an elementwise function of one parent.
//
// Backward pass (g = incoming gradient, x = input, y = output):
//   - neg: -g
//   - exp: g*y
//   - log: g/x
//   - sqrt: g/(y+y)
//   - sin: g*cos(x)
//   - cos: -g*sin(x)
//   - tanh: g*(1-y²)
//   - sigmoid: g*y*(1-y)
//   - abs: g*sign(x)
//
// sign is piecewise constant and never differentiable.
type UnaryOp struct {
	base
}

// Neg returns -x.
func Neg(g *graph.Graph, x *graph.Node) (*graph.Node, error) { return unary(g, graph.KindNeg, x) }

// Exp returns e^x.
func Exp(g *graph.Graph, x *graph.Node) (*graph.Node, error) { return unary(g, graph.KindExp, x) }

// Log returns the natural logarithm of x.
func Log(g *graph.Graph, x *graph.Node) (*graph.Node, error) { return unary(g, graph.KindLog, x) }

// Sqrt returns the square root of x.
func Sqrt(g *graph.Graph, x *graph.Node) (*graph.Node, error) { return unary(g, graph.KindSqrt, x) }

// Sin returns sin(x).
func Sin(g *graph.Graph, x *graph.Node) (*graph.Node, error) { return unary(g, graph.KindSin, x) }

// Cos returns cos(x).
func Cos(g *graph.Graph, x *graph.Node) (*graph.Node, error) { return unary(g, graph.KindCos, x) }

// Tanh returns tanh(x).
func Tanh(g *graph.Graph, x *graph.Node) (*graph.Node, error) { return unary(g, graph.KindTanh, x) }

// Sigmoid returns 1/(1+e^-x).
func Sigmoid(g *graph.Graph, x *graph.Node) (*graph.Node, error) {
	return unary(g, graph.KindSigmoid, x)
}

// Abs returns |x|.
func Abs(g *graph.Graph, x *graph.Node) (*graph.Node, error) { return unary(g, graph.KindAbs, x) }

// Sign returns -1, 0 or 1 with the dtype of x.
func Sign(g *graph.Graph, x *graph.Node) (*graph.Node, error) { return unary(g, graph.KindSign, x) }

func unary(g *graph.Graph, kind graph.Kind, x *graph.Node) (*graph.Node, error) {
	if err := g.Check(x); err != nil {
		return nil, err
	}
	accept := numeric
	if kind.ProducesFloat() {
		accept = floating
	}
	if err := accept(x.DType()); err != nil {
		return nil, graph.Constructionf(kind.String(), []*graph.Node{x}, "%v", err)
	}
	op := &UnaryOp{base: newBase(graph.NewBase(g, kind, []*graph.Node{x}, nil, x.Shape(), x.DType()))}
	return insert(g, op)
}

// Equals implements graph.Operator.
func (op *UnaryOp) Equals(other graph.Operator) bool {
	o, ok := other.(*UnaryOp)
	return ok && op.SameStructure(o)
}

// CopyTo implements graph.Operator.
func (op *UnaryOp) CopyTo(g *graph.Graph, ancestors []*graph.Node) (graph.Operator, error) {
	b, err := rebind(&op.base, g, ancestors)
	if err != nil {
		return nil, err
	}
	return &UnaryOp{base: b}, nil
}

// BackwardDiffParent implements graph.Operator.
func (op *UnaryOp) BackwardDiffParent(msg *graph.Node, index int) (*graph.Node, error) {
	g := op.Graph()
	x := op.Parents()[0]

	switch op.Kind() {
	case graph.KindNeg:
		return Neg(g, msg)

	case graph.KindLog:
		return Div(g, msg, x)

	case graph.KindSin:
		c, err := Cos(g, x)
		if err != nil {
			return nil, err
		}
		return Mul(g, msg, c)

	case graph.KindCos:
		s, err := Sin(g, x)
		if err != nil {
			return nil, err
		}
		t, err := Mul(g, msg, s)
		if err != nil {
			return nil, err
		}
		return Neg(g, t)

	case graph.KindAbs:
		s, err := Sign(g, x)
		if err != nil {
			return nil, err
		}
		return Mul(g, msg, s)
	}

	y, err := owner(&op.base)
	if err != nil {
		return nil, err
	}
	switch op.Kind() {
	case graph.KindExp:
		return Mul(g, msg, y)

	case graph.KindSqrt:
		twoY, err := Add(g, y, y)
		if err != nil {
			return nil, err
		}
		return Div(g, msg, twoY)

	case graph.KindTanh:
		yy, err := Mul(g, y, y)
		if err != nil {
			return nil, err
		}
		one, err := onesLike(g, y)
		if err != nil {
			return nil, err
		}
		d, err := Sub(g, one, yy)
		if err != nil {
			return nil, err
		}
		return Mul(g, msg, d)

	case graph.KindSigmoid:
		one, err := onesLike(g, y)
		if err != nil {
			return nil, err
		}
		omy, err := Sub(g, one, y)
		if err != nil {
			return nil, err
		}
		d, err := Mul(g, y, omy)
		if err != nil {
			return nil, err
		}
		return Mul(g, msg, d)
	}
	return op.base.BackwardDiffParent(msg, index)
}

// ForwardDiffParent implements graph.Operator.
func (op *UnaryOp) ForwardDiffParent(msgs []*graph.Node, index int) (*graph.Node, error) {
	return op.BackwardDiffParent(msgs[index], index)
}
