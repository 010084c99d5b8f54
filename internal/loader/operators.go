package loader

import (
	"fmt"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
	"github.com/born-ml/symgraph/internal/tensor"
)

type operator struct {
	arity int
	build func(g *graph.Graph, args []*graph.Node, body *nodeBody) (*graph.Node, error)
}

type unaryFn func(*graph.Graph, *graph.Node) (*graph.Node, error)
type binaryFn func(*graph.Graph, *graph.Node, *graph.Node) (*graph.Node, error)
type reduceFn func(*graph.Graph, *graph.Node, ...int) (*graph.Node, error)

func unaryOp(f unaryFn) operator {
	return operator{arity: 1, build: func(g *graph.Graph, args []*graph.Node, _ *nodeBody) (*graph.Node, error) {
		return f(g, args[0])
	}}
}

func binaryOp(f binaryFn) operator {
	return operator{arity: 2, build: func(g *graph.Graph, args []*graph.Node, _ *nodeBody) (*graph.Node, error) {
		return f(g, args[0], args[1])
	}}
}

func reduceOp(f reduceFn) operator {
	return operator{arity: 1, build: func(g *graph.Graph, args []*graph.Node, body *nodeBody) (*graph.Node, error) {
		return f(g, args[0], body.Axes...)
	}}
}

// operators maps the op attribute of node blocks to constructors.
var operators = map[string]operator{
	"neg":     unaryOp(ops.Neg),
	"exp":     unaryOp(ops.Exp),
	"log":     unaryOp(ops.Log),
	"sqrt":    unaryOp(ops.Sqrt),
	"sin":     unaryOp(ops.Sin),
	"cos":     unaryOp(ops.Cos),
	"tanh":    unaryOp(ops.Tanh),
	"sigmoid": unaryOp(ops.Sigmoid),
	"abs":     unaryOp(ops.Abs),
	"sign":    unaryOp(ops.Sign),
	"square":  unaryOp(ops.Square),
	"not":     unaryOp(ops.Not),
	"inverse": unaryOp(ops.Inverse),

	"add":     binaryOp(ops.Add),
	"sub":     binaryOp(ops.Sub),
	"mul":     binaryOp(ops.Mul),
	"div":     binaryOp(ops.Div),
	"pow":     binaryOp(ops.Pow),
	"maximum": binaryOp(ops.Maximum),
	"minimum": binaryOp(ops.Minimum),
	"greater": binaryOp(ops.Greater),
	"less":    binaryOp(ops.Less),
	"equal":   binaryOp(ops.Equal),
	"and":     binaryOp(ops.And),
	"or":      binaryOp(ops.Or),
	"matmul":  binaryOp(ops.MatMul),
	"solve":   binaryOp(ops.Solve),
	"gather":  binaryOp(ops.Gather),

	"sum":  reduceOp(ops.Sum),
	"max":  reduceOp(ops.Max),
	"mean": reduceOp(ops.Mean),

	"where": {arity: 3, build: func(g *graph.Graph, args []*graph.Node, _ *nodeBody) (*graph.Node, error) {
		return ops.Where(g, args[0], args[1], args[2])
	}},
	"scatter_add": {arity: 3, build: func(g *graph.Graph, args []*graph.Node, _ *nodeBody) (*graph.Node, error) {
		return ops.ScatterAdd(g, args[0], args[1], args[2])
	}},
	"cast": {arity: 1, build: func(g *graph.Graph, args []*graph.Node, body *nodeBody) (*graph.Node, error) {
		if body.DType == "" {
			return nil, fmt.Errorf("cast requires a dtype")
		}
		dt, err := tensor.ParseDataType(body.DType)
		if err != nil {
			return nil, err
		}
		return ops.Cast(g, args[0], dt)
	}},
	"reshape": {arity: 1, build: func(g *graph.Graph, args []*graph.Node, body *nodeBody) (*graph.Node, error) {
		shape, err := shapeOf(body.Shape)
		if err != nil {
			return nil, err
		}
		return ops.Reshape(g, args[0], shape)
	}},
	"broadcast": {arity: 1, build: func(g *graph.Graph, args []*graph.Node, body *nodeBody) (*graph.Node, error) {
		shape, err := shapeOf(body.Shape)
		if err != nil {
			return nil, err
		}
		return ops.Broadcast(g, args[0], shape)
	}},
	"transpose": {arity: 1, build: func(g *graph.Graph, args []*graph.Node, body *nodeBody) (*graph.Node, error) {
		if len(body.Axes) == 0 {
			return ops.T(g, args[0])
		}
		if len(body.Axes) > tensor.MaxRank {
			return nil, fmt.Errorf("transpose takes at most %d axes, got %d", tensor.MaxRank, len(body.Axes))
		}
		var perm [tensor.MaxRank]int
		for i := range perm {
			perm[i] = i
		}
		copy(perm[:], body.Axes)
		return ops.Transpose(g, args[0], perm)
	}},
}
