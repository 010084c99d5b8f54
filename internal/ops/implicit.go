package ops

import (
	"fmt"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/tensor"
)

// coerced is the result of bringing operands to a common shape and dtype.
type coerced struct {
	nodes []*graph.Node
	shape tensor.Shape
	dtype tensor.DataType // common dtype of the castable operands
}

// coerce broadcasts all operands to a common shape and casts operands from
// index fixed onward to a common dtype. Operands before fixed (conditions)
// keep their dtype. accept, when non-nil, validates the common dtype.
//
// Every check that can fail, including PolicyRaise, runs before the first
// Cast or Broadcast node is inserted.
func coerce(g *graph.Graph, name string, operands []*graph.Node, fixed int, accept func(tensor.DataType) error) (coerced, error) {
	if err := g.CheckAll(operands...); err != nil {
		return coerced{}, err
	}

	shape := operands[0].Shape()
	for _, o := range operands[1:] {
		s, _, err := tensor.BroadcastShapes(shape, o.Shape())
		if err != nil {
			return coerced{}, graph.Constructionf(name, operands, "%v", err)
		}
		shape = s
	}
	dtype := operands[fixed].DType()
	for _, o := range operands[fixed+1:] {
		dtype = tensor.Promote(dtype, o.DType())
	}
	if accept != nil {
		if err := accept(dtype); err != nil {
			return coerced{}, graph.Constructionf(name, operands, "%v", err)
		}
	}

	needCast, needBroadcast := false, false
	for i, o := range operands {
		if i >= fixed && o.DType() != dtype {
			needCast = true
		}
		if !o.Shape().Equal(shape) {
			needBroadcast = true
		}
	}
	if needCast {
		if err := g.CheckPolicy(graph.TriggerCast, "%s: implicit cast to %s", name, dtype); err != nil {
			return coerced{}, err
		}
	}
	if needBroadcast {
		if err := g.CheckPolicy(graph.TriggerBroadcast, "%s: implicit broadcast to %s", name, shape); err != nil {
			return coerced{}, err
		}
	}

	if needCast {
		_ = g.ApplyPolicy(graph.TriggerCast, "%s: implicit cast to %s", name, dtype)
	}
	if needBroadcast {
		_ = g.ApplyPolicy(graph.TriggerBroadcast, "%s: implicit broadcast to %s", name, shape)
	}

	out := coerced{nodes: make([]*graph.Node, len(operands)), shape: shape, dtype: dtype}
	for i, o := range operands {
		x := o
		var err error
		if i >= fixed && x.DType() != dtype {
			if x, err = Cast(g, x, dtype); err != nil {
				return coerced{}, err
			}
		}
		if !x.Shape().Equal(shape) {
			if x, err = Broadcast(g, x, shape); err != nil {
				return coerced{}, err
			}
		}
		out.nodes[i] = x
	}
	return out, nil
}

// numeric rejects bool.
func numeric(dt tensor.DataType) error {
	if !dt.IsNumeric() {
		return fmt.Errorf("requires numeric operands, got %s", dt)
	}
	return nil
}

// floating requires a real float type.
func floating(dt tensor.DataType) error {
	if !dt.IsFloat() {
		return fmt.Errorf("requires float operands, got %s", dt)
	}
	return nil
}

// boolean requires bool.
func boolean(dt tensor.DataType) error {
	if dt.Kind != tensor.Bool {
		return fmt.Errorf("requires bool operands, got %s", dt)
	}
	return nil
}
