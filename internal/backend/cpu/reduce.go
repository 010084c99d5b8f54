package cpu

import (
	"math"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
)

// reduceKernel sums or maximizes the parent over the reduced axes, which
// have size 1 in the output.
func reduceKernel(c *call) error {
	op, ok := c.node.Op().(*ops.ReduceOp)
	if !ok {
		return graph.Internalf("cpu", "%s is not a reduction operator", c.node)
	}
	isMax := op.Kind() == graph.KindMax
	start := 0.0
	if isMax {
		start = math.Inf(-1)
	}
	for i := range c.out.data {
		c.out.data[i] = start
	}

	in := c.args[0]
	st := strides(c.out.dims)
	for i, x := range in.data {
		idx := unravel(i, in.dims)
		for _, a := range op.Axes() {
			idx[a] = 0
		}
		o := idx.offset(st)
		if isMax {
			c.out.data[o] = math.Max(c.out.data[o], x)
		} else {
			c.out.data[o] += x
		}
	}
	return nil
}
