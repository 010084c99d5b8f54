package cpu

import (
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
	"github.com/born-ml/symgraph/internal/tensor"
)

type index [tensor.MaxRank]int

// strides returns row-major strides for dims.
func strides(dims [tensor.MaxRank]int) index {
	var s index
	acc := 1
	for i := tensor.MaxRank - 1; i >= 0; i-- {
		s[i] = acc
		acc *= dims[i]
	}
	return s
}

// unravel converts a flat offset into a multi-index over dims.
func unravel(flat int, dims [tensor.MaxRank]int) index {
	var idx index
	for i := tensor.MaxRank - 1; i >= 0; i-- {
		idx[i] = flat % dims[i]
		flat /= dims[i]
	}
	return idx
}

func (idx index) offset(st index) int {
	return idx[0]*st[0] + idx[1]*st[1] + idx[2]*st[2] + idx[3]*st[3]
}

// broadcastKernel expands size-1 dimensions of the parent.
func broadcastKernel(c *call) error {
	in := c.args[0]
	st := strides(in.dims)
	for i := range c.out.data {
		idx := unravel(i, c.out.dims)
		for k := range idx {
			if in.dims[k] == 1 {
				idx[k] = 0
			}
		}
		c.out.data[i] = in.data[idx.offset(st)]
	}
	return nil
}

// transposeKernel writes out[i] = in[j] with j[perm[k]] = i[k].
func transposeKernel(c *call) error {
	op, ok := c.node.Op().(*ops.TransposeOp)
	if !ok {
		return graph.Internalf("cpu", "%s is not a transpose operator", c.node)
	}
	perm := op.Perm()
	in := c.args[0]
	st := strides(in.dims)
	for i := range c.out.data {
		idx := unravel(i, c.out.dims)
		var src index
		for k, p := range perm {
			src[p] = idx[k]
		}
		c.out.data[i] = in.data[src.offset(st)]
	}
	return nil
}
