package cpu

import (
	"errors"
	"math"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
	"github.com/born-ml/symgraph/internal/parallel"
	"github.com/born-ml/symgraph/internal/tensor"
)

var errIntegerDivide = errors.New("integer division by zero")

// round converts x to the nearest value representable in dt. Integers
// truncate toward zero and wrap at their width; bool is 0 or 1.
func round(dt tensor.DataType, x float64) float64 {
	switch dt.Kind {
	case tensor.Bool:
		if x != 0 {
			return 1
		}
		return 0
	case tensor.Float:
		if dt.Bits <= 32 {
			return float64(float32(x))
		}
		return x
	case tensor.Int:
		i := int64(math.Trunc(x))
		switch dt.Bits {
		case 8:
			return float64(int8(i))
		case 16:
			return float64(int16(i))
		case 32:
			return float64(int32(i))
		}
		return float64(i)
	case tensor.Uint:
		u := uint64(int64(math.Trunc(x)))
		switch dt.Bits {
		case 8:
			return float64(uint8(u))
		case 16:
			return float64(uint16(u))
		case 32:
			return float64(uint32(u))
		}
		return float64(u)
	}
	return x
}

func boolf(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

var unaryFuncs = map[graph.Kind]func(float64) float64{
	graph.KindNeg:     func(x float64) float64 { return -x },
	graph.KindExp:     math.Exp,
	graph.KindLog:     math.Log,
	graph.KindSqrt:    math.Sqrt,
	graph.KindSin:     math.Sin,
	graph.KindCos:     math.Cos,
	graph.KindTanh:    math.Tanh,
	graph.KindSigmoid: func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
	graph.KindAbs:     math.Abs,
	graph.KindSign:    sign,
	graph.KindNot:     func(x float64) float64 { return boolf(x == 0) },
}

var binaryFuncs = map[graph.Kind]func(a, b float64) float64{
	graph.KindAdd:     func(a, b float64) float64 { return a + b },
	graph.KindSub:     func(a, b float64) float64 { return a - b },
	graph.KindMul:     func(a, b float64) float64 { return a * b },
	graph.KindDiv:     func(a, b float64) float64 { return a / b },
	graph.KindPow:     math.Pow,
	graph.KindMaximum: math.Max,
	graph.KindMinimum: math.Min,
	graph.KindGreater: func(a, b float64) float64 { return boolf(a > b) },
	graph.KindLess:    func(a, b float64) float64 { return boolf(a < b) },
	graph.KindEqual:   func(a, b float64) float64 { return boolf(a == b) },
	graph.KindAnd:     func(a, b float64) float64 { return boolf(a != 0 && b != 0) },
	graph.KindOr:      func(a, b float64) float64 { return boolf(a != 0 || b != 0) },
}

func unaryKernel(c *call) error {
	f := unaryFuncs[c.node.Kind()]
	x := c.args[0].data
	return parallel.Rows(len(x), 8, c.par, func(lo, hi int) error {
		for i := lo; i < hi; i++ {
			c.out.data[i] = f(x[i])
		}
		return nil
	})
}

// binaryKernel relies on both operands having the output shape; the graph
// inserts explicit Broadcast nodes for everything else.
func binaryKernel(c *call) error {
	f := binaryFuncs[c.node.Kind()]
	a, b := c.args[0].data, c.args[1].data
	intDiv := c.node.Kind() == graph.KindDiv && !c.node.DType().IsFloat()
	for i := range c.out.data {
		if intDiv && b[i] == 0 {
			return errIntegerDivide
		}
		c.out.data[i] = f(a[i], b[i])
	}
	return nil
}

// whereKernel reads cond from the argument after the two parents.
func whereKernel(c *call) error {
	a, b, cond := c.args[0].data, c.args[1].data, c.args[2].data
	for i := range c.out.data {
		if cond[i] != 0 {
			c.out.data[i] = a[i]
		} else {
			c.out.data[i] = b[i]
		}
	}
	return nil
}

// copyKernel serves Cast and Reshape: the layout is unchanged and the dtype
// conversion happens in the final rounding step.
func copyKernel(c *call) error {
	copy(c.out.data, c.args[0].data)
	return nil
}

func constantKernel(c *call) error {
	op, ok := c.node.Op().(*ops.ConstantOp)
	if !ok {
		return graph.Internalf("cpu", "%s is not a constant operator", c.node)
	}
	for i := range c.out.data {
		c.out.data[i] = op.Value()
	}
	return nil
}

func symbolValueKernel(c *call) error {
	op, ok := c.node.Op().(*ops.SymbolValueOp)
	if !ok {
		return graph.Internalf("cpu", "%s is not a symbol value operator", c.node)
	}
	v, err := op.Value().Evaluate(c.subst)
	if err != nil {
		return err
	}
	for i := range c.out.data {
		c.out.data[i] = float64(v)
	}
	return nil
}
