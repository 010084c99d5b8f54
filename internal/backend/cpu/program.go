package cpu

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
	"github.com/born-ml/symgraph/internal/parallel"
	"github.com/born-ml/symgraph/internal/symbolic"
	"github.com/born-ml/symgraph/internal/tensor"
)

// value is a dense row-major tensor during evaluation.
type value struct {
	dims [tensor.MaxRank]int
	data []float64
}

func (v *value) buffer() graph.Buffer {
	return graph.Buffer{Shape: v.dims, Data: append([]float64(nil), v.data...)}
}

// Program is a compiled function. It is not safe for concurrent use.
type Program struct {
	fn      *graph.Function
	inputs  []*graph.Node
	outputs []*graph.Node
	params  map[graph.ID]*value
	logger  *slog.Logger
	par     parallel.Config

	plan  *Plan
	sig   string
	subst symbolic.Substitution
	arena []float64
	plans int
}

// Run implements graph.Executable. Persistent updates are applied to the
// parameters after the outputs are computed, so they are visible from the
// next call on.
func (p *Program) Run(inputs []graph.Buffer) ([]graph.Buffer, error) {
	if len(inputs) != len(p.inputs) {
		return nil, fmt.Errorf("cpu: expected %d inputs, got %d", len(p.inputs), len(inputs))
	}
	for i, buf := range inputs {
		for axis, d := range buf.Shape {
			if d <= 0 {
				return nil, fmt.Errorf("cpu: input %d axis %d has non-positive extent %d", i, axis, d)
			}
		}
		if len(buf.Data) != buf.NumElements() {
			return nil, fmt.Errorf("cpu: input %d has %d elements for shape %v", i, len(buf.Data), buf.Shape)
		}
	}
	if err := p.prepare(inputs); err != nil {
		return nil, err
	}

	values := make(map[graph.ID]*value, p.fn.Graph.Len())
	for i, in := range p.inputs {
		v := &value{dims: inputs[i].Shape, data: make([]float64, len(inputs[i].Data))}
		for j, x := range inputs[i].Data {
			v.data[j] = round(in.DType(), x)
		}
		values[in.ID()] = v
	}

	for _, n := range p.fn.Graph.Nodes() {
		switch n.Kind() {
		case graph.KindInput:
			if _, ok := values[n.ID()]; !ok {
				return nil, graph.Internalf("cpu", "input %s is not a function input", n.Label())
			}
			continue
		case graph.KindParameter:
			v, err := p.parameter(n)
			if err != nil {
				return nil, err
			}
			values[n.ID()] = v
			continue
		}
		out, err := p.eval(n, values)
		if err != nil {
			return nil, fmt.Errorf("cpu: %s: %w", n, err)
		}
		values[n.ID()] = out
	}

	results := make([]graph.Buffer, len(p.outputs))
	for i, o := range p.outputs {
		results[i] = values[o.ID()].buffer()
	}
	for _, u := range p.fn.Updates {
		v := values[u.Value.ID()]
		p.params[u.Target.ID()] = &value{dims: v.dims, data: append([]float64(nil), v.data...)}
	}
	return results, nil
}

// Plans returns how many times the memory plan was built.
func (p *Program) Plans() int { return p.plans }

// Plan returns the current memory plan, nil before the first Run.
func (p *Program) Plan() *Plan { return p.plan }

// Substitution returns a copy of the symbol values of the last Run.
func (p *Program) Substitution() symbolic.Substitution {
	out := make(symbolic.Substitution, len(p.subst))
	for k, v := range p.subst {
		out[k] = v
	}
	return out
}

// Parameter returns the current value of the parameter named name.
func (p *Program) Parameter(name string) (graph.Buffer, bool) {
	for _, n := range p.fn.Parameters() {
		if n.Name() != name {
			continue
		}
		v, ok := p.params[n.ID()]
		if !ok {
			return graph.Buffer{}, false
		}
		return v.buffer(), true
	}
	return graph.Buffer{}, false
}

// prepare binds the symbols from the input shapes and re-plans when the
// shape signature differs from the previous call.
func (p *Program) prepare(inputs []graph.Buffer) error {
	sig := signature(inputs)
	if p.plan != nil && sig == p.sig {
		return nil
	}
	subst, err := p.bind(inputs)
	if err != nil {
		return err
	}
	plan, err := PlanFunction(p.fn, subst)
	if err != nil {
		return err
	}
	p.plan, p.sig, p.subst = plan, sig, subst
	p.arena = make([]float64, plan.Elements)
	p.plans++
	p.logger.Debug("cpu plan built",
		"signature", sig,
		"slots", len(plan.Slots),
		"bytes", plan.Bytes)
	return nil
}

func signature(inputs []graph.Buffer) string {
	parts := make([]string, len(inputs))
	for i, b := range inputs {
		parts[i] = fmt.Sprint(b.Shape)
	}
	return strings.Join(parts, ";")
}

// bind derives symbol values from the dimensions of the inputs. Dimensions
// such as 2*n can only be checked once n is bound by another dimension, so
// binding repeats until no further progress is made.
func (p *Program) bind(inputs []graph.Buffer) (symbolic.Substitution, error) {
	type pending struct {
		dim   symbolic.Poly
		value int64
		input string
		axis  int
	}
	var todo []pending
	for i, in := range p.inputs {
		for axis, d := range in.Shape() {
			todo = append(todo, pending{dim: d, value: int64(inputs[i].Shape[axis]), input: in.Label(), axis: axis})
		}
	}

	subst := symbolic.Substitution{}
	for len(todo) > 0 {
		var next []pending
		var lastErr error
		for _, t := range todo {
			err := t.dim.Bind(t.value, subst)
			switch {
			case err == nil:
			case errors.Is(err, symbolic.ErrUnderdetermined):
				next = append(next, t)
				lastErr = fmt.Errorf("cpu: input %s axis %d: %w", t.input, t.axis, err)
			default:
				return nil, fmt.Errorf("cpu: input %s axis %d: %w", t.input, t.axis, err)
			}
		}
		if len(next) == len(todo) {
			return nil, lastErr
		}
		todo = next
	}
	return subst, nil
}

// parameter returns the value of a parameter, initializing it on first use.
func (p *Program) parameter(n *graph.Node) (*value, error) {
	dims, err := n.Shape().Evaluate(p.subst)
	if err != nil {
		return nil, fmt.Errorf("cpu: parameter %s: %w", n.Label(), err)
	}
	for axis, d := range dims {
		if d <= 0 {
			return nil, fmt.Errorf("cpu: parameter %s axis %d evaluates to %d", n.Label(), axis, d)
		}
	}
	if v, ok := p.params[n.ID()]; ok {
		if v.dims != dims {
			return nil, fmt.Errorf("cpu: parameter %s was %v, now %v", n.Label(), v.dims, dims)
		}
		return v, nil
	}
	op, ok := n.Op().(*ops.ParameterOp)
	if !ok {
		return nil, graph.Internalf("cpu", "%s is not a parameter operator", n)
	}
	v := &value{dims: dims, data: make([]float64, dims[0]*dims[1]*dims[2]*dims[3])}
	fill := round(n.DType(), op.Initial())
	for i := range v.data {
		v.data[i] = fill
	}
	p.params[n.ID()] = v
	return v, nil
}

// eval runs the kernel of n into its arena slot.
func (p *Program) eval(n *graph.Node, values map[graph.ID]*value) (*value, error) {
	slot, ok := p.plan.Slot(n.ID())
	if !ok {
		return nil, graph.Internalf("cpu", "%s has no memory slot", n.ID())
	}
	out := &value{dims: slot.Dims, data: p.arena[slot.Elem : slot.Elem+slot.Count]}

	ancestors := n.Op().Ancestors()
	args := make([]*value, len(ancestors))
	for i, a := range ancestors {
		v, ok := values[a.ID()]
		if !ok {
			return nil, graph.Internalf("cpu", "%s evaluated before its ancestor %s", n.ID(), a.ID())
		}
		args[i] = v
	}

	k, ok := kernels[n.Kind()]
	if !ok {
		return nil, graph.Internalf("cpu", "no kernel for %s", n.Kind())
	}
	c := &call{node: n, args: args, out: out, subst: p.subst, par: p.par}
	if err := k(c); err != nil {
		return nil, err
	}
	dt := n.DType()
	for i, x := range out.data {
		out.data[i] = round(dt, x)
	}
	return out, nil
}

// call carries the operands of one kernel invocation. args follow the
// operator's ancestor order: parents first, then arguments.
type call struct {
	node  *graph.Node
	args  []*value
	out   *value
	subst symbolic.Substitution
	par   parallel.Config
}

type kernel func(c *call) error

var kernels map[graph.Kind]kernel

func init() {
	kernels = map[graph.Kind]kernel{
		graph.KindConstant:    constantKernel,
		graph.KindSymbolValue: symbolValueKernel,
		graph.KindWhere:       whereKernel,
		graph.KindCast:        copyKernel,
		graph.KindReshape:     copyKernel,
		graph.KindBroadcast:   broadcastKernel,
		graph.KindTranspose:   transposeKernel,
		graph.KindSum:         reduceKernel,
		graph.KindMax:         reduceKernel,
		graph.KindMatMul:      matmulKernel,
		graph.KindSolve:       solveKernel,
		graph.KindInverse:     inverseKernel,
		graph.KindGather:      gatherKernel,
		graph.KindScatterAdd:  scatterAddKernel,
	}
	for k := range unaryFuncs {
		kernels[k] = unaryKernel
	}
	for k := range binaryFuncs {
		kernels[k] = binaryKernel
	}
}
