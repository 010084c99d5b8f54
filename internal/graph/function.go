package graph

import "fmt"

// Function is a self-contained graph with an ordered input/output interface
// and the persistent updates to apply after each call. It is the artifact
// handed to a Backend.
type Function struct {
	Graph   *Graph
	Inputs  []Handle
	Outputs []Handle
	Updates []Update
}

// InputNodes resolves the input handles.
func (f *Function) InputNodes() ([]*Node, error) {
	return derefAll(f.Inputs)
}

// OutputNodes resolves the output handles.
func (f *Function) OutputNodes() ([]*Node, error) {
	return derefAll(f.Outputs)
}

func derefAll(hs []Handle) ([]*Node, error) {
	out := make([]*Node, len(hs))
	for i, h := range hs {
		n, err := h.Deref()
		if err != nil {
			return nil, fmt.Errorf("handle %d: %w", i, err)
		}
		out[i] = n
	}
	return out, nil
}

// Parameters returns the parameter leaves of the function graph in id order.
func (f *Function) Parameters() []*Node {
	return f.Graph.NodesByKind(KindParameter)
}

// Buffer is a concrete dense tensor exchanged with a backend. Data holds the
// elements in row-major order over the four dimensions of Shape.
type Buffer struct {
	Shape [4]int
	Data  []float64
}

// NumElements returns the product of the dimensions.
func (b Buffer) NumElements() int {
	return b.Shape[0] * b.Shape[1] * b.Shape[2] * b.Shape[3]
}

// Backend turns a Function into something executable.
type Backend interface {
	Compile(fn *Function) (Executable, error)
}

// Executable runs a compiled Function on caller-supplied inputs, in the
// order of Function.Inputs, and returns the outputs in the order of
// Function.Outputs.
type Executable interface {
	Run(inputs []Buffer) ([]Buffer, error)
}
