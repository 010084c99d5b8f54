// Package autodiff differentiates symbolic graphs by message passing.
//
// Both modes build their results as ordinary nodes of the same graph:
//   - Gradient (reverse mode) visits ids in descending order starting at a
//     scalar objective and sends one message per differentiable parent.
//   - ForwardDiff (forward mode) visits ids in ascending order starting at
//     seeded inputs and combines the contributions of every parent.
//
// Messages only travel inside the flow tree, the nodes that lie on some
// dependency path between the differentiation sources and sinks. Nodes
// outside it behave as constants for the duration of the call.
//
// Example:
//
//	g := graph.New()
//	x, _ := ops.Input(g, "x", tensor.Float32, shape)
//	sq, _ := ops.Mul(g, x, x)
//	f, _ := ops.Sum(g, sq)
//	grads, err := autodiff.Gradient(f, []*graph.Node{x}) // grads[0] = 2x
package autodiff

import (
	"fmt"
	"strings"

	"github.com/born-ml/symgraph/internal/graph"
)

// graphOf returns the graph of n after checking that n is still registered.
func graphOf(n *graph.Node) (*graph.Graph, error) {
	if n == nil || n.Graph() == nil {
		return nil, fmt.Errorf("%w: nil node", graph.ErrExpired)
	}
	g := n.Graph()
	if err := g.Check(n); err != nil {
		return nil, err
	}
	return g, nil
}

// flowTree returns descendants(sources) ∩ ancestors(sinks).
func flowTree(g *graph.Graph, sources, sinks []*graph.Node) (graph.Mask, error) {
	desc, err := g.DescendantsMask(sources)
	if err != nil {
		return nil, err
	}
	anc, err := g.AncestorsMask(sinks)
	if err != nil {
		return nil, err
	}
	return desc.And(anc), nil
}

// noResult applies the independent-variable policy for a source or sink
// without a derivative.
func noResult(g *graph.Graph, mode string, of *graph.Node, wrt ...*graph.Node) error {
	labels := make([]string, len(wrt))
	for i, n := range wrt {
		labels[i] = n.Label()
	}
	return g.ApplyPolicy(graph.TriggerIndependentGradient,
		"%s: %s does not depend on %s", mode, of.Label(), strings.Join(labels, ", "))
}

// checkMessage verifies that a message produced for n has its shape and
// dtype.
func checkMessage(op string, n, msg *graph.Node) error {
	if msg == nil {
		return nil
	}
	if !msg.Shape().Equal(n.Shape()) || msg.DType() != n.DType() {
		return graph.Internalf(op, "message %s%s for %s does not match %s%s",
			msg.DType(), msg.Shape(), n.ID(), n.DType(), n.Shape())
	}
	return nil
}
