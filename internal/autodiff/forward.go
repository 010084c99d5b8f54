package autodiff

import (
	"github.com/born-ml/symgraph/internal/graph"
)

// ForwardDiff returns the directional derivative of each output along the
// given input tangents, as new nodes of the inputs' graph.
//
// tangents[i] seeds the derivative slot of inputs[i] and must match its
// shape and dtype. Slots are filled in ascending id order; a parent whose
// slot is unset contributes no message, which is distinct from a zero
// message. Outputs without a derivative follow the IndependentGradient
// policy like Gradient targets do.
func ForwardDiff(inputs, tangents, outputs []*graph.Node) ([]*graph.Node, error) {
	if len(inputs) == 0 {
		return nil, graph.Constructionf("forward_diff", nil, "no inputs given")
	}
	if len(inputs) != len(tangents) {
		return nil, graph.Constructionf("forward_diff", nil, "%d inputs but %d tangents", len(inputs), len(tangents))
	}
	g, err := graphOf(inputs[0])
	if err != nil {
		return nil, err
	}
	for _, set := range [][]*graph.Node{inputs, tangents, outputs} {
		if err := g.CheckAll(set...); err != nil {
			return nil, err
		}
	}

	slots := make(map[graph.ID]*graph.Node, len(inputs))
	for i, in := range inputs {
		t := tangents[i]
		if !in.IsDifferentiable() {
			return nil, graph.Constructionf("forward_diff", []*graph.Node{in}, "input is not differentiable")
		}
		if !t.Shape().Equal(in.Shape()) || t.DType() != in.DType() {
			return nil, graph.Constructionf("forward_diff", []*graph.Node{in, t},
				"tangent %s%s does not match input %s%s", t.DType(), t.Shape(), in.DType(), in.Shape())
		}
		if _, dup := slots[in.ID()]; dup {
			return nil, graph.Constructionf("forward_diff", []*graph.Node{in}, "input listed twice")
		}
		slots[in.ID()] = t
	}

	flow, err := flowTree(g, inputs, outputs)
	if err != nil {
		return nil, err
	}
	start := g.Len()
	seeded := len(slots)

	for _, id := range flow.IDs() {
		if _, ok := slots[id]; ok {
			continue
		}
		n, err := g.Node(id)
		if err != nil {
			return nil, err
		}
		if !n.IsDifferentiable() {
			continue
		}
		var tangent *graph.Node
		if err := g.Provenance(n, "tangent", func() error {
			var err error
			tangent, err = forwardVisit(n, flow, slots)
			return err
		}); err != nil {
			return nil, err
		}
		if tangent != nil {
			slots[id] = tangent
		}
	}

	out := make([]*graph.Node, len(outputs))
	for i, o := range outputs {
		out[i] = slots[o.ID()]
		if out[i] == nil {
			if err := noResult(g, "forward_diff", o, inputs...); err != nil {
				return nil, err
			}
		}
	}

	g.Logger().Debug("forward derivative computed",
		"inputs", len(inputs),
		"outputs", len(outputs),
		"flow", flow.Count(),
		"tangents", len(slots)-seeded,
		"created", g.Len()-start)
	return out, nil
}

// forwardVisit combines the contributions of the parents of n. It returns
// nil when no parent carries a tangent.
func forwardVisit(n *graph.Node, flow graph.Mask, slots map[graph.ID]*graph.Node) (*graph.Node, error) {
	op := n.Op()
	parents := op.Parents()
	msgs := make([]*graph.Node, len(parents))
	found := false
	for i, p := range parents {
		if flow.Has(p.ID()) && p.IsDifferentiable() {
			msgs[i] = slots[p.ID()]
			found = found || msgs[i] != nil
		}
	}
	if !found {
		return nil, nil
	}

	var contributions []*graph.Node
	for i := range parents {
		if msgs[i] == nil {
			continue
		}
		c, err := op.ForwardDiffParent(msgs, i)
		if err != nil {
			return nil, err
		}
		if c == nil {
			continue
		}
		if err := checkMessage(op.Name(), n, c); err != nil {
			return nil, err
		}
		contributions = append(contributions, c)
	}
	if len(contributions) == 0 {
		return nil, graph.Internalf(op.Name(), "tangents of %s produced no contribution", n.ID())
	}
	return op.ForwardDiffCombine(contributions)
}
