package autodiff

import (
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
	"github.com/born-ml/symgraph/internal/tensor"
)

// Gradient returns the gradient of the scalar objective with respect to each
// target, as new nodes of the objective's graph.
//
// Algorithm:
//  1. flow tree = descendants(targets) ∩ ancestors(objective)
//  2. seed the constant 1 at the objective, one grad level above it
//  3. visit ids in descending order; a node with messages combines them
//     and sends BackwardDiffParent to every differentiable parent inside
//     the flow tree
//  4. read off the combined message of every target
//
// A target the objective does not depend on yields a nil entry, a logged
// warning or a *graph.PolicyError depending on the graph's
// IndependentGradient policy. No zero node is ever inserted for it.
func Gradient(objective *graph.Node, targets []*graph.Node) ([]*graph.Node, error) {
	g, err := graphOf(objective)
	if err != nil {
		return nil, err
	}
	if err := g.CheckAll(targets...); err != nil {
		return nil, err
	}
	if !objective.Shape().IsScalar() {
		return nil, graph.Constructionf("gradient", []*graph.Node{objective},
			"objective must be a scalar, got shape %s", objective.Shape())
	}

	flow, err := flowTree(g, targets, []*graph.Node{objective})
	if err != nil {
		return nil, err
	}
	start := g.Len()

	wanted := make(map[graph.ID]bool, len(targets))
	for _, t := range targets {
		wanted[t.ID()] = true
	}
	grads := make(map[graph.ID]*graph.Node, len(targets))
	box := newInbox()

	if flow.Has(objective.ID()) && objective.IsDifferentiable() {
		var seed *graph.Node
		err := g.Provenance(objective, "grad", func() error {
			var err error
			seed, err = ops.ConstantAtLevel(g, 1, objective.DType(), tensor.Scalar(), objective.GradLevel()+1)
			return err
		})
		if err != nil {
			return nil, err
		}
		box.post(objective.ID(), seed)
	}

	for id := objective.ID(); id >= 0; id-- {
		msgs := box.take(id)
		if len(msgs) == 0 {
			continue
		}
		n, err := g.Node(id)
		if err != nil {
			return nil, err
		}
		if !flow.Has(id) || !n.IsDifferentiable() {
			return nil, graph.Internalf("gradient", "%s received a message outside the flow tree", n)
		}
		if err := g.Provenance(n, "grad", func() error {
			return backwardVisit(n, msgs, flow, box, grads, wanted[id])
		}); err != nil {
			return nil, err
		}
	}
	if box.pending() > 0 {
		return nil, graph.Internalf("gradient", "%d nodes still hold messages after the pass", box.pending())
	}

	out := make([]*graph.Node, len(targets))
	for i, t := range targets {
		out[i] = grads[t.ID()]
		if out[i] == nil {
			if err := noResult(g, "gradient", objective, t); err != nil {
				return nil, err
			}
		}
	}

	g.Logger().Debug("gradient computed",
		"objective", objective.Label(),
		"targets", len(targets),
		"flow", flow.Count(),
		"messages", box.sent,
		"created", g.Len()-start)
	return out, nil
}

// backwardVisit combines the inbox of n and sends one message per parent.
func backwardVisit(n *graph.Node, msgs []*graph.Node, flow graph.Mask, box *inbox, grads map[graph.ID]*graph.Node, wanted bool) error {
	op := n.Op()
	grad, err := op.BackwardDiffCombine(msgs)
	if err != nil {
		return err
	}
	if err := checkMessage(op.Name(), n, grad); err != nil {
		return err
	}
	if wanted {
		grads[n.ID()] = grad
	}

	for i, p := range op.Parents() {
		if !flow.Has(p.ID()) || !p.IsDifferentiable() {
			continue
		}
		if p.ID() >= n.ID() {
			return graph.Internalf(op.Name(), "parent %s does not precede %s", p.ID(), n.ID())
		}
		msg, err := op.BackwardDiffParent(grad, i)
		if err != nil {
			return err
		}
		if err := checkMessage(op.Name(), p, msg); err != nil {
			return err
		}
		box.post(p.ID(), msg)
	}
	return nil
}
