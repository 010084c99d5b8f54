package graph

// Mapping translates node ids of a source graph into handles of an
// extracted graph.
type Mapping map[ID]Handle

// Extract copies into a fresh graph exactly the nodes needed to compute
// outputs and every persistent update of g from inputs.
//
// Algorithm:
//  1. ancestors-mask over outputs, update targets and update values
//  2. every Input leaf inside the mask must be one of inputs
//  3. ascending copy of masked nodes through Operator.CopyTo; the mask is
//     ancestor-closed so every ancestor is already mapped when needed
//
// The returned graph shares no mutable state with g and inherits its
// policies and logger.
func (g *Graph) Extract(inputs, outputs []*Node) (*Function, Mapping, error) {
	if err := g.CheckAll(inputs...); err != nil {
		return nil, nil, err
	}
	if err := g.CheckAll(outputs...); err != nil {
		return nil, nil, err
	}
	if len(outputs) == 0 {
		return nil, nil, Constructionf("extract", nil, "no outputs requested")
	}
	bound := make(map[ID]bool, len(inputs))
	for _, in := range inputs {
		if in.Kind() != KindInput {
			return nil, nil, Constructionf("extract", []*Node{in}, "function inputs must be input leaves, got %s", in.op.Name())
		}
		if bound[in.id] {
			return nil, nil, Constructionf("extract", []*Node{in}, "input listed twice")
		}
		bound[in.id] = true
	}

	leaves := append([]*Node(nil), outputs...)
	leaves = append(leaves, inputs...)
	for _, u := range g.updates {
		leaves = append(leaves, u.Target, u.Value)
	}
	mask, err := g.AncestorsMask(leaves)
	if err != nil {
		return nil, nil, err
	}
	for _, n := range g.byKind[KindInput] {
		if mask[n] && !bound[n] {
			return nil, nil, Constructionf("extract", []*Node{g.nodes[n]}, "unbound input %q is required by the outputs", g.nodes[n].Label())
		}
	}

	dst := New(append(g.Options(), WithName(g.name+".fn"))...)
	mapping, err := g.copyMasked(dst, mask)
	if err != nil {
		return nil, nil, err
	}

	fn := &Function{Graph: dst}
	for _, in := range inputs {
		fn.Inputs = append(fn.Inputs, mapping[in.id])
	}
	for _, out := range outputs {
		fn.Outputs = append(fn.Outputs, mapping[out.id])
	}
	for _, u := range g.updates {
		target, err := mapping[u.Target.id].Deref()
		if err != nil {
			return nil, nil, Internalf("extract", "update target %s not copied: %v", u.Target.id, err)
		}
		value, err := mapping[u.Value.id].Deref()
		if err != nil {
			return nil, nil, Internalf("extract", "update value %s not copied: %v", u.Value.id, err)
		}
		if err := dst.AddUpdate(target, value); err != nil {
			return nil, nil, err
		}
	}
	fn.Updates = dst.Updates()
	return fn, mapping, nil
}

// copyMasked copies the masked nodes into dst in ascending id order.
func (g *Graph) copyMasked(dst *Graph, mask Mask) (Mapping, error) {
	mapping := make(Mapping, mask.Count())
	for _, id := range mask.IDs() {
		n := g.nodes[id]
		src := n.op.Ancestors()
		translated := make([]*Node, len(src))
		for i, a := range src {
			h, ok := mapping[a.id]
			if !ok {
				return nil, Internalf("extract", "%s is masked but its ancestor %s is not", n.id, a.id)
			}
			translated[i] = dst.nodes[h.id]
		}
		var copied *Node
		err := dst.WithScopePath(n.scope, func() error {
			op, err := n.op.CopyTo(dst, translated)
			if err != nil {
				return err
			}
			copied, err = dst.Insert(op, n.name)
			return err
		})
		if err != nil {
			return nil, err
		}
		mapping[id] = copied.Handle()
	}
	return mapping, nil
}
