package graph

// Mask is a per-node boolean indexed by ID.
type Mask []bool

// And returns the element-wise conjunction of m and other.
func (m Mask) And(other Mask) Mask {
	out := make(Mask, len(m))
	for i := range m {
		out[i] = m[i] && i < len(other) && other[i]
	}
	return out
}

// Has reports whether id is set.
func (m Mask) Has(id ID) bool {
	return int(id) >= 0 && int(id) < len(m) && m[id]
}

// Count returns the number of set entries.
func (m Mask) Count() int {
	n := 0
	for _, v := range m {
		if v {
			n++
		}
	}
	return n
}

// IDs returns the set ids in ascending order.
func (m Mask) IDs() []ID {
	out := make([]ID, 0, m.Count())
	for i, v := range m {
		if v {
			out = append(out, ID(i))
		}
	}
	return out
}

// AncestorsMask marks every node reachable backward from leaves through
// parent and argument edges, leaves included.
//
// Since ancestors always have smaller ids, one descending scan suffices.
func (g *Graph) AncestorsMask(leaves []*Node) (Mask, error) {
	if err := g.CheckAll(leaves...); err != nil {
		return nil, err
	}
	mask := make(Mask, len(g.nodes))
	top := -1
	for _, n := range leaves {
		mask[n.id] = true
		if int(n.id) > top {
			top = int(n.id)
		}
	}
	for id := top; id >= 0; id-- {
		if !mask[id] {
			continue
		}
		for _, a := range g.nodes[id].op.Ancestors() {
			mask[a.id] = true
		}
	}
	return mask, nil
}

// DescendantsMask marks every node reachable forward from roots through
// children back-references, roots included. One ascending scan suffices.
func (g *Graph) DescendantsMask(roots []*Node) (Mask, error) {
	if err := g.CheckAll(roots...); err != nil {
		return nil, err
	}
	mask := make(Mask, len(g.nodes))
	bottom := len(g.nodes)
	for _, n := range roots {
		mask[n.id] = true
		if int(n.id) < bottom {
			bottom = int(n.id)
		}
	}
	for id := bottom; id < len(g.nodes); id++ {
		if !mask[id] {
			continue
		}
		for _, c := range g.nodes[id].children {
			mask[c] = true
		}
	}
	return mask, nil
}
