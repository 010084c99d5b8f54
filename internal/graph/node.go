package graph

import (
	"fmt"
	"strings"

	"github.com/born-ml/symgraph/internal/tensor"
)

// ID identifies a node inside its graph. IDs are assigned in creation order
// and form a topological order: every ancestor has a strictly smaller ID.
type ID int

// String returns "#id".
func (id ID) String() string {
	return fmt.Sprintf("#%d", int(id))
}

// Node is one computed tensor expression. Its dtype, shape and flags are
// derived from its operator once at insertion and never change; only the
// children list and the diagnostic name and scope may be updated later.
type Node struct {
	id    ID
	name  string
	dtype tensor.DataType
	shape tensor.Shape
	op    Operator

	children []ID // non-owning back-references, append-only

	inputDependent bool
	differentiable bool
	gradLevel      int

	scope []string
	graph *Graph
}

// ID returns the node id.
func (n *Node) ID() ID { return n.id }

// Name returns the diagnostic name, possibly empty.
func (n *Node) Name() string { return n.name }

// DType returns the element data type.
func (n *Node) DType() tensor.DataType { return n.dtype }

// Shape returns the symbolic shape.
func (n *Node) Shape() tensor.Shape { return n.shape }

// Op returns the operator that produced the node.
func (n *Node) Op() Operator { return n.op }

// Kind is shorthand for n.Op().Kind().
func (n *Node) Kind() Kind { return n.op.Kind() }

// Children returns a copy of the ids of the nodes using n as an ancestor.
func (n *Node) Children() []ID {
	out := make([]ID, len(n.children))
	copy(out, n.children)
	return out
}

// IsInputDependent reports whether the value depends on a graph input.
func (n *Node) IsInputDependent() bool { return n.inputDependent }

// IsDifferentiable reports whether gradients may flow through the node.
func (n *Node) IsDifferentiable() bool { return n.differentiable }

// GradLevel returns the differentiation nesting depth of the node.
func (n *Node) GradLevel() int { return n.gradLevel }

// Scope returns a copy of the scope path the node was created in.
func (n *Node) Scope() []string {
	out := make([]string, len(n.scope))
	copy(out, n.scope)
	return out
}

// Graph returns the owning graph.
func (n *Node) Graph() *Graph { return n.graph }

// Handle returns a non-owning reference to n.
func (n *Node) Handle() Handle {
	return Handle{graph: n.graph, id: n.id}
}

// Label returns the name, or the id when the node is unnamed.
func (n *Node) Label() string {
	if n.name != "" {
		return n.name
	}
	return n.id.String()
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	scope := ""
	if len(n.scope) > 0 {
		scope = " @" + strings.Join(n.scope, "/")
	}
	return fmt.Sprintf("%s %s %s%s %s%s", n.id, n.op.Name(), n.dtype, n.shape, n.Label(), scope)
}

// Handle is a non-owning reference to a node. Dereferencing a handle whose
// graph no longer registers the id fails with ErrExpired.
type Handle struct {
	graph *Graph
	id    ID
}

// ID returns the referenced id.
func (h Handle) ID() ID { return h.id }

// Graph returns the graph the handle points into.
func (h Handle) Graph() *Graph { return h.graph }

// IsZero reports whether h was never assigned.
func (h Handle) IsZero() bool { return h.graph == nil }

// Deref resolves the handle.
func (h Handle) Deref() (*Node, error) {
	if h.graph == nil {
		return nil, fmt.Errorf("%w: zero handle", ErrExpired)
	}
	return h.graph.Node(h.id)
}
