package graph

import (
	"github.com/born-ml/symgraph/internal/tensor"
)

// Operator is the computation rule behind a node. It supplies the static
// contract of its node (shape, dtype, differentiability) and the gradient
// rules used by reverse and forward mode.
//
// Ancestors are split into parents, through which gradients flow, and
// arguments, which are structural (conditions, indices) and never receive
// gradients.
type Operator interface {
	Kind() Kind
	// Name returns the operator name used in diagnostics and exports.
	Name() string
	// Params renders the non-node parameters (axes, permutation, value).
	Params() string

	Parents() []*Node
	Arguments() []*Node
	// Ancestors returns Parents() followed by Arguments(). It is used for
	// dependency bookkeeping only, never for gradient flow.
	Ancestors() []*Node

	Shape() tensor.Shape
	DType() tensor.DataType
	IsDifferentiable() bool

	// Equals is a best-effort structural equality. It is not symmetric:
	// callers must test a.Equals(b) || b.Equals(a).
	Equals(other Operator) bool

	// CopyTo returns a structurally identical operator bound to g. The
	// ancestors are already translated into g, in Ancestors() order.
	CopyTo(g *Graph, ancestors []*Node) (Operator, error)

	// BackwardDiffParent returns the message sent to parent index given the
	// combined gradient of the owner node.
	BackwardDiffParent(msg *Node, index int) (*Node, error)
	// BackwardDiffCombine merges the messages received by the owner node.
	BackwardDiffCombine(msgs []*Node) (*Node, error)
	// ForwardDiffParent returns the tangent contribution of parent index.
	// msgs is aligned with Parents(); a nil entry means the parent has no
	// tangent. A nil result with a nil error means "no contribution".
	ForwardDiffParent(msgs []*Node, index int) (*Node, error)
	// ForwardDiffCombine merges the contributions of the parents.
	ForwardDiffCombine(msgs []*Node) (*Node, error)

	// Owner returns the id of the node produced by the operator.
	Owner() ID
	// SetOwner binds the operator to its node. It may be called only once.
	SetOwner(id ID) error
}

// InputDependence is implemented by leaf operators that read graph inputs.
type InputDependence interface {
	InputDependent() bool
}

// GradLeveler is implemented by leaf operators created at a non-zero
// differentiation depth, such as gradient seeds.
type GradLeveler interface {
	LeafGradLevel() int
}

// Base implements the bookkeeping part of Operator. Concrete operators embed
// it and add their validation, parameters and gradient rules.
type Base struct {
	kind      Kind
	graph     *Graph
	parents   []*Node
	arguments []*Node
	shape     tensor.Shape
	dtype     tensor.DataType

	owner    ID
	ownerSet bool
}

// NewBase returns the shared state of an operator.
func NewBase(g *Graph, kind Kind, parents, arguments []*Node, shape tensor.Shape, dtype tensor.DataType) Base {
	return Base{
		kind:      kind,
		graph:     g,
		parents:   parents,
		arguments: arguments,
		shape:     shape,
		dtype:     dtype,
	}
}

// Kind returns the operator kind.
func (b *Base) Kind() Kind { return b.kind }

// Name returns the kind name.
func (b *Base) Name() string { return b.kind.String() }

// Params returns an empty string; operators with parameters override it.
func (b *Base) Params() string { return "" }

// Graph returns the graph the operator is bound to.
func (b *Base) Graph() *Graph { return b.graph }

// Parents returns the gradient-flowing ancestors.
func (b *Base) Parents() []*Node { return b.parents }

// Arguments returns the structural ancestors.
func (b *Base) Arguments() []*Node { return b.arguments }

// Ancestors returns parents followed by arguments.
func (b *Base) Ancestors() []*Node {
	out := make([]*Node, 0, len(b.parents)+len(b.arguments))
	out = append(out, b.parents...)
	return append(out, b.arguments...)
}

// Shape returns the output shape.
func (b *Base) Shape() tensor.Shape { return b.shape }

// DType returns the output data type.
func (b *Base) DType() tensor.DataType { return b.dtype }

// IsDifferentiable is false for logical kinds and non-float outputs,
// otherwise it is the OR over the parents.
func (b *Base) IsDifferentiable() bool {
	if b.kind.IsLogical() || !b.dtype.IsFloat() {
		return false
	}
	for _, p := range b.parents {
		if p.differentiable {
			return true
		}
	}
	return false
}

// Owner returns the id of the produced node.
func (b *Base) Owner() ID { return b.owner }

// OwnerNode returns the produced node.
func (b *Base) OwnerNode() (*Node, error) {
	if !b.ownerSet {
		return nil, Internalf(b.kind.String(), "operator has no owner yet")
	}
	return b.graph.Node(b.owner)
}

// SetOwner binds the operator to its node once.
func (b *Base) SetOwner(id ID) error {
	if b.ownerSet {
		return Internalf(b.kind.String(), "owner already set to %s", b.owner)
	}
	b.owner = id
	b.ownerSet = true
	return nil
}

// SameStructure reports whether other has the same kind and the very same
// parents and arguments. Operators use it as the first step of Equals.
func (b *Base) SameStructure(other Operator) bool {
	if other.Kind() != b.kind {
		return false
	}
	return sameNodes(b.parents, other.Parents()) && sameNodes(b.arguments, other.Arguments())
}

func sameNodes(a, b []*Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// SplitAncestors splits a translated ancestor list back into parents and
// arguments using the arity of b. CopyTo implementations use it.
func (b *Base) SplitAncestors(ancestors []*Node) (parents, arguments []*Node, err error) {
	want := len(b.parents) + len(b.arguments)
	if len(ancestors) != want {
		return nil, nil, Internalf(b.kind.String(), "copy expects %d ancestors, got %d", want, len(ancestors))
	}
	parents = append([]*Node(nil), ancestors[:len(b.parents)]...)
	arguments = append([]*Node(nil), ancestors[len(b.parents):]...)
	return parents, arguments, nil
}

// Rebind returns a copy of b bound to g with new ancestors and no owner.
func (b *Base) Rebind(g *Graph, ancestors []*Node) (Base, error) {
	parents, arguments, err := b.SplitAncestors(ancestors)
	if err != nil {
		return Base{}, err
	}
	return NewBase(g, b.kind, parents, arguments, b.shape, b.dtype), nil
}
