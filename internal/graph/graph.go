// Package graph implements the symbolic computation graph: node records,
// the operator contract, node interning, scopes, persistent updates,
// dependency masks and subgraph extraction.
//
// Architecture:
//   - Graph owns every Node in an append-only slice indexed by ID
//   - IDs are a topological order: ancestors always have smaller IDs
//   - Operators (package ops) validate and derive the static contract of a
//     node; Graph.Insert interns or appends the result
//   - Back-references (children, operator owner, Handle) are plain IDs into
//     the node table; dereferencing an unregistered ID fails with ErrExpired
//
// A Graph is not safe for concurrent construction; callers serialize access.
package graph

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
)

// Update pairs a persistent parameter with the value it takes after each
// evaluation of an extracted function.
type Update struct {
	Target *Node
	Value  *Node
}

// Graph owns all nodes and performs node interning.
type Graph struct {
	name     string
	nodes    []*Node
	released bool

	byScope map[string][]ID
	byKind  map[Kind][]ID

	scope   []string
	updates []Update

	policies Policies
	logger   *slog.Logger
}

// Option configures a Graph.
type Option func(*Graph)

// WithName sets the diagnostic graph name.
func WithName(name string) Option {
	return func(g *Graph) { g.name = name }
}

// WithLogger sets the logger used for policy warnings and diagnostics.
// Passing nil has no effect.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Graph) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithPolicies sets all policies at once.
func WithPolicies(p Policies) Option {
	return func(g *Graph) { g.policies = p }
}

// WithBroadcastPolicy sets the implicit broadcast policy.
func WithBroadcastPolicy(p Policy) Option {
	return func(g *Graph) { g.policies.Broadcast = p }
}

// WithCastPolicy sets the implicit cast policy.
func WithCastPolicy(p Policy) Option {
	return func(g *Graph) { g.policies.Cast = p }
}

// WithIndependentGradientPolicy sets the policy applied when a gradient is
// requested for a variable the objective does not depend on.
func WithIndependentGradientPolicy(p Policy) Option {
	return func(g *Graph) { g.policies.IndependentGradient = p }
}

// New creates an empty graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		name:     "graph",
		nodes:    make([]*Node, 0, 64), // Pre-allocate for common case
		byScope:  make(map[string][]ID),
		byKind:   make(map[Kind][]ID),
		policies: DefaultPolicies(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Name returns the diagnostic graph name.
func (g *Graph) Name() string { return g.name }

// Logger returns the graph logger.
func (g *Graph) Logger() *slog.Logger { return g.logger }

// Policies returns the graph policies.
func (g *Graph) Policies() Policies { return g.policies }

// Options returns options reproducing the configuration of g (name excluded).
func (g *Graph) Options() []Option {
	return []Option{WithLogger(g.logger), WithPolicies(g.policies)}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Node returns the node with the given id.
func (g *Graph) Node(id ID) (*Node, error) {
	if g.released || id < 0 || int(id) >= len(g.nodes) {
		return nil, fmt.Errorf("%w: %s in %s", ErrExpired, id, g.name)
	}
	return g.nodes[id], nil
}

// Nodes returns all nodes in id order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// NodesByKind returns the nodes produced by operators of kind k.
func (g *Graph) NodesByKind(k Kind) []*Node {
	return g.resolve(g.byKind[k])
}

// NodesInScope returns the nodes created with exactly the given scope path.
func (g *Graph) NodesInScope(path ...string) []*Node {
	return g.resolve(g.byScope[scopeKey(path)])
}

func (g *Graph) resolve(ids []ID) []*Node {
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id]
	}
	return out
}

// Release unregisters every node. Nodes and handles of a released graph
// fail with ErrExpired when used.
func (g *Graph) Release() {
	g.released = true
	g.nodes = nil
	g.byScope = make(map[string][]ID)
	g.byKind = make(map[Kind][]ID)
	g.updates = nil
}

// Check verifies that n is registered in g.
func (g *Graph) Check(n *Node) error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrExpired)
	}
	if n.graph != g {
		if n.graph == nil || !n.graph.owns(n) {
			return fmt.Errorf("%w: %s", ErrExpired, n.id)
		}
		return fmt.Errorf("%w: %s from %s used in %s", ErrForeignNode, n.id, n.graph.name, g.name)
	}
	if !g.owns(n) {
		return fmt.Errorf("%w: %s in %s", ErrExpired, n.id, g.name)
	}
	return nil
}

// CheckAll verifies every node of nodes with Check.
func (g *Graph) CheckAll(nodes ...*Node) error {
	for _, n := range nodes {
		if err := g.Check(n); err != nil {
			return err
		}
	}
	return nil
}

func (g *Graph) owns(n *Node) bool {
	return !g.released && int(n.id) < len(g.nodes) && g.nodes[n.id] == n
}

// Insert interns op or appends a new node for it.
//
// Interning is deliberately local: only the existing children of the first
// parent (or of the first argument when op has no parents) are searched for
// an operator equal to op, testing a.Equals(b) || b.Equals(a). Equal nodes
// reached through other paths are not merged. Leaves are never interned.
//
// IsInputDependent is ORed over all ancestors, parents included, so x*x
// depends on x even though x is only a parent of the product.
//
// Insert either appends one fully derived node or leaves g untouched.
func (g *Graph) Insert(op Operator, name string) (*Node, error) {
	if g.released {
		return nil, fmt.Errorf("%w: graph %s was released", ErrExpired, g.name)
	}
	ancestors := op.Ancestors()
	if err := g.CheckAll(ancestors...); err != nil {
		return nil, err
	}
	if existing := g.intern(op); existing != nil {
		return existing, nil
	}

	id := ID(len(g.nodes))
	n := &Node{
		id:             id,
		name:           name,
		dtype:          op.DType(),
		shape:          op.Shape(),
		op:             op,
		differentiable: op.IsDifferentiable(),
		scope:          g.Scope(),
		graph:          g,
	}
	if dep, ok := op.(InputDependence); ok {
		n.inputDependent = dep.InputDependent()
	}
	if lvl, ok := op.(GradLeveler); ok {
		n.gradLevel = lvl.LeafGradLevel()
	}
	for _, a := range ancestors {
		n.inputDependent = n.inputDependent || a.inputDependent
		if a.gradLevel > n.gradLevel {
			n.gradLevel = a.gradLevel
		}
	}
	if err := n.shape.Validate(); err != nil {
		return nil, Internalf(op.Name(), "derived invalid shape %s: %v", n.shape, err)
	}
	if err := op.SetOwner(id); err != nil {
		return nil, err
	}

	g.nodes = append(g.nodes, n)
	linked := make(map[ID]bool, len(ancestors))
	for _, a := range ancestors {
		if linked[a.id] {
			continue
		}
		linked[a.id] = true
		a.children = append(a.children, id)
	}
	key := scopeKey(n.scope)
	g.byScope[key] = append(g.byScope[key], id)
	g.byKind[op.Kind()] = append(g.byKind[op.Kind()], id)
	return n, nil
}

func (g *Graph) intern(op Operator) *Node {
	var first *Node
	switch {
	case len(op.Parents()) > 0:
		first = op.Parents()[0]
	case len(op.Arguments()) > 0:
		first = op.Arguments()[0]
	default:
		return nil
	}
	for _, cid := range first.children {
		c := g.nodes[cid]
		if c.op.Equals(op) || op.Equals(c.op) {
			return c
		}
	}
	return nil
}

// SetName renames n. Names are diagnostic only.
func (g *Graph) SetName(n *Node, name string) error {
	if err := g.Check(n); err != nil {
		return err
	}
	n.name = name
	return nil
}

// --- Scopes ---

func scopeKey(path []string) string {
	return strings.Join(path, "/")
}

// PushScope enters a child scope.
func (g *Graph) PushScope(name string) {
	g.scope = append(g.scope, name)
}

// PopScope leaves the innermost scope. Popping the root scope is a no-op.
func (g *Graph) PopScope() {
	if len(g.scope) > 0 {
		g.scope = g.scope[:len(g.scope)-1]
	}
}

// Scope returns a copy of the current scope path.
func (g *Graph) Scope() []string {
	out := make([]string, len(g.scope))
	copy(out, g.scope)
	return out
}

// WithScope runs fn inside the child scope name.
func (g *Graph) WithScope(name string, fn func() error) error {
	g.PushScope(name)
	defer g.PopScope()
	return fn()
}

// WithScopePath runs fn with the scope stack temporarily replaced by path.
func (g *Graph) WithScopePath(path []string, fn func() error) error {
	saved := g.scope
	g.scope = append([]string(nil), path...)
	defer func() { g.scope = saved }()
	return fn()
}

// Provenance runs fn inside the scope of src and names every unnamed node
// created by fn "prefix(label of src)".
func (g *Graph) Provenance(src *Node, prefix string, fn func() error) error {
	start := len(g.nodes)
	err := g.WithScopePath(src.scope, fn)
	label := prefix + "(" + src.Label() + ")"
	for _, n := range g.nodes[start:] {
		if n.name == "" {
			n.name = label
		}
	}
	return err
}

// --- Persistent updates ---

// AddUpdate registers value as the next value of the parameter target.
func (g *Graph) AddUpdate(target, value *Node) error {
	if err := g.CheckAll(target, value); err != nil {
		return err
	}
	if target.Kind() != KindParameter {
		return Constructionf("update", []*Node{target}, "target must be a parameter, got %s", target.op.Name())
	}
	if !target.shape.Equal(value.shape) || target.dtype != value.dtype {
		return Constructionf("update", []*Node{target, value}, "value %s%s does not match target %s%s",
			value.dtype, value.shape, target.dtype, target.shape)
	}
	for _, u := range g.updates {
		if u.Target == target {
			return Constructionf("update", []*Node{target}, "parameter already has an update")
		}
	}
	g.updates = append(g.updates, Update{Target: target, Value: value})
	return nil
}

// Updates returns the registered persistent updates.
func (g *Graph) Updates() []Update {
	out := make([]Update, len(g.updates))
	copy(out, g.updates)
	return out
}

// --- Diagnostics ---

// Summary renders the node table.
func (g *Graph) Summary() string {
	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tOP\tDTYPE\tSHAPE\tANCESTORS\tFLAGS\tSCOPE")
	for _, n := range g.nodes {
		anc := make([]string, 0, len(n.op.Ancestors()))
		for _, a := range n.op.Ancestors() {
			anc = append(anc, a.id.String())
		}
		op := n.op.Name()
		if p := n.op.Params(); p != "" {
			op += "[" + p + "]"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			n.id, n.Label(), op, n.dtype, n.shape, strings.Join(anc, ","), flags(n), scopeKey(n.scope))
	}
	_ = w.Flush()
	return sb.String()
}

func flags(n *Node) string {
	var f []string
	if n.inputDependent {
		f = append(f, "in")
	}
	if n.differentiable {
		f = append(f, "diff")
	}
	if n.gradLevel > 0 {
		f = append(f, fmt.Sprintf("g%d", n.gradLevel))
	}
	return strings.Join(f, ",")
}
