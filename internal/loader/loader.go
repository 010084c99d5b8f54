// Package loader builds graphs from HCL model descriptions.
//
// A description declares leaves and operator nodes in the order they are
// built; every operand must refer to a name declared earlier in the file.
//
//	input "x" {
//	  shape = ["n", 3]
//	  dtype = "float32"
//	}
//
//	parameter "w" {
//	  shape = [3, 1]
//	  value = 0.5
//	}
//
//	node "y" {
//	  op       = "matmul"
//	  operands = ["x", "w"]
//	  scope    = "dense"
//	}
//
//	node "loss" {
//	  op       = "mean"
//	  operands = ["y"]
//	}
//
//	update "w" { value = "w_next" }
//
//	objective = "loss"
//	targets   = ["w"]
//	outputs   = ["y"]
//
// Shapes are lists of integers and symbol names. A missing shape denotes a
// scalar and a missing dtype is float32.
//
// An optional optimizer block turns the description into a training step:
// the objective is minimized over the targets, or over every parameter
// when no targets are given, by registering persistent updates.
//
//	optimizer "adam" {
//	  lr = 0.01
//	}
package loader

import (
	"errors"
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/ops"
	"github.com/born-ml/symgraph/internal/optim"
)

// Model is a loaded description.
type Model struct {
	Graph      *graph.Graph
	Inputs     []*graph.Node // in file order
	Parameters []*graph.Node
	Objective  *graph.Node // nil when no objective is declared
	Targets    []*graph.Node
	Outputs    []*graph.Node
	Optimizer  optim.Optimizer // nil without an optimizer block

	nodes map[string]*graph.Node
}

// Node returns the node declared under name.
func (m *Model) Node(name string) (*graph.Node, bool) {
	n, ok := m.nodes[name]
	return n, ok
}

var fileSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "objective"},
		{Name: "targets"},
		{Name: "outputs"},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "input", LabelNames: []string{"name"}},
		{Type: "parameter", LabelNames: []string{"name"}},
		{Type: "constant", LabelNames: []string{"name"}},
		{Type: "node", LabelNames: []string{"name"}},
		{Type: "update", LabelNames: []string{"target"}},
		{Type: "optimizer", LabelNames: []string{"kind"}},
	},
}

type inputBody struct {
	Shape cty.Value `hcl:"shape,optional"`
	DType string    `hcl:"dtype,optional"`
}

type parameterBody struct {
	Shape cty.Value `hcl:"shape,optional"`
	DType string    `hcl:"dtype,optional"`
	Value float64   `hcl:"value,optional"`
}

type constantBody struct {
	Value cty.Value `hcl:"value"`
	Shape cty.Value `hcl:"shape,optional"`
	DType string    `hcl:"dtype,optional"`
}

type nodeBody struct {
	Op       string    `hcl:"op"`
	Operands []string  `hcl:"operands,optional"`
	Axes     []int     `hcl:"axes,optional"`
	Shape    cty.Value `hcl:"shape,optional"`
	DType    string    `hcl:"dtype,optional"`
	Scope    string    `hcl:"scope,optional"`
}

type updateBody struct {
	Value string `hcl:"value"`
}

type optimizerBody struct {
	LR       float64 `hcl:"lr,optional"`
	Momentum float64 `hcl:"momentum,optional"`
	Beta1    float64 `hcl:"beta1,optional"`
	Beta2    float64 `hcl:"beta2,optional"`
	Eps      float64 `hcl:"eps,optional"`
}

// Load parses and builds the description at path into a new graph
// configured with opts.
func Load(path string, opts ...graph.Option) (*Model, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse model file %s: %w", path, diags)
	}
	return build(file, path, opts)
}

// Parse is Load for an in-memory description.
func Parse(src []byte, filename string, opts ...graph.Option) (*Model, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse model %s: %w", filename, diags)
	}
	return build(file, filename, opts)
}

func build(file *hcl.File, filename string, opts []graph.Option) (*Model, error) {
	content, diags := file.Body.Content(fileSchema)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode model %s: %w", filename, diags)
	}

	m := &Model{Graph: graph.New(append([]graph.Option{graph.WithName(filename)}, opts...)...), nodes: map[string]*graph.Node{}}
	b := &builder{m: m}

	var optBlock *hcl.Block
	for _, block := range content.Blocks {
		if block.Type == "optimizer" {
			if optBlock != nil {
				return nil, fmt.Errorf("%s: %w", filename,
					diagError("Duplicate optimizer", "Only one optimizer block is allowed.", block.DefRange))
			}
			optBlock = block
			continue
		}
		if err := b.block(block); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}

	if attr, ok := content.Attributes["objective"]; ok {
		var name string
		if diags := gohcl.DecodeExpression(attr.Expr, nil, &name); diags.HasErrors() {
			return nil, fmt.Errorf("%s: %w", filename, diags)
		}
		n, err := b.lookup(name, attr.Range)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		m.Objective = n
	}
	var err error
	if m.Targets, err = b.nameList(content.Attributes["targets"]); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if m.Outputs, err = b.nameList(content.Attributes["outputs"]); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if optBlock != nil {
		if err := b.optimizer(optBlock); err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
	}

	m.Graph.Logger().Debug("model loaded",
		"file", filename,
		"nodes", m.Graph.Len(),
		"inputs", len(m.Inputs),
		"parameters", len(m.Parameters))
	return m, nil
}

type builder struct {
	m *Model
}

func (b *builder) block(block *hcl.Block) error {
	name := block.Labels[0]
	if block.Type != "update" {
		if _, dup := b.m.nodes[name]; dup {
			return diagError("Duplicate name", fmt.Sprintf("%q is already declared.", name), block.DefRange)
		}
	}

	var n *graph.Node
	var err error
	switch block.Type {
	case "input":
		n, err = b.input(name, block)
		if n != nil {
			b.m.Inputs = append(b.m.Inputs, n)
		}
	case "parameter":
		n, err = b.parameter(name, block)
		if n != nil {
			b.m.Parameters = append(b.m.Parameters, n)
		}
	case "constant":
		n, err = b.constant(block)
	case "node":
		n, err = b.node(block)
	case "update":
		return b.update(name, block)
	}
	if err != nil {
		return fmt.Errorf("%s %q (%s): %w", block.Type, name, block.DefRange, err)
	}
	if n.Name() == "" {
		if err := b.m.Graph.SetName(n, name); err != nil {
			return err
		}
	}
	b.m.nodes[name] = n
	return nil
}

func (b *builder) input(name string, block *hcl.Block) (*graph.Node, error) {
	var body inputBody
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return nil, diags
	}
	shape, err := shapeOf(body.Shape)
	if err != nil {
		return nil, err
	}
	dt, err := dtypeOf(body.DType)
	if err != nil {
		return nil, err
	}
	return ops.Input(b.m.Graph, name, dt, shape)
}

func (b *builder) parameter(name string, block *hcl.Block) (*graph.Node, error) {
	var body parameterBody
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return nil, diags
	}
	shape, err := shapeOf(body.Shape)
	if err != nil {
		return nil, err
	}
	dt, err := dtypeOf(body.DType)
	if err != nil {
		return nil, err
	}
	return ops.Parameter(b.m.Graph, name, dt, shape, body.Value)
}

func (b *builder) constant(block *hcl.Block) (*graph.Node, error) {
	var body constantBody
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return nil, diags
	}
	value, err := scalarOf(body.Value)
	if err != nil {
		return nil, err
	}
	shape, err := shapeOf(body.Shape)
	if err != nil {
		return nil, err
	}
	dt, err := dtypeOf(body.DType)
	if err != nil {
		return nil, err
	}
	return ops.Constant(b.m.Graph, value, dt, shape)
}

func (b *builder) node(block *hcl.Block) (*graph.Node, error) {
	var body nodeBody
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return nil, diags
	}
	op, ok := operators[body.Op]
	if !ok {
		return nil, diagError("Unknown operator", fmt.Sprintf("Operator %q is not supported.", body.Op), block.DefRange)
	}
	if len(body.Operands) != op.arity {
		return nil, fmt.Errorf("%s takes %d operands, got %d", body.Op, op.arity, len(body.Operands))
	}
	args := make([]*graph.Node, len(body.Operands))
	for i, name := range body.Operands {
		n, err := b.lookup(name, block.DefRange)
		if err != nil {
			return nil, err
		}
		args[i] = n
	}

	if body.Scope == "" {
		return op.build(b.m.Graph, args, &body)
	}
	var n *graph.Node
	err := b.m.Graph.WithScope(body.Scope, func() error {
		var err error
		n, err = op.build(b.m.Graph, args, &body)
		return err
	})
	return n, err
}

func (b *builder) update(target string, block *hcl.Block) error {
	var body updateBody
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return fmt.Errorf("update %q: %w", target, diags)
	}
	t, err := b.lookup(target, block.DefRange)
	if err != nil {
		return err
	}
	v, err := b.lookup(body.Value, block.DefRange)
	if err != nil {
		return err
	}
	if err := b.m.Graph.AddUpdate(t, v); err != nil {
		return fmt.Errorf("update %q (%s): %w", target, block.DefRange, err)
	}
	return nil
}

func (b *builder) optimizer(block *hcl.Block) error {
	var body optimizerBody
	if diags := gohcl.DecodeBody(block.Body, nil, &body); diags.HasErrors() {
		return diags
	}
	if b.m.Objective == nil {
		return diagError("Missing objective", "An optimizer block requires an objective attribute.", block.DefRange)
	}
	opt, err := optim.New(block.Labels[0], body.LR, body.Momentum, [2]float64{body.Beta1, body.Beta2}, body.Eps)
	if err != nil {
		return diagError("Unknown optimizer", err.Error(), block.DefRange)
	}
	params := b.m.Targets
	if len(params) == 0 {
		params = b.m.Parameters
	}
	if err := opt.Minimize(b.m.Objective, params); err != nil {
		return fmt.Errorf("optimizer %q (%s): %w", block.Labels[0], block.DefRange, err)
	}
	b.m.Optimizer = opt
	return nil
}

func (b *builder) lookup(name string, rng hcl.Range) (*graph.Node, error) {
	n, ok := b.m.nodes[name]
	if !ok {
		return nil, diagError("Unknown name", fmt.Sprintf("%q is not declared before this point.", name), rng)
	}
	return n, nil
}

func (b *builder) nameList(attr *hcl.Attribute) ([]*graph.Node, error) {
	if attr == nil {
		return nil, nil
	}
	var names []string
	if diags := gohcl.DecodeExpression(attr.Expr, nil, &names); diags.HasErrors() {
		return nil, diags
	}
	out := make([]*graph.Node, len(names))
	for i, name := range names {
		n, err := b.lookup(name, attr.Range)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

// diagError returns a single-error diagnostic anchored at rng.
func diagError(summary, detail string, rng hcl.Range) error {
	return hcl.Diagnostics{{
		Severity: hcl.DiagError,
		Summary:  summary,
		Detail:   detail,
		Subject:  rng.Ptr(),
	}}
}

// IsDiagnostic reports whether err carries HCL diagnostics, as opposed to a
// graph construction failure.
func IsDiagnostic(err error) bool {
	var diags hcl.Diagnostics
	return errors.As(err, &diags)
}
