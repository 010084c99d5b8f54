package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/born-ml/symgraph/internal/autodiff"
	"github.com/born-ml/symgraph/internal/backend/cpu"
	"github.com/born-ml/symgraph/internal/config"
	"github.com/born-ml/symgraph/internal/graph"
	"github.com/born-ml/symgraph/internal/loader"
	"github.com/born-ml/symgraph/internal/symbolic"
)

// ExitError carries the process exit code of a failed command.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Message
}

const usage = `
symgraph - symbolic tensor graphs with automatic differentiation

Usage:
  symgraph version
  symgraph inspect [options] MODEL
  symgraph grad [options] MODEL

Commands:
  version   Show version
  inspect   Print the node table of an HCL model description
  grad      Differentiate the objective of a model, extract the gradient
            function and print it with its memory plan
`

// bindings collects repeated -bind name=value flags.
type bindings symbolic.Substitution

func (b bindings) String() string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%d", name, b[name])
	}
	return strings.Join(parts, ",")
}

func (b bindings) Set(s string) error {
	name, value, ok := strings.Cut(s, "=")
	if !ok || name == "" {
		return fmt.Errorf("expected name=value, got %q", s)
	}
	v, err := strconv.ParseInt(value, 10, 64)
	if err != nil || v <= 0 {
		return fmt.Errorf("symbol %s must be a positive integer, got %q", name, value)
	}
	b[name] = v
	return nil
}

type options struct {
	model     string
	config    string
	logLevel  string
	logFormat string
	binds     bindings
}

// parse reads the flags of a subcommand. It returns shouldExit when help
// was printed.
func parse(cmd string, args []string, out io.Writer) (*options, bool, error) {
	fs := flag.NewFlagSet("symgraph "+cmd, flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() {
		fmt.Fprintf(out, "\nUsage:\n  symgraph %s [options] MODEL\n\nOptions:\n", cmd)
		fs.PrintDefaults()
	}

	opts := &options{binds: bindings{}}
	fs.StringVar(&opts.config, "config", "", "Path to an HCL config file with policy and log blocks.")
	fs.StringVar(&opts.logLevel, "log-level", "", "Override the log level: 'debug', 'info', 'warn' or 'error'.")
	fs.StringVar(&opts.logFormat, "log-format", "", "Override the log format: 'text' or 'json'.")
	if cmd == "grad" {
		fs.Var(opts.binds, "bind", "Bind a shape symbol for the memory plan, e.g. -bind n=32. Repeatable.")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("%s expects exactly one MODEL argument", cmd)}
	}
	opts.model = fs.Arg(0)
	return opts, false, nil
}

// setup loads the config, applies flag overrides and builds the logger and
// graph options.
func setup(opts *options, logOut io.Writer) (*slog.Logger, []graph.Option, error) {
	cfg := config.Default()
	if opts.config != "" {
		var err error
		if cfg, err = config.Load(opts.config); err != nil {
			return nil, nil, &ExitError{Code: 2, Message: err.Error()}
		}
	}
	if opts.logLevel != "" {
		cfg.Log.Level = strings.ToLower(opts.logLevel)
	}
	if opts.logFormat != "" {
		cfg.Log.Format = strings.ToLower(opts.logFormat)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, &ExitError{Code: 2, Message: err.Error()}
	}

	logger := cfg.NewLogger(logOut)
	gopts, err := cfg.GraphOptions(logger)
	if err != nil {
		return nil, nil, err
	}
	return logger, gopts, nil
}

// run dispatches a command line. Output goes to stdout, logs to stderr.
func run(stdout, stderr io.Writer, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(stdout, usage)
		return nil
	}
	switch args[0] {
	case "version":
		fmt.Fprintf(stdout, "symgraph %s\n", version)
		return nil
	case "help", "-h", "-help", "--help":
		fmt.Fprint(stdout, usage)
		return nil
	case "inspect", "grad":
	default:
		return &ExitError{Code: 2, Message: fmt.Sprintf("unknown command %q, run 'symgraph help'", args[0])}
	}

	opts, shouldExit, err := parse(args[0], args[1:], stdout)
	if err != nil || shouldExit {
		return err
	}
	logger, gopts, err := setup(opts, stderr)
	if err != nil {
		return err
	}
	logger.Debug("command started", "command", args[0], "model", opts.model)

	m, err := loader.Load(opts.model, gopts...)
	if err != nil {
		return err
	}
	if args[0] == "inspect" {
		return inspect(stdout, m)
	}
	return grad(stdout, logger, m, opts.binds)
}

func inspect(out io.Writer, m *loader.Model) error {
	fmt.Fprint(out, m.Graph.Summary())
	if m.Objective != nil {
		fmt.Fprintf(out, "\nobjective: %s\n", m.Objective.Label())
	}
	fmt.Fprintf(out, "inputs: %s\n", labels(m.Inputs))
	fmt.Fprintf(out, "parameters: %s\n", labels(m.Parameters))
	if len(m.Outputs) > 0 {
		fmt.Fprintf(out, "outputs: %s\n", labels(m.Outputs))
	}
	if m.Optimizer != nil {
		fmt.Fprintf(out, "optimizer: lr %g\n", m.Optimizer.LR())
	}
	for _, u := range m.Graph.Updates() {
		fmt.Fprintf(out, "update: %s <- %s\n", u.Target.Label(), u.Value.Label())
	}
	return nil
}

func grad(out io.Writer, logger *slog.Logger, m *loader.Model, binds bindings) error {
	if m.Objective == nil {
		return &ExitError{Code: 1, Message: "model declares no objective"}
	}
	targets := m.Targets
	if len(targets) == 0 {
		targets = m.Parameters
	}
	if len(targets) == 0 {
		return &ExitError{Code: 1, Message: "model declares no targets and no parameters"}
	}

	grads, err := autodiff.Gradient(m.Objective, targets)
	if err != nil {
		return err
	}
	outputs := []*graph.Node{m.Objective}
	for i, g := range grads {
		if g == nil {
			fmt.Fprintf(out, "no gradient for %s\n", targets[i].Label())
			continue
		}
		outputs = append(outputs, g)
	}
	outputs = append(outputs, m.Outputs...)

	fn, _, err := m.Graph.Extract(m.Inputs, outputs)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "gradient function: %d nodes (model graph %d nodes)\n\n", fn.Graph.Len(), m.Graph.Len())
	fmt.Fprint(out, fn.Graph.Summary())

	plan, err := cpu.PlanFunction(fn, symbolic.Substitution(binds))
	if errors.Is(err, symbolic.ErrUnderdetermined) {
		logger.Warn("memory plan skipped, bind every shape symbol with -bind", "reason", err.Error())
		return nil
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\nmemory plan (%s):\n", binds)
	fmt.Fprint(out, plan.String())
	return nil
}

func labels(nodes []*graph.Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.Label()
	}
	return strings.Join(parts, ", ")
}
