// Package config loads symgraph settings from HCL (or HCL-JSON) files.
//
// Example file:
//
//	policy {
//	  broadcast            = "quiet"
//	  cast                 = "warn"
//	  independent_gradient = "raise"
//	}
//
//	log {
//	  level  = "debug"
//	  format = "json"
//	}
//
// Both blocks are optional; missing blocks and attributes keep the defaults
// of graph.DefaultPolicies and an info-level text logger.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"github.com/born-ml/symgraph/internal/graph"
)

// PolicyBlock is the policy { ... } block.
type PolicyBlock struct {
	Broadcast           string `hcl:"broadcast,optional"`
	Cast                string `hcl:"cast,optional"`
	IndependentGradient string `hcl:"independent_gradient,optional"`
}

// LogBlock is the log { ... } block.
type LogBlock struct {
	Level  string `hcl:"level,optional"`
	Format string `hcl:"format,optional"`
}

// Config is the decoded configuration file.
type Config struct {
	Policy *PolicyBlock `hcl:"policy,block"`
	Log    *LogBlock    `hcl:"log,block"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	d := graph.DefaultPolicies()
	return &Config{
		Policy: &PolicyBlock{
			Broadcast:           d.Broadcast.String(),
			Cast:                d.Cast.String(),
			IndependentGradient: d.IndependentGradient.String(),
		},
		Log: &LogBlock{Level: "info", Format: "text"},
	}
}

// Load decodes the file at path. The syntax is chosen from the extension
// (.hcl or .json).
func Load(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, err)
	}
	return finish(&cfg)
}

// Parse decodes src; filename is used for diagnostics and to pick the
// syntax.
func Parse(src []byte, filename string) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, src, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", filename, err)
	}
	return finish(&cfg)
}

// finish fills defaults and validates.
func finish(cfg *Config) (*Config, error) {
	def := Default()
	if cfg.Policy == nil {
		cfg.Policy = def.Policy
	}
	if cfg.Policy.Broadcast == "" {
		cfg.Policy.Broadcast = def.Policy.Broadcast
	}
	if cfg.Policy.Cast == "" {
		cfg.Policy.Cast = def.Policy.Cast
	}
	if cfg.Policy.IndependentGradient == "" {
		cfg.Policy.IndependentGradient = def.Policy.IndependentGradient
	}
	if cfg.Log == nil {
		cfg.Log = def.Log
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = def.Log.Level
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = def.Log.Format
	}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	cfg.Log.Format = strings.ToLower(cfg.Log.Format)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every value of a fully populated config.
func (c *Config) Validate() error {
	if _, err := c.Policies(); err != nil {
		return err
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format %q: must be 'text' or 'json'", c.Log.Format)
	}
	return nil
}

// Policies converts the policy block.
func (c *Config) Policies() (graph.Policies, error) {
	var p graph.Policies
	var err error
	if p.Broadcast, err = graph.ParsePolicy(c.Policy.Broadcast); err != nil {
		return p, fmt.Errorf("policy.broadcast: %w", err)
	}
	if p.Cast, err = graph.ParsePolicy(c.Policy.Cast); err != nil {
		return p, fmt.Errorf("policy.cast: %w", err)
	}
	if p.IndependentGradient, err = graph.ParsePolicy(c.Policy.IndependentGradient); err != nil {
		return p, fmt.Errorf("policy.independent_gradient: %w", err)
	}
	return p, nil
}

// NewLogger builds a logger writing to w with the configured level and
// format. It does not touch the global slog logger.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// GraphOptions returns the options that configure a graph with these
// policies and logger.
func (c *Config) GraphOptions(logger *slog.Logger) ([]graph.Option, error) {
	p, err := c.Policies()
	if err != nil {
		return nil, err
	}
	return []graph.Option{graph.WithPolicies(p), graph.WithLogger(logger)}, nil
}
