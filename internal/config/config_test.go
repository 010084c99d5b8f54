package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/symgraph/internal/config"
	"github.com/born-ml/symgraph/internal/graph"
)

func TestParse_Full(t *testing.T) {
	src := `
policy {
  broadcast            = "raise"
  cast                 = "quiet"
  independent_gradient = "warn"
}

log {
  level  = "DEBUG"
  format = "json"
}
`
	cfg, err := config.Parse([]byte(src), "symgraph.hcl")
	require.NoError(t, err)

	p, err := cfg.Policies()
	require.NoError(t, err)
	assert.Equal(t, graph.Policies{
		Broadcast:           graph.PolicyRaise,
		Cast:                graph.PolicyQuiet,
		IndependentGradient: graph.PolicyWarn,
	}, p)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := config.Parse([]byte(`policy { cast = "raise" }`), "partial.hcl")
	require.NoError(t, err)

	p, err := cfg.Policies()
	require.NoError(t, err)
	want := graph.DefaultPolicies()
	want.Cast = graph.PolicyRaise
	assert.Equal(t, want, p)
	assert.Equal(t, config.Default().Log, cfg.Log)

	empty, err := config.Parse(nil, "empty.hcl")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), empty)
}

func TestParse_JSONSyntax(t *testing.T) {
	cfg, err := config.Parse([]byte(`{"policy": {"broadcast": "warn"}}`), "symgraph.json")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Policy.Broadcast)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"bad policy", `policy { cast = "sometimes" }`, "policy.cast"},
		{"bad level", `log { level = "trace" }`, "invalid log level"},
		{"bad format", `log { format = "xml" }`, "invalid log format"},
		{"unknown attribute", `policy { shape = "warn" }`, "failed to decode"},
		{"syntax", `policy {`, "failed to decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tt.src), "bad.hcl")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symgraph.hcl")
	require.NoError(t, os.WriteFile(path, []byte(`log { level = "warn" }`), 0600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.hcl"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg, err := config.Parse([]byte(`log {
  level  = "warn"
  format = "json"
}`), "log.hcl")
	require.NoError(t, err)

	var out bytes.Buffer
	logger := cfg.NewLogger(&out)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)

	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), `"msg":"shown"`)
	assert.Contains(t, out.String(), `"k":1`)
}

func TestGraphOptions(t *testing.T) {
	cfg, err := config.Parse([]byte(`policy { broadcast = "raise" }`), "g.hcl")
	require.NoError(t, err)

	var out bytes.Buffer
	opts, err := cfg.GraphOptions(cfg.NewLogger(&out))
	require.NoError(t, err)

	g := graph.New(opts...)
	assert.Equal(t, graph.PolicyRaise, g.Policies().Broadcast)
	g.Logger().Info("through graph")
	assert.Contains(t, out.String(), "through graph")
}
