// Package parallel splits the row loops of CPU kernels across goroutines.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls parallel execution behavior.
type Config struct {
	Enabled bool // Whether parallel execution is enabled.
	Workers int  // Maximum number of concurrent goroutines.
	MinWork int  // Minimum scalar operations per goroutine.
}

// DefaultConfig returns defaults based on CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled: n > 1,
		Workers: n,
		MinWork: 1 << 14,
	}
}

// Sequential returns a config that never spawns goroutines.
func Sequential() Config {
	return Config{}
}

// Rows calls f over disjoint [lo, hi) chunks covering [0, n). cost is the
// approximate work of one row; chunks hold at least cfg.MinWork of it.
// Small inputs and disabled configs run f(0, n) on the calling goroutine.
// The first error returned by any chunk is returned after all chunks end.
func Rows(n, cost int, cfg Config, f func(lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	cost = max(cost, 1)
	if !cfg.Enabled || cfg.Workers < 2 || n*cost < 2*cfg.MinWork {
		return f(0, n)
	}

	minRows := max((cfg.MinWork+cost-1)/cost, 1)
	chunk := max((n+cfg.Workers-1)/cfg.Workers, minRows)

	var eg errgroup.Group
	eg.SetLimit(cfg.Workers)
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		eg.Go(func() error { return f(lo, hi) })
	}
	return eg.Wait()
}
