// Package parallel provides the worker fan-out used by the CPU kernels.
//
// Work is always partitioned by destination index: each index is handed to
// exactly one goroutine, so kernels that write only to their own index need
// no locking.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Config controls how loops are split across goroutines.
// Workers <= 1 runs every loop on the calling goroutine.
type Config struct {
	Workers  int // goroutines per loop
	MinChunk int // loops shorter than 2*MinChunk stay sequential
}

// DefaultConfig uses one worker per CPU.
func DefaultConfig() Config {
	return Config{Workers: runtime.NumCPU(), MinChunk: 64}
}

// Sequential returns a config that runs everything on the calling goroutine.
func Sequential() Config {
	return Config{Workers: 1, MinChunk: 1}
}

// Parallel reports whether loops may fan out.
func (cfg Config) Parallel() bool { return cfg.Workers > 1 }

// WithMinChunk returns a copy of cfg with a different minimum chunk size.
// Kernels whose per-item cost is large use a small chunk so that even short
// loops fan out.
func (cfg Config) WithMinChunk(n int) Config {
	cfg.MinChunk = max(n, 1)
	return cfg
}

// Range calls f on disjoint [start, end) ranges covering [0, n). Each
// worker claims the next range until none is left.
func Range(n int, f func(start, end int), cfg Config) {
	chunk := max(cfg.MinChunk, 1)
	if !cfg.Parallel() || n < 2*chunk {
		if n > 0 {
			f(0, n)
		}
		return
	}
	chunk = max(chunk, (n+cfg.Workers-1)/cfg.Workers)
	workers := min(cfg.Workers, (n+chunk-1)/chunk)

	var next atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for {
				start := int(next.Add(int64(chunk))) - chunk
				if start >= n {
					return
				}
				f(start, min(start+chunk, n))
			}
		}()
	}
	wg.Wait()
}

// For executes f(i) for i in [0, n).
func For(n int, f func(i int), cfg Config) {
	Range(n, func(start, end int) {
		for i := start; i < end; i++ {
			f(i)
		}
	}, cfg)
}

// ForGrid executes f(r, c) for every cell of a rows x cols grid, each cell on
// exactly one worker.
func ForGrid(rows, cols int, f func(r, c int), cfg Config) {
	if cols <= 0 {
		return
	}
	For(rows*cols, func(k int) {
		f(k/cols, k%cols)
	}, cfg)
}
