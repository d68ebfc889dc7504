// Package cpu implements the pure-Go CPU backend.
//
// Kernels iterate flat float32 slices and fan out across rows with
// internal/parallel. Every parallel kernel writes only to the destination
// rows it owns, so results are race-free without locks.
package cpu

import (
	"fmt"

	"github.com/textnet-ml/textnet/internal/parallel"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// elementChunk is the minimum number of elements per goroutine for cheap
// element-wise kernels.
const elementChunk = 4096

// CPUBackend implements tensor.Backend on the host CPU.
type CPUBackend struct {
	device tensor.Device
	par    parallel.Config
}

// Compile-time check that CPUBackend implements tensor.Backend.
var _ tensor.Backend = (*CPUBackend)(nil)

// New creates a new CPU backend using all available cores.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with explicit parallelism settings.
// parallel.Sequential() gives a deterministic single-goroutine backend.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	return &CPUBackend{
		device: tensor.CPU,
		par:    cfg,
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Parallel returns the backend's parallelism settings.
func (cpu *CPUBackend) Parallel() parallel.Config {
	return cpu.par
}

// Fill sets every element of t to value.
func (cpu *CPUBackend) Fill(t *tensor.RawTensor, value float32) {
	data := t.AsFloat32()
	if value == 0 {
		clear(data)
		return
	}
	for i := range data {
		data[i] = value
	}
}

// Axpy computes y += alpha * x element-wise.
func (cpu *CPUBackend) Axpy(alpha float32, x, y *tensor.RawTensor) {
	if x.NumElements() != y.NumElements() {
		panic(fmt.Sprintf("axpy: size mismatch %v vs %v", x.Shape(), y.Shape()))
	}
	xd, yd := x.AsFloat32(), y.AsFloat32()
	cpu.forChunks(len(yd), func(start, end int) {
		for i := start; i < end; i++ {
			yd[i] += alpha * xd[i]
		}
	})
}

// forChunks runs f over [0, n) in ranges of at least elementChunk elements.
func (cpu *CPUBackend) forChunks(n int, f func(start, end int)) {
	parallel.Range(n, f, cpu.par.WithMinChunk(elementChunk))
}
