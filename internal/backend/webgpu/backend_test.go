//go:build windows

package webgpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textnet-ml/textnet/internal/backend/cpu"
	"github.com/textnet-ml/textnet/internal/tensor"
)

func newBackend(t *testing.T) *Backend {
	t.Helper()
	backend, err := New()
	if err != nil {
		t.Logf("WebGPU not available: %v", err)
		t.Skip("WebGPU not available on this system")
	}
	t.Cleanup(backend.Release)
	return backend
}

func randRaw(t *testing.T, rng *rand.Rand, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	for i := range r.AsFloat32() {
		r.AsFloat32()[i] = float32(rng.NormFloat64())
	}
	return r
}

// assertClose compares a GPU result with the CPU reference within
// 1e-4 * max(1, |cpu|).
func assertClose(t *testing.T, want, got []float32) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		tol := 1e-4 * float64(max(1, abs32(want[i])))
		assert.InDelta(t, want[i], got[i], tol, "index %d", i)
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestIsAvailable(t *testing.T) {
	t.Logf("WebGPU available: %v", IsAvailable())
}

func TestBackend_Metadata(t *testing.T) {
	backend := newBackend(t)
	assert.Equal(t, "WebGPU", backend.Name())
	assert.Equal(t, tensor.WebGPU, backend.Device())
}

func TestBackend_FillAxpy(t *testing.T) {
	backend := newBackend(t)
	ref := cpu.New()
	rng := rand.New(rand.NewSource(1))

	x := randRaw(t, rng, tensor.Shape{1000})
	y := randRaw(t, rng, tensor.Shape{1000})
	want := y.Clone()

	backend.Axpy(0.3, x, y)
	ref.Axpy(0.3, x, want)
	assertClose(t, want.AsFloat32(), y.AsFloat32())

	backend.Fill(y, 1.5)
	for _, v := range y.AsFloat32() {
		require.Equal(t, float32(1.5), v)
	}
}

func TestBackend_ActivationsMatchCPU(t *testing.T) {
	backend := newBackend(t)
	ref := cpu.New()

	for _, fn := range tensor.Activations() {
		t.Run(fn.String(), func(t *testing.T) {
			rng := rand.New(rand.NewSource(2))
			shape := tensor.Shape{4, 1, 9, 7}
			x := randRaw(t, rng, shape)
			dy := randRaw(t, rng, shape)

			yGPU := randRaw(t, rng, shape)
			yCPU := yGPU.Clone()
			backend.ActivationForward(fn, x, yGPU)
			ref.ActivationForward(fn, x, yCPU)
			assertClose(t, yCPU.AsFloat32(), yGPU.AsFloat32())

			dxGPU := randRaw(t, rng, shape)
			dxCPU := dxGPU.Clone()
			backend.ActivationBackward(fn, yCPU, dy, dxGPU)
			ref.ActivationBackward(fn, yCPU, dy, dxCPU)
			assertClose(t, dxCPU.AsFloat32(), dxGPU.AsFloat32())
		})
	}
}

func TestBackend_MatchMatchesCPU(t *testing.T) {
	backend := newBackend(t)
	ref := cpu.New()
	rng := rand.New(rand.NewSource(3))

	batch, docLen, feat, hidden := 3, 6, 5, 2
	in := tensor.Shape{batch, 1, docLen, feat}
	a, bb := randRaw(t, rng, in), randRaw(t, rng, in)
	w := randRaw(t, rng, tensor.Shape{hidden, feat, 1, 1})
	outShape := tensor.Shape{batch, hidden, docLen, docLen}
	win := tensor.MatchWindow{Interval: 2, Len0: []int{6, 3, 0}, Len1: []int{5, 6, 2}}

	outGPU := randRaw(t, rng, outShape)
	outCPU := outGPU.Clone()
	backend.MatchWeightedDotForward(a, bb, w, win, outGPU)
	ref.MatchWeightedDotForward(a, bb, w, win, outCPU)
	assertClose(t, outCPU.AsFloat32(), outGPU.AsFloat32())

	dOut := randRaw(t, rng, outShape)
	daG, dbG, dwG := randRaw(t, rng, in), randRaw(t, rng, in), randRaw(t, rng, w.Shape())
	daC, dbC, dwC := daG.Clone(), dbG.Clone(), dwG.Clone()
	backend.MatchWeightedDotBackward(a, bb, w, dOut, win, daG, dbG, dwG)
	ref.MatchWeightedDotBackward(a, bb, w, dOut, win, daC, dbC, dwC)
	assertClose(t, daC.AsFloat32(), daG.AsFloat32())
	assertClose(t, dbC.AsFloat32(), dbG.AsFloat32())
	assertClose(t, dwC.AsFloat32(), dwG.AsFloat32())
}
