package cpu

import (
	"fmt"

	"github.com/goki/mat32"

	"github.com/textnet-ml/textnet/internal/tensor"
)

// activationFunc pairs an element-wise function with its derivative written
// in terms of the function's output.
type activationFunc struct {
	f    func(x float32) float32
	grad func(y float32) float32
}

var activationFuncs = map[tensor.Activation]activationFunc{
	tensor.Identity: {
		f:    func(x float32) float32 { return x },
		grad: func(float32) float32 { return 1 },
	},
	tensor.Sigmoid: {
		f:    sigmoid,
		grad: func(y float32) float32 { return y * (1 - y) },
	},
	tensor.Tanh: {
		f:    mat32.Tanh,
		grad: func(y float32) float32 { return 1 - y*y },
	},
	tensor.ReLU: {
		f: func(x float32) float32 {
			if x > 0 {
				return x
			}
			return 0
		},
		grad: func(y float32) float32 {
			if y > 0 {
				return 1
			}
			return 0
		},
	},
	tensor.Softplus: {
		f:    softplus,
		grad: func(y float32) float32 { return 1 - mat32.Exp(-y) },
	},
}

func sigmoid(x float32) float32 {
	if x >= 0 {
		return 1 / (1 + mat32.Exp(-x))
	}
	e := mat32.Exp(x)
	return e / (1 + e)
}

func softplus(x float32) float32 {
	if x > 0 {
		return x + mat32.Log1p(mat32.Exp(-x))
	}
	return mat32.Log1p(mat32.Exp(x))
}

func lookupActivation(fn tensor.Activation) activationFunc {
	af, ok := activationFuncs[fn]
	if !ok {
		panic(fmt.Sprintf("cpu: unsupported activation %s", fn))
	}
	return af
}

// ActivationForward writes fn(x) into y.
func (cpu *CPUBackend) ActivationForward(fn tensor.Activation, x, y *tensor.RawTensor) {
	if x.NumElements() != y.NumElements() {
		panic(fmt.Sprintf("activation %s: size mismatch %v vs %v", fn, x.Shape(), y.Shape()))
	}
	af := lookupActivation(fn)
	src, dst := x.AsFloat32(), y.AsFloat32()
	cpu.forChunks(len(dst), func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = af.f(src[i])
		}
	})
}

// ActivationBackward accumulates fn'(y) * dy into dx.
func (cpu *CPUBackend) ActivationBackward(fn tensor.Activation, y, dy, dx *tensor.RawTensor) {
	n := y.NumElements()
	if dy.NumElements() != n || dx.NumElements() != n {
		panic(fmt.Sprintf("activation %s backward: size mismatch %v, %v, %v", fn, y.Shape(), dy.Shape(), dx.Shape()))
	}
	af := lookupActivation(fn)
	out, gOut, gIn := y.AsFloat32(), dy.AsFloat32(), dx.AsFloat32()
	cpu.forChunks(n, func(start, end int) {
		for i := start; i < end; i++ {
			gIn[i] += af.grad(out[i]) * gOut[i]
		}
	})
}
