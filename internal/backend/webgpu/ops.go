//go:build windows

package webgpu

import (
	"github.com/textnet-ml/textnet/internal/tensor"
)

// Fill sets every element of t to value on GPU.
func (b *Backend) Fill(t *tensor.RawTensor, value float32) {
	n := t.NumElements()
	b.must("Fill", b.run(kernel{
		name:    "fill",
		code:    fillShader,
		dst:     t.Data(),
		params:  params(nil).u32(n).f32(value),
		threads: n,
	}))
}

// Axpy computes y += alpha * x on GPU.
func (b *Backend) Axpy(alpha float32, x, y *tensor.RawTensor) {
	if x.NumElements() != y.NumElements() {
		panic("webgpu: Axpy: size mismatch")
	}
	n := y.NumElements()
	b.must("Axpy", b.run(kernel{
		name:    "axpy",
		code:    axpyShader,
		inputs:  [][]byte{x.Data()},
		dst:     y.Data(),
		params:  params(nil).u32(n).f32(alpha),
		threads: n,
	}))
}

// ActivationForward writes fn(x) into y on GPU.
func (b *Backend) ActivationForward(fn tensor.Activation, x, y *tensor.RawTensor) {
	checkActivation(fn)
	if !x.Shape().Equal(y.Shape()) {
		panic("webgpu: ActivationForward: shape mismatch " + x.Shape().String() + " vs " + y.Shape().String())
	}
	n := x.NumElements()
	b.must("ActivationForward", b.run(kernel{
		name:    "activation_forward",
		code:    activationForwardShader,
		inputs:  [][]byte{x.Data()},
		dst:     y.Data(),
		params:  params(nil).u32(n).u32(int(fn)),
		threads: n,
	}))
}

// ActivationBackward accumulates fn'(y) * dy into dx on GPU.
func (b *Backend) ActivationBackward(fn tensor.Activation, y, dy, dx *tensor.RawTensor) {
	checkActivation(fn)
	if !y.Shape().Equal(dy.Shape()) || !y.Shape().Equal(dx.Shape()) {
		panic("webgpu: ActivationBackward: shape mismatch")
	}
	n := y.NumElements()
	b.must("ActivationBackward", b.run(kernel{
		name:    "activation_backward",
		code:    activationBackwardShader,
		inputs:  [][]byte{y.Data(), dy.Data()},
		dst:     dx.Data(),
		params:  params(nil).u32(n).u32(int(fn)),
		threads: n,
	}))
}

// MatchWeightedDotForward computes the per-channel bilinear match scores on GPU.
func (b *Backend) MatchWeightedDotForward(a, bb, w *tensor.RawTensor, win tensor.MatchWindow, out *tensor.RawTensor) {
	d, err := tensor.CheckMatch(a, bb, w, out, win)
	b.must("MatchWeightedDotForward", err)
	b.must("MatchWeightedDotForward", b.run(kernel{
		name:    "match_forward",
		code:    matchForwardShader,
		inputs:  [][]byte{a.Data(), bb.Data(), w.Data(), lengths(win.Len0, win.Len1)},
		dst:     out.Data(),
		params:  matchUniform(d, win),
		threads: out.NumElements(),
	}))
}

// MatchWeightedDotBackward accumulates the match gradients on GPU, one
// dispatch per destination. da and db may be nil.
func (b *Backend) MatchWeightedDotBackward(a, bb, w, dOut *tensor.RawTensor, win tensor.MatchWindow, da, db, dw *tensor.RawTensor) {
	const op = "MatchWeightedDotBackward"
	d, err := tensor.CheckMatch(a, bb, w, dOut, win)
	b.must(op, err)
	if !dw.Shape().Equal(w.Shape()) {
		panic("webgpu: " + op + ": weight gradient shape mismatch")
	}
	u := matchUniform(d, win)
	lens := lengths(win.Len0, win.Len1)

	if da != nil {
		if !da.Shape().Equal(a.Shape()) {
			panic("webgpu: " + op + ": input 0 gradient shape mismatch")
		}
		b.must(op, b.run(kernel{
			name:    "match_backward_a",
			code:    matchBackwardAShader,
			inputs:  [][]byte{bb.Data(), w.Data(), dOut.Data(), lens},
			dst:     da.Data(),
			params:  u,
			threads: da.NumElements(),
		}))
	}
	if db != nil {
		if !db.Shape().Equal(bb.Shape()) {
			panic("webgpu: " + op + ": input 1 gradient shape mismatch")
		}
		b.must(op, b.run(kernel{
			name:    "match_backward_b",
			code:    matchBackwardBShader,
			inputs:  [][]byte{a.Data(), w.Data(), dOut.Data(), lens},
			dst:     db.Data(),
			params:  u,
			threads: db.NumElements(),
		}))
	}
	b.must(op, b.run(kernel{
		name:    "match_backward_w",
		code:    matchBackwardWShader,
		inputs:  [][]byte{a.Data(), bb.Data(), dOut.Data(), lens},
		dst:     dw.Data(),
		params:  u,
		threads: d.Hidden * d.Feat,
	}))
}

func matchUniform(d tensor.MatchDims, win tensor.MatchWindow) params {
	return params(nil).u32(d.Batch).u32(d.DocLen).u32(d.Feat).u32(d.Hidden).u32(win.Interval).u32(0).u32(0).u32(0)
}

func checkActivation(fn tensor.Activation) {
	if fn < tensor.Identity || fn > tensor.Softplus {
		panic("webgpu: unknown activation " + fn.String())
	}
}

// must panics on kernel failures; the Backend interface has no error path.
func (b *Backend) must(op string, err error) {
	if err != nil {
		panic("webgpu: " + op + ": " + err.Error())
	}
}
