package tensor

import (
	"fmt"

	"github.com/pkg/errors"
)

// Backend is the capability set every compute backend implements.
// Layers are written once against this interface and run unchanged on any
// device; backends only differ in where the kernels execute.
//
// Implementations:
//   - CPU: pure Go, row-parallel kernels (internal/backend/cpu)
//   - WebGPU: WGSL compute shaders (internal/backend/webgpu)
//
// Kernels that accumulate ("+=") never clear their destination: callers own
// the zeroing of gradients.
type Backend interface {
	// Fill sets every element of t to value.
	Fill(t *RawTensor, value float32)

	// Axpy computes y += alpha * x element-wise.
	Axpy(alpha float32, x, y *RawTensor)

	// ActivationForward writes fn(x) into y. x and y have the same shape.
	ActivationForward(fn Activation, x, y *RawTensor)

	// ActivationBackward accumulates fn'(y) * dy into dx, where y is the
	// forward output (the derivative is expressed in terms of the output).
	ActivationBackward(fn Activation, y, dy, dx *RawTensor)

	// MatchWeightedDotForward computes, for every position pair visited by win,
	//   out[b,h,i,j] = sum_f a[b,0,i,f] * bb[b,0,j,f] * w[h,f]
	// and sets every other element of out to zero.
	MatchWeightedDotForward(a, bb, w *RawTensor, win MatchWindow, out *RawTensor)

	// MatchWeightedDotBackward accumulates gradients over exactly the index
	// set visited by the forward kernel for the same window. da and db may be
	// nil, in which case they are not computed; dw is always accumulated.
	MatchWeightedDotBackward(a, bb, w, dOut *RawTensor, win MatchWindow, da, db, dw *RawTensor)

	// Metadata
	Name() string
	Device() Device
}

// Activation selects an element-wise activation function.
type Activation int

// Supported activations. Each derivative is a function of the output y.
const (
	Identity Activation = iota // f(x) = x,              f' = 1
	Sigmoid                    // f(x) = 1/(1+e^-x),     f' = y(1-y)
	Tanh                       // f(x) = tanh(x),        f' = 1-y²
	ReLU                       // f(x) = max(0,x),       f' = [y>0]
	Softplus                   // f(x) = log(1+e^x),     f' = 1-e^-y
)

// String returns the layer type name of the activation.
func (a Activation) String() string {
	switch a {
	case Identity:
		return "identity"
	case Sigmoid:
		return "sigmoid"
	case Tanh:
		return "tanh"
	case ReLU:
		return "relu"
	case Softplus:
		return "softplus"
	default:
		return fmt.Sprintf("activation(%d)", int(a))
	}
}

// Activations lists every supported activation.
func Activations() []Activation {
	return []Activation{Identity, Sigmoid, Tanh, ReLU, Softplus}
}

// MatchWindow describes which (i, j) position pairs of each batch row the
// match kernels visit: i in [0, Len0[b]) and j in [0, Len1[b]), both stepping
// by Interval. Forward and backward take the same window, so they traverse the
// same index set by construction.
type MatchWindow struct {
	Interval int
	Len0     []int
	Len1     []int
}

// Validate checks the window against the batch size and padded length.
func (w MatchWindow) Validate(batch, docLen int) error {
	if w.Interval < 1 {
		return errors.Errorf("match window: interval must be >= 1, got %d", w.Interval)
	}
	if len(w.Len0) != batch || len(w.Len1) != batch {
		return errors.Errorf("match window: want %d lengths, got %d and %d", batch, len(w.Len0), len(w.Len1))
	}
	for b := 0; b < batch; b++ {
		if w.Len0[b] < 0 || w.Len0[b] > docLen || w.Len1[b] < 0 || w.Len1[b] > docLen {
			return errors.Errorf("match window: row %d lengths (%d, %d) outside [0, %d]", b, w.Len0[b], w.Len1[b], docLen)
		}
	}
	return nil
}

// Visits reports whether position pair (i, j) of row b is in the window.
func (w MatchWindow) Visits(b, i, j int) bool {
	return i < w.Len0[b] && j < w.Len1[b] && i%w.Interval == 0 && j%w.Interval == 0
}

// MatchDims holds the sizes shared by the weighted-dot match kernels.
type MatchDims struct {
	Batch, DocLen, Feat, Hidden int
}

// CheckMatch validates the operands of a weighted-dot match against each
// other and against win: inputs are [batch,1,docLen,feat] with equal shapes,
// the weight holds hidden*feat elements with dimension 1 equal to feat, and
// out is [batch,hidden,docLen,docLen].
func CheckMatch(a, bb, w, out *RawTensor, win MatchWindow) (MatchDims, error) {
	sa := a.Shape()
	if len(sa) != 4 || sa[1] != 1 {
		return MatchDims{}, errors.Errorf("input 0 must be [batch,1,len,feat], got %v", sa)
	}
	if !bb.Shape().Equal(sa) {
		return MatchDims{}, errors.Errorf("input shapes differ: %v vs %v", sa, bb.Shape())
	}
	d := MatchDims{Batch: sa[0], DocLen: sa[2], Feat: sa[3]}
	sw := w.Shape()
	if len(sw) < 2 || sw[1] != d.Feat || sw.NumElements() != sw[0]*sw[1] {
		return MatchDims{}, errors.Errorf("weight must be [hidden,%d,1,1], got %v", d.Feat, sw)
	}
	d.Hidden = sw[0]
	want := Shape{d.Batch, d.Hidden, d.DocLen, d.DocLen}
	if !out.Shape().Equal(want) {
		return MatchDims{}, errors.Errorf("output must be %v, got %v", want, out.Shape())
	}
	if err := win.Validate(d.Batch, d.DocLen); err != nil {
		return MatchDims{}, err
	}
	return d, nil
}
