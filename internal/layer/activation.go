package layer

import (
	"math/rand"

	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// Activation applies an element-wise function chosen at construction:
// identity, sigmoid, tanh, relu or softplus. One bottom, one top, no
// parameters.
//
// The derivative is evaluated at the output: bottom.diff += f'(top.data) * top.diff.
type Activation[B tensor.Backend] struct {
	base[B]
	fn tensor.Activation
}

// NewActivation creates an activation layer for fn.
func NewActivation[B tensor.Backend](fn tensor.Activation, backend B) *Activation[B] {
	return &Activation[B]{base: newBase(backend, fn.String(), 1, 1, 0), fn: fn}
}

func activationConstructor[B tensor.Backend](fn tensor.Activation) Constructor[B] {
	return func(backend B) Layer[B] { return NewActivation(fn, backend) }
}

// Setup validates the node counts. Activations take no settings.
func (l *Activation[B]) Setup(settings setting.Map, bottom, top []*Node[B], _ *rand.Rand) error {
	if err := l.checkNodes(bottom, top); err != nil {
		return err
	}
	_, err := l.resolve(nil, settings)
	return err
}

// Reshape gives the top the bottom's shape and length.
func (l *Activation[B]) Reshape(bottom, top []*Node[B]) error {
	if err := top[0].Resize(bottom[0].Shape()); err != nil {
		return err
	}
	if err := top[0].CopyLength(bottom[0]); err != nil {
		return err
	}
	l.trace(top)
	return nil
}

// Forward computes top = f(bottom).
func (l *Activation[B]) Forward(bottom, top []*Node[B]) {
	if err := top[0].CopyLength(bottom[0]); err != nil {
		panic(err)
	}
	l.backend.ActivationForward(l.fn, bottom[0].Data().Raw(), top[0].Data().Raw())
}

// Backprop accumulates f'(top) * top.diff into the bottom gradient.
func (l *Activation[B]) Backprop(bottom, top []*Node[B]) {
	if !l.propagates(0) {
		return
	}
	l.backend.ActivationBackward(l.fn, top[0].Data().Raw(), top[0].Diff().Raw(), bottom[0].Diff().Raw())
}
