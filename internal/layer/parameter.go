package layer

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/textnet-ml/textnet/internal/initializer"
	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
	"github.com/textnet-ml/textnet/internal/updater"
)

// Parameter is a learned tensor owned by a layer: a value, the gradient
// accumulated into it by Backprop, an initializer and an updater.
//
// Example:
//
//	w, err := layer.NewParameter("match.weight", tensor.Shape{4, 50, 1, 1}, backend)
//	w.SetInitializer(fill)
//	w.SetUpdater(upd)
//	w.Init(rng)
//	...
//	w.Update() // applies the updater and zeros the gradient
type Parameter[B tensor.Backend] struct {
	name    string
	value   *tensor.Tensor[float32, B]
	grad    *tensor.Tensor[float32, B]
	filler  initializer.Initializer
	updater updater.Updater
}

// NewParameter allocates a zeroed parameter of the given shape.
func NewParameter[B tensor.Backend](name string, shape tensor.Shape, backend B) (*Parameter[B], error) {
	if err := shape.Validate(); err != nil {
		return nil, errors.Wrapf(err, "parameter %q", name)
	}
	return &Parameter[B]{
		name:  name,
		value: tensor.Zeros[float32](shape.Clone(), backend),
		grad:  tensor.Zeros[float32](shape.Clone(), backend),
	}, nil
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string { return p.name }

// Shape returns the parameter shape.
func (p *Parameter[B]) Shape() tensor.Shape { return p.value.Shape() }

// Value returns the parameter value.
func (p *Parameter[B]) Value() *tensor.Tensor[float32, B] { return p.value }

// Grad returns the accumulated gradient.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] { return p.grad }

// SetInitializer sets the strategy used by Init.
func (p *Parameter[B]) SetInitializer(fill initializer.Initializer) { p.filler = fill }

// SetUpdater sets the strategy used by Update.
func (p *Parameter[B]) SetUpdater(u updater.Updater) { p.updater = u }

// Updater returns the parameter's updater, nil if none is set.
func (p *Parameter[B]) Updater() updater.Updater { return p.updater }

// Init fills the value with the initializer. Without an initializer the
// value stays zero.
func (p *Parameter[B]) Init(rng *rand.Rand) {
	if p.filler != nil {
		p.filler.Init(p.value.Raw(), rng)
	}
}

// Update applies the updater to the accumulated gradient and leaves the
// gradient zeroed. Without an updater the gradient is only reset.
func (p *Parameter[B]) Update() {
	if p.updater == nil {
		p.ZeroGrad()
		return
	}
	p.updater.Update(p.value.Raw(), p.grad.Raw())
}

// ZeroGrad clears the gradient.
func (p *Parameter[B]) ZeroGrad() {
	p.value.Backend().Fill(p.grad.Raw(), 0)
}

// Snapshot returns a copy of the value, for checkpoints.
func (p *Parameter[B]) Snapshot() *tensor.RawTensor {
	return p.value.Raw().Clone()
}

// Restore overwrites the value with a snapshot of the same shape.
func (p *Parameter[B]) Restore(snapshot *tensor.RawTensor) error {
	if !snapshot.Shape().Equal(p.value.Shape()) {
		return errors.Wrapf(ErrShapeMismatch, "parameter %q: snapshot shape %v, want %v",
			p.name, snapshot.Shape(), p.value.Shape())
	}
	if err := p.value.Raw().CopyFrom(snapshot); err != nil {
		return errors.Wrapf(err, "parameter %q", p.name)
	}
	return nil
}

// newParameter builds a parameter whose initializer and updater come from
// nested settings, and initializes it.
func newParameter[B tensor.Backend](
	backend B, name string, shape tensor.Shape,
	filler, upd setting.Map, rng *rand.Rand,
) (*Parameter[B], error) {
	p, err := NewParameter(name, shape, backend)
	if err != nil {
		return nil, err
	}

	icfg, err := initializer.FromSettings(filler)
	if err != nil {
		return nil, errors.Wrapf(err, "parameter %q filler", name)
	}
	fill, err := initializer.New(icfg)
	if err != nil {
		return nil, errors.Wrapf(err, "parameter %q filler", name)
	}

	ucfg, err := updater.FromSettings(upd)
	if err != nil {
		return nil, errors.Wrapf(err, "parameter %q updater", name)
	}
	u, err := updater.New(ucfg, backend)
	if err != nil {
		return nil, errors.Wrapf(err, "parameter %q updater", name)
	}

	p.SetInitializer(fill)
	p.SetUpdater(u)
	p.Init(rng)
	return p, nil
}
