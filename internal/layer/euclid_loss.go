package layer

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// TypeEuclidLoss is the registry name of EuclidLoss.
const TypeEuclidLoss = "euclid_loss"

// EuclidLoss is the squared error between a prediction (bottom 0) and a
// label (bottom 1) with the same number of elements per row:
//
//	loss = Σ (p - y)² / (2 * batch)
//
// The top is [1,1,1,1]. Backprop adds (p - y) / batch to the prediction
// gradient and ignores the top gradient. The label never receives gradient.
type EuclidLoss[B tensor.Backend] struct {
	base[B]
}

// NewEuclidLoss creates a squared error loss layer.
func NewEuclidLoss[B tensor.Backend](backend B) *EuclidLoss[B] {
	return &EuclidLoss[B]{base: newBase(backend, TypeEuclidLoss, 2, 1, 0)}
}

// Setup validates the node counts. The loss takes no settings.
func (l *EuclidLoss[B]) Setup(settings setting.Map, bottom, top []*Node[B], _ *rand.Rand) error {
	if err := l.checkNodes(bottom, top); err != nil {
		return err
	}
	_, err := l.resolve(nil, settings)
	return err
}

// Reshape checks the prediction and label sizes.
func (l *EuclidLoss[B]) Reshape(bottom, top []*Node[B]) error {
	p, y := bottom[0].Shape(), bottom[1].Shape()
	if p[0] != y[0] || p.NumElements() != y.NumElements() {
		return errors.Wrapf(ErrShapeMismatch, "%s: prediction %v vs label %v", l.typ, p, y)
	}
	if err := top[0].Resize(tensor.Shape{1, 1, 1, 1}); err != nil {
		return err
	}
	l.trace(top)
	return nil
}

// Forward computes the loss.
func (l *EuclidLoss[B]) Forward(bottom, top []*Node[B]) {
	p, y := bottom[0].Data().Data(), bottom[1].Data().Data()
	var sum float64
	for i := range p {
		d := float64(p[i] - y[i])
		sum += d * d
	}
	batch := bottom[0].Shape()[0]
	top[0].Data().Data()[0] = float32(sum / float64(2*batch))
}

// Backprop adds (p - y) / batch to the prediction gradient.
func (l *EuclidLoss[B]) Backprop(bottom, _ []*Node[B]) {
	if !l.propagates(0) {
		return
	}
	p, y := bottom[0].Data().Data(), bottom[1].Data().Data()
	dp := bottom[0].Diff().Data()
	scale := 1 / float32(bottom[0].Shape()[0])
	for i := range p {
		dp[i] += (p[i] - y[i]) * scale
	}
}
