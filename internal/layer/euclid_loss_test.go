package layer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textnet-ml/textnet/internal/backend/cpu"
	"github.com/textnet-ml/textnet/internal/layer"
	"github.com/textnet-ml/textnet/internal/tensor"
)

func TestEuclidLoss(t *testing.T) {
	backend := cpu.New()
	p := node(t, backend, "pred", tensor.Shape{2, 1, 1, 1}, 1, 3)
	y := node(t, backend, "label", tensor.Shape{2, 1, 1, 1}, 0, 1)
	top := layer.NewNode("loss", backend)
	l := layer.NewEuclidLoss(backend)
	setup(t, l, nil, nodes(p, y), nodes(top))

	l.Forward(nodes(p, y), nodes(top))
	assert.Equal(t, tensor.Shape{1, 1, 1, 1}, top.Shape())
	assert.InDelta(t, 1.25, top.Data().Data()[0], 1e-6)

	top.Diff().Data()[0] = 100 // ignored
	l.Backprop(nodes(p, y), nodes(top))
	assert.Equal(t, []float32{0.5, 1}, p.Diff().Data())
	assert.Equal(t, []float32{0, 0}, y.Diff().Data())
}

func TestEuclidLoss_ShapeMismatch(t *testing.T) {
	backend := cpu.New()
	p := node(t, backend, "pred", tensor.Shape{2, 2, 1, 1})
	y := node(t, backend, "label", tensor.Shape{2, 1, 1, 1})
	l := layer.NewEuclidLoss(backend)
	require.NoError(t, l.Setup(nil, nodes(p, y), nodes(layer.NewNode("loss", backend)), nil))
	assert.ErrorIs(t, l.Reshape(nodes(p, y), nodes(layer.NewNode("loss", backend))), layer.ErrShapeMismatch)
}
