package layer_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textnet-ml/textnet/internal/backend/cpu"
	"github.com/textnet-ml/textnet/internal/layer"
	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

func TestMaxPooling_Forward(t *testing.T) {
	backend := cpu.New()
	x := node(t, backend, "x", tensor.Shape{1, 2, 2, 2},
		1, 5, 3, 2,
		-4, -1, -3, -2)
	top := layer.NewNode("pool", backend)
	l := layer.NewMaxPooling(backend)
	setup(t, l, nil, nodes(x), nodes(top))

	l.Forward(nodes(x), nodes(top))
	assert.Equal(t, tensor.Shape{1, 2, 1, 1}, top.Shape())
	assert.Equal(t, []float32{5, -1}, top.Data().Data())

	copy(top.Diff().Data(), []float32{2, 3})
	l.Backprop(nodes(x), nodes(top))
	assert.Equal(t, []float32{0, 2, 0, 0, 0, 3, 0, 0}, x.Diff().Data())
}

func TestMaxPooling_VarLen(t *testing.T) {
	backend := cpu.New()
	x := node(t, backend, "x", tensor.Shape{2, 1, 3, 3},
		1, 2, 9,
		3, 4, 9,
		9, 9, 9,

		7, 7, 7,
		7, 7, 7,
		7, 7, 7)
	require.NoError(t, x.SetLength([]int32{2, 0}))
	top := layer.NewNode("pool", backend)
	l := layer.NewMaxPooling(backend)
	setup(t, l, setting.Map{"is_var_len": setting.BoolValue(true)}, nodes(x), nodes(top))

	l.Forward(nodes(x), nodes(top))
	assert.Equal(t, []float32{4, 0}, top.Data().Data())

	copy(top.Diff().Data(), []float32{1, 1})
	l.Backprop(nodes(x), nodes(top))
	want := make([]float32, 18)
	want[4] = 1
	assert.Equal(t, want, x.Diff().Data())
}

func TestMaxPooling_Errors(t *testing.T) {
	backend := cpu.New()
	x := node(t, backend, "x", tensor.Shape{1, 1, 2, 2})
	top := layer.NewNode("pool", backend)
	l := layer.NewMaxPooling(backend)
	require.NoError(t, l.Setup(setting.Map{"is_var_len": setting.BoolValue(true)}, nodes(x), nodes(top), nil))
	assert.ErrorIs(t, l.Reshape(nodes(x), nodes(top)), layer.ErrNoLength)
}

func TestMaxPooling_PropagateFlagOff(t *testing.T) {
	backend := cpu.New()
	x := node(t, backend, "x", tensor.Shape{1, 1, 1, 3}, 1, 3, 2)
	top := layer.NewNode("pool", backend)
	l := layer.NewMaxPooling(backend)
	setup(t, l, nil, nodes(x), nodes(top))
	require.NoError(t, l.SetPropagateGradient([]bool{false}))

	l.Forward(nodes(x), nodes(top))
	top.Diff().Data()[0] = 1
	l.Backprop(nodes(x), nodes(top))
	assert.Equal(t, []float32{0, 0, 0}, x.Diff().Data())
}
