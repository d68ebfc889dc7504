package layer_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textnet-ml/textnet/internal/backend/cpu"
	"github.com/textnet-ml/textnet/internal/layer"
	"github.com/textnet-ml/textnet/internal/parallel"
	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

func matchSettings(hidden int, varLen bool, interval int) setting.Map {
	return setting.Map{
		"d_hidden":   setting.IntValue(hidden),
		"w_filler":   gaussianFiller(1),
		"w_updater":  sgdUpdater(0.1),
		"is_var_len": setting.BoolValue(varLen),
		"interval":   setting.IntValue(interval),
	}
}

type matchFixture struct {
	l      *layer.MatchWeightedDot[B]
	bottom []*layer.Node[B]
	top    []*layer.Node[B]
}

func newMatchFixture(t *testing.T, backend B, shape tensor.Shape, lengths [2][]int32, settings setting.Map) matchFixture {
	t.Helper()
	rng := rand.New(rand.NewSource(11))
	a := randomNode(t, backend, rng, "a", shape)
	b := randomNode(t, backend, rng, "b", shape)
	if lengths[0] != nil {
		require.NoError(t, a.SetLength(lengths[0]))
		require.NoError(t, b.SetLength(lengths[1]))
	}
	f := matchFixture{
		l:      layer.NewMatchWeightedDot(backend),
		bottom: nodes(a, b),
		top:    nodes(layer.NewNode("match", backend)),
	}
	setup(t, f.l, settings, f.bottom, f.top)
	return f
}

func TestMatchWeightedDot_Shapes(t *testing.T) {
	backend := cpu.New()
	f := newMatchFixture(t, backend, tensor.Shape{2, 1, 5, 3},
		[2][]int32{{5, 2}, {3, 5}}, matchSettings(4, true, 1))

	assert.Equal(t, tensor.Shape{2, 4, 5, 5}, f.top[0].Shape())
	require.Len(t, f.l.Params(), 1)
	assert.Equal(t, tensor.Shape{4, 3, 1, 1}, f.l.Params()[0].Shape())
	assert.Equal(t, layer.MatchWeightedDotConfig{DHidden: 4, IsVarLen: true, Interval: 1}, f.l.Config())
}

func TestMatchWeightedDot_ConcreteScenario(t *testing.T) {
	backend := cpu.New()
	a := node(t, backend, "a", tensor.Shape{1, 1, 2, 1}, 1, 2)
	b := node(t, backend, "b", tensor.Shape{1, 1, 2, 1}, 3, 4)
	top := layer.NewNode("match", backend)
	l := layer.NewMatchWeightedDot(backend)
	setup(t, l, setting.Map{
		"d_hidden":   setting.IntValue(1),
		"w_filler":   constantFiller(2),
		"w_updater":  sgdUpdater(0.1),
		"is_var_len": setting.BoolValue(false),
	}, nodes(a, b), nodes(top))

	l.Forward(nodes(a, b), nodes(top))
	assert.Equal(t, []float32{6, 8, 12, 16}, top.Data().Data())
}

func TestMatchWeightedDot_ZeroOutsideWindow(t *testing.T) {
	testCases := []struct {
		name     string
		lengths  [2][]int32
		varLen   bool
		interval int
	}{
		{"var_len", [2][]int32{{3, 1}, {2, 4}}, true, 1},
		{"strided", [2][]int32{nil, nil}, false, 2},
		{"var_len_strided", [2][]int32{{4, 0}, {3, 4}}, true, 3},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := cpu.New()
			f := newMatchFixture(t, backend, tensor.Shape{2, 1, 4, 3}, tc.lengths,
				matchSettings(2, tc.varLen, tc.interval))
			out := f.top[0].Data()
			for i := range out.Data() {
				out.Data()[i] = 42
			}
			f.l.Forward(f.bottom, f.top)

			for b := 0; b < 2; b++ {
				len0, len1 := 4, 4
				if tc.varLen {
					len0, len1 = int(tc.lengths[0][b]), int(tc.lengths[1][b])
				}
				for h := 0; h < 2; h++ {
					for i := 0; i < 4; i++ {
						for j := 0; j < 4; j++ {
							inside := i < len0 && j < len1 && i%tc.interval == 0 && j%tc.interval == 0
							v := out.At(b, h, i, j)
							if inside {
								assert.NotZerof(t, v, "[%d,%d,%d,%d]", b, h, i, j)
							} else {
								assert.Zerof(t, v, "[%d,%d,%d,%d]", b, h, i, j)
							}
						}
					}
				}
			}
		})
	}
}

func TestMatchWeightedDot_VarLenOffIgnoresLengths(t *testing.T) {
	backend := cpu.New()
	f := newMatchFixture(t, backend, tensor.Shape{2, 1, 4, 3},
		[2][]int32{{1, 0}, {0, 2}}, matchSettings(2, false, 1))
	out := f.top[0].Data()
	for i := range out.Data() {
		out.Data()[i] = 42
	}
	f.l.Forward(f.bottom, f.top)

	for i, v := range out.Data() {
		assert.NotZerof(t, v, "top[%d]", i)
		assert.NotEqualf(t, float32(42), v, "top[%d]", i)
	}
}

func TestMatchWeightedDot_EmptyRowHasNoGradient(t *testing.T) {
	backend := cpu.NewWithConfig(parallel.Sequential())
	shape := tensor.Shape{2, 1, 4, 3}
	f := newMatchFixture(t, backend, shape, [2][]int32{{3, 0}, {4, 2}}, matchSettings(2, true, 1))
	f.l.Forward(f.bottom, f.top)
	diff := f.top[0].Diff().Data()
	for i := range diff {
		diff[i] = float32(i%7)*0.5 - 1.5
	}
	f.l.Backprop(f.bottom, f.top)

	row := shape.NumElements() / shape[0]
	topRow := len(diff) / shape[0]
	zeros := make([]float32, row)
	assert.Equal(t, zeros, f.bottom[0].Diff().Data()[row:])
	assert.Equal(t, zeros, f.bottom[1].Diff().Data()[row:])
	assert.Equal(t, make([]float32, topRow), f.top[0].Data().Data()[topRow:])

	// The same layer fed only the non-empty row yields the same weight gradient.
	a := node(t, backend, "a", tensor.Shape{1, 1, 4, 3}, f.bottom[0].Data().Data()[:row]...)
	b := node(t, backend, "b", tensor.Shape{1, 1, 4, 3}, f.bottom[1].Data().Data()[:row]...)
	require.NoError(t, a.SetLength([]int32{3}))
	require.NoError(t, b.SetLength([]int32{4}))
	single := layer.NewMatchWeightedDot(backend)
	top := nodes(layer.NewNode("match", backend))
	setup(t, single, matchSettings(2, true, 1), nodes(a, b), top)
	copy(single.Params()[0].Value().Data(), f.l.Params()[0].Value().Data())
	single.Forward(nodes(a, b), top)
	copy(top[0].Diff().Data(), diff[:topRow])
	single.Backprop(nodes(a, b), top)

	assert.InDeltaSlice(t, f.l.Params()[0].Grad().Data(), single.Params()[0].Grad().Data(), 1e-5)
	assert.InDeltaSlice(t, f.bottom[0].Diff().Data()[:row], a.Diff().Data(), 1e-5)
	assert.InDeltaSlice(t, f.bottom[1].Diff().Data()[:row], b.Diff().Data(), 1e-5)
}

func TestMatchWeightedDot_Gradients(t *testing.T) {
	testCases := []struct {
		name     string
		lengths  [2][]int32
		varLen   bool
		interval int
	}{
		{"full", [2][]int32{nil, nil}, false, 1},
		{"var_len", [2][]int32{{3, 1}, {4, 2}}, true, 1},
		{"empty_row", [2][]int32{{4, 0}, {2, 3}}, true, 1},
		{"strided", [2][]int32{{4, 3}, {4, 4}}, true, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			backend := cpu.NewWithConfig(parallel.Sequential())
			f := newMatchFixture(t, backend, tensor.Shape{2, 1, 4, 3}, tc.lengths,
				matchSettings(2, tc.varLen, tc.interval))
			checkGradientsTol(t, 1e-3, f.l, f.bottom, f.top, 0, 1)
		})
	}
}

func TestMatchWeightedDot_BackpropAccumulates(t *testing.T) {
	backend := cpu.New()
	f := newMatchFixture(t, backend, tensor.Shape{2, 1, 3, 4},
		[2][]int32{{3, 2}, {1, 3}}, matchSettings(3, true, 1))
	f.l.Forward(f.bottom, f.top)
	for i := range f.top[0].Diff().Data() {
		f.top[0].Diff().Data()[i] = float32(i%5) - 2
	}

	f.l.Backprop(f.bottom, f.top)
	da, db := snapshot(f.bottom[0].Diff().Data()), snapshot(f.bottom[1].Diff().Data())
	dw := snapshot(f.l.Params()[0].Grad().Data())
	f.l.Backprop(f.bottom, f.top)

	for i, v := range f.bottom[0].Diff().Data() {
		assert.InDelta(t, 2*da[i], v, 1e-4)
	}
	for i, v := range f.bottom[1].Diff().Data() {
		assert.InDelta(t, 2*db[i], v, 1e-4)
	}
	for i, v := range f.l.Params()[0].Grad().Data() {
		assert.InDelta(t, 2*dw[i], v, 1e-4)
	}
}

func TestMatchWeightedDot_PropagateFlagOff(t *testing.T) {
	backend := cpu.New()
	f := newMatchFixture(t, backend, tensor.Shape{1, 1, 3, 2},
		[2][]int32{{3}, {3}}, matchSettings(2, true, 1))
	require.NoError(t, f.l.SetPropagateGradient([]bool{false, true}))

	for i := range f.bottom[0].Diff().Data() {
		f.bottom[0].Diff().Data()[i] = 0.25 * float32(i)
	}
	before := snapshot(f.bottom[0].Diff().Data())
	f.l.Forward(f.bottom, f.top)
	for i := range f.top[0].Diff().Data() {
		f.top[0].Diff().Data()[i] = 1
	}
	f.l.Backprop(f.bottom, f.top)

	assert.Equal(t, before, f.bottom[0].Diff().Data())
	assert.NotEqual(t, make([]float32, 6), f.bottom[1].Diff().Data())
	assert.NotEqual(t, make([]float32, 4), f.l.Params()[0].Grad().Data())
}

func TestMatchWeightedDot_SetupErrors(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))
	shape := tensor.Shape{2, 1, 4, 3}
	newBottoms := func() []*layer.Node[B] {
		return nodes(randomNode(t, backend, rng, "a", shape), randomNode(t, backend, rng, "b", shape))
	}
	top := nodes(layer.NewNode("match", backend))

	t.Run("missing_length", func(t *testing.T) {
		l := layer.NewMatchWeightedDot(backend)
		err := l.Setup(matchSettings(2, true, 1), newBottoms(), top, rng)
		assert.ErrorIs(t, err, layer.ErrNoLength)
	})

	t.Run("missing_setting", func(t *testing.T) {
		s := matchSettings(2, false, 1)
		delete(s, "d_hidden")
		err := layer.NewMatchWeightedDot(backend).Setup(s, newBottoms(), top, rng)
		assert.ErrorIs(t, err, setting.ErrMissingRequired)
	})

	t.Run("wrong_kind", func(t *testing.T) {
		s := matchSettings(2, false, 1)
		s["d_hidden"] = setting.StringValue("two")
		err := layer.NewMatchWeightedDot(backend).Setup(s, newBottoms(), top, rng)
		assert.ErrorIs(t, err, setting.ErrWrongKind)
	})

	t.Run("bad_interval", func(t *testing.T) {
		err := layer.NewMatchWeightedDot(backend).Setup(matchSettings(2, false, 0), newBottoms(), top, rng)
		assert.Error(t, err)
	})

	t.Run("shape_mismatch", func(t *testing.T) {
		bottom := nodes(randomNode(t, backend, rng, "a", shape),
			randomNode(t, backend, rng, "b", tensor.Shape{2, 1, 4, 5}))
		err := layer.NewMatchWeightedDot(backend).Setup(matchSettings(2, false, 1), bottom, top, rng)
		assert.ErrorIs(t, err, layer.ErrShapeMismatch)
	})

	t.Run("feature_change_on_reshape", func(t *testing.T) {
		l := layer.NewMatchWeightedDot(backend)
		bottom := newBottoms()
		require.NoError(t, l.Setup(matchSettings(2, false, 1), bottom, top, rng))
		require.NoError(t, bottom[0].Resize(tensor.Shape{2, 1, 4, 6}))
		require.NoError(t, bottom[1].Resize(tensor.Shape{2, 1, 4, 6}))
		assert.ErrorIs(t, l.Reshape(bottom, top), layer.ErrShapeMismatch)
	})

	t.Run("length_past_doc_len", func(t *testing.T) {
		l := layer.NewMatchWeightedDot(backend)
		bottom := newBottoms()
		for _, n := range bottom {
			require.NoError(t, n.SetLength([]int32{4, 2}))
		}
		require.NoError(t, l.Setup(matchSettings(2, true, 1), bottom, top, rng))
		bottom[1].Length().Data()[0] = 5
		assert.ErrorIs(t, l.Reshape(bottom, top), layer.ErrShapeMismatch)
	})

	t.Run("doc_len_shrinks", func(t *testing.T) {
		l := layer.NewMatchWeightedDot(backend)
		bottom := newBottoms()
		for _, n := range bottom {
			require.NoError(t, n.SetLength([]int32{4, 2}))
		}
		require.NoError(t, l.Setup(matchSettings(2, true, 1), bottom, top, rng))
		require.NoError(t, l.Reshape(bottom, top))
		for _, n := range bottom {
			require.NoError(t, n.Resize(tensor.Shape{2, 1, 3, 3}))
		}
		assert.ErrorIs(t, l.Reshape(bottom, top), layer.ErrNoLength)
	})
}
