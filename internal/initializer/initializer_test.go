package initializer_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/textnet-ml/textnet/internal/initializer"
	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

func newValue(shape tensor.Shape) *tensor.RawTensor {
	return must.M1(tensor.NewRaw(shape, tensor.Float32, tensor.CPU))
}

func TestFromSettings(t *testing.T) {
	tests := []struct {
		name string
		in   setting.Map
		want initializer.Config
	}{
		{
			name: "zero",
			in:   setting.Map{"init_type": setting.StringValue("zero")},
			want: initializer.Config{Kind: initializer.Zero},
		},
		{
			name: "constant",
			in:   setting.Map{"init_type": setting.StringValue("constant"), "value": setting.IntValue(2)},
			want: initializer.Config{Kind: initializer.Constant, Value: 2},
		},
		{
			name: "uniform default range",
			in:   setting.Map{"init_type": setting.StringValue("uniform")},
			want: initializer.Config{Kind: initializer.Uniform, Range: 0.1},
		},
		{
			name: "gaussian",
			in: setting.Map{
				"init_type": setting.StringValue("gaussian"),
				"mu":        setting.FloatValue(1),
				"sigma":     setting.FloatValue(0.5),
			},
			want: initializer.Config{Kind: initializer.Gaussian, Mu: 1, Sigma: 0.5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := initializer.FromSettings(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromSettings_Errors(t *testing.T) {
	_, err := initializer.FromSettings(setting.Map{})
	assert.ErrorIs(t, err, setting.ErrMissingRequired)

	_, err = initializer.FromSettings(setting.Map{"init_type": setting.IntValue(1)})
	assert.ErrorIs(t, err, setting.ErrWrongKind)

	_, err = initializer.FromSettings(setting.Map{"init_type": setting.StringValue("orthogonal")})
	assert.Error(t, err)

	_, err = initializer.FromSettings(setting.Map{
		"init_type": setting.StringValue("uniform"),
		"range":     setting.StringValue("wide"),
	})
	assert.ErrorIs(t, err, setting.ErrWrongKind)
}

func TestConstantAndZero(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	v := newValue(tensor.Shape{2, 3, 1, 1})

	must.M1(initializer.New(initializer.Config{Kind: initializer.Constant, Value: 0.25})).Init(v, rng)
	for _, x := range v.AsFloat32() {
		assert.Equal(t, float32(0.25), x)
	}

	must.M1(initializer.New(initializer.Config{Kind: initializer.Zero})).Init(v, rng)
	for _, x := range v.AsFloat32() {
		assert.Zero(t, x)
	}
}

func TestUniform_Bounds(t *testing.T) {
	v := newValue(tensor.Shape{16, 16, 1, 1})
	must.M1(initializer.New(initializer.Config{Kind: initializer.Uniform, Range: 0.3})).
		Init(v, rand.New(rand.NewSource(2)))

	var nonZero int
	for _, x := range v.AsFloat32() {
		assert.LessOrEqual(t, math.Abs(float64(x)), 0.3)
		if x != 0 {
			nonZero++
		}
	}
	assert.Greater(t, nonZero, 0)
}

func TestGaussian_Moments(t *testing.T) {
	v := newValue(tensor.Shape{100, 100, 1, 1})
	must.M1(initializer.New(initializer.Config{Kind: initializer.Gaussian, Mu: 1, Sigma: 0.5})).
		Init(v, rand.New(rand.NewSource(3)))

	var sum, sq float64
	data := v.AsFloat32()
	for _, x := range data {
		sum += float64(x)
	}
	mean := sum / float64(len(data))
	for _, x := range data {
		sq += (float64(x) - mean) * (float64(x) - mean)
	}
	assert.InDelta(t, 1.0, mean, 0.02)
	assert.InDelta(t, 0.5, math.Sqrt(sq/float64(len(data))), 0.02)
}

func TestXavier(t *testing.T) {
	fanIn, fanOut := initializer.Fans(tensor.Shape{4, 50, 1, 1})
	assert.Equal(t, 50, fanIn)
	assert.Equal(t, 4, fanOut)

	v := newValue(tensor.Shape{4, 50, 1, 1})
	must.M1(initializer.New(initializer.Config{Kind: initializer.Xavier})).
		Init(v, rand.New(rand.NewSource(4)))
	bound := math.Sqrt(6.0 / 54.0)
	for _, x := range v.AsFloat32() {
		assert.LessOrEqual(t, math.Abs(float64(x)), bound)
	}
}

func TestSameSeedSameValues(t *testing.T) {
	u := must.M1(initializer.New(initializer.Config{Kind: initializer.Uniform, Range: 1}))
	a, b := newValue(tensor.Shape{3, 3, 1, 1}), newValue(tensor.Shape{3, 3, 1, 1})
	u.Init(a, rand.New(rand.NewSource(9)))
	u.Init(b, rand.New(rand.NewSource(9)))
	assert.Equal(t, a.AsFloat32(), b.AsFloat32())
}

func TestNew_RejectsNegative(t *testing.T) {
	_, err := initializer.New(initializer.Config{Kind: initializer.Uniform, Range: -1})
	assert.Error(t, err)
	_, err = initializer.New(initializer.Config{Kind: "bogus"})
	assert.Error(t, err)
}
