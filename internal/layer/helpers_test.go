package layer_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/textnet-ml/textnet/internal/backend/cpu"
	"github.com/textnet-ml/textnet/internal/layer"
	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

type B = *cpu.CPUBackend

// node returns a resized node holding values (zeros when values is empty).
func node(t *testing.T, backend B, name string, shape tensor.Shape, values ...float32) *layer.Node[B] {
	t.Helper()
	n := layer.NewNode(name, backend)
	require.NoError(t, n.Resize(shape))
	if len(values) > 0 {
		require.Len(t, values, shape.NumElements())
		copy(n.Data().Data(), values)
	}
	return n
}

func randomNode(t *testing.T, backend B, rng *rand.Rand, name string, shape tensor.Shape) *layer.Node[B] {
	t.Helper()
	n := node(t, backend, name, shape)
	for i := range n.Data().Data() {
		n.Data().Data()[i] = float32(rng.Float64()*2 - 1)
	}
	return n
}

func nodes(ns ...*layer.Node[B]) []*layer.Node[B] { return ns }

func gaussianFiller(sigma float64) setting.Value {
	return setting.MapValue(setting.Map{
		"init_type": setting.StringValue("gaussian"),
		"sigma":     setting.FloatValue(sigma),
	})
}

func constantFiller(v float64) setting.Value {
	return setting.MapValue(setting.Map{
		"init_type": setting.StringValue("constant"),
		"value":     setting.FloatValue(v),
	})
}

func sgdUpdater(lr float64) setting.Value {
	return setting.MapValue(setting.Map{
		"updater_type": setting.StringValue("sgd"),
		"lr":           setting.FloatValue(lr),
	})
}

// setup runs Setup followed by Reshape.
func setup(t *testing.T, l layer.Layer[B], settings setting.Map, bottom, top []*layer.Node[B]) {
	t.Helper()
	require.NoError(t, l.Setup(settings, bottom, top, rand.New(rand.NewSource(7))))
	require.NoError(t, l.Reshape(bottom, top))
}

// objective is Σ top·g for a fixed random g, so d(objective)/d(top) = g.
func objective(l layer.Layer[B], bottom, top []*layer.Node[B], g []float32) float64 {
	l.Forward(bottom, top)
	var s float64
	for i, v := range top[0].Data().Data() {
		s += float64(v) * float64(g[i])
	}
	return s
}

// checkGradients compares Backprop against central differences of the
// objective for the data of the listed bottoms and for every parameter.
func checkGradients(t *testing.T, l layer.Layer[B], bottom, top []*layer.Node[B], checkBottoms ...int) {
	t.Helper()
	checkGradientsTol(t, 1e-2, l, bottom, top, checkBottoms...)
}

// checkGradientsTol is checkGradients with relative tolerance tol.
func checkGradientsTol(t *testing.T, tol float64, l layer.Layer[B], bottom, top []*layer.Node[B], checkBottoms ...int) {
	t.Helper()
	rng := rand.New(rand.NewSource(99))
	l.Forward(bottom, top)
	g := make([]float32, top[0].Data().NumElements())
	for i := range g {
		g[i] = float32(rng.Float64()*2 - 1)
	}

	for _, n := range bottom {
		n.ZeroDiff()
	}
	for _, p := range l.Params() {
		p.ZeroGrad()
	}
	copy(top[0].Diff().Data(), g)
	l.Backprop(bottom, top)

	const eps = 1e-2
	compare := func(what string, values, analytic []float32) {
		for i := range values {
			orig := values[i]
			values[i] = orig + eps
			hi := values[i]
			plus := objective(l, bottom, top, g)
			values[i] = orig - eps
			lo := values[i]
			minus := objective(l, bottom, top, g)
			values[i] = orig

			// Divide by the float32 step actually taken.
			numeric := (plus - minus) / (float64(hi) - float64(lo))
			require.InDeltaf(t, numeric, float64(analytic[i]), tol*math.Max(1, math.Abs(numeric)), "%s[%d]", what, i)
		}
	}
	for _, b := range checkBottoms {
		compare(bottom[b].Name(), bottom[b].Data().Data(), bottom[b].Diff().Data())
	}
	for _, p := range l.Params() {
		compare(p.Name(), p.Value().Data(), p.Grad().Data())
	}
}

func snapshot(values []float32) []float32 { return append([]float32(nil), values...) }
