package layer

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/textnet-ml/textnet/internal/parallel"
	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// TypeFC is the registry name of FC.
const TypeFC = "fc"

var fcSchema = setting.Schema{
	setting.Required("num_hidden", setting.Int),
	setting.Optional("no_bias", setting.BoolValue(false)),
	setting.Required("w_filler", setting.Nested),
	setting.Required("w_updater", setting.Nested),
	setting.Optional("b_filler", setting.MapValue(setting.Map{"init_type": setting.StringValue("zero")})),
	setting.Optional("b_updater", setting.MapValue(nil)),
}

// FC is a fully connected layer. Each bottom row is flattened:
//
//	top[b,h,0,0] = Σ_k weight[h,k] * bottom[b,k] + bias[h]
//
// The weight is [num_hidden, in, 1, 1] and the bias [num_hidden, 1, 1, 1].
// Without b_updater the bias uses the weight's update rule.
type FC[B tensor.Backend] struct {
	base[B]
	numHidden int
	in        int
	weight    *Parameter[B]
	bias      *Parameter[B] // nil with no_bias
}

// NewFC creates an unconfigured fully connected layer.
func NewFC[B tensor.Backend](backend B) *FC[B] {
	return &FC[B]{base: newBase(backend, TypeFC, 1, 1, 2)}
}

// Setup reads the settings and creates the weight and bias.
func (l *FC[B]) Setup(settings setting.Map, bottom, top []*Node[B], rng *rand.Rand) error {
	if err := l.checkNodes(bottom, top); err != nil {
		return err
	}
	s, err := l.resolve(fcSchema, settings)
	if err != nil {
		return err
	}
	l.numHidden = s.Int("num_hidden")
	if l.numHidden < 1 {
		return errors.Errorf("%s: num_hidden must be >= 1, got %d", l.typ, l.numHidden)
	}
	shape := bottom[0].Shape()
	l.in = shape.NumElements() / shape[0]

	l.weight, err = newParameter(l.backend, l.typ+".weight", tensor.Shape{l.numHidden, l.in, 1, 1},
		s.Sub("w_filler"), s.Sub("w_updater"), rng)
	if err != nil {
		return err
	}
	l.params = []*Parameter[B]{l.weight}

	if s.Bool("no_bias") {
		return nil
	}
	bUpdater := s.Sub("b_updater")
	if len(bUpdater) == 0 {
		bUpdater = s.Sub("w_updater")
	}
	l.bias, err = newParameter(l.backend, l.typ+".bias", tensor.Shape{l.numHidden, 1, 1, 1},
		s.Sub("b_filler"), bUpdater, rng)
	if err != nil {
		return err
	}
	l.params = append(l.params, l.bias)
	return nil
}

// Reshape sizes the top as [batch, num_hidden, 1, 1].
func (l *FC[B]) Reshape(bottom, top []*Node[B]) error {
	s := bottom[0].Shape()
	if in := s.NumElements() / s[0]; in != l.in {
		return errors.Wrapf(ErrShapeMismatch, "%s: %d inputs per row, weight expects %d", l.typ, in, l.in)
	}
	if err := top[0].Resize(tensor.Shape{s[0], l.numHidden, 1, 1}); err != nil {
		return err
	}
	l.trace(top)
	return nil
}

// Forward computes one output row per batch row.
func (l *FC[B]) Forward(bottom, top []*Node[B]) {
	x := bottom[0].Data().Data()
	y := top[0].Data().Data()
	w := l.weight.Value().Data()
	var bias []float32
	if l.bias != nil {
		bias = l.bias.Value().Data()
	}

	parallel.ForGrid(bottom[0].Shape()[0], l.numHidden, func(b, h int) {
		row, wh := x[b*l.in:(b+1)*l.in], w[h*l.in:(h+1)*l.in]
		var s float32
		for k := range row {
			s += wh[k] * row[k]
		}
		if bias != nil {
			s += bias[h]
		}
		y[b*l.numHidden+h] = s
	}, parallel.DefaultConfig())
}

// Backprop accumulates the input gradient (flag permitting), partitioned by
// batch row, and the parameter gradients, partitioned by hidden unit.
func (l *FC[B]) Backprop(bottom, top []*Node[B]) {
	batch := bottom[0].Shape()[0]
	x := bottom[0].Data().Data()
	g := top[0].Diff().Data()
	w := l.weight.Value().Data()
	cfg := parallel.DefaultConfig()

	if l.propagates(0) {
		dx := bottom[0].Diff().Data()
		parallel.For(batch, func(b int) {
			drow := dx[b*l.in : (b+1)*l.in]
			for h := 0; h < l.numHidden; h++ {
				gv := g[b*l.numHidden+h]
				wh := w[h*l.in : (h+1)*l.in]
				for k := range drow {
					drow[k] += gv * wh[k]
				}
			}
		}, cfg)
	}

	dw := l.weight.Grad().Data()
	var db []float32
	if l.bias != nil {
		db = l.bias.Grad().Data()
	}
	parallel.For(l.numHidden, func(h int) {
		dwh := dw[h*l.in : (h+1)*l.in]
		for b := 0; b < batch; b++ {
			gv := g[b*l.numHidden+h]
			row := x[b*l.in : (b+1)*l.in]
			for k := range dwh {
				dwh[k] += gv * row[k]
			}
			if db != nil {
				db[h] += gv
			}
		}
	}, cfg)
}
