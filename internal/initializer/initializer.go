// Package initializer fills freshly allocated parameter values.
//
// An initializer is selected by the "init_type" key of a nested setting map:
//
//	{"init_type": "uniform", "range": 0.1}
//
// Every initializer draws randomness only from the *rand.Rand it is given, so
// a net built twice with the same seed starts from identical weights.
package initializer

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// Kind names an initialization strategy.
type Kind string

// Supported strategies.
const (
	Zero     Kind = "zero"
	Constant Kind = "constant"
	Uniform  Kind = "uniform"
	Gaussian Kind = "gaussian"
	Xavier   Kind = "xavier"
)

// Config is the tagged variant describing an initializer. Only the fields of
// the selected Kind are meaningful.
type Config struct {
	Kind Kind

	Value float64 // constant
	Range float64 // uniform: U(-Range, Range)
	Mu    float64 // gaussian
	Sigma float64 // gaussian
}

var schemas = map[Kind]setting.Schema{
	Zero:     {},
	Constant: {setting.Optional("value", setting.FloatValue(0))},
	Uniform:  {setting.Optional("range", setting.FloatValue(0.1))},
	Gaussian: {
		setting.Optional("mu", setting.FloatValue(0)),
		setting.Optional("sigma", setting.FloatValue(0.01)),
	},
	Xavier: {},
}

// FromSettings decodes a nested setting map into a Config.
func FromSettings(m setting.Map) (Config, error) {
	v, ok := m.Get("init_type")
	if !ok {
		return Config{}, errors.Wrap(setting.ErrMissingRequired, `"init_type"`)
	}
	if v.Kind() != setting.String {
		return Config{}, errors.Wrapf(setting.ErrWrongKind, `"init_type" is %s, want string`, v.Kind())
	}
	kind := Kind(v.Str())
	schema, ok := schemas[kind]
	if !ok {
		return Config{}, errors.Errorf("unknown init_type %q", kind)
	}

	rest := make(setting.Map, len(m))
	for k, val := range m {
		if k != "init_type" {
			rest[k] = val
		}
	}
	r, err := schema.Resolve(rest)
	if err != nil {
		return Config{}, errors.Wrapf(err, "init_type %q", kind)
	}

	cfg := Config{Kind: kind}
	switch kind {
	case Constant:
		cfg.Value = r.Float("value")
	case Uniform:
		cfg.Range = r.Float("range")
	case Gaussian:
		cfg.Mu = r.Float("mu")
		cfg.Sigma = r.Float("sigma")
	}
	return cfg, nil
}

// Initializer fills a parameter value in place.
type Initializer interface {
	Init(value *tensor.RawTensor, rng *rand.Rand)
}

// New builds the initializer described by cfg.
func New(cfg Config) (Initializer, error) {
	switch cfg.Kind {
	case Zero:
		return constantInit{0}, nil
	case Constant:
		return constantInit{float32(cfg.Value)}, nil
	case Uniform:
		if cfg.Range < 0 {
			return nil, errors.Errorf("uniform range must be >= 0, got %g", cfg.Range)
		}
		return uniformInit{cfg.Range}, nil
	case Gaussian:
		if cfg.Sigma < 0 {
			return nil, errors.Errorf("gaussian sigma must be >= 0, got %g", cfg.Sigma)
		}
		return gaussianInit{cfg.Mu, cfg.Sigma}, nil
	case Xavier:
		return xavierInit{}, nil
	default:
		return nil, errors.Errorf("unknown init_type %q", cfg.Kind)
	}
}

type constantInit struct{ value float32 }

func (c constantInit) Init(value *tensor.RawTensor, _ *rand.Rand) {
	data := value.AsFloat32()
	for i := range data {
		data[i] = c.value
	}
}

type uniformInit struct{ bound float64 }

func (u uniformInit) Init(value *tensor.RawTensor, rng *rand.Rand) {
	fillUniform(value.AsFloat32(), u.bound, rng)
}

type gaussianInit struct{ mu, sigma float64 }

func (g gaussianInit) Init(value *tensor.RawTensor, rng *rand.Rand) {
	data := value.AsFloat32()
	for i := range data {
		data[i] = float32(g.mu + g.sigma*rng.NormFloat64())
	}
}

// xavierInit draws from U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
// with fan_out = shape[0] and fan_in = the product of the remaining dims.
type xavierInit struct{}

func (xavierInit) Init(value *tensor.RawTensor, rng *rand.Rand) {
	fanIn, fanOut := Fans(value.Shape())
	fillUniform(value.AsFloat32(), math.Sqrt(6.0/float64(fanIn+fanOut)), rng)
}

// Fans returns the fan-in and fan-out of a weight of the given shape.
func Fans(shape tensor.Shape) (fanIn, fanOut int) {
	if len(shape) == 0 {
		return 1, 1
	}
	fanOut = shape[0]
	fanIn = 1
	for _, d := range shape[1:] {
		fanIn *= d
	}
	return fanIn, fanOut
}

func fillUniform(data []float32, bound float64, rng *rand.Rand) {
	for i := range data {
		//nolint:gosec // Using math/rand for weight initialization (not security-critical)
		data[i] = float32((rng.Float64()*2.0 - 1.0) * bound)
	}
}
