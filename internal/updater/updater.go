// Package updater implements the per-parameter update rules applied after
// each training step.
//
// This package provides:
//   - Updater interface: consumes a parameter's accumulated gradient
//   - SGD: gradient descent with optional momentum
//   - AdaGrad: per-element adaptive learning rates
//   - Adam: Adaptive Moment Estimation
//
// All updaters support L2 weight decay and reset the gradient to zero at the
// end of Update. That reset is the only one a parameter gradient receives per
// step.
//
// An updater is selected by the "updater_type" key of a nested setting map:
//
//	{"updater_type": "adam", "lr": 0.001}
package updater

import (
	"github.com/pkg/errors"

	"github.com/textnet-ml/textnet/internal/setting"
	"github.com/textnet-ml/textnet/internal/tensor"
)

// Kind names an update rule.
type Kind string

// Supported update rules.
const (
	SGD     Kind = "sgd"
	AdaGrad Kind = "adagrad"
	Adam    Kind = "adam"
)

// Updater mutates a parameter value from its accumulated gradient.
type Updater interface {
	// Update applies one step to value and then zeros grad.
	Update(value, grad *tensor.RawTensor)

	// LR returns the learning rate.
	LR() float32

	// StateDict returns the updater's running state, keyed by buffer name.
	// Buffers that have not been allocated yet are absent.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores state produced by StateDict.
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// Config is the tagged variant describing an updater. Only the fields of the
// selected Kind are meaningful.
type Config struct {
	Kind Kind

	LR float32 // Learning rate
	L2 float32 // Weight decay

	Momentum float32 // sgd
	Eps      float32 // adagrad, adam
	Beta1    float32 // adam
	Beta2    float32 // adam
}

var common = setting.Schema{
	setting.Required("lr", setting.Float),
	setting.Optional("l2", setting.FloatValue(0)),
}

var schemas = map[Kind]setting.Schema{
	SGD:     append(common[:len(common):len(common)], setting.Optional("momentum", setting.FloatValue(0))),
	AdaGrad: append(common[:len(common):len(common)], setting.Optional("eps", setting.FloatValue(1e-8))),
	Adam: append(common[:len(common):len(common)],
		setting.Optional("beta1", setting.FloatValue(0.9)),
		setting.Optional("beta2", setting.FloatValue(0.999)),
		setting.Optional("eps", setting.FloatValue(1e-8)),
	),
}

// FromSettings decodes a nested setting map into a Config.
func FromSettings(m setting.Map) (Config, error) {
	v, ok := m.Get("updater_type")
	if !ok {
		return Config{}, errors.Wrap(setting.ErrMissingRequired, `"updater_type"`)
	}
	if v.Kind() != setting.String {
		return Config{}, errors.Wrapf(setting.ErrWrongKind, `"updater_type" is %s, want string`, v.Kind())
	}
	kind := Kind(v.Str())
	schema, ok := schemas[kind]
	if !ok {
		return Config{}, errors.Errorf("unknown updater_type %q", kind)
	}

	rest := make(setting.Map, len(m))
	for k, val := range m {
		if k != "updater_type" {
			rest[k] = val
		}
	}
	r, err := schema.Resolve(rest)
	if err != nil {
		return Config{}, errors.Wrapf(err, "updater_type %q", kind)
	}

	cfg := Config{
		Kind: kind,
		LR:   float32(r.Float("lr")),
		L2:   float32(r.Float("l2")),
	}
	switch kind {
	case SGD:
		cfg.Momentum = float32(r.Float("momentum"))
	case AdaGrad:
		cfg.Eps = float32(r.Float("eps"))
	case Adam:
		cfg.Beta1 = float32(r.Float("beta1"))
		cfg.Beta2 = float32(r.Float("beta2"))
		cfg.Eps = float32(r.Float("eps"))
	}
	return cfg, nil
}

// New builds the updater described by cfg. Backend kernels (axpy, fill) run
// on backend.
func New(cfg Config, backend tensor.Backend) (Updater, error) {
	if cfg.LR <= 0 {
		return nil, errors.Errorf("learning rate must be > 0, got %g", cfg.LR)
	}
	if cfg.L2 < 0 {
		return nil, errors.Errorf("l2 must be >= 0, got %g", cfg.L2)
	}
	switch cfg.Kind {
	case SGD:
		if cfg.Momentum < 0 || cfg.Momentum >= 1 {
			return nil, errors.Errorf("momentum must be in [0, 1), got %g", cfg.Momentum)
		}
		return &sgd{cfg: cfg, backend: backend}, nil
	case AdaGrad:
		return &adaGrad{cfg: cfg, backend: backend}, nil
	case Adam:
		if cfg.Beta1 < 0 || cfg.Beta1 >= 1 || cfg.Beta2 < 0 || cfg.Beta2 >= 1 {
			return nil, errors.Errorf("adam betas must be in [0, 1), got %g, %g", cfg.Beta1, cfg.Beta2)
		}
		return &adam{cfg: cfg, backend: backend}, nil
	default:
		return nil, errors.Errorf("unknown updater_type %q", cfg.Kind)
	}
}

// applyDecay folds L2 weight decay into the gradient: grad += l2 * value.
func applyDecay(backend tensor.Backend, l2 float32, value, grad *tensor.RawTensor) {
	if l2 != 0 {
		backend.Axpy(l2, value, grad)
	}
}

// buffer returns *buf, allocating a zeroed tensor shaped like value first.
func buffer(buf **tensor.RawTensor, value *tensor.RawTensor) *tensor.RawTensor {
	if *buf == nil || !(*buf).Shape().Equal(value.Shape()) {
		r, err := tensor.NewRaw(value.Shape(), tensor.Float32, value.Device())
		if err != nil {
			panic("updater: " + err.Error())
		}
		*buf = r
	}
	return *buf
}

// loadBuffer copies state[key] into a fresh buffer, if present.
func loadBuffer(state map[string]*tensor.RawTensor, key string, dst **tensor.RawTensor) error {
	src, ok := state[key]
	if !ok {
		return nil
	}
	if src.DType() != tensor.Float32 {
		return errors.Errorf("state %q has dtype %s, want float32", key, src.DType())
	}
	*dst = src.Clone()
	return nil
}
