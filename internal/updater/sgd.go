package updater

import (
	"github.com/textnet-ml/textnet/internal/tensor"
)

// sgd implements gradient descent with optional momentum.
//
// Update rule without momentum:
//
//	value = value - lr * (gradient + l2 * value)
//
// Update rule with momentum:
//
//	velocity = momentum * velocity + (gradient + l2 * value)
//	value = value - lr * velocity
type sgd struct {
	cfg      Config
	backend  tensor.Backend
	velocity *tensor.RawTensor
}

func (s *sgd) Update(value, grad *tensor.RawTensor) {
	applyDecay(s.backend, s.cfg.L2, value, grad)

	if s.cfg.Momentum == 0 {
		s.backend.Axpy(-s.cfg.LR, grad, value)
	} else {
		v := buffer(&s.velocity, value)
		vd, gd := v.AsFloat32(), grad.AsFloat32()
		for i := range vd {
			vd[i] = s.cfg.Momentum*vd[i] + gd[i]
		}
		s.backend.Axpy(-s.cfg.LR, v, value)
	}

	s.backend.Fill(grad, 0)
}

func (s *sgd) LR() float32 { return s.cfg.LR }

// StateDict exports the velocity buffer when momentum is enabled.
func (s *sgd) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	if s.velocity != nil {
		state["velocity"] = s.velocity
	}
	return state
}

func (s *sgd) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return loadBuffer(state, "velocity", &s.velocity)
}
