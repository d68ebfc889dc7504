package updater

import (
	"github.com/goki/mat32"

	"github.com/textnet-ml/textnet/internal/tensor"
)

// adaGrad scales each element's step by its gradient history:
//
//	sum_sq = sum_sq + g²
//	value  = value - lr * g / (sqrt(sum_sq) + eps)
type adaGrad struct {
	cfg     Config
	backend tensor.Backend
	sumSq   *tensor.RawTensor
}

func (a *adaGrad) Update(value, grad *tensor.RawTensor) {
	applyDecay(a.backend, a.cfg.L2, value, grad)

	s := buffer(&a.sumSq, value)
	sd, gd, wd := s.AsFloat32(), grad.AsFloat32(), value.AsFloat32()
	for i := range wd {
		g := gd[i]
		sd[i] += g * g
		wd[i] -= a.cfg.LR * g / (mat32.Sqrt(sd[i]) + a.cfg.Eps)
	}

	a.backend.Fill(grad, 0)
}

func (a *adaGrad) LR() float32 { return a.cfg.LR }

func (a *adaGrad) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	if a.sumSq != nil {
		state["sum_sq"] = a.sumSq
	}
	return state
}

func (a *adaGrad) LoadStateDict(state map[string]*tensor.RawTensor) error {
	return loadBuffer(state, "sum_sq", &a.sumSq)
}
