package updater

import (
	"github.com/goki/mat32"
	"github.com/pkg/errors"

	"github.com/textnet-ml/textnet/internal/tensor"
)

// adam implements Adaptive Moment Estimation.
//
// Update rule:
//
//	m_t = beta1 * m_{t-1} + (1-beta1) * gradient       // First moment
//	v_t = beta2 * v_{t-1} + (1-beta2) * gradient²      // Second moment
//	m_hat = m_t / (1 - beta1^t)                        // Bias correction
//	v_hat = v_t / (1 - beta2^t)                        // Bias correction
//	value = value - lr * m_hat / (sqrt(v_hat) + eps)
//
// Reference: "Adam: A Method for Stochastic Optimization" (Kingma & Ba, 2014)
type adam struct {
	cfg     Config
	backend tensor.Backend
	t       int // Timestep for bias correction
	m       *tensor.RawTensor
	v       *tensor.RawTensor
}

func (a *adam) Update(value, grad *tensor.RawTensor) {
	applyDecay(a.backend, a.cfg.L2, value, grad)

	a.t++
	b1, b2 := a.cfg.Beta1, a.cfg.Beta2
	c1 := 1 - mat32.Pow(b1, float32(a.t))
	c2 := 1 - mat32.Pow(b2, float32(a.t))

	md, vd := buffer(&a.m, value).AsFloat32(), buffer(&a.v, value).AsFloat32()
	gd, wd := grad.AsFloat32(), value.AsFloat32()
	for i := range wd {
		g := gd[i]
		md[i] = b1*md[i] + (1-b1)*g
		vd[i] = b2*vd[i] + (1-b2)*g*g
		mHat := md[i] / c1
		vHat := vd[i] / c2
		wd[i] -= a.cfg.LR * mHat / (mat32.Sqrt(vHat) + a.cfg.Eps)
	}

	a.backend.Fill(grad, 0)
}

func (a *adam) LR() float32 { return a.cfg.LR }

// StateDict exports both moments and the timestep (as a one-element tensor).
func (a *adam) StateDict() map[string]*tensor.RawTensor {
	state := make(map[string]*tensor.RawTensor)
	if a.m == nil {
		return state
	}
	state["m"] = a.m
	state["v"] = a.v
	step, err := tensor.NewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	if err != nil {
		panic("updater: " + err.Error())
	}
	step.AsFloat32()[0] = float32(a.t)
	state["step"] = step
	return state
}

func (a *adam) LoadStateDict(state map[string]*tensor.RawTensor) error {
	if err := loadBuffer(state, "m", &a.m); err != nil {
		return err
	}
	if err := loadBuffer(state, "v", &a.v); err != nil {
		return err
	}
	if step, ok := state["step"]; ok {
		if step.NumElements() != 1 || step.DType() != tensor.Float32 {
			return errors.Errorf("adam step state must be one float32, got %v %s", step.Shape(), step.DType())
		}
		a.t = int(step.AsFloat32()[0])
	}
	return nil
}
