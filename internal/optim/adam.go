package optim

import (
	"fmt"
	"math"

	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/tensor"
)

// Adam implements Adaptive Moment Estimation (Kingma & Ba, 2014):
//
//	m = beta1 * m + (1 - beta1) * g
//	v = beta2 * v + (1 - beta2) * g²
//	param -= lr * m̂ / (sqrt(v̂) + eps)
//
// where m̂ and v̂ are the bias-corrected moments. Adam tends to cope better
// than plain SGD with the coarse, sparse gradients of 1-bit weights.
type Adam[B tensor.Backend] struct {
	params []*nn.Parameter[B]
	lr     float32
	beta1  float32
	beta2  float32
	eps    float32
	t      int
	m      map[*nn.Parameter[B]][]float32
	v      map[*nn.Parameter[B]][]float32
}

// AdamConfig holds configuration for Adam. Zero fields take the defaults
// LR 0.001, Betas {0.9, 0.999}, Eps 1e-8.
type AdamConfig struct {
	LR    float32
	Betas [2]float32
	Eps   float32
}

// NewAdam creates a new Adam optimizer.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], config AdamConfig) *Adam[B] {
	if config.LR == 0 {
		config.LR = 0.001
	}
	if config.Betas[0] == 0 {
		config.Betas[0] = 0.9
	}
	if config.Betas[1] == 0 {
		config.Betas[1] = 0.999
	}
	if config.Eps == 0 {
		config.Eps = 1e-8
	}
	return &Adam[B]{
		params: params,
		lr:     config.LR,
		beta1:  config.Betas[0],
		beta2:  config.Betas[1],
		eps:    config.Eps,
		m:      make(map[*nn.Parameter[B]][]float32),
		v:      make(map[*nn.Parameter[B]][]float32),
	}
}

// Step performs a single optimization step.
func (a *Adam[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	a.t++
	bc1 := float32(1 - math.Pow(float64(a.beta1), float64(a.t)))
	bc2 := float32(1 - math.Pow(float64(a.beta2), float64(a.t)))

	for _, param := range a.params {
		g := gradientFor(param, grads)
		if g == nil {
			continue
		}
		data := param.Tensor().Data()
		m, ok := a.m[param]
		if !ok {
			m = make([]float32, len(data))
			a.m[param] = m
		}
		v, ok := a.v[param]
		if !ok {
			v = make([]float32, len(data))
			a.v[param] = v
		}

		for i := range data {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			data[i] -= a.lr * mHat / (float32(math.Sqrt(float64(vHat))) + a.eps)
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (a *Adam[B]) ZeroGrad() {
	for _, param := range a.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (a *Adam[B]) GetLR() float32 {
	return a.lr
}

// SetLR updates the learning rate.
func (a *Adam[B]) SetLR(lr float32) {
	a.lr = lr
}

// GetTimestep returns the number of steps taken.
func (a *Adam[B]) GetTimestep() int {
	return a.t
}

// StateDict exports the moments keyed "m.<param name>" and "v.<param name>",
// plus the step count under "step".
func (a *Adam[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	step := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float64, tensor.CPU)
	step.AsFloat64()[0] = float64(a.t)
	stateDict["step"] = step
	for _, param := range a.params {
		for prefix, moments := range map[string]map[*nn.Parameter[B]][]float32{"m.": a.m, "v.": a.v} {
			buf, ok := moments[param]
			if !ok {
				continue
			}
			raw := tensor.MustNewRaw(param.Shape(), tensor.Float32, param.Tensor().Device())
			copy(raw.AsFloat32(), buf)
			stateDict[prefix+param.Name()] = raw
		}
	}
	return stateDict
}

// LoadStateDict restores moments and the step count.
func (a *Adam[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	a.t = 0
	if step, ok := stateDict["step"]; ok {
		a.t = int(step.Float64s()[0])
	}
	a.m = make(map[*nn.Parameter[B]][]float32)
	a.v = make(map[*nn.Parameter[B]][]float32)
	for _, param := range a.params {
		for prefix, moments := range map[string]map[*nn.Parameter[B]][]float32{"m.": a.m, "v.": a.v} {
			raw, ok := stateDict[prefix+param.Name()]
			if !ok {
				continue
			}
			if !raw.Shape().Equal(param.Shape()) {
				return fmt.Errorf("moment shape mismatch for %s: expected %v, got %v",
					param.Name(), param.Shape(), raw.Shape())
			}
			buf := make([]float32, raw.NumElements())
			for i, x := range raw.Float64s() {
				buf[i] = float32(x)
			}
			moments[param] = buf
		}
	}
	return nil
}
