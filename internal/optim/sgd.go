package optim

import (
	"fmt"

	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/tensor"
)

// SGD implements stochastic gradient descent with optional momentum.
//
//	velocity = momentum * velocity + gradient
//	param    = param - lr * velocity
//
// With zero momentum this reduces to param -= lr * gradient.
type SGD[B tensor.Backend] struct {
	params     []*nn.Parameter[B]
	lr         float32
	momentum   float32
	velocities map[*nn.Parameter[B]][]float32
}

// SGDConfig holds configuration for SGD.
type SGDConfig struct {
	LR       float32 // default 0.01
	Momentum float32 // default 0, range [0, 1)
}

// NewSGD creates a new SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], config SGDConfig) *SGD[B] {
	if config.LR == 0 {
		config.LR = 0.01
	}
	return &SGD[B]{
		params:     params,
		lr:         config.LR,
		momentum:   config.Momentum,
		velocities: make(map[*nn.Parameter[B]][]float32),
	}
}

// Step performs a single optimization step.
func (s *SGD[B]) Step(grads map[*tensor.RawTensor]*tensor.RawTensor) {
	for _, param := range s.params {
		g := gradientFor(param, grads)
		if g == nil {
			continue
		}
		data := param.Tensor().Data()

		if s.momentum == 0 {
			for i := range data {
				data[i] -= s.lr * g[i]
			}
			continue
		}

		v, ok := s.velocities[param]
		if !ok {
			v = make([]float32, len(data))
			s.velocities[param] = v
		}
		for i := range data {
			v[i] = s.momentum*v[i] + g[i]
			data[i] -= s.lr * v[i]
		}
	}
}

// ZeroGrad clears gradients for all parameters.
func (s *SGD[B]) ZeroGrad() {
	for _, param := range s.params {
		param.ZeroGrad()
	}
}

// GetLR returns the current learning rate.
func (s *SGD[B]) GetLR() float32 {
	return s.lr
}

// SetLR updates the learning rate.
func (s *SGD[B]) SetLR(lr float32) {
	s.lr = lr
}

// StateDict exports the momentum buffers keyed "velocity.<param name>".
// Without momentum it is empty.
func (s *SGD[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, param := range s.params {
		v, ok := s.velocities[param]
		if !ok {
			continue
		}
		raw := tensor.MustNewRaw(param.Shape(), tensor.Float32, param.Tensor().Device())
		copy(raw.AsFloat32(), v)
		stateDict["velocity."+param.Name()] = raw
	}
	return stateDict
}

// LoadStateDict restores momentum buffers. Missing entries start from zero
// on the next step.
func (s *SGD[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	s.velocities = make(map[*nn.Parameter[B]][]float32)
	for _, param := range s.params {
		raw, ok := stateDict["velocity."+param.Name()]
		if !ok {
			continue
		}
		if !raw.Shape().Equal(param.Shape()) {
			return fmt.Errorf("velocity shape mismatch for %s: expected %v, got %v",
				param.Name(), param.Shape(), raw.Shape())
		}
		v := make([]float32, raw.NumElements())
		for i, x := range raw.Float64s() {
			v[i] = float32(x)
		}
		s.velocities[param] = v
	}
	return nil
}
