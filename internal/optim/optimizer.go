// Package optim implements optimizers for the full-precision parameters of
// quantized layers.
//
// Updates are applied directly to parameter storage rather than through
// backend operations, so a recording gradient tape never sees them.
//
//	layer.Build(inFeatures) // lazily built layers need parameters first
//	opt := optim.NewSGD(layer.Parameters(), optim.SGDConfig{LR: 0.05, Momentum: 0.9})
//
//	backend.Tape().StartRecording()
//	y, _ := layer.Forward(x)
//	loss, _ := mse.Forward(y, target)
//	grads, _ := autodiff.Backward(loss, backend)
//	opt.Step(grads)
//	backend.Tape().Clear()
package optim

import (
	"errors"
	"fmt"

	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/tensor"
)

// ErrUnknownOptimizer is returned by New for unsupported names.
var ErrUnknownOptimizer = errors.New("optim: unknown optimizer")

// Optimizer updates parameters from a gradient map produced by
// autodiff.Backward.
type Optimizer interface {
	// Step applies one update. Parameters without a gradient are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradients stored on the parameters.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32

	// StateDict exports the optimizer state for checkpoints.
	StateDict() map[string]*tensor.RawTensor

	// LoadStateDict restores state exported by StateDict.
	LoadStateDict(map[string]*tensor.RawTensor) error
}

// Config is the optimizer-independent part of the configuration.
type Config struct {
	Name     string  // "sgd" (default) or "adam"
	LR       float32 // learning rate
	Momentum float32 // SGD only
}

// New creates the optimizer named by cfg.Name.
func New[B tensor.Backend](params []*nn.Parameter[B], cfg Config) (Optimizer, error) {
	switch cfg.Name {
	case "", "sgd":
		return NewSGD(params, SGDConfig{LR: cfg.LR, Momentum: cfg.Momentum}), nil
	case "adam":
		return NewAdam(params, AdamConfig{LR: cfg.LR}), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOptimizer, cfg.Name)
	}
}

// gradientFor returns the float32 gradient of param, or nil when the
// parameter did not take part in the recorded computation. The gradient is
// also stored on the parameter.
func gradientFor[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) []float32 {
	if param == nil {
		return nil
	}
	raw, ok := grads[param.Tensor().Raw()]
	if !ok {
		return nil
	}
	param.SetGrad(tensor.New[float32](raw, param.Tensor().Backend()))
	if raw.DType() == tensor.Float32 {
		return raw.AsFloat32()
	}
	g := make([]float32, raw.NumElements())
	for i, v := range raw.Float64s() {
		g[i] = float32(v)
	}
	return g
}
