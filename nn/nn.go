// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public layer API.
//
// The central type is DorefaDense, a fully connected layer computing
//
//	act(quantize_active(cabs(x), bitA) @ quantize_weight(W, bitW) + b)
//
// W and b are created lazily on the first Forward, once the input feature
// count is known. The bias is never quantized.
//
//	layer, err := nn.NewDorefaDense(nn.DorefaDenseConfig{
//	    BitW: 1, BitA: 2, Units: 64, Activation: nn.ActReLU,
//	}, backend)
//	y, err := layer.Forward(x) // x: [batch, features] -> y: [batch, 64]
package nn

import (
	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/tensor"
)

// Module is the base interface for network components.
type Module[B tensor.Backend] = nn.Module[B]

// StateModule is a module whose parameters can be saved and restored by name.
type StateModule = nn.StateModule

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// DorefaDense is the DoReFa quantized dense layer.
type DorefaDense[B tensor.Backend] = nn.DorefaDense[B]

// DorefaDenseConfig configures DorefaDense. Zero fields take the defaults.
type DorefaDenseConfig = nn.DorefaDenseConfig

// Linear is a full-precision dense layer.
type Linear[B tensor.Backend] = nn.Linear[B]

// Sequential chains modules.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// ActivationLayer wraps an Activation as a Module.
type ActivationLayer[B tensor.Backend] = nn.ActivationLayer[B]

// MSELoss is the mean squared error.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// Activation selects an element-wise function.
type Activation = nn.Activation

// Supported activations.
const (
	ActNone    = nn.ActNone
	ActReLU    = nn.ActReLU
	ActSigmoid = nn.ActSigmoid
	ActTanh    = nn.ActTanh
	ActSign    = nn.ActSign
)

// Layer defaults.
const (
	DefaultBitW  = nn.DefaultBitW
	DefaultBitA  = nn.DefaultBitA
	DefaultUnits = nn.DefaultUnits
	DefaultName  = nn.DefaultName
)

// Initializers.
type (
	Initializer          = nn.Initializer
	ShapelessInitializer = nn.ShapelessInitializer
	TruncatedNormal      = nn.TruncatedNormal
	RandomUniform        = nn.RandomUniform
	XavierUniform        = nn.XavierUniform
	Constant             = nn.Constant
	Values               = nn.Values
)

// Errors.
var (
	ErrInputRank          = nn.ErrInputRank
	ErrInputFeatures      = nn.ErrInputFeatures
	ErrNotImplemented     = nn.ErrNotImplemented
	ErrInvalidConfig      = nn.ErrInvalidConfig
	ErrInitShape          = nn.ErrInitShape
	ErrUnsupportedBackend = nn.ErrUnsupportedBackend
	ErrStateDict          = nn.ErrStateDict
	ErrShapeMismatch      = nn.ErrShapeMismatch
)

// NewDorefaDense creates an unbuilt DoReFa dense layer.
func NewDorefaDense[B tensor.Backend](cfg DorefaDenseConfig, backend B) (*DorefaDense[B], error) {
	return nn.NewDorefaDense(cfg, backend)
}

// DefaultDorefaDenseConfig returns the default layer configuration.
func DefaultDorefaDenseConfig() DorefaDenseConfig {
	return nn.DefaultDorefaDenseConfig()
}

// NewLinear creates a full-precision dense layer with a bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// NewSequential chains modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// NewActivation creates a module applying act.
func NewActivation[B tensor.Backend](act Activation) *ActivationLayer[B] {
	return nn.NewActivation[B](act)
}

// NewReLU creates a ReLU module.
func NewReLU[B tensor.Backend]() *ActivationLayer[B] { return nn.NewReLU[B]() }

// NewMSELoss creates an MSE loss.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return nn.NewMSELoss(backend)
}

// NewParameter creates a named parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// ParseActivation converts a name such as "relu" into an Activation.
func ParseActivation(name string) (Activation, error) {
	return nn.ParseActivation(name)
}

// Zeros returns a zero Constant initializer.
func Zeros() Constant { return nn.Zeros() }

// Ones returns a one Constant initializer.
func Ones() Constant { return nn.Ones() }
