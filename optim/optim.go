// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides optimizers for the full-precision parameters of
// quantized layers.
//
//	opt, err := optim.New(layer.Parameters(), optim.Config{Name: "adam", LR: 0.01})
//	opt.Step(grads)
package optim

import (
	"github.com/born-ml/dorefa/internal/optim"
	"github.com/born-ml/dorefa/nn"
	"github.com/born-ml/dorefa/tensor"
)

// Optimizer updates parameters from a gradient map.
type Optimizer = optim.Optimizer

// Config selects and configures an optimizer by name.
type Config = optim.Config

// SGD is stochastic gradient descent with optional momentum.
type SGD[B tensor.Backend] = optim.SGD[B]

// SGDConfig configures SGD.
type SGDConfig = optim.SGDConfig

// Adam is the Adam optimizer.
type Adam[B tensor.Backend] = optim.Adam[B]

// AdamConfig configures Adam.
type AdamConfig = optim.AdamConfig

// ErrUnknownOptimizer is returned by New for unsupported names.
var ErrUnknownOptimizer = optim.ErrUnknownOptimizer

// New creates the optimizer named by cfg.Name ("sgd" or "adam").
func New[B tensor.Backend](params []*nn.Parameter[B], cfg Config) (Optimizer, error) {
	return optim.New(params, cfg)
}

// NewSGD creates an SGD optimizer.
func NewSGD[B tensor.Backend](params []*nn.Parameter[B], cfg SGDConfig) *SGD[B] {
	return optim.NewSGD(params, cfg)
}

// NewAdam creates an Adam optimizer.
func NewAdam[B tensor.Backend](params []*nn.Parameter[B], cfg AdamConfig) *Adam[B] {
	return optim.NewAdam(params, cfg)
}
