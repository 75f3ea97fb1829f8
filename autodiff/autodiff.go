// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// Backend wraps any backend and records operations on a gradient tape.
// Quantizers use straight-through estimators, so gradients reach the
// full-precision weights of quantized layers.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	loss, _ := mse.Forward(layer.Forward(x), target)
//	grads, err := autodiff.Backward(loss, backend)
package autodiff

import (
	"github.com/born-ml/dorefa/internal/autodiff"
	"github.com/born-ml/dorefa/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// GradientTape records operations for backpropagation.
type GradientTape = autodiff.GradientTape

// BackwardCapable is a backend that owns a gradient tape.
type BackwardCapable = autodiff.BackwardCapable

// Errors returned by Backward.
var (
	ErrEmptyTape     = autodiff.ErrEmptyTape
	ErrNotTapeOutput = autodiff.ErrNotTapeOutput
)

// New wraps backend with gradient recording.
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// Backward computes gradients of t with respect to every recorded input,
// keyed by RawTensor.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) (map[*tensor.RawTensor]*tensor.RawTensor, error) {
	return autodiff.Backward(t, backend)
}
