// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the pure Go CPU backend.
//
// Matrix multiplication goes through gonum BLAS; element-wise kernels on
// large tensors are split across goroutines.
//
//	backend := cpu.New()
//	x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
package cpu

import (
	internalcpu "github.com/born-ml/dorefa/internal/backend/cpu"
	"github.com/born-ml/dorefa/tensor"
)

// Backend is the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Compile-time checks.
var (
	_ tensor.Backend           = (*Backend)(nil)
	_ tensor.ActivationKernels = (*Backend)(nil)
	_ tensor.QuantKernels      = (*Backend)(nil)
)

// New creates a new CPU backend.
func New() *Backend {
	return internalcpu.New()
}
