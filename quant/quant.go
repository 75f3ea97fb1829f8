// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package quant exposes the DoReFa-Net quantizers.
//
//	xq, err := quant.QuantizeActive(quant.MustCAbs(x), 3) // 3-bit activations
//	wq, err := quant.QuantizeWeight(w, 1)                 // binary weights
package quant

import (
	"github.com/born-ml/dorefa/internal/quant"
	"github.com/born-ml/dorefa/tensor"
)

// FullPrecision is the bit-width that disables quantization.
const FullPrecision = quant.FullPrecision

// Errors.
var (
	ErrInvalidBits        = quant.ErrInvalidBits
	ErrUnsupportedBackend = quant.ErrUnsupportedBackend
)

// WeightOption configures QuantizeWeight.
type WeightOption = quant.WeightOption

// Force quantizes weights even at full precision.
func Force() WeightOption { return quant.Force() }

// ValidateBits reports whether bits is a usable bit-width.
func ValidateBits(bits int) error { return quant.ValidateBits(bits) }

// CAbs computes min(1, |x|).
func CAbs[T tensor.DType, B tensor.Backend](x *tensor.Tensor[T, B]) (*tensor.Tensor[T, B], error) {
	return quant.CAbs(x)
}

// MustCAbs is CAbs that panics on error.
func MustCAbs[T tensor.DType, B tensor.Backend](x *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	return quant.MustCAbs(x)
}

// Quantize rounds x in [0, 1] onto 2^bits - 1 levels.
func Quantize[T tensor.DType, B tensor.Backend](x *tensor.Tensor[T, B], bits int) (*tensor.Tensor[T, B], error) {
	return quant.Quantize(x, bits)
}

// QuantizeActive quantizes activations to bitA bits.
func QuantizeActive[T tensor.DType, B tensor.Backend](x *tensor.Tensor[T, B], bitA int) (*tensor.Tensor[T, B], error) {
	return quant.QuantizeActive(x, bitA)
}

// QuantizeWeight quantizes weights to bitW bits.
func QuantizeWeight[T tensor.DType, B tensor.Backend](w *tensor.Tensor[T, B], bitW int, opts ...WeightOption) (*tensor.Tensor[T, B], error) {
	return quant.QuantizeWeight(w, bitW, opts...)
}
