package ops

import (
	"math"

	"github.com/born-ml/dorefa/internal/tensor"
)

// CAbsOp is output = min(1, |x|).
//
// Below the clamp the gradient is that of |x|, i.e. sign(x); where the
// clamp is active (|x| >= 1) it is zero.
type CAbsOp struct{ unaryOp }

// NewCAbsOp records a clamped absolute value.
func NewCAbsOp(input, output *tensor.RawTensor) *CAbsOp {
	return &CAbsOp{unaryOp{input: input, output: output}}
}

// Backward computes outputGrad * sign(x) * [|x| < 1].
func (op *CAbsOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{mapGrad(outputGrad, op.input, func(x float64) float64 {
		switch {
		case math.Abs(x) >= 1 || x == 0:
			return 0
		case x > 0:
			return 1
		default:
			return -1
		}
	})}
}

// QuantizeOp is output = round(x * n) / n with n = 2^bits - 1.
// The gradient is passed straight through.
type QuantizeOp struct {
	unaryOp
	bits int
}

// NewQuantizeOp records a k-bit quantization.
func NewQuantizeOp(input, output *tensor.RawTensor, bits int) *QuantizeOp {
	return &QuantizeOp{unaryOp: unaryOp{input: input, output: output}, bits: bits}
}

// Bits returns the quantization bit-width.
func (op *QuantizeOp) Bits() int {
	return op.bits
}

// Backward returns the output gradient unchanged.
func (op *QuantizeOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// ClipOp is output = clip(x, lo, hi); gradient 1 on [lo, hi].
type ClipOp struct {
	unaryOp
	lo, hi float64
}

// NewClipOp records a clip.
func NewClipOp(input, output *tensor.RawTensor, lo, hi float64) *ClipOp {
	return &ClipOp{unaryOp: unaryOp{input: input, output: output}, lo: lo, hi: hi}
}

// Backward masks the gradient to the unclipped region.
func (op *ClipOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{mapGrad(outputGrad, op.input, func(x float64) float64 {
		if x < op.lo || x > op.hi {
			return 0
		}
		return 1
	})}
}

// BinarizeOp is output = sign(x / E) * E with E = mean(|x|).
// E is not differentiated and sign is treated as identity, so the
// gradient passes straight through.
type BinarizeOp struct{ unaryOp }

// NewBinarizeOp records a 1-bit weight binarization.
func NewBinarizeOp(input, output *tensor.RawTensor) *BinarizeOp {
	return &BinarizeOp{unaryOp{input: input, output: output}}
}

// Backward returns the output gradient unchanged.
func (op *BinarizeOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}
