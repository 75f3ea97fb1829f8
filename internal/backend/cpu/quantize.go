package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/dorefa/internal/tensor"
)

// CAbs computes min(1, |x|), the activation clamp used before quantization.
func (cpu *CPUBackend) CAbs(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary(x, func(v float64) float64 { return math.Min(1, math.Abs(v)) })
}

// QuantizeK maps x onto the 2^bits - 1 uniform levels of [0, 1].
// Ties round to even.
func (cpu *CPUBackend) QuantizeK(x *tensor.RawTensor, bits int) *tensor.RawTensor {
	if bits < 1 || bits > 32 {
		panic(fmt.Sprintf("quantize: bits must be in [1, 32], got %d", bits))
	}
	n := Levels(bits)
	return cpu.unary(x, func(v float64) float64 { return math.RoundToEven(v*n) / n })
}

// Clip clamps x into [lo, hi].
func (cpu *CPUBackend) Clip(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	if lo > hi {
		panic(fmt.Sprintf("clip: lo %v > hi %v", lo, hi))
	}
	return cpu.unary(x, func(v float64) float64 { return math.Min(hi, math.Max(lo, v)) })
}

// BinarizeWeight computes sign(x / E) * E where E = mean(|x|).
// An all-zero input stays all zero.
func (cpu *CPUBackend) BinarizeWeight(x *tensor.RawTensor) *tensor.RawTensor {
	e := MeanAbs(x)
	if e == 0 {
		return tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	}
	return cpu.unary(x, func(v float64) float64 { return sign(v/e) * e })
}

// Levels returns 2^bits - 1, the number of quantization steps.
func Levels(bits int) float64 {
	return math.Exp2(float64(bits)) - 1
}

// MeanAbs returns mean(|x|) over all elements.
func MeanAbs(x *tensor.RawTensor) float64 {
	var sum float64
	vals := x.Float64s()
	for _, v := range vals {
		sum += math.Abs(v)
	}
	return sum / float64(len(vals))
}
