// Package quant implements the DoReFa-Net quantizers for weights and
// activations.
//
// All helpers dispatch to a backend that implements tensor.QuantKernels.
// Wrapped in an autodiff backend, the quantizers are recorded with
// straight-through gradients so the full-precision inputs stay trainable.
//
//	backend := autodiff.New(cpu.New())
//	xq, err := quant.QuantizeActive(quant.MustCAbs(x), 3)
//	wq, err := quant.QuantizeWeight(w, 1)
package quant

import (
	"errors"
	"fmt"

	"github.com/born-ml/dorefa/internal/tensor"
)

// FullPrecision is the bit-width at which quantization is a no-op.
const FullPrecision = 32

var (
	// ErrInvalidBits is returned for bit-widths outside [1, 32].
	ErrInvalidBits = errors.New("quant: bit-width must be in [1, 32]")

	// ErrUnsupportedBackend is returned when the backend has no quantization kernels.
	ErrUnsupportedBackend = errors.New("quant: backend does not implement quantization kernels")
)

// Backend is a tensor backend with quantization kernels.
type Backend interface {
	tensor.Backend
	tensor.QuantKernels
}

// ValidateBits reports ErrInvalidBits for widths outside [1, 32].
func ValidateBits(bits int) error {
	if bits < 1 || bits > FullPrecision {
		return fmt.Errorf("%w: got %d", ErrInvalidBits, bits)
	}
	return nil
}

func kernels[B tensor.Backend](b B) (tensor.QuantKernels, error) {
	k, ok := any(b).(tensor.QuantKernels)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, b.Name())
	}
	return k, nil
}

// CAbs returns min(1, |x|).
func CAbs[T tensor.DType, B tensor.Backend](x *tensor.Tensor[T, B]) (*tensor.Tensor[T, B], error) {
	k, err := kernels(x.Backend())
	if err != nil {
		return nil, err
	}
	return tensor.New[T](k.CAbs(x.Raw()), x.Backend()), nil
}

// MustCAbs is like CAbs but panics on error.
func MustCAbs[T tensor.DType, B tensor.Backend](x *tensor.Tensor[T, B]) *tensor.Tensor[T, B] {
	y, err := CAbs(x)
	if err != nil {
		panic(err)
	}
	return y
}

// Quantize maps x, expected in [0, 1], onto 2^bits - 1 uniform levels.
// Ties round to even.
func Quantize[T tensor.DType, B tensor.Backend](x *tensor.Tensor[T, B], bits int) (*tensor.Tensor[T, B], error) {
	if err := ValidateBits(bits); err != nil {
		return nil, err
	}
	k, err := kernels(x.Backend())
	if err != nil {
		return nil, err
	}
	return tensor.New[T](k.QuantizeK(x.Raw(), bits), x.Backend()), nil
}

// QuantizeActive quantizes activations to bitA bits. At full precision the
// input is returned as is.
func QuantizeActive[T tensor.DType, B tensor.Backend](x *tensor.Tensor[T, B], bitA int) (*tensor.Tensor[T, B], error) {
	if err := ValidateBits(bitA); err != nil {
		return nil, err
	}
	if bitA == FullPrecision {
		return x, nil
	}
	return Quantize(x, bitA)
}

// WeightOption configures QuantizeWeight.
type WeightOption func(*weightOptions)

type weightOptions struct {
	force bool
}

// Force quantizes even at full precision.
func Force() WeightOption {
	return func(o *weightOptions) { o.force = true }
}

// QuantizeWeight quantizes weights to bitW bits.
//
// One bit binarizes to sign(w / E) * E with E = mean(|w|), where E carries no
// gradient. Other widths map w from [-1, 1] onto the quantization grid:
// 2 * Quantize(clip(w/2 + 1/2, 0, 1), bitW) - 1.
func QuantizeWeight[T tensor.DType, B tensor.Backend](w *tensor.Tensor[T, B], bitW int, opts ...WeightOption) (*tensor.Tensor[T, B], error) {
	if err := ValidateBits(bitW); err != nil {
		return nil, err
	}
	var o weightOptions
	for _, opt := range opts {
		opt(&o)
	}
	if bitW == FullPrecision && !o.force {
		return w, nil
	}

	backend := w.Backend()
	k, err := kernels(backend)
	if err != nil {
		return nil, err
	}
	if bitW == 1 {
		return tensor.New[T](k.BinarizeWeight(w.Raw()), backend), nil
	}

	shifted := backend.AddScalar(backend.MulScalar(w.Raw(), 0.5), 0.5)
	q := k.QuantizeK(k.Clip(shifted, 0, 1), bitW)
	return tensor.New[T](backend.AddScalar(backend.MulScalar(q, 2), -1), backend), nil
}
