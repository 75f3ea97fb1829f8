// Package autodiff implements reverse-mode automatic differentiation.
//
// AutodiffBackend wraps any tensor.Backend, forwards every computation to
// it, and records each operation on a GradientTape while recording is on.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	x, _ := tensor.FromSlice([]float32{2}, tensor.Shape{1}, backend)
//	y := x.Mul(x)
//	grads, _ := autodiff.Backward(y, backend) // grads[x.Raw()] == 4
package autodiff

import (
	"fmt"

	"github.com/born-ml/dorefa/internal/autodiff/ops"
	"github.com/born-ml/dorefa/internal/tensor"
)

// AutodiffBackend decorates a backend with gradient recording.
//
// The quantization and activation kernels are delegated to the inner
// backend, which must implement tensor.QuantKernels and
// tensor.ActivationKernels for the corresponding methods to be usable.
type AutodiffBackend[B tensor.Backend] struct {
	inner B
	tape  *GradientTape
}

// New wraps backend with a fresh tape.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{inner: backend, tape: NewGradientTape()}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records it.
func (b *AutodiffBackend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Add(x, y)
	b.tape.Record(ops.NewAddOp(x, y, out))
	return out
}

// Sub performs element-wise subtraction and records it.
func (b *AutodiffBackend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Sub(x, y)
	b.tape.Record(ops.NewSubOp(x, y, out))
	return out
}

// Mul performs element-wise multiplication and records it.
func (b *AutodiffBackend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Mul(x, y)
	b.tape.Record(ops.NewMulOp(x, y, out))
	return out
}

// MulScalar scales x and records it.
func (b *AutodiffBackend[B]) MulScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	out := b.inner.MulScalar(x, s)
	b.tape.Record(ops.NewScaleOp(x, out, s))
	return out
}

// AddScalar shifts x and records it.
func (b *AutodiffBackend[B]) AddScalar(x *tensor.RawTensor, s float64) *tensor.RawTensor {
	out := b.inner.AddScalar(x, s)
	b.tape.Record(ops.NewShiftOp(x, out))
	return out
}

// MatMul performs matrix multiplication and records it.
func (b *AutodiffBackend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.MatMul(x, y)
	b.tape.Record(ops.NewMatMulOp(x, y, out))
	return out
}

// Reshape reshapes x and records it so gradients reach the original tensor.
func (b *AutodiffBackend[B]) Reshape(x *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	out := b.inner.Reshape(x, shape)
	b.tape.Record(ops.NewReshapeOp(x, out))
	return out
}

// Transpose permutes x and records it. The CPU backend copies data, so the
// op must be on the tape for gradients to reach the original tensor.
func (b *AutodiffBackend[B]) Transpose(x *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	if len(axes) == 0 {
		ndim := len(x.Shape())
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	out := b.inner.Transpose(x, axes...)
	b.tape.Record(ops.NewTransposeOp(x, out, axes))
	return out
}

// Mean reduces x to a scalar and records it.
func (b *AutodiffBackend[B]) Mean(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.inner.Mean(x)
	b.tape.Record(ops.NewMeanOp(x, out))
	return out
}

// ReLU applies max(0, x) and records it.
func (b *AutodiffBackend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.activations().ReLU(x)
	b.tape.Record(ops.NewReLUOp(x, out))
	return out
}

// Sigmoid applies 1 / (1 + exp(-x)) and records it.
func (b *AutodiffBackend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.activations().Sigmoid(x)
	b.tape.Record(ops.NewSigmoidOp(x, out))
	return out
}

// Tanh applies tanh(x) and records it.
func (b *AutodiffBackend[B]) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.activations().Tanh(x)
	b.tape.Record(ops.NewTanhOp(x, out))
	return out
}

// Sign applies sign(x) and records it.
func (b *AutodiffBackend[B]) Sign(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.activations().Sign(x)
	b.tape.Record(ops.NewSignOp(x, out))
	return out
}

// CAbs applies min(1, |x|) and records it.
func (b *AutodiffBackend[B]) CAbs(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.quant().CAbs(x)
	b.tape.Record(ops.NewCAbsOp(x, out))
	return out
}

// QuantizeK quantizes x to bits and records a straight-through op.
func (b *AutodiffBackend[B]) QuantizeK(x *tensor.RawTensor, bits int) *tensor.RawTensor {
	out := b.quant().QuantizeK(x, bits)
	b.tape.Record(ops.NewQuantizeOp(x, out, bits))
	return out
}

// Clip clamps x into [lo, hi] and records it.
func (b *AutodiffBackend[B]) Clip(x *tensor.RawTensor, lo, hi float64) *tensor.RawTensor {
	out := b.quant().Clip(x, lo, hi)
	b.tape.Record(ops.NewClipOp(x, out, lo, hi))
	return out
}

// BinarizeWeight binarizes x and records a straight-through op.
func (b *AutodiffBackend[B]) BinarizeWeight(x *tensor.RawTensor) *tensor.RawTensor {
	out := b.quant().BinarizeWeight(x)
	b.tape.Record(ops.NewBinarizeOp(x, out))
	return out
}

func (b *AutodiffBackend[B]) activations() tensor.ActivationKernels {
	k, ok := any(b.inner).(tensor.ActivationKernels)
	if !ok {
		panic(fmt.Sprintf("autodiff: backend %s does not implement activation kernels", b.inner.Name()))
	}
	return k
}

func (b *AutodiffBackend[B]) quant() tensor.QuantKernels {
	k, ok := any(b.inner).(tensor.QuantKernels)
	if !ok {
		panic(fmt.Sprintf("autodiff: backend %s does not implement quantization kernels", b.inner.Name()))
	}
	return k
}

// SupportsQuantization reports whether the wrapped backend provides the
// quantization kernels.
func (b *AutodiffBackend[B]) SupportsQuantization() bool {
	_, ok := any(b.inner).(tensor.QuantKernels)
	return ok
}
