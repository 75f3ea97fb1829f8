package ops

import "github.com/born-ml/dorefa/internal/tensor"

// ReLUOp is output = max(0, x); gradient 1 where x > 0.
type ReLUOp struct{ unaryOp }

// NewReLUOp records a ReLU.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{unaryOp{input: input, output: output}}
}

// Backward masks the gradient by x > 0.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{mapGrad(outputGrad, op.input, func(x float64) float64 {
		if x > 0 {
			return 1
		}
		return 0
	})}
}

// SigmoidOp is output = σ(x); gradient σ(x)(1 - σ(x)).
type SigmoidOp struct{ unaryOp }

// NewSigmoidOp records a sigmoid.
func NewSigmoidOp(input, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{unaryOp{input: input, output: output}}
}

// Backward uses the saved output.
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{mapGrad(outputGrad, op.output, func(s float64) float64 { return s * (1 - s) })}
}

// TanhOp is output = tanh(x); gradient 1 - tanh²(x).
type TanhOp struct{ unaryOp }

// NewTanhOp records a tanh.
func NewTanhOp(input, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{unaryOp{input: input, output: output}}
}

// Backward uses the saved output.
func (op *TanhOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{mapGrad(outputGrad, op.output, func(y float64) float64 { return 1 - y*y })}
}

// SignOp is output = sign(x). Its true derivative is zero almost everywhere,
// so no gradient flows through a sign activation.
type SignOp struct{ unaryOp }

// NewSignOp records a sign activation.
func NewSignOp(input, output *tensor.RawTensor) *SignOp {
	return &SignOp{unaryOp{input: input, output: output}}
}

// Backward returns a zero gradient.
func (op *SignOp) Backward(_ *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{tensor.MustNewRaw(op.input.Shape(), op.input.DType(), op.input.Device())}
}
