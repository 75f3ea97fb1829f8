package ops

import "github.com/born-ml/dorefa/internal/tensor"

// AddOp is output = a + b. Both inputs receive outputGrad, reduced over
// broadcast dimensions.
type AddOp struct{ binaryOp }

// NewAddOp records a + b.
func NewAddOp(a, b, output *tensor.RawTensor) *AddOp {
	return &AddOp{binaryOp{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for addition.
func (op *AddOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.inputs[0].Shape()),
		reduceBroadcast(outputGrad, op.inputs[1].Shape()),
	}
}

// SubOp is output = a - b.
type SubOp struct{ binaryOp }

// NewSubOp records a - b.
func NewSubOp(a, b, output *tensor.RawTensor) *SubOp {
	return &SubOp{binaryOp{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for subtraction.
func (op *SubOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	neg := backend.MulScalar(outputGrad, -1)
	return []*tensor.RawTensor{
		reduceBroadcast(outputGrad, op.inputs[0].Shape()),
		reduceBroadcast(neg, op.inputs[1].Shape()),
	}
}

// MulOp is output = a * b.
//
//	grad_a = outputGrad * b
//	grad_b = outputGrad * a
type MulOp struct{ binaryOp }

// NewMulOp records a * b.
func NewMulOp(a, b, output *tensor.RawTensor) *MulOp {
	return &MulOp{binaryOp{inputs: []*tensor.RawTensor{a, b}, output: output}}
}

// Backward computes input gradients for multiplication.
func (op *MulOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	a, b := op.inputs[0], op.inputs[1]
	return []*tensor.RawTensor{
		reduceBroadcast(backend.Mul(outputGrad, b), a.Shape()),
		reduceBroadcast(backend.Mul(outputGrad, a), b.Shape()),
	}
}

// ScaleOp is output = x * s for a constant s.
type ScaleOp struct {
	unaryOp
	scale float64
}

// NewScaleOp records x * s.
func NewScaleOp(input, output *tensor.RawTensor, s float64) *ScaleOp {
	return &ScaleOp{unaryOp: unaryOp{input: input, output: output}, scale: s}
}

// Backward scales the output gradient by s.
func (op *ScaleOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MulScalar(outputGrad, op.scale)}
}

// ShiftOp is output = x + s for a constant s; the gradient passes through.
type ShiftOp struct{ unaryOp }

// NewShiftOp records x + s.
func NewShiftOp(input, output *tensor.RawTensor) *ShiftOp {
	return &ShiftOp{unaryOp{input: input, output: output}}
}

// Backward returns the output gradient unchanged.
func (op *ShiftOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{outputGrad}
}

// MeanOp is output = mean(x), a scalar.
type MeanOp struct{ unaryOp }

// NewMeanOp records mean(x).
func NewMeanOp(input, output *tensor.RawTensor) *MeanOp {
	return &MeanOp{unaryOp{input: input, output: output}}
}

// Backward spreads the scalar gradient evenly: grad_x[i] = g / n.
func (op *MeanOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	g := outputGrad.Float64s()[0] / float64(op.input.NumElements())
	grad := tensor.MustNewRaw(op.input.Shape(), op.input.DType(), op.input.Device())
	grad.Fill(g)
	return []*tensor.RawTensor{grad}
}
