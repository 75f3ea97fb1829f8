// Package ops defines the differentiable operations recorded on a gradient tape.
//
// Each operation keeps references to its inputs and output from the forward
// pass and maps an output gradient to input gradients in Backward.
//
// Quantizers are not differentiable in the classical sense; their ops use
// straight-through estimators:
//   - QuantizeOp: d round(x·n)/n / dx := 1
//   - BinarizeOp: d sign(x/E)·E / dx := 1, E treated as a constant
//   - CAbsOp:     d min(1, |x|) / dx = sign(x) on |x| < 1, else 0
//   - ClipOp:     d clip(x, lo, hi) / dx = 1 on [lo, hi], else 0
package ops

import "github.com/born-ml/dorefa/internal/tensor"

// Operation is a node of the recorded computation graph.
type Operation interface {
	// Backward returns one gradient per input (nil for inputs that receive none).
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the tensors the operation consumed.
	Inputs() []*tensor.RawTensor

	// Output returns the tensor the operation produced.
	Output() *tensor.RawTensor
}

// unaryOp carries the bookkeeping shared by single-input operations.
type unaryOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns [input].
func (op *unaryOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the produced tensor.
func (op *unaryOp) Output() *tensor.RawTensor {
	return op.output
}

// binaryOp carries the bookkeeping shared by two-input operations.
type binaryOp struct {
	inputs []*tensor.RawTensor
	output *tensor.RawTensor
}

// Inputs returns [a, b].
func (op *binaryOp) Inputs() []*tensor.RawTensor {
	return op.inputs
}

// Output returns the produced tensor.
func (op *binaryOp) Output() *tensor.RawTensor {
	return op.output
}
