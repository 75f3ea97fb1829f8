// Package nn implements the layers used to build and train DoReFa
// quantized networks.
//
// This package provides:
//   - Module interface: Forward with error reporting plus Parameters
//   - Parameter: named trainable tensors with gradient slots
//   - DorefaDense: fully connected layer with quantized weights and activations
//   - Linear: full-precision fully connected layer for baselines
//   - Activations: ReLU, Sigmoid, Tanh, Sign
//   - Initializers: TruncatedNormal, RandomUniform, XavierUniform, Constant, Values
//   - MSELoss and Sequential
package nn

import (
	"github.com/born-ml/dorefa/internal/tensor"
)

// Module is the base interface for all neural network components.
//
// Modules can be composed into larger networks:
//
//	model := nn.NewSequential[Backend](
//	    dense1,
//	    nn.NewReLU[Backend](),
//	    dense2,
//	)
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module for input.
	//
	// Invalid input shapes are reported as errors, not panics.
	Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error)

	// Parameters returns all trainable parameters of this module.
	// Modules without weights return nil.
	Parameters() []*Parameter[B]
}

// StateModule is a module whose parameters can be saved and restored by name.
type StateModule interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(stateDict map[string]*tensor.RawTensor) error
}
