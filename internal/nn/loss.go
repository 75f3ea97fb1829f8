package nn

import (
	"fmt"

	"github.com/born-ml/dorefa/internal/tensor"
)

// MSELoss computes mean((predictions - targets)²).
//
// The loss is built from Sub, Mul and Mean, so on an autodiff backend it is
// recorded on the tape like any other operation:
//
//	mse := nn.NewMSELoss(backend)
//	loss, err := mse.Forward(predictions, targets)
//	grads, err := autodiff.Backward(loss, backend)
type MSELoss[B tensor.Backend] struct {
	backend B
}

// NewMSELoss creates a new MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return &MSELoss[B]{backend: backend}
}

// Forward returns the scalar loss. Shapes must match exactly.
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	if !predictions.Shape().Equal(targets.Shape()) {
		return nil, fmt.Errorf("%w: predictions %v, targets %v", ErrShapeMismatch, predictions.Shape(), targets.Shape())
	}
	diff := predictions.Sub(targets)
	return diff.Mul(diff).Mean(), nil
}
