package nn

import (
	"fmt"

	"github.com/born-ml/dorefa/internal/tensor"
)

// Parameter represents a trainable tensor.
//
// Optimizers look up gradients by the parameter's raw tensor, so the tensor
// is updated in place and never replaced.
//
//	weight := nn.NewParameter("dense/W", weightTensor)
//	w := weight.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
	grad   *tensor.Tensor[float32, B]
}

// NewParameter creates a new trainable parameter.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{name: name, tensor: t}
}

// Name returns the scoped parameter name, e.g. "dorefa_dense/W".
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Shape returns the parameter shape.
func (p *Parameter[B]) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// Grad returns the gradient from the last backward pass, or nil.
func (p *Parameter[B]) Grad() *tensor.Tensor[float32, B] {
	return p.grad
}

// SetGrad sets the gradient tensor.
func (p *Parameter[B]) SetGrad(grad *tensor.Tensor[float32, B]) {
	p.grad = grad
}

// ZeroGrad clears the gradient.
func (p *Parameter[B]) ZeroGrad() {
	p.grad = nil
}

// CopyFrom overwrites the parameter values with raw, which must match the
// parameter's shape. Float64 sources are narrowed.
func (p *Parameter[B]) CopyFrom(raw *tensor.RawTensor) error {
	if !raw.Shape().Equal(p.Shape()) {
		return fmt.Errorf("%w: %s: expected shape %v, got %v", ErrStateDict, p.name, p.Shape(), raw.Shape())
	}
	dst := p.tensor.Data()
	switch raw.DType() {
	case tensor.Float32:
		copy(dst, raw.AsFloat32())
	default:
		for i, v := range raw.Float64s() {
			dst[i] = float32(v)
		}
	}
	return nil
}
