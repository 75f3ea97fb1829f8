package nn

import (
	"fmt"
	"strings"

	"github.com/born-ml/dorefa/internal/tensor"
)

// ReLUBackend is implemented by backends that support ReLU.
type ReLUBackend interface {
	ReLU(*tensor.RawTensor) *tensor.RawTensor
}

// SigmoidBackend is implemented by backends that support Sigmoid.
type SigmoidBackend interface {
	Sigmoid(*tensor.RawTensor) *tensor.RawTensor
}

// TanhBackend is implemented by backends that support Tanh.
type TanhBackend interface {
	Tanh(*tensor.RawTensor) *tensor.RawTensor
}

// SignBackend is implemented by backends that support Sign.
type SignBackend interface {
	Sign(*tensor.RawTensor) *tensor.RawTensor
}

// Activation selects the element-wise function applied after a dense layer.
type Activation int

// Supported activations.
const (
	ActNone Activation = iota
	ActReLU
	ActSigmoid
	ActTanh
	ActSign
)

var activationNames = map[Activation]string{
	ActNone:    "none",
	ActReLU:    "relu",
	ActSigmoid: "sigmoid",
	ActTanh:    "tanh",
	ActSign:    "sign",
}

// String returns the activation name used in configs.
func (a Activation) String() string {
	if name, ok := activationNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Activation(%d)", int(a))
}

// ParseActivation converts a config name into an Activation.
// The empty string means ActNone.
func ParseActivation(name string) (Activation, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ActNone, nil
	}
	for a, n := range activationNames {
		if n == name {
			return a, nil
		}
	}
	return ActNone, fmt.Errorf("%w: unknown activation %q", ErrInvalidConfig, name)
}

// Apply runs the activation on x. ActNone returns x unchanged.
func Apply[B tensor.Backend](a Activation, x *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	backend := x.Backend()
	var out *tensor.RawTensor
	switch a {
	case ActNone:
		return x, nil
	case ActReLU:
		b, ok := any(backend).(ReLUBackend)
		if !ok {
			return nil, fmt.Errorf("%w: relu on %s", ErrUnsupportedBackend, backend.Name())
		}
		out = b.ReLU(x.Raw())
	case ActSigmoid:
		b, ok := any(backend).(SigmoidBackend)
		if !ok {
			return nil, fmt.Errorf("%w: sigmoid on %s", ErrUnsupportedBackend, backend.Name())
		}
		out = b.Sigmoid(x.Raw())
	case ActTanh:
		b, ok := any(backend).(TanhBackend)
		if !ok {
			return nil, fmt.Errorf("%w: tanh on %s", ErrUnsupportedBackend, backend.Name())
		}
		out = b.Tanh(x.Raw())
	case ActSign:
		b, ok := any(backend).(SignBackend)
		if !ok {
			return nil, fmt.Errorf("%w: sign on %s", ErrUnsupportedBackend, backend.Name())
		}
		out = b.Sign(x.Raw())
	default:
		return nil, fmt.Errorf("%w: unknown activation %d", ErrInvalidConfig, int(a))
	}
	return tensor.New[float32](out, backend), nil
}

// ActivationLayer wraps an Activation as a parameter-free Module.
//
//	relu := nn.NewReLU[Backend]()
//	y, err := relu.Forward(x) // negative values become 0
type ActivationLayer[B tensor.Backend] struct {
	act Activation
}

// NewActivation creates a module applying act.
func NewActivation[B tensor.Backend](act Activation) *ActivationLayer[B] {
	return &ActivationLayer[B]{act: act}
}

// NewReLU creates a ReLU module: f(x) = max(0, x).
func NewReLU[B tensor.Backend]() *ActivationLayer[B] { return NewActivation[B](ActReLU) }

// NewSigmoid creates a Sigmoid module: f(x) = 1 / (1 + exp(-x)).
func NewSigmoid[B tensor.Backend]() *ActivationLayer[B] { return NewActivation[B](ActSigmoid) }

// NewTanh creates a Tanh module.
func NewTanh[B tensor.Backend]() *ActivationLayer[B] { return NewActivation[B](ActTanh) }

// NewSign creates a Sign module, the usual companion of 1-bit layers.
func NewSign[B tensor.Backend]() *ActivationLayer[B] { return NewActivation[B](ActSign) }

// Activation returns the wrapped activation.
func (l *ActivationLayer[B]) Activation() Activation {
	return l.act
}

// Forward applies the activation.
func (l *ActivationLayer[B]) Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	return Apply(l.act, input)
}

// Parameters returns nil.
func (l *ActivationLayer[B]) Parameters() []*Parameter[B] {
	return nil
}
