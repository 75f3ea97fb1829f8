package nn

import (
	"fmt"

	"github.com/born-ml/dorefa/internal/tensor"
)

// Linear implements a full-precision fully connected layer, y = x @ W + b.
//
// W has shape [in_features, out_features], the same layout DorefaDense
// uses, so a trained Linear can seed a quantized layer's weights.
//
// Weights are initialized with XavierUniform and biases with zeros.
//
//	layer := nn.NewLinear(784, 128, backend)
//	output, err := layer.Forward(input) // [batch, 128]
type Linear[B tensor.Backend] struct {
	inFeatures  int
	outFeatures int
	weight      *Parameter[B]
	bias        *Parameter[B]
	backend     B
}

// NewLinear creates a Linear layer with a bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	l, err := NewLinearWithInit(inFeatures, outFeatures, XavierUniform{}, Zeros(), backend)
	if err != nil {
		panic(err)
	}
	return l
}

// NewLinearWithInit creates a Linear layer with explicit initializers.
// A nil bInit creates a layer without bias.
func NewLinearWithInit[B tensor.Backend](inFeatures, outFeatures int, wInit, bInit Initializer, backend B) (*Linear[B], error) {
	if inFeatures <= 0 || outFeatures <= 0 {
		return nil, fmt.Errorf("%w: linear %dx%d", ErrInvalidConfig, inFeatures, outFeatures)
	}
	wRaw, err := wInit.Initialize(tensor.Shape{inFeatures, outFeatures}, backend.Device())
	if err != nil {
		return nil, fmt.Errorf("linear weight: %w", err)
	}
	l := &Linear[B]{
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		weight:      NewParameter("weight", tensor.New[float32](wRaw, backend)),
		backend:     backend,
	}
	if bInit != nil {
		bRaw, err := bInit.Initialize(tensor.Shape{outFeatures}, backend.Device())
		if err != nil {
			return nil, fmt.Errorf("linear bias: %w", err)
		}
		l.bias = NewParameter("bias", tensor.New[float32](bRaw, backend))
	}
	return l, nil
}

// Forward computes x @ W + b for input of shape [batch, in_features].
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	shape := input.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: linear got shape %v", ErrInputRank, shape)
	}
	if shape[1] != l.inFeatures {
		return nil, fmt.Errorf("%w: linear expects %d features, got %d", ErrInputFeatures, l.inFeatures, shape[1])
	}

	output := input.MatMul(l.weight.Tensor())
	if l.bias != nil {
		output = output.Add(l.bias.Tensor())
	}
	return output, nil
}

// Parameters returns [weight, bias], or [weight] without bias.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	if l.bias != nil {
		return []*Parameter[B]{l.weight, l.bias}
	}
	return []*Parameter[B]{l.weight}
}

// Weight returns the weight parameter.
func (l *Linear[B]) Weight() *Parameter[B] {
	return l.weight
}

// Bias returns the bias parameter, or nil.
func (l *Linear[B]) Bias() *Parameter[B] {
	return l.bias
}

// InFeatures returns the number of input features.
func (l *Linear[B]) InFeatures() int {
	return l.inFeatures
}

// OutFeatures returns the number of output features.
func (l *Linear[B]) OutFeatures() int {
	return l.outFeatures
}

// StateDict returns the parameters keyed "weight" and "bias".
func (l *Linear[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := map[string]*tensor.RawTensor{"weight": l.weight.Tensor().Raw()}
	if l.bias != nil {
		stateDict["bias"] = l.bias.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict copies parameter values from stateDict.
func (l *Linear[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	for name, p := range map[string]*Parameter[B]{"weight": l.weight, "bias": l.bias} {
		if p == nil {
			continue
		}
		raw, ok := stateDict[name]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrStateDict, name)
		}
		if err := p.CopyFrom(raw); err != nil {
			return err
		}
	}
	return nil
}
