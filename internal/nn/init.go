package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/dorefa/internal/tensor"
)

// Initializer creates the initial value of a parameter.
//
// Keyword arguments of an initializer are its struct fields, e.g.
// TruncatedNormal{Stddev: 0.1, Seed: 7}.
type Initializer interface {
	// Initialize returns a float32 tensor of the given shape.
	Initialize(shape tensor.Shape, device tensor.Device) (*tensor.RawTensor, error)
	// Kind returns the initializer's registry name, e.g. "truncated_normal".
	Kind() string
}

// ShapelessInitializer can also produce a value without being told a shape.
// Layers fall back to it when the shaped call fails.
type ShapelessInitializer interface {
	Initializer
	InitializeShapeless(device tensor.Device) (*tensor.RawTensor, error)
}

func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewSource(seed)) //nolint:gosec // G404: weight init, not security sensitive
}

func sample(rng *rand.Rand, f func() float64, g func(*rand.Rand) float64) float64 {
	if rng == nil {
		return f()
	}
	return g(rng)
}

func fill(shape tensor.Shape, device tensor.Device, f func() float64) (*tensor.RawTensor, error) {
	raw, err := tensor.NewRaw(shape, tensor.Float32, device)
	if err != nil {
		return nil, err
	}
	data := raw.AsFloat32()
	for i := range data {
		data[i] = float32(f())
	}
	return raw, nil
}

// TruncatedNormal draws from N(Mean, Stddev²), redrawing values more than
// two standard deviations from the mean. Seed 0 uses the global source.
type TruncatedNormal struct {
	Mean   float64
	Stddev float64
	Seed   int64
}

// Kind implements Initializer.
func (TruncatedNormal) Kind() string { return "truncated_normal" }

// Initialize implements Initializer.
func (init TruncatedNormal) Initialize(shape tensor.Shape, device tensor.Device) (*tensor.RawTensor, error) {
	if init.Stddev < 0 {
		return nil, fmt.Errorf("truncated_normal: negative stddev %v", init.Stddev)
	}
	rng := newRNG(init.Seed)
	return fill(shape, device, func() float64 {
		for {
			z := sample(rng, rand.NormFloat64, (*rand.Rand).NormFloat64) //nolint:gosec // G404
			if math.Abs(z) <= 2 {
				return init.Mean + z*init.Stddev
			}
		}
	})
}

// RandomUniform draws from U(Min, Max).
type RandomUniform struct {
	Min  float64
	Max  float64
	Seed int64
}

// Kind implements Initializer.
func (RandomUniform) Kind() string { return "random_uniform" }

// Initialize implements Initializer.
func (init RandomUniform) Initialize(shape tensor.Shape, device tensor.Device) (*tensor.RawTensor, error) {
	if init.Min > init.Max {
		return nil, fmt.Errorf("random_uniform: min %v > max %v", init.Min, init.Max)
	}
	rng := newRNG(init.Seed)
	return fill(shape, device, func() float64 {
		u := sample(rng, rand.Float64, (*rand.Rand).Float64) //nolint:gosec // G404
		return init.Min + (init.Max-init.Min)*u
	})
}

// XavierUniform (Glorot) draws from U(-sqrt(6/(fanIn+fanOut)), +sqrt(...)).
// For a [in, out] weight fanIn is shape[0] and fanOut shape[1].
type XavierUniform struct {
	Seed int64
}

// Kind implements Initializer.
func (XavierUniform) Kind() string { return "xavier_uniform" }

// Initialize implements Initializer.
func (init XavierUniform) Initialize(shape tensor.Shape, device tensor.Device) (*tensor.RawTensor, error) {
	var fanIn, fanOut int
	switch len(shape) {
	case 1:
		fanIn, fanOut = shape[0], shape[0]
	case 2:
		fanIn, fanOut = shape[0], shape[1]
	default:
		return nil, fmt.Errorf("%w: xavier_uniform needs rank 1 or 2, got %v", ErrInitShape, shape)
	}
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	return RandomUniform{Min: -bound, Max: bound, Seed: init.Seed}.Initialize(shape, device)
}

// Constant fills every element with Value.
type Constant struct {
	Value float64
}

// Kind implements Initializer.
func (Constant) Kind() string { return "constant" }

// Initialize implements Initializer.
func (init Constant) Initialize(shape tensor.Shape, device tensor.Device) (*tensor.RawTensor, error) {
	raw, err := tensor.NewRaw(shape, tensor.Float32, device)
	if err != nil {
		return nil, err
	}
	raw.Fill(init.Value)
	return raw, nil
}

// Zeros returns Constant{0}.
func Zeros() Constant { return Constant{} }

// Ones returns Constant{1}.
func Ones() Constant { return Constant{Value: 1} }

// Values initializes from fixed data. It only accepts a requested shape
// equal to its own, but can always produce its own shape when asked
// without one.
//
// Shape defaults to [len(Data)].
type Values struct {
	Data  []float32
	Shape tensor.Shape
}

// Kind implements Initializer.
func (Values) Kind() string { return "values" }

func (init Values) shape() tensor.Shape {
	if init.Shape == nil {
		return tensor.Shape{len(init.Data)}
	}
	return init.Shape
}

// Initialize implements Initializer.
func (init Values) Initialize(shape tensor.Shape, device tensor.Device) (*tensor.RawTensor, error) {
	if !shape.Equal(init.shape()) {
		return nil, fmt.Errorf("%w: values have shape %v, requested %v", ErrInitShape, init.shape(), shape)
	}
	return init.InitializeShapeless(device)
}

// InitializeShapeless implements ShapelessInitializer.
func (init Values) InitializeShapeless(device tensor.Device) (*tensor.RawTensor, error) {
	shape := init.shape()
	if shape.NumElements() != len(init.Data) {
		return nil, fmt.Errorf("%w: %d values cannot fill shape %v", ErrInitShape, len(init.Data), shape)
	}
	raw, err := tensor.NewRaw(shape, tensor.Float32, device)
	if err != nil {
		return nil, err
	}
	copy(raw.AsFloat32(), init.Data)
	return raw, nil
}
