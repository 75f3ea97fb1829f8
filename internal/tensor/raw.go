package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Device identifies where tensor memory lives.
type Device int

// Supported devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	if d == CPU {
		return "CPU"
	}
	return "Unknown"
}

// RawTensor is the untyped, backend-facing tensor representation.
//
// Storage is a typed slice (one of f32/f64 is non-nil) laid out row-major.
// Backends never mutate their inputs, so RawTensor pointers are stable
// identities for gradient bookkeeping.
type RawTensor struct {
	shape  Shape
	stride []int
	dtype  DataType
	device Device
	f32    []float32
	f64    []float64
}

// NewRaw allocates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	r := &RawTensor{
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
	}
	switch dtype {
	case Float32:
		r.f32 = make([]float32, shape.NumElements())
	case Float64:
		r.f64 = make([]float64, shape.NumElements())
	default:
		return nil, fmt.Errorf("unsupported dtype %s", dtype)
	}
	return r, nil
}

// MustNewRaw is NewRaw for shapes that were already validated.
func MustNewRaw(shape Shape, dtype DataType, device Device) *RawTensor {
	r, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(err)
	}
	return r
}

// Shape returns the tensor's dimensions.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns row-major element strides.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the element type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the element count.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the storage size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// AsFloat32 returns the backing float32 slice. Panics on dtype mismatch.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	return r.f32
}

// AsFloat64 returns the backing float64 slice. Panics on dtype mismatch.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	return r.f64
}

// Float64s returns a widened copy of the data regardless of dtype.
func (r *RawTensor) Float64s() []float64 {
	if r.dtype == Float64 {
		return append([]float64(nil), r.f64...)
	}
	out := make([]float64, len(r.f32))
	for i, v := range r.f32 {
		out[i] = float64(v)
	}
	return out
}

// Fill sets every element to v.
func (r *RawTensor) Fill(v float64) {
	switch r.dtype {
	case Float32:
		for i := range r.f32 {
			r.f32[i] = float32(v)
		}
	case Float64:
		for i := range r.f64 {
			r.f64[i] = v
		}
	}
}

// Bytes encodes the data little-endian, the layout SafeTensors expects.
func (r *RawTensor) Bytes() []byte {
	buf := make([]byte, r.ByteSize())
	switch r.dtype {
	case Float32:
		for i, v := range r.f32 {
			binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
		}
	case Float64:
		for i, v := range r.f64 {
			binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(v))
		}
	}
	return buf
}

// SetBytes decodes little-endian data produced by Bytes.
func (r *RawTensor) SetBytes(buf []byte) error {
	if len(buf) != r.ByteSize() {
		return fmt.Errorf("expected %d bytes for %v %s, got %d", r.ByteSize(), r.shape, r.dtype, len(buf))
	}
	switch r.dtype {
	case Float32:
		for i := range r.f32 {
			r.f32[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
		}
	case Float64:
		for i := range r.f64 {
			r.f64[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
		}
	}
	return nil
}

// Clone returns a deep copy with its own storage.
func (r *RawTensor) Clone() *RawTensor {
	c := MustNewRaw(r.shape, r.dtype, r.device)
	copy(c.f32, r.f32)
	copy(c.f64, r.f64)
	return c
}

// WithShape returns a copy of the data viewed under a new shape.
// Panics if the element counts differ.
func (r *RawTensor) WithShape(shape Shape) *RawTensor {
	if shape.NumElements() != r.NumElements() {
		panic(fmt.Sprintf("reshape: %v -> %v changes element count", r.shape, shape))
	}
	c := MustNewRaw(shape, r.dtype, r.device)
	copy(c.f32, r.f32)
	copy(c.f64, r.f64)
	return c
}
