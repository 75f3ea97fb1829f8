package tensor

// Backend performs the actual computation for tensor operations.
//
// Raw operations never modify their inputs and panic on shape or dtype
// misuse; callers that accept user input validate before dispatching.
type Backend interface {
	// Element-wise binary operations with broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor

	// Element-wise scalar operations.
	MulScalar(x *RawTensor, s float64) *RawTensor
	AddScalar(x *RawTensor, s float64) *RawTensor

	// MatMul multiplies 2-D tensors: [M, K] @ [K, N] -> [M, N].
	MatMul(a, b *RawTensor) *RawTensor

	Reshape(x *RawTensor, shape Shape) *RawTensor
	// Transpose permutes dimensions; no axes reverses them.
	Transpose(x *RawTensor, axes ...int) *RawTensor

	// Mean reduces all elements to a scalar (shape []).
	Mean(x *RawTensor) *RawTensor

	Name() string
	Device() Device
}

// ActivationKernels is implemented by backends that provide the element-wise
// activations used by layers.
type ActivationKernels interface {
	ReLU(x *RawTensor) *RawTensor
	Sigmoid(x *RawTensor) *RawTensor
	Tanh(x *RawTensor) *RawTensor
	Sign(x *RawTensor) *RawTensor
}

// QuantKernels is implemented by backends that provide the DoReFa
// quantization primitives.
type QuantKernels interface {
	// CAbs computes min(1, |x|).
	CAbs(x *RawTensor) *RawTensor
	// QuantizeK rounds x (expected in [0, 1]) onto 2^bits - 1 uniform levels.
	QuantizeK(x *RawTensor, bits int) *RawTensor
	// Clip clamps x into [lo, hi].
	Clip(x *RawTensor, lo, hi float64) *RawTensor
	// BinarizeWeight computes sign(x / E) * E with E = mean(|x|).
	BinarizeWeight(x *RawTensor) *RawTensor
}
