package ops

import (
	"github.com/born-ml/dorefa/internal/tensor"
)

// reduceBroadcast sums grad down to target, undoing forward broadcasting.
//
//	Forward:  a[4] + b[2,4] -> c[2,4]
//	Backward: grad_c[2,4]   -> grad_a[4] (summed over dim 0)
func reduceBroadcast(grad *tensor.RawTensor, target tensor.Shape) *tensor.RawTensor {
	if grad.Shape().Equal(target) {
		return grad
	}

	src := grad.Float64s()
	gShape := grad.Shape()
	gStrides := gShape.ComputeStrides()
	tStrides := target.ComputeStrides()
	offset := len(gShape) - len(target)

	acc := make([]float64, target.NumElements())
	for i, v := range src {
		rem, ti := i, 0
		for d, s := range gStrides {
			coord := rem / s
			rem %= s
			if k := d - offset; k >= 0 && target[k] != 1 {
				ti += coord * tStrides[k]
			}
		}
		acc[ti] += v
	}

	return fromFloat64s(acc, target, grad.DType(), grad.Device())
}

// mapGrad builds g[i] = outputGrad[i] * f(input[i]).
func mapGrad(outputGrad, input *tensor.RawTensor, f func(x float64) float64) *tensor.RawTensor {
	g := outputGrad.Float64s()
	x := input.Float64s()
	for i := range g {
		g[i] *= f(x[i])
	}
	return fromFloat64s(g, input.Shape(), input.DType(), input.Device())
}

func fromFloat64s(data []float64, shape tensor.Shape, dtype tensor.DataType, device tensor.Device) *tensor.RawTensor {
	r := tensor.MustNewRaw(shape, dtype, device)
	switch dtype {
	case tensor.Float32:
		dst := r.AsFloat32()
		for i, v := range data {
			dst[i] = float32(v)
		}
	case tensor.Float64:
		copy(r.AsFloat64(), data)
	}
	return r
}
