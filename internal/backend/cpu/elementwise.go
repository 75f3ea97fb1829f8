package cpu

import (
	"fmt"

	"github.com/born-ml/dorefa/internal/parallel"
	"github.com/born-ml/dorefa/internal/tensor"
)

// binary applies f element-wise over the broadcast of a and b.
func (cpu *CPUBackend) binary(name string, a, b *tensor.RawTensor, f func(x, y float64) float64) *tensor.RawTensor {
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}
	outShape, broadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	result := tensor.MustNewRaw(outShape, a.DType(), cpu.device)
	switch a.DType() {
	case tensor.Float32:
		binaryKernel(cpu.parallel, result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape, broadcast, f)
	case tensor.Float64:
		binaryKernel(cpu.parallel, result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape, broadcast, f)
	}
	return result
}

func binaryKernel[T float32 | float64](cfg parallel.Config, dst, a, b []T, aShape, bShape, outShape tensor.Shape, broadcast bool, f func(x, y float64) float64) {
	if !broadcast {
		parallel.Range(len(dst), cfg, func(start, end int) {
			for i := start; i < end; i++ {
				dst[i] = T(f(float64(a[i]), float64(b[i])))
			}
		})
		return
	}

	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)
	parallel.Range(len(dst), cfg, func(start, end int) {
		for i := start; i < end; i++ {
			rem, ai, bi := i, 0, 0
			for d, s := range outStrides {
				coord := rem / s
				rem %= s
				ai += coord * aStrides[d]
				bi += coord * bStrides[d]
			}
			dst[i] = T(f(float64(a[ai]), float64(b[bi])))
		}
	})
}

// broadcastStrides returns strides of in as seen from out, with 0 on
// broadcast dimensions.
func broadcastStrides(in, out tensor.Shape) []int {
	strides := make([]int, len(out))
	inStrides := in.ComputeStrides()
	offset := len(out) - len(in)
	for d := range out {
		k := d - offset
		if k >= 0 && in[k] != 1 {
			strides[d] = inStrides[k]
		}
	}
	return strides
}

// unary applies f to every element of x.
func (cpu *CPUBackend) unary(x *tensor.RawTensor, f func(float64) float64) *tensor.RawTensor {
	result := tensor.MustNewRaw(x.Shape(), x.DType(), cpu.device)
	switch x.DType() {
	case tensor.Float32:
		unaryKernel(cpu.parallel, result.AsFloat32(), x.AsFloat32(), f)
	case tensor.Float64:
		unaryKernel(cpu.parallel, result.AsFloat64(), x.AsFloat64(), f)
	}
	return result
}

func unaryKernel[T float32 | float64](cfg parallel.Config, dst, src []T, f func(float64) float64) {
	parallel.Range(len(src), cfg, func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = T(f(float64(src[i])))
		}
	})
}
