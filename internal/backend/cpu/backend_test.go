package cpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dorefa/internal/backend/cpu"
	"github.com/born-ml/dorefa/internal/parallel"
	"github.com/born-ml/dorefa/internal/tensor"
)

func raw32(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	r, err := tensor.NewRaw(shape, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), data)
	return r
}

func TestCPUBackend_Name(t *testing.T) {
	b := cpu.New()
	assert.Equal(t, "CPU", b.Name())
	assert.Equal(t, tensor.CPU, b.Device())
}

func TestAdd_Broadcast(t *testing.T) {
	b := cpu.New()
	a := raw32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	bias := raw32(t, []float32{10, 20, 30}, tensor.Shape{3})

	out := b.Add(a, bias)

	assert.Equal(t, tensor.Shape{2, 3}, out.Shape())
	assert.Equal(t, []float32{11, 22, 33, 14, 25, 36}, out.AsFloat32())
	// Inputs are never modified.
	assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, a.AsFloat32())
}

func TestSubMul_SameShape(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{1, 2, 3}, tensor.Shape{3})
	y := raw32(t, []float32{4, 5, 6}, tensor.Shape{3})

	assert.Equal(t, []float32{-3, -3, -3}, b.Sub(x, y).AsFloat32())
	assert.Equal(t, []float32{4, 10, 18}, b.Mul(x, y).AsFloat32())
}

func TestBinary_IncompatiblePanics(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{1, 2, 3}, tensor.Shape{3})
	y := raw32(t, []float32{1, 2}, tensor.Shape{2})
	assert.Panics(t, func() { b.Add(x, y) })
}

func TestScalarOps(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{-1, 0, 2}, tensor.Shape{3})

	assert.Equal(t, []float32{-0.5, 0, 1}, b.MulScalar(x, 0.5).AsFloat32())
	assert.Equal(t, []float32{0, 1, 3}, b.AddScalar(x, 1).AsFloat32())
}

func TestMatMul(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	w := raw32(t, []float32{1, 0, 0, 1, 1, 1}, tensor.Shape{3, 2})

	out := b.MatMul(x, w)

	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{4, 5, 10, 11}, out.AsFloat32())
}

func TestMatMul_Float64(t *testing.T) {
	b := cpu.New()
	x, err := tensor.NewRaw(tensor.Shape{1, 2}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(x.AsFloat64(), []float64{2, 3})
	w, err := tensor.NewRaw(tensor.Shape{2, 1}, tensor.Float64, tensor.CPU)
	require.NoError(t, err)
	copy(w.AsFloat64(), []float64{4, 5})

	assert.Equal(t, []float64{23}, b.MatMul(x, w).AsFloat64())
}

func TestMatMul_ShapeMismatchPanics(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	w := raw32(t, []float32{1, 2, 3}, tensor.Shape{3, 1})
	assert.Panics(t, func() { b.MatMul(x, w) })
}

func TestTranspose(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	out := b.Transpose(x)

	assert.Equal(t, tensor.Shape{3, 2}, out.Shape())
	assert.Equal(t, []float32{1, 4, 2, 5, 3, 6}, out.AsFloat32())
}

func TestReshape(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{1, 2, 3, 4}, tensor.Shape{4})

	out := b.Reshape(x, tensor.Shape{1, 4})
	assert.Equal(t, tensor.Shape{1, 4}, out.Shape())
	assert.Panics(t, func() { b.Reshape(x, tensor.Shape{3}) })
}

func TestMean(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{1, 2, 3, 6}, tensor.Shape{2, 2})

	out := b.Mean(x)
	assert.Empty(t, out.Shape())
	assert.InDelta(t, 3.0, out.AsFloat32()[0], 1e-6)
}

func TestActivations(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{-2, 0, 3}, tensor.Shape{3})

	assert.Equal(t, []float32{0, 0, 3}, b.ReLU(x).AsFloat32())
	assert.Equal(t, []float32{-1, 0, 1}, b.Sign(x).AsFloat32())
	assert.InDelta(t, 0.5, b.Sigmoid(x).AsFloat32()[1], 1e-6)
	assert.InDelta(t, 0.99505, b.Tanh(x).AsFloat32()[2], 1e-4)
}

func TestParallelKernels_MatchSequential(t *testing.T) {
	par := cpu.NewWithParallel(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8})
	seq := cpu.NewWithParallel(parallel.Sequential())

	data := make([]float32, 3*50)
	for i := range data {
		data[i] = float32(i%17)/8 - 1
	}
	x := raw32(t, data, tensor.Shape{3, 50})
	row := raw32(t, data[:50], tensor.Shape{50})

	assert.Equal(t, seq.Add(x, row).AsFloat32(), par.Add(x, row).AsFloat32())
	assert.Equal(t, seq.Mul(x, x).AsFloat32(), par.Mul(x, x).AsFloat32())
	assert.Equal(t, seq.QuantizeK(seq.CAbs(x), 3).AsFloat32(), par.QuantizeK(par.CAbs(x), 3).AsFloat32())
	assert.Equal(t, seq.BinarizeWeight(x).AsFloat32(), par.BinarizeWeight(x).AsFloat32())
}
