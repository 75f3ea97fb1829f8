package cpu_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/dorefa/internal/backend/cpu"
	"github.com/born-ml/dorefa/internal/tensor"
)

func TestCAbs(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{-3, -0.25, 0, 0.5, 1, 7}, tensor.Shape{6})

	assert.Equal(t, []float32{1, 0.25, 0, 0.5, 1, 1}, b.CAbs(x).AsFloat32())
}

func TestQuantizeK_Levels(t *testing.T) {
	b := cpu.New()
	// 2 bits -> 3 steps: {0, 1/3, 2/3, 1}.
	x := raw32(t, []float32{0, 0.1, 0.2, 0.4, 0.9, 1}, tensor.Shape{6})

	out := b.QuantizeK(x, 2).AsFloat32()

	want := []float32{0, 0, 1.0 / 3, 1.0 / 3, 1, 1}
	for i := range want {
		assert.InDelta(t, want[i], out[i], 1e-6, "index %d", i)
	}
}

func TestQuantizeK_RoundHalfToEven(t *testing.T) {
	b := cpu.New()
	// 1 bit -> 1 step; 0.5 ties to 0, 1.5 ties to 2.
	x := raw32(t, []float32{0.5, 1.5}, tensor.Shape{2})

	assert.Equal(t, []float32{0, 2}, b.QuantizeK(x, 1).AsFloat32())
}

func TestQuantizeK_InvalidBitsPanics(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{0.5}, tensor.Shape{1})
	assert.Panics(t, func() { b.QuantizeK(x, 0) })
	assert.Panics(t, func() { b.QuantizeK(x, 33) })
}

func TestClip(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{-2, 0.5, 2}, tensor.Shape{3})

	assert.Equal(t, []float32{0, 0.5, 1}, b.Clip(x, 0, 1).AsFloat32())
}

func TestBinarizeWeight(t *testing.T) {
	b := cpu.New()
	// mean(|x|) = (1 + 2 + 0 + 3) / 4 = 1.5
	x := raw32(t, []float32{1, -2, 0, 3}, tensor.Shape{2, 2})

	out := b.BinarizeWeight(x)

	assert.Equal(t, tensor.Shape{2, 2}, out.Shape())
	assert.Equal(t, []float32{1.5, -1.5, 0, 1.5}, out.AsFloat32())
}

func TestBinarizeWeight_AllZero(t *testing.T) {
	b := cpu.New()
	x := raw32(t, []float32{0, 0}, tensor.Shape{2})

	assert.Equal(t, []float32{0, 0}, b.BinarizeWeight(x).AsFloat32())
}

func TestLevels(t *testing.T) {
	assert.Equal(t, 1.0, cpu.Levels(1))
	assert.Equal(t, 7.0, cpu.Levels(3))
	assert.Equal(t, 255.0, cpu.Levels(8))
}
