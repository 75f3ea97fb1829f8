package tensor_test

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dorefa/internal/backend/cpu"
	"github.com/born-ml/dorefa/internal/tensor"
)

func TestShape_Basics(t *testing.T) {
	s := tensor.Shape{2, 3, 4}

	assert.Equal(t, 3, s.Rank())
	assert.Equal(t, 24, s.NumElements())
	assert.Equal(t, 1, tensor.Shape{}.NumElements())
	assert.Equal(t, []int{12, 4, 1}, s.ComputeStrides())
	assert.True(t, s.Equal(s.Clone()))
	assert.False(t, s.Equal(tensor.Shape{2, 3}))
	assert.Error(t, tensor.Shape{2, 0}.Validate())
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		name      string
		a, b      tensor.Shape
		want      tensor.Shape
		broadcast bool
		wantErr   bool
	}{
		{"same", tensor.Shape{3, 5}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, false, false},
		{"column", tensor.Shape{3, 1}, tensor.Shape{3, 5}, tensor.Shape{3, 5}, true, false},
		{"bias", tensor.Shape{4, 8}, tensor.Shape{8}, tensor.Shape{4, 8}, true, false},
		{"scalar", tensor.Shape{}, tensor.Shape{2, 2}, tensor.Shape{2, 2}, true, false},
		{"mismatch", tensor.Shape{3, 4}, tensor.Shape{3, 5}, nil, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, broadcast, err := tensor.BroadcastShapes(tt.a, tt.b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("BroadcastShapes mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.broadcast, broadcast)
		})
	}
}

func TestFromSlice(t *testing.T) {
	backend := cpu.New()

	x, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)
	assert.Equal(t, float32(6), x.At(1, 2))
	assert.Equal(t, tensor.Float32, x.DType())

	x.Set(9, 0, 1)
	assert.Equal(t, []float32{1, 9, 3, 4, 5, 6}, x.Data())

	_, err = tensor.FromSlice([]float32{1, 2}, tensor.Shape{3}, backend)
	assert.Error(t, err)
}

func TestCreation(t *testing.T) {
	backend := cpu.New()

	assert.Equal(t, []float32{0, 0, 0}, tensor.Zeros[float32](tensor.Shape{3}, backend).Data())
	assert.Equal(t, []float64{1, 1}, tensor.Ones[float64](tensor.Shape{2}, backend).Data())
	assert.Equal(t, []float32{2.5, 2.5}, tensor.Full[float32](tensor.Shape{2}, 2.5, backend).Data())

	rng := rand.New(rand.NewSource(1)) //nolint:gosec // deterministic test data
	u := tensor.Rand[float32](tensor.Shape{100}, -1, 1, rng, backend)
	for _, v := range u.Data() {
		assert.GreaterOrEqual(t, v, float32(-1))
		assert.Less(t, v, float32(1))
	}

	a := tensor.Randn[float32](tensor.Shape{5}, rand.New(rand.NewSource(7)), backend) //nolint:gosec // deterministic test data
	b := tensor.Randn[float32](tensor.Shape{5}, rand.New(rand.NewSource(7)), backend) //nolint:gosec // deterministic test data
	assert.Equal(t, a.Data(), b.Data(), "same seed must give same samples")
}

func TestTensorOps(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, tensor.Shape{2, 2}, backend)
	require.NoError(t, err)

	assert.Equal(t, []float32{2, 4, 6, 8}, x.Add(x).Data())
	assert.Equal(t, []float32{0, 0, 0, 0}, x.Sub(x).Data())
	assert.Equal(t, []float32{1, 4, 9, 16}, x.Mul(x).Data())
	assert.Equal(t, []float32{2, 3, 4, 5}, x.AddScalar(1).Data())
	assert.Equal(t, []float32{3, 6, 9, 12}, x.MulScalar(3).Data())
	assert.Equal(t, []float32{7, 10, 15, 22}, x.MatMul(x).Data())
	assert.Equal(t, []float32{1, 3, 2, 4}, x.T().Data())
	assert.Equal(t, tensor.Shape{4}, x.Reshape(4).Shape())
	assert.InDelta(t, 2.5, x.Mean().Item(), 1e-6)
}

func TestRawTensor_BytesRoundTrip(t *testing.T) {
	r, err := tensor.NewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	copy(r.AsFloat32(), []float32{1.5, -2, 0.25})

	c, err := tensor.NewRaw(tensor.Shape{3}, tensor.Float32, tensor.CPU)
	require.NoError(t, err)
	require.NoError(t, c.SetBytes(r.Bytes()))
	assert.Equal(t, r.AsFloat32(), c.AsFloat32())

	assert.Error(t, c.SetBytes([]byte{1, 2}))
}

func TestClone_IsIndependent(t *testing.T) {
	backend := cpu.New()
	x, err := tensor.FromSlice([]float32{1, 2}, tensor.Shape{2}, backend)
	require.NoError(t, err)

	c := x.Clone()
	c.Data()[0] = 100

	assert.Equal(t, float32(1), x.Data()[0])
	assert.Panics(t, func() { x.Raw().AsFloat64() })
}
