package serialization_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dorefa/internal/backend/cpu"
	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/optim"
	"github.com/born-ml/dorefa/internal/serialization"
	"github.com/born-ml/dorefa/internal/tensor"
)

func builtLayer(t *testing.T, cfg nn.DorefaDenseConfig, in int) *nn.DorefaDense[*cpu.CPUBackend] {
	t.Helper()
	layer, err := nn.NewDorefaDense(cfg, cpu.New())
	require.NoError(t, err)
	require.NoError(t, layer.Build(in))
	return layer
}

func TestCheckpoint_RoundTrip(t *testing.T) {
	cfg := nn.DorefaDenseConfig{
		Name: "fc1", Units: 3, BitW: 2, BitA: 2, Activation: nn.ActReLU,
		WInit: nn.RandomUniform{Min: -1, Max: 1, Seed: 7},
		BInit: nn.Constant{Value: 0.25},
	}
	layer := builtLayer(t, cfg, 4)
	path := filepath.Join(t.TempDir(), "fc1.safetensors")

	id, err := serialization.SaveLayer(path, layer, serialization.SaveOptions{
		ExportQuantized: true, Step: 7, Loss: 0.5,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	loaded, ckpt, err := serialization.LoadLayer(path, cpu.New(), nil)
	require.NoError(t, err)

	assert.Equal(t, id, ckpt.ID)
	assert.False(t, ckpt.CreatedAt.IsZero())
	assert.Equal(t, 7, ckpt.Step)
	assert.InDelta(t, 0.5, ckpt.Loss, 1e-12)
	assert.Equal(t, 4, ckpt.InFeatures)

	assert.Equal(t, "fc1", loaded.Name())
	assert.Equal(t, 3, loaded.Units())
	assert.Equal(t, 2, loaded.BitW())
	assert.Equal(t, 2, loaded.BitA())
	assert.Equal(t, nn.ActReLU, loaded.Activation())
	assert.True(t, loaded.Config().HasBias())
	assert.Equal(t, layer.Weight().Tensor().Data(), loaded.Weight().Tensor().Data())
	assert.Equal(t, layer.Bias().Tensor().Data(), loaded.Bias().Tensor().Data())

	wq, err := layer.QuantizedWeight()
	require.NoError(t, err)
	require.NotNil(t, ckpt.Quantized)
	assert.Equal(t, wq.Data(), ckpt.Quantized.AsFloat32())
	assert.NotContains(t, ckpt.Params, "fc1/W_q")

	x, err := tensor.FromSlice([]float32{0.1, -0.5, 0.9, 0.3, 1, 0, -1, 0.6}, tensor.Shape{2, 4}, cpu.New())
	require.NoError(t, err)
	want, err := layer.Forward(x)
	require.NoError(t, err)
	xl, err := tensor.FromSlice(x.Data(), tensor.Shape{2, 4}, loaded.Weight().Tensor().Backend())
	require.NoError(t, err)
	got, err := loaded.Forward(xl)
	require.NoError(t, err)
	assert.Equal(t, want.Data(), got.Data())
}

func TestCheckpoint_NoBias(t *testing.T) {
	layer := builtLayer(t, nn.DorefaDenseConfig{Units: 2}.NoBias(), 3)
	path := filepath.Join(t.TempDir(), "nobias.safetensors")
	_, err := serialization.SaveLayer(path, layer, serialization.SaveOptions{})
	require.NoError(t, err)

	loaded, ckpt, err := serialization.LoadLayer(path, cpu.New(), nil)
	require.NoError(t, err)
	assert.False(t, loaded.Config().HasBias())
	assert.Nil(t, loaded.Bias())
	assert.Nil(t, ckpt.Quantized)
	assert.Len(t, ckpt.Params, 1)
}

func TestCheckpoint_F16Storage(t *testing.T) {
	layer := builtLayer(t, nn.DorefaDenseConfig{Units: 5}, 6)
	path := filepath.Join(t.TempDir(), "half.safetensors")
	_, err := serialization.SaveLayer(path, layer, serialization.SaveOptions{DType: serialization.DTypeF16})
	require.NoError(t, err)

	loaded, _, err := serialization.LoadLayer(path, cpu.New(), nil)
	require.NoError(t, err)
	want := layer.Weight().Tensor().Data()
	got := loaded.Weight().Tensor().Data()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-3)
	}
}

func TestCheckpoint_OptimizerState(t *testing.T) {
	layer := builtLayer(t, nn.DorefaDenseConfig{Name: "fc", Units: 2}, 2)
	opt := optim.NewSGD(layer.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	grad := tensor.MustNewRaw(tensor.Shape{2, 2}, tensor.Float32, tensor.CPU)
	grad.Fill(1)
	opt.Step(map[*tensor.RawTensor]*tensor.RawTensor{layer.Weight().Tensor().Raw(): grad})

	path := filepath.Join(t.TempDir(), "resume.safetensors")
	_, err := serialization.SaveLayer(path, layer, serialization.SaveOptions{Optimizer: opt, Step: 1})
	require.NoError(t, err)

	loaded, ckpt, err := serialization.LoadLayer(path, cpu.New(), nil)
	require.NoError(t, err)
	require.Contains(t, ckpt.Optimizer, "velocity.fc/W")
	assert.NotContains(t, ckpt.Params, "optim/velocity.fc/W")

	resumed := optim.NewSGD(loaded.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	require.NoError(t, resumed.LoadStateDict(ckpt.Optimizer))
	assert.Equal(t, opt.StateDict()["velocity.fc/W"].AsFloat32(), resumed.StateDict()["velocity.fc/W"].AsFloat32())
}

func TestCheckpoint_AdamStepExactAtHalfPrecision(t *testing.T) {
	for _, dtype := range []string{serialization.DTypeF16, serialization.DTypeBF16} {
		t.Run(dtype, func(t *testing.T) {
			layer := builtLayer(t, nn.DorefaDenseConfig{Name: "fc", Units: 2}, 2)
			opt := optim.NewAdam(layer.Parameters(), optim.AdamConfig{LR: 0.01})
			step := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float64, tensor.CPU)
			step.AsFloat64()[0] = 1001
			require.NoError(t, opt.LoadStateDict(map[string]*tensor.RawTensor{"step": step}))

			path := filepath.Join(t.TempDir(), "adam.safetensors")
			_, err := serialization.SaveLayer(path, layer, serialization.SaveOptions{DType: dtype, Optimizer: opt})
			require.NoError(t, err)

			ckpt, err := serialization.ReadCheckpoint(path)
			require.NoError(t, err)
			resumed := optim.NewAdam(layer.Parameters(), optim.AdamConfig{LR: 0.01})
			require.NoError(t, resumed.LoadStateDict(ckpt.Optimizer))
			assert.Equal(t, 1001, resumed.GetTimestep())
		})
	}
}

func TestCheckpoint_Errors(t *testing.T) {
	dir := t.TempDir()

	unbuilt, err := nn.NewDorefaDense(nn.DorefaDenseConfig{}, cpu.New())
	require.NoError(t, err)
	_, err = serialization.SaveLayer(filepath.Join(dir, "x.safetensors"), unbuilt, serialization.SaveOptions{})
	assert.Error(t, err)

	plain := filepath.Join(dir, "plain.safetensors")
	require.NoError(t, serialization.WriteSafeTensors(plain,
		map[string]*tensor.RawTensor{"w": raw32(t, tensor.Shape{1}, 1)}, serialization.WriteOptions{}))
	_, _, err = serialization.LoadLayer(plain, cpu.New(), nil)
	assert.ErrorIs(t, err, serialization.ErrNotDorefaLayer)

	_, _, err = serialization.LoadLayer(filepath.Join(dir, "missing.safetensors"), cpu.New(), nil)
	assert.Error(t, err)
}
