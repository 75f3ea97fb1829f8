package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dorefa/internal/config"
	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/tensor"
)

const full = `
layer:
  name: fc1
  bit_w: 2
  bit_a: 4
  units: 8
  activation: relu
  w_init: {kind: truncated_normal, args: {stddev: 0.1, seed: 7}}
  b_init: {kind: constant, args: {value: 0.5}}
train:
  in_features: 6
  batch_size: 4
  steps: 10
  optimizer: adam
  lr: 0.01
  momentum: 0
  seed: 3
export:
  dtype: F16
  quantized: true
log:
  level: debug
  format: json
`

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, config.Default().Validate())
}

func TestParse_Full(t *testing.T) {
	cfg, err := config.Parse([]byte(full))
	require.NoError(t, err)

	assert.Equal(t, "fc1", cfg.Layer.Name)
	assert.Equal(t, 6, cfg.Train.InFeatures)
	assert.Equal(t, "adam", cfg.Train.Optimizer)
	assert.Equal(t, "F16", cfg.Export.DType)
	assert.True(t, cfg.Export.Quantized)
	assert.Equal(t, "json", cfg.Log.Format)

	dense, err := cfg.Layer.Dense(nil)
	require.NoError(t, err)
	assert.Equal(t, 2, dense.BitW)
	assert.Equal(t, 4, dense.BitA)
	assert.Equal(t, 8, dense.Units)
	assert.Equal(t, nn.ActReLU, dense.Activation)
	assert.Equal(t, nn.TruncatedNormal{Stddev: 0.1, Seed: 7}, dense.WInit)
	assert.Equal(t, nn.Constant{Value: 0.5}, dense.BInit)
	assert.True(t, dense.HasBias())

	oc := cfg.Train.OptimizerConfig()
	assert.Equal(t, "adam", oc.Name)
	assert.InDelta(t, 0.01, oc.LR, 1e-9)
}

func TestParse_PartialKeepsDefaults(t *testing.T) {
	cfg, err := config.Parse([]byte("layer:\n  units: 4\n"))
	require.NoError(t, err)

	def := config.Default()
	assert.Equal(t, 4, cfg.Layer.Units)
	assert.Equal(t, def.Layer.BitW, cfg.Layer.BitW)
	assert.Equal(t, def.Train, cfg.Train)
}

func TestParse_Empty(t *testing.T) {
	cfg, err := config.Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestParse_NoBias(t *testing.T) {
	cfg, err := config.Parse([]byte("layer:\n  b_init: {kind: none}\n"))
	require.NoError(t, err)

	dense, err := cfg.Layer.Dense(nil)
	require.NoError(t, err)
	assert.False(t, dense.HasBias())
}

func TestParse_ValuesInitializer(t *testing.T) {
	cfg, err := config.Parse([]byte(`
layer:
  units: 2
  b_init: {kind: values, args: {data: [0.5, -1]}}
`))
	require.NoError(t, err)

	dense, err := cfg.Layer.Dense(nil)
	require.NoError(t, err)
	assert.Equal(t, nn.Values{Data: []float32{0.5, -1}}, dense.BInit)
}

func TestParse_ValuesShape(t *testing.T) {
	cfg, err := config.Parse([]byte(`
layer:
  units: 2
  b_init: {kind: values, args: {data: [0.5, -1], shape: [1, 2]}}
`))
	require.NoError(t, err)

	dense, err := cfg.Layer.Dense(nil)
	require.NoError(t, err)
	assert.Equal(t, nn.Values{Data: []float32{0.5, -1}, Shape: tensor.Shape{1, 2}}, dense.BInit)
}

func TestParse_TruncatedNormalDefaultsMatchLayer(t *testing.T) {
	cfg, err := config.Parse([]byte("layer:\n  w_init: {kind: truncated_normal}\n"))
	require.NoError(t, err)

	dense, err := cfg.Layer.Dense(nil)
	require.NoError(t, err)
	assert.Equal(t, nn.TruncatedNormal{Stddev: nn.DefaultWeightStddev}, dense.WInit)
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"unknown top-level key": "layers: {}\n",
		"unknown layer key":     "layer:\n  bits: 2\n",
		"unknown init kind":     "layer:\n  w_init: {kind: he_normal}\n",
		"unknown init arg":      "layer:\n  w_init: {kind: truncated_normal, args: {sigma: 1}}\n",
		"init arg type":         "layer:\n  b_init: {kind: constant, args: {value: high}}\n",
		"seed must be integer":  "layer:\n  w_init: {kind: xavier_uniform, args: {seed: 1.5}}\n",
		"fractional shape":      "layer:\n  b_init: {kind: values, args: {data: [1, 2], shape: [1.5]}}\n",
		"zero shape":            "layer:\n  b_init: {kind: values, args: {data: [1, 2], shape: [0, 2]}}\n",
		"weight cannot be none": "layer:\n  w_init: {kind: none}\n",
		"bad bit width":         "layer:\n  bit_w: 40\n",
		"bad activation":        "layer:\n  activation: swish\n",
		"bad in_features":       "train:\n  in_features: 0\n",
		"bad optimizer":         "train:\n  optimizer: rmsprop\n",
		"bad momentum":          "train:\n  momentum: 1\n",
		"bad export dtype":      "export:\n  dtype: Q4_0\n",
		"bad log level":         "log:\n  level: loud\n",
		"bad log format":        "log:\n  format: xml\n",
		"not yaml":              "layer: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := config.Parse([]byte(doc))
			assert.ErrorIs(t, err, config.ErrInvalid)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dorefa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(full), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fc1", cfg.Layer.Name)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
