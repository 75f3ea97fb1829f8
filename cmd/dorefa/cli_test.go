package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/dorefa/internal/serialization"
)

const smallConfig = `
layer:
  units: 3
  bit_w: 2
  bit_a: 4
  activation: relu
train:
  in_features: 4
  batch_size: 6
  steps: 4
log:
  level: error
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cli := NewCLI()
	cli.SetArgs(args)
	cli.SetOut(&out)
	cli.SetErr(&errOut)
	err := cli.ExecuteContext(context.Background())
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dorefa.yaml")
	require.NoError(t, os.WriteFile(path, []byte(smallConfig), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "dorefa "+version+"\n", out)
}

func TestInspect_Config(t *testing.T) {
	out, err := run(t, "inspect", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "DorefaDense(dorefa_dense, n_units: 100, bitW: 1, bitA: 3, No Activation)")
	assert.Contains(t, out, "dorefa_dense/W")
	assert.Contains(t, out, "dorefa_dense/b")
}

func TestTrainThenInspectAndForward(t *testing.T) {
	cfg := writeConfig(t)
	ckpt := filepath.Join(t.TempDir(), "layer.safetensors")

	out, err := run(t, "train", "-c", cfg, "--steps", "5", "-o", ckpt)
	require.NoError(t, err)
	assert.Contains(t, out, "steps: 5")
	assert.Contains(t, out, "act: relu")

	out, err = run(t, "inspect", "-c", cfg, ckpt)
	require.NoError(t, err)
	assert.Contains(t, out, serialization.FormatDorefaDense)
	assert.Contains(t, out, "dorefa_dense/W")

	out, err = run(t, "forward", "-c", cfg, "--checkpoint", ckpt, "--batch", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "output shape: [2 3]")
	assert.Contains(t, out, "stddev:")

	out, err = run(t, "train", "-c", cfg, "--steps", "2", "--resume", ckpt)
	require.NoError(t, err)
	assert.Contains(t, out, "steps: 7")
}

func TestExport(t *testing.T) {
	cfg := writeConfig(t)
	path := filepath.Join(t.TempDir(), "half.safetensors")

	_, err := run(t, "export", "-c", cfg, "--dtype", "F16", "--quantized", path)
	require.NoError(t, err)

	ckpt, err := serialization.ReadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, 0, ckpt.Step)
	assert.NotNil(t, ckpt.Quantized)
	assert.Equal(t, serialization.DTypeF16, ckpt.Metadata[serialization.MetaStorageDType])
}

func TestSweep(t *testing.T) {
	out, err := run(t, "sweep", "-c", writeConfig(t), "--bit-w", "1,2", "--bit-a", "4", "--steps", "3", "--jobs", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "FINAL LOSS")
	assert.Contains(t, out, "dorefa_dense_w1_a4")
	assert.Contains(t, out, "dorefa_dense_w2_a4")
}

func TestErrors(t *testing.T) {
	_, err := run(t, "inspect", "-c", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = run(t, "inspect", filepath.Join(t.TempDir(), "missing.safetensors"), "--log-level", "error")
	assert.Error(t, err)

	_, err = run(t, "export", "-c", writeConfig(t), "--dtype", "Q4_0", filepath.Join(t.TempDir(), "x"))
	assert.Error(t, err)

	_, err = run(t, "version", "--log-format", "xml")
	assert.Error(t, err)
}
