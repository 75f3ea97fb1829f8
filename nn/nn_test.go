// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"errors"
	"testing"

	"github.com/born-ml/dorefa/autodiff"
	"github.com/born-ml/dorefa/backend/cpu"
	"github.com/born-ml/dorefa/nn"
	"github.com/born-ml/dorefa/optim"
	"github.com/born-ml/dorefa/tensor"
)

// TestModuleInterface verifies that concrete types implement Module.
func TestModuleInterface(t *testing.T) {
	backend := cpu.New()
	dense, err := nn.NewDorefaDense(nn.DorefaDenseConfig{Units: 2}, backend)
	if err != nil {
		t.Fatal(err)
	}

	modules := map[string]nn.Module[*cpu.Backend]{
		"DorefaDense": dense,
		"Linear":      nn.NewLinear(3, 2, backend),
		"ReLU":        nn.NewReLU[*cpu.Backend](),
		"Sequential":  nn.NewSequential[*cpu.Backend](nn.NewLinear(3, 3, backend), dense),
	}
	x, err := tensor.FromSlice([]float32{0.1, 0.2, 0.3, -0.4, -0.5, -0.6}, tensor.Shape{2, 3}, backend)
	if err != nil {
		t.Fatal(err)
	}
	for name, m := range modules {
		if _, err := m.Forward(x); err != nil {
			t.Errorf("%s.Forward: %v", name, err)
		}
	}
}

// TestDorefaDense_PublicAPI trains a layer end to end through the public
// packages.
func TestDorefaDense_PublicAPI(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer, err := nn.NewDorefaDense(nn.DorefaDenseConfig{
		BitW:  2,
		BitA:  2,
		Units: 2,
		WInit: nn.RandomUniform{Min: -0.5, Max: 0.5, Seed: 1},
	}, backend)
	if err != nil {
		t.Fatal(err)
	}

	x, _ := tensor.FromSlice([]float32{0.2, 0.9, 0.6, 0.1}, tensor.Shape{2, 2}, backend)
	target, _ := tensor.FromSlice([]float32{1, 0, 0, 1}, tensor.Shape{2, 2}, backend)

	backend.Tape().StartRecording()
	y, err := layer.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	loss, err := nn.NewMSELoss(backend).Forward(y, target)
	if err != nil {
		t.Fatal(err)
	}
	grads, err := autodiff.Backward(loss, backend)
	if err != nil {
		t.Fatal(err)
	}

	w := layer.Weight().Tensor()
	if grads[w.Raw()] == nil {
		t.Fatal("no gradient for W")
	}
	before := append([]float32(nil), w.Data()...)

	opt, err := optim.New(layer.Parameters(), optim.Config{Name: "sgd", LR: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	opt.Step(grads)

	changed := false
	for i, v := range w.Data() {
		if v != before[i] {
			changed = true
		}
	}
	if !changed {
		t.Error("SGD step did not change W")
	}
}

func TestDorefaDense_RankError(t *testing.T) {
	backend := cpu.New()
	layer, err := nn.NewDorefaDense(nn.DefaultDorefaDenseConfig(), backend)
	if err != nil {
		t.Fatal(err)
	}
	x := tensor.Zeros[float32](tensor.Shape{2, 3, 4}, backend)
	if _, err := layer.Forward(x); !errors.Is(err, nn.ErrInputRank) {
		t.Errorf("Forward(rank 3) error = %v, want ErrInputRank", err)
	}
}
