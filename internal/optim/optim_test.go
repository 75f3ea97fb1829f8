package optim_test

import (
	"errors"
	"math"
	"testing"

	"github.com/born-ml/dorefa/internal/autodiff"
	"github.com/born-ml/dorefa/internal/backend/cpu"
	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/optim"
	"github.com/born-ml/dorefa/internal/tensor"
)

type testBackend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

func floatEqual(a, b, eps float32) bool {
	return float32(math.Abs(float64(a-b))) < eps
}

func scalarParam(t *testing.T, name string, v float32, backend testBackend) *nn.Parameter[testBackend] {
	t.Helper()
	x, err := tensor.FromSlice([]float32{v}, tensor.Shape{1}, backend)
	if err != nil {
		t.Fatal(err)
	}
	return nn.NewParameter(name, x)
}

func gradOf(param *nn.Parameter[testBackend], g float32) map[*tensor.RawTensor]*tensor.RawTensor {
	raw := tensor.MustNewRaw(tensor.Shape{1}, tensor.Float32, tensor.CPU)
	raw.AsFloat32()[0] = g
	return map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): raw}
}

func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, "x", 2.0, backend)
	optimizer := optim.NewSGD([]*nn.Parameter[testBackend]{param}, optim.SGDConfig{LR: 0.1})

	optimizer.Step(gradOf(param, 1.0))

	// x = 2.0 - 0.1 * 1.0
	if got := param.Tensor().Item(); !floatEqual(got, 1.9, 1e-6) {
		t.Errorf("SGD update: got %f, want 1.9", got)
	}
	if param.Grad() == nil {
		t.Error("Step should store the gradient on the parameter")
	}
}

func TestSGD_WithMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, "x", 1.0, backend)
	optimizer := optim.NewSGD([]*nn.Parameter[testBackend]{param}, optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	// v1 = 1, x1 = 0.9
	optimizer.Step(gradOf(param, 1.0))
	if got := param.Tensor().Item(); !floatEqual(got, 0.9, 1e-6) {
		t.Errorf("step 1: got %f, want 0.9", got)
	}

	// v2 = 0.9 + 1 = 1.9, x2 = 0.9 - 0.19
	optimizer.Step(gradOf(param, 1.0))
	if got := param.Tensor().Item(); !floatEqual(got, 0.71, 1e-5) {
		t.Errorf("step 2: got %f, want 0.71", got)
	}
}

func TestSGD_SkipsParamsWithoutGradient(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := scalarParam(t, "a", 1.0, backend)
	b := scalarParam(t, "b", 5.0, backend)
	optimizer := optim.NewSGD([]*nn.Parameter[testBackend]{a, b}, optim.SGDConfig{LR: 0.5})

	optimizer.Step(gradOf(a, 1.0))

	if got := a.Tensor().Item(); !floatEqual(got, 0.5, 1e-6) {
		t.Errorf("a = %f, want 0.5", got)
	}
	if got := b.Tensor().Item(); got != 5.0 {
		t.Errorf("b = %f, want unchanged 5.0", got)
	}
}

func TestSGD_ZeroGradAndLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, "x", 1.0, backend)
	optimizer := optim.NewSGD([]*nn.Parameter[testBackend]{param}, optim.SGDConfig{})

	if optimizer.GetLR() != 0.01 {
		t.Errorf("default LR = %f, want 0.01", optimizer.GetLR())
	}
	optimizer.SetLR(0.2)
	if optimizer.GetLR() != 0.2 {
		t.Errorf("LR = %f, want 0.2", optimizer.GetLR())
	}

	optimizer.Step(gradOf(param, 1.0))
	optimizer.ZeroGrad()
	if param.Grad() != nil {
		t.Error("ZeroGrad should clear the gradient")
	}
}

func TestSGD_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, "x", 1.0, backend)
	params := []*nn.Parameter[testBackend]{param}

	first := optim.NewSGD(params, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	first.Step(gradOf(param, 1.0))
	state := first.StateDict()
	if _, ok := state["velocity.x"]; !ok {
		t.Fatalf("state keys = %v, want velocity.x", state)
	}

	second := optim.NewSGD(params, optim.SGDConfig{LR: 0.1, Momentum: 0.9})
	if err := second.LoadStateDict(state); err != nil {
		t.Fatal(err)
	}
	second.Step(gradOf(param, 1.0))

	// Same as the second momentum step: 0.9 - 0.1 * 1.9
	if got := param.Tensor().Item(); !floatEqual(got, 0.71, 1e-5) {
		t.Errorf("after restore: got %f, want 0.71", got)
	}

	bad := map[string]*tensor.RawTensor{"velocity.x": tensor.MustNewRaw(tensor.Shape{2}, tensor.Float32, tensor.CPU)}
	if err := second.LoadStateDict(bad); err == nil {
		t.Error("expected shape mismatch error")
	}
}

func TestAdam_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := scalarParam(t, "x", 1.0, backend)
	optimizer := optim.NewAdam([]*nn.Parameter[testBackend]{param}, optim.AdamConfig{LR: 0.1})

	optimizer.Step(gradOf(param, 0.5))

	// After bias correction the first step moves by lr * sign(g).
	if got := param.Tensor().Item(); !floatEqual(got, 0.9, 1e-5) {
		t.Errorf("Adam step: got %f, want 0.9", got)
	}
	if optimizer.GetTimestep() != 1 {
		t.Errorf("timestep = %d, want 1", optimizer.GetTimestep())
	}
}

func TestAdam_StateDictResume(t *testing.T) {
	backend := autodiff.New(cpu.New())
	a := scalarParam(t, "x", 1.0, backend)
	b := scalarParam(t, "x", 1.0, backend)
	first := optim.NewAdam([]*nn.Parameter[testBackend]{a}, optim.AdamConfig{LR: 0.1})
	second := optim.NewAdam([]*nn.Parameter[testBackend]{b}, optim.AdamConfig{LR: 0.1})

	first.Step(gradOf(a, 0.5))
	second.Step(gradOf(b, 0.5))

	resumed := optim.NewAdam([]*nn.Parameter[testBackend]{b}, optim.AdamConfig{LR: 0.1})
	if err := resumed.LoadStateDict(second.StateDict()); err != nil {
		t.Fatal(err)
	}
	if resumed.GetTimestep() != 1 {
		t.Fatalf("timestep = %d, want 1", resumed.GetTimestep())
	}

	first.Step(gradOf(a, -0.25))
	resumed.Step(gradOf(b, -0.25))
	if got, want := b.Tensor().Item(), a.Tensor().Item(); !floatEqual(got, want, 1e-6) {
		t.Errorf("resumed Adam diverged: got %f, want %f", got, want)
	}
}

func TestNew(t *testing.T) {
	backend := autodiff.New(cpu.New())
	params := []*nn.Parameter[testBackend]{scalarParam(t, "x", 1.0, backend)}

	for _, name := range []string{"", "sgd", "adam"} {
		opt, err := optim.New(params, optim.Config{Name: name, LR: 0.1})
		if err != nil {
			t.Fatalf("New(%q): %v", name, err)
		}
		if opt.GetLR() != 0.1 {
			t.Errorf("New(%q) LR = %f, want 0.1", name, opt.GetLR())
		}
	}

	if _, err := optim.New(params, optim.Config{Name: "lbfgs"}); !errors.Is(err, optim.ErrUnknownOptimizer) {
		t.Errorf("New(lbfgs) error = %v, want ErrUnknownOptimizer", err)
	}
}

// TestConvergence_QuantizedRegression trains a 2-bit layer on a small
// regression problem and checks the loss goes down. The quantized weights
// make the loss piecewise constant in W, so the best loss is compared.
func TestConvergence_QuantizedRegression(t *testing.T) {
	backend := autodiff.New(cpu.New())
	layer, err := nn.NewDorefaDense(nn.DorefaDenseConfig{
		BitW:  2,
		BitA:  4,
		Units: 3,
		WInit: nn.TruncatedNormal{Stddev: 0.1, Seed: 3},
	}, backend)
	if err != nil {
		t.Fatal(err)
	}
	if err := layer.Build(4); err != nil {
		t.Fatal(err)
	}

	x, _ := tensor.FromSlice([]float32{
		0.9, 0.1, 0.5, 0.3,
		0.2, 0.8, 0.4, 0.6,
		0.7, 0.7, 0.1, 0.9,
	}, tensor.Shape{3, 4}, backend)
	target, _ := tensor.FromSlice([]float32{
		0.6, -0.3, 0.2,
		-0.1, 0.5, 0.4,
		0.3, 0.1, -0.4,
	}, tensor.Shape{3, 3}, backend)

	mse := nn.NewMSELoss(backend)
	optimizer := optim.NewSGD(layer.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9})

	var first, best float32
	backend.Tape().StartRecording()
	for step := 0; step < 60; step++ {
		backend.Tape().Clear()
		y, err := layer.Forward(x)
		if err != nil {
			t.Fatal(err)
		}
		loss, err := mse.Forward(y, target)
		if err != nil {
			t.Fatal(err)
		}
		grads, err := autodiff.Backward(loss, backend)
		if err != nil {
			t.Fatal(err)
		}
		optimizer.Step(grads)

		if step == 0 {
			first, best = loss.Item(), loss.Item()
		}
		best = min(best, loss.Item())
	}

	if best >= first {
		t.Errorf("loss did not decrease: first %f, best %f", first, best)
	}
}
