// Package train fits a DorefaDense layer to a synthetic regression task.
//
// The target is y = x @ T for a fixed random full-precision matrix T, so a
// quantized layer can only approximate it; the gap shrinks as bitW and bitA
// grow.
package train

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"

	"github.com/born-ml/dorefa/internal/autodiff"
	"github.com/born-ml/dorefa/internal/backend/cpu"
	"github.com/born-ml/dorefa/internal/config"
	"github.com/born-ml/dorefa/internal/logger"
	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/optim"
	"github.com/born-ml/dorefa/internal/serialization"
	"github.com/born-ml/dorefa/internal/tensor"
)

// Backend is the recording backend training runs on.
type Backend = *autodiff.AutodiffBackend[*cpu.CPUBackend]

// numBatches is the size of the synthetic dataset, in batches.
const numBatches = 4

// Options configures Run.
type Options struct {
	Layer nn.DorefaDenseConfig
	Train config.TrainConfig

	// Resume continues from a checkpoint instead of a fresh layer. Its
	// in_features must match Train.InFeatures.
	Resume *serialization.Checkpoint
}

// Result summarizes a run.
type Result struct {
	Layer     *nn.DorefaDense[Backend]
	Optimizer optim.Optimizer

	Step      int // global step count, including resumed steps
	FirstLoss float64
	FinalLoss float64
	BestLoss  float64
	Losses    []float64
}

// Run trains for opts.Train.Steps steps on a backend of its own, so
// concurrent runs do not share a tape. The logger comes from ctx.
func Run(ctx context.Context, opts Options) (*Result, error) {
	log := logger.FromContext(ctx)
	tc := opts.Train
	backend := autodiff.New(cpu.New())

	layer, step, err := newLayer(opts, backend, log)
	if err != nil {
		return nil, err
	}
	if err := layer.Build(tc.InFeatures); err != nil {
		return nil, err
	}

	opt, err := optim.New(layer.Parameters(), tc.OptimizerConfig())
	if err != nil {
		return nil, err
	}
	if opts.Resume != nil && len(opts.Resume.Optimizer) > 0 {
		if err := opt.LoadStateDict(opts.Resume.Optimizer); err != nil {
			return nil, fmt.Errorf("resume optimizer: %w", err)
		}
	}

	inputs, targets := Dataset(tc.InFeatures, layer.Units(), tc.BatchSize, tc.Seed, backend)
	mse := nn.NewMSELoss(backend)
	tape := backend.Tape()

	res := &Result{Layer: layer, Optimizer: opt, BestLoss: math.Inf(1)}
	log.Info("training started",
		"layer", layer.Name(), "bit_w", layer.BitW(), "bit_a", layer.BitA(),
		"optimizer", tc.Optimizer, "steps", tc.Steps, "start_step", step)

	tape.StartRecording()
	defer tape.StopRecording()
	for i := 0; i < tc.Steps; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tape.Clear()

		b := i % numBatches
		out, err := layer.Forward(inputs[b])
		if err != nil {
			return nil, err
		}
		loss, err := mse.Forward(out, targets[b])
		if err != nil {
			return nil, err
		}
		grads, err := autodiff.Backward(loss, backend)
		if err != nil {
			return nil, err
		}
		opt.Step(grads)
		step++

		l := float64(loss.Item())
		if i == 0 {
			res.FirstLoss = l
		}
		res.BestLoss = math.Min(res.BestLoss, l)
		res.FinalLoss = l
		res.Losses = append(res.Losses, l)
		if tc.LogEvery > 0 && (i+1)%tc.LogEvery == 0 {
			log.Info("step", "layer", layer.Name(), "step", step, "loss", l)
		}
	}
	tape.Clear()

	res.Step = step
	log.Info("training finished", "layer", layer.Name(), "step", step, "final_loss", res.FinalLoss, "best_loss", res.BestLoss)
	return res, nil
}

func newLayer(opts Options, backend Backend, log *slog.Logger) (*nn.DorefaDense[Backend], int, error) {
	if opts.Resume == nil {
		cfg := opts.Layer
		cfg.Logger = log
		layer, err := nn.NewDorefaDense(cfg, backend)
		return layer, 0, err
	}
	layer, err := serialization.NewLayer(opts.Resume, backend, log)
	if err != nil {
		return nil, 0, fmt.Errorf("resume: %w", err)
	}
	return layer, opts.Resume.Step, nil
}

// Dataset returns numBatches input batches drawn from U[-1, 1) and their
// targets x @ T. The same seed always yields the same data.
func Dataset[B tensor.Backend](inFeatures, units, batchSize int, seed int64, backend B) (inputs, targets []*tensor.Tensor[float32, B]) {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // G404: synthetic data
	plain := cpu.New()
	truth := tensor.Rand[float32](tensor.Shape{inFeatures, units}, -1, 1, rng, plain)
	for range numBatches {
		x := tensor.Rand[float32](tensor.Shape{batchSize, inFeatures}, -1, 1, rng, plain)
		y := x.MatMul(truth)
		inputs = append(inputs, tensor.New[float32](x.Raw(), backend))
		targets = append(targets, tensor.New[float32](y.Raw(), backend))
	}
	return inputs, targets
}
