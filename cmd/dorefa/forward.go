package main

import (
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/born-ml/dorefa/internal/backend/cpu"
	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/serialization"
	"github.com/born-ml/dorefa/internal/tensor"
)

func newForwardCmd(a *app) *cobra.Command {
	var (
		checkpoint string
		batch      int
	)
	cmd := &cobra.Command{
		Use:   "forward",
		Short: "Run a random batch through the layer and summarize the output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backend := cpu.New()
			var (
				layer *nn.DorefaDense[*cpu.CPUBackend]
				err   error
			)
			if checkpoint != "" {
				layer, _, err = serialization.LoadLayer(checkpoint, backend, a.log)
			} else {
				layer, err = a.buildLayer(backend)
			}
			if err != nil {
				return err
			}
			if batch <= 0 {
				batch = a.cfg.Train.BatchSize
			}

			rng := rand.New(rand.NewSource(a.cfg.Train.Seed)) //nolint:gosec // G404: synthetic input
			x := tensor.Rand[float32](tensor.Shape{batch, layer.InFeatures()}, -1, 1, rng, backend)
			y, err := layer.Forward(x)
			if err != nil {
				return err
			}

			values := make([]float64, y.NumElements())
			for i, v := range y.Data() {
				values[i] = float64(v)
			}
			mean, std := stat.MeanStdDev(values, nil)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, layer)
			fmt.Fprintf(out, "output shape: %v\n", y.Shape())
			fmt.Fprintf(out, "mean: %.6f\n", mean)
			fmt.Fprintf(out, "stddev: %.6f\n", std)
			return nil
		},
	}
	cmd.Flags().StringVar(&checkpoint, "checkpoint", "", "load the layer from a checkpoint instead of config")
	cmd.Flags().IntVar(&batch, "batch", 0, "batch size (train.batch_size when 0)")
	return cmd
}
