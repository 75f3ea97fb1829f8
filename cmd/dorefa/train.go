package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/dorefa/internal/serialization"
	"github.com/born-ml/dorefa/internal/train"
)

// trainFlags override the train section of the config.
type trainFlags struct {
	steps     int
	lr        float64
	optimizer string
	resume    string
}

func (f *trainFlags) register(cmd *cobra.Command, defaultSteps int) {
	cmd.Flags().IntVar(&f.steps, "steps", defaultSteps, "training steps (train.steps when negative)")
	cmd.Flags().Float64Var(&f.lr, "lr", 0, "learning rate (train.lr when 0)")
	cmd.Flags().StringVar(&f.optimizer, "optimizer", "", "sgd or adam (train.optimizer when empty)")
	cmd.Flags().StringVar(&f.resume, "resume", "", "continue from a checkpoint")
}

func (a *app) trainOptions(f trainFlags) (train.Options, error) {
	tc := a.cfg.Train
	if f.steps >= 0 {
		tc.Steps = f.steps
	}
	if f.lr > 0 {
		tc.LR = f.lr
	}
	if f.optimizer != "" {
		tc.Optimizer = f.optimizer
	}
	dense, err := a.cfg.Layer.Dense(nil)
	if err != nil {
		return train.Options{}, err
	}
	opts := train.Options{Layer: dense, Train: tc}
	if f.resume != "" {
		if opts.Resume, err = serialization.ReadCheckpoint(f.resume); err != nil {
			return train.Options{}, err
		}
	}
	return opts, nil
}

// save writes the trained layer with the export settings of the config.
func (a *app) save(path string, res *train.Result) (string, error) {
	id, err := serialization.SaveLayer(path, res.Layer, serialization.SaveOptions{
		DType:           a.cfg.Export.DType,
		ExportQuantized: a.cfg.Export.Quantized,
		Step:            res.Step,
		Loss:            res.FinalLoss,
		Optimizer:       res.Optimizer,
	})
	if err != nil {
		return "", err
	}
	a.log.Info("checkpoint saved", "path", path, "id", id, "step", res.Step)
	return id, nil
}

func newTrainCmd(a *app) *cobra.Command {
	var (
		flags trainFlags
		out   string
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the layer to a synthetic regression target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := a.trainOptions(flags)
			if err != nil {
				return err
			}
			res, err := train.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, res.Layer)
			fmt.Fprintf(w, "steps: %d\nfirst loss: %.6f\nfinal loss: %.6f\nbest loss: %.6f\n",
				res.Step, res.FirstLoss, res.FinalLoss, res.BestLoss)
			if out != "" {
				if _, err := a.save(out, res); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags.register(cmd, -1)
	cmd.Flags().StringVarP(&out, "out", "o", "", "write a checkpoint after training")
	return cmd
}
