package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/born-ml/dorefa/internal/serialization"
	"github.com/born-ml/dorefa/internal/train"
)

func newExportCmd(a *app) *cobra.Command {
	var (
		flags     trainFlags
		dtype     string
		quantized bool
	)
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write the layer as a SafeTensors checkpoint, optionally after training",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dtype != "" {
				a.cfg.Export.DType = dtype
			}
			if cmd.Flags().Changed("quantized") {
				a.cfg.Export.Quantized = quantized
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}

			opts, err := a.trainOptions(flags)
			if err != nil {
				return err
			}
			res, err := train.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			id, err := a.save(args[0], res)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", id, args[0])
			return err
		},
	}
	flags.register(cmd, 0)
	cmd.Flags().StringVar(&dtype, "dtype", "", fmt.Sprintf("storage dtype: %s, %s or %s", serialization.DTypeF32, serialization.DTypeF16, serialization.DTypeBF16))
	cmd.Flags().BoolVar(&quantized, "quantized", false, "also store the quantized weight")
	return cmd
}
