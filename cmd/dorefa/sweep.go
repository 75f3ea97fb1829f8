package main

import (
	"fmt"
	"runtime"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/dorefa/internal/train"
)

type sweepResult struct {
	bitW, bitA int
	res        *train.Result
}

func newSweepCmd(a *app) *cobra.Command {
	var (
		flags trainFlags
		bitWs []int
		bitAs []int
		jobs  int
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Train every (bitW, bitA) pair concurrently and compare losses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := a.trainOptions(flags)
			if err != nil {
				return err
			}
			if base.Resume != nil {
				return fmt.Errorf("sweep: --resume is not supported")
			}

			results := make([]sweepResult, 0, len(bitWs)*len(bitAs))
			for _, w := range bitWs {
				for _, act := range bitAs {
					results = append(results, sweepResult{bitW: w, bitA: act})
				}
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			if jobs <= 0 {
				jobs = runtime.NumCPU()
			}
			g.SetLimit(jobs)
			for i := range results {
				opts := base
				opts.Layer.BitW = results[i].bitW
				opts.Layer.BitA = results[i].bitA
				opts.Layer.Name = fmt.Sprintf("%s_w%d_a%d", base.Layer.Name, results[i].bitW, results[i].bitA)
				g.Go(func() error {
					res, err := train.Run(ctx, opts)
					if err != nil {
						return fmt.Errorf("bitW=%d bitA=%d: %w", opts.Layer.BitW, opts.Layer.BitA, err)
					}
					results[i].res = res
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"LAYER", "BIT W", "BIT A", "FIRST LOSS", "FINAL LOSS", "BEST LOSS"})
			table.SetAlignment(tablewriter.ALIGN_RIGHT)
			for _, r := range results {
				table.Append([]string{
					r.res.Layer.Name(),
					fmt.Sprint(r.bitW),
					fmt.Sprint(r.bitA),
					fmt.Sprintf("%.6f", r.res.FirstLoss),
					fmt.Sprintf("%.6f", r.res.FinalLoss),
					fmt.Sprintf("%.6f", r.res.BestLoss),
				})
			}
			table.Render()
			return nil
		},
	}
	flags.register(cmd, -1)
	cmd.Flags().IntSliceVar(&bitWs, "bit-w", []int{1, 2, 4, 32}, "weight bit-widths")
	cmd.Flags().IntSliceVar(&bitAs, "bit-a", []int{2, 4, 32}, "activation bit-widths")
	cmd.Flags().IntVar(&jobs, "jobs", 0, "parallel runs (number of CPUs when 0)")
	return cmd
}
