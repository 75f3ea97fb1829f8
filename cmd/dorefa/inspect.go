package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/born-ml/dorefa/internal/backend/cpu"
	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/serialization"
	"github.com/born-ml/dorefa/internal/tensor"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [checkpoint]",
		Short: "Describe a layer built from config, or a checkpoint",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return inspectCheckpoint(cmd.OutOrStdout(), args[0])
			}
			return a.inspectConfig(cmd.OutOrStdout())
		},
	}
}

func (a *app) inspectConfig(w io.Writer) error {
	layer, err := a.buildLayer(cpu.New())
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, layer); err != nil {
		return err
	}
	return renderParams(w, layer)
}

// buildLayer creates the configured layer and builds it for train.in_features.
func (a *app) buildLayer(backend *cpu.CPUBackend) (*nn.DorefaDense[*cpu.CPUBackend], error) {
	dense, err := a.cfg.Layer.Dense(a.log)
	if err != nil {
		return nil, err
	}
	layer, err := nn.NewDorefaDense(dense, backend)
	if err != nil {
		return nil, err
	}
	if err := layer.Build(a.cfg.Train.InFeatures); err != nil {
		return nil, err
	}
	return layer, nil
}

func renderParams[B tensor.Backend](w io.Writer, layer *nn.DorefaDense[B]) error {
	wq, err := layer.QuantizedWeight()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"PARAM", "SHAPE", "ELEMENTS", "DISTINCT VALUES"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	names := []string{layer.Weight().Name(), layer.Weight().Name() + "_q"}
	values := []*tensor.Tensor[float32, B]{layer.Weight().Tensor(), wq}
	if b := layer.Bias(); b != nil {
		names = append(names, b.Name())
		values = append(values, b.Tensor())
	}
	for i, t := range values {
		table.Append([]string{
			names[i],
			fmt.Sprint(t.Shape()),
			strconv.Itoa(t.NumElements()),
			strconv.Itoa(distinct(t.Data())),
		})
	}
	table.Render()
	return nil
}

func distinct(data []float32) int {
	seen := make(map[float32]struct{}, len(data))
	for _, v := range data {
		seen[v] = struct{}{}
	}
	return len(seen)
}

func inspectCheckpoint(w io.Writer, path string) error {
	file, err := serialization.ReadSafeTensors(path)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(file.Metadata))
	for k := range file.Metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	meta := tablewriter.NewWriter(w)
	meta.SetHeader([]string{"KEY", "VALUE"})
	meta.SetAlignment(tablewriter.ALIGN_LEFT)
	meta.SetBorder(false)
	for _, k := range keys {
		meta.Append([]string{k, file.Metadata[k]})
	}
	meta.Render()

	tensors := tablewriter.NewWriter(w)
	tensors.SetHeader([]string{"TENSOR", "DTYPE", "SHAPE", "BYTES"})
	tensors.SetAlignment(tablewriter.ALIGN_LEFT)
	tensors.SetBorder(false)
	for _, name := range file.Names() {
		h := file.Headers[name]
		tensors.Append([]string{name, h.DType, fmt.Sprint(h.Shape), strconv.FormatInt(h.DataOffsets[1]-h.DataOffsets[0], 10)})
	}
	tensors.Render()
	return nil
}
