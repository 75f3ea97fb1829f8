package serialization

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/tensor"
)

// optimPrefix scopes optimizer state tensors inside a checkpoint.
const optimPrefix = "optim/"

// quantizedSuffix marks the exported bitW-bit view of a weight.
const quantizedSuffix = "/W_q"

// StateDicter is implemented by optimizers with persistent state.
type StateDicter interface {
	StateDict() map[string]*tensor.RawTensor
}

// SaveOptions controls SaveLayer.
type SaveOptions struct {
	DType string // storage dtype, F32 by default

	// ExportQuantized also stores the quantized weight as "<name>/W_q".
	ExportQuantized bool

	Step      int
	Loss      float64
	Optimizer StateDicter // optional
	Metadata  map[string]string
}

// Checkpoint is a decoded DorefaDense checkpoint.
type Checkpoint struct {
	ID         string
	CreatedAt  time.Time
	Config     nn.DorefaDenseConfig
	InFeatures int
	Step       int
	Loss       float64

	// Params holds the layer state dict, keyed "<name>/W" and "<name>/b".
	Params map[string]*tensor.RawTensor
	// Quantized is the exported quantized weight, or nil.
	Quantized *tensor.RawTensor
	// Optimizer holds optimizer state with the "optim/" prefix removed.
	Optimizer map[string]*tensor.RawTensor
	Metadata  map[string]string
}

// SaveLayer writes a built layer to path and returns the checkpoint ID.
func SaveLayer[B tensor.Backend](path string, layer *nn.DorefaDense[B], opts SaveOptions) (string, error) {
	if !layer.Built() {
		return "", fmt.Errorf("save %s: layer not built", layer.Name())
	}
	tensors := layer.StateDict()
	if opts.ExportQuantized {
		wq, err := layer.QuantizedWeight()
		if err != nil {
			return "", fmt.Errorf("save %s: %w", layer.Name(), err)
		}
		tensors[layer.Name()+quantizedSuffix] = wq.Raw()
	}
	if opts.Optimizer != nil {
		for name, raw := range opts.Optimizer.StateDict() {
			tensors[optimPrefix+name] = raw
		}
	}

	id := uuid.NewString()
	meta := make(map[string]string, len(opts.Metadata)+12)
	for k, v := range opts.Metadata {
		meta[k] = v
	}
	cfg := layer.Config()
	meta[MetaFormat] = FormatDorefaDense
	meta[MetaCheckpointID] = id
	meta[MetaCreatedAt] = time.Now().UTC().Format(time.RFC3339)
	meta[MetaName] = cfg.Name
	meta[MetaBitW] = strconv.Itoa(cfg.BitW)
	meta[MetaBitA] = strconv.Itoa(cfg.BitA)
	meta[MetaUnits] = strconv.Itoa(cfg.Units)
	meta[MetaInFeatures] = strconv.Itoa(layer.InFeatures())
	meta[MetaActivation] = cfg.Activation.String()
	meta[MetaBias] = strconv.FormatBool(cfg.HasBias())
	meta[MetaStep] = strconv.Itoa(opts.Step)
	meta[MetaLoss] = strconv.FormatFloat(opts.Loss, 'g', -1, 64)

	if err := WriteSafeTensors(path, tensors, WriteOptions{DType: opts.DType, Metadata: meta}); err != nil {
		return "", err
	}
	return id, nil
}

// ReadCheckpoint reads and decodes a DorefaDense checkpoint.
func ReadCheckpoint(path string) (*Checkpoint, error) {
	file, err := ReadSafeTensors(path)
	if err != nil {
		return nil, err
	}
	return decodeCheckpoint(file)
}

func decodeCheckpoint(file *File) (*Checkpoint, error) {
	meta := file.Metadata
	if meta[MetaFormat] != FormatDorefaDense {
		return nil, fmt.Errorf("%w: format %q", ErrNotDorefaLayer, meta[MetaFormat])
	}

	ints := make(map[string]int, 5)
	for _, key := range []string{MetaBitW, MetaBitA, MetaUnits, MetaInFeatures, MetaStep} {
		v, err := strconv.Atoi(meta[key])
		if err != nil {
			return nil, fmt.Errorf("%w: metadata %s: %w", ErrNotDorefaLayer, key, err)
		}
		ints[key] = v
	}
	act, err := nn.ParseActivation(meta[MetaActivation])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotDorefaLayer, err)
	}
	hasBias, err := strconv.ParseBool(meta[MetaBias])
	if err != nil {
		return nil, fmt.Errorf("%w: metadata %s: %w", ErrNotDorefaLayer, MetaBias, err)
	}

	cfg := nn.DorefaDenseConfig{
		Name:       meta[MetaName],
		BitW:       ints[MetaBitW],
		BitA:       ints[MetaBitA],
		Units:      ints[MetaUnits],
		Activation: act,
	}
	if !hasBias {
		cfg = cfg.NoBias()
	}

	ckpt := &Checkpoint{
		ID:         meta[MetaCheckpointID],
		Config:     cfg,
		InFeatures: ints[MetaInFeatures],
		Step:       ints[MetaStep],
		Params:     make(map[string]*tensor.RawTensor),
		Optimizer:  make(map[string]*tensor.RawTensor),
		Metadata:   meta,
	}
	if s := meta[MetaCreatedAt]; s != "" {
		if ckpt.CreatedAt, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, fmt.Errorf("metadata %s: %w", MetaCreatedAt, err)
		}
	}
	if s := meta[MetaLoss]; s != "" {
		if ckpt.Loss, err = strconv.ParseFloat(s, 64); err != nil {
			return nil, fmt.Errorf("metadata %s: %w", MetaLoss, err)
		}
	}

	for name, raw := range file.Tensors {
		switch {
		case strings.HasPrefix(name, optimPrefix):
			ckpt.Optimizer[strings.TrimPrefix(name, optimPrefix)] = raw
		case name == cfg.Name+quantizedSuffix:
			ckpt.Quantized = raw
		default:
			ckpt.Params[name] = raw
		}
	}
	return ckpt, nil
}

// NewLayer creates a layer from the checkpoint and loads its parameters.
func NewLayer[B tensor.Backend](ckpt *Checkpoint, backend B, logger *slog.Logger) (*nn.DorefaDense[B], error) {
	cfg := ckpt.Config
	cfg.Logger = logger
	layer, err := nn.NewDorefaDense(cfg, backend)
	if err != nil {
		return nil, err
	}
	if err := layer.LoadStateDict(ckpt.Params); err != nil {
		return nil, err
	}
	if layer.InFeatures() != ckpt.InFeatures {
		return nil, fmt.Errorf("%w: %s holds %d input features, metadata says %d",
			nn.ErrStateDict, cfg.Name, layer.InFeatures(), ckpt.InFeatures)
	}
	return layer, nil
}

// LoadLayer reads path and restores the layer it holds.
func LoadLayer[B tensor.Backend](path string, backend B, logger *slog.Logger) (*nn.DorefaDense[B], *Checkpoint, error) {
	ckpt, err := ReadCheckpoint(path)
	if err != nil {
		return nil, nil, err
	}
	layer, err := NewLayer(ckpt, backend, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}
	if logger != nil {
		logger.Info("checkpoint loaded", "path", path, "id", ckpt.ID, "layer", layer.Name(), "step", ckpt.Step)
	}
	return layer, ckpt, nil
}
