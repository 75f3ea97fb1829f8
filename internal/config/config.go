// Package config loads layer, training and logging settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/dorefa/internal/logger"
	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/optim"
	"github.com/born-ml/dorefa/internal/serialization"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the root of a configuration file.
type Config struct {
	Layer  LayerConfig  `yaml:"layer"`
	Train  TrainConfig  `yaml:"train"`
	Export ExportConfig `yaml:"export"`
	Log    LogConfig    `yaml:"log"`
}

// LayerConfig describes one DorefaDense layer. Zero values take the layer
// defaults; w_init and b_init may be omitted.
type LayerConfig struct {
	Name                string    `yaml:"name"`
	BitW                int       `yaml:"bit_w"`
	BitA                int       `yaml:"bit_a"`
	Units               int       `yaml:"units"`
	Activation          string    `yaml:"activation"`
	GemmlowpAtInference bool      `yaml:"gemmlowp_at_inference"`
	WInit               *InitSpec `yaml:"w_init"`
	BInit               *InitSpec `yaml:"b_init"`
}

// TrainConfig drives the synthetic training loop of the CLI.
type TrainConfig struct {
	InFeatures int     `yaml:"in_features"`
	BatchSize  int     `yaml:"batch_size"`
	Steps      int     `yaml:"steps"`
	Optimizer  string  `yaml:"optimizer"`
	LR         float64 `yaml:"lr"`
	Momentum   float64 `yaml:"momentum"`
	Seed       int64   `yaml:"seed"`
	LogEvery   int     `yaml:"log_every"`
}

// ExportConfig controls checkpoint writing.
type ExportConfig struct {
	DType     string `yaml:"dtype"`
	Quantized bool   `yaml:"quantized"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Layer: LayerConfig{
			Name:       nn.DefaultName,
			BitW:       nn.DefaultBitW,
			BitA:       nn.DefaultBitA,
			Units:      nn.DefaultUnits,
			Activation: nn.ActNone.String(),
		},
		Train: TrainConfig{
			InFeatures: 16,
			BatchSize:  32,
			Steps:      200,
			Optimizer:  "sgd",
			LR:         0.05,
			Momentum:   0.9,
			Seed:       1,
			LogEvery:   20,
		},
		Export: ExportConfig{DType: serialization.DTypeF32},
		Log:    LogConfig{Level: "info", Format: logger.FormatText},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	//nolint:gosec // G304: reading a user supplied config path is the point
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML on top of Default and validates the result.
// Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := c.Layer.Dense(nil); err != nil {
		return err
	}

	t := c.Train
	switch {
	case t.InFeatures <= 0:
		return fmt.Errorf("%w: train.in_features must be > 0, got %d", ErrInvalid, t.InFeatures)
	case t.BatchSize <= 0:
		return fmt.Errorf("%w: train.batch_size must be > 0, got %d", ErrInvalid, t.BatchSize)
	case t.Steps < 0:
		return fmt.Errorf("%w: train.steps must be >= 0, got %d", ErrInvalid, t.Steps)
	case t.LR <= 0:
		return fmt.Errorf("%w: train.lr must be > 0, got %g", ErrInvalid, t.LR)
	case t.Momentum < 0 || t.Momentum >= 1:
		return fmt.Errorf("%w: train.momentum must be in [0, 1), got %g", ErrInvalid, t.Momentum)
	case t.LogEvery < 0:
		return fmt.Errorf("%w: train.log_every must be >= 0, got %d", ErrInvalid, t.LogEvery)
	}
	switch t.Optimizer {
	case "", "sgd", "adam":
	default:
		return fmt.Errorf("%w: train.optimizer: %w", ErrInvalid, optim.ErrUnknownOptimizer)
	}

	switch c.Export.DType {
	case "", serialization.DTypeF32, serialization.DTypeF16, serialization.DTypeBF16:
	default:
		return fmt.Errorf("%w: export.dtype must be F32, F16 or BF16, got %q", ErrInvalid, c.Export.DType)
	}

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "", logger.FormatText, logger.FormatJSON:
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// Dense converts the layer section into a layer configuration.
func (l LayerConfig) Dense(log *slog.Logger) (nn.DorefaDenseConfig, error) {
	act, err := nn.ParseActivation(l.Activation)
	if err != nil {
		return nn.DorefaDenseConfig{}, fmt.Errorf("%w: layer.activation: %w", ErrInvalid, err)
	}
	cfg := nn.DorefaDenseConfig{
		Name:                l.Name,
		BitW:                l.BitW,
		BitA:                l.BitA,
		Units:               l.Units,
		Activation:          act,
		GemmlowpAtInference: l.GemmlowpAtInference,
		Logger:              log,
	}
	if l.WInit != nil {
		if l.WInit.Kind == KindNone {
			return nn.DorefaDenseConfig{}, fmt.Errorf("%w: layer.w_init: the weight cannot be disabled", ErrInvalid)
		}
		if cfg.WInit, err = l.WInit.Initializer(); err != nil {
			return nn.DorefaDenseConfig{}, fmt.Errorf("layer.w_init: %w", err)
		}
	}
	if l.BInit != nil {
		if l.BInit.Kind == KindNone {
			cfg = cfg.NoBias()
		} else if cfg.BInit, err = l.BInit.Initializer(); err != nil {
			return nn.DorefaDenseConfig{}, fmt.Errorf("layer.b_init: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nn.DorefaDenseConfig{}, fmt.Errorf("%w: layer: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// OptimizerConfig returns the optimizer settings of the train section.
func (t TrainConfig) OptimizerConfig() optim.Config {
	return optim.Config{Name: t.Optimizer, LR: float32(t.LR), Momentum: float32(t.Momentum)}
}
