package nn

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/born-ml/dorefa/internal/quant"
	"github.com/born-ml/dorefa/internal/tensor"
)

// Defaults applied to zero-valued DorefaDenseConfig fields.
const (
	DefaultBitW  = 1
	DefaultBitA  = 3
	DefaultUnits = 100
	DefaultName  = "dorefa_dense"

	// DefaultWeightStddev is the TruncatedNormal stddev of default weights.
	DefaultWeightStddev = 0.1
)

// DorefaDenseConfig configures a DorefaDense layer. Zero fields take the
// package defaults: 1-bit weights, 3-bit activations, 100 units, weights
// from TruncatedNormal{Stddev: 0.1} and a zero bias.
type DorefaDenseConfig struct {
	BitW  int
	BitA  int
	Units int

	Activation Activation

	// GemmlowpAtInference requests low-precision GEMM kernels for inference.
	// It is accepted for compatibility; Forward reports ErrNotImplemented.
	GemmlowpAtInference bool

	WInit Initializer
	BInit Initializer

	Name string

	// Logger receives build diagnostics. Nil disables logging.
	Logger *slog.Logger

	noBias bool
}

// DefaultDorefaDenseConfig returns the configuration with every default filled in.
func DefaultDorefaDenseConfig() DorefaDenseConfig {
	return DorefaDenseConfig{}.withDefaults()
}

// NoBias returns a copy of c with the bias term disabled.
func (c DorefaDenseConfig) NoBias() DorefaDenseConfig {
	c.noBias = true
	c.BInit = nil
	return c
}

// HasBias reports whether the layer adds a bias vector.
func (c DorefaDenseConfig) HasBias() bool {
	return !c.noBias
}

func (c DorefaDenseConfig) withDefaults() DorefaDenseConfig {
	if c.BitW == 0 {
		c.BitW = DefaultBitW
	}
	if c.BitA == 0 {
		c.BitA = DefaultBitA
	}
	if c.Units == 0 {
		c.Units = DefaultUnits
	}
	if c.WInit == nil {
		c.WInit = TruncatedNormal{Stddev: DefaultWeightStddev}
	}
	if c.BInit == nil && !c.noBias {
		c.BInit = Zeros()
	}
	if c.Name == "" {
		c.Name = DefaultName
	}
	return c
}

// Validate checks bit-widths, units and activation.
func (c DorefaDenseConfig) Validate() error {
	c = c.withDefaults()
	if err := quant.ValidateBits(c.BitW); err != nil {
		return fmt.Errorf("%w: bitW: %w", ErrInvalidConfig, err)
	}
	if err := quant.ValidateBits(c.BitA); err != nil {
		return fmt.Errorf("%w: bitA: %w", ErrInvalidConfig, err)
	}
	if c.Units < 0 {
		return fmt.Errorf("%w: units must be > 0, got %d", ErrInvalidConfig, c.Units)
	}
	if _, ok := activationNames[c.Activation]; !ok {
		return fmt.Errorf("%w: unknown activation %d", ErrInvalidConfig, int(c.Activation))
	}
	return nil
}

// DorefaDense is a fully connected layer following DoReFa-Net:
//
//	y = act(QuantizeActive(CAbs(x), bitA) @ QuantizeWeight(W, bitW) + b)
//
// W [in_features, units] is kept at full precision and trained through the
// quantizers' straight-through gradients; only its quantized view enters
// the multiply. The bias is never quantized.
//
// Parameters are created on the first Forward (or Build), when the input
// feature count is known.
//
//	layer, err := nn.NewDorefaDense(nn.DorefaDenseConfig{BitW: 1, BitA: 2, Units: 64}, backend)
//	y, err := layer.Forward(x) // x: [batch, features] -> y: [batch, 64]
type DorefaDense[B tensor.Backend] struct {
	cfg     DorefaDenseConfig
	backend B

	inFeatures int
	weight     *Parameter[B]
	bias       *Parameter[B]

	lastOutput *tensor.Tensor[float32, B]
}

// NewDorefaDense creates an unbuilt layer.
func NewDorefaDense[B tensor.Backend](cfg DorefaDenseConfig, backend B) (*DorefaDense[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &DorefaDense[B]{cfg: cfg.withDefaults(), backend: backend}, nil
}

// Config returns the resolved configuration.
func (d *DorefaDense[B]) Config() DorefaDenseConfig { return d.cfg }

// Name returns the layer name used to scope parameter names.
func (d *DorefaDense[B]) Name() string { return d.cfg.Name }

// Units returns the output feature count.
func (d *DorefaDense[B]) Units() int { return d.cfg.Units }

// BitW returns the weight bit-width.
func (d *DorefaDense[B]) BitW() int { return d.cfg.BitW }

// BitA returns the activation bit-width.
func (d *DorefaDense[B]) BitA() int { return d.cfg.BitA }

// Activation returns the output activation.
func (d *DorefaDense[B]) Activation() Activation { return d.cfg.Activation }

// Built reports whether the parameters exist.
func (d *DorefaDense[B]) Built() bool { return d.weight != nil }

// InFeatures returns the input feature count, or 0 before the layer is built.
func (d *DorefaDense[B]) InFeatures() int { return d.inFeatures }

// Build creates W and b for inputs with inFeatures features. Building an
// already built layer is a no-op for the same feature count and an error
// otherwise.
func (d *DorefaDense[B]) Build(inFeatures int) error {
	if d.Built() {
		if inFeatures != d.inFeatures {
			return fmt.Errorf("%w: %s built for %d features, got %d", ErrInputFeatures, d.cfg.Name, d.inFeatures, inFeatures)
		}
		return nil
	}
	if inFeatures <= 0 {
		return fmt.Errorf("%w: %s: in_features must be > 0, got %d", ErrInvalidConfig, d.cfg.Name, inFeatures)
	}

	device := d.backend.Device()
	wRaw, err := d.cfg.WInit.Initialize(tensor.Shape{inFeatures, d.cfg.Units}, device)
	if err != nil {
		return fmt.Errorf("%s/W: %w", d.cfg.Name, err)
	}

	var bRaw *tensor.RawTensor
	if d.cfg.HasBias() {
		bRaw, err = d.initBias(device)
		if err != nil {
			return fmt.Errorf("%s/b: %w", d.cfg.Name, err)
		}
	}

	d.inFeatures = inFeatures
	d.weight = NewParameter(d.cfg.Name+"/W", tensor.New[float32](wRaw, d.backend))
	if bRaw != nil {
		d.bias = NewParameter(d.cfg.Name+"/b", tensor.New[float32](bRaw, d.backend))
	}

	if d.cfg.Logger != nil {
		d.cfg.Logger.Debug("layer built",
			"layer", d.cfg.Name,
			"in_features", inFeatures,
			"units", d.cfg.Units,
			"w_init", d.cfg.WInit.Kind(),
			"bias", d.cfg.HasBias(),
		)
	}
	return nil
}

// initBias creates the [units] bias, falling back to shape-less
// initialization when the initializer cannot honor the shape.
func (d *DorefaDense[B]) initBias(device tensor.Device) (*tensor.RawTensor, error) {
	shape := tensor.Shape{d.cfg.Units}
	raw, err := d.cfg.BInit.Initialize(shape, device)
	if err == nil {
		return raw, nil
	}

	shapeless, ok := d.cfg.BInit.(ShapelessInitializer)
	if !ok {
		return nil, err
	}
	raw, fallbackErr := shapeless.InitializeShapeless(device)
	if fallbackErr != nil {
		return nil, errors.Join(err, fallbackErr)
	}
	if raw.NumElements() != d.cfg.Units {
		return nil, fmt.Errorf("%w: bias has %d elements, layer has %d units", ErrInitShape, raw.NumElements(), d.cfg.Units)
	}
	if d.cfg.Logger != nil {
		d.cfg.Logger.Debug("bias initialized without shape", "layer", d.cfg.Name, "init", d.cfg.BInit.Kind(), "reason", err)
	}
	if !raw.Shape().Equal(shape) {
		raw = raw.WithShape(shape)
	}
	return raw, nil
}

// Forward computes the quantized dense transform of input [batch, features].
func (d *DorefaDense[B]) Forward(input *tensor.Tensor[float32, B]) (*tensor.Tensor[float32, B], error) {
	shape := input.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("%w: %s got shape %v, reshape or flatten it first", ErrInputRank, d.cfg.Name, shape)
	}
	if d.cfg.GemmlowpAtInference {
		return nil, fmt.Errorf("%w: %s: gemmlowp inference, use matmul", ErrNotImplemented, d.cfg.Name)
	}
	if err := d.Build(shape[1]); err != nil {
		return nil, err
	}

	xa, err := quant.CAbs(input)
	if err != nil {
		return nil, err
	}
	xq, err := quant.QuantizeActive(xa, d.cfg.BitA)
	if err != nil {
		return nil, err
	}
	wq, err := d.QuantizedWeight()
	if err != nil {
		return nil, err
	}

	out := xq.MatMul(wq)
	if d.bias != nil {
		out = out.Add(d.bias.Tensor())
	}
	out, err = Apply(d.cfg.Activation, out)
	if err != nil {
		return nil, err
	}

	d.lastOutput = out
	return out, nil
}

// QuantizedWeight returns the bitW-bit view of W used by Forward.
func (d *DorefaDense[B]) QuantizedWeight() (*tensor.Tensor[float32, B], error) {
	if !d.Built() {
		return nil, fmt.Errorf("%s: layer not built", d.cfg.Name)
	}
	return quant.QuantizeWeight(d.weight.Tensor(), d.cfg.BitW)
}

// LastOutput returns the most recent Forward result, or nil.
func (d *DorefaDense[B]) LastOutput() *tensor.Tensor[float32, B] {
	return d.lastOutput
}

// Weight returns the full-precision weight parameter, or nil before build.
func (d *DorefaDense[B]) Weight() *Parameter[B] {
	return d.weight
}

// Bias returns the bias parameter, or nil before build or without bias.
func (d *DorefaDense[B]) Bias() *Parameter[B] {
	return d.bias
}

// Parameters returns [W, b], [W] without bias, or nil before build.
func (d *DorefaDense[B]) Parameters() []*Parameter[B] {
	if d.weight == nil {
		return nil
	}
	if d.bias != nil {
		return []*Parameter[B]{d.weight, d.bias}
	}
	return []*Parameter[B]{d.weight}
}

// StateDict returns the parameters keyed by their scoped names.
func (d *DorefaDense[B]) StateDict() map[string]*tensor.RawTensor {
	stateDict := make(map[string]*tensor.RawTensor)
	for _, p := range d.Parameters() {
		stateDict[p.Name()] = p.Tensor().Raw()
	}
	return stateDict
}

// LoadStateDict restores parameters. An unbuilt layer is built from the
// shape of "<name>/W" first.
func (d *DorefaDense[B]) LoadStateDict(stateDict map[string]*tensor.RawTensor) error {
	wKey := d.cfg.Name + "/W"
	wRaw, ok := stateDict[wKey]
	if !ok {
		return fmt.Errorf("%w: missing %s", ErrStateDict, wKey)
	}
	if !d.Built() {
		if wRaw.Shape().Rank() != 2 {
			return fmt.Errorf("%w: %s must be rank 2, got %v", ErrStateDict, wKey, wRaw.Shape())
		}
		if err := d.Build(wRaw.Shape()[0]); err != nil {
			return err
		}
	}
	for _, p := range d.Parameters() {
		raw, ok := stateDict[p.Name()]
		if !ok {
			return fmt.Errorf("%w: missing %s", ErrStateDict, p.Name())
		}
		if err := p.CopyFrom(raw); err != nil {
			return err
		}
	}
	return nil
}

// String describes the layer, e.g.
//
//	DorefaDense(dorefa_dense, n_units: 100, bitW: 1, bitA: 3, act: relu, output shape: [32 100])
func (d *DorefaDense[B]) String() string {
	parts := []string{
		d.cfg.Name,
		fmt.Sprintf("n_units: %d", d.cfg.Units),
		fmt.Sprintf("bitW: %d", d.cfg.BitW),
		fmt.Sprintf("bitA: %d", d.cfg.BitA),
	}
	if d.cfg.Activation == ActNone {
		parts = append(parts, "No Activation")
	} else {
		parts = append(parts, "act: "+d.cfg.Activation.String())
	}
	if d.lastOutput != nil {
		parts = append(parts, fmt.Sprintf("output shape: %v", d.lastOutput.Shape()))
	}
	return "DorefaDense(" + strings.Join(parts, ", ") + ")"
}
