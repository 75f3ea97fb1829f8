package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/born-ml/dorefa/internal/nn"
	"github.com/born-ml/dorefa/internal/tensor"
)

// Initializer kinds accepted in InitSpec.Kind.
const (
	KindTruncatedNormal = "truncated_normal"
	KindRandomUniform   = "random_uniform"
	KindXavierUniform   = "xavier_uniform"
	KindConstant        = "constant"
	KindZeros           = "zeros"
	KindOnes            = "ones"
	KindValues          = "values"
	KindNone            = "none" // b_init only: no bias
)

// InitSpec names an initializer and its keyword arguments:
//
//	w_init: {kind: truncated_normal, args: {stddev: 0.1, seed: 7}}
type InitSpec struct {
	Kind string         `yaml:"kind"`
	Args map[string]any `yaml:"args"`
}

// allowedArgs lists the argument keys of every kind.
var allowedArgs = map[string][]string{
	KindTruncatedNormal: {"mean", "stddev", "seed"},
	KindRandomUniform:   {"min", "max", "seed"},
	KindXavierUniform:   {"seed"},
	KindConstant:        {"value"},
	KindZeros:           nil,
	KindOnes:            nil,
	KindValues:          {"data", "shape"},
}

// Initializer builds the nn initializer described by s.
func (s InitSpec) Initializer() (nn.Initializer, error) {
	allowed, ok := allowedArgs[s.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown initializer kind %q", ErrInvalid, s.Kind)
	}
	keys := make([]string, 0, len(s.Args))
	for k := range s.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !contains(allowed, k) {
			return nil, fmt.Errorf("%w: %s does not take argument %q (allowed: %s)",
				ErrInvalid, s.Kind, k, strings.Join(allowed, ", "))
		}
	}

	a := args{kind: s.Kind, m: s.Args}
	var init nn.Initializer
	switch s.Kind {
	case KindTruncatedNormal:
		init = nn.TruncatedNormal{Mean: a.float("mean", 0), Stddev: a.float("stddev", nn.DefaultWeightStddev), Seed: a.int64("seed")}
	case KindRandomUniform:
		init = nn.RandomUniform{Min: a.float("min", -0.05), Max: a.float("max", 0.05), Seed: a.int64("seed")}
	case KindXavierUniform:
		init = nn.XavierUniform{Seed: a.int64("seed")}
	case KindConstant:
		init = nn.Constant{Value: a.float("value", 0)}
	case KindZeros:
		init = nn.Zeros()
	case KindOnes:
		init = nn.Ones()
	case KindValues:
		data := a.floats("data")
		init = nn.Values{Data: data, Shape: a.shape("shape")}
	}
	if a.err != nil {
		return nil, a.err
	}
	return init, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// args reads typed values from a YAML map, keeping the first error.
type args struct {
	kind string
	m    map[string]any
	err  error
}

func (a *args) fail(key string, v any, want string) {
	if a.err == nil {
		a.err = fmt.Errorf("%w: %s.%s must be %s, got %v (%T)", ErrInvalid, a.kind, key, want, v, v)
	}
}

func (a *args) float(key string, def float64) float64 {
	v, ok := a.m[key]
	if !ok {
		return def
	}
	f, ok := number(v)
	if !ok {
		a.fail(key, v, "a number")
	}
	return f
}

func (a *args) int64(key string) int64 {
	v, ok := a.m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return int64(n)
	case int64:
		return n
	case uint64:
		return int64(n) //nolint:gosec // G115: seeds wrap
	default:
		a.fail(key, v, "an integer")
		return 0
	}
}

func (a *args) floats(key string) []float32 {
	v, ok := a.m[key]
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		a.fail(key, v, "a list of numbers")
		return nil
	}
	out := make([]float32, len(list))
	for i, item := range list {
		f, ok := number(item)
		if !ok {
			a.fail(key, item, "a list of numbers")
			return nil
		}
		out[i] = float32(f)
	}
	return out
}

// shape reads a list of positive integers.
func (a *args) shape(key string) tensor.Shape {
	v, ok := a.m[key]
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		a.fail(key, v, "a list of positive integers")
		return nil
	}
	shape := make(tensor.Shape, len(list))
	for i, item := range list {
		n, ok := item.(int)
		if !ok || n <= 0 {
			a.fail(key, item, "a list of positive integers")
			return nil
		}
		shape[i] = n
	}
	return shape
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
