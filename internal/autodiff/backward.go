package autodiff

import (
	"errors"

	"github.com/born-ml/dorefa/internal/tensor"
)

var (
	// ErrEmptyTape is returned by Backward when nothing was recorded.
	ErrEmptyTape = errors.New("autodiff: no operations recorded (did you call Tape().StartRecording()?)")

	// ErrNotTapeOutput is returned by Backward when the tensor is not the
	// output of the last recorded operation.
	ErrNotTapeOutput = errors.New("autodiff: tensor is not the last recorded output")
)

// BackwardCapable is a backend that owns a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape returns the gradient tape (implements BackwardCapable).
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward computes d(sum t)/d(x) for every recorded tensor x, seeding the
// output gradient with ones. t must be the output of the last recorded op.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := x.Mul(x)
//	grads, err := autodiff.Backward(y, backend)
//	dx := grads[x.Raw()]
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) (map[*tensor.RawTensor]*tensor.RawTensor, error) {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		return nil, ErrEmptyTape
	}
	if tape.LastOutput() != t.Raw() {
		return nil, ErrNotTapeOutput
	}

	seed, err := tensor.NewRaw(t.Shape(), t.DType(), backend.Device())
	if err != nil {
		return nil, err
	}
	seed.Fill(1)

	return tape.Backward(seed, backend), nil
}
