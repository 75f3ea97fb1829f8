package nn

import "errors"

var (
	// ErrInputRank is returned when a dense layer receives input that is not
	// [batch, features].
	ErrInputRank = errors.New("nn: input must be rank 2 [batch, features]")

	// ErrInputFeatures is returned when a built layer receives input with a
	// different feature count than it was built for.
	ErrInputFeatures = errors.New("nn: input feature count does not match layer")

	// ErrNotImplemented is returned for accepted but unimplemented options.
	ErrNotImplemented = errors.New("nn: not implemented")

	// ErrInvalidConfig is returned by constructors for unusable settings.
	ErrInvalidConfig = errors.New("nn: invalid layer configuration")

	// ErrInitShape is returned by initializers that cannot produce the
	// requested shape.
	ErrInitShape = errors.New("nn: initializer cannot produce requested shape")

	// ErrUnsupportedBackend is returned when a backend lacks a required kernel.
	ErrUnsupportedBackend = errors.New("nn: backend does not implement required operation")

	// ErrStateDict is returned when a state dict does not match the module.
	ErrStateDict = errors.New("nn: state dict mismatch")

	// ErrShapeMismatch is returned when two tensors that must agree in shape do not.
	ErrShapeMismatch = errors.New("nn: shape mismatch")
)
