package serialization

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Validation limits for security and resource protection.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxDataSize      = 16 << 30
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidateTensorName rejects names that could be abused as paths.
// Scoped names such as "dorefa_dense/W" are allowed.
func ValidateTensorName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Err: ErrInvalidTensorName, Details: "empty name"}
	case len(name) > MaxTensorNameLen:
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name[:32] + "...",
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen)}
	case strings.Contains(name, ".."):
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: "contains '..'"}
	case strings.HasPrefix(name, "/") || strings.Contains(name, "\\"):
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: "absolute path or backslash"}
	case strings.ContainsRune(name, 0):
		return &ValidationError{Err: ErrInvalidTensorName, Tensor: name, Details: "contains null byte"}
	}
	return nil
}

// ValidateTensors checks every entry of a parsed header against a data
// section of dataSize bytes: names, dtype, byte size versus shape, bounds
// and overlaps.
func ValidateTensors(entries map[string]TensorHeader, dataSize int64) error {
	if len(entries) > MaxTensorCount {
		return &ValidationError{Err: ErrTooManyTensors,
			Details: fmt.Sprintf("got %d, max %d", len(entries), MaxTensorCount)}
	}

	names := make([]string, 0, len(entries))
	for name, e := range entries {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		start, end := e.DataOffsets[0], e.DataOffsets[1]
		if start < 0 || end < start {
			return &ValidationError{Err: ErrNegativeOffset, Tensor: name,
				Details: fmt.Sprintf("data_offsets [%d, %d]", start, end)}
		}
		if end > dataSize {
			return &ValidationError{Err: ErrOutOfBounds, Tensor: name,
				Details: fmt.Sprintf("end %d > data size %d", end, dataSize)}
		}
		size, err := dtypeSize(e.DType)
		if err != nil {
			return &ValidationError{Err: ErrUnsupportedDType, Tensor: name, Details: e.DType}
		}
		n := int64(1)
		for _, d := range e.Shape {
			if d <= 0 {
				return &ValidationError{Err: ErrOutOfBounds, Tensor: name,
					Details: fmt.Sprintf("non-positive dimension in shape %v", e.Shape)}
			}
			if d > (math.MaxInt64/int64(size))/n {
				return &ValidationError{Err: ErrOutOfBounds, Tensor: name,
					Details: fmt.Sprintf("shape %v overflows", e.Shape)}
			}
			n *= d
		}
		if n*int64(size) != end-start {
			return &ValidationError{Err: ErrOutOfBounds, Tensor: name,
				Details: fmt.Sprintf("shape %v %s needs %d bytes, offsets span %d", e.Shape, e.DType, n*int64(size), end-start)}
		}
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		return entries[names[i]].DataOffsets[0] < entries[names[j]].DataOffsets[0]
	})
	for i := 0; i+1 < len(names); i++ {
		cur, next := entries[names[i]], entries[names[i+1]]
		if cur.DataOffsets[1] > next.DataOffsets[0] {
			return &ValidationError{Err: ErrOffsetOverlap, Tensor: names[i], Tensor2: names[i+1],
				Details: fmt.Sprintf("[%d, %d) and [%d, %d)",
					cur.DataOffsets[0], cur.DataOffsets[1], next.DataOffsets[0], next.DataOffsets[1])}
		}
	}
	return nil
}
