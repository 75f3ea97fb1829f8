package tensor

import "fmt"

// Shape lists the dimensions of a tensor, outermost first.
// The empty shape is a scalar.
type Shape []int

// Rank returns the number of dimensions.
func (s Shape) Rank() int {
	return len(s)
}

// NumElements returns the product of all dimensions (1 for a scalar).
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate reports the first non-positive dimension.
func (s Shape) Validate() error {
	for i, d := range s {
		if d <= 0 {
			return fmt.Errorf("dimension %d is %d, must be > 0", i, d)
		}
	}
	return nil
}

// Equal reports whether both shapes have identical dimensions.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (s Shape) Clone() Shape {
	return append(Shape(nil), s...)
}

// ComputeStrides returns row-major strides in elements.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = acc
		acc *= s[i]
	}
	return strides
}

// BroadcastShapes returns the NumPy-style broadcast of a and b.
//
// Dimensions are aligned from the right; a pair is compatible when equal or
// when one side is 1. The boolean reports whether any expansion happened.
//
//	[3 1] , [3 5] -> [3 5], true
//	[2 4] , [4]   -> [2 4], true
//	[3 4] , [3 5] -> error
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	expanded := len(a) != len(b)

	for i := 1; i <= n; i++ {
		da, db := dimFromRight(a, i), dimFromRight(b, i)
		switch {
		case da == db:
			out[n-i] = da
		case da == 1:
			out[n-i] = db
			expanded = true
		case db == 1:
			out[n-i] = da
			expanded = true
		default:
			return nil, false, fmt.Errorf("shapes %v and %v are not broadcastable (dim %d: %d vs %d)", a, b, n-i, da, db)
		}
	}
	return out, expanded, nil
}

func dimFromRight(s Shape, i int) int {
	if i > len(s) {
		return 1
	}
	return s[len(s)-i]
}
