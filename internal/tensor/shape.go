package tensor

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Shape lists tensor dimensions, outermost first.
//
// Layer nodes are rank 4 by convention: [batch, channel, row, col].
type Shape []int

// NumElements is the product of the dimensions; 1 for a rank-0 shape.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate rejects shapes with a non-positive dimension.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d <= 0 }); i >= 0 {
		return errors.Errorf("shape %v: dimension %d is %d, must be > 0", []int(s), i, s[i])
	}
	return nil
}

// Equal reports whether both shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool { return slices.Equal(s, other) }

// Clone returns a copy that does not alias s.
func (s Shape) Clone() Shape { return slices.Clone(s) }

// ComputeStrides returns the row-major element strides of s.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	step := 1
	for i := len(s) - 1; i >= 0; i-- {
		strides[i] = step
		step *= s[i]
	}
	return strides
}

// String formats the shape as "AxBxCxD", the way shapes are traced in logs.
func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = strconv.Itoa(d)
	}
	return strings.Join(parts, "x")
}
