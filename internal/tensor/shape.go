package tensor

import "fmt"

// Shape represents the dimensions of a tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor.
func (s Shape) NumElements() int {
	if len(s) == 0 {
		return 1 // Scalar has 1 element
	}
	n := 1
	for _, dim := range s {
		n *= dim
	}
	return n
}

// Validate checks if the shape is valid (all dimensions > 0).
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim <= 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be > 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
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

// TrailingEqual checks if two shapes agree on every dimension after the
// leading one. Used by slice copies, where only the batch dimension may
// differ between source and destination.
func (s Shape) TrailingEqual(other Shape) bool {
	if len(s) == 0 || len(s) != len(other) {
		return false
	}
	return Shape(s[1:]).Equal(Shape(other[1:]))
}

// SliceElements returns the number of elements in one leading-dimension
// slice: NumElements divided by the leading dimension.
func (s Shape) SliceElements() int {
	if len(s) == 0 {
		return 1
	}
	return Shape(s[1:]).NumElements()
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}

// ComputeStrides calculates row-major strides for the shape.
// Strides define memory layout: stride[i] = product of all dimensions after i.
func (s Shape) ComputeStrides() []int {
	strides := make([]int, len(s))
	if len(s) == 0 {
		return strides
	}

	strides[len(s)-1] = 1
	for i := len(s) - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * s[i+1]
	}
	return strides
}

// String returns the shape in a compact [d0,d1,...] form.
func (s Shape) String() string {
	return fmt.Sprintf("%v", []int(s))
}
