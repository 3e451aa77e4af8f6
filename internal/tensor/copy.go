package tensor

import "fmt"

// CopyFrom copies the entire contents of src into r.
// Shapes and data types must match exactly; a mismatch is a contract
// violation and panics.
func (r *RawTensor) CopyFrom(src *RawTensor) {
	if src == nil {
		panic("copy from nil tensor")
	}
	if r.dtype != src.dtype {
		panic(fmt.Sprintf("copy dtype mismatch: %s vs %s", r.dtype, src.dtype))
	}
	if !r.shape.Equal(src.shape) {
		panic(fmt.Sprintf("copy shape mismatch: %s vs %s", r.shape, src.shape))
	}
	copy(r.data, src.data)
}

// CopyConsecutiveSlices fills r with consecutive leading-dimension slices of
// src, starting at slice index start. The trailing dimensions of r and src
// must match exactly; the leading dimensions may differ. The copy never wraps
// around src: when fewer than dim0(r) slices remain after start, only the
// available slices are copied and the tail of r is left untouched. A dtype or
// trailing-shape mismatch, or a start outside [0, dim0(src)), panics.
func (r *RawTensor) CopyConsecutiveSlices(src *RawTensor, start int) {
	if src == nil {
		panic("copy from nil tensor")
	}
	if r.dtype != src.dtype {
		panic(fmt.Sprintf("slice copy dtype mismatch: %s vs %s", r.dtype, src.dtype))
	}
	if !r.shape.TrailingEqual(src.shape) {
		panic(fmt.Sprintf("slice copy trailing shape mismatch: %s vs %s", r.shape, src.shape))
	}
	if start < 0 || start >= src.shape[0] {
		panic(fmt.Sprintf("slice index %d out of range [0,%d)", start, src.shape[0]))
	}

	sliceBytes := src.stride[0] * src.dtype.Size()
	offset := start * sliceBytes
	n := len(r.data)
	if avail := len(src.data) - offset; avail < n {
		n = avail
	}
	copy(r.data[:n], src.data[offset:offset+n])
}
