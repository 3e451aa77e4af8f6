// Copyright 2025 Ember ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public tensor types of the Ember compiler.
//
// The package exposes the low-level RawTensor used throughout the compiler:
// a contiguous row-major buffer plus shape and runtime type information.
// Variables in a graph hold RawTensor payloads, and the execution engine
// copies caller-supplied RawTensors into them.
//
// Example:
//
//	x := tensor.FromFloat32(tensor.Shape{2, 3}, []float32{1, 2, 3, 4, 5, 6})
//	y := tensor.Zeros(tensor.Shape{2, 3}, tensor.Float32)
//	y.CopyFrom(x)
package tensor

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Float16 DataType = tensor.Float16Type
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Bool    DataType = tensor.Bool
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3} represents a 2×3 matrix.
type Shape = tensor.Shape

// RawTensor is the low-level tensor representation.
type RawTensor = tensor.RawTensor

// NewRaw creates a zero-initialized tensor, validating the shape.
func NewRaw(shape Shape, dtype DataType) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype)
}

// Zeros creates a zero-filled tensor with the given shape and type.
func Zeros(shape Shape, dtype DataType) *RawTensor {
	return tensor.Zeros(shape, dtype)
}

// FromFloat32 creates a Float32 tensor initialized from data.
func FromFloat32(shape Shape, data []float32) *RawTensor {
	return tensor.FromFloat32(shape, data)
}

// Arange creates a Float32 tensor with values 0, 1, 2, ... in row-major order.
func Arange(shape Shape) *RawTensor {
	return tensor.Arange(shape)
}

// Randn creates a Float32 tensor with standard-normal values.
func Randn(shape Shape) *RawTensor {
	return tensor.Randn(shape)
}

// Float16ToFloat32 converts a raw IEEE 754 half-precision bit pattern to float32.
func Float16ToFloat32(bits uint16) float32 {
	return tensor.Float16ToFloat32(bits)
}

// Float32ToFloat16 converts a float32 to a raw half-precision bit pattern.
func Float32ToFloat16(f float32) uint16 {
	return tensor.Float32ToFloat16(f)
}
