// Package tensor provides the core tensor types for the Ember compiler.
package tensor

import (
	"fmt"

	"github.com/x448/float16"
)

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Float16Type
	Int32
	Int64
	Uint8
	Bool
)

// Size returns the byte size of one element of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Float16Type:
		return 2
	case Uint8, Bool:
		return 1
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16Type:
		return "float16"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Float16ToFloat32 converts a raw IEEE 754 half-precision bit pattern to float32.
func Float16ToFloat32(bits uint16) float32 {
	return float16.Frombits(bits).Float32()
}

// Float32ToFloat16 converts a float32 to a raw half-precision bit pattern,
// rounding to nearest even.
func Float32ToFloat16(f float32) uint16 {
	return float16.Fromfloat32(f).Bits()
}

// formatElement renders element i of data for debug output.
func (dt DataType) formatElement(r *RawTensor, i int) string {
	switch dt {
	case Float32:
		return fmt.Sprintf("%g", r.AsFloat32()[i])
	case Float64:
		return fmt.Sprintf("%g", r.AsFloat64()[i])
	case Float16Type:
		return fmt.Sprintf("%g", Float16ToFloat32(r.AsUint16()[i]))
	case Int32:
		return fmt.Sprintf("%d", r.AsInt32()[i])
	case Int64:
		return fmt.Sprintf("%d", r.AsInt64()[i])
	case Uint8:
		return fmt.Sprintf("%d", r.AsUint8()[i])
	case Bool:
		return fmt.Sprintf("%t", r.AsBool()[i])
	default:
		return "?"
	}
}
