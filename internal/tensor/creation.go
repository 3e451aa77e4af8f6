package tensor

import (
	"math"
	"math/rand"
)

// Zeros creates a zero-filled tensor with the given shape and type.
func Zeros(shape Shape, dtype DataType) *RawTensor {
	raw, err := NewRaw(shape, dtype)
	if err != nil {
		panic(err) // Shape validation should prevent this
	}
	return raw
}

// FromFloat32 creates a Float32 tensor initialized from data.
// len(data) must equal shape.NumElements().
func FromFloat32(shape Shape, data []float32) *RawTensor {
	raw := Zeros(shape, Float32)
	if len(data) != raw.NumElements() {
		panic("data length does not match shape")
	}
	copy(raw.AsFloat32(), data)
	return raw
}

// Arange creates a Float32 tensor with values 0, 1, 2, ... filling the shape
// in row-major order. Mostly useful in tests.
func Arange(shape Shape) *RawTensor {
	raw := Zeros(shape, Float32)
	data := raw.AsFloat32()
	for i := range data {
		data[i] = float32(i)
	}
	return raw
}

// Randn creates a Float32 tensor with values from a normal distribution
// (mean=0, std=1) using the Box-Muller transform.
// Note: Uses math/rand (not crypto/rand) - appropriate for ML purposes.
func Randn(shape Shape) *RawTensor {
	raw := Zeros(shape, Float32)
	data := raw.AsFloat32()
	for i := 0; i < len(data); i += 2 {
		u1 := rand.Float64() //nolint:gosec // G404: ML uses math/rand intentionally for reproducibility
		u2 := rand.Float64() //nolint:gosec // G404: ML uses math/rand intentionally for reproducibility
		z0 := math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
		z1 := math.Sqrt(-2.0*math.Log(u1)) * math.Sin(2.0*math.Pi*u2)
		data[i] = float32(z0)
		if i+1 < len(data) {
			data[i+1] = float32(z1)
		}
	}
	return raw
}
