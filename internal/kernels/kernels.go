// Package kernels implements the float32 compute kernels shared by the
// interpreter backends and the bundle executor. All kernels operate on flat
// row-major slices; shape bookkeeping is the caller's job.
package kernels

import (
	"math"

	"github.com/ember-ml/ember/internal/parallel"
)

// MatMul computes out = a x b for a [m,k] and b [k,n], parallelized over
// rows of a.
func MatMul(out, a, b []float32, m, k, n int, cfg parallel.Config) {
	parallel.For(m, func(i int) {
		aRow := a[i*k : (i+1)*k]
		outRow := out[i*n : (i+1)*n]
		for j := range outRow {
			outRow[j] = 0
		}
		for p, av := range aRow {
			if av == 0 {
				continue
			}
			bRow := b[p*n : (p+1)*n]
			for j, bv := range bRow {
				outRow[j] += av * bv
			}
		}
	}, cfg)
}

// Add computes element-wise out = a + b. All slices have equal length.
func Add(out, a, b []float32) {
	for i := range out {
		out[i] = a[i] + b[i]
	}
}

// AddRow computes out = a + bias with bias broadcast across rows:
// a is [m,n], bias is [n].
func AddRow(out, a, bias []float32, m, n int, cfg parallel.Config) {
	parallel.For(m, func(i int) {
		aRow := a[i*n : (i+1)*n]
		outRow := out[i*n : (i+1)*n]
		for j := range outRow {
			outRow[j] = aRow[j] + bias[j]
		}
	}, cfg)
}

// Relu computes element-wise out = max(a, 0).
func Relu(out, a []float32) {
	for i, v := range a {
		if v > 0 {
			out[i] = v
		} else {
			out[i] = 0
		}
	}
}

// Softmax computes a numerically stable row-wise softmax over the trailing
// dimension: a is [m,n].
func Softmax(out, a []float32, m, n int, cfg parallel.Config) {
	parallel.For(m, func(i int) {
		aRow := a[i*n : (i+1)*n]
		outRow := out[i*n : (i+1)*n]

		maxVal := aRow[0]
		for _, v := range aRow[1:] {
			if v > maxVal {
				maxVal = v
			}
		}

		var sum float32
		for j, v := range aRow {
			e := float32(math.Exp(float64(v - maxVal)))
			outRow[j] = e
			sum += e
		}
		for j := range outRow {
			outRow[j] /= sum
		}
	}, cfg)
}

// FusedFC computes out = in x weights + bias in one pass:
// in [m,k], weights [k,n], bias [n].
func FusedFC(out, in, weights, bias []float32, m, k, n int, cfg parallel.Config) {
	parallel.For(m, func(i int) {
		inRow := in[i*k : (i+1)*k]
		outRow := out[i*n : (i+1)*n]
		copy(outRow, bias)
		for p, av := range inRow {
			if av == 0 {
				continue
			}
			wRow := weights[p*n : (p+1)*n]
			for j, wv := range wRow {
				outRow[j] += av * wv
			}
		}
	}, cfg)
}

// Copy copies a into out. Lengths must match.
func Copy(out, a []float32) {
	copy(out, a)
}
