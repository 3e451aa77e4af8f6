// Package ir holds the compiled program: the linear low-level instruction
// sequence generated from one graph.Function, plus the typed value table the
// instructions operate on. A Program is exclusively owned by the execution
// engine; it is cleared on reset and regenerated on every compile.
package ir

import (
	"github.com/ember-ml/ember/internal/graph"
	"github.com/ember-ml/ember/internal/tensor"
)

// ValueKind classifies program values by storage area.
type ValueKind int

const (
	// ConstantWeight values come from private variables: learned parameters
	// baked into the saved artifact's constant area.
	ConstantWeight ValueKind = iota
	// MutableWeight values come from public variables: externally fed inputs
	// and externally read outputs.
	MutableWeight
	// Activation values are intermediate results, alive only during a
	// forward pass.
	Activation
)

// String returns a human-readable kind name.
func (k ValueKind) String() string {
	switch k {
	case ConstantWeight:
		return "constant"
	case MutableWeight:
		return "mutable"
	case Activation:
		return "activation"
	default:
		return "unknown"
	}
}

// Value is one typed storage slot of the program. Weight values wrap a
// graph Variable and share its persistent payload; activation values are
// backed by backend-allocated scratch buffers.
type Value struct {
	id    int
	name  string
	kind  ValueKind
	shape tensor.Shape
	dtype tensor.DataType
	v     *graph.Variable
}

// ID returns the value's index in the program value table.
func (v *Value) ID() int { return v.id }

// Name returns the value name (variable name or node name).
func (v *Value) Name() string { return v.name }

// Kind returns the storage classification.
func (v *Value) Kind() ValueKind { return v.kind }

// Shape returns the value shape.
func (v *Value) Shape() tensor.Shape { return v.shape }

// DType returns the value data type.
func (v *Value) DType() tensor.DataType { return v.dtype }

// Variable returns the backing graph variable for weight values, nil for
// activations.
func (v *Value) Variable() *graph.Variable { return v.v }

// ByteSize returns the storage size of the value in bytes.
func (v *Value) ByteSize() int {
	return v.shape.NumElements() * v.dtype.Size()
}
