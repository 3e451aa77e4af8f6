// Package graph provides the high-level computation graph the Ember compiler
// consumes: a Function holding Variables (persistent tensors) and operator
// Nodes. The compilation pipeline mutates a Function in place (optimization,
// lowering, backend rewrites) before instruction generation.
package graph

import (
	"github.com/gomlx/exceptions"

	"github.com/ember-ml/ember/internal/tensor"
)

// Visibility tags a Variable as externally accessible or internal state.
type Visibility int

const (
	// Public variables are inputs and outputs: the execution engine may
	// overwrite their payloads with caller data.
	Public Visibility = iota
	// Private variables are internal state such as learned weights. The run
	// entry points must never overwrite them directly.
	Private
)

// String returns a human-readable visibility name.
func (v Visibility) String() string {
	switch v {
	case Public:
		return "public"
	case Private:
		return "private"
	default:
		return "unknown"
	}
}

// Variable is a graph node carrying a persistent tensor payload.
// The payload outlives individual executions; the compiled program reads
// (and for save targets, writes) it in place.
type Variable struct {
	name       string
	visibility Visibility
	payload    *tensor.RawTensor
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Shape returns the payload shape.
func (v *Variable) Shape() tensor.Shape { return v.payload.Shape() }

// DType returns the payload data type.
func (v *Variable) DType() tensor.DataType { return v.payload.DType() }

// Visibility returns the visibility tag.
func (v *Variable) Visibility() Visibility { return v.visibility }

// Payload returns the persistent tensor. Mutating it mutates graph state.
func (v *Variable) Payload() *tensor.RawTensor { return v.payload }

// SetPayload replaces the persistent tensor. The new payload must keep the
// declared shape and type.
func (v *Variable) SetPayload(t *tensor.RawTensor) {
	if !t.Shape().Equal(v.payload.Shape()) || t.DType() != v.payload.DType() {
		exceptions.Panicf("variable %q: payload %s/%s does not match declared %s/%s",
			v.name, t.Shape(), t.DType(), v.payload.Shape(), v.payload.DType())
	}
	v.payload = t
}
