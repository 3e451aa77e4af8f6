// Copyright 2025 Ember ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package engine provides the public entry point of the Ember compiler: the
// execution engine that compiles a graph function into a linear instruction
// program, binds it to a backend, and runs it against caller data.
//
// Example:
//
//	e := engine.New(backend.CPU)
//	if err := e.Compile(backend.Inference, f); err != nil {
//		...
//	}
//	e.Run([]*graph.Variable{in}, []*tensor.RawTensor{x})
package engine

import (
	"github.com/ember-ml/ember/internal/engine"

	"github.com/ember-ml/ember/backend"
)

// Engine owns one compiled program and one backend instance, and drives
// compilation and execution. Engines are single-threaded.
type Engine = engine.Engine

// New constructs an engine with an empty program and a backend of the given
// kind bound to it.
func New(kind backend.Kind) *Engine {
	return engine.New(kind)
}
