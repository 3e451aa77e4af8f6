// Copyright 2025 Ember ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend exposes the backend selection surface of the Ember
// compiler: the Kind enumeration, the compilation Mode, and the Backend
// contract. Importing this package registers the built-in interpreter and
// cpu backends.
package backend

import (
	"github.com/ember-ml/ember/internal/backend"

	_ "github.com/ember-ml/ember/internal/backend/cpu"    // register cpu
	_ "github.com/ember-ml/ember/internal/backend/interp" // register interpreter
)

// Backend is a polymorphic hardware/codegen target bound to one compiled
// program.
type Backend = backend.Backend

// Kind enumerates the registered backend implementations.
type Kind = backend.Kind

// Built-in backend kinds.
const (
	// Interpreter is the sequential reference backend.
	Interpreter Kind = backend.Interpreter
	// CPU is the parallel CPU backend with kernel fusion.
	CPU Kind = backend.CPU
)

// Mode selects compilation behavior and is threaded through every pass.
type Mode = backend.Mode

// Compilation modes.
const (
	Training  Mode = backend.Training
	Inference Mode = backend.Inference
)

// ParseKind maps a backend name ("interpreter", "cpu") to its Kind. The
// second result is false for unknown names.
func ParseKind(name string) (Kind, bool) {
	return backend.ParseKind(name)
}
