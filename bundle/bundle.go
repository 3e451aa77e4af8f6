// Copyright 2025 Ember ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package bundle provides the public API for Ember's saved artifacts: the
// files written by the engine's Save, and the loader plus executor that run
// them standalone, without the compiler.
//
// A bundle consists of a JSON configuration record, a constant weights blob,
// and a binary instruction program. The executor reconstructs the artifact's
// three memory areas (constant weights, mutable weights, activations) and
// replays the program.
package bundle

import (
	"github.com/ember-ml/ember/internal/bundle"
)

// Bundle is a loaded, validated artifact ready to execute.
type Bundle = bundle.Bundle

// Config is the bundle's configuration record: area sizes, symbol table, and
// result region.
type Config = bundle.Config

// Symbol describes one storage region of the bundle.
type Symbol = bundle.Symbol

// Area kind strings used in Symbol.Kind.
const (
	KindConstant   = bundle.KindConstant
	KindMutable    = bundle.KindMutable
	KindActivation = bundle.KindActivation
)

// Executor runs a loaded bundle over its three memory areas.
type Executor = bundle.Executor

// ErrChecksumMismatch is returned when the constant weights blob does not
// hash to the checksum recorded in the configuration.
var ErrChecksumMismatch = bundle.ErrChecksumMismatch

// Load reads and validates the bundle named name under dir.
func Load(dir, name string) (*Bundle, error) {
	return bundle.Load(dir, name)
}

// NewExecutor allocates the mutable and activation areas for b.
func NewExecutor(b *Bundle) (*Executor, error) {
	return bundle.NewExecutor(b)
}
