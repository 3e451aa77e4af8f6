// Copyright 2025 Ember ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph provides the public computation-graph API of the Ember
// compiler.
//
// A Function holds Variables (persistent tensors tagged Public or Private)
// and operator Nodes. Callers build a Function, hand it to the execution
// engine for compilation, and afterwards read results out of the Public
// variables the graph saves into.
//
// Example:
//
//	f := graph.NewFunction("mlp")
//	in := f.AddVariable("in", tensor.Shape{2, 4}, tensor.Float32, graph.Public)
//	w := f.AddVariable("w", tensor.Shape{4, 3}, tensor.Float32, graph.Private)
//	b := f.AddVariable("b", tensor.Shape{3}, tensor.Float32, graph.Private)
//	out := f.AddVariable("out", tensor.Shape{2, 3}, tensor.Float32, graph.Public)
//	f.Save(f.Softmax(f.FullyConnected(in, w, b)), out)
package graph

import (
	"github.com/ember-ml/ember/internal/graph"
)

// Function is the mutable computation graph for one model.
type Function = graph.Function

// Variable is a graph node with a persistent tensor payload.
type Variable = graph.Variable

// Node is an operator node.
type Node = graph.Node

// Value is anything usable as a node operand: a Variable or a Node.
type Value = graph.Value

// Visibility tags a Variable as externally accessible or internal state.
type Visibility = graph.Visibility

// Visibility constants.
const (
	// Public variables may be written by the engine's run entry points and
	// read back by the caller.
	Public Visibility = graph.Public
	// Private variables are internal state such as learned weights.
	Private Visibility = graph.Private
)

// NewFunction creates an empty Function.
func NewFunction(name string) *Function {
	return graph.NewFunction(name)
}
