// Package pass implements the transformation passes the execution engine
// sequences into its compilation pipeline: graph-level optimization,
// lowering of compound operators, and instruction-level optimization of the
// generated program.
package pass

import (
	"k8s.io/klog/v2"

	"github.com/ember-ml/ember/internal/backend"
	"github.com/ember-ml/ember/internal/graph"
)

// Optimize runs the graph-level optimizations on f under mode: identity
// elimination followed by dead-code elimination. It is safe and cheap to run
// repeatedly; the pipeline re-runs it whenever a backend hook reports a
// graph change.
func Optimize(f *graph.Function, mode backend.Mode) {
	_ = mode // Passes are currently mode-independent; the engine threads mode through regardless.

	simplified := eliminateIdentities(f)
	removed := eliminateDeadCode(f)
	if simplified+removed > 0 {
		klog.V(2).Infof("optimize %s: %d identities folded, %d dead nodes removed",
			f.Name(), simplified, removed)
	}
}

// eliminateIdentities forwards every identity node's uses to its operand.
// The orphaned identity nodes are swept by DCE.
func eliminateIdentities(f *graph.Function) int {
	folded := 0
	for _, n := range f.Nodes() {
		if n.Op() == graph.OpIdentity {
			f.ReplaceAllUses(n, n.Input(0))
			folded++
		}
	}
	return folded
}

// eliminateDeadCode removes nodes that cannot reach a save node. Save nodes
// are the graph's roots: they are the only nodes with observable effects.
func eliminateDeadCode(f *graph.Function) int {
	live := make(map[*graph.Node]bool)

	var mark func(v graph.Value)
	mark = func(v graph.Value) {
		n, ok := v.(*graph.Node)
		if !ok || live[n] {
			return
		}
		live[n] = true
		for _, in := range n.Inputs() {
			mark(in)
		}
	}

	for _, n := range f.Nodes() {
		if n.Op() == graph.OpSave {
			mark(n)
		}
	}

	return f.RemoveNodes(func(n *graph.Node) bool { return live[n] })
}
