// Package cpu implements the optimizing CPU backend. It executes with the
// same kernels as the interpreter but parallelized across cores, and it
// rewrites the graph after lowering to fuse matmul+bias chains into a single
// fused fully-connected operator.
package cpu

import (
	"k8s.io/klog/v2"

	"github.com/ember-ml/ember/internal/backend"
	"github.com/ember-ml/ember/internal/backend/interp"
	"github.com/ember-ml/ember/internal/graph"
	"github.com/ember-ml/ember/internal/ir"
	"github.com/ember-ml/ember/internal/parallel"
)

func init() {
	backend.Register(backend.CPU, func(p *ir.Program) backend.Backend {
		return New(p)
	})
}

// Backend is the CPU backend. Execution is shared with the interpreter; the
// backend differs in its parallelism configuration and its post-lowering
// graph rewrites.
type Backend struct {
	*interp.Backend
}

// New creates a CPU backend bound to p.
func New(p *ir.Program) *Backend {
	return &Backend{Backend: interp.NewWithConfig(p, parallel.DefaultConfig())}
}

// TransformPostLowering fuses MatMul followed by a row-broadcast Add into a
// single FusedFC node. It reports whether the graph changed, so the pipeline
// re-runs optimization over the rewritten graph.
func (b *Backend) TransformPostLowering(f *graph.Function, mode backend.Mode) bool {
	fused := 0
	for _, n := range snapshot(f) {
		if n.Op() != graph.OpAdd {
			continue
		}
		mm, ok := n.Input(0).(*graph.Node)
		if !ok || mm.Op() != graph.OpMatMul {
			continue
		}
		// The matmul result must not be observable elsewhere.
		if f.NumUses(mm) != 1 {
			continue
		}
		bias := n.Input(1)
		if len(bias.Shape()) != 1 {
			continue
		}

		fc := f.FusedFC(mm.Input(0), mm.Input(1), bias)
		f.ReplaceAllUses(n, fc)
		fused++
	}

	if fused > 0 {
		klog.V(2).Infof("cpu: fused %d matmul+add chains in %s", fused, f.Name())
	}
	return fused > 0
}

// snapshot copies the node list so the rewrite loop is not confused by the
// nodes it appends.
func snapshot(f *graph.Function) []*graph.Node {
	return append([]*graph.Node(nil), f.Nodes()...)
}
