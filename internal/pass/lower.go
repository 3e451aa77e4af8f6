package pass

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ember-ml/ember/internal/backend"
	"github.com/ember-ml/ember/internal/graph"
)

// LoweringPreference lets a backend keep a compound operator intact when it
// can execute it directly. Backends that do not implement it get full
// lowering.
type LoweringPreference interface {
	ShouldLower(n *graph.Node) bool
}

// Lower expands compound high-level operators into sequences of primitive
// operations the backend can execute. Today the only compound operator is
// FullyConnected, which becomes MatMul + Add.
func Lower(f *graph.Function, mode backend.Mode, b backend.Backend) error {
	_ = mode

	pref, _ := b.(LoweringPreference)
	lowered := 0
	for _, n := range f.Nodes() {
		if n.Op() != graph.OpFullyConnected {
			continue
		}
		if pref != nil && !pref.ShouldLower(n) {
			continue
		}
		if len(n.Inputs()) != 3 {
			return errors.Errorf("fc node %q has %d operands, want 3", n.Name(), len(n.Inputs()))
		}

		mm := f.MatMul(n.Input(0), n.Input(1))
		sum := f.Add(mm, n.Input(2))
		f.ReplaceAllUses(n, sum)
		lowered++
	}

	if lowered > 0 {
		klog.V(2).Infof("lower %s: expanded %d compound nodes", f.Name(), lowered)
	}
	return nil
}
