package pass

import (
	"k8s.io/klog/v2"

	"github.com/ember-ml/ember/internal/backend"
	"github.com/ember-ml/ember/internal/ir"
)

// RemovalGater lets a backend veto the removal of instructions its execution
// depends on. Backends that do not implement it allow all legal removals.
type RemovalGater interface {
	AllowsInstructionRemoval(op ir.Opcode) bool
}

// OptimizeProgram runs instruction-level optimization on the generated
// program: dead-instruction elimination to a fixpoint. An instruction is
// removable when it computes an activation no other instruction reads, it is
// not a declaration, and the backend does not veto the removal.
func OptimizeProgram(p *ir.Program, mode backend.Mode, b backend.Backend) {
	_ = mode

	gate, _ := b.(RemovalGater)
	instrs := p.Instrs()
	totalRemoved := 0

	for {
		used := make(map[int]bool)
		for _, in := range instrs {
			for _, a := range in.Args {
				used[a] = true
			}
		}

		kept := instrs[:0:len(instrs)]
		removed := 0
		for _, in := range instrs {
			if removable(p, in, used) && (gate == nil || gate.AllowsInstructionRemoval(in.Op)) {
				removed++
				continue
			}
			kept = append(kept, in)
		}
		instrs = kept
		totalRemoved += removed
		if removed == 0 {
			break
		}
	}

	if totalRemoved > 0 {
		p.SetInstrs(instrs)
		klog.V(2).Infof("optimize program: removed %d dead instructions", totalRemoved)
	}
}

func removable(p *ir.Program, in ir.Instruction, used map[int]bool) bool {
	if in.Op == ir.OpWeight {
		return false
	}
	// Writes to weight storage are observable side effects.
	if p.Value(in.Out).Kind() != ir.Activation {
		return false
	}
	return !used[in.Out]
}
