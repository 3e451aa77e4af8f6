// Package interp implements the reference interpreter backend: it allocates
// one buffer per program value and executes the instruction sequence with
// sequential float32 kernels. It is the baseline other backends are checked
// against.
package interp

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ember-ml/ember/internal/backend"
	"github.com/ember-ml/ember/internal/bundle"
	"github.com/ember-ml/ember/internal/graph"
	"github.com/ember-ml/ember/internal/ir"
	"github.com/ember-ml/ember/internal/kernels"
	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

func init() {
	backend.Register(backend.Interpreter, func(p *ir.Program) backend.Backend {
		return New(p)
	})
}

// Backend interprets a compiled program. Weight values alias the variable
// payloads of the bound function; activation values get scratch buffers at
// Init time.
type Backend struct {
	prog        *ir.Program
	cfg         parallel.Config
	bufs        []*tensor.RawTensor
	initialized bool
}

// New creates a sequential interpreter backend bound to p.
func New(p *ir.Program) *Backend {
	return NewWithConfig(p, parallel.Sequential())
}

// NewWithConfig creates an interpreter backend with an explicit parallelism
// configuration. The CPU backend builds on this.
func NewWithConfig(p *ir.Program, cfg parallel.Config) *Backend {
	return &Backend{prog: p, cfg: cfg}
}

// Program returns the bound program.
func (b *Backend) Program() *ir.Program { return b.prog }

// TransformPreLowering performs no graph rewrites.
func (b *Backend) TransformPreLowering(*graph.Function, backend.Mode) bool { return false }

// TransformPostLowering performs no graph rewrites.
func (b *Backend) TransformPostLowering(*graph.Function, backend.Mode) bool { return false }

// Init allocates activation buffers and binds weight buffers to their
// variable payloads. The interpreter only computes in float32.
func (b *Backend) Init() error {
	b.bufs = make([]*tensor.RawTensor, len(b.prog.Values()))
	for _, v := range b.prog.Values() {
		switch v.Kind() {
		case ir.Activation:
			if v.DType() != tensor.Float32 {
				return errors.Errorf("interpreter supports float32 only, value %q is %s", v.Name(), v.DType())
			}
			b.bufs[v.ID()] = tensor.Zeros(v.Shape(), v.DType())
		default:
			b.bufs[v.ID()] = v.Variable().Payload()
		}
	}
	b.initialized = true
	klog.V(1).Infof("interp: initialized %d value buffers", len(b.bufs))
	return nil
}

// DoForwardPass executes the bound program once, mutating variable payloads
// in place. Init must have been called.
func (b *Backend) DoForwardPass() {
	if !b.initialized {
		exceptions.Panicf("forward pass before backend initialization")
	}

	for _, in := range b.prog.Instrs() {
		b.exec(in)
	}
}

func (b *Backend) exec(in ir.Instruction) {
	out := b.bufs[in.Out]
	switch in.Op {
	case ir.OpWeight:
		// Declaration only.
	case ir.OpCopy:
		out.CopyFrom(b.bufs[in.Args[0]])
	case ir.OpMatMul:
		a, w := b.bufs[in.Args[0]], b.bufs[in.Args[1]]
		m, k, n := a.Shape()[0], a.Shape()[1], w.Shape()[1]
		kernels.MatMul(out.AsFloat32(), a.AsFloat32(), w.AsFloat32(), m, k, n, b.cfg)
	case ir.OpAdd:
		kernels.Add(out.AsFloat32(), b.bufs[in.Args[0]].AsFloat32(), b.bufs[in.Args[1]].AsFloat32())
	case ir.OpAddRow:
		m, n := out.Shape()[0], out.Shape()[1]
		kernels.AddRow(out.AsFloat32(), b.bufs[in.Args[0]].AsFloat32(), b.bufs[in.Args[1]].AsFloat32(), m, n, b.cfg)
	case ir.OpRelu:
		kernels.Relu(out.AsFloat32(), b.bufs[in.Args[0]].AsFloat32())
	case ir.OpSoftmax:
		a := b.bufs[in.Args[0]]
		m, n := a.Shape()[0], a.Shape()[1]
		kernels.Softmax(out.AsFloat32(), a.AsFloat32(), m, n, b.cfg)
	case ir.OpFusedFC:
		a, w, bias := b.bufs[in.Args[0]], b.bufs[in.Args[1]], b.bufs[in.Args[2]]
		m, k, n := a.Shape()[0], a.Shape()[1], w.Shape()[1]
		kernels.FusedFC(out.AsFloat32(), a.AsFloat32(), w.AsFloat32(), bias.AsFloat32(), m, k, n, b.cfg)
	default:
		exceptions.Panicf("interpreter cannot execute opcode %s", in.Op)
	}
}

// Save serializes the bound program and its constant weights as a bundle
// under dir.
func (b *Backend) Save(dir string) error {
	fn := b.prog.Function()
	if fn == nil {
		return errors.New("no function bound to program")
	}
	return bundle.Write(dir, fn.Name(), b.prog)
}
