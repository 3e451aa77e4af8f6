package bundle

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/ember-ml/ember/internal/ir"
	"github.com/ember-ml/ember/internal/kernels"
	"github.com/ember-ml/ember/internal/parallel"
)

// Executor runs a loaded bundle over three flat memory areas: the constant
// weights from the artifact, a mutable weights area for inputs and outputs,
// and an activations scratch area. It is the runtime half of the bundle
// contract and needs nothing from the compiler.
type Executor struct {
	bundle *Bundle
	cfg    parallel.Config

	mutable     []byte
	activations []byte

	// views[i] is the float32 window of symbol i.
	views [][]float32
}

// NewExecutor allocates the mutable and activation areas for b and prepares
// per-symbol views. Only float32 bundles are executable.
func NewExecutor(b *Bundle) (*Executor, error) {
	if c := b.Config; c.ResultOffset%4 != 0 || c.ResultSize%4 != 0 {
		return nil, errors.Errorf("result region [%d, %d) is not float32-aligned",
			c.ResultOffset, c.ResultOffset+c.ResultSize)
	}

	e := &Executor{
		bundle:      b,
		cfg:         parallel.DefaultConfig(),
		mutable:     make([]byte, b.Config.MutableWeightsSize),
		activations: make([]byte, b.Config.ActivationsSize),
		views:       make([][]float32, len(b.Config.Symbols)),
	}

	for i, s := range b.Config.Symbols {
		if s.DType != "float32" {
			return nil, errors.Errorf("symbol %q is %s, executor supports float32 only", s.Name, s.DType)
		}
		if s.Offset%4 != 0 || s.Size%4 != 0 {
			return nil, errors.Errorf("symbol %q is not float32-aligned", s.Name)
		}
		area := e.area(s.Kind)
		if s.Size == 0 {
			return nil, errors.Errorf("symbol %q has zero size", s.Name)
		}
		e.views[i] = unsafe.Slice((*float32)(unsafe.Pointer(&area[s.Offset])), s.Size/4)
	}
	return e, nil
}

func (e *Executor) area(kind string) []byte {
	switch kind {
	case KindConstant:
		return e.bundle.Weights
	case KindMutable:
		return e.mutable
	default:
		return e.activations
	}
}

// SetInput copies data into the named mutable region.
func (e *Executor) SetInput(name string, data []float32) error {
	s, ok := e.bundle.Config.Symbol(name)
	if !ok {
		return errors.Errorf("bundle has no symbol %q", name)
	}
	if s.Kind != KindMutable {
		return errors.Errorf("symbol %q is %s, only mutable regions accept input", name, s.Kind)
	}
	view, _ := e.View(name)
	if len(data) != len(view) {
		return errors.Errorf("input %q has %d elements, region holds %d", name, len(data), len(view))
	}
	copy(view, data)
	return nil
}

// View returns the float32 window of the named symbol.
func (e *Executor) View(name string) ([]float32, bool) {
	for i, s := range e.bundle.Config.Symbols {
		if s.Name == name {
			return e.views[i], true
		}
	}
	return nil, false
}

// Result returns the float32 window of the bundle's result region.
func (e *Executor) Result() []float32 {
	c := e.bundle.Config
	return unsafe.Slice((*float32)(unsafe.Pointer(&e.mutable[c.ResultOffset])), c.ResultSize/4)
}

// Run executes the bundled program once.
func (e *Executor) Run() error {
	for _, in := range e.bundle.Instrs {
		if err := e.exec(in); err != nil {
			return err
		}
	}
	return nil
}

func (e *Executor) exec(in ir.Instruction) error {
	syms := e.bundle.Config.Symbols
	out := e.views[in.Out]
	arg := func(i int) []float32 { return e.views[in.Args[i]] }
	dims := func(id, axis int) int { return syms[id].Shape[axis] }

	switch in.Op {
	case ir.OpWeight:
		return nil
	case ir.OpCopy:
		kernels.Copy(out, arg(0))
	case ir.OpMatMul:
		a := in.Args[0]
		kernels.MatMul(out, arg(0), arg(1), dims(a, 0), dims(a, 1), dims(in.Args[1], 1), e.cfg)
	case ir.OpAdd:
		kernels.Add(out, arg(0), arg(1))
	case ir.OpAddRow:
		kernels.AddRow(out, arg(0), arg(1), dims(in.Out, 0), dims(in.Out, 1), e.cfg)
	case ir.OpRelu:
		kernels.Relu(out, arg(0))
	case ir.OpSoftmax:
		a := in.Args[0]
		kernels.Softmax(out, arg(0), dims(a, 0), dims(a, 1), e.cfg)
	case ir.OpFusedFC:
		a := in.Args[0]
		kernels.FusedFC(out, arg(0), arg(1), arg(2), dims(a, 0), dims(a, 1), dims(in.Args[1], 1), e.cfg)
	default:
		return errors.Errorf("bundle executor cannot run opcode %d", in.Op)
	}
	return nil
}
