// Package engine implements the compilation-and-execution orchestrator: it
// owns the compiled program and the backend instance, drives the compilation
// pipeline over a caller-owned graph function, and feeds caller tensors into
// the compiled program for single-shot and batched execution.
package engine

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ember-ml/ember/internal/backend"
	"github.com/ember-ml/ember/internal/graph"
	"github.com/ember-ml/ember/internal/ir"
	"github.com/ember-ml/ember/internal/pass"
	"github.com/ember-ml/ember/internal/tensor"
)

// Engine owns one compiled program and one backend instance. The backend is
// always bound to the engine's current program: resetting or swapping the
// backend kind reconstructs it.
//
// Engines are single-threaded: every method blocks until the whole operation
// completes, and callers sharing an engine across goroutines must serialize
// access themselves.
type Engine struct {
	kind backend.Kind
	prog *ir.Program
	bk   backend.Backend

	// cursor is the batch sample position. It belongs to this engine alone:
	// interleaved batch runs on separate engines must not see each other's
	// position.
	cursor uint
}

// New constructs an engine with an empty program and a backend of the given
// kind bound to it.
func New(kind backend.Kind) *Engine {
	e := &Engine{kind: kind, prog: ir.NewProgram()}
	e.bk = backend.New(kind, e.prog)
	return e
}

// Program returns the engine's compiled program.
func (e *Engine) Program() *ir.Program { return e.prog }

// Backend returns the current backend instance.
func (e *Engine) Backend() backend.Backend { return e.bk }

// SetBackend swaps the backend kind, rebuilding the backend against the
// existing program. The program itself is untouched.
func (e *Engine) SetBackend(kind backend.Kind) {
	e.kind = kind
	e.bk = backend.New(kind, e.prog)
}

// Reset clears the compiled program and rebuilds the backend, same kind,
// against the now-empty program. Every compilation starts here.
func (e *Engine) Reset() {
	e.prog.Clear()
	e.bk = backend.New(e.kind, e.prog)
}

// GenerateIR runs the compilation pipeline over f under mode, leaving the
// engine's program holding the generated instruction sequence. The pipeline
// re-runs graph optimization after any backend hook that reports a rewrite,
// so backends never need to re-implement generic cleanups like dead-code
// elimination.
func (e *Engine) GenerateIR(mode backend.Mode, f *graph.Function) error {
	e.Reset()

	if err := f.Verify(); err != nil {
		return errors.Wrapf(err, "verify %s", f.Name())
	}

	pass.Optimize(f, mode)
	if e.bk.TransformPreLowering(f, mode) {
		klog.V(1).Infof("compile %s: pre-lowering backend rewrite, re-optimizing", f.Name())
		pass.Optimize(f, mode)
	}

	if err := pass.Lower(f, mode, e.bk); err != nil {
		return errors.Wrapf(err, "lower %s", f.Name())
	}
	pass.Optimize(f, mode)

	if e.bk.TransformPostLowering(f, mode) {
		klog.V(1).Infof("compile %s: post-lowering backend rewrite, re-optimizing", f.Name())
		pass.Optimize(f, mode)
	}

	e.prog.Bind(f)
	if err := e.prog.Generate(); err != nil {
		return errors.Wrapf(err, "generate instructions for %s", f.Name())
	}
	pass.OptimizeProgram(e.prog, mode, e.bk)

	klog.V(1).Infof("compiled %s for %s under %s: %d instructions, %d values",
		f.Name(), e.kind, mode, len(e.prog.Instrs()), len(e.prog.Values()))
	return nil
}

// Compile runs the pipeline over f and performs the backend's one-time
// initialization. Afterwards the engine accepts Run and RunBatch calls.
func (e *Engine) Compile(mode backend.Mode, f *graph.Function) error {
	if err := e.GenerateIR(mode, f); err != nil {
		return err
	}
	if err := e.bk.Init(); err != nil {
		return errors.Wrap(err, "initialize backend")
	}
	return nil
}

// Save compiles f and serializes the result as a self-contained artifact
// under dir.
func (e *Engine) Save(mode backend.Mode, f *graph.Function, dir string) error {
	if err := e.GenerateIR(mode, f); err != nil {
		return err
	}
	return e.bk.Save(dir)
}

// Run copies each input tensor wholesale into the payload of the paired
// variable, then executes one forward pass. Only Public variables may be
// written; shapes must match the payloads exactly. Violations are contract
// failures and panic.
func (e *Engine) Run(vars []*graph.Variable, inputs []*tensor.RawTensor) {
	if len(vars) != len(inputs) {
		exceptions.Panicf("run: %d variables but %d inputs", len(vars), len(inputs))
	}
	if e.prog.Empty() {
		exceptions.Panicf("run: program is empty, compile first")
	}

	for i, v := range vars {
		loadVariable(v, inputs[i])
	}
	e.bk.DoForwardPass()
}

// RunBatch executes iterations forward passes, feeding each variable a
// window of consecutive samples from its paired input before every pass. The
// window starts at the engine's sample cursor modulo the input's sample
// count, so repeated calls sweep each input circularly; the cursor advances
// by the batch size (the leading dimension of the first variable's payload)
// after every pass.
func (e *Engine) RunBatch(iterations uint, vars []*graph.Variable, inputs []*tensor.RawTensor) {
	if len(vars) == 0 || len(inputs) == 0 {
		exceptions.Panicf("run batch: variables and inputs must be non-empty")
	}
	if len(vars) != len(inputs) {
		exceptions.Panicf("run batch: %d variables but %d inputs", len(vars), len(inputs))
	}
	if e.prog.Empty() {
		exceptions.Panicf("run batch: program is empty, compile first")
	}
	if len(vars[0].Shape()) == 0 {
		exceptions.Panicf("run batch: variable %q has no batch dimension", vars[0].Name())
	}

	batchSize := uint(vars[0].Shape()[0])
	for iter := uint(0); iter < iterations; iter++ {
		for i, v := range vars {
			loadVariableSlice(v, inputs[i], e.cursor)
		}
		e.bk.DoForwardPass()
		e.cursor += batchSize
	}
}

// loadVariable copies t wholesale into v's payload. The variable must be
// Public and t must match the payload's shape and type exactly.
func loadVariable(v *graph.Variable, t *tensor.RawTensor) {
	if v.Visibility() != graph.Public {
		exceptions.Panicf("cannot write private variable %q", v.Name())
	}
	if !t.Shape().Equal(v.Shape()) || t.DType() != v.DType() {
		exceptions.Panicf("input %s/%s does not match variable %q payload %s/%s",
			t.Shape(), t.DType(), v.Name(), v.Shape(), v.DType())
	}
	v.Payload().CopyFrom(t)
}

// loadVariableSlice fills v's payload with consecutive leading-dimension
// slices of t starting at sample (cursor mod dim0(t)). The trailing
// dimensions of payload and input must match exactly.
func loadVariableSlice(v *graph.Variable, t *tensor.RawTensor, cursor uint) {
	if v.Visibility() != graph.Public {
		exceptions.Panicf("cannot write private variable %q", v.Name())
	}
	if len(t.Shape()) == 0 || !v.Shape().TrailingEqual(t.Shape()) || t.DType() != v.DType() {
		exceptions.Panicf("input %s/%s does not match variable %q payload %s/%s on trailing dimensions",
			t.Shape(), t.DType(), v.Name(), v.Shape(), v.DType())
	}
	slc := int(cursor % uint(t.Shape()[0]))
	v.Payload().CopyConsecutiveSlices(t, slc)
}
