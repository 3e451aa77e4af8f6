package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-ml/ember/internal/backend"
	"github.com/ember-ml/ember/internal/backend/interp"
	"github.com/ember-ml/ember/internal/bundle"
	"github.com/ember-ml/ember/internal/graph"
	"github.com/ember-ml/ember/internal/ir"
	"github.com/ember-ml/ember/internal/tensor"

	_ "github.com/ember-ml/ember/internal/backend/cpu"
)

// recordingKind wraps the interpreter and snapshots the first element of a
// designated variable's payload on every forward pass, so tests can observe
// which input slice each batch iteration consumed.
const recordingKind backend.Kind = 900

var (
	recTarget *graph.Variable
	recLog    []float32
)

type recordingBackend struct {
	*interp.Backend
}

func (r *recordingBackend) DoForwardPass() {
	recLog = append(recLog, recTarget.Payload().AsFloat32()[0])
	r.Backend.DoForwardPass()
}

func init() {
	backend.Register(recordingKind, func(p *ir.Program) backend.Backend {
		return &recordingBackend{Backend: interp.New(p)}
	})
}

func assertPanics(t *testing.T, fn func()) {
	t.Helper()
	assert.Panics(t, fn)
}

func TestCompileAndRunSingleVariable(t *testing.T) {
	e := New(backend.Interpreter)

	f := graph.NewFunction("single")
	v := f.AddVariable("v", tensor.Shape{4, 3}, tensor.Float32, graph.Public)

	require.NoError(t, e.Compile(backend.Inference, f))
	require.False(t, e.Program().Empty())

	in := tensor.FromFloat32(tensor.Shape{4, 3}, []float32{
		1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12,
	})
	e.Run([]*graph.Variable{v}, []*tensor.RawTensor{in})

	assert.Equal(t, in.AsFloat32(), v.Payload().AsFloat32())
}

func TestRunBatchCursorSweep(t *testing.T) {
	recLog = nil
	e := New(recordingKind)

	f := graph.NewFunction("sweep")
	v := f.AddVariable("v", tensor.Shape{2, 3}, tensor.Float32, graph.Public)
	recTarget = v

	require.NoError(t, e.Compile(backend.Training, f))

	// Rows of the input start at 0, 3, 6, ... so the first element of the
	// payload identifies the slice index fed into each iteration.
	in := tensor.Arange(tensor.Shape{10, 3})
	e.RunBatch(6, []*graph.Variable{v}, []*tensor.RawTensor{in})

	// Slice indices 0, 2, 4, 6, 8, then wrap to 0.
	assert.Equal(t, []float32{0, 6, 12, 18, 24, 0}, recLog)
	assert.Equal(t, uint(12), e.cursor)
}

func TestRunBatchCursorIsPerEngine(t *testing.T) {
	build := func() (*Engine, *graph.Variable) {
		e := New(backend.Interpreter)
		f := graph.NewFunction("own")
		v := f.AddVariable("v", tensor.Shape{2, 3}, tensor.Float32, graph.Public)
		require.NoError(t, e.Compile(backend.Training, f))
		return e, v
	}

	e1, v1 := build()
	e2, v2 := build()
	in := tensor.Arange(tensor.Shape{10, 3})

	e1.RunBatch(3, []*graph.Variable{v1}, []*tensor.RawTensor{in})
	e2.RunBatch(1, []*graph.Variable{v2}, []*tensor.RawTensor{in})

	assert.Equal(t, uint(6), e1.cursor)
	assert.Equal(t, uint(2), e2.cursor)
	// The second engine started from sample 0 regardless of the first.
	assert.Equal(t, float32(0), v2.Payload().AsFloat32()[0])
}

func buildMLP(t *testing.T) (*graph.Function, *graph.Variable, *graph.Variable) {
	t.Helper()
	f := graph.NewFunction("mlp")
	in := f.AddVariable("in", tensor.Shape{2, 2}, tensor.Float32, graph.Public)
	w := f.AddVariable("w", tensor.Shape{2, 2}, tensor.Float32, graph.Private)
	b := f.AddVariable("b", tensor.Shape{2}, tensor.Float32, graph.Private)
	out := f.AddVariable("out", tensor.Shape{2, 2}, tensor.Float32, graph.Public)

	w.SetPayload(tensor.FromFloat32(tensor.Shape{2, 2}, []float32{1, 0, 0, 1}))
	b.SetPayload(tensor.FromFloat32(tensor.Shape{2}, []float32{1, -10}))

	f.Save(f.Relu(f.FullyConnected(in, w, b)), out)
	return f, in, out
}

func TestRunForwardPass(t *testing.T) {
	for _, kind := range []backend.Kind{backend.Interpreter, backend.CPU} {
		t.Run(kind.String(), func(t *testing.T) {
			e := New(kind)
			f, in, out := buildMLP(t)
			require.NoError(t, e.Compile(backend.Inference, f))

			x := tensor.FromFloat32(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
			e.Run([]*graph.Variable{in}, []*tensor.RawTensor{x})

			// relu(x * I + [1,-10])
			assert.Equal(t, []float32{2, 0, 4, 0}, out.Payload().AsFloat32())
		})
	}
}

func TestCPUBackendFusesAndReoptimizes(t *testing.T) {
	e := New(backend.CPU)
	f, _, _ := buildMLP(t)
	require.NoError(t, e.GenerateIR(backend.Inference, f))

	var fused, matmuls, adds int
	for _, in := range e.Program().Instrs() {
		switch in.Op {
		case ir.OpFusedFC:
			fused++
		case ir.OpMatMul:
			matmuls++
		case ir.OpAdd, ir.OpAddRow:
			adds++
		}
	}
	assert.Equal(t, 1, fused)
	// Re-optimization after the backend rewrite swept the fused-away chain.
	assert.Zero(t, matmuls)
	assert.Zero(t, adds)
}

func TestPipelineDeterminism(t *testing.T) {
	e := New(backend.CPU)
	f, _, _ := buildMLP(t)

	require.NoError(t, e.GenerateIR(backend.Inference, f))
	first := e.Program().String()
	firstCount := len(e.Program().Instrs())

	require.NoError(t, e.GenerateIR(backend.Inference, f))
	assert.Equal(t, firstCount, len(e.Program().Instrs()))
	assert.Equal(t, first, e.Program().String())
}

func TestResetClearsState(t *testing.T) {
	e := New(backend.Interpreter)
	f, _, _ := buildMLP(t)
	require.NoError(t, e.Compile(backend.Inference, f))
	require.False(t, e.Program().Empty())

	before := e.Backend()
	e.Reset()

	assert.True(t, e.Program().Empty())
	assert.NotSame(t, before, e.Backend())
}

func TestSetBackendKeepsProgram(t *testing.T) {
	e := New(backend.Interpreter)
	f, _, _ := buildMLP(t)
	require.NoError(t, e.GenerateIR(backend.Inference, f))

	count := len(e.Program().Instrs())
	e.SetBackend(backend.CPU)

	assert.Equal(t, count, len(e.Program().Instrs()))
	assert.Same(t, e.Program(), e.prog)
}

func TestContractEnforcement(t *testing.T) {
	e := New(backend.Interpreter)
	f := graph.NewFunction("contracts")
	pub := f.AddVariable("pub", tensor.Shape{4, 3}, tensor.Float32, graph.Public)
	priv := f.AddVariable("priv", tensor.Shape{4, 3}, tensor.Float32, graph.Private)

	good := tensor.Zeros(tensor.Shape{4, 3}, tensor.Float32)

	// Execution before compilation.
	assertPanics(t, func() { e.Run([]*graph.Variable{pub}, []*tensor.RawTensor{good}) })

	require.NoError(t, e.Compile(backend.Inference, f))

	// Count mismatch.
	assertPanics(t, func() { e.Run([]*graph.Variable{pub}, nil) })
	// Private variable target.
	assertPanics(t, func() { e.Run([]*graph.Variable{priv}, []*tensor.RawTensor{good}) })
	// Whole-copy shape mismatch.
	bad := tensor.Zeros(tensor.Shape{3, 4}, tensor.Float32)
	assertPanics(t, func() { e.Run([]*graph.Variable{pub}, []*tensor.RawTensor{bad}) })

	// Batch: empty inputs.
	assertPanics(t, func() { e.RunBatch(1, nil, nil) })
	// Batch: private variable target.
	big := tensor.Zeros(tensor.Shape{8, 3}, tensor.Float32)
	assertPanics(t, func() { e.RunBatch(1, []*graph.Variable{priv}, []*tensor.RawTensor{big}) })
	// Batch: trailing-dimension mismatch.
	wide := tensor.Zeros(tensor.Shape{8, 5}, tensor.Float32)
	assertPanics(t, func() { e.RunBatch(1, []*graph.Variable{pub}, []*tensor.RawTensor{wide}) })
}

func TestSaveProducesRunnableBundle(t *testing.T) {
	dir := t.TempDir()

	e := New(backend.Interpreter)
	f, in, out := buildMLP(t)
	require.NoError(t, e.Save(backend.Inference, f, dir))

	// Reference result from a live engine on an identical graph.
	e2 := New(backend.Interpreter)
	f2, in2, out2 := buildMLP(t)
	require.NoError(t, e2.Compile(backend.Inference, f2))
	x := tensor.FromFloat32(tensor.Shape{2, 2}, []float32{1, 2, 3, 4})
	e2.Run([]*graph.Variable{in2}, []*tensor.RawTensor{x})

	b, err := bundle.Load(dir, "mlp")
	require.NoError(t, err)
	ex, err := bundle.NewExecutor(b)
	require.NoError(t, err)

	require.NoError(t, ex.SetInput(in.Name(), x.AsFloat32()))
	require.NoError(t, ex.Run())

	assert.Equal(t, out2.Payload().AsFloat32(), ex.Result())
	assert.Equal(t, out.Name(), b.Config.ResultName)
}
