package pass

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-ml/ember/internal/backend"
	"github.com/ember-ml/ember/internal/graph"
	"github.com/ember-ml/ember/internal/ir"
	"github.com/ember-ml/ember/internal/tensor"
)

// stubBackend is a no-op backend for exercising passes in isolation.
type stubBackend struct {
	keepFC     bool
	vetoRemove bool
}

func (s *stubBackend) TransformPreLowering(*graph.Function, backend.Mode) bool  { return false }
func (s *stubBackend) TransformPostLowering(*graph.Function, backend.Mode) bool { return false }
func (s *stubBackend) Init() error                                              { return nil }
func (s *stubBackend) DoForwardPass()                                           {}
func (s *stubBackend) Save(string) error                                        { return nil }

func (s *stubBackend) ShouldLower(*graph.Node) bool { return !s.keepFC }

func (s *stubBackend) AllowsInstructionRemoval(ir.Opcode) bool { return !s.vetoRemove }

func TestOptimizeRemovesDeadNodes(t *testing.T) {
	f := graph.NewFunction("test")
	in := f.AddVariable("in", tensor.Shape{2, 2}, tensor.Float32, graph.Public)
	out := f.AddVariable("out", tensor.Shape{2, 2}, tensor.Float32, graph.Public)

	live := f.Relu(in)
	f.Softmax(in) // dead: never reaches a save
	f.Save(live, out)

	Optimize(f, backend.Inference)

	require.Len(t, f.Nodes(), 2)
	assert.Equal(t, graph.OpRelu, f.Nodes()[0].Op())
	assert.Equal(t, graph.OpSave, f.Nodes()[1].Op())
}

func TestOptimizeFoldsIdentities(t *testing.T) {
	f := graph.NewFunction("test")
	in := f.AddVariable("in", tensor.Shape{2, 2}, tensor.Float32, graph.Public)
	out := f.AddVariable("out", tensor.Shape{2, 2}, tensor.Float32, graph.Public)

	id := f.Identity(in)
	relu := f.Relu(id)
	f.Save(relu, out)

	Optimize(f, backend.Inference)

	require.Len(t, f.Nodes(), 2)
	assert.Equal(t, graph.Value(in), relu.Input(0))
}

func TestOptimizeKeepsAllSaveRoots(t *testing.T) {
	f := graph.NewFunction("test")
	in := f.AddVariable("in", tensor.Shape{2, 2}, tensor.Float32, graph.Public)
	out1 := f.AddVariable("out1", tensor.Shape{2, 2}, tensor.Float32, graph.Public)
	out2 := f.AddVariable("out2", tensor.Shape{2, 2}, tensor.Float32, graph.Public)

	f.Save(f.Relu(in), out1)
	f.Save(f.Softmax(in), out2)

	Optimize(f, backend.Training)
	assert.Len(t, f.Nodes(), 4)
}

func TestLowerExpandsFullyConnected(t *testing.T) {
	f := graph.NewFunction("test")
	in := f.AddVariable("in", tensor.Shape{2, 4}, tensor.Float32, graph.Public)
	w := f.AddVariable("w", tensor.Shape{4, 3}, tensor.Float32, graph.Private)
	b := f.AddVariable("b", tensor.Shape{3}, tensor.Float32, graph.Private)
	out := f.AddVariable("out", tensor.Shape{2, 3}, tensor.Float32, graph.Public)

	save := f.Save(f.FullyConnected(in, w, b), out)

	require.NoError(t, Lower(f, backend.Inference, &stubBackend{}))
	Optimize(f, backend.Inference)

	ops := map[graph.Op]int{}
	for _, n := range f.Nodes() {
		ops[n.Op()]++
	}
	assert.Equal(t, 0, ops[graph.OpFullyConnected])
	assert.Equal(t, 1, ops[graph.OpMatMul])
	assert.Equal(t, 1, ops[graph.OpAdd])

	// The save now consumes the lowered add.
	sum, ok := save.Input(0).(*graph.Node)
	require.True(t, ok)
	assert.Equal(t, graph.OpAdd, sum.Op())
}

func TestLowerHonorsBackendPreference(t *testing.T) {
	f := graph.NewFunction("test")
	in := f.AddVariable("in", tensor.Shape{2, 4}, tensor.Float32, graph.Public)
	w := f.AddVariable("w", tensor.Shape{4, 3}, tensor.Float32, graph.Private)
	b := f.AddVariable("b", tensor.Shape{3}, tensor.Float32, graph.Private)
	out := f.AddVariable("out", tensor.Shape{2, 3}, tensor.Float32, graph.Public)
	f.Save(f.FullyConnected(in, w, b), out)

	require.NoError(t, Lower(f, backend.Inference, &stubBackend{keepFC: true}))

	kept := 0
	for _, n := range f.Nodes() {
		if n.Op() == graph.OpFullyConnected {
			kept++
		}
	}
	assert.Equal(t, 1, kept)
}

func genProgram(t *testing.T, build func(f *graph.Function)) *ir.Program {
	t.Helper()
	f := graph.NewFunction("test")
	build(f)
	p := ir.NewProgram()
	p.Bind(f)
	require.NoError(t, p.Generate())
	return p
}

func TestOptimizeProgramRemovesDeadInstructions(t *testing.T) {
	p := genProgram(t, func(f *graph.Function) {
		in := f.AddVariable("in", tensor.Shape{2, 2}, tensor.Float32, graph.Public)
		out := f.AddVariable("out", tensor.Shape{2, 2}, tensor.Float32, graph.Public)
		live := f.Relu(in)
		f.Softmax(f.Relu(in)) // dead chain
		f.Save(live, out)
	})

	before := len(p.Instrs())
	OptimizeProgram(p, backend.Inference, &stubBackend{})

	// The dead relu+softmax chain is gone; declarations and the live chain stay.
	assert.Equal(t, before-2, len(p.Instrs()))
	for _, in := range p.Instrs() {
		if in.Op == ir.OpSoftmax {
			t.Error("dead softmax instruction survived")
		}
	}
}

func TestOptimizeProgramKeepsWeightDeclarations(t *testing.T) {
	p := genProgram(t, func(f *graph.Function) {
		f.AddVariable("lonely", tensor.Shape{4, 3}, tensor.Float32, graph.Public)
	})

	OptimizeProgram(p, backend.Inference, &stubBackend{})
	require.Len(t, p.Instrs(), 1)
	assert.Equal(t, ir.OpWeight, p.Instrs()[0].Op)
}

func TestOptimizeProgramHonorsBackendVeto(t *testing.T) {
	p := genProgram(t, func(f *graph.Function) {
		in := f.AddVariable("in", tensor.Shape{2, 2}, tensor.Float32, graph.Public)
		f.Relu(in) // dead
	})

	before := len(p.Instrs())
	OptimizeProgram(p, backend.Inference, &stubBackend{vetoRemove: true})
	assert.Equal(t, before, len(p.Instrs()))
}
