package bundle

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-ml/ember/internal/graph"
	"github.com/ember-ml/ember/internal/ir"
	"github.com/ember-ml/ember/internal/tensor"
)

// testProgram builds a small already-lowered model: relu(in x w + b) saved
// into out.
func testProgram(t *testing.T) *ir.Program {
	t.Helper()

	f := graph.NewFunction("model")
	in := f.AddVariable("in", tensor.Shape{2, 2}, tensor.Float32, graph.Public)
	w := f.AddVariable("w", tensor.Shape{2, 2}, tensor.Float32, graph.Private)
	b := f.AddVariable("b", tensor.Shape{2}, tensor.Float32, graph.Private)
	out := f.AddVariable("out", tensor.Shape{2, 2}, tensor.Float32, graph.Public)

	w.SetPayload(tensor.FromFloat32(tensor.Shape{2, 2}, []float32{2, 0, 0, 2}))
	b.SetPayload(tensor.FromFloat32(tensor.Shape{2}, []float32{1, 1}))

	f.Save(f.Relu(f.Add(f.MatMul(in, w), b)), out)

	p := ir.NewProgram()
	p.Bind(f)
	require.NoError(t, p.Generate())
	return p
}

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	p := testProgram(t)
	require.NoError(t, Write(dir, "model", p))

	b, err := Load(dir, "model")
	require.NoError(t, err)

	cfg := b.Config
	assert.Equal(t, "model", cfg.Name)
	assert.Equal(t, FormatVersion, cfg.FormatVersion)

	// Constants: w (16 bytes) + b (8 bytes). Mutables: in + out.
	assert.Equal(t, int64(24), cfg.ConstantWeightsSize)
	assert.Equal(t, int64(32), cfg.MutableWeightsSize)
	assert.Len(t, b.Weights, 24)

	// The result is the save target, at the tail of the mutable area.
	assert.Equal(t, "out", cfg.ResultName)
	assert.Equal(t, int64(16), cfg.ResultOffset)
	assert.Equal(t, int64(16), cfg.ResultSize)

	assert.Equal(t, len(p.Instrs()), len(b.Instrs))

	sym, ok := cfg.Symbol("w")
	require.True(t, ok)
	assert.Equal(t, KindConstant, sym.Kind)
	assert.Equal(t, []int{2, 2}, sym.Shape)
}

func TestWriteRejectsEmptyProgram(t *testing.T) {
	err := Write(t.TempDir(), "empty", ir.NewProgram())
	assert.Error(t, err)
}

func TestResultFallsBackToLastMutable(t *testing.T) {
	f := graph.NewFunction("vars")
	f.AddVariable("a", tensor.Shape{4, 3}, tensor.Float32, graph.Public)
	f.AddVariable("z", tensor.Shape{2}, tensor.Float32, graph.Public)
	p := ir.NewProgram()
	p.Bind(f)
	require.NoError(t, p.Generate())

	dir := t.TempDir()
	require.NoError(t, Write(dir, "vars", p))
	b, err := Load(dir, "vars")
	require.NoError(t, err)
	assert.Equal(t, "z", b.Config.ResultName)
}

func TestLoadRejectsWeightsSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	p := testProgram(t)
	require.NoError(t, Write(dir, "model", p))
	path := filepath.Join(dir, "model"+weightsSuffix)

	weights, err := os.ReadFile(path)
	require.NoError(t, err)

	// One byte too many.
	require.NoError(t, os.WriteFile(path, append(weights, 0), 0o644))
	_, err = Load(dir, "model")
	require.ErrorContains(t, err, "config declares")

	// One byte too few.
	require.NoError(t, os.WriteFile(path, weights[:len(weights)-1], 0o644))
	_, err = Load(dir, "model")
	require.ErrorContains(t, err, "config declares")
}

func TestLoadRejectsCorruptedWeights(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, "model", testProgram(t)))
	path := filepath.Join(dir, "model"+weightsSuffix)

	weights, err := os.ReadFile(path)
	require.NoError(t, err)
	weights[0] ^= 0xff
	require.NoError(t, os.WriteFile(path, weights, 0o644))

	_, err = Load(dir, "model")
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestLoadRejectsCorruptedProgram(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, "model", testProgram(t)))
	path := filepath.Join(dir, "model"+programSuffix)

	prog, err := os.ReadFile(path)
	require.NoError(t, err)
	prog[len(prog)-5] ^= 0xff
	require.NoError(t, os.WriteFile(path, prog, 0o644))

	_, err = Load(dir, "model")
	require.ErrorContains(t, err, "CRC")
}

func TestProgramCodecRoundTrip(t *testing.T) {
	instrs := []ir.Instruction{
		{Op: ir.OpWeight, Out: 0},
		{Op: ir.OpMatMul, Out: 2, Args: []int{0, 1}},
		{Op: ir.OpFusedFC, Out: 3, Args: []int{0, 1, 2}},
	}
	data, err := encodeProgram(instrs)
	require.NoError(t, err)

	decoded, err := decodeProgram(data, 4)
	require.NoError(t, err)
	assert.Equal(t, instrs, decoded)

	// References beyond the symbol table are rejected.
	_, err = decodeProgram(data, 2)
	assert.Error(t, err)
}

func TestDecodeProgramRejectsOversizedCount(t *testing.T) {
	// A structurally valid file whose count field claims far more
	// instructions than its bytes could hold must fail cleanly instead of
	// sizing an allocation from the claim.
	var buf bytes.Buffer
	buf.WriteString(MagicBytes)
	var b4 [4]byte
	binary.LittleEndian.PutUint32(b4[:], FormatVersion)
	buf.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], 0xFFFFFFFF)
	buf.Write(b4[:])
	binary.LittleEndian.PutUint32(b4[:], crc32.ChecksumIEEE(buf.Bytes()))
	buf.Write(b4[:])

	_, err := decodeProgram(buf.Bytes(), 1)
	require.ErrorContains(t, err, "instruction count")
}

func TestValidateConfigRejectsLyingShape(t *testing.T) {
	cfg := &Config{
		FormatVersion:      FormatVersion,
		MutableWeightsSize: 16,
		Symbols: []Symbol{
			{Name: "out", Kind: KindMutable, Offset: 0, Size: 16, DType: "float32", Shape: []int{100, 100}},
		},
		ResultOffset: 0,
		ResultSize:   16,
	}
	require.ErrorContains(t, ValidateConfig(cfg), "size field")

	cfg.Symbols[0].Shape = []int{4, -1}
	require.ErrorContains(t, ValidateConfig(cfg), "implausible shape")
}

func TestValidateConfigRejectsOverlap(t *testing.T) {
	cfg := &Config{
		FormatVersion:      FormatVersion,
		MutableWeightsSize: 24,
		Symbols: []Symbol{
			{Name: "a", Kind: KindMutable, Offset: 0, Size: 16, DType: "float32", Shape: []int{4}},
			{Name: "b", Kind: KindMutable, Offset: 8, Size: 16, DType: "float32", Shape: []int{4}},
		},
		ResultOffset: 8,
		ResultSize:   16,
	}
	err := ValidateConfig(cfg)
	require.ErrorContains(t, err, "overlap")
}

func TestValidateConfigRejectsOutOfBounds(t *testing.T) {
	cfg := &Config{
		FormatVersion:       FormatVersion,
		ConstantWeightsSize: 8,
		MutableWeightsSize:  4,
		Symbols: []Symbol{
			{Name: "w", Kind: KindConstant, Offset: 0, Size: 16, DType: "float32", Shape: []int{4}},
		},
		ResultOffset: 0,
		ResultSize:   4,
	}
	err := ValidateConfig(cfg)
	require.ErrorContains(t, err, "exceeds")
}

func TestValidateConfigRejectsBadNames(t *testing.T) {
	for _, name := range []string{"", "../escape", "a/b", "nul\x00"} {
		cfg := &Config{
			FormatVersion:      FormatVersion,
			MutableWeightsSize: 4,
			Symbols: []Symbol{
				{Name: name, Kind: KindMutable, Offset: 0, Size: 4, DType: "float32", Shape: []int{1}},
			},
			ResultOffset: 0,
			ResultSize:   4,
		}
		assert.Error(t, ValidateConfig(cfg), "name %q", name)
	}
}

func TestExecutorRunsLoadedBundle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, "model", testProgram(t)))

	b, err := Load(dir, "model")
	require.NoError(t, err)
	ex, err := NewExecutor(b)
	require.NoError(t, err)

	require.NoError(t, ex.SetInput("in", []float32{1, -2, 3, -4}))
	require.NoError(t, ex.Run())

	// relu(x * 2I + [1,1])
	assert.Equal(t, []float32{3, 0, 7, 0}, ex.Result())
}

func TestExecutorRejectsMisalignedResult(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, "model", testProgram(t)))
	b, err := Load(dir, "model")
	require.NoError(t, err)

	b.Config.ResultOffset += 2
	_, err = NewExecutor(b)
	require.ErrorContains(t, err, "not float32-aligned")
}

func TestExecutorRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, "model", testProgram(t)))
	b, err := Load(dir, "model")
	require.NoError(t, err)
	ex, err := NewExecutor(b)
	require.NoError(t, err)

	assert.Error(t, ex.SetInput("missing", []float32{1}))
	assert.Error(t, ex.SetInput("w", make([]float32, 4)))
	assert.Error(t, ex.SetInput("in", []float32{1, 2}))
}
