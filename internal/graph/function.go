package graph

import (
	"fmt"

	"github.com/gomlx/exceptions"

	"github.com/ember-ml/ember/internal/tensor"
)

// Function is the mutable computation graph for one model. The node list is
// kept in construction order. Backend rewrites may append nodes whose uses
// appear earlier in the list, so consumers resolve operands by reference,
// never by position.
type Function struct {
	name     string
	vars     []*Variable
	nodes    []*Node
	nameSeq  int
	varNames map[string]bool
}

// NewFunction creates an empty Function.
func NewFunction(name string) *Function {
	return &Function{
		name:     name,
		varNames: make(map[string]bool),
	}
}

// Name returns the function name.
func (f *Function) Name() string { return f.name }

// Variables returns the variables in declaration order.
func (f *Function) Variables() []*Variable { return f.vars }

// Nodes returns the operator nodes in topological order.
func (f *Function) Nodes() []*Node { return f.nodes }

// AddVariable declares a new variable with a zero-initialized payload.
// Variable names must be unique within the function.
func (f *Function) AddVariable(name string, shape tensor.Shape, dtype tensor.DataType, vis Visibility) *Variable {
	if f.varNames[name] {
		exceptions.Panicf("function %q: duplicate variable name %q", f.name, name)
	}
	f.varNames[name] = true

	v := &Variable{
		name:       name,
		visibility: vis,
		payload:    tensor.Zeros(shape, dtype),
	}
	f.vars = append(f.vars, v)
	return v
}

func (f *Function) addNode(op Op, inputs []Value, shape tensor.Shape, dtype tensor.DataType) *Node {
	f.nameSeq++
	n := &Node{
		op:     op,
		name:   fmt.Sprintf("%s%d", op, f.nameSeq),
		inputs: inputs,
		shape:  shape.Clone(),
		dtype:  dtype,
	}
	f.nodes = append(f.nodes, n)
	return n
}

// MatMul appends a matrix multiplication node: [M,K] x [K,N] -> [M,N].
func (f *Function) MatMul(a, b Value) *Node {
	as, bs := a.Shape(), b.Shape()
	if len(as) != 2 || len(bs) != 2 || as[1] != bs[0] {
		exceptions.Panicf("matmul: incompatible shapes %s x %s", as, bs)
	}
	return f.addNode(OpMatMul, []Value{a, b}, tensor.Shape{as[0], bs[1]}, a.DType())
}

// Add appends an element-wise addition node. The second operand may either
// match the first exactly or be a rank-1 bias matching the trailing dimension
// of a rank-2 first operand (row broadcast).
func (f *Function) Add(a, b Value) *Node {
	if !addCompatible(a.Shape(), b.Shape()) {
		exceptions.Panicf("add: incompatible shapes %s + %s", a.Shape(), b.Shape())
	}
	return f.addNode(OpAdd, []Value{a, b}, a.Shape(), a.DType())
}

// Relu appends a rectified-linear activation node.
func (f *Function) Relu(x Value) *Node {
	return f.addNode(OpRelu, []Value{x}, x.Shape(), x.DType())
}

// Softmax appends a row-wise softmax node over the trailing dimension.
func (f *Function) Softmax(x Value) *Node {
	return f.addNode(OpSoftmax, []Value{x}, x.Shape(), x.DType())
}

// FullyConnected appends a compound fully-connected node:
// in [M,K] x weights [K,N] + bias [N] -> [M,N]. The lowering pass expands it
// into MatMul + Add.
func (f *Function) FullyConnected(in, weights, bias Value) *Node {
	is, ws, bs := in.Shape(), weights.Shape(), bias.Shape()
	if len(is) != 2 || len(ws) != 2 || is[1] != ws[0] {
		exceptions.Panicf("fc: incompatible shapes %s x %s", is, ws)
	}
	if len(bs) != 1 || bs[0] != ws[1] {
		exceptions.Panicf("fc: bias shape %s does not match output columns %d", bs, ws[1])
	}
	return f.addNode(OpFullyConnected, []Value{in, weights, bias}, tensor.Shape{is[0], ws[1]}, in.DType())
}

// FusedFC appends a fused fully-connected node with the same signature as
// FullyConnected. Backends introduce it post-lowering; it is never produced
// by user graph construction and survives lowering unchanged.
func (f *Function) FusedFC(in, weights, bias Value) *Node {
	is, ws := in.Shape(), weights.Shape()
	return f.addNode(OpFusedFC, []Value{in, weights, bias}, tensor.Shape{is[0], ws[1]}, in.DType())
}

// Identity appends a pass-through node. Mostly useful to optimization tests
// and backend rewrites.
func (f *Function) Identity(x Value) *Node {
	return f.addNode(OpIdentity, []Value{x}, x.Shape(), x.DType())
}

// Save appends a node storing x into the public variable out after each
// forward pass. Save nodes are the roots that keep the rest of the graph
// alive through dead-code elimination.
func (f *Function) Save(x Value, out *Variable) *Node {
	if out.Visibility() != Public {
		exceptions.Panicf("save: target variable %q is private", out.Name())
	}
	if !x.Shape().Equal(out.Shape()) {
		exceptions.Panicf("save: shape %s does not match target %q shape %s", x.Shape(), out.Name(), out.Shape())
	}
	n := f.addNode(OpSave, []Value{x}, x.Shape(), x.DType())
	n.out = out
	return n
}

// ReplaceAllUses rewrites every operand reference to old so it points at
// replacement instead. The node producing old becomes dead and is left for
// dead-code elimination to sweep.
func (f *Function) ReplaceAllUses(old, replacement Value) {
	for _, n := range f.nodes {
		for i, in := range n.inputs {
			if in == old {
				n.replaceInput(i, replacement)
			}
		}
	}
}

// NumUses counts how many operand slots reference v.
func (f *Function) NumUses(v Value) int {
	uses := 0
	for _, n := range f.nodes {
		for _, in := range n.inputs {
			if in == v {
				uses++
			}
		}
	}
	return uses
}

// RemoveNodes deletes every node for which keep returns false, preserving
// order. Callers must ensure removed nodes have no remaining uses.
func (f *Function) RemoveNodes(keep func(*Node) bool) int {
	kept := f.nodes[:0]
	removed := 0
	for _, n := range f.nodes {
		if keep(n) {
			kept = append(kept, n)
		} else {
			removed++
		}
	}
	f.nodes = kept
	return removed
}

func addCompatible(a, b tensor.Shape) bool {
	if a.Equal(b) {
		return true
	}
	// Row-broadcast bias: [M,N] + [N].
	return len(a) == 2 && len(b) == 1 && b[0] == a[1]
}
