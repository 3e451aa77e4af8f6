package graph

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// Op identifies a high-level operator.
type Op int

// High-level operators. FullyConnected is compound and is expanded by the
// lowering pass; FusedFC is its re-fused form that backends may introduce
// post-lowering when they can execute it as one kernel.
const (
	OpMatMul Op = iota
	OpAdd
	OpRelu
	OpSoftmax
	OpFullyConnected
	OpFusedFC
	OpIdentity
	OpSave
)

// String returns the operator mnemonic.
func (op Op) String() string {
	switch op {
	case OpMatMul:
		return "matmul"
	case OpAdd:
		return "add"
	case OpRelu:
		return "relu"
	case OpSoftmax:
		return "softmax"
	case OpFullyConnected:
		return "fc"
	case OpFusedFC:
		return "fusedfc"
	case OpIdentity:
		return "identity"
	case OpSave:
		return "save"
	default:
		return "unknown"
	}
}

// Value is anything an operator can consume: a Variable or another Node's
// result.
type Value interface {
	Name() string
	Shape() tensor.Shape
	DType() tensor.DataType
}

// Node is one operator application in a Function. Its inputs reference
// Variables or other Nodes; its result shape is inferred at construction.
type Node struct {
	op     Op
	name   string
	inputs []Value
	shape  tensor.Shape
	dtype  tensor.DataType

	// Save target; nil for every other op.
	out *Variable
}

// Op returns the operator kind.
func (n *Node) Op() Op { return n.op }

// Name returns the node name, unique within its Function.
func (n *Node) Name() string { return n.name }

// Shape returns the result shape.
func (n *Node) Shape() tensor.Shape { return n.shape }

// DType returns the result data type.
func (n *Node) DType() tensor.DataType { return n.dtype }

// Inputs returns the operand list.
func (n *Node) Inputs() []Value { return n.inputs }

// Input returns operand i.
func (n *Node) Input(i int) Value { return n.inputs[i] }

// SaveTarget returns the output variable of a save node, nil otherwise.
func (n *Node) SaveTarget() *Variable { return n.out }

// replaceInput swaps operand i. Used by passes and backend rewrites.
func (n *Node) replaceInput(i int, v Value) { n.inputs[i] = v }
