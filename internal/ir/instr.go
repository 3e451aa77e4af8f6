package ir

import (
	"fmt"
	"strings"
)

// Opcode identifies a primitive instruction.
type Opcode int

// Primitive instructions. OpWeight declares a weight value and performs no
// computation; it anchors the value in the program so backends and the
// artifact writer can lay out storage.
const (
	OpWeight Opcode = iota
	OpCopy
	OpMatMul
	OpAdd
	OpAddRow
	OpRelu
	OpSoftmax
	OpFusedFC
)

// String returns the instruction mnemonic.
func (op Opcode) String() string {
	switch op {
	case OpWeight:
		return "weight"
	case OpCopy:
		return "copy"
	case OpMatMul:
		return "matmul"
	case OpAdd:
		return "add"
	case OpAddRow:
		return "addrow"
	case OpRelu:
		return "relu"
	case OpSoftmax:
		return "softmax"
	case OpFusedFC:
		return "fusedfc"
	default:
		return "unknown"
	}
}

// Instruction is one step of the compiled program. Out and Args index the
// program's value table.
type Instruction struct {
	Op   Opcode
	Out  int
	Args []int
}

// format renders the instruction against a value table, for dumps and tests.
func (in Instruction) format(values []*Value) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%%%s = %s", values[in.Out].Name(), in.Op)
	for i, a := range in.Args {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, " %%%s", values[a].Name())
	}
	return sb.String()
}
