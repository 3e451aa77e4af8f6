package ir

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/ember-ml/ember/internal/graph"
)

// Program is the ordered, mutable instruction sequence derived from exactly
// one Function. It is bound to the most recently compiled Function; binding
// a new Function replaces the previous association.
type Program struct {
	fn     *graph.Function
	values []*Value
	instrs []Instruction

	varValues  map[*graph.Variable]int
	nodeValues map[*graph.Node]int
}

// NewProgram allocates an empty program bound to no function.
func NewProgram() *Program {
	p := &Program{}
	p.Clear()
	return p
}

// Clear drops the instruction sequence, the value table, and the function
// binding, returning the program to its freshly constructed state.
func (p *Program) Clear() {
	p.fn = nil
	p.values = nil
	p.instrs = nil
	p.varValues = make(map[*graph.Variable]int)
	p.nodeValues = make(map[*graph.Node]int)
}

// Bind associates the program with f. One function is bound at a time.
func (p *Program) Bind(f *graph.Function) {
	p.fn = f
}

// Function returns the currently bound function, nil if none.
func (p *Program) Function() *graph.Function { return p.fn }

// Empty reports whether the program has no instructions.
func (p *Program) Empty() bool { return len(p.instrs) == 0 }

// Instrs returns the instruction sequence.
func (p *Program) Instrs() []Instruction { return p.instrs }

// SetInstrs replaces the instruction sequence. Used by the instruction-level
// optimizer.
func (p *Program) SetInstrs(instrs []Instruction) { p.instrs = instrs }

// Values returns the value table; Value IDs index it.
func (p *Program) Values() []*Value { return p.values }

// Value returns the value with the given ID.
func (p *Program) Value(id int) *Value { return p.values[id] }

// Generate produces the instruction sequence from the bound, fully lowered
// function. Weight values are declared first, in variable declaration order,
// then node results are emitted so every operand precedes its use.
func (p *Program) Generate() error {
	if p.fn == nil {
		return errors.New("no function bound to program")
	}

	for _, v := range p.fn.Variables() {
		kind := ConstantWeight
		if v.Visibility() == graph.Public {
			kind = MutableWeight
		}
		id := p.newValue(v.Name(), kind, v)
		p.varValues[v] = id
		p.instrs = append(p.instrs, Instruction{Op: OpWeight, Out: id})
	}

	for _, n := range p.fn.Nodes() {
		if _, err := p.genNode(n); err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) newValue(name string, kind ValueKind, v *graph.Variable) int {
	id := len(p.values)
	val := &Value{id: id, name: name, kind: kind}
	if v != nil {
		val.shape = v.Shape()
		val.dtype = v.DType()
		val.v = v
	}
	p.values = append(p.values, val)
	return id
}

// genOperand resolves a node operand to a value ID, generating the producing
// node first if it has not been emitted yet. Backend rewrites may leave the
// node list out of topological order, so operand resolution recurses.
func (p *Program) genOperand(v graph.Value) (int, error) {
	switch x := v.(type) {
	case *graph.Variable:
		id, ok := p.varValues[x]
		if !ok {
			return 0, errors.Errorf("variable %q is not declared in the bound function", x.Name())
		}
		return id, nil
	case *graph.Node:
		return p.genNode(x)
	default:
		return 0, errors.Errorf("unsupported operand type %T", v)
	}
}

func (p *Program) genNode(n *graph.Node) (int, error) {
	if id, ok := p.nodeValues[n]; ok {
		return id, nil
	}

	args := make([]int, 0, len(n.Inputs()))
	for _, in := range n.Inputs() {
		id, err := p.genOperand(in)
		if err != nil {
			return 0, err
		}
		args = append(args, id)
	}

	var instr Instruction
	switch n.Op() {
	case graph.OpMatMul:
		instr = Instruction{Op: OpMatMul, Args: args}
	case graph.OpAdd:
		op := OpAdd
		if len(n.Input(1).Shape()) == 1 && len(n.Input(0).Shape()) == 2 {
			op = OpAddRow
		}
		instr = Instruction{Op: op, Args: args}
	case graph.OpRelu:
		instr = Instruction{Op: OpRelu, Args: args}
	case graph.OpSoftmax:
		instr = Instruction{Op: OpSoftmax, Args: args}
	case graph.OpFusedFC:
		instr = Instruction{Op: OpFusedFC, Args: args}
	case graph.OpIdentity:
		instr = Instruction{Op: OpCopy, Args: args}
	case graph.OpSave:
		target, ok := p.varValues[n.SaveTarget()]
		if !ok {
			return 0, errors.Errorf("save target %q is not declared in the bound function", n.SaveTarget().Name())
		}
		p.instrs = append(p.instrs, Instruction{Op: OpCopy, Out: target, Args: args})
		p.nodeValues[n] = target
		return target, nil
	case graph.OpFullyConnected:
		return 0, errors.Errorf("node %q was not lowered before instruction generation", n.Name())
	default:
		return 0, errors.Errorf("node %q has unsupported op %s", n.Name(), n.Op())
	}

	id := len(p.values)
	p.values = append(p.values, &Value{
		id:    id,
		name:  n.Name(),
		kind:  Activation,
		shape: n.Shape(),
		dtype: n.DType(),
	})
	instr.Out = id
	p.instrs = append(p.instrs, instr)
	p.nodeValues[n] = id
	return id, nil
}

// String renders the whole program in a compact textual form.
func (p *Program) String() string {
	var sb strings.Builder
	for _, in := range p.instrs {
		sb.WriteString(in.format(p.values))
		sb.WriteString("\n")
	}
	return sb.String()
}
