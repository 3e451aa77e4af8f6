package graph

import (
	"github.com/pkg/errors"
)

// Verify checks the structural well-formedness of the function: operand
// presence, per-operator shape rules, save-target visibility, and payload
// consistency. A verification failure aborts compilation.
func (f *Function) Verify() error {
	// Membership, not ordering: backend rewrites may append nodes out of
	// construction order, and instruction generation resolves operands
	// recursively.
	member := make(map[Value]bool)
	for _, v := range f.vars {
		if v.Payload() == nil {
			return errors.Errorf("variable %q has no payload", v.Name())
		}
		member[v] = true
	}
	for _, n := range f.nodes {
		member[n] = true
	}

	for _, n := range f.nodes {
		for i, in := range n.inputs {
			if in == nil {
				return errors.Errorf("node %q: operand %d is nil", n.name, i)
			}
			if !member[in] {
				return errors.Errorf("node %q: operand %d (%q) is not part of the function", n.name, i, in.Name())
			}
		}
		if err := n.verifyShapes(); err != nil {
			return errors.Wrapf(err, "node %q", n.name)
		}
	}
	return nil
}

func (n *Node) verifyShapes() error {
	switch n.op {
	case OpMatMul:
		a, b := n.inputs[0].Shape(), n.inputs[1].Shape()
		if len(a) != 2 || len(b) != 2 || a[1] != b[0] {
			return errors.Errorf("matmul operands %s x %s", a, b)
		}
	case OpAdd:
		if !addCompatible(n.inputs[0].Shape(), n.inputs[1].Shape()) {
			return errors.Errorf("add operands %s + %s", n.inputs[0].Shape(), n.inputs[1].Shape())
		}
	case OpRelu, OpSoftmax, OpIdentity:
		if !n.inputs[0].Shape().Equal(n.shape) {
			return errors.Errorf("result shape %s does not match operand %s", n.shape, n.inputs[0].Shape())
		}
	case OpFullyConnected, OpFusedFC:
		in, w, b := n.inputs[0].Shape(), n.inputs[1].Shape(), n.inputs[2].Shape()
		if len(in) != 2 || len(w) != 2 || in[1] != w[0] {
			return errors.Errorf("fc operands %s x %s", in, w)
		}
		if len(b) != 1 || b[0] != w[1] {
			return errors.Errorf("fc bias %s does not match output columns %d", b, w[1])
		}
	case OpSave:
		if n.out == nil {
			return errors.New("save node has no target variable")
		}
		if n.out.Visibility() != Public {
			return errors.Errorf("save target %q is private", n.out.Name())
		}
		if !n.inputs[0].Shape().Equal(n.out.Shape()) {
			return errors.Errorf("save source %s does not match target %q shape %s",
				n.inputs[0].Shape(), n.out.Name(), n.out.Shape())
		}
	}
	return nil
}
