// Package backend defines the contract between the execution engine and a
// hardware/codegen target: the Backend interface, the Kind and Mode
// enumerations, and the factory registry that instantiates backends.
package backend

import (
	"github.com/gomlx/exceptions"

	"github.com/ember-ml/ember/internal/graph"
	"github.com/ember-ml/ember/internal/ir"
)

// Mode selects compilation behavior and is threaded through every pass.
type Mode int

const (
	// Training compiles the function for repeated batched execution.
	Training Mode = iota
	// Inference compiles the function for single-shot forward passes.
	Inference
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case Training:
		return "training"
	case Inference:
		return "inference"
	default:
		return "unknown"
	}
}

// Kind enumerates the registered backend implementations.
type Kind int

const (
	// Interpreter is the sequential reference backend.
	Interpreter Kind = iota
	// CPU is the parallel CPU backend with kernel fusion.
	CPU
)

// String returns a human-readable backend name.
func (k Kind) String() string {
	switch k {
	case Interpreter:
		return "interpreter"
	case CPU:
		return "cpu"
	default:
		return "unknown"
	}
}

// ParseKind maps a backend name to its Kind. The second result is false for
// unknown names.
func ParseKind(name string) (Kind, bool) {
	switch name {
	case "interpreter":
		return Interpreter, true
	case "cpu":
		return CPU, true
	default:
		return 0, false
	}
}

// Backend is a polymorphic hardware/codegen target bound to exactly one
// compiled program. The engine constructs a backend against its current
// program and reconstructs it whenever the program is cleared or the kind
// changes, so a backend never observes a stale program.
type Backend interface {
	// TransformPreLowering may rewrite the graph in place before lowering.
	// It reports whether a rewrite occurred; a positive report makes the
	// engine re-run graph optimization.
	TransformPreLowering(f *graph.Function, mode Mode) bool

	// TransformPostLowering is TransformPreLowering's post-lowering twin.
	TransformPostLowering(f *graph.Function, mode Mode) bool

	// Init performs one-time preparation after the program is finalized,
	// such as activation buffer allocation.
	Init() error

	// DoForwardPass executes the bound program once against the current
	// variable payloads, mutating them in place. It must be safe to call
	// repeatedly without re-initialization.
	DoForwardPass()

	// Save serializes the bound program plus its constant data into a
	// self-contained artifact under dir.
	Save(dir string) error
}

// Factory constructs a backend bound to the given program.
type Factory func(p *ir.Program) Backend

var registry = map[Kind]Factory{}

// Register installs a factory for kind. Backends register themselves in
// their package init; registering the same kind twice is a programming
// error.
func Register(kind Kind, factory Factory) {
	if _, dup := registry[kind]; dup {
		exceptions.Panicf("backend kind %s registered twice", kind)
	}
	registry[kind] = factory
}

// New instantiates a backend of the given kind bound to p. An unregistered
// kind is a contract violation.
func New(kind Kind, p *ir.Program) Backend {
	factory, ok := registry[kind]
	if !ok {
		exceptions.Panicf("no backend registered for kind %s", kind)
	}
	return factory(p)
}
