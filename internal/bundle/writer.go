package bundle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ember-ml/ember/internal/ir"
)

// Write saves the compiled program p as a bundle named name under dir: a JSON
// configuration record, the constant weights blob, and the binary program.
//
// Storage layout follows the program's value table order. Constant weights
// are the private variable payloads, mutable weights are the public variable
// regions, and the activation area sizes the scratch space a runner must
// allocate. The result region is the mutable region the program's final copy
// writes to.
func Write(dir, name string, p *ir.Program) error {
	if err := validateName(name); err != nil {
		return err
	}
	if p.Empty() {
		return errors.New("cannot save an empty program")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create bundle directory")
	}

	cfg, weights, err := layout(name, p)
	if err != nil {
		return err
	}

	prog, err := encodeProgram(p.Instrs())
	if err != nil {
		return err
	}

	cfgJSON, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal bundle config")
	}

	for _, f := range []struct {
		suffix string
		data   []byte
	}{
		{configSuffix, cfgJSON},
		{weightsSuffix, weights},
		{programSuffix, prog},
	} {
		path := filepath.Join(dir, name+f.suffix)
		if err := os.WriteFile(path, f.data, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
	}

	klog.V(1).Infof("saved bundle %q: %s constants, %s mutable, %s activations, %d instructions",
		name,
		humanize.Bytes(uint64(cfg.ConstantWeightsSize)),
		humanize.Bytes(uint64(cfg.MutableWeightsSize)),
		humanize.Bytes(uint64(cfg.ActivationsSize)),
		len(p.Instrs()))
	return nil
}

// layout assigns every program value an offset inside its area and assembles
// the constant weights blob.
func layout(name string, p *ir.Program) (*Config, []byte, error) {
	cfg := &Config{
		Name:          name,
		FormatVersion: FormatVersion,
		EmberVersion:  emberVersion,
		CreatedAt:     time.Now().UTC(),
		Symbols:       make([]Symbol, 0, len(p.Values())),
	}

	var weights []byte
	for _, v := range p.Values() {
		sym := Symbol{
			Name:  v.Name(),
			Size:  int64(v.ByteSize()),
			DType: dtypeToString(v.DType()),
			Shape: append([]int(nil), v.Shape()...),
		}
		switch v.Kind() {
		case ir.ConstantWeight:
			sym.Kind = KindConstant
			sym.Offset = cfg.ConstantWeightsSize
			cfg.ConstantWeightsSize += sym.Size
			weights = append(weights, v.Variable().Payload().Data()...)
		case ir.MutableWeight:
			sym.Kind = KindMutable
			sym.Offset = cfg.MutableWeightsSize
			cfg.MutableWeightsSize += sym.Size
		case ir.Activation:
			sym.Kind = KindActivation
			sym.Offset = cfg.ActivationsSize
			cfg.ActivationsSize += sym.Size
		}
		cfg.Symbols = append(cfg.Symbols, sym)
	}

	if err := bindResult(cfg, p); err != nil {
		return nil, nil, err
	}

	cfg.WeightsChecksum = ComputeChecksum(weights)
	return cfg, weights, nil
}

// bindResult records the region of the mutable area holding the program's
// output: the target of the last copy into mutable storage, or, for programs
// without one, the last mutable region itself.
func bindResult(cfg *Config, p *ir.Program) error {
	result := -1
	for _, in := range p.Instrs() {
		if in.Op == ir.OpCopy && p.Value(in.Out).Kind() == ir.MutableWeight {
			result = in.Out
		}
	}
	if result < 0 {
		for id, v := range p.Values() {
			if v.Kind() == ir.MutableWeight {
				result = id
			}
		}
	}
	if result < 0 {
		return errors.New("program has no mutable weights, nothing to expose as result")
	}

	sym := cfg.Symbols[result]
	cfg.ResultName = sym.Name
	cfg.ResultOffset = sym.Offset
	cfg.ResultSize = sym.Size
	return nil
}
