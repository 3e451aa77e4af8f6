package bundle

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/ember-ml/ember/internal/ir"
)

// Bundle is a loaded, validated artifact ready to execute.
type Bundle struct {
	Config  *Config
	Weights []byte
	Instrs  []ir.Instruction
}

// Load reads and validates the bundle named name under dir.
//
// The constant weights file must match the configured size byte for byte: a
// mismatch means the artifact files are from different builds, and running
// them together would read garbage weights.
func Load(dir, name string) (*Bundle, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	cfgJSON, err := os.ReadFile(filepath.Join(dir, name+configSuffix))
	if err != nil {
		return nil, errors.Wrap(err, "read bundle config")
	}
	cfg := &Config{}
	if err := json.Unmarshal(cfgJSON, cfg); err != nil {
		return nil, errors.Wrap(err, "parse bundle config")
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid bundle config")
	}

	weights, err := os.ReadFile(filepath.Join(dir, name+weightsSuffix))
	if err != nil {
		return nil, errors.Wrap(err, "read constant weights")
	}
	if int64(len(weights)) != cfg.ConstantWeightsSize {
		return nil, errors.Errorf("constant weights file is %s, config declares %s",
			humanize.Bytes(uint64(len(weights))),
			humanize.Bytes(uint64(cfg.ConstantWeightsSize)))
	}
	if err := ValidateChecksum(weights, cfg.WeightsChecksum); err != nil {
		return nil, err
	}

	progData, err := os.ReadFile(filepath.Join(dir, name+programSuffix))
	if err != nil {
		return nil, errors.Wrap(err, "read program")
	}
	instrs, err := decodeProgram(progData, len(cfg.Symbols))
	if err != nil {
		return nil, errors.Wrap(err, "decode program")
	}

	klog.V(1).Infof("loaded bundle %q: %d symbols, %d instructions, %s constants",
		cfg.Name, len(cfg.Symbols), len(instrs), humanize.Bytes(uint64(len(weights))))
	return &Bundle{Config: cfg, Weights: weights, Instrs: instrs}, nil
}
