// Package bundle implements the standalone artifact format produced by
// backend Save: a JSON configuration record, a constant weights blob, and a
// binary program file. A saved bundle runs without the compiler: the loader
// plus executor in this package reconstruct the three memory areas and replay
// the instruction sequence.
package bundle

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ember-ml/ember/internal/tensor"
)

const (
	// MagicBytes opens the binary program file.
	MagicBytes = "EMBR"
	// FormatVersion is the current bundle format revision.
	FormatVersion = 1

	emberVersion = "0.3.1"

	configSuffix  = ".json"
	weightsSuffix = ".weights"
	programSuffix = ".prog"
)

// Validation limits for untrusted bundle input.
const (
	MaxSymbolCount    = 100_000
	MaxSymbolNameLen  = 4096
	MaxSymbolElements = int64(1) << 40
	MaxProgramSize    = 100 * 1024 * 1024
)

// Symbol describes one storage region of the bundle. Offset is relative to
// the start of the symbol's area (constant, mutable, or activation).
type Symbol struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
}

// Config is the bundle's JSON configuration record. It carries the sizes of
// the three memory areas, the symbol table, and the location of the result
// region inside the mutable area.
type Config struct {
	Name          string    `json:"name"`
	FormatVersion int       `json:"format_version"`
	EmberVersion  string    `json:"ember_version"`
	CreatedAt     time.Time `json:"created_at"`

	ConstantWeightsSize int64 `json:"constant_weights_size"`
	MutableWeightsSize  int64 `json:"mutable_weights_size"`
	ActivationsSize     int64 `json:"activations_size"`

	Symbols []Symbol `json:"symbols"`

	ResultName   string `json:"result_name"`
	ResultOffset int64  `json:"result_offset"`
	ResultSize   int64  `json:"result_size"`

	// WeightsChecksum is the hex SHA-256 of the constant weights blob.
	WeightsChecksum string `json:"weights_checksum"`
}

// Symbol returns the named symbol, or false if the bundle does not define it.
func (c *Config) Symbol(name string) (Symbol, bool) {
	for _, s := range c.Symbols {
		if s.Name == name {
			return s, true
		}
	}
	return Symbol{}, false
}

// Area kind strings used in Symbol.Kind.
const (
	KindConstant   = "constant"
	KindMutable    = "mutable"
	KindActivation = "activation"
)

func dtypeToString(dt tensor.DataType) string {
	return dt.String()
}

func dtypeFromString(s string) (tensor.DataType, error) {
	switch s {
	case "float32":
		return tensor.Float32, nil
	case "float64":
		return tensor.Float64, nil
	case "float16":
		return tensor.Float16Type, nil
	case "int32":
		return tensor.Int32, nil
	case "int64":
		return tensor.Int64, nil
	case "uint8":
		return tensor.Uint8, nil
	case "bool":
		return tensor.Bool, nil
	default:
		return 0, errors.Errorf("unknown dtype %q", s)
	}
}
