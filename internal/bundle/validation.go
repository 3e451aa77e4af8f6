package bundle

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ValidateConfig checks a loaded configuration for malformed or malicious
// content: bad names, symbols that escape their declared area, and
// overlapping regions inside one area.
func ValidateConfig(c *Config) error {
	if c.FormatVersion != FormatVersion {
		return errors.Errorf("unsupported format version %d, want %d", c.FormatVersion, FormatVersion)
	}
	if len(c.Symbols) > MaxSymbolCount {
		return errors.Errorf("too many symbols: %d, max %d", len(c.Symbols), MaxSymbolCount)
	}
	if c.ConstantWeightsSize < 0 || c.MutableWeightsSize < 0 || c.ActivationsSize < 0 {
		return errors.New("negative area size")
	}

	for _, s := range c.Symbols {
		if err := validateName(s.Name); err != nil {
			return err
		}
		size, ok := areaSize(c, s.Kind)
		if !ok {
			return errors.Errorf("symbol %q has unknown area kind %q", s.Name, s.Kind)
		}
		if s.Offset < 0 || s.Size < 0 {
			return errors.Errorf("symbol %q has negative offset or size", s.Name)
		}
		if s.Offset+s.Size > size {
			return errors.Errorf("symbol %q [%d, %d) exceeds %s area of %d bytes",
				s.Name, s.Offset, s.Offset+s.Size, s.Kind, size)
		}
		dt, err := dtypeFromString(s.DType)
		if err != nil {
			return errors.Wrapf(err, "symbol %q", s.Name)
		}
		// The executor sizes kernel loops from Shape; a shape that disagrees
		// with the byte size would index past the symbol's region.
		elems := int64(1)
		for _, d := range s.Shape {
			if d <= 0 || elems > MaxSymbolElements/int64(d) {
				return errors.Errorf("symbol %q has implausible shape %v", s.Name, s.Shape)
			}
			elems *= int64(d)
		}
		if want := elems * int64(dt.Size()); want != s.Size {
			return errors.Errorf("symbol %q shape %v implies %d bytes, size field says %d",
				s.Name, s.Shape, want, s.Size)
		}
	}

	for _, kind := range []string{KindConstant, KindMutable, KindActivation} {
		if err := validateNoOverlap(c.Symbols, kind); err != nil {
			return err
		}
	}

	if c.ResultOffset < 0 || c.ResultSize <= 0 ||
		c.ResultOffset+c.ResultSize > c.MutableWeightsSize {
		return errors.Errorf("result region [%d, %d) exceeds mutable area of %d bytes",
			c.ResultOffset, c.ResultOffset+c.ResultSize, c.MutableWeightsSize)
	}
	return nil
}

func areaSize(c *Config, kind string) (int64, bool) {
	switch kind {
	case KindConstant:
		return c.ConstantWeightsSize, true
	case KindMutable:
		return c.MutableWeightsSize, true
	case KindActivation:
		return c.ActivationsSize, true
	default:
		return 0, false
	}
}

func validateName(name string) error {
	if name == "" {
		return errors.New("empty symbol name")
	}
	if len(name) > MaxSymbolNameLen {
		return errors.Errorf("symbol name too long: %d bytes, max %d", len(name), MaxSymbolNameLen)
	}
	// Names end up in log lines and dump files, never in paths, but reject
	// traversal-looking input anyway.
	if strings.ContainsAny(name, "/\\\x00") || strings.Contains(name, "..") {
		return errors.Errorf("invalid symbol name %q", name)
	}
	return nil
}

func validateNoOverlap(symbols []Symbol, kind string) error {
	var area []Symbol
	for _, s := range symbols {
		if s.Kind == kind {
			area = append(area, s)
		}
	}
	sort.Slice(area, func(i, j int) bool { return area[i].Offset < area[j].Offset })

	for i := 0; i+1 < len(area); i++ {
		cur, next := area[i], area[i+1]
		if cur.Offset+cur.Size > next.Offset {
			return errors.Errorf("symbols %q and %q overlap in the %s area",
				cur.Name, next.Name, kind)
		}
	}
	return nil
}
