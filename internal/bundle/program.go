package bundle

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"math"

	"github.com/pkg/errors"

	"github.com/ember-ml/ember/internal/ir"
)

// encodeProgram serializes an instruction sequence. The encoding is
// little-endian: magic, format version, instruction count, one record per
// instruction, then a CRC32 (IEEE) of everything before it.
func encodeProgram(instrs []ir.Instruction) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(MagicBytes)
	le := binary.LittleEndian

	var scratch [4]byte
	writeU32 := func(v uint32) {
		le.PutUint32(scratch[:], v)
		buf.Write(scratch[:])
	}

	writeU32(FormatVersion)
	writeU32(uint32(len(instrs)))

	for _, in := range instrs {
		if in.Op < 0 || in.Op > math.MaxUint8 {
			return nil, errors.Errorf("opcode %d does not fit the encoding", in.Op)
		}
		if len(in.Args) > math.MaxUint8 {
			return nil, errors.Errorf("instruction has %d args, max %d", len(in.Args), math.MaxUint8)
		}
		buf.WriteByte(byte(in.Op))
		writeU32(uint32(in.Out))
		buf.WriteByte(byte(len(in.Args)))
		for _, a := range in.Args {
			writeU32(uint32(a))
		}
	}

	writeU32(crc32.ChecksumIEEE(buf.Bytes()))
	return buf.Bytes(), nil
}

// decodeProgram parses a serialized instruction sequence, verifying the
// magic, version, CRC, and that every value reference is below numValues.
func decodeProgram(data []byte, numValues int) ([]ir.Instruction, error) {
	if len(data) > MaxProgramSize {
		return nil, errors.Errorf("program file is %d bytes, max %d", len(data), MaxProgramSize)
	}
	if len(data) < len(MagicBytes)+12 {
		return nil, errors.New("program file truncated")
	}
	if string(data[:len(MagicBytes)]) != MagicBytes {
		return nil, errors.New("bad magic bytes")
	}

	le := binary.LittleEndian
	body, tail := data[:len(data)-4], data[len(data)-4:]
	if crc32.ChecksumIEEE(body) != le.Uint32(tail) {
		return nil, errors.New("program CRC mismatch")
	}

	pos := len(MagicBytes)
	readU32 := func() (uint32, error) {
		if pos+4 > len(body) {
			return 0, errors.New("program file truncated")
		}
		v := le.Uint32(body[pos:])
		pos += 4
		return v, nil
	}
	readU8 := func() (byte, error) {
		if pos+1 > len(body) {
			return 0, errors.New("program file truncated")
		}
		b := body[pos]
		pos++
		return b, nil
	}

	version, err := readU32()
	if err != nil {
		return nil, err
	}
	if version != FormatVersion {
		return nil, errors.Errorf("unsupported format version %d, want %d", version, FormatVersion)
	}

	count, err := readU32()
	if err != nil {
		return nil, err
	}
	// The count field is untrusted input. Each instruction record is at
	// least 6 bytes, so a count the remaining bytes cannot hold is corrupt;
	// reject it before sizing any allocation from it.
	const minInstrBytes = 6
	if uint64(count) > uint64(len(body)-pos)/minInstrBytes {
		return nil, errors.Errorf("instruction count %d exceeds the %d remaining bytes", count, len(body)-pos)
	}

	checkRef := func(id uint32) error {
		if int(id) >= numValues {
			return errors.Errorf("value reference %d exceeds symbol table of %d", id, numValues)
		}
		return nil
	}

	instrs := make([]ir.Instruction, 0, count)
	for i := uint32(0); i < count; i++ {
		op, err := readU8()
		if err != nil {
			return nil, err
		}
		out, err := readU32()
		if err != nil {
			return nil, err
		}
		if err := checkRef(out); err != nil {
			return nil, err
		}
		argc, err := readU8()
		if err != nil {
			return nil, err
		}
		var args []int
		for j := byte(0); j < argc; j++ {
			a, err := readU32()
			if err != nil {
				return nil, err
			}
			if err := checkRef(a); err != nil {
				return nil, err
			}
			args = append(args, int(a))
		}
		instrs = append(instrs, ir.Instruction{Op: ir.Opcode(op), Out: int(out), Args: args})
	}

	if pos != len(body) {
		return nil, errors.Errorf("%d trailing bytes after instruction stream", len(body)-pos)
	}
	return instrs, nil
}
