package expr

import (
	"bytes"
	"encoding/binary"
	"math"
	"math/big"

	"github.com/funvibe/fundbg/internal/debug"
	"github.com/funvibe/fundbg/internal/symbols"
)

// ValueSourceKind tags where an ExprValue came from.
type ValueSourceKind int

const (
	// SourceTemporary: no backing store; computed.
	SourceTemporary ValueSourceKind = iota
	// SourceMemory: a range (possibly a bitfield sub-range) of debuggee
	// memory.
	SourceMemory
	// SourceRegister: a range of a canonical register.
	SourceRegister
	// SourceConstant: a DWARF constant; not writable.
	SourceConstant
	// SourceComposite: assembled from multiple DWARF location pieces;
	// not writable.
	SourceComposite
	// SourceLocal: a debugger-local variable cell.
	SourceLocal
)

func (k ValueSourceKind) String() string {
	switch k {
	case SourceTemporary:
		return "temporary"
	case SourceMemory:
		return "memory"
	case SourceRegister:
		return "register"
	case SourceConstant:
		return "constant"
	case SourceComposite:
		return "composite"
	case SourceLocal:
		return "local"
	}
	return "?"
}

// ExprValueSource records the provenance of a value. Only memory and
// register sources are assignable. A nonzero BitSize marks a bitfield
// sub-range BitSize bits wide, BitShift bits from the low end of the
// byte range (memory) or of the canonical register (register).
type ExprValueSource struct {
	Kind     ValueSourceKind
	Address  uint64           // SourceMemory
	Register debug.RegisterID // SourceRegister; always canonical
	BitSize  uint32
	BitShift uint32
	Local    *LocalExprValue // SourceLocal
}

func TemporarySource() ExprValueSource { return ExprValueSource{Kind: SourceTemporary} }
func ConstantSource() ExprValueSource  { return ExprValueSource{Kind: SourceConstant} }
func CompositeSource() ExprValueSource { return ExprValueSource{Kind: SourceComposite} }

func MemorySource(address uint64) ExprValueSource {
	return ExprValueSource{Kind: SourceMemory, Address: address}
}

func MemoryBitfieldSource(address uint64, bitSize, bitShift uint32) ExprValueSource {
	return ExprValueSource{Kind: SourceMemory, Address: address, BitSize: bitSize, BitShift: bitShift}
}

func RegisterSource(id debug.RegisterID) ExprValueSource {
	return ExprValueSource{Kind: SourceRegister, Register: id}
}

func RegisterBitfieldSource(id debug.RegisterID, bitSize, bitShift uint32) ExprValueSource {
	return ExprValueSource{Kind: SourceRegister, Register: id, BitSize: bitSize, BitShift: bitShift}
}

func LocalSource(cell *LocalExprValue) ExprValueSource {
	return ExprValueSource{Kind: SourceLocal, Local: cell}
}

// IsBitfield reports whether the source covers a sub-byte bit range.
func (s ExprValueSource) IsBitfield() bool { return s.BitSize != 0 }

// IsByteAligned reports whether the bit range starts and ends on byte
// boundaries, enabling the plain byte-copy write path.
func (s ExprValueSource) IsByteAligned() bool {
	return s.BitShift%8 == 0 && s.BitSize%8 == 0
}

// SetBits merges value into existing according to the source's bit
// range and returns the updated copy of existing. existing is the full
// current backing bytes (the canonical register or the containing
// memory range); value supplies BitSize low bits. The merge is done in
// arbitrary precision so 64-bit-wide fields at nonzero shifts within a
// 128-bit container work.
func (s ExprValueSource) SetBits(existing, value []byte) []byte {
	ex := leToBig(existing)
	val := leToBig(value)

	mask := new(big.Int).Lsh(big.NewInt(1), uint(s.BitSize))
	mask.Sub(mask, big.NewInt(1)) // BitSize ones

	val.And(val, mask)
	val.Lsh(val, uint(s.BitShift))

	clear := new(big.Int).Lsh(mask, uint(s.BitShift))
	ex.AndNot(ex, clear)
	ex.Or(ex, val)

	return bigToLE(ex, len(existing))
}

// ExtractBits pulls the source's bit range out of container, returning
// byteSize little-endian bytes.
func (s ExprValueSource) ExtractBits(container []byte, byteSize int) []byte {
	v := leToBig(container)
	v.Rsh(v, uint(s.BitShift))
	mask := new(big.Int).Lsh(big.NewInt(1), uint(s.BitSize))
	mask.Sub(mask, big.NewInt(1))
	v.And(v, mask)
	return bigToLE(v, byteSize)
}

func leToBig(data []byte) *big.Int {
	be := make([]byte, len(data))
	for i, b := range data {
		be[len(data)-1-i] = b
	}
	return new(big.Int).SetBytes(be)
}

func bigToLE(v *big.Int, size int) []byte {
	be := v.Bytes()
	out := make([]byte, size)
	for i := 0; i < len(be) && i < size; i++ {
		out[i] = be[len(be)-1-i]
	}
	return out
}

// ---------------------------------------------------------------------------
// ExprValue
// ---------------------------------------------------------------------------

// ExprValue is a typed byte buffer plus provenance. Values are
// immutable once constructed; all data is little-endian. An empty
// value (nil type) represents "no value", e.g. the result of a bare
// loop statement.
type ExprValue struct {
	typ    symbols.Type
	data   []byte
	source ExprValueSource
}

// NewValue builds a value from its parts. The data length should match
// the type's byte size unless the type's size is not yet concrete.
func NewValue(t symbols.Type, data []byte, source ExprValueSource) ExprValue {
	return ExprValue{typ: t, data: data, source: source}
}

// NewTemporaryValue builds a value with no backing store.
func NewTemporaryValue(t symbols.Type, data []byte) ExprValue {
	return ExprValue{typ: t, data: data, source: TemporarySource()}
}

func (v ExprValue) Type() symbols.Type       { return v.typ }
func (v ExprValue) Data() []byte             { return v.data }
func (v ExprValue) Source() ExprValueSource  { return v.source }
func (v ExprValue) IsNull() bool             { return v.typ == nil }
func (v ExprValue) ByteSize() int            { return len(v.data) }

// TypeName returns the type name or "" for a null value.
func (v ExprValue) TypeName() string {
	if v.typ == nil {
		return ""
	}
	return v.typ.Name()
}

// EqualsBytes compares raw bytes only. Composite/struct equality is
// intentionally approximate.
func (v ExprValue) EqualsBytes(other ExprValue) bool {
	return bytes.Equal(v.data, other.data)
}

// WithSource returns a copy of the value with a different provenance.
func (v ExprValue) WithSource(source ExprValueSource) ExprValue {
	return ExprValue{typ: v.typ, data: v.data, source: source}
}

// AsUInt64 zero-extends an integer-like value (ints, bool, chars,
// enums, pointers) of up to 8 bytes.
func (v ExprValue) AsUInt64() (uint64, error) {
	if v.typ == nil || len(v.data) == 0 {
		return 0, newErrorf(ErrType, "No value for conversion.")
	}
	if len(v.data) > 8 {
		return 0, newErrorf(ErrType, "Type '%s' is too large for a numeric conversion.", v.TypeName())
	}
	var out uint64
	for i, b := range v.data {
		out |= uint64(b) << (8 * uint(i))
	}
	return out, nil
}

// AsInt64 sign- or zero-extends per the value's own signedness.
func (v ExprValue) AsInt64() (int64, error) {
	raw, err := v.AsUInt64()
	if err != nil {
		return 0, err
	}
	if isSignedInt(v.typ) && len(v.data) < 8 {
		bits := uint(len(v.data)) * 8
		if raw&(1<<(bits-1)) != 0 {
			raw |= ^uint64(0) << bits
		}
	}
	return int64(raw), nil
}

// AsDouble converts a floating point value (float or double) to
// float64.
func (v ExprValue) AsDouble() (float64, error) {
	switch len(v.data) {
	case 4:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(v.data))), nil
	case 8:
		return math.Float64frombits(binary.LittleEndian.Uint64(v.data)), nil
	}
	return 0, newErrorf(ErrType, "Invalid floating point size %d.", len(v.data))
}

// isSignedInt reports whether t (after stripping wrappers) is a signed
// integer or char, or a signed enum.
func isSignedInt(t symbols.Type) bool {
	switch concrete := symbols.StripCVT(t).(type) {
	case *symbols.BaseType:
		return concrete.IsSigned()
	case *symbols.Enumeration:
		return concrete.Signed
	}
	return false
}
