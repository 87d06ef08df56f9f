package expr

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funvibe/fundbg/internal/symbols"
)

func castCtx() *Context { return NewContext(LanguageC, nil) }

func intValue(t symbols.Type, v int64) ExprValue {
	data := make([]byte, t.ByteSize())
	for i := range data {
		data[i] = byte(v >> (8 * uint(i)))
	}
	return NewTemporaryValue(t, data)
}

func TestCastNumeric(t *testing.T) {
	ctx := castCtx()
	i32 := makeIntType(LanguageC, true, 4)
	i64 := makeIntType(LanguageC, true, 8)
	u16 := makeIntType(LanguageC, false, 2)
	f64 := makeFloatType(LanguageC, 8)

	// Widening sign-extends signed sources.
	out, err := CastExprValue(ctx, CastImplicit, intValue(i32, -5), i64)
	require.NoError(t, err)
	got, _ := out.AsInt64()
	assert.Equal(t, int64(-5), got)

	// Truncation keeps low bytes.
	out, err = CastExprValue(ctx, CastImplicit, intValue(i32, 0x12345), u16)
	require.NoError(t, err)
	u, _ := out.AsUInt64()
	assert.Equal(t, uint64(0x2345), u)

	// Int to float and back.
	out, err = CastExprValue(ctx, CastImplicit, intValue(i32, -7), f64)
	require.NoError(t, err)
	d, _ := out.AsDouble()
	assert.Equal(t, float64(-7), d)

	out, err = CastExprValue(ctx, CastImplicit, out, i32)
	require.NoError(t, err)
	got, _ = out.AsInt64()
	assert.Equal(t, int64(-7), got)

	// Float conversion truncates toward zero.
	fv := NewTemporaryValue(f64, make([]byte, 8))
	binary.LittleEndian.PutUint64(fv.Data(), 0x3FFE666666666666) // 1.9
	out, err = CastExprValue(ctx, CastImplicit, fv, i32)
	require.NoError(t, err)
	got, _ = out.AsInt64()
	assert.Equal(t, int64(1), got)
}

func TestCastBool(t *testing.T) {
	ctx := castCtx()
	i32 := makeIntType(LanguageC, true, 4)
	b := makeBoolType()

	out, err := CastExprValue(ctx, CastImplicit, intValue(i32, 200), b)
	require.NoError(t, err)
	u, _ := out.AsUInt64()
	assert.Equal(t, uint64(1), u, "any nonzero value becomes exactly 1")

	out, err = CastExprValue(ctx, CastImplicit, intValue(i32, 0), b)
	require.NoError(t, err)
	u, _ = out.AsUInt64()
	assert.Equal(t, uint64(0), u)
}

func TestCastEnum(t *testing.T) {
	ctx := castCtx()
	i32 := makeIntType(LanguageC, true, 4)
	color := &symbols.Enumeration{TypeName: "Color", Size: 4, Signed: false,
		Values: map[uint64]string{0: "kRed", 1: "kGreen"}}

	// Enum to int is implicit.
	out, err := CastExprValue(ctx, CastImplicit, intValue(color, 1), i32)
	require.NoError(t, err)
	got, _ := out.AsInt64()
	assert.Equal(t, int64(1), got)

	// Int to enum needs an explicit cast.
	_, err = CastExprValue(ctx, CastImplicit, intValue(i32, 1), color)
	require.Error(t, err)

	out, err = CastExprValue(ctx, CastStaticCast, intValue(i32, 1), color)
	require.NoError(t, err)
	assert.Equal(t, "Color", out.TypeName())
}

// makeHierarchy builds Base (8 bytes) and Derived with Base embedded at
// offset 8.
func makeHierarchy() (*symbols.Collection, *symbols.Collection) {
	i32 := makeIntType(LanguageC, true, 4)
	base := &symbols.Collection{
		TypeName: "Base",
		Size:     8,
		Members: []symbols.DataMember{
			{Name: "b1", Type: i32, Offset: 0},
			{Name: "b2", Type: i32, Offset: 4},
		},
	}
	derived := &symbols.Collection{
		TypeName: "Derived",
		Size:     16,
		Members: []symbols.DataMember{
			{Name: "d1", Type: i32, Offset: 0},
			{Name: "d2", Type: i32, Offset: 4},
		},
		Inherited: []symbols.InheritedFrom{{From: base, Offset: 8}},
	}
	return base, derived
}

func TestCastDerivedToBasePointer(t *testing.T) {
	ctx := castCtx()
	base, derived := makeHierarchy()
	basePtr := symbols.NewPointerType(base)
	derivedPtr := symbols.NewPointerType(derived)

	ptr := make([]byte, 8)
	binary.LittleEndian.PutUint64(ptr, 0x1000)
	v := NewTemporaryValue(derivedPtr, ptr)

	// Implicit pointer conversion demands identical pointees; hierarchy
	// adjustment in either direction is static_cast territory.
	_, err := CastExprValue(ctx, CastImplicit, v, basePtr)
	require.Error(t, err)

	// Upcast adjusts by the embedded offset.
	out, err := CastExprValue(ctx, CastStaticCast, v, basePtr)
	require.NoError(t, err)
	addr, _ := out.AsUInt64()
	assert.Equal(t, uint64(0x1008), addr)

	// Downcast reverses it.
	back, err := CastExprValue(ctx, CastStaticCast, out, derivedPtr)
	require.NoError(t, err)
	addr, _ = back.AsUInt64()
	assert.Equal(t, uint64(0x1000), addr)

	_, err = CastExprValue(ctx, CastImplicit, out, derivedPtr)
	require.Error(t, err, "downcasts are not implicit")

	// Null stays null through hierarchy adjustments.
	null := NewTemporaryValue(derivedPtr, make([]byte, 8))
	out, err = CastExprValue(ctx, CastStaticCast, null, basePtr)
	require.NoError(t, err)
	addr, _ = out.AsUInt64()
	assert.Equal(t, uint64(0), addr)
}

func TestCastDerivedValueSlicing(t *testing.T) {
	ctx := castCtx()
	base, derived := makeHierarchy()

	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	v := NewValue(derived, data, MemorySource(0x1000))

	out, err := CastExprValue(ctx, CastImplicit, v, base)
	require.NoError(t, err)
	assert.Equal(t, 8, out.ByteSize())
	assert.Equal(t, byte(8), out.Data()[0], "base subobject starts at its offset")
	assert.Equal(t, SourceMemory, out.Source().Kind)
	assert.Equal(t, uint64(0x1008), out.Source().Address)
}

func TestCastReinterpret(t *testing.T) {
	ctx := castCtx()
	i32 := makeIntType(LanguageC, true, 4)
	u64 := makeIntType(LanguageC, false, 8)
	u16 := makeIntType(LanguageC, false, 2)
	f64 := makeFloatType(LanguageC, 8)

	// Widening zero-fills even for negative sources.
	out, err := CastExprValue(ctx, CastReinterpretCast, intValue(i32, -1), u64)
	require.NoError(t, err)
	u, _ := out.AsUInt64()
	assert.Equal(t, uint64(0xffffffff), u)

	out, err = CastExprValue(ctx, CastReinterpretCast, intValue(i32, 0x12345678), u16)
	require.NoError(t, err)
	u, _ = out.AsUInt64()
	assert.Equal(t, uint64(0x5678), u)

	// Floats have no standalone bit meaning here.
	_, err = CastExprValue(ctx, CastReinterpretCast, intValue(i32, 1), f64)
	require.Error(t, err)
}

func TestCastPointersInNumericFamily(t *testing.T) {
	ctx := castCtx()
	i64 := makeIntType(LanguageC, true, 8)
	i16 := makeIntType(LanguageC, true, 2)
	i32 := makeIntType(LanguageC, true, 4)
	ptr := symbols.NewPointerType(i32)

	// Pointers convert with the other numeric types implicitly, in both
	// directions, with the usual extend/truncate behavior.
	out, err := CastExprValue(ctx, CastImplicit, intValue(i64, 0x1000), ptr)
	require.NoError(t, err)
	addr, _ := out.AsUInt64()
	assert.Equal(t, uint64(0x1000), addr)

	back, err := CastExprValue(ctx, CastImplicit, out, i64)
	require.NoError(t, err)
	got, _ := back.AsInt64()
	assert.Equal(t, int64(0x1000), got)

	narrow, err := CastExprValue(ctx, CastImplicit, out, i16)
	require.NoError(t, err)
	got, _ = narrow.AsInt64()
	assert.Equal(t, int64(0x1000), got)
}

func TestCastCStyleFallback(t *testing.T) {
	ctx := castCtx()
	i32 := makeIntType(LanguageC, true, 4)
	ptr := symbols.NewPointerType(i32)

	v, err := CastExprValue(ctx, CastC, intValue(makeIntType(LanguageC, true, 8), 0x1000), ptr)
	require.NoError(t, err)

	// Unrelated pointees fail implicit and static casts alike; the
	// C-style cast falls through to reinterpret.
	other := symbols.NewPointerType(makeFloatType(LanguageC, 8))
	_, err = CastExprValue(ctx, CastImplicit, v, other)
	require.Error(t, err)
	_, err = CastExprValue(ctx, CastStaticCast, v, other)
	require.Error(t, err)
	out, err := CastExprValue(ctx, CastC, v, other)
	require.NoError(t, err)
	addr, _ := out.AsUInt64()
	assert.Equal(t, uint64(0x1000), addr)

	// void* gets no special treatment: same pointee rule, same fallback.
	voidPtr := symbols.NewPointerType(symbols.NewBaseType(symbols.BaseTypeNone, 0, "void"))
	_, err = CastExprValue(ctx, CastImplicit, v, voidPtr)
	require.Error(t, err)
	out, err = CastExprValue(ctx, CastC, v, voidPtr)
	require.NoError(t, err)
	addr, _ = out.AsUInt64()
	assert.Equal(t, uint64(0x1000), addr)
}

func TestCastShouldFollowReferences(t *testing.T) {
	ctx := castCtx()
	i32 := makeIntType(LanguageC, true, 4)

	assert.True(t, CastShouldFollowReferences(ctx, i32))
	assert.True(t, CastShouldFollowReferences(ctx, symbols.NewPointerType(i32)))
	assert.False(t, CastShouldFollowReferences(ctx, symbols.NewReferenceType(i32)))
}
