package expr

import (
	"encoding/binary"
	"testing"

	"github.com/funvibe/fundbg/internal/symbols"
)

func opCtx() *Context { return NewContext(LanguageC, nil) }

func binOp(t *testing.T, ctx *Context, left ExprValue, op string, right ExprValue) ExprValue {
	t.Helper()
	out, err := EvalBinaryOp(ctx, left, op, right)
	if err != nil {
		t.Fatalf("%s: %s", op, err)
	}
	return out
}

func TestBinaryRealmPromotion(t *testing.T) {
	ctx := opCtx()
	i32 := makeIntType(LanguageC, true, 4)
	u32 := makeIntType(LanguageC, false, 4)
	f32 := makeFloatType(LanguageC, 4)
	f64 := makeFloatType(LanguageC, 8)

	// signed + signed stays signed.
	out := binOp(t, ctx, intValue(i32, -3), "+", intValue(i32, 1))
	got, _ := out.AsInt64()
	if got != -2 || out.ByteSize() != 8 {
		t.Fatalf("expected -2 in 8 bytes, got %d in %d", got, out.ByteSize())
	}

	// Mixing in unsigned promotes the whole operation.
	out = binOp(t, ctx, intValue(i32, -1), "/", intValue(u32, 2))
	u, _ := out.AsUInt64()
	if u != 0x7fffffffffffffff {
		t.Fatalf("unsigned realm division: got %#x", u)
	}

	// Mixing in float promotes further.
	out = binOp(t, ctx, intValue(i32, 1), "+", floatValue(f64, 0.5))
	d, _ := out.AsDouble()
	if d != 1.5 {
		t.Fatalf("expected 1.5, got %g", d)
	}

	// float + float stays 4 bytes; anything else widens to double.
	out = binOp(t, ctx, floatValue(f32, 1), "+", floatValue(f32, 2))
	if out.ByteSize() != 4 {
		t.Fatalf("float+float should stay 4 bytes, got %d", out.ByteSize())
	}
	out = binOp(t, ctx, floatValue(f32, 1), "+", floatValue(f64, 2))
	if out.ByteSize() != 8 {
		t.Fatalf("float+double should widen, got %d", out.ByteSize())
	}
}

func TestBinarySignednessBySize(t *testing.T) {
	ctx := opCtx()
	i32 := makeIntType(LanguageC, true, 4)
	i64 := makeIntType(LanguageC, true, 8)
	u8 := makeIntType(LanguageC, false, 1)
	u64 := makeIntType(LanguageC, false, 8)

	// The larger operand's signedness wins; only a size tie prefers
	// unsigned. A small unsigned operand must not drag a wide signed
	// one into unsigned math.
	out := binOp(t, ctx, intValue(i64, -1), "<", intValue(u8, 1))
	u, _ := out.AsUInt64()
	if u != 1 {
		t.Fatalf("int64(-1) < uint8(1) must compare signed, got %d", u)
	}

	out = binOp(t, ctx, intValue(i64, -2), "/", intValue(u8, 2))
	got, _ := out.AsInt64()
	if got != -1 {
		t.Fatalf("int64(-2) / uint8(2): got %d", got)
	}

	// The other way around the wide unsigned operand wins.
	out = binOp(t, ctx, intValue(i32, -1), "<", intValue(u64, 1))
	u, _ = out.AsUInt64()
	if u != 0 {
		t.Fatalf("int32(-1) < uint64(1) must compare unsigned, got %d", u)
	}

	// Equal sizes: unsigned wins the tie.
	out = binOp(t, ctx, intValue(i64, -1), "<", intValue(u64, 1))
	u, _ = out.AsUInt64()
	if u != 0 {
		t.Fatalf("int64(-1) < uint64(1) must compare unsigned, got %d", u)
	}
}

func TestLogicalOperators(t *testing.T) {
	ctx := opCtx()
	i32 := makeIntType(LanguageC, true, 4)
	f64 := makeFloatType(LanguageC, 8)

	cases := []struct {
		left  int64
		op    string
		right int64
		want  uint64
	}{
		{2, "&&", 3, 1},
		{2, "&&", 0, 0},
		{0, "&&", 3, 0},
		{0, "||", 0, 0},
		{0, "||", 3, 1},
		{-1, "||", 0, 1},
	}
	for _, tc := range cases {
		out := binOp(t, ctx, intValue(i32, tc.left), tc.op, intValue(i32, tc.right))
		if out.TypeName() != "bool" || out.ByteSize() != 1 {
			t.Fatalf("%d %s %d: got %s in %d bytes", tc.left, tc.op, tc.right,
				out.TypeName(), out.ByteSize())
		}
		u, _ := out.AsUInt64()
		if u != tc.want {
			t.Fatalf("%d %s %d: got %d, want %d", tc.left, tc.op, tc.right, u, tc.want)
		}
	}

	// Operands go through the usual truthiness conversion, so floats mix in.
	out := binOp(t, ctx, floatValue(f64, 0.5), "&&", intValue(i32, 1))
	u, _ := out.AsUInt64()
	if u != 1 {
		t.Fatalf("0.5 && 1: got %d", u)
	}
}

func floatValue(t symbols.Type, d float64) ExprValue {
	size := int(t.ByteSize())
	data := make([]byte, size)
	if size == 4 {
		binary.LittleEndian.PutUint32(data, uint32(floatBits(d, 4)))
	} else {
		binary.LittleEndian.PutUint64(data, floatBits(d, 8))
	}
	return NewTemporaryValue(t, data)
}

func TestShiftOperators(t *testing.T) {
	ctx := opCtx()
	i32 := makeIntType(LanguageC, true, 4)
	u64 := makeIntType(LanguageC, false, 8)

	out := binOp(t, ctx, intValue(i32, 1), "<<", intValue(i32, 10))
	got, _ := out.AsInt64()
	if got != 1024 {
		t.Fatalf("1<<10: got %d", got)
	}

	// Signed right shift is arithmetic.
	out = binOp(t, ctx, intValue(i32, -8), ">>", intValue(i32, 1))
	got, _ = out.AsInt64()
	if got != -4 {
		t.Fatalf("-8>>1 signed: got %d", got)
	}

	// Unsigned right shift is logical.
	neg := make([]byte, 8)
	binary.LittleEndian.PutUint64(neg, ^uint64(0))
	out = binOp(t, ctx, NewTemporaryValue(u64, neg), ">>", intValue(i32, 60))
	u, _ := out.AsUInt64()
	if u != 0xf {
		t.Fatalf("logical shift: got %#x", u)
	}
}

func TestPointerArithmetic(t *testing.T) {
	ctx := opCtx()
	i32 := makeIntType(LanguageC, true, 4)
	ptrType := symbols.NewPointerType(i32)

	ptr := func(addr uint64) ExprValue {
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, addr)
		return NewTemporaryValue(ptrType, data)
	}

	// Offsets scale by the pointee size.
	out := binOp(t, ctx, ptr(0x1000), "+", intValue(i32, 3))
	addr, _ := out.AsUInt64()
	if addr != 0x100c {
		t.Fatalf("p+3: got %#x", addr)
	}
	if out.TypeName() != ptrType.Name() {
		t.Fatalf("pointer arithmetic must keep the pointer type, got %s", out.TypeName())
	}

	out = binOp(t, ctx, intValue(i32, 2), "+", ptr(0x1000))
	addr, _ = out.AsUInt64()
	if addr != 0x1008 {
		t.Fatalf("2+p: got %#x", addr)
	}

	out = binOp(t, ctx, ptr(0x1010), "-", intValue(i32, 2))
	addr, _ = out.AsUInt64()
	if addr != 0x1008 {
		t.Fatalf("p-2: got %#x", addr)
	}

	// Pointer difference is an element count.
	out = binOp(t, ctx, ptr(0x1010), "-", ptr(0x1000))
	diff, _ := out.AsInt64()
	if diff != 4 {
		t.Fatalf("pointer difference: got %d", diff)
	}

	// Errors.
	if _, err := EvalBinaryOp(ctx, ptr(0x1000), "+", ptr(0x1000)); err == nil {
		t.Fatal("adding two pointers must fail")
	}
	if _, err := EvalBinaryOp(ctx, intValue(i32, 1), "-", ptr(0x1000)); err == nil {
		t.Fatal("int minus pointer must fail")
	}
	if _, err := EvalBinaryOp(ctx, ptr(0x1000), "*", intValue(i32, 2)); err == nil {
		t.Fatal("multiplying a pointer must fail")
	}

	voidPtr := symbols.NewPointerType(symbols.NewBaseType(symbols.BaseTypeNone, 0, "void"))
	vp := NewTemporaryValue(voidPtr, make([]byte, 8))
	if _, err := EvalBinaryOp(ctx, vp, "+", intValue(i32, 1)); err == nil {
		t.Fatal("arithmetic on a zero-size pointee must fail")
	}

	// Comparisons work on any pointers.
	out = binOp(t, ctx, ptr(0x1000), "<", ptr(0x1010))
	u, _ := out.AsUInt64()
	if u != 1 {
		t.Fatal("pointer comparison")
	}
}

func TestUnaryOperators(t *testing.T) {
	ctx := opCtx()
	i32 := makeIntType(LanguageC, true, 4)
	u32 := makeIntType(LanguageC, false, 4)

	out, err := EvalUnaryOp(ctx, "-", intValue(i32, 5))
	if err != nil {
		t.Fatal(err)
	}
	got, _ := out.AsInt64()
	if got != -5 {
		t.Fatalf("-5: got %d", got)
	}

	// Negating unsigned wraps in 64 bits.
	out, err = EvalUnaryOp(ctx, "-", intValue(u32, 1))
	if err != nil {
		t.Fatal(err)
	}
	u, _ := out.AsUInt64()
	if u != 0xffffffffffffffff {
		t.Fatalf("-1u: got %#x", u)
	}

	out, err = EvalUnaryOp(ctx, "!", intValue(i32, 0))
	if err != nil {
		t.Fatal(err)
	}
	u, _ = out.AsUInt64()
	if u != 1 || out.TypeName() != "bool" {
		t.Fatalf("!0: got %d %s", u, out.TypeName())
	}

	out, err = EvalUnaryOp(ctx, "~", intValue(i32, 0))
	if err != nil {
		t.Fatal(err)
	}
	got, _ = out.AsInt64()
	if got != -1 {
		t.Fatalf("~0: got %d", got)
	}
}

func TestValueToBool(t *testing.T) {
	ctx := opCtx()
	f64 := makeFloatType(LanguageC, 8)

	// -0.0 has a nonzero byte pattern but is numerically false.
	negZero := make([]byte, 8)
	negZero[7] = 0x80
	b, err := ValueToBool(ctx, NewTemporaryValue(f64, negZero))
	if err != nil || b {
		t.Fatalf("-0.0 must be false (err=%v)", err)
	}

	b, err = ValueToBool(ctx, floatValue(f64, 0.5))
	if err != nil || !b {
		t.Fatal("0.5 must be true")
	}
}
