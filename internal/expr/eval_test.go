package expr

import (
	"encoding/binary"
	"testing"

	"github.com/funvibe/fundbg/internal/debug"
	"github.com/funvibe/fundbg/internal/symbols"
)

// testTarget is a context over a snapshot plus the loop driving its
// asynchronous completions.
type testTarget struct {
	ctx  *Context
	loop *debug.Loop
	snap *debug.Snapshot
}

// newTestTarget builds a small recorded process:
//
//	rax = 00 01 02 03 04 05 06 07
//	0x2000: int32 42, int32 -1, then an int32[4] array {10,11,12,13}
//	frame base 0x3000 with int32 7 at fb-8
func newTestTarget(t *testing.T, async bool) *testTarget {
	t.Helper()
	snap, err := debug.LoadSnapshotYAML([]byte(`
frame_base: 0x3000
registers:
  rax: "0001020304050607"
  rbx: "ffffffffffffffff"
memory:
  - address: 0x2000
    data: "2a000000ffffffff0a0000000b0000000c0000000d000000"
  - address: 0x2ff8
    data: "0700000000000000"
`))
	if err != nil {
		t.Fatalf("snapshot error: %s", err)
	}

	var loop *debug.Loop
	if async {
		loop = debug.NewLoop()
	}
	ctx := NewContext(LanguageC, debug.NewSnapshotProvider(snap, loop))
	return &testTarget{ctx: ctx, loop: loop, snap: snap}
}

func (tt *testTarget) eval(t *testing.T, input string) ExprValue {
	t.Helper()
	var out ExprValue
	done := false
	EvalExpression(input, tt.ctx, true, func(result ErrOrValue) {
		done = true
		if result.HasError() {
			t.Fatalf("eval %q: %s", input, result.Err())
		}
		out = result.Value()
	})
	tt.pump(t, input, &done)
	return out
}

func (tt *testTarget) evalError(t *testing.T, input string) string {
	t.Helper()
	var msg string
	done := false
	EvalExpression(input, tt.ctx, true, func(result ErrOrValue) {
		done = true
		if !result.HasError() {
			t.Fatalf("eval %q: expected error, got type %q", input, result.Value().TypeName())
		}
		msg = result.Err().Error()
	})
	tt.pump(t, input, &done)
	return msg
}

func (tt *testTarget) pump(t *testing.T, input string, done *bool) {
	t.Helper()
	for !*done {
		if tt.loop == nil || tt.loop.PumpAll() == 0 {
			t.Fatalf("eval %q never completed", input)
		}
	}
}

func expectInt(t *testing.T, v ExprValue, expected int64) {
	t.Helper()
	got, err := v.AsInt64()
	if err != nil {
		t.Fatalf("conversion error: %s", err)
	}
	if got != expected {
		t.Fatalf("expected %d, got %d", expected, got)
	}
}

func expectUint(t *testing.T, v ExprValue, expected uint64) {
	t.Helper()
	got, err := v.AsUInt64()
	if err != nil {
		t.Fatalf("conversion error: %s", err)
	}
	if got != expected {
		t.Fatalf("expected %d, got %d", expected, got)
	}
}

func TestEvalArithmetic(t *testing.T) {
	tt := newTestTarget(t, false)

	expectInt(t, tt.eval(t, "1 + 2 * 3"), 7)
	expectInt(t, tt.eval(t, "(1 + 2) * 3"), 9)
	expectInt(t, tt.eval(t, "10 % 3"), 1)
	expectInt(t, tt.eval(t, "-5 / 2"), -2)
	expectInt(t, tt.eval(t, "1 << 4 | 1"), 17)
	expectInt(t, tt.eval(t, "~0 & 0xff"), 255)
}

func TestEvalDivisionByZero(t *testing.T) {
	tt := newTestTarget(t, false)

	if msg := tt.evalError(t, "1 / 0"); msg != "Division by 0." {
		t.Fatalf("wrong message: %q", msg)
	}
	if msg := tt.evalError(t, "1 % 0"); msg != "Division by 0." {
		t.Fatalf("wrong message: %q", msg)
	}
	// IEEE division never faults.
	v := tt.eval(t, "1.0 / 0.0")
	d, err := v.AsDouble()
	if err != nil || d <= 0 {
		t.Fatalf("expected +inf, got %v (%v)", d, err)
	}
}

// Integer math runs in 64 bits: operands smaller than the result width
// never truncate intermediate values.
func TestEvalSixtyFourBitWidening(t *testing.T) {
	tt := newTestTarget(t, false)

	v := tt.eval(t, "2000000000 + 2000000000")
	if v.ByteSize() != 8 {
		t.Fatalf("expected 8-byte result, got %d", v.ByteSize())
	}
	expectInt(t, v, 4000000000)
}

func TestEvalComparisons(t *testing.T) {
	tt := newTestTarget(t, false)

	v := tt.eval(t, "3 < 4")
	if v.ByteSize() != 1 || v.TypeName() != "bool" {
		t.Fatalf("comparison should produce a one byte bool, got %s/%d", v.TypeName(), v.ByteSize())
	}
	expectUint(t, v, 1)
	expectUint(t, tt.eval(t, "4 < 3"), 0)
	// -1 compared in the unsigned realm is huge.
	expectUint(t, tt.eval(t, "-1 < 1u"), 0)
	// Both signed: normal ordering.
	expectUint(t, tt.eval(t, "-1 < 1"), 1)
}

func TestEvalShortCircuit(t *testing.T) {
	tt := newTestTarget(t, false)

	// The right side names a nonexistent variable; it must never be
	// evaluated when the left side decides.
	expectUint(t, tt.eval(t, "0 && no_such_thing"), 0)
	expectUint(t, tt.eval(t, "1 || no_such_thing"), 1)

	expectUint(t, tt.eval(t, "1 && 2"), 1)
	expectUint(t, tt.eval(t, "0 || 0"), 0)

	if msg := tt.evalError(t, "1 && no_such_thing"); msg != "No variable 'no_such_thing' found." {
		t.Fatalf("wrong message: %q", msg)
	}
}

func TestEvalTernary(t *testing.T) {
	tt := newTestTarget(t, false)

	expectInt(t, tt.eval(t, "1 ? 2 : 3"), 2)
	expectInt(t, tt.eval(t, "0 ? 2 : 3"), 3)
	// Only the taken branch evaluates.
	expectInt(t, tt.eval(t, "1 ? 2 : no_such_thing"), 2)
}

func TestEvalLocalsAndLoops(t *testing.T) {
	tt := newTestTarget(t, false)

	expectInt(t, tt.eval(t, "auto x = 5; x + 1"), 6)
	expectInt(t, tt.eval(t,
		"auto i = 0; auto sum = 0; while (i < 5) { sum = sum + i; i = i + 1 }; sum"), 10)
	expectInt(t, tt.eval(t,
		"auto i = 0; while (true) { i = i + 1; if (i > 3) { break } }; i"), 4)
}

func TestEvalSizeof(t *testing.T) {
	tt := newTestTarget(t, false)

	expectUint(t, tt.eval(t, "sizeof(int)"), 4)
	expectUint(t, tt.eval(t, "sizeof(unsigned long long)"), 8)
	expectUint(t, tt.eval(t, "sizeof(char*)"), 8)
	expectUint(t, tt.eval(t, "sizeof(1 + 1)"), 8)
}

func TestEvalCastExpressions(t *testing.T) {
	tt := newTestTarget(t, false)

	// Truncation keeps the low bytes.
	v := tt.eval(t, "(char)0x1234")
	if v.ByteSize() != 1 {
		t.Fatalf("expected 1 byte, got %d", v.ByteSize())
	}
	expectInt(t, v, 0x34)

	expectInt(t, tt.eval(t, "static_cast<int>(3.7)"), 3)
	expectInt(t, tt.eval(t, "(int)-1.5"), -1)

	// reinterpret_cast widens with zero fill, never sign extension.
	v = tt.eval(t, "reinterpret_cast<unsigned long>(-1)")
	expectUint(t, v, 0xffffffff)
}

func TestEvalRegisters(t *testing.T) {
	for _, async := range []bool{false, true} {
		tt := newTestTarget(t, async)

		expectUint(t, tt.eval(t, "$rax"), 0x0706050403020100)
		expectUint(t, tt.eval(t, "$eax"), 0x03020100)
		expectUint(t, tt.eval(t, "$ax"), 0x0100)
		expectUint(t, tt.eval(t, "$al"), 0x00)
		expectUint(t, tt.eval(t, "$ah"), 0x01)
		expectUint(t, tt.eval(t, "$reg(ah)"), 0x01)

		if msg := tt.evalError(t, "$nope"); msg != "Unknown register 'nope'." {
			t.Fatalf("wrong message: %q", msg)
		}
	}
}

// Writing a sub-register view merges into the canonical register and
// leaves the surrounding bytes alone.
func TestEvalRegisterAssignment(t *testing.T) {
	for _, async := range []bool{false, true} {
		tt := newTestTarget(t, async)

		expectUint(t, tt.eval(t, "$ah = 7"), 7)
		rax, err := tt.snap.ReadRegister(debug.RegRAX)
		if err != nil {
			t.Fatalf("register read: %s", err)
		}
		expected := []byte{0, 7, 2, 3, 4, 5, 6, 7}
		for i := range expected {
			if rax[i] != expected[i] {
				t.Fatalf("async=%v: rax byte %d: expected %#x, got %#x", async, i, expected[i], rax[i])
			}
		}

		// Full canonical write replaces everything.
		tt.eval(t, "$rax = 1")
		expectUint(t, tt.eval(t, "$rax"), 1)
	}
}

func TestEvalMemoryVariable(t *testing.T) {
	for _, async := range []bool{false, true} {
		tt := newTestTarget(t, async)

		// int32 "answer" located at 0x2000 via DW_OP_addr.
		location := append([]byte{0x03}, addrBytes(0x2000)...)
		tt.ctx.AddLocatedVariable("answer", makeIntType(LanguageC, true, 4), location)

		expectInt(t, tt.eval(t, "answer"), 42)
		expectInt(t, tt.eval(t, "answer + 1"), 43)

		expectInt(t, tt.eval(t, "answer = 50"), 50)
		expectInt(t, tt.eval(t, "answer"), 50)
	}
}

func TestEvalFrameBaseVariable(t *testing.T) {
	tt := newTestTarget(t, true)

	// DW_OP_fbreg -8: frame base 0x3000, so the variable is at 0x2ff8.
	tt.ctx.AddLocatedVariable("local7", makeIntType(LanguageC, true, 4), []byte{0x91, 0x78})

	expectInt(t, tt.eval(t, "local7"), 7)
	expectInt(t, tt.eval(t, "local7 * local7"), 49)
}

// A variable whose DWARF location computes a constant reads fine but
// can't be assigned.
func TestEvalConstantVariable(t *testing.T) {
	tt := newTestTarget(t, false)

	// DW_OP_constu 42, DW_OP_stack_value.
	tt.ctx.AddLocatedVariable("k", makeIntType(LanguageC, true, 4), []byte{0x10, 42, 0x9f})

	expectInt(t, tt.eval(t, "k"), 42)
	expectInt(t, tt.eval(t, "k + 1"), 43)

	if msg := tt.evalError(t, "k = 1"); msg != "Can't assign to a constant." {
		t.Fatalf("wrong message: %q", msg)
	}
}

// A variable located in a register is writable through its register.
func TestEvalRegisterVariable(t *testing.T) {
	tt := newTestTarget(t, false)

	// DW_OP_reg3 is rbx in the System V numbering.
	tt.ctx.AddLocatedVariable("counter", makeIntType(LanguageC, true, 4), []byte{0x50 + 3})

	expectInt(t, tt.eval(t, "counter"), -1)
	expectInt(t, tt.eval(t, "counter = 10"), 10)
	expectInt(t, tt.eval(t, "counter"), 10)

	// Only the variable's 4 bytes changed; the top half of rbx kept its
	// old bits.
	rbx, err := tt.snap.ReadRegister(debug.RegRBX)
	if err != nil {
		t.Fatalf("register read: %s", err)
	}
	if binary.LittleEndian.Uint64(rbx) != 0xffffffff0000000a {
		t.Fatalf("rbx: got %#x", binary.LittleEndian.Uint64(rbx))
	}
}

func TestEvalPointersAndArrays(t *testing.T) {
	for _, async := range []bool{false, true} {
		tt := newTestTarget(t, async)

		int32Type := makeIntType(LanguageC, true, 4)
		ptrType := symbols.NewPointerType(int32Type)
		arrType := &symbols.ArrayType{ValueType: int32Type, Count: 4}

		ptrData := addrBytes(0x2000)
		tt.ctx.AddVariable("p", ptrType, NewTemporaryValue(ptrType, ptrData))
		tt.ctx.AddLocatedVariable("arr", arrType, append([]byte{0x03}, addrBytes(0x2008)...))

		expectInt(t, tt.eval(t, "*p"), 42)
		expectInt(t, tt.eval(t, "p[1]"), -1)
		expectInt(t, tt.eval(t, "*(p + 1)"), -1)

		expectInt(t, tt.eval(t, "arr[0]"), 10)
		expectInt(t, tt.eval(t, "arr[3]"), 13)
		if msg := tt.evalError(t, "arr[4]"); msg != "Array index 4 out of range for 'int32_t[4]'." {
			t.Fatalf("wrong message: %q", msg)
		}

		// &arr[1] round-trips through the address.
		expectInt(t, tt.eval(t, "*(&arr[1])"), 11)
	}
}

func TestEvalAssignThroughPointer(t *testing.T) {
	tt := newTestTarget(t, false)

	int32Type := makeIntType(LanguageC, true, 4)
	ptrType := symbols.NewPointerType(int32Type)
	tt.ctx.AddVariable("p", ptrType, NewTemporaryValue(ptrType, addrBytes(0x2000)))

	expectInt(t, tt.eval(t, "*p = 99"), 99)
	expectInt(t, tt.eval(t, "*p"), 99)
}

func TestEvalMemberAccess(t *testing.T) {
	for _, async := range []bool{false, true} {
		tt := newTestTarget(t, async)

		int32Type := makeIntType(LanguageC, true, 4)
		pair := &symbols.Collection{
			TypeName: "Pair",
			Size:     8,
			Members: []symbols.DataMember{
				{Name: "first", Type: int32Type, Offset: 0},
				{Name: "second", Type: int32Type, Offset: 4},
			},
		}
		tt.ctx.AddType(pair)
		tt.ctx.AddLocatedVariable("pair", pair, append([]byte{0x03}, addrBytes(0x2000)...))

		ptrType := symbols.NewPointerType(pair)
		tt.ctx.AddVariable("pp", ptrType, NewTemporaryValue(ptrType, addrBytes(0x2000)))

		expectInt(t, tt.eval(t, "pair.first"), 42)
		expectInt(t, tt.eval(t, "pair.second"), -1)
		expectInt(t, tt.eval(t, "pp->first"), 42)
		expectInt(t, tt.eval(t, "pp->second"), -1)

		expectInt(t, tt.eval(t, "pair.second = 5"), 5)
		expectInt(t, tt.eval(t, "pair.second"), 5)

		if msg := tt.evalError(t, "pair.third"); msg != "No member 'third' in 'Pair'." {
			t.Fatalf("wrong message: %q", msg)
		}
	}
}

func TestEvalBitfieldMember(t *testing.T) {
	tt := newTestTarget(t, false)

	uint32Type := makeIntType(LanguageC, false, 4)
	flags := &symbols.Collection{
		TypeName: "Flags",
		Size:     4,
		Members: []symbols.DataMember{
			{Name: "low", Type: uint32Type, Offset: 0, BitSize: 4, BitShift: 0},
			{Name: "mid", Type: uint32Type, Offset: 0, BitSize: 8, BitShift: 4},
		},
	}
	// 0x2000 holds 2a 00 00 00 = 0b00101010.
	tt.ctx.AddLocatedVariable("flags", flags, append([]byte{0x03}, addrBytes(0x2000)...))

	expectUint(t, tt.eval(t, "flags.low"), 0xa)
	expectUint(t, tt.eval(t, "flags.mid"), 0x2)

	// Writing one field must leave its neighbors untouched.
	expectUint(t, tt.eval(t, "flags.mid = 0xff"), 0xff)
	expectUint(t, tt.eval(t, "flags.low"), 0xa)
	expectUint(t, tt.eval(t, "flags.mid"), 0xff)
}

func TestEvalErrors(t *testing.T) {
	tt := newTestTarget(t, false)

	if msg := tt.evalError(t, "no_such_thing"); msg != "No variable 'no_such_thing' found." {
		t.Fatalf("wrong message: %q", msg)
	}
	if msg := tt.evalError(t, "1 = 2"); msg != "Can't assign to a temporary." {
		t.Fatalf("wrong message: %q", msg)
	}

	int32Type := makeIntType(LanguageC, true, 4)
	ptrType := symbols.NewPointerType(int32Type)
	tt.ctx.AddVariable("bad", ptrType, NewTemporaryValue(ptrType, addrBytes(0x99)))
	if msg := tt.evalError(t, "*bad"); msg != "Invalid pointer 0x99." {
		t.Fatalf("wrong message: %q", msg)
	}
}

func TestEvalExpressionsBatch(t *testing.T) {
	tt := newTestTarget(t, true)

	var results []ErrOrValue
	EvalExpressions([]string{"1 + 1", "no_such_thing", "$ah"}, tt.ctx, true, func(r []ErrOrValue) {
		results = r
	})
	for results == nil {
		if tt.loop.PumpAll() == 0 {
			t.Fatal("batch never completed")
		}
	}

	expectInt(t, results[0].Value(), 2)
	if !results[1].HasError() {
		t.Fatal("expected error for middle expression")
	}
	expectUint(t, results[2].Value(), 1)
}

func addrBytes(addr uint64) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, addr)
	return out
}
