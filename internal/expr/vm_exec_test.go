package expr

import (
	"strings"
	"testing"

	"github.com/funvibe/fundbg/internal/debug"
	"github.com/funvibe/fundbg/internal/token"
)

func tokenAt(lexeme string) token.Token { return token.Token{Lexeme: lexeme} }

func runStream(t *testing.T, stream *VmStream) ErrOrValue {
	t.Helper()
	ctx := NewContext(LanguageC, nil)
	var out ErrOrValue
	done := false
	VmExecute(ctx, stream, func(r ErrOrValue) {
		done = true
		out = r
	})
	if !done {
		t.Fatal("stream did not complete synchronously")
	}
	return out
}

func TestVmLiteralAndDrop(t *testing.T) {
	i32 := makeIntType(LanguageC, true, 4)
	stream := &VmStream{}
	stream.Append(MakeLiteralOp(intValue(i32, 1)))
	stream.Append(MakeLiteralOp(intValue(i32, 2)))
	stream.Append(MakeDropOp())

	out := runStream(t, stream)
	if out.HasError() {
		t.Fatal(out.Err())
	}
	got, _ := out.Value().AsInt64()
	if got != 1 {
		t.Fatalf("expected 1 after drop, got %d", got)
	}
}

func TestVmStackUnderflow(t *testing.T) {
	stream := &VmStream{}
	stream.Append(MakeDropOp())

	out := runStream(t, stream)
	if !out.HasError() {
		t.Fatal("expected underflow error")
	}
	ee, ok := out.Err().(*EvalError)
	if !ok || ee.Kind != ErrInternal {
		t.Fatalf("underflow should be an internal error, got %v", out.Err())
	}
}

func TestVmErrorOp(t *testing.T) {
	stream := &VmStream{}
	stream.Append(MakeErrorOp(newErrorf(ErrParse, "boom"), tokenAt("x")))

	out := runStream(t, stream)
	if !out.HasError() || out.Err().Error() != "boom" {
		t.Fatalf("expected boom, got %v", out.Err())
	}
}

// A synchronous completion from inside the async callback must not
// recurse into run(); the sync window picks the result up in place.
func TestVmAsyncCallbackSyncWindow(t *testing.T) {
	i32 := makeIntType(LanguageC, true, 4)
	stream := &VmStream{}
	stream.Append(MakeAsyncCallback0(func(cont EvalCallback) {
		cont(NewErrOrValue(intValue(i32, 42)))
	}))

	out := runStream(t, stream)
	if out.HasError() {
		t.Fatal(out.Err())
	}
	got, _ := out.Value().AsInt64()
	if got != 42 {
		t.Fatalf("expected 42, got %d", got)
	}
}

// A deferred completion suspends the machine; the continuation resumes
// it when the event loop runs.
func TestVmAsyncCallbackDeferred(t *testing.T) {
	i32 := makeIntType(LanguageC, true, 4)
	loop := debug.NewLoop()

	stream := &VmStream{}
	stream.Append(MakeAsyncCallback0(func(cont EvalCallback) {
		loop.Post(func() { cont(NewErrOrValue(intValue(i32, 7))) })
	}))
	stream.Append(MakeLiteralOp(intValue(i32, 1)))
	stream.Append(MakeBinaryOp(tokenAt("+")))

	ctx := NewContext(LanguageC, nil)
	var out ErrOrValue
	done := false
	VmExecute(ctx, stream, func(r ErrOrValue) {
		done = true
		out = r
	})
	if done {
		t.Fatal("should have suspended")
	}
	loop.PumpAll()
	if !done {
		t.Fatal("loop pump should have completed execution")
	}
	if out.HasError() {
		t.Fatal(out.Err())
	}
	got, _ := out.Value().AsInt64()
	if got != 8 {
		t.Fatalf("expected 8, got %d", got)
	}
}

// A continuation that fires twice must not corrupt execution; only the
// first completion counts.
func TestVmContinuationSingleShot(t *testing.T) {
	i32 := makeIntType(LanguageC, true, 4)
	var saved EvalCallback

	stream := &VmStream{}
	stream.Append(MakeAsyncCallback0(func(cont EvalCallback) {
		saved = cont
		cont(NewErrOrValue(intValue(i32, 1)))
	}))

	out := runStream(t, stream)
	got, _ := out.Value().AsInt64()
	if got != 1 {
		t.Fatalf("expected 1, got %d", got)
	}

	// Late duplicate: ignored.
	saved(NewErrOrValue(intValue(i32, 99)))
	got, _ = out.Value().AsInt64()
	if got != 1 {
		t.Fatal("duplicate completion must not change the result")
	}
}

func TestVmCallbackParamOrder(t *testing.T) {
	i32 := makeIntType(LanguageC, true, 4)
	stream := &VmStream{}
	stream.Append(MakeLiteralOp(intValue(i32, 10)))
	stream.Append(MakeLiteralOp(intValue(i32, 3)))
	stream.Append(MakeCallback2(func(a, b ExprValue) ErrOrValue {
		av, _ := a.AsInt64()
		bv, _ := b.AsInt64()
		return NewErrOrValue(intValue(i32, av-bv))
	}))

	out := runStream(t, stream)
	got, _ := out.Value().AsInt64()
	if got != 7 {
		t.Fatalf("params must arrive in push order: got %d", got)
	}
}

func TestVmLocalSlotErrors(t *testing.T) {
	stream := &VmStream{}
	stream.Append(MakeGetLocalOp(0))

	out := runStream(t, stream)
	if !out.HasError() || !strings.Contains(out.Err().Error(), "local slot 0 out of range") {
		t.Fatalf("expected slot range error, got %v", out.Err())
	}
}

func TestVmBreakOutsideLoop(t *testing.T) {
	stream := &VmStream{}
	stream.Append(MakeBreakOp())

	out := runStream(t, stream)
	if !out.HasError() || out.Err().Error() != "'break' outside of a loop." {
		t.Fatalf("got %v", out.Err())
	}
}

func TestVmStreamDisassembly(t *testing.T) {
	i32 := makeIntType(LanguageC, true, 4)
	stream := &VmStream{}
	stream.Append(MakeLiteralOp(intValue(i32, 1)))
	jump := stream.Append(MakeJumpIfFalseOp())
	stream.Append(MakeLiteralOp(intValue(i32, 2)))
	stream.PatchDest(jump, stream.Len())

	text := stream.String()
	if !strings.Contains(text, "JumpIfFalse(3)") {
		t.Fatalf("disassembly missing patched jump:\n%s", text)
	}
	if !strings.Contains(text, "Literal(int32_t)") {
		t.Fatalf("disassembly missing literal:\n%s", text)
	}
}

// An empty program completes with a null value.
func TestVmEmptyResult(t *testing.T) {
	stream := &VmStream{}
	stream.Append(MakeLiteralOp(ExprValue{}))
	out := runStream(t, stream)
	if out.HasError() {
		t.Fatal(out.Err())
	}
	if !out.Value().IsNull() {
		t.Fatal("expected a null value")
	}
}
