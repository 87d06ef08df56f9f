package expr

import (
	"fmt"

	"github.com/funvibe/fundbg/internal/token"
)

// VmOpType enumerates the bytecode operations. The callback ops are the
// escape hatch for anything needing symbol lookups or target access;
// they keep the core op set small and fully synchronous.
type VmOpType int

const (
	// OpError reports a compile-time error at the point the operation
	// executes; it lets the compiler finish the stream and still report
	// positioned errors deterministically.
	OpError VmOpType = iota
	// OpUnary pops one value, applies Token's operator, pushes the
	// result.
	OpUnary
	// OpBinary pops right then left, applies Token's operator, pushes
	// the result.
	OpBinary
	// OpExpandRef pops a value and pushes it with references followed.
	// May suspend on a memory fetch.
	OpExpandRef
	// OpDrop discards the top of stack.
	OpDrop
	// OpDup duplicates the top of stack.
	OpDup
	// OpLiteral pushes Value.
	OpLiteral
	// OpJump continues at Dest.
	OpJump
	// OpJumpIfFalse pops a condition; continues at Dest when false.
	OpJumpIfFalse
	// OpGetLocal pushes the value of local slot Slot.
	OpGetLocal
	// OpSetLocal stores the top of stack (without popping) into local
	// slot Slot, creating the slot if it is the next unused one.
	OpSetLocal
	// OpPopLocals trims the locals to Slot entries at scope exit.
	OpPopLocals
	// OpPushBreak records Dest as the break target of the loop being
	// entered, together with the current stack and locals depths.
	OpPushBreak
	// OpPopBreak discards the innermost break record at loop exit.
	OpPopBreak
	// OpBreak unwinds to the innermost break record and jumps to its
	// destination.
	OpBreak
	// OpCallback0..N run a synchronous callback with 0, 1, 2, or
	// NumParams popped values and push its result.
	OpCallback0
	OpCallback1
	OpCallback2
	OpCallbackN
	// OpAsyncCallback0..N run a callback that completes through a
	// continuation, synchronously or not.
	OpAsyncCallback0
	OpAsyncCallback1
	OpAsyncCallback2
	OpAsyncCallbackN
)

func (t VmOpType) String() string {
	switch t {
	case OpError:
		return "Error"
	case OpUnary:
		return "Unary"
	case OpBinary:
		return "Binary"
	case OpExpandRef:
		return "ExpandRef"
	case OpDrop:
		return "Drop"
	case OpDup:
		return "Dup"
	case OpLiteral:
		return "Literal"
	case OpJump:
		return "Jump"
	case OpJumpIfFalse:
		return "JumpIfFalse"
	case OpGetLocal:
		return "GetLocal"
	case OpSetLocal:
		return "SetLocal"
	case OpPopLocals:
		return "PopLocals"
	case OpPushBreak:
		return "PushBreak"
	case OpPopBreak:
		return "PopBreak"
	case OpBreak:
		return "Break"
	case OpCallback0:
		return "Callback0"
	case OpCallback1:
		return "Callback1"
	case OpCallback2:
		return "Callback2"
	case OpCallbackN:
		return "CallbackN"
	case OpAsyncCallback0:
		return "AsyncCallback0"
	case OpAsyncCallback1:
		return "AsyncCallback1"
	case OpAsyncCallback2:
		return "AsyncCallback2"
	case OpAsyncCallbackN:
		return "AsyncCallbackN"
	}
	return fmt.Sprintf("VmOpType(%d)", int(t))
}

// Synchronous callback signatures.
type (
	Callback0 func() ErrOrValue
	Callback1 func(ExprValue) ErrOrValue
	Callback2 func(ExprValue, ExprValue) ErrOrValue
	CallbackN func([]ExprValue) ErrOrValue
)

// Asynchronous callback signatures. The completion may be invoked from
// inside the callback or later from the event loop.
type (
	AsyncCallback0 func(EvalCallback)
	AsyncCallback1 func(ExprValue, EvalCallback)
	AsyncCallback2 func(ExprValue, ExprValue, EvalCallback)
	AsyncCallbackN func([]ExprValue, EvalCallback)
)

// kInvalidDest marks a jump destination that still needs patching.
const kInvalidDest = -1

// VmOp is one bytecode operation. Exactly the fields relevant to Type
// are meaningful; Cb holds the callback for the callback op types.
type VmOp struct {
	Type  VmOpType
	Token token.Token // operator ops and error context
	Value ExprValue   // OpLiteral
	Err   error       // OpError
	Dest  int         // jump targets
	Slot  int         // local slot index / PopLocals depth
	// NumParams is the value count for the N-ary callback ops.
	NumParams int
	Cb        interface{}
}

func MakeErrorOp(err error, t token.Token) VmOp {
	return VmOp{Type: OpError, Err: err, Token: t}
}

func MakeUnaryOp(t token.Token) VmOp  { return VmOp{Type: OpUnary, Token: t} }
func MakeBinaryOp(t token.Token) VmOp { return VmOp{Type: OpBinary, Token: t} }

func MakeExpandRefOp() VmOp { return VmOp{Type: OpExpandRef} }
func MakeDropOp() VmOp      { return VmOp{Type: OpDrop} }
func MakeDupOp() VmOp       { return VmOp{Type: OpDup} }

func MakeLiteralOp(v ExprValue) VmOp { return VmOp{Type: OpLiteral, Value: v} }

// MakeJumpOp creates a jump whose destination is patched later via
// VmStream.PatchDest.
func MakeJumpOp() VmOp        { return VmOp{Type: OpJump, Dest: kInvalidDest} }
func MakeJumpIfFalseOp() VmOp { return VmOp{Type: OpJumpIfFalse, Dest: kInvalidDest} }

func MakeGetLocalOp(slot int) VmOp   { return VmOp{Type: OpGetLocal, Slot: slot} }
func MakeSetLocalOp(slot int) VmOp   { return VmOp{Type: OpSetLocal, Slot: slot} }
func MakePopLocalsOp(depth int) VmOp { return VmOp{Type: OpPopLocals, Slot: depth} }

func MakePushBreakOp() VmOp { return VmOp{Type: OpPushBreak, Dest: kInvalidDest} }
func MakePopBreakOp() VmOp  { return VmOp{Type: OpPopBreak} }
func MakeBreakOp() VmOp     { return VmOp{Type: OpBreak} }

func MakeCallback0(fn Callback0) VmOp { return VmOp{Type: OpCallback0, Cb: fn} }
func MakeCallback1(fn Callback1) VmOp { return VmOp{Type: OpCallback1, Cb: fn} }
func MakeCallback2(fn Callback2) VmOp { return VmOp{Type: OpCallback2, Cb: fn} }
func MakeCallbackN(numParams int, fn CallbackN) VmOp {
	return VmOp{Type: OpCallbackN, NumParams: numParams, Cb: fn}
}

func MakeAsyncCallback0(fn AsyncCallback0) VmOp { return VmOp{Type: OpAsyncCallback0, Cb: fn} }
func MakeAsyncCallback1(fn AsyncCallback1) VmOp { return VmOp{Type: OpAsyncCallback1, Cb: fn} }
func MakeAsyncCallback2(fn AsyncCallback2) VmOp { return VmOp{Type: OpAsyncCallback2, Cb: fn} }
func MakeAsyncCallbackN(numParams int, fn AsyncCallbackN) VmOp {
	return VmOp{Type: OpAsyncCallbackN, NumParams: numParams, Cb: fn}
}

// String renders the op for stream disassembly.
func (op VmOp) String() string {
	switch op.Type {
	case OpUnary, OpBinary:
		return fmt.Sprintf("%s(%s)", op.Type, op.Token.Lexeme)
	case OpLiteral:
		return fmt.Sprintf("Literal(%s)", op.Value.TypeName())
	case OpJump, OpJumpIfFalse, OpPushBreak:
		return fmt.Sprintf("%s(%d)", op.Type, op.Dest)
	case OpGetLocal, OpSetLocal, OpPopLocals:
		return fmt.Sprintf("%s(%d)", op.Type, op.Slot)
	case OpCallbackN, OpAsyncCallbackN:
		return fmt.Sprintf("%s(%d)", op.Type, op.NumParams)
	case OpError:
		return fmt.Sprintf("Error(%v)", op.Err)
	}
	return op.Type.String()
}
