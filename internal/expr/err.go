package expr

import "fmt"

// ErrKind classifies evaluation errors. All errors are values; nothing
// in the evaluator panics across a package boundary.
type ErrKind int

const (
	// ErrParse: bad input text; source position context is appended by
	// the parser.
	ErrParse ErrKind = iota
	// ErrType: mismatched or unsupported cast, zero-size type,
	// non-numeric operand to an arithmetic operator.
	ErrType
	// ErrEval: runtime evaluation failures such as divide-by-zero.
	ErrEval
	// ErrTarget: failed or short memory/register access, forwarded
	// verbatim from the data provider.
	ErrTarget
	// ErrAssign: unassignable destination (temporary, constant,
	// composite).
	ErrAssign
	// ErrInternal: bytecode-correctness invariant violations. These
	// indicate a compiler bug, not a user error.
	ErrInternal
)

// EvalError is the error type produced by the evaluator core.
type EvalError struct {
	Kind ErrKind
	Msg  string
}

func (e *EvalError) Error() string { return e.Msg }

func newErrorf(kind ErrKind, format string, args ...interface{}) *EvalError {
	return &EvalError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// divisionByZero is the exact user-visible message for integer division
// and modulo with a zero divisor. Floating point divides never fault.
func divisionByZero() *EvalError {
	return &EvalError{Kind: ErrEval, Msg: "Division by 0."}
}
