// Package expr is the expression evaluation core: it parses debugger
// expressions, compiles them to bytecode, and runs them against the
// debugged process. Evaluation is asynchronous end to end; anything
// already cached completes synchronously from inside the call.
package expr

import (
	"github.com/google/uuid"
	"github.com/tliron/commonlog"

	"github.com/funvibe/fundbg/internal/parser"
)

var log = commonlog.GetLogger("fundbg.expr")

// EvalExpression evaluates one expression (or a ';'-separated program)
// in the given context. When followReferences is set, a reference
// result is expanded to the referenced value; printing wants that,
// while "&x"-style consumers do not. The callback fires exactly once.
func EvalExpression(input string, ctx EvalContext, followReferences bool, cb EvalCallback) {
	id := uuid.NewString()
	log.Debugf("eval %s: %q", id, input)

	program, err := parser.Parse(input)
	if err != nil {
		cb(ErrValue(&EvalError{Kind: ErrParse, Msg: err.Error()}))
		return
	}
	stream, err := Compile(ctx, program)
	if err != nil {
		cb(ErrValue(err))
		return
	}

	VmExecute(ctx, stream, func(result ErrOrValue) {
		if result.HasError() {
			log.Debugf("eval %s failed: %s", id, result.Err())
			cb(result)
			return
		}
		if !followReferences || result.Value().IsNull() {
			cb(result)
			return
		}
		EnsureResolveReference(ctx, result.Value(), cb)
	})
}

// EvalExpressions evaluates inputs in order, left to right, and
// completes once with per-input results. A failing input produces its
// error in place; later inputs still run.
func EvalExpressions(inputs []string, ctx EvalContext, followReferences bool, cb func([]ErrOrValue)) {
	results := make([]ErrOrValue, len(inputs))
	var runNext func(i int)
	runNext = func(i int) {
		if i >= len(inputs) {
			cb(results)
			return
		}
		EvalExpression(inputs[i], ctx, followReferences, func(r ErrOrValue) {
			results[i] = r
			runNext(i + 1)
		})
	}
	runNext(0)
}
