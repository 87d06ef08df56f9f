package expr

// VmExec runs a compiled stream against an EvalContext. Execution is
// single-threaded and cooperative: ops run in a tight loop until one
// suspends on a target access, and the pending completion callback
// holds the execution state alive until it fires. There is no explicit
// cancellation; dropping the completion drops the whole machine.

type stepOutcome int

const (
	stepContinue stepOutcome = iota
	stepSuspend
	stepDone
)

// breakRecord is the unwind target of one enclosing loop.
type breakRecord struct {
	dest        int
	stackDepth  int
	localsDepth int
}

type VmExec struct {
	ctx    EvalContext
	stream *VmStream
	ip     int
	stack  []ExprValue
	locals []*LocalExprValue
	breaks []breakRecord
	cb     EvalCallback
	done   bool
}

// VmExecute runs the stream to completion. The completion callback is
// invoked exactly once, possibly from inside this call when nothing
// suspends.
func VmExecute(ctx EvalContext, stream *VmStream, cb EvalCallback) {
	e := &VmExec{ctx: ctx, stream: stream, cb: cb}
	e.run()
}

func (e *VmExec) run() {
	for !e.done && e.ip < e.stream.Len() {
		op := e.stream.At(e.ip)
		e.ip++ // before execution so jumps can overwrite
		switch e.step(op) {
		case stepContinue:
		case stepSuspend, stepDone:
			return
		}
	}
	e.finish()
}

// finish completes with the top of stack, or an empty value for a
// program whose last statement produced nothing.
func (e *VmExec) finish() {
	if e.done {
		return
	}
	e.done = true
	var result ExprValue
	if len(e.stack) > 0 {
		result = e.stack[len(e.stack)-1]
	}
	e.cb(NewErrOrValue(result))
}

func (e *VmExec) reportError(err error) stepOutcome {
	if e.done {
		return stepDone
	}
	e.done = true
	e.cb(ErrValue(err))
	return stepDone
}

func (e *VmExec) internalError(format string, args ...interface{}) stepOutcome {
	return e.reportError(newErrorf(ErrInternal, format, args...))
}

func (e *VmExec) push(v ExprValue) { e.stack = append(e.stack, v) }

func (e *VmExec) pop() (ExprValue, bool) {
	if len(e.stack) == 0 {
		return ExprValue{}, false
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v, true
}

func (e *VmExec) step(op VmOp) stepOutcome {
	switch op.Type {
	case OpError:
		return e.reportError(op.Err)

	case OpUnary:
		v, ok := e.pop()
		if !ok {
			return e.underflow(op)
		}
		result, err := EvalUnaryOp(e.ctx, op.Token.Lexeme, v)
		if err != nil {
			return e.reportError(err)
		}
		e.push(result)
		return stepContinue

	case OpBinary:
		right, ok := e.pop()
		if !ok {
			return e.underflow(op)
		}
		left, ok := e.pop()
		if !ok {
			return e.underflow(op)
		}
		result, err := EvalBinaryOp(e.ctx, left, op.Token.Lexeme, right)
		if err != nil {
			return e.reportError(err)
		}
		e.push(result)
		return stepContinue

	case OpExpandRef:
		v, ok := e.pop()
		if !ok {
			return e.underflow(op)
		}
		return e.runAsync(op, func(cont EvalCallback) {
			EnsureResolveReference(e.ctx, v, cont)
		})

	case OpDrop:
		if _, ok := e.pop(); !ok {
			return e.underflow(op)
		}
		return stepContinue

	case OpDup:
		if len(e.stack) == 0 {
			return e.underflow(op)
		}
		e.push(e.stack[len(e.stack)-1])
		return stepContinue

	case OpLiteral:
		e.push(op.Value)
		return stepContinue

	case OpJump:
		if op.Dest < 0 || op.Dest > e.stream.Len() {
			return e.internalError("VM jump destination %d out of range.", op.Dest)
		}
		e.ip = op.Dest
		return stepContinue

	case OpJumpIfFalse:
		cond, ok := e.pop()
		if !ok {
			return e.underflow(op)
		}
		if op.Dest < 0 || op.Dest > e.stream.Len() {
			return e.internalError("VM jump destination %d out of range.", op.Dest)
		}
		truthy, err := ValueToBool(e.ctx, cond)
		if err != nil {
			return e.reportError(err)
		}
		if !truthy {
			e.ip = op.Dest
		}
		return stepContinue

	case OpGetLocal:
		if op.Slot < 0 || op.Slot >= len(e.locals) {
			return e.internalError("VM local slot %d out of range.", op.Slot)
		}
		cell := e.locals[op.Slot]
		if cell == nil {
			return e.internalError("VM local slot %d is uninitialized.", op.Slot)
		}
		e.push(cell.Value())
		return stepContinue

	case OpSetLocal:
		if len(e.stack) == 0 {
			return e.underflow(op)
		}
		if op.Slot < 0 || op.Slot > len(e.locals) {
			return e.internalError("VM local slot %d out of range.", op.Slot)
		}
		top := e.stack[len(e.stack)-1]
		if op.Slot == len(e.locals) {
			e.locals = append(e.locals, NewLocalExprValue(top))
		} else {
			e.locals[op.Slot].SetValue(top)
		}
		return stepContinue

	case OpPopLocals:
		if op.Slot < 0 || op.Slot > len(e.locals) {
			return e.internalError("VM locals depth %d out of range.", op.Slot)
		}
		e.locals = e.locals[:op.Slot]
		return stepContinue

	case OpPushBreak:
		if op.Dest < 0 || op.Dest > e.stream.Len() {
			return e.internalError("VM break destination %d out of range.", op.Dest)
		}
		e.breaks = append(e.breaks, breakRecord{
			dest:        op.Dest,
			stackDepth:  len(e.stack),
			localsDepth: len(e.locals),
		})
		return stepContinue

	case OpPopBreak:
		if len(e.breaks) == 0 {
			return e.internalError("VM break stack underflow.")
		}
		e.breaks = e.breaks[:len(e.breaks)-1]
		return stepContinue

	case OpBreak:
		if len(e.breaks) == 0 {
			return e.reportError(newErrorf(ErrEval, "'break' outside of a loop."))
		}
		rec := e.breaks[len(e.breaks)-1]
		e.breaks = e.breaks[:len(e.breaks)-1]
		// The loop can only have grown these since its entry.
		if len(e.stack) < rec.stackDepth || len(e.locals) < rec.localsDepth {
			return e.internalError("VM state shrank inside a loop.")
		}
		e.stack = e.stack[:rec.stackDepth]
		e.locals = e.locals[:rec.localsDepth]
		e.ip = rec.dest
		return stepContinue

	case OpCallback0:
		return e.runSyncCallback(op, nil)
	case OpCallback1:
		params, ok := e.popN(1)
		if !ok {
			return e.underflow(op)
		}
		return e.runSyncCallback(op, params)
	case OpCallback2:
		params, ok := e.popN(2)
		if !ok {
			return e.underflow(op)
		}
		return e.runSyncCallback(op, params)
	case OpCallbackN:
		params, ok := e.popN(op.NumParams)
		if !ok {
			return e.underflow(op)
		}
		return e.runSyncCallback(op, params)

	case OpAsyncCallback0:
		fn := op.Cb.(AsyncCallback0)
		return e.runAsync(op, func(cont EvalCallback) { fn(cont) })
	case OpAsyncCallback1:
		params, ok := e.popN(1)
		if !ok {
			return e.underflow(op)
		}
		fn := op.Cb.(AsyncCallback1)
		return e.runAsync(op, func(cont EvalCallback) { fn(params[0], cont) })
	case OpAsyncCallback2:
		params, ok := e.popN(2)
		if !ok {
			return e.underflow(op)
		}
		fn := op.Cb.(AsyncCallback2)
		return e.runAsync(op, func(cont EvalCallback) { fn(params[0], params[1], cont) })
	case OpAsyncCallbackN:
		params, ok := e.popN(op.NumParams)
		if !ok {
			return e.underflow(op)
		}
		fn := op.Cb.(AsyncCallbackN)
		return e.runAsync(op, func(cont EvalCallback) { fn(params, cont) })
	}
	return e.internalError("Unknown VM op %d.", int(op.Type))
}

func (e *VmExec) underflow(op VmOp) stepOutcome {
	return e.internalError("VM stack underflow at op %d (%s).", e.ip-1, op.Type)
}

// popN pops n values, returned in evaluation (push) order.
func (e *VmExec) popN(n int) ([]ExprValue, bool) {
	if len(e.stack) < n {
		return nil, false
	}
	params := make([]ExprValue, n)
	copy(params, e.stack[len(e.stack)-n:])
	e.stack = e.stack[:len(e.stack)-n]
	return params, true
}

func (e *VmExec) runSyncCallback(op VmOp, params []ExprValue) stepOutcome {
	var result ErrOrValue
	switch fn := op.Cb.(type) {
	case Callback0:
		result = fn()
	case Callback1:
		result = fn(params[0])
	case Callback2:
		result = fn(params[0], params[1])
	case CallbackN:
		result = fn(params)
	default:
		return e.internalError("VM callback has wrong type.")
	}
	if result.HasError() {
		return e.reportError(result.Err())
	}
	e.push(result.Value())
	return stepContinue
}

// callbackInfo tracks one async issue. While syncWindowOpen the
// completion records its result instead of resuming, so a callback that
// completes from inside the issuing call (the common all-cached case)
// keeps running in the current loop iteration without recursion.
type callbackInfo struct {
	syncWindowOpen bool
	completed      bool
	result         ErrOrValue
}

// runAsync issues fn with a continuation and distinguishes synchronous
// from asynchronous completion.
func (e *VmExec) runAsync(op VmOp, fn func(EvalCallback)) stepOutcome {
	info := &callbackInfo{syncWindowOpen: true}
	fn(e.makeContinueCallback(info))
	info.syncWindowOpen = false

	if !info.completed {
		return stepSuspend // continuation will resume run()
	}
	if info.result.HasError() {
		return e.reportError(info.result.Err())
	}
	e.push(info.result.Value())
	return stepContinue
}

// makeContinueCallback builds the continuation for one async op. The
// returned callback must be invoked exactly once; it either records the
// result into the open synchronous window or resumes execution.
func (e *VmExec) makeContinueCallback(info *callbackInfo) EvalCallback {
	return func(result ErrOrValue) {
		if info.completed || e.done {
			return
		}
		info.completed = true
		info.result = result

		if info.syncWindowOpen {
			return // runAsync picks the result up
		}
		if result.HasError() {
			e.reportError(result.Err())
			return
		}
		e.push(result.Value())
		e.run()
	}
}
