package expr

import (
	"github.com/funvibe/fundbg/internal/symbols"
)

// readMemoryAsValue reads t.ByteSize() bytes at addr and wraps them as
// a memory-backed value of type t.
func readMemoryAsValue(ctx EvalContext, addr uint64, t symbols.Type, cb EvalCallback) {
	size := ctx.GetConcreteType(t).ByteSize()
	if size == 0 {
		cb(ErrValue(newErrorf(ErrType, "Can't handle zero-size type '%s'.", t.Name())))
		return
	}
	ctx.DataProvider().GetMemoryAsync(addr, size, func(data []byte, err error) {
		if err != nil {
			cb(ErrValue(&EvalError{Kind: ErrTarget, Msg: err.Error()}))
			return
		}
		cb(NewErrOrValue(NewValue(t, data, MemorySource(addr))))
	})
}

// ResolvePointer dereferences a pointer value, producing the pointed-to
// value backed by the pointed-to memory.
func ResolvePointer(ctx EvalContext, v ExprValue, cb EvalCallback) {
	pointee, ok := symbols.IsPointer(ctx.GetConcreteType(v.Type()))
	if !ok {
		cb(ErrValue(newErrorf(ErrType,
			"Attempting to dereference '%s' which is not a pointer.", v.TypeName())))
		return
	}
	addr, err := v.AsUInt64()
	if err != nil {
		cb(ErrValue(err))
		return
	}
	readMemoryAsValue(ctx, addr, pointee, cb)
}

// EnsureResolveReference expands v if it is a reference, reading the
// referenced value from the target; non-references pass through
// unchanged. References never nest, so one expansion suffices.
func EnsureResolveReference(ctx EvalContext, v ExprValue, cb EvalCallback) {
	if v.IsNull() {
		cb(NewErrOrValue(v))
		return
	}
	referenced, ok := symbols.IsReference(ctx.GetConcreteType(v.Type()))
	if !ok {
		cb(NewErrOrValue(v))
		return
	}
	addr, err := v.AsUInt64()
	if err != nil {
		cb(ErrValue(err))
		return
	}
	readMemoryAsValue(ctx, addr, referenced, cb)
}

// AddressOf produces a typed pointer to a memory-backed value.
func AddressOf(ctx EvalContext, v ExprValue) (ExprValue, error) {
	src := v.Source()
	if src.Kind != SourceMemory || src.IsBitfield() {
		return ExprValue{}, newErrorf(ErrEval,
			"Can't take the address of '%s': it has no memory address.", v.TypeName())
	}
	ptrType := symbols.NewPointerType(v.Type())
	data := make([]byte, symbols.PointerSize)
	for i := 0; i < symbols.PointerSize; i++ {
		data[i] = byte(src.Address >> (8 * uint(i)))
	}
	return NewTemporaryValue(ptrType, data), nil
}
