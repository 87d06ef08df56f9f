package expr

import (
	"github.com/funvibe/fundbg/internal/dwarfexpr"
	"github.com/funvibe/fundbg/internal/symbols"
)

// EvalVariableLocation evaluates a variable's DWARF location expression
// and produces the variable's typed value. Pointer results read the
// value from memory; value results materialize the bits; composite
// results take the piece data as-is.
func EvalVariableLocation(ctx EvalContext, location []byte, t symbols.Type, cb EvalCallback) {
	dwarfexpr.Evaluate(ctx.DataProvider(), location, func(result dwarfexpr.Result, err error) {
		if err != nil {
			cb(ErrValue(&EvalError{Kind: ErrTarget, Msg: err.Error()}))
			return
		}
		switch result.Kind {
		case dwarfexpr.ResultPointer:
			readMemoryAsValue(ctx, result.Value, t, cb)

		case dwarfexpr.ResultValue:
			size := ctx.GetConcreteType(t).ByteSize()
			if size == 0 || size > 8 {
				// The expression produced one 64-bit value but the type
				// wants something else; the symbol data disagrees with
				// itself.
				cb(ErrValue(newErrorf(ErrInternal,
					"DWARF expression produced a value incompatible with type '%s' of size %d. Please file a bug with a repro.",
					t.Name(), size)))
				return
			}
			data := make([]byte, size)
			for i := uint32(0); i < size; i++ {
				data[i] = byte(result.Value >> (8 * uint(i)))
			}
			source := TemporarySource()
			switch result.Source {
			case dwarfexpr.SourceRegister:
				if size < 8 {
					// The variable occupies the low bytes; writes must
					// leave the rest of the register alone.
					source = RegisterBitfieldSource(result.Register, size*8, 0)
				} else {
					source = RegisterSource(result.Register)
				}
			case dwarfexpr.SourceConstant:
				source = ConstantSource()
			}
			cb(NewErrOrValue(NewValue(t, data, source)))

		case dwarfexpr.ResultData:
			size := ctx.GetConcreteType(t).ByteSize()
			if uint32(len(result.Data)) < size {
				cb(ErrValue(newErrorf(ErrTarget,
					"Variable data is only %d bytes but type '%s' needs %d.",
					len(result.Data), t.Name(), size)))
				return
			}
			cb(NewErrOrValue(NewValue(t, result.Data[:size], CompositeSource())))

		default:
			cb(ErrValue(newErrorf(ErrInternal, "Unknown DWARF result kind.")))
		}
	})
}
