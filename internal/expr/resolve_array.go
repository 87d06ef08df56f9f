package expr

import (
	"github.com/funvibe/fundbg/internal/symbols"
)

// ResolveArrayItem evaluates base[index]. Array values index within the
// already-fetched data when possible; pointer bases compute the element
// address and fetch it from the target. Negative pointer indices are
// legal, negative array indices are not.
func ResolveArrayItem(ctx EvalContext, base ExprValue, index int64, cb EvalCallback) {
	concrete := ctx.GetConcreteType(base.Type())

	if arr, ok := concrete.(*symbols.ArrayType); ok {
		resolveStaticArrayItem(ctx, base, arr, index, cb)
		return
	}

	if pointee, ok := symbols.IsPointer(concrete); ok {
		elemSize := ctx.GetConcreteType(pointee).ByteSize()
		if elemSize == 0 {
			cb(ErrValue(newErrorf(ErrType,
				"Can't index pointer to zero-size type '%s'.", pointee.Name())))
			return
		}
		addr, err := base.AsUInt64()
		if err != nil {
			cb(ErrValue(err))
			return
		}
		addr = uint64(int64(addr) + index*int64(elemSize))
		readMemoryAsValue(ctx, addr, pointee, cb)
		return
	}

	cb(ErrValue(newErrorf(ErrType, "Can't index value of type '%s'.", base.TypeName())))
}

func resolveStaticArrayItem(ctx EvalContext, base ExprValue, arr *symbols.ArrayType, index int64, cb EvalCallback) {
	if index < 0 || uint32(index) >= arr.Count {
		cb(ErrValue(newErrorf(ErrEval,
			"Array index %d out of range for '%s'.", index, arr.Name())))
		return
	}
	elemSize := ctx.GetConcreteType(arr.ValueType).ByteSize()
	if elemSize == 0 {
		cb(ErrValue(newErrorf(ErrType,
			"Can't handle zero-size type '%s'.", arr.ValueType.Name())))
		return
	}
	offset := uint64(index) * uint64(elemSize)

	// An array value from memory may have been fetched whole; slice it
	// rather than re-reading. Otherwise read just the element.
	if src := base.Source(); src.Kind == SourceMemory && !src.IsBitfield() {
		if int(offset)+int(elemSize) <= base.ByteSize() {
			data := base.Data()[offset : offset+uint64(elemSize)]
			cb(NewErrOrValue(NewValue(arr.ValueType, data, MemorySource(src.Address+offset))))
			return
		}
		readMemoryAsValue(ctx, src.Address+offset, arr.ValueType, cb)
		return
	}

	if int(offset)+int(elemSize) > base.ByteSize() {
		cb(ErrValue(newErrorf(ErrEval, "Array data is too small.")))
		return
	}
	data := base.Data()[offset : offset+uint64(elemSize)]
	cb(NewErrOrValue(NewTemporaryValue(arr.ValueType, data)))
}
