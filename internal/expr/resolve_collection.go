package expr

import (
	"github.com/funvibe/fundbg/internal/symbols"
)

// foundMember is a member located in a collection, with the byte offset
// accumulated across any base-class path leading to it.
type foundMember struct {
	member symbols.DataMember
	offset uint32 // from the start of the outermost object
}

// findMember searches coll's own members first, then base classes
// depth-first. Shadowed base members lose to derived ones, matching
// source-language lookup.
func findMember(ctx EvalContext, coll *symbols.Collection, name string) (foundMember, bool) {
	for _, m := range coll.Members {
		if m.Name == name {
			return foundMember{member: m, offset: m.Offset}, true
		}
	}
	for _, inh := range coll.Inherited {
		base, ok := ctx.GetConcreteType(inh.From).(*symbols.Collection)
		if !ok {
			continue
		}
		if found, ok := findMember(ctx, base, name); ok {
			found.offset += inh.Offset
			return found, true
		}
	}
	return foundMember{}, false
}

// ResolveMember evaluates base.member for a collection value that has
// already had references expanded.
func ResolveMember(ctx EvalContext, base ExprValue, memberName string, cb EvalCallback) {
	coll, ok := ctx.GetConcreteType(base.Type()).(*symbols.Collection)
	if !ok {
		cb(ErrValue(newErrorf(ErrType,
			"Can't resolve '%s' on non-struct type '%s'.", memberName, base.TypeName())))
		return
	}
	found, ok := findMember(ctx, coll, memberName)
	if !ok {
		cb(ErrValue(newErrorf(ErrType,
			"No member '%s' in '%s'.", memberName, coll.TypeName)))
		return
	}
	extractMember(ctx, base, found, cb)
}

// ResolveMemberByPointer evaluates ptr->member. The member address is
// computed directly so only the member's bytes are fetched, not the
// whole object.
func ResolveMemberByPointer(ctx EvalContext, ptr ExprValue, memberName string, cb EvalCallback) {
	pointee, ok := symbols.IsPointer(ctx.GetConcreteType(ptr.Type()))
	if !ok {
		cb(ErrValue(newErrorf(ErrType,
			"Attempting to dereference '%s' which is not a pointer.", ptr.TypeName())))
		return
	}
	coll, ok := ctx.GetConcreteType(pointee).(*symbols.Collection)
	if !ok {
		cb(ErrValue(newErrorf(ErrType,
			"Can't resolve '%s' on non-struct type '%s'.", memberName, pointee.Name())))
		return
	}
	found, ok := findMember(ctx, coll, memberName)
	if !ok {
		cb(ErrValue(newErrorf(ErrType,
			"No member '%s' in '%s'.", memberName, coll.TypeName)))
		return
	}
	addr, err := ptr.AsUInt64()
	if err != nil {
		cb(ErrValue(err))
		return
	}
	memberAddr := addr + uint64(found.offset)

	if found.member.BitSize == 0 {
		readMemoryAsValue(ctx, memberAddr, found.member.Type, cb)
		return
	}
	// Bitfields need the whole container read, then the bit range
	// extracted.
	containerSize := ctx.GetConcreteType(found.member.Type).ByteSize()
	if containerSize == 0 {
		cb(ErrValue(newErrorf(ErrType, "Can't handle zero-size type '%s'.", found.member.Type.Name())))
		return
	}
	m := found.member
	ctx.DataProvider().GetMemoryAsync(memberAddr, containerSize, func(data []byte, err error) {
		if err != nil {
			cb(ErrValue(&EvalError{Kind: ErrTarget, Msg: err.Error()}))
			return
		}
		src := MemoryBitfieldSource(memberAddr, m.BitSize, m.BitShift)
		bits := src.ExtractBits(data, int(containerSize))
		cb(NewErrOrValue(NewValue(m.Type, bits, src)))
	})
}

// extractMember slices the member out of an in-hand collection value.
func extractMember(ctx EvalContext, base ExprValue, found foundMember, cb EvalCallback) {
	m := found.member
	memberSize := ctx.GetConcreteType(m.Type).ByteSize()
	if memberSize == 0 {
		cb(ErrValue(newErrorf(ErrType, "Can't handle zero-size type '%s'.", m.Type.Name())))
		return
	}
	end := int(found.offset) + int(memberSize)
	if end > base.ByteSize() {
		cb(ErrValue(newErrorf(ErrEval,
			"Member '%s' is outside of the data of '%s'.", m.Name, base.TypeName())))
		return
	}
	container := base.Data()[found.offset:end]

	baseSrc := base.Source()
	if m.BitSize == 0 {
		source := TemporarySource()
		if baseSrc.Kind == SourceMemory && !baseSrc.IsBitfield() {
			source = MemorySource(baseSrc.Address + uint64(found.offset))
		}
		cb(NewErrOrValue(NewValue(m.Type, container, source)))
		return
	}

	source := TemporarySource()
	if baseSrc.Kind == SourceMemory && !baseSrc.IsBitfield() {
		source = MemoryBitfieldSource(baseSrc.Address+uint64(found.offset), m.BitSize, m.BitShift)
	}
	bits := ExprValueSource{BitSize: m.BitSize, BitShift: m.BitShift}.ExtractBits(container, int(memberSize))
	cb(NewErrOrValue(NewValue(m.Type, bits, source)))
}
