package expr

import (
	"encoding/binary"
	"math"

	"github.com/funvibe/fundbg/internal/symbols"
)

// CastType identifies which conversion rules apply.
type CastType int

const (
	// CastImplicit covers conversions the language does without being
	// asked: numeric promotion/truncation, enum to int, pointer to the
	// same pointee.
	CastImplicit CastType = iota
	// CastC is a C-style "(type)x" cast: static rules first, then
	// reinterpret as a fallback. Rust "as" uses the same rules.
	CastC
	// CastStaticCast is "static_cast<T>(x)": implicit rules plus
	// explicit enum conversions and base/derived adjustment.
	CastStaticCast
	// CastReinterpretCast is "reinterpret_cast<T>(x)": raw bit
	// reinterpretation of integer-like values with zero extension.
	CastReinterpretCast
)

func (c CastType) String() string {
	switch c {
	case CastImplicit:
		return "implicit cast"
	case CastC:
		return "C-style cast"
	case CastStaticCast:
		return "static_cast"
	case CastReinterpretCast:
		return "reinterpret_cast"
	}
	return "cast"
}

// CastShouldFollowReferences reports whether the operand of a cast
// should have references expanded first. Casting to a reference type
// needs the reference itself, so expansion would destroy the operand.
func CastShouldFollowReferences(ctx EvalContext, dest symbols.Type) bool {
	if _, ok := symbols.IsReference(ctx.GetConcreteType(dest)); ok {
		return false
	}
	return true
}

// CastExprValue converts v to dest under the given rules. The operand
// must already have had references expanded when the destination is a
// non-reference type (see CastShouldFollowReferences); this function is
// purely synchronous.
func CastExprValue(ctx EvalContext, castType CastType, v ExprValue, dest symbols.Type) (ExprValue, error) {
	if v.IsNull() {
		return ExprValue{}, newErrorf(ErrType, "Can't cast an empty value.")
	}
	if dest == nil {
		return ExprValue{}, newErrorf(ErrType, "Can't cast to a null type.")
	}

	concreteFrom := ctx.GetConcreteType(v.Type())
	concreteTo := ctx.GetConcreteType(dest)

	// Identical types only need retyping, which preserves provenance
	// and is valid under every flavor.
	if typesEqual(concreteFrom, concreteTo) {
		return NewValue(dest, v.Data(), v.Source()), nil
	}

	switch castType {
	case CastImplicit:
		return castImplicit(ctx, v, dest, concreteFrom, concreteTo, false)
	case CastStaticCast:
		return castImplicit(ctx, v, dest, concreteFrom, concreteTo, true)
	case CastReinterpretCast:
		return castReinterpret(v, dest, concreteFrom, concreteTo)
	case CastC:
		out, err := castImplicit(ctx, v, dest, concreteFrom, concreteTo, true)
		if err == nil {
			return out, nil
		}
		return castReinterpret(v, dest, concreteFrom, concreteTo)
	}
	return ExprValue{}, newErrorf(ErrInternal, "Unknown cast type %d.", int(castType))
}

// typesEqual is structural equality by qualified name and size; the
// symbol data can materialize the same DWARF type as distinct objects.
func typesEqual(a, b symbols.Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Name() == b.Name() && a.ByteSize() == b.ByteSize()
}

func castImplicit(ctx EvalContext, v ExprValue, dest, from, to symbols.Type, isStatic bool) (ExprValue, error) {
	fromPointee, fromIsPtr := symbols.IsPointer(from)
	toPointee, toIsPtr := symbols.IsPointer(to)

	// Pointer to pointer has its own rules; pointers mixed with the
	// rest of the numeric family convert like integers.
	if fromIsPtr && toIsPtr {
		return castPointer(ctx, v, dest, fromPointee, toPointee, isStatic)
	}

	// The numeric family covers ints, floats, chars, bool, enums, and
	// pointers; anything in it converts to anything else in it by
	// truncation or extension.
	if (isNumericLike(from) || fromIsPtr) && (isNumericLike(to) || toIsPtr) {
		if !isStatic {
			// Implicit casts may not convert between enums or from int
			// to enum; to int is fine.
			if _, destEnum := to.(*symbols.Enumeration); destEnum {
				return ExprValue{}, newErrorf(ErrType,
					"Can't convert '%s' to '%s'. Use static_cast or a C-style cast.",
					v.TypeName(), dest.Name())
			}
		}
		return coerceNumeric(v, dest, from, to)
	}

	// Derived collection value to one of its base classes: slice the
	// embedded sub-object.
	if fromColl, ok := from.(*symbols.Collection); ok {
		if toColl, ok := to.(*symbols.Collection); ok {
			if offset, found := baseClassOffset(ctx, fromColl, toColl); found {
				return sliceCollection(v, dest, offset, toColl.Size)
			}
		}
	}

	// Casting to a reference takes the operand's address.
	if referenced, ok := symbols.IsReference(to); ok {
		return castToReference(ctx, v, dest, referenced, isStatic)
	}

	return ExprValue{}, newErrorf(ErrType, "Can't cast from '%s' to '%s'.",
		v.TypeName(), dest.Name())
}

// castPointer handles pointer-to-pointer conversions. Implicit casts
// require identical pointee types; static_cast walks the inheritance
// chain in either direction and adjusts the address by the base class
// offset.
func castPointer(ctx EvalContext, v ExprValue, dest symbols.Type, fromPointee, toPointee symbols.Type, isStatic bool) (ExprValue, error) {
	cf := ctx.GetConcreteType(fromPointee)
	ct := ctx.GetConcreteType(toPointee)

	if typesEqual(cf, ct) {
		return NewValue(dest, v.Data(), v.Source()), nil
	}

	if isStatic {
		fromColl, fromOK := cf.(*symbols.Collection)
		toColl, toOK := ct.(*symbols.Collection)
		if fromOK && toOK {
			// Upcast: Derived* to Base* adds the base offset.
			if offset, found := baseClassOffset(ctx, fromColl, toColl); found {
				return adjustPointer(v, dest, int64(offset))
			}
			// Downcast: Base* to Derived* subtracts it.
			if offset, found := baseClassOffset(ctx, toColl, fromColl); found {
				return adjustPointer(v, dest, -int64(offset))
			}
		}
	}

	return ExprValue{}, newErrorf(ErrType, "Can't convert '%s' to '%s'.",
		v.TypeName(), dest.Name())
}

func adjustPointer(v ExprValue, dest symbols.Type, delta int64) (ExprValue, error) {
	addr, err := v.AsUInt64()
	if err != nil {
		return ExprValue{}, err
	}
	// Null stays null regardless of the hierarchy.
	if addr != 0 {
		addr = uint64(int64(addr) + delta)
	}
	data := make([]byte, symbols.PointerSize)
	binary.LittleEndian.PutUint64(data, addr)
	source := v.Source()
	if delta != 0 {
		source = TemporarySource()
	}
	return NewValue(dest, data, source), nil
}

// baseClassOffset searches derived's inheritance graph for base,
// returning the accumulated byte offset of the base sub-object.
func baseClassOffset(ctx EvalContext, derived, base *symbols.Collection) (uint32, bool) {
	if derived.TypeName == base.TypeName {
		return 0, true
	}
	for _, inh := range derived.Inherited {
		from, ok := ctx.GetConcreteType(inh.From).(*symbols.Collection)
		if !ok {
			continue
		}
		if sub, found := baseClassOffset(ctx, from, base); found {
			return inh.Offset + sub, true
		}
	}
	return 0, false
}

func sliceCollection(v ExprValue, dest symbols.Type, offset, size uint32) (ExprValue, error) {
	if int(offset+size) > v.ByteSize() {
		return ExprValue{}, newErrorf(ErrType,
			"Can't cast '%s': object data is too small.", v.TypeName())
	}
	data := v.Data()[offset : offset+size]
	source := TemporarySource()
	if src := v.Source(); src.Kind == SourceMemory && !src.IsBitfield() {
		source = MemorySource(src.Address + uint64(offset))
	}
	return NewValue(dest, data, source), nil
}

func castToReference(ctx EvalContext, v ExprValue, dest, referenced symbols.Type, isStatic bool) (ExprValue, error) {
	src := v.Source()
	if src.Kind != SourceMemory || src.IsBitfield() {
		return ExprValue{}, newErrorf(ErrType,
			"Can't take a reference to a value with no memory address.")
	}
	addr := src.Address
	cf := ctx.GetConcreteType(v.Type())
	ct := ctx.GetConcreteType(referenced)
	if !typesEqual(cf, ct) {
		fromColl, fromOK := cf.(*symbols.Collection)
		toColl, toOK := ct.(*symbols.Collection)
		offset, found := uint32(0), false
		if fromOK && toOK {
			offset, found = baseClassOffset(ctx, fromColl, toColl)
			if found {
				addr += uint64(offset)
			} else if isStatic {
				if offset, found = baseClassOffset(ctx, toColl, fromColl); found {
					addr -= uint64(offset)
				}
			}
		}
		if !found {
			return ExprValue{}, newErrorf(ErrType, "Can't convert '%s' to unrelated type '%s'.",
				v.TypeName(), dest.Name())
		}
	}
	data := make([]byte, symbols.PointerSize)
	binary.LittleEndian.PutUint64(data, addr)
	return NewTemporaryValue(dest, data), nil
}

// castReinterpret keeps the raw bits: same size retypes in place,
// narrower destinations truncate, wider ones zero-extend. Only
// integer-like values (ints, pointers, enums, bool, chars) qualify.
func castReinterpret(v ExprValue, dest, from, to symbols.Type) (ExprValue, error) {
	if !isReinterpretable(from) || !isReinterpretable(to) {
		return ExprValue{}, newErrorf(ErrType,
			"Can't reinterpret_cast from '%s' to '%s'.", v.TypeName(), dest.Name())
	}
	destSize := int(to.ByteSize())
	if destSize == 0 {
		return ExprValue{}, newErrorf(ErrType, "Can't cast to zero-size type '%s'.", dest.Name())
	}
	data := make([]byte, destSize)
	copy(data, v.Data())
	source := v.Source()
	if destSize > v.ByteSize() {
		source = TemporarySource()
	}
	return NewValue(dest, data, source), nil
}

// coerceNumeric converts between the fundamental numeric families.
// Integer widening sign-extends when the source is signed; float
// conversions round-trip through float64.
func coerceNumeric(v ExprValue, dest, from, to symbols.Type) (ExprValue, error) {
	destSize := int(to.ByteSize())
	if destSize == 0 || destSize > 8 {
		return ExprValue{}, newErrorf(ErrType, "Can't cast to type '%s' of size %d.",
			dest.Name(), destSize)
	}

	var bits uint64
	switch {
	case isFloatingType(from) && isFloatingType(to):
		d, err := v.AsDouble()
		if err != nil {
			return ExprValue{}, err
		}
		bits = floatBits(d, destSize)
	case isFloatingType(from):
		d, err := v.AsDouble()
		if err != nil {
			return ExprValue{}, err
		}
		if isBoolType(to) {
			bits = boolBits(d != 0)
		} else {
			bits = uint64(int64(d)) // truncates toward zero
		}
	case isFloatingType(to):
		i, err := v.AsInt64()
		if err != nil {
			return ExprValue{}, err
		}
		if isSignedInt(from) {
			bits = floatBits(float64(i), destSize)
		} else {
			bits = floatBits(float64(uint64(i)), destSize)
		}
	default:
		i, err := v.AsInt64() // sign- or zero-extends per source type
		if err != nil {
			return ExprValue{}, err
		}
		if isBoolType(to) {
			bits = boolBits(i != 0)
		} else {
			bits = uint64(i)
		}
	}

	data := make([]byte, destSize)
	for i := 0; i < destSize; i++ {
		data[i] = byte(bits >> (8 * uint(i)))
	}
	return NewTemporaryValue(dest, data), nil
}

func floatBits(d float64, size int) uint64 {
	if size == 4 {
		return uint64(math.Float32bits(float32(d)))
	}
	return math.Float64bits(d)
}

func boolBits(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func isBoolType(t symbols.Type) bool {
	b, ok := t.(*symbols.BaseType)
	return ok && b.Tag == symbols.BaseTypeBoolean
}

func isFloatingType(t symbols.Type) bool {
	b, ok := t.(*symbols.BaseType)
	return ok && b.IsFloat()
}

// isIntegerLike covers ints, chars, bool, and enums.
func isIntegerLike(t symbols.Type) bool {
	switch concrete := t.(type) {
	case *symbols.BaseType:
		switch concrete.Tag {
		case symbols.BaseTypeAddress, symbols.BaseTypeBoolean, symbols.BaseTypeSigned,
			symbols.BaseTypeSignedChar, symbols.BaseTypeUnsigned,
			symbols.BaseTypeUnsignedChar, symbols.BaseTypeUTF:
			return true
		}
	case *symbols.Enumeration:
		return true
	}
	return false
}

// isNumericLike additionally admits floats.
func isNumericLike(t symbols.Type) bool {
	return isIntegerLike(t) || isFloatingType(t)
}

// isReinterpretable admits everything whose bits stand alone: integers
// and pointers, but not floats or aggregates.
func isReinterpretable(t symbols.Type) bool {
	if isIntegerLike(t) {
		return true
	}
	_, isPtr := symbols.IsPointer(t)
	return isPtr
}
