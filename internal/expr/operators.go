package expr

import (
	"encoding/binary"
	"math"

	"github.com/funvibe/fundbg/internal/symbols"
)

// mathRealm classifies a type for operator purposes. Mixed-realm
// operands promote to the higher realm: pointer > float > integer.
// Between two integers the larger operand's signedness wins, and a
// size tie prefers unsigned.
type mathRealm int

const (
	realmSigned mathRealm = iota
	realmUnsigned
	realmFloat
	realmPointer
)

func realmFor(ctx EvalContext, t symbols.Type) (mathRealm, bool) {
	concrete := ctx.GetConcreteType(t)
	if _, ok := symbols.IsPointer(concrete); ok {
		return realmPointer, true
	}
	switch c := concrete.(type) {
	case *symbols.BaseType:
		switch {
		case c.IsFloat():
			return realmFloat, true
		case c.IsSigned():
			return realmSigned, true
		case c.Tag == symbols.BaseTypeUnsigned, c.Tag == symbols.BaseTypeUnsignedChar,
			c.Tag == symbols.BaseTypeBoolean, c.Tag == symbols.BaseTypeAddress,
			c.Tag == symbols.BaseTypeUTF:
			return realmUnsigned, true
		}
	case *symbols.Enumeration:
		if c.Signed {
			return realmSigned, true
		}
		return realmUnsigned, true
	}
	return 0, false
}

// ValueToBool converts a value to its truthiness: nonzero numbers and
// non-null pointers are true. Floats compare numerically so -0.0 is
// false.
func ValueToBool(ctx EvalContext, v ExprValue) (bool, error) {
	realm, ok := realmFor(ctx, v.Type())
	if !ok {
		return false, newErrorf(ErrType,
			"Can't convert '%s' to bool.", v.TypeName())
	}
	if realm == realmFloat {
		d, err := v.AsDouble()
		if err != nil {
			return false, err
		}
		return d != 0, nil
	}
	for _, b := range v.Data() {
		if b != 0 {
			return true, nil
		}
	}
	return false, nil
}

func makeBoolValue(b bool) ExprValue {
	data := []byte{0}
	if b {
		data[0] = 1
	}
	return NewTemporaryValue(makeBoolType(), data)
}

func makeInt64Value(lang Language, signed bool, bits uint64) ExprValue {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, bits)
	return NewTemporaryValue(makeIntType(lang, signed, 8), data)
}

// EvalUnaryOp applies -, !, or ~ to an already-expanded operand.
// Pointer dereference and address-of are not operators here; the
// bytecode compiler routes them to the resolvers.
func EvalUnaryOp(ctx EvalContext, op string, v ExprValue) (ExprValue, error) {
	realm, ok := realmFor(ctx, v.Type())
	if !ok {
		return ExprValue{}, newErrorf(ErrType,
			"Invalid operand '%s' for unary '%s'.", v.TypeName(), op)
	}

	switch op {
	case "!":
		b, err := ValueToBool(ctx, v)
		if err != nil {
			return ExprValue{}, err
		}
		return makeBoolValue(!b), nil

	case "-":
		switch realm {
		case realmFloat:
			d, err := v.AsDouble()
			if err != nil {
				return ExprValue{}, err
			}
			return makeFloatValue(ctx.Language(), -d, v.ByteSize()), nil
		case realmPointer:
			return ExprValue{}, newErrorf(ErrType,
				"Can't negate pointer type '%s'.", v.TypeName())
		}
		i, err := v.AsInt64()
		if err != nil {
			return ExprValue{}, err
		}
		return makeInt64Value(ctx.Language(), realm == realmSigned, uint64(-i)), nil

	case "~":
		if realm == realmFloat || realm == realmPointer {
			return ExprValue{}, newErrorf(ErrType,
				"Invalid operand '%s' for unary '~'.", v.TypeName())
		}
		i, err := v.AsInt64()
		if err != nil {
			return ExprValue{}, err
		}
		return makeInt64Value(ctx.Language(), realm == realmSigned, ^uint64(i)), nil
	}
	return ExprValue{}, newErrorf(ErrInternal, "Unknown unary operator '%s'.", op)
}

func makeFloatValue(lang Language, d float64, size int) ExprValue {
	data := make([]byte, size)
	if size == 4 {
		binary.LittleEndian.PutUint32(data, math.Float32bits(float32(d)))
	} else {
		data = make([]byte, 8)
		binary.LittleEndian.PutUint64(data, math.Float64bits(d))
	}
	return NewTemporaryValue(makeFloatType(lang, uint32(len(data))), data)
}

// EvalBinaryOp applies an arithmetic, bitwise, comparison, or logical
// operator to two already-expanded operands. Integer math runs in 64
// bits and produces a 64-bit result; smaller operand types never
// truncate the computation. && and || here evaluate both sides; the
// compiler emits jump-based expansions wherever the right side must
// not run.
func EvalBinaryOp(ctx EvalContext, left ExprValue, op string, right ExprValue) (ExprValue, error) {
	leftRealm, ok := realmFor(ctx, left.Type())
	if !ok {
		return ExprValue{}, newErrorf(ErrType,
			"Invalid operand '%s' for '%s'.", left.TypeName(), op)
	}
	rightRealm, ok := realmFor(ctx, right.Type())
	if !ok {
		return ExprValue{}, newErrorf(ErrType,
			"Invalid operand '%s' for '%s'.", right.TypeName(), op)
	}

	switch op {
	case "&&", "||":
		return evalLogicalOp(ctx, left, op, right)
	}

	switch {
	case leftRealm == realmPointer || rightRealm == realmPointer:
		return evalPointerOp(ctx, left, leftRealm, op, right, rightRealm)
	case leftRealm == realmFloat || rightRealm == realmFloat:
		return evalFloatOp(ctx, left, op, right)
	}
	return evalIntOp(ctx, left, op, right,
		intOpIsUnsigned(ctx, left, leftRealm, right, rightRealm))
}

// intOpIsUnsigned picks the signedness for integer math: the larger
// operand's signedness wins; only a size tie prefers unsigned.
func intOpIsUnsigned(ctx EvalContext, left ExprValue, leftRealm mathRealm, right ExprValue, rightRealm mathRealm) bool {
	leftSize := ctx.GetConcreteType(left.Type()).ByteSize()
	rightSize := ctx.GetConcreteType(right.Type()).ByteSize()
	if leftSize > rightSize {
		return leftRealm == realmUnsigned
	}
	if rightSize > leftSize {
		return rightRealm == realmUnsigned
	}
	return leftRealm == realmUnsigned || rightRealm == realmUnsigned
}

// evalLogicalOp is the value-based form of && and ||: both operands
// are already known, so there is nothing to short-circuit.
func evalLogicalOp(ctx EvalContext, left ExprValue, op string, right ExprValue) (ExprValue, error) {
	l, err := ValueToBool(ctx, left)
	if err != nil {
		return ExprValue{}, err
	}
	r, err := ValueToBool(ctx, right)
	if err != nil {
		return ExprValue{}, err
	}
	if op == "&&" {
		return makeBoolValue(l && r), nil
	}
	return makeBoolValue(l || r), nil
}

func isComparisonOp(op string) bool {
	switch op {
	case "==", "!=", "<", "<=", ">", ">=":
		return true
	}
	return false
}

func evalIntOp(ctx EvalContext, left ExprValue, op string, right ExprValue, unsigned bool) (ExprValue, error) {
	l, err := left.AsInt64()
	if err != nil {
		return ExprValue{}, err
	}
	r, err := right.AsInt64()
	if err != nil {
		return ExprValue{}, err
	}

	if isComparisonOp(op) {
		if unsigned {
			return makeBoolValue(compareUint(uint64(l), op, uint64(r))), nil
		}
		return makeBoolValue(compareInt(l, op, r)), nil
	}

	var bits uint64
	switch op {
	case "+":
		bits = uint64(l + r)
	case "-":
		bits = uint64(l - r)
	case "*":
		bits = uint64(l * r)
	case "/":
		if r == 0 {
			return ExprValue{}, divisionByZero()
		}
		if unsigned {
			bits = uint64(l) / uint64(r)
		} else {
			bits = uint64(l / r)
		}
	case "%":
		if r == 0 {
			return ExprValue{}, divisionByZero()
		}
		if unsigned {
			bits = uint64(l) % uint64(r)
		} else {
			bits = uint64(l % r)
		}
	case "&":
		bits = uint64(l & r)
	case "|":
		bits = uint64(l | r)
	case "^":
		bits = uint64(l ^ r)
	case "<<":
		bits = uint64(l) << (uint64(r) & 63)
	case ">>":
		if unsigned {
			bits = uint64(l) >> (uint64(r) & 63)
		} else {
			bits = uint64(l >> (uint64(r) & 63))
		}
	default:
		return ExprValue{}, newErrorf(ErrInternal, "Unknown operator '%s'.", op)
	}
	return makeInt64Value(ctx.Language(), !unsigned, bits), nil
}

func compareInt(l int64, op string, r int64) bool {
	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	}
	return l >= r
}

func compareUint(l uint64, op string, r uint64) bool {
	switch op {
	case "==":
		return l == r
	case "!=":
		return l != r
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	}
	return l >= r
}

// asOperandDouble widens either operand of a mixed float expression.
func asOperandDouble(ctx EvalContext, v ExprValue) (float64, error) {
	realm, _ := realmFor(ctx, v.Type())
	switch realm {
	case realmFloat:
		return v.AsDouble()
	case realmUnsigned:
		u, err := v.AsUInt64()
		return float64(u), err
	}
	i, err := v.AsInt64()
	return float64(i), err
}

func evalFloatOp(ctx EvalContext, left ExprValue, op string, right ExprValue) (ExprValue, error) {
	l, err := asOperandDouble(ctx, left)
	if err != nil {
		return ExprValue{}, err
	}
	r, err := asOperandDouble(ctx, right)
	if err != nil {
		return ExprValue{}, err
	}

	if isComparisonOp(op) {
		var b bool
		switch op {
		case "==":
			b = l == r
		case "!=":
			b = l != r
		case "<":
			b = l < r
		case "<=":
			b = l <= r
		case ">":
			b = l > r
		default:
			b = l >= r
		}
		return makeBoolValue(b), nil
	}

	var d float64
	switch op {
	case "+":
		d = l + r
	case "-":
		d = l - r
	case "*":
		d = l * r
	case "/":
		// IEEE semantics: float division by zero gives inf/nan, it does
		// not fault.
		d = l / r
	default:
		return ExprValue{}, newErrorf(ErrType, "Invalid operator '%s' for floating point.", op)
	}

	// float only when both operands are 4-byte floats; anything else
	// promotes to double.
	size := 8
	if isFloatSize(ctx, left, 4) && isFloatSize(ctx, right, 4) {
		size = 4
	}
	return makeFloatValue(ctx.Language(), d, size), nil
}

func isFloatSize(ctx EvalContext, v ExprValue, size uint32) bool {
	realm, _ := realmFor(ctx, v.Type())
	return realm == realmFloat && ctx.GetConcreteType(v.Type()).ByteSize() == size
}

func evalPointerOp(ctx EvalContext, left ExprValue, leftRealm mathRealm, op string, right ExprValue, rightRealm mathRealm) (ExprValue, error) {
	if leftRealm == realmFloat || rightRealm == realmFloat {
		return ExprValue{}, newErrorf(ErrType,
			"Can't mix pointer and floating point operands.")
	}

	l, err := left.AsUInt64()
	if err != nil {
		return ExprValue{}, err
	}
	r, err := right.AsUInt64()
	if err != nil {
		return ExprValue{}, err
	}

	if isComparisonOp(op) {
		return makeBoolValue(compareUint(l, op, r)), nil
	}

	switch op {
	case "+", "-":
	default:
		return ExprValue{}, newErrorf(ErrType,
			"Invalid operator '%s' for pointer type '%s'.", op, left.TypeName())
	}

	if leftRealm == realmPointer && rightRealm == realmPointer {
		if op != "-" {
			return ExprValue{}, newErrorf(ErrType, "Can't add two pointers.")
		}
		lp, _ := symbols.IsPointer(ctx.GetConcreteType(left.Type()))
		rp, _ := symbols.IsPointer(ctx.GetConcreteType(right.Type()))
		if !typesEqual(ctx.GetConcreteType(lp), ctx.GetConcreteType(rp)) {
			return ExprValue{}, newErrorf(ErrType,
				"Can't subtract pointers to different types '%s' and '%s'.",
				left.TypeName(), right.TypeName())
		}
		size, err := pointeeSizeForArithmetic(ctx, left)
		if err != nil {
			return ExprValue{}, err
		}
		diff := int64(l-r) / int64(size)
		return makeInt64Value(ctx.Language(), true, uint64(diff)), nil
	}

	// pointer ± integer (or integer + pointer); the integer scales by
	// the pointee size.
	ptr, offset, ptrValue := l, int64(r), left
	if leftRealm != realmPointer {
		if op == "-" {
			return ExprValue{}, newErrorf(ErrType, "Can't subtract a pointer from an integer.")
		}
		ptr, ptrValue = r, right
		offset, err = left.AsInt64()
	} else {
		offset, err = right.AsInt64()
	}
	if err != nil {
		return ExprValue{}, err
	}

	size, err := pointeeSizeForArithmetic(ctx, ptrValue)
	if err != nil {
		return ExprValue{}, err
	}
	delta := offset * int64(size)
	if op == "-" {
		delta = -delta
	}
	result := uint64(int64(ptr) + delta)

	data := make([]byte, symbols.PointerSize)
	binary.LittleEndian.PutUint64(data, result)
	return NewTemporaryValue(ptrValue.Type(), data), nil
}

func pointeeSizeForArithmetic(ctx EvalContext, ptr ExprValue) (uint32, error) {
	pointee, _ := symbols.IsPointer(ctx.GetConcreteType(ptr.Type()))
	size := ctx.GetConcreteType(pointee).ByteSize()
	if size == 0 {
		return 0, newErrorf(ErrType,
			"Can't do pointer arithmetic on a type of size 0: '%s'.", pointee.Name())
	}
	return size, nil
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

// DoAssignment writes source into the storage behind dest and completes
// with the stored value. The destination keeps its own type; the source
// is implicitly converted. Assignment through a reference writes the
// referenced storage.
func DoAssignment(ctx EvalContext, dest, source ExprValue, cb EvalCallback) {
	EnsureResolveReference(ctx, dest, func(expanded ErrOrValue) {
		if expanded.HasError() {
			cb(expanded)
			return
		}
		assignToStorage(ctx, expanded.Value(), source, cb)
	})
}

func assignToStorage(ctx EvalContext, dest, source ExprValue, cb EvalCallback) {
	converted, err := CastExprValue(ctx, CastImplicit, source, dest.Type())
	if err != nil {
		cb(ErrValue(err))
		return
	}

	destSrc := dest.Source()
	switch destSrc.Kind {
	case SourceTemporary:
		cb(ErrValue(newErrorf(ErrAssign, "Can't assign to a temporary.")))
	case SourceConstant:
		cb(ErrValue(newErrorf(ErrAssign, "Can't assign to a constant.")))
	case SourceComposite:
		cb(ErrValue(newErrorf(ErrAssign, "Can't assign to a composite value.")))
	case SourceLocal:
		destSrc.Local.SetValue(converted)
		cb(NewErrOrValue(destSrc.Local.Value()))
	case SourceMemory:
		assignToMemory(ctx, destSrc, converted, cb)
	case SourceRegister:
		assignToRegister(ctx, destSrc, converted, cb)
	default:
		cb(ErrValue(newErrorf(ErrInternal, "Unknown value source.")))
	}
}

func assignToMemory(ctx EvalContext, dest ExprValueSource, v ExprValue, cb EvalCallback) {
	provider := ctx.DataProvider()
	finish := func(err error) {
		if err != nil {
			cb(ErrValue(&EvalError{Kind: ErrTarget, Msg: err.Error()}))
			return
		}
		cb(NewErrOrValue(v.WithSource(dest)))
	}

	if !dest.IsBitfield() {
		provider.WriteMemory(dest.Address, v.Data(), finish)
		return
	}
	if dest.IsByteAligned() {
		addr := dest.Address + uint64(dest.BitShift/8)
		size := dest.BitSize / 8
		data := v.Data()
		if int(size) < len(data) {
			data = data[:size]
		}
		provider.WriteMemory(addr, data, finish)
		return
	}

	// Unaligned bitfield: read-modify-write the containing bytes.
	containerSize := uint32((dest.BitShift + dest.BitSize + 7) / 8)
	if int(containerSize) < v.ByteSize() {
		containerSize = uint32(v.ByteSize())
	}
	provider.GetMemoryAsync(dest.Address, containerSize, func(existing []byte, err error) {
		if err != nil {
			cb(ErrValue(&EvalError{Kind: ErrTarget, Msg: err.Error()}))
			return
		}
		provider.WriteMemory(dest.Address, dest.SetBits(existing, v.Data()), finish)
	})
}

func assignToRegister(ctx EvalContext, dest ExprValueSource, v ExprValue, cb EvalCallback) {
	provider := ctx.DataProvider()
	finish := func(err error) {
		if err != nil {
			cb(ErrValue(&EvalError{Kind: ErrTarget, Msg: err.Error()}))
			return
		}
		cb(NewErrOrValue(v.WithSource(dest)))
	}

	if !dest.IsBitfield() {
		provider.WriteRegister(dest.Register, v.Data(), finish)
		return
	}

	// Sub-register views ($ah, $eax) merge into the canonical register
	// so the surrounding bits survive.
	provider.GetRegisterAsync(dest.Register, func(existing []byte, err error) {
		if err != nil {
			cb(ErrValue(&EvalError{Kind: ErrTarget, Msg: err.Error()}))
			return
		}
		provider.WriteRegister(dest.Register, dest.SetBits(existing, v.Data()), finish)
	})
}
