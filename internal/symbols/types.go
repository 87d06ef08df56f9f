package symbols

import "fmt"

// PointerSize is the target pointer size in bytes. Only 64-bit targets
// are supported.
const PointerSize = 8

// Type is a symbolic type from the debuggee's DWARF data. The evaluator
// never mutates types, it only queries size, tag, and name. The closed
// set of implementations is BaseType, ModifiedType, Collection,
// ArrayType, and Enumeration.
type Type interface {
	// Name returns the fully qualified type name.
	Name() string

	// ByteSize returns the size in bytes, or 0 when the size is not
	// (yet) concrete, e.g. a forward declaration.
	ByteSize() uint32

	typeNode()
}

// Base type tags, mirroring the DWARF encoding attribute.
const (
	BaseTypeNone = iota
	BaseTypeAddress
	BaseTypeBoolean
	BaseTypeFloat
	BaseTypeSigned
	BaseTypeSignedChar
	BaseTypeUnsigned
	BaseTypeUnsignedChar
	BaseTypeUTF
)

// BaseType is a fundamental type: ints, floats, bool, chars.
type BaseType struct {
	Tag      int // BaseType* constant
	Size     uint32
	TypeName string
}

func NewBaseType(tag int, size uint32, name string) *BaseType {
	return &BaseType{Tag: tag, Size: size, TypeName: name}
}

func (b *BaseType) Name() string     { return b.TypeName }
func (b *BaseType) ByteSize() uint32 { return b.Size }
func (b *BaseType) typeNode()        {}

// IsSigned returns true for signed integer and char encodings.
func (b *BaseType) IsSigned() bool {
	return b.Tag == BaseTypeSigned || b.Tag == BaseTypeSignedChar
}

// IsFloat returns true for floating point encodings.
func (b *BaseType) IsFloat() bool { return b.Tag == BaseTypeFloat }

// ModKind is the kind of a ModifiedType wrapper.
type ModKind int

const (
	ModPointer ModKind = iota
	ModReference
	ModRValueReference
	ModConst
	ModVolatile
	ModTypedef
)

// ModifiedType wraps another type: pointers, references, cv-qualifiers,
// and typedefs.
type ModifiedType struct {
	Kind     ModKind
	Modified Type
	// TypeName is the typedef name; unused for other kinds.
	TypeName string
}

func NewPointerType(pointee Type) *ModifiedType {
	return &ModifiedType{Kind: ModPointer, Modified: pointee}
}

func NewReferenceType(referenced Type) *ModifiedType {
	return &ModifiedType{Kind: ModReference, Modified: referenced}
}

func NewTypedef(name string, underlying Type) *ModifiedType {
	return &ModifiedType{Kind: ModTypedef, Modified: underlying, TypeName: name}
}

func NewConstType(t Type) *ModifiedType {
	return &ModifiedType{Kind: ModConst, Modified: t}
}

func NewVolatileType(t Type) *ModifiedType {
	return &ModifiedType{Kind: ModVolatile, Modified: t}
}

func (m *ModifiedType) Name() string {
	switch m.Kind {
	case ModPointer:
		return m.Modified.Name() + "*"
	case ModReference:
		return m.Modified.Name() + "&"
	case ModRValueReference:
		return m.Modified.Name() + "&&"
	case ModConst:
		return "const " + m.Modified.Name()
	case ModVolatile:
		return "volatile " + m.Modified.Name()
	case ModTypedef:
		return m.TypeName
	}
	return m.Modified.Name()
}

func (m *ModifiedType) ByteSize() uint32 {
	switch m.Kind {
	case ModPointer, ModReference, ModRValueReference:
		return PointerSize
	}
	return m.Modified.ByteSize()
}

func (m *ModifiedType) typeNode() {}

// DataMember is a member of a Collection. A nonzero BitSize marks a
// bitfield occupying BitSize bits starting BitShift bits from the low
// end of the byte range at Offset.
type DataMember struct {
	Name     string
	Type     Type
	Offset   uint32
	BitSize  uint32
	BitShift uint32
}

// InheritedFrom records a base class and its byte offset within the
// derived class.
type InheritedFrom struct {
	From   Type
	Offset uint32
}

// Collection is a struct or class.
type Collection struct {
	TypeName  string
	Size      uint32
	Members   []DataMember
	Inherited []InheritedFrom
}

func (c *Collection) Name() string     { return c.TypeName }
func (c *Collection) ByteSize() uint32 { return c.Size }
func (c *Collection) typeNode()        {}

// ArrayType is a fixed-size array of ValueType.
type ArrayType struct {
	ValueType Type
	Count     uint32
}

func (a *ArrayType) Name() string {
	return fmt.Sprintf("%s[%d]", a.ValueType.Name(), a.Count)
}

func (a *ArrayType) ByteSize() uint32 {
	return a.ValueType.ByteSize() * a.Count
}

func (a *ArrayType) typeNode() {}

// Enumeration is an enum type. Values maps the raw value to the
// enumerator name.
type Enumeration struct {
	TypeName string
	Size     uint32
	Signed   bool
	Values   map[uint64]string
}

func (e *Enumeration) Name() string     { return e.TypeName }
func (e *Enumeration) ByteSize() uint32 { return e.Size }
func (e *Enumeration) typeNode()        {}

// StripCVT removes const/volatile/typedef wrappers. Pointers and
// references are not stripped. This is the default "concrete type"
// operation when no EvalContext-level forward-declaration resolution
// is in play.
func StripCVT(t Type) Type {
	for {
		m, ok := t.(*ModifiedType)
		if !ok {
			return t
		}
		switch m.Kind {
		case ModConst, ModVolatile, ModTypedef:
			t = m.Modified
		default:
			return t
		}
	}
}

// IsPointer returns the pointee type if t is (after stripping cv/typedef
// wrappers) a pointer.
func IsPointer(t Type) (Type, bool) {
	if t == nil {
		return nil, false
	}
	m, ok := StripCVT(t).(*ModifiedType)
	if !ok || m.Kind != ModPointer {
		return nil, false
	}
	return m.Modified, true
}

// IsReference returns the referenced type if t is an lvalue or rvalue
// reference.
func IsReference(t Type) (Type, bool) {
	if t == nil {
		return nil, false
	}
	m, ok := StripCVT(t).(*ModifiedType)
	if !ok || (m.Kind != ModReference && m.Kind != ModRValueReference) {
		return nil, false
	}
	return m.Modified, true
}
