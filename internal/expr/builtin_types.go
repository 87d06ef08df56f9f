package expr

import (
	"github.com/funvibe/fundbg/internal/symbols"
)

// Synthesized types for literals and operator results. These are
// created on the fly rather than looked up in symbols, since an
// expression like "1 + 1" must work with no symbol data at all. They
// are never cached: realm decisions always recompute from the concrete
// type.

func makeBoolType() symbols.Type {
	return symbols.NewBaseType(symbols.BaseTypeBoolean, 1, "bool")
}

func makeCharType() symbols.Type {
	return symbols.NewBaseType(symbols.BaseTypeSignedChar, 1, "char")
}

func makeRustCharType() symbols.Type {
	return symbols.NewBaseType(symbols.BaseTypeUTF, 4, "char")
}

// makeIntType synthesizes a fixed-width integer type with the stdint
// spelling (or Rust spelling for Rust expressions).
func makeIntType(lang Language, signed bool, size uint32) symbols.Type {
	var name string
	switch lang {
	case LanguageRust:
		name = rustIntName(signed, size)
	default:
		name = cIntName(signed, size)
	}
	tag := symbols.BaseTypeUnsigned
	if signed {
		tag = symbols.BaseTypeSigned
	}
	return symbols.NewBaseType(tag, size, name)
}

func cIntName(signed bool, size uint32) string {
	switch size {
	case 1:
		if signed {
			return "int8_t"
		}
		return "uint8_t"
	case 2:
		if signed {
			return "int16_t"
		}
		return "uint16_t"
	case 4:
		if signed {
			return "int32_t"
		}
		return "uint32_t"
	default:
		if signed {
			return "int64_t"
		}
		return "uint64_t"
	}
}

func rustIntName(signed bool, size uint32) string {
	switch size {
	case 1:
		if signed {
			return "i8"
		}
		return "u8"
	case 2:
		if signed {
			return "i16"
		}
		return "u16"
	case 4:
		if signed {
			return "i32"
		}
		return "u32"
	default:
		if signed {
			return "i64"
		}
		return "u64"
	}
}

func makeFloatType(lang Language, size uint32) symbols.Type {
	var name string
	if lang == LanguageRust {
		if size == 4 {
			name = "f32"
		} else {
			name = "f64"
		}
	} else {
		if size == 4 {
			name = "float"
		} else {
			name = "double"
		}
	}
	return symbols.NewBaseType(symbols.BaseTypeFloat, size, name)
}

// builtinTypeForName resolves fundamental type spellings that must work
// without symbol data. Returns nil when the name is not fundamental.
func builtinTypeForName(name string) symbols.Type {
	switch name {
	case "bool":
		return makeBoolType()
	case "char":
		return makeCharType()
	case "signed char", "i8", "int8_t":
		return symbols.NewBaseType(symbols.BaseTypeSignedChar, 1, name)
	case "unsigned char", "u8", "uint8_t":
		return symbols.NewBaseType(symbols.BaseTypeUnsignedChar, 1, name)
	case "short", "short int", "signed short", "int16_t", "i16":
		return symbols.NewBaseType(symbols.BaseTypeSigned, 2, name)
	case "unsigned short", "uint16_t", "u16":
		return symbols.NewBaseType(symbols.BaseTypeUnsigned, 2, name)
	case "int", "signed", "signed int", "int32_t", "i32":
		return symbols.NewBaseType(symbols.BaseTypeSigned, 4, name)
	case "unsigned", "unsigned int", "uint32_t", "u32":
		return symbols.NewBaseType(symbols.BaseTypeUnsigned, 4, name)
	case "long", "long int", "long long", "long long int", "int64_t",
		"i64", "intptr_t", "ssize_t", "isize":
		return symbols.NewBaseType(symbols.BaseTypeSigned, 8, name)
	case "unsigned long", "unsigned long long", "uint64_t", "u64",
		"uintptr_t", "size_t", "usize":
		return symbols.NewBaseType(symbols.BaseTypeUnsigned, 8, name)
	case "float", "f32":
		return symbols.NewBaseType(symbols.BaseTypeFloat, 4, name)
	case "double", "long double", "f64":
		return symbols.NewBaseType(symbols.BaseTypeFloat, 8, name)
	case "void":
		return symbols.NewBaseType(symbols.BaseTypeNone, 0, "void")
	}
	return nil
}
