package expr

import (
	"encoding/binary"
	"math"
	"math/big"
	"strings"
)

// Integer literal typing follows the C rules: the value gets the first
// type in a ladder that can represent it, where the ladder depends on
// the suffix and radix. Decimal literals never silently become
// unsigned; hex/octal/binary ones may.

type intLadderEntry struct {
	signed bool
	size   uint32
}

var (
	ladderDec = []intLadderEntry{{true, 4}, {true, 8}}
	ladderHex = []intLadderEntry{{true, 4}, {false, 4}, {true, 8}, {false, 8}}

	ladderDecU = []intLadderEntry{{false, 4}, {false, 8}}

	ladderDecL  = []intLadderEntry{{true, 8}}
	ladderHexL  = []intLadderEntry{{true, 8}, {false, 8}}
	ladderAnyUL = []intLadderEntry{{false, 8}}
)

// StringToNumber converts a numeric literal spelling, with an optional
// leading sign already folded in by the compiler, into a typed value.
// The sign must be folded before typing so that "-2147483648" is an
// int32 rather than the negation of an out-of-range positive literal.
func StringToNumber(lang Language, text string) (ExprValue, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return ExprValue{}, newErrorf(ErrParse, "Expected number.")
	}

	negative := false
	for len(s) > 0 && (s[0] == '-' || s[0] == '+') {
		if s[0] == '-' {
			negative = !negative
		}
		s = strings.TrimSpace(s[1:])
	}
	if s == "" {
		return ExprValue{}, newErrorf(ErrParse, "Expected number.")
	}

	if lang == LanguageRust {
		if v, handled, err := parseRustSuffixed(s, negative); handled {
			return v, err
		}
	}

	if isFloatSpelling(s) {
		return parseFloatLiteral(lang, s, negative)
	}
	return parseIntLiteral(lang, s, negative)
}

// isFloatSpelling detects decimal float literals: a '.', an exponent,
// or an f/F suffix on a non-hex number.
func isFloatSpelling(s string) bool {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return false
	}
	if strings.ContainsAny(s, ".eE") {
		return true
	}
	return strings.HasSuffix(s, "f") || strings.HasSuffix(s, "F")
}

func parseFloatLiteral(lang Language, s string, negative bool) (ExprValue, error) {
	size := uint32(8)
	if strings.HasSuffix(s, "f") || strings.HasSuffix(s, "F") {
		size = 4
		s = s[:len(s)-1]
	}
	f, ok := new(big.Float).SetString(s)
	if !ok {
		return ExprValue{}, newErrorf(ErrParse, "Invalid number '%s'.", s)
	}
	d, _ := f.Float64()
	if negative {
		d = -d
	}

	t := makeFloatType(lang, size)
	data := make([]byte, size)
	if size == 4 {
		binary.LittleEndian.PutUint32(data, math.Float32bits(float32(d)))
	} else {
		binary.LittleEndian.PutUint64(data, math.Float64bits(d))
	}
	return NewTemporaryValue(t, data), nil
}

func parseIntLiteral(lang Language, s string, negative bool) (ExprValue, error) {
	body, base, decimal := splitRadix(s)

	// C suffixes: u, l, ll in either case, in either order.
	var unsigned, long bool
	for {
		lower := strings.ToLower(body)
		switch {
		case strings.HasSuffix(lower, "ull"), strings.HasSuffix(lower, "llu"):
			unsigned, long = true, true
			body = body[:len(body)-3]
			continue
		case strings.HasSuffix(lower, "ul"), strings.HasSuffix(lower, "lu"):
			unsigned, long = true, true
			body = body[:len(body)-2]
			continue
		case strings.HasSuffix(lower, "ll"):
			long = true
			body = body[:len(body)-2]
			continue
		case strings.HasSuffix(lower, "u"):
			unsigned = true
			body = body[:len(body)-1]
			continue
		case strings.HasSuffix(lower, "l"):
			long = true
			body = body[:len(body)-1]
			continue
		}
		break
	}
	body = strings.ReplaceAll(body, "_", "") // Rust digit separators
	if body == "" {
		return ExprValue{}, newErrorf(ErrParse, "Invalid number '%s'.", s)
	}

	magnitude, ok := new(big.Int).SetString(body, base)
	if !ok {
		return ExprValue{}, newErrorf(ErrParse, "Invalid number '%s'.", s)
	}

	ladder := pickLadder(decimal, unsigned, long)
	for _, entry := range ladder {
		if fitsIn(magnitude, negative, entry.signed, entry.size) {
			return makeIntValue(lang, magnitude, negative, entry.signed, entry.size), nil
		}
	}
	// Out of range for the ladder: wrap into its widest entry, matching
	// how compilers treat e.g. "-1u".
	last := ladder[len(ladder)-1]
	return makeIntValue(lang, magnitude, negative, last.signed, last.size), nil
}

func splitRadix(s string) (body string, base int, decimal bool) {
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		return s[2:], 16, false
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		return s[2:], 2, false
	case strings.HasPrefix(s, "0o"), strings.HasPrefix(s, "0O"):
		return s[2:], 8, false
	case len(s) > 1 && s[0] == '0':
		return s[1:], 8, false
	}
	return s, 10, true
}

func pickLadder(decimal, unsigned, long bool) []intLadderEntry {
	switch {
	case unsigned && long:
		return ladderAnyUL
	case unsigned:
		return ladderDecU
	case long:
		if decimal {
			return ladderDecL
		}
		return ladderHexL
	case decimal:
		return ladderDec
	}
	return ladderHex
}

// fitsIn reports whether the (sign, magnitude) pair is representable in
// the given integer type. Unsigned types accept negative literals by
// wrapping, so they only constrain the magnitude's bit width.
func fitsIn(magnitude *big.Int, negative, signed bool, size uint32) bool {
	bits := uint(size) * 8
	if signed {
		limit := new(big.Int).Lsh(big.NewInt(1), bits-1)
		if negative {
			return magnitude.Cmp(limit) <= 0
		}
		return magnitude.Cmp(limit) < 0
	}
	limit := new(big.Int).Lsh(big.NewInt(1), bits)
	return magnitude.Cmp(limit) < 0
}

func makeIntValue(lang Language, magnitude *big.Int, negative, signed bool, size uint32) ExprValue {
	v := new(big.Int).Set(magnitude)
	if negative {
		v.Neg(v)
	}
	// Two's complement truncation to the target width.
	bits := uint(size) * 8
	mod := new(big.Int).Lsh(big.NewInt(1), bits)
	v.Mod(v, mod)
	if v.Sign() < 0 {
		v.Add(v, mod)
	}
	return NewTemporaryValue(makeIntType(lang, signed, size), bigToLE(v, int(size)))
}

// parseRustSuffixed handles literals with explicit Rust type suffixes:
// 1u8, 0xffi32, 1.5f32. Returns handled=false when no suffix matches.
func parseRustSuffixed(s string, negative bool) (ExprValue, bool, error) {
	suffixes := []struct {
		text   string
		signed bool
		size   uint32
		float  bool
	}{
		{"i8", true, 1, false}, {"u8", false, 1, false},
		{"i16", true, 2, false}, {"u16", false, 2, false},
		{"i32", true, 4, false}, {"u32", false, 4, false},
		{"i64", true, 8, false}, {"u64", false, 8, false},
		{"isize", true, 8, false}, {"usize", false, 8, false},
		{"f32", false, 4, true}, {"f64", false, 8, true},
	}
	for _, suf := range suffixes {
		if !strings.HasSuffix(s, suf.text) {
			continue
		}
		body := strings.TrimSuffix(s, suf.text)
		body = strings.TrimSuffix(body, "_")
		if body == "" {
			continue
		}
		if suf.float {
			v, err := parseFloatLiteral(LanguageRust, body+floatSuffixFor(suf.size), negative)
			return v, true, err
		}
		digits, base, _ := splitRadix(strings.ReplaceAll(body, "_", ""))
		magnitude, ok := new(big.Int).SetString(digits, base)
		if !ok {
			return ExprValue{}, true, newErrorf(ErrParse, "Invalid number '%s'.", s)
		}
		return makeIntValue(LanguageRust, magnitude, negative, suf.signed, suf.size), true, nil
	}
	return ExprValue{}, false, nil
}

func floatSuffixFor(size uint32) string {
	if size == 4 {
		return "f"
	}
	return ""
}
