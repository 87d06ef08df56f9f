package dwarfexpr

import "fmt"

// decodeULEB reads an unsigned LEB128 value starting at pos, returning
// the value and the position after it.
func decodeULEB(data []byte, pos int) (uint64, int, error) {
	var result uint64
	var shift uint
	for {
		if pos >= len(data) {
			return 0, pos, fmt.Errorf("truncated ULEB128")
		}
		b := data[pos]
		pos++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, pos, nil
		}
		shift += 7
		if shift >= 64 {
			return 0, pos, fmt.Errorf("ULEB128 too large")
		}
	}
}

// decodeSLEB reads a signed LEB128 value starting at pos.
func decodeSLEB(data []byte, pos int) (int64, int, error) {
	var result int64
	var shift uint
	for {
		if pos >= len(data) {
			return 0, pos, fmt.Errorf("truncated SLEB128")
		}
		b := data[pos]
		pos++
		result |= int64(b&0x7f) << shift
		shift += 7
		if b&0x80 == 0 {
			// Sign extend.
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, pos, nil
		}
		if shift >= 64 {
			return 0, pos, fmt.Errorf("SLEB128 too large")
		}
	}
}
