package expr

import (
	"fmt"
	"strings"
)

// VmStream is a compiled bytecode program. Jump destinations index into
// the stream; forward jumps are appended with kInvalidDest and patched
// once the destination is known.
type VmStream struct {
	ops []VmOp
}

// Append adds an op and returns its index, which callers keep for later
// destination patching.
func (s *VmStream) Append(op VmOp) int {
	s.ops = append(s.ops, op)
	return len(s.ops) - 1
}

// Len returns the index the next appended op will get.
func (s *VmStream) Len() int { return len(s.ops) }

// PatchDest sets the jump destination of the op at index.
func (s *VmStream) PatchDest(index, dest int) {
	s.ops[index].Dest = dest
}

// At returns the op at index.
func (s *VmStream) At(index int) VmOp { return s.ops[index] }

// String disassembles the stream, one op per line, for debugging and
// logging.
func (s *VmStream) String() string {
	if len(s.ops) == 0 {
		return "<empty>\n"
	}
	var b strings.Builder
	for i, op := range s.ops {
		fmt.Fprintf(&b, "%3d: %s\n", i, op.String())
	}
	return b.String()
}
