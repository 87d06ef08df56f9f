// Package dwarfexpr evaluates DWARF location expressions against a
// debug.DataProvider. The supported operator subset covers what
// compilers emit for variable locations: literals and constants,
// register and register-relative addressing, frame-base addressing,
// dereferences, basic arithmetic, pieces, and stack/implicit values.
package dwarfexpr

import (
	"encoding/binary"
	"fmt"

	"github.com/funvibe/fundbg/internal/debug"
)

// DWARF expression opcodes (DWARF 4, section 7.7.1).
const (
	opAddr          = 0x03
	opDeref         = 0x06
	opConst1u       = 0x08
	opConst1s       = 0x09
	opConst2u       = 0x0a
	opConst2s       = 0x0b
	opConst4u       = 0x0c
	opConst4s       = 0x0d
	opConst8u       = 0x0e
	opConst8s       = 0x0f
	opConstu        = 0x10
	opConsts        = 0x11
	opDup           = 0x12
	opDrop          = 0x13
	opSwap          = 0x16
	opAnd           = 0x1a
	opMinus         = 0x1c
	opMul           = 0x1e
	opOr            = 0x21
	opPlus          = 0x22
	opPlusUconst    = 0x23
	opShl           = 0x24
	opShr           = 0x25
	opXor           = 0x27
	opLit0          = 0x30
	opLit31         = 0x4f
	opReg0          = 0x50
	opReg31         = 0x6f
	opBreg0         = 0x70
	opBreg31        = 0x8f
	opRegx          = 0x90
	opFbreg         = 0x91
	opBregx         = 0x92
	opPiece         = 0x93
	opImplicitValue = 0x9e
	opStackValue    = 0x9f
)

// ResultKind is the shape of a completed location expression.
type ResultKind int

const (
	// ResultPointer: the expression computed the address of the value.
	ResultPointer ResultKind = iota
	// ResultValue: the expression computed the value itself.
	ResultValue
	// ResultData: a composite assembled from DW_OP_piece /
	// DW_OP_implicit_value; opaque bytes, assumed correct.
	ResultData
)

// SourceKind records where a ResultValue came from, which downstream
// assignment logic uses to decide writability.
type SourceKind int

const (
	SourceNone SourceKind = iota
	SourceRegister
	SourceConstant
)

// Result is a completed location-expression evaluation.
type Result struct {
	Kind     ResultKind
	Value    uint64 // address for ResultPointer, bits for ResultValue
	Data     []byte // composite bytes for ResultData
	Source   SourceKind
	Register debug.RegisterID
}

// Completion is invoked exactly once per evaluation, synchronously or
// asynchronously.
type Completion func(Result, error)

// Eval is one in-flight expression evaluation. Like the bytecode VM it
// suspends on register/memory reads; each pending read holds the Eval
// alive until its callback fires.
type Eval struct {
	provider debug.DataProvider
	expr     []byte
	pos      int
	stack    []uint64
	pieces   []byte
	cb       Completion

	// Provenance of the top-of-stack value when it came directly from
	// one producing op. Cleared by any further computation.
	source   SourceKind
	register debug.RegisterID

	// Set by DW_OP_stack_value and register-located results.
	isValue bool

	done bool
}

// Evaluate runs a DWARF expression to completion. The callback may be
// invoked from inside this call if no target reads are needed.
func Evaluate(provider debug.DataProvider, expr []byte, cb Completion) {
	e := &Eval{provider: provider, expr: expr, cb: cb}
	if len(expr) == 0 {
		e.fail(fmt.Errorf("empty DWARF expression"))
		return
	}
	e.run()
}

type stepResult int

const (
	stepSync stepResult = iota
	stepAsync
	stepError
)

func (e *Eval) run() {
	for e.pos < len(e.expr) {
		switch e.step() {
		case stepSync:
			continue
		case stepAsync, stepError:
			return
		}
	}
	e.finish()
}

func (e *Eval) finish() {
	if e.done {
		return
	}
	e.done = true

	if len(e.pieces) > 0 {
		e.cb(Result{Kind: ResultData, Data: e.pieces}, nil)
		return
	}
	if len(e.stack) == 0 {
		e.cb(Result{}, fmt.Errorf("DWARF expression produced no result"))
		return
	}
	top := e.stack[len(e.stack)-1]
	if e.isValue {
		e.cb(Result{Kind: ResultValue, Value: top, Source: e.source, Register: e.register}, nil)
		return
	}
	e.cb(Result{Kind: ResultPointer, Value: top}, nil)
}

func (e *Eval) fail(err error) {
	if e.done {
		return
	}
	e.done = true
	e.cb(Result{}, err)
}

func (e *Eval) push(v uint64) {
	e.stack = append(e.stack, v)
}

func (e *Eval) pop() (uint64, bool) {
	if len(e.stack) == 0 {
		return 0, false
	}
	v := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return v, true
}

// clearSource marks the top of stack as computed, not copied from a
// single register or constant.
func (e *Eval) clearSource() {
	e.source = SourceNone
	e.register = debug.RegNone
}

// step decodes and executes one operation. pos advances past the op and
// its operands before any suspension.
func (e *Eval) step() stepResult {
	op := e.expr[e.pos]
	e.pos++

	switch {
	case op >= opLit0 && op <= opLit31:
		e.push(uint64(op - opLit0))
		e.source = SourceConstant
		e.register = debug.RegNone
		return stepSync

	case op >= opReg0 && op <= opReg31:
		return e.readRegisterLocation(uint32(op - opReg0))

	case op >= opBreg0 && op <= opBreg31:
		offset, next, err := decodeSLEB(e.expr, e.pos)
		if err != nil {
			e.fail(err)
			return stepError
		}
		e.pos = next
		return e.readRegisterRelative(uint32(op-opBreg0), offset)
	}

	switch op {
	case opAddr:
		if e.pos+8 > len(e.expr) {
			e.fail(fmt.Errorf("truncated DW_OP_addr"))
			return stepError
		}
		e.push(binary.LittleEndian.Uint64(e.expr[e.pos:]))
		e.pos += 8
		e.clearSource()
		return stepSync

	case opDeref:
		addr, ok := e.pop()
		if !ok {
			return e.underflow()
		}
		e.provider.GetMemoryAsync(addr, 8, func(data []byte, err error) {
			if err != nil {
				e.fail(err)
				return
			}
			e.push(binary.LittleEndian.Uint64(data))
			e.clearSource()
			e.run()
		})
		return stepAsync

	case opConst1u, opConst1s, opConst2u, opConst2s, opConst4u, opConst4s, opConst8u, opConst8s:
		return e.readConst(op)

	case opConstu:
		v, next, err := decodeULEB(e.expr, e.pos)
		if err != nil {
			e.fail(err)
			return stepError
		}
		e.pos = next
		e.push(v)
		e.source = SourceConstant
		return stepSync

	case opConsts:
		v, next, err := decodeSLEB(e.expr, e.pos)
		if err != nil {
			e.fail(err)
			return stepError
		}
		e.pos = next
		e.push(uint64(v))
		e.source = SourceConstant
		return stepSync

	case opDup:
		if len(e.stack) == 0 {
			return e.underflow()
		}
		e.push(e.stack[len(e.stack)-1])
		return stepSync

	case opDrop:
		if _, ok := e.pop(); !ok {
			return e.underflow()
		}
		return stepSync

	case opSwap:
		if len(e.stack) < 2 {
			return e.underflow()
		}
		n := len(e.stack)
		e.stack[n-1], e.stack[n-2] = e.stack[n-2], e.stack[n-1]
		return stepSync

	case opAnd, opMinus, opMul, opOr, opPlus, opShl, opShr, opXor:
		return e.binaryOp(op)

	case opPlusUconst:
		v, next, err := decodeULEB(e.expr, e.pos)
		if err != nil {
			e.fail(err)
			return stepError
		}
		e.pos = next
		top, ok := e.pop()
		if !ok {
			return e.underflow()
		}
		e.push(top + v)
		e.clearSource()
		return stepSync

	case opRegx:
		n, next, err := decodeULEB(e.expr, e.pos)
		if err != nil {
			e.fail(err)
			return stepError
		}
		e.pos = next
		return e.readRegisterLocation(uint32(n))

	case opFbreg:
		offset, next, err := decodeSLEB(e.expr, e.pos)
		if err != nil {
			e.fail(err)
			return stepError
		}
		e.pos = next
		e.provider.GetFrameBaseAsync(func(base uint64, err error) {
			if err != nil {
				e.fail(err)
				return
			}
			e.push(base + uint64(offset))
			e.clearSource()
			e.run()
		})
		return stepAsync

	case opBregx:
		n, next, err := decodeULEB(e.expr, e.pos)
		if err != nil {
			e.fail(err)
			return stepError
		}
		offset, next2, err := decodeSLEB(e.expr, next)
		if err != nil {
			e.fail(err)
			return stepError
		}
		e.pos = next2
		return e.readRegisterRelative(uint32(n), offset)

	case opPiece:
		size, next, err := decodeULEB(e.expr, e.pos)
		if err != nil {
			e.fail(err)
			return stepError
		}
		e.pos = next
		return e.takePiece(uint32(size))

	case opImplicitValue:
		size, next, err := decodeULEB(e.expr, e.pos)
		if err != nil {
			e.fail(err)
			return stepError
		}
		if next+int(size) > len(e.expr) {
			e.fail(fmt.Errorf("truncated DW_OP_implicit_value"))
			return stepError
		}
		e.pieces = append(e.pieces, e.expr[next:next+int(size)]...)
		e.pos = next + int(size)
		return stepSync

	case opStackValue:
		e.isValue = true
		return stepSync
	}

	e.fail(fmt.Errorf("unsupported DWARF operation 0x%02x", op))
	return stepError
}

func (e *Eval) underflow() stepResult {
	e.fail(fmt.Errorf("DWARF expression stack underflow"))
	return stepError
}

func (e *Eval) readConst(op byte) stepResult {
	sizes := map[byte]int{
		opConst1u: 1, opConst1s: 1, opConst2u: 2, opConst2s: 2,
		opConst4u: 4, opConst4s: 4, opConst8u: 8, opConst8s: 8,
	}
	signed := op == opConst1s || op == opConst2s || op == opConst4s || op == opConst8s
	size := sizes[op]
	if e.pos+size > len(e.expr) {
		e.fail(fmt.Errorf("truncated DW_OP_const"))
		return stepError
	}

	var v uint64
	for i := 0; i < size; i++ {
		v |= uint64(e.expr[e.pos+i]) << (8 * uint(i))
	}
	if signed && size < 8 && v&(1<<(uint(size)*8-1)) != 0 {
		v |= ^uint64(0) << (uint(size) * 8) // sign extend
	}
	e.pos += size
	e.push(v)
	e.source = SourceConstant
	e.register = debug.RegNone
	return stepSync
}

func (e *Eval) binaryOp(op byte) stepResult {
	b, ok := e.pop()
	if !ok {
		return e.underflow()
	}
	a, ok := e.pop()
	if !ok {
		return e.underflow()
	}
	var v uint64
	switch op {
	case opAnd:
		v = a & b
	case opMinus:
		v = a - b
	case opMul:
		v = a * b
	case opOr:
		v = a | b
	case opPlus:
		v = a + b
	case opShl:
		v = a << (b & 63)
	case opShr:
		v = a >> (b & 63)
	case opXor:
		v = a ^ b
	}
	e.push(v)
	e.clearSource()
	return stepSync
}

// readRegisterLocation handles DW_OP_reg*: the value lives in the
// register. The register is read so the result carries the bits, and
// the register ID is preserved as provenance.
func (e *Eval) readRegisterLocation(dwarfReg uint32) stepResult {
	id, err := debug.DWARFToRegister(dwarfReg)
	if err != nil {
		e.fail(err)
		return stepError
	}
	e.provider.GetRegisterAsync(id, func(data []byte, err error) {
		if err != nil {
			e.fail(err)
			return
		}
		var v uint64
		for i := 0; i < len(data) && i < 8; i++ {
			v |= uint64(data[i]) << (8 * uint(i))
		}
		e.push(v)
		e.source = SourceRegister
		e.register = id
		e.isValue = true
		e.run()
	})
	return stepAsync
}

// readRegisterRelative handles DW_OP_breg*: push register + offset as
// an address component.
func (e *Eval) readRegisterRelative(dwarfReg uint32, offset int64) stepResult {
	id, err := debug.DWARFToRegister(dwarfReg)
	if err != nil {
		e.fail(err)
		return stepError
	}
	e.provider.GetRegisterAsync(id, func(data []byte, err error) {
		if err != nil {
			e.fail(err)
			return
		}
		var v uint64
		for i := 0; i < len(data) && i < 8; i++ {
			v |= uint64(data[i]) << (8 * uint(i))
		}
		e.push(v + uint64(offset))
		e.clearSource()
		e.run()
	})
	return stepAsync
}

// takePiece appends size bytes of the current location to the composite
// result. Pieces from memory locations issue a read; pieces of register
// or computed values take the low bytes of the top of stack.
func (e *Eval) takePiece(size uint32) stepResult {
	top, ok := e.pop()
	if !ok {
		e.fail(fmt.Errorf("DW_OP_piece with no location"))
		return stepError
	}

	if e.isValue || e.source == SourceRegister || e.source == SourceConstant {
		// Value piece: low `size` bytes of the computed value.
		for i := uint32(0); i < size && i < 8; i++ {
			e.pieces = append(e.pieces, byte(top>>(8*uint(i))))
		}
		e.isValue = false
		e.clearSource()
		return stepSync
	}

	// Memory piece: read from the computed address.
	e.provider.GetMemoryAsync(top, size, func(data []byte, err error) {
		if err != nil {
			e.fail(err)
			return
		}
		e.pieces = append(e.pieces, data...)
		e.clearSource()
		e.run()
	})
	return stepAsync
}
