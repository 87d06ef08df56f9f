package debug

import "fmt"

// RegisterID identifies a CPU register. Only the x64 general purpose
// set is modeled; sub-registers (eax, ax, ah, al, ...) have their own
// IDs and map onto a canonical 64-bit register via RegisterInfo.
type RegisterID uint16

const (
	RegNone RegisterID = iota

	// Canonical 64-bit registers.
	RegRAX
	RegRBX
	RegRCX
	RegRDX
	RegRSI
	RegRDI
	RegRBP
	RegRSP
	RegR8
	RegR9
	RegR10
	RegR11
	RegR12
	RegR13
	RegR14
	RegR15
	RegRIP
	RegRFLAGS

	// 32/16/8-bit views of rax..rdx.
	RegEAX
	RegAX
	RegAL
	RegAH
	RegEBX
	RegBX
	RegBL
	RegBH
	RegECX
	RegCX
	RegCL
	RegCH
	RegEDX
	RegDX
	RegDL
	RegDH
)

// RegisterInfo describes a register: its canonical container and the
// bit range it occupies within it. Canonical registers have Canonical
// equal to their own ID and Shift 0.
type RegisterInfo struct {
	ID        RegisterID
	Name      string
	Canonical RegisterID
	Bits      uint32 // width in bits
	Shift     uint32 // bit offset within the canonical register
}

var registerInfos = []RegisterInfo{
	{RegRAX, "rax", RegRAX, 64, 0},
	{RegRBX, "rbx", RegRBX, 64, 0},
	{RegRCX, "rcx", RegRCX, 64, 0},
	{RegRDX, "rdx", RegRDX, 64, 0},
	{RegRSI, "rsi", RegRSI, 64, 0},
	{RegRDI, "rdi", RegRDI, 64, 0},
	{RegRBP, "rbp", RegRBP, 64, 0},
	{RegRSP, "rsp", RegRSP, 64, 0},
	{RegR8, "r8", RegR8, 64, 0},
	{RegR9, "r9", RegR9, 64, 0},
	{RegR10, "r10", RegR10, 64, 0},
	{RegR11, "r11", RegR11, 64, 0},
	{RegR12, "r12", RegR12, 64, 0},
	{RegR13, "r13", RegR13, 64, 0},
	{RegR14, "r14", RegR14, 64, 0},
	{RegR15, "r15", RegR15, 64, 0},
	{RegRIP, "rip", RegRIP, 64, 0},
	{RegRFLAGS, "rflags", RegRFLAGS, 64, 0},

	{RegEAX, "eax", RegRAX, 32, 0},
	{RegAX, "ax", RegRAX, 16, 0},
	{RegAL, "al", RegRAX, 8, 0},
	{RegAH, "ah", RegRAX, 8, 8},
	{RegEBX, "ebx", RegRBX, 32, 0},
	{RegBX, "bx", RegRBX, 16, 0},
	{RegBL, "bl", RegRBX, 8, 0},
	{RegBH, "bh", RegRBX, 8, 8},
	{RegECX, "ecx", RegRCX, 32, 0},
	{RegCX, "cx", RegRCX, 16, 0},
	{RegCL, "cl", RegRCX, 8, 0},
	{RegCH, "ch", RegRCX, 8, 8},
	{RegEDX, "edx", RegRDX, 32, 0},
	{RegDX, "dx", RegRDX, 16, 0},
	{RegDL, "dl", RegRDX, 8, 0},
	{RegDH, "dh", RegRDX, 8, 8},
}

var registersByID map[RegisterID]*RegisterInfo
var registersByName map[string]*RegisterInfo

func init() {
	registersByID = make(map[RegisterID]*RegisterInfo, len(registerInfos))
	registersByName = make(map[string]*RegisterInfo, len(registerInfos))
	for i := range registerInfos {
		info := &registerInfos[i]
		registersByID[info.ID] = info
		registersByName[info.Name] = info
	}
}

// InfoForRegister returns the description of id.
func InfoForRegister(id RegisterID) (*RegisterInfo, error) {
	if info, ok := registersByID[id]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("unknown register id %d", id)
}

// RegisterByName looks up a register by its lower-case name.
func RegisterByName(name string) (*RegisterInfo, error) {
	if info, ok := registersByName[name]; ok {
		return info, nil
	}
	return nil, fmt.Errorf("unknown register %q", name)
}

// RegisterName returns the name for id, or a placeholder.
func RegisterName(id RegisterID) string {
	if info, ok := registersByID[id]; ok {
		return info.Name
	}
	return fmt.Sprintf("reg(%d)", id)
}

// dwarfRegisters maps DWARF register numbers (System V x86-64 ABI) to
// canonical register IDs.
var dwarfRegisters = map[uint32]RegisterID{
	0: RegRAX, 1: RegRDX, 2: RegRCX, 3: RegRBX,
	4: RegRSI, 5: RegRDI, 6: RegRBP, 7: RegRSP,
	8: RegR8, 9: RegR9, 10: RegR10, 11: RegR11,
	12: RegR12, 13: RegR13, 14: RegR14, 15: RegR15,
	16: RegRIP,
}

// DWARFToRegister translates a DWARF register number into a RegisterID.
func DWARFToRegister(n uint32) (RegisterID, error) {
	if id, ok := dwarfRegisters[n]; ok {
		return id, nil
	}
	return RegNone, fmt.Errorf("unsupported DWARF register %d", n)
}
