package debug

import (
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"gopkg.in/yaml.v3"
)

// MemoryRegion is a contiguous block of recorded memory.
type MemoryRegion struct {
	Address uint64 `cbor:"1,keyasint"`
	Data    []byte `cbor:"2,keyasint"`
}

// Snapshot is a recorded process image: canonical register values and
// a set of memory regions. It backs evaluation in tests and in the
// REPL's "recorded target" mode.
type Snapshot struct {
	Registers map[RegisterID][]byte `cbor:"1,keyasint"`
	Memory    []MemoryRegion        `cbor:"2,keyasint"`
	FrameBase uint64                `cbor:"3,keyasint"`
}

func NewSnapshot() *Snapshot {
	return &Snapshot{Registers: make(map[RegisterID][]byte)}
}

// ReadMemory returns exactly size bytes at address, or an invalid
// pointer error. Reads spanning a region boundary are not stitched; a
// recorded region either contains the range or the pointer is bad.
func (s *Snapshot) ReadMemory(address uint64, size uint32) ([]byte, error) {
	for i := range s.Memory {
		r := &s.Memory[i]
		if address >= r.Address && address+uint64(size) <= r.Address+uint64(len(r.Data)) {
			off := address - r.Address
			out := make([]byte, size)
			copy(out, r.Data[off:off+uint64(size)])
			return out, nil
		}
	}
	return nil, fmt.Errorf("Invalid pointer 0x%x.", address)
}

// WriteMemory stores data at address inside an existing region.
func (s *Snapshot) WriteMemory(address uint64, data []byte) error {
	for i := range s.Memory {
		r := &s.Memory[i]
		if address >= r.Address && address+uint64(len(data)) <= r.Address+uint64(len(r.Data)) {
			copy(r.Data[address-r.Address:], data)
			return nil
		}
	}
	return fmt.Errorf("Invalid pointer 0x%x.", address)
}

// ReadRegister returns the canonical register bytes.
func (s *Snapshot) ReadRegister(id RegisterID) ([]byte, error) {
	if data, ok := s.Registers[id]; ok {
		out := make([]byte, len(data))
		copy(out, data)
		return out, nil
	}
	return nil, fmt.Errorf("register %s unavailable", RegisterName(id))
}

// WriteRegister replaces the canonical register bytes.
func (s *Snapshot) WriteRegister(id RegisterID, data []byte) error {
	if _, ok := s.Registers[id]; !ok {
		return fmt.Errorf("register %s unavailable", RegisterName(id))
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	s.Registers[id] = stored
	return nil
}

// ---------------------------------------------------------------------------
// DataProvider adapter
// ---------------------------------------------------------------------------

// SnapshotProvider adapts a Snapshot to the DataProvider interface.
// With a nil Loop all completions fire synchronously from inside the
// call; with a Loop they are posted, exercising the asynchronous path.
type SnapshotProvider struct {
	Snap *Snapshot
	Loop *Loop
}

func NewSnapshotProvider(snap *Snapshot, loop *Loop) *SnapshotProvider {
	return &SnapshotProvider{Snap: snap, Loop: loop}
}

func (p *SnapshotProvider) complete(f func()) {
	if p.Loop != nil {
		p.Loop.Post(f)
		return
	}
	f()
}

func (p *SnapshotProvider) GetMemoryAsync(address uint64, size uint32, cb func([]byte, error)) {
	data, err := p.Snap.ReadMemory(address, size)
	p.complete(func() { cb(data, err) })
}

func (p *SnapshotProvider) WriteMemory(address uint64, data []byte, cb func(error)) {
	err := p.Snap.WriteMemory(address, data)
	p.complete(func() { cb(err) })
}

func (p *SnapshotProvider) GetRegisterAsync(id RegisterID, cb func([]byte, error)) {
	data, err := p.Snap.ReadRegister(id)
	p.complete(func() { cb(data, err) })
}

func (p *SnapshotProvider) WriteRegister(id RegisterID, data []byte, cb func(error)) {
	err := p.Snap.WriteRegister(id, data)
	p.complete(func() { cb(err) })
}

func (p *SnapshotProvider) GetFrameBaseAsync(cb func(uint64, error)) {
	base := p.Snap.FrameBase
	p.complete(func() { cb(base, nil) })
}

// ---------------------------------------------------------------------------
// YAML fixture form
// ---------------------------------------------------------------------------

// The YAML fixture is the human-written form:
//
//	frame_base: 0x3000
//	registers:
//	  rax: "0001020304050607"   # little-endian bytes, hex
//	memory:
//	  - address: 0x2000
//	    data: "deadbeef"
type snapshotYAML struct {
	FrameBase string            `yaml:"frame_base"`
	Registers map[string]string `yaml:"registers"`
	Memory    []struct {
		Address string `yaml:"address"`
		Data    string `yaml:"data"`
	} `yaml:"memory"`
}

// LoadSnapshotYAML parses the YAML fixture form.
func LoadSnapshotYAML(data []byte) (*Snapshot, error) {
	var file snapshotYAML
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	snap := NewSnapshot()
	if file.FrameBase != "" {
		base, err := parseAddress(file.FrameBase)
		if err != nil {
			return nil, err
		}
		snap.FrameBase = base
	}

	for name, hexBytes := range file.Registers {
		info, err := RegisterByName(strings.ToLower(name))
		if err != nil {
			return nil, err
		}
		if info.Canonical != info.ID {
			return nil, fmt.Errorf("snapshot registers must be canonical; %q is a view of %s",
				name, RegisterName(info.Canonical))
		}
		raw, err := hex.DecodeString(hexBytes)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
		if uint32(len(raw))*8 != info.Bits {
			return nil, fmt.Errorf("register %s: expected %d bytes, got %d", name, info.Bits/8, len(raw))
		}
		snap.Registers[info.ID] = raw
	}

	for _, region := range file.Memory {
		addr, err := parseAddress(region.Address)
		if err != nil {
			return nil, err
		}
		raw, err := hex.DecodeString(region.Data)
		if err != nil {
			return nil, fmt.Errorf("memory region 0x%x: %w", addr, err)
		}
		snap.Memory = append(snap.Memory, MemoryRegion{Address: addr, Data: raw})
	}
	sort.Slice(snap.Memory, func(i, j int) bool {
		return snap.Memory[i].Address < snap.Memory[j].Address
	})
	return snap, nil
}

// LoadSnapshotYAMLFile reads and parses a fixture file.
func LoadSnapshotYAMLFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadSnapshotYAML(data)
}

func parseAddress(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("bad address %q: %w", s, err)
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// CBOR dump form
// ---------------------------------------------------------------------------

// EncodeDump serializes the snapshot in the compact dump form used for
// recorded-process files.
func (s *Snapshot) EncodeDump() ([]byte, error) {
	return cbor.Marshal(s)
}

// DecodeDump parses a compact dump.
func DecodeDump(data []byte) (*Snapshot, error) {
	snap := NewSnapshot()
	if err := cbor.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parsing dump: %w", err)
	}
	if snap.Registers == nil {
		snap.Registers = make(map[RegisterID][]byte)
	}
	return snap, nil
}

// SaveDumpFile writes the CBOR dump to path.
func (s *Snapshot) SaveDumpFile(path string) error {
	data, err := s.EncodeDump()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadDumpFile reads a CBOR dump from path.
func LoadDumpFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeDump(data)
}
