package cpu

import (
	"github.com/pkg/errors"
)

// Mem wraps MemSim as a physical address space of a fixed bit width.
// It satisfies the memory half of Cpu and hands out direct slices.
type Mem struct {
	bits uint
	// methods return an error for addresses that do not fit inside mask
	// calculated by NewMem using ^uint64(0) >> (64 - bits)
	mask uint64
	// MemSim is private, so any cpu-facing functionality needs to be wrapped by Mem
	sim *MemSim
}

func NewMem(bits uint) *Mem {
	return &Mem{
		bits: bits,
		mask: ^uint64(0) >> (64 - bits),
		sim:  &MemSim{},
	}
}

func (m *Mem) inRange(addr, size uint64) bool {
	if size == 0 {
		return addr&m.mask == addr
	}
	end := addr + size - 1
	return end >= addr && end&m.mask == end
}

func (m *Mem) MemMapProt(addr, size uint64, prot int) error {
	if !m.inRange(addr, size) {
		return errors.Errorf("region %#x+%#x outside %d-bit memory range", addr, size, m.bits)
	}
	m.sim.Map(addr, size, prot, true)
	return nil
}

func (m *Mem) MemProt(addr, size uint64, prot int) error {
	if mapped, _ := m.sim.RangeValid(addr, size, 0); !mapped {
		return errors.New("range not mapped")
	}
	m.sim.Prot(addr, size, prot)
	return nil
}

func (m *Mem) MemUnmap(addr, size uint64) error {
	if mapped, _ := m.sim.RangeValid(addr, size, 0); !mapped {
		return errors.New("range not mapped")
	}
	m.sim.Unmap(addr, size)
	return nil
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	return m.sim.Read(addr, p, 0)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	return m.sim.Write(addr, p, 0)
}

// MemSlice aliases the backing store of a range inside a single mapping.
func (m *Mem) MemSlice(addr, size uint64) ([]byte, error) {
	if p, ok := m.sim.Slice(addr, size); ok {
		return p, nil
	}
	if mapped, _ := m.sim.RangeValid(addr, size, 0); !mapped {
		return nil, &MemError{Addr: addr, Size: int(size), Enum: MEM_READ_UNMAPPED}
	}
	return nil, errors.Errorf("range %#x+%#x spans more than one mapping", addr, size)
}

// Maps lists the current mappings in address order.
func (m *Mem) Maps() Pages {
	return m.sim.Mem
}

// Describe labels the mapping that contains addr.
func (m *Mem) Describe(addr uint64, desc string) {
	if p := m.sim.Mem.Find(addr); p != nil {
		p.Desc = desc
	}
}
