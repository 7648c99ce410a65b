//go:build baremetal && 386

package native

import (
	"unsafe"

	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/handoff"
	"github.com/lunixbochs/bootcorn/go/models"
)

const Supported = true

// implemented in handoff_386.s
func handoffState()
func enter(entry, eax, ecx, edx uint32)

// Machine runs the handoff on the CPU the loader is running on.
type Machine struct{}

func New() (handoff.Machine, error) {
	return &Machine{}, nil
}

func (m *Machine) EnterHandoffState() error {
	handoffState()
	return nil
}

// Call does not return.
func (m *Machine) Call(entry, eax, ecx, edx uint32) error {
	enter(entry, eax, ecx, edx)
	return errors.New("kernel returned")
}

// Mem is the flat 32-bit physical address space. Mapping only checks
// ranges, the firmware owns allocation.
type Mem struct{}

func NewMem() models.DirectMem {
	return &Mem{}
}

func check(addr, size uint64) error {
	if addr+size < addr || addr+size > 1<<32 {
		return errors.Errorf("range %#x+%#x outside 32-bit physical memory", addr, size)
	}
	return nil
}

func (m *Mem) MemMapProt(addr, size uint64, prot int) error {
	return check(addr, size)
}

func (m *Mem) MemUnmap(addr, size uint64) error {
	return check(addr, size)
}

func (m *Mem) MemSlice(addr, size uint64) ([]byte, error) {
	if err := check(addr, size); err != nil {
		return nil, err
	}
	if size == 0 {
		return nil, nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(addr))), size), nil
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	src, err := m.MemSlice(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	copy(p, src)
	return nil
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	return p, m.MemReadInto(p, addr)
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	dst, err := m.MemSlice(addr, uint64(len(p)))
	if err != nil {
		return err
	}
	copy(dst, p)
	return nil
}
