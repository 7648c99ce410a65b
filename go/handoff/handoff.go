// Package handoff transfers control from the loader to a kernel entry point.
package handoff

import (
	"fmt"

	"github.com/pkg/errors"
)

// LoaderMagic is passed in EAX so the kernel can tell how it was started.
const LoaderMagic = 0x12345678

// Payload is the register state a kernel starts with: EAX=Magic,
// ECX=MemInfo, EDX=GfxInfo. A zero snapshot pointer means unavailable.
type Payload struct {
	Magic   uint32
	MemInfo uint32
	GfxInfo uint32
	Entry   uint32
}

func NewPayload(entry, memInfo, gfxInfo uint32) Payload {
	return Payload{Magic: LoaderMagic, MemInfo: memInfo, GfxInfo: gfxInfo, Entry: entry}
}

func (p Payload) String() string {
	return fmt.Sprintf("entry=%#x eax=%#x ecx=%#x edx=%#x", p.Entry, p.Magic, p.MemInfo, p.GfxInfo)
}

// Machine is a CPU that can be put into the flat protected mode state the
// kernel expects and then jumped into.
type Machine interface {
	// EnterHandoffState disables interrupts, sets CR0 to PE only, and
	// clears CR3 and CR4.
	EnterHandoffState() error
	// Call jumps to entry with the given EAX, ECX and EDX. On hardware it
	// does not return.
	Call(entry, eax, ecx, edx uint32) error
}

// Handoff enters the handoff state and calls the kernel. A nil error means
// an emulated kernel ran to completion.
func Handoff(m Machine, p Payload) error {
	if p.Magic != LoaderMagic {
		return errors.Errorf("bad payload magic %#x", p.Magic)
	}
	if err := m.EnterHandoffState(); err != nil {
		return errors.Wrap(err, "entering handoff state")
	}
	return m.Call(p.Entry, p.Magic, p.MemInfo, p.GfxInfo)
}
