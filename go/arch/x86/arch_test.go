package x86

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/bootcorn/go/handoff"
	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/models/cpu"
)

// stores eax, ecx, edx at 0x100100 and returns 0x2a
var kernelCode = []byte{
	0xa3, 0x00, 0x01, 0x10, 0x00,       // mov [0x100100], eax
	0x89, 0x0d, 0x04, 0x01, 0x10, 0x00, // mov [0x100104], ecx
	0x89, 0x15, 0x08, 0x01, 0x10, 0x00, // mov [0x100108], edx
	0xb8, 0x2a, 0x00, 0x00, 0x00,       // mov eax, 0x2a
	0xc3,                               // ret
}

type bumpAlloc struct {
	mem  models.PhysMem
	next uint64
}

func (b *bumpAlloc) AllocateAnyPages(n uint64) (uint64, error) {
	addr := b.next
	b.next += n * models.PageSize
	return addr, b.mem.MemMapProt(addr, n*models.PageSize, cpu.PROT_ALL)
}

func newMachine(t *testing.T, code []byte) (*Machine, cpu.Cpu) {
	c, err := Arch.Cpu.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.MemMapProt(0x100000, 0x1000, cpu.PROT_ALL); err != nil {
		t.Fatal(err)
	}
	if err := c.MemWrite(0x100000, code); err != nil {
		t.Fatal(err)
	}
	m := NewMachine(c, nil)
	m.InsnLimit = 1000
	if err := m.Reserve(&bumpAlloc{mem: c, next: 0x200000}); err != nil {
		t.Fatal(err)
	}
	return m, c
}

func TestHandoffReturns(t *testing.T) {
	m, c := newMachine(t, kernelCode)
	err := handoff.Handoff(m, handoff.NewPayload(0x100000, 0x7000, 0x8000))
	status, ok := err.(models.ExitStatus)
	if !ok || status != 0x2a {
		t.Fatalf("got %v, want kernel return 0x2a", err)
	}
	got, err := c.MemRead(0x100100, 12)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x78, 0x56, 0x34, 0x12, 0, 0x70, 0, 0, 0, 0x80, 0, 0}
	if !bytes.Equal(got, want) {
		t.Errorf("kernel saw registers %x, want %x", got, want)
	}
}

func TestHandoffState(t *testing.T) {
	m, c := newMachine(t, []byte{0xf4}) // hlt
	if err := c.RegWrite(uc.X86_REG_EFLAGS, 0x202); err != nil {
		t.Fatal(err)
	}
	if err := handoff.Handoff(m, handoff.NewPayload(0x100000, 0, 0)); err != nil {
		t.Fatalf("halted kernel: %v", err)
	}
	cr0, _ := c.RegRead(uc.X86_REG_CR0)
	if cr0&CR0_PE == 0 || cr0&CR0_PG != 0 {
		t.Errorf("cr0 = %#x", cr0)
	}
	for _, reg := range []int{uc.X86_REG_CR3, uc.X86_REG_CR4} {
		if v, _ := c.RegRead(reg); v != 0 {
			t.Errorf("control register %d = %#x", reg, v)
		}
	}
	if eflags, _ := c.RegRead(uc.X86_REG_EFLAGS); eflags&EFLAGS_IF != 0 {
		t.Errorf("interrupts left enabled: eflags = %#x", eflags)
	}
	if ecx, _ := c.RegRead(uc.X86_REG_ECX); ecx != 0 {
		t.Errorf("absent memory snapshot passed as %#x", ecx)
	}
}

func TestHandoffFault(t *testing.T) {
	// jmp to unmapped memory
	m, _ := newMachine(t, []byte{0xe9, 0xfb, 0xff, 0xef, 0x0f})
	if err := handoff.Handoff(m, handoff.NewPayload(0x100000, 0, 0)); err == nil {
		t.Fatal("fault not reported")
	}
}

// recordCpu logs register writes and can refuse to read back eip.
type recordCpu struct {
	cpu.Cpu
	writes []int
	noPC   bool
}

func (r *recordCpu) RegWrite(reg int, val uint64) error {
	r.writes = append(r.writes, reg)
	return r.Cpu.RegWrite(reg, val)
}

func (r *recordCpu) RegRead(reg int) (uint64, error) {
	if r.noPC && reg == uc.X86_REG_EIP {
		return 0, errors.New("eip unreadable")
	}
	return r.Cpu.RegRead(reg)
}

func TestCallRegisterOrder(t *testing.T) {
	m, c := newMachine(t, []byte{0xf4})
	rec := &recordCpu{Cpu: c}
	m.Cpu = rec
	if err := m.Call(0x100000, 1, 2, 3); err != nil {
		t.Fatal(err)
	}
	want := []int{uc.X86_REG_EAX, uc.X86_REG_ECX, uc.X86_REG_EDX, uc.X86_REG_ESP, uc.X86_REG_EBP, uc.X86_REG_EIP}
	if diff := cmp.Diff(want, rec.writes); diff != "" {
		t.Errorf("register writes (-want +got):\n%s", diff)
	}
}

func TestCallFaultNoPC(t *testing.T) {
	m, c := newMachine(t, []byte{0xe9, 0xfb, 0xff, 0xef, 0x0f})
	m.Cpu = &recordCpu{Cpu: c, noPC: true}
	err := m.Call(0x100000, 0, 0, 0)
	if err == nil {
		t.Fatal("fault not reported")
	}
	if strings.Contains(err.Error(), "near") {
		t.Errorf("fault reported at an unknown pc: %v", err)
	}
}

func TestRegDump(t *testing.T) {
	_, c := newMachine(t, kernelCode)
	regs, err := Arch.RegDump(c)
	if err != nil {
		t.Fatal(err)
	}
	if len(regs) != len(Arch.Regs) {
		t.Fatalf("dumped %d of %d registers", len(regs), len(Arch.Regs))
	}
	for i := 1; i < len(regs); i++ {
		if regs[i-1].Name >= regs[i].Name {
			t.Errorf("registers out of order: %s before %s", regs[i-1].Name, regs[i].Name)
		}
	}
}
