package x86

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/models/cpu"
	"github.com/lunixbochs/bootcorn/go/platform"
)

const (
	StackPages = 4
	// hlt, in case the sentinel page is ever executed
	sentinelCode = 0xf4
)

var order = binary.LittleEndian

type limiter interface {
	StartLimit(begin, until, count uint64, timeout time.Duration) error
}

// Machine hands off to a kernel on an emulated CPU. The kernel is called
// with a sentinel return address on a private stack, so returning to the
// loader ends the run with the kernel's EAX as an ExitStatus.
type Machine struct {
	Cpu cpu.Cpu

	StackTop uint64
	Sentinel uint64

	InsnLimit uint64
	Timeout   time.Duration
	Logger    log.Logger
}

func NewMachine(c cpu.Cpu, logger log.Logger) *Machine {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Machine{Cpu: c, Logger: logger}
}

// Reserve allocates the handoff stack and the sentinel page.
func (m *Machine) Reserve(alloc platform.PageAllocator) error {
	stack, err := alloc.AllocateAnyPages(StackPages)
	if err != nil {
		return errors.Wrap(err, "handoff stack")
	}
	m.StackTop = stack + StackPages*models.PageSize
	m.Sentinel, err = alloc.AllocateAnyPages(1)
	if err != nil {
		return errors.Wrap(err, "sentinel page")
	}
	return m.Cpu.MemWrite(m.Sentinel, []byte{sentinelCode})
}

func (m *Machine) EnterHandoffState() error {
	eflags, err := m.Cpu.RegRead(uc.X86_REG_EFLAGS)
	if err != nil {
		return err
	}
	writes := []struct {
		reg int
		val uint64
	}{
		{uc.X86_REG_EFLAGS, eflags &^ EFLAGS_IF},
		{uc.X86_REG_CR0, CR0_PE},
		{uc.X86_REG_CR4, 0},
		{uc.X86_REG_CR3, 0},
	}
	for _, w := range writes {
		if err := m.Cpu.RegWrite(w.reg, w.val); err != nil {
			return errors.Wrapf(err, "writing register %d", w.reg)
		}
	}
	return nil
}

func (m *Machine) Call(entry, eax, ecx, edx uint32) error {
	if m.StackTop == 0 {
		return errors.New("handoff stack not reserved")
	}
	esp := m.StackTop - 4
	ret := make([]byte, 4)
	order.PutUint32(ret, uint32(m.Sentinel))
	if err := m.Cpu.MemWrite(esp, ret); err != nil {
		return errors.Wrap(err, "pushing return address")
	}
	regs := []struct {
		reg int
		val uint64
	}{
		{uc.X86_REG_EAX, uint64(eax)},
		{uc.X86_REG_ECX, uint64(ecx)},
		{uc.X86_REG_EDX, uint64(edx)},
		{uc.X86_REG_ESP, esp},
		{uc.X86_REG_EBP, 0},
		{uc.X86_REG_EIP, uint64(entry)},
	}
	for _, r := range regs {
		if err := m.Cpu.RegWrite(r.reg, r.val); err != nil {
			return errors.Wrapf(err, "writing register %d", r.reg)
		}
	}
	level.Info(m.Logger).Log("msg", "calling kernel", "entry", fmt.Sprintf("%#x", entry),
		"eax", fmt.Sprintf("%#x", eax), "ecx", fmt.Sprintf("%#x", ecx), "edx", fmt.Sprintf("%#x", edx))

	var err error
	if l, ok := m.Cpu.(limiter); ok {
		err = l.StartLimit(uint64(entry), m.Sentinel, m.InsnLimit, m.Timeout)
	} else {
		err = m.Cpu.Start(uint64(entry), m.Sentinel)
	}
	pc, pcErr := m.Cpu.RegRead(uc.X86_REG_EIP)
	if err != nil {
		if pcErr != nil {
			return errors.Wrap(err, "kernel faulted")
		}
		return errors.Wrapf(err, "kernel faulted near %#x", pc)
	}
	if pcErr != nil {
		return errors.Wrap(pcErr, "reading pc after kernel stopped")
	}
	if pc == m.Sentinel {
		status, err := m.Cpu.RegRead(uc.X86_REG_EAX)
		if err != nil {
			return err
		}
		return models.ExitStatus(status)
	}
	level.Info(m.Logger).Log("msg", "kernel stopped", "pc", fmt.Sprintf("%#x", pc))
	return nil
}
