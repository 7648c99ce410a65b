package x86

import (
	"debug/elf"

	ks "github.com/keystone-engine/keystone/bindings/go/keystone"
	cs "github.com/lunixbochs/capstr"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/bootcorn/go/cpu"
	"github.com/lunixbochs/bootcorn/go/cpu/unicorn"
	"github.com/lunixbochs/bootcorn/go/models"
)

const (
	CR0_PE = 1 << 0
	CR0_PG = 1 << 31

	EFLAGS_IF = 1 << 9
)

var Arch = &models.Arch{
	Name:    "x86",
	Bits:    32,
	Machine: elf.EM_386,

	Cpu: &unicorn.Builder{Arch: uc.ARCH_X86, Mode: uc.MODE_32},
	Dis: &cpu.Capstr{Arch: cs.ARCH_X86, Mode: cs.MODE_32},
	Asm: &cpu.Keystone{Arch: ks.ARCH_X86, Mode: ks.MODE_32},

	PC: uc.X86_REG_EIP,
	SP: uc.X86_REG_ESP,
	Regs: map[string]int{
		"eip": uc.X86_REG_EIP,
		"esp": uc.X86_REG_ESP,
		"ebp": uc.X86_REG_EBP,
		"eax": uc.X86_REG_EAX,
		"ebx": uc.X86_REG_EBX,
		"ecx": uc.X86_REG_ECX,
		"edx": uc.X86_REG_EDX,
		"esi": uc.X86_REG_ESI,
		"edi": uc.X86_REG_EDI,

		"eflags": uc.X86_REG_EFLAGS,

		"cr0": uc.X86_REG_CR0,
		"cr3": uc.X86_REG_CR3,
		"cr4": uc.X86_REG_CR4,

		"cs": uc.X86_REG_CS,
		"ds": uc.X86_REG_DS,
		"es": uc.X86_REG_ES,
		"fs": uc.X86_REG_FS,
		"gs": uc.X86_REG_GS,
		"ss": uc.X86_REG_SS,
	},
	DefaultRegs: []string{
		"eax", "ebx", "ecx", "edx", "esi", "edi", "ebp", "esp", "eip",
	},
}
