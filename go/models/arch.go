package models

import (
	"debug/elf"
	"sort"

	"github.com/lunixbochs/fvbommel-util/sortorder"

	"github.com/lunixbochs/bootcorn/go/models/cpu"
)

type Ins interface {
	Addr() uint64
	Bytes() []byte
	Mnemonic() string
	OpStr() string
}

type Disassembler interface {
	Dis(mem []byte, addr uint64) ([]Ins, error)
}

type Assembler interface {
	Asm(asm string, addr uint64) ([]byte, error)
}

type RegReader interface {
	RegRead(reg int) (uint64, error)
}

type Reg struct {
	Enum    int
	Name    string
	Default bool
}

type RegVal struct {
	Reg
	Val uint64
}

type regList []Reg

func (r regList) Len() int           { return len(r) }
func (r regList) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }
func (r regList) Less(i, j int) bool { return sortorder.NaturalLess(r[i].Name, r[j].Name) }

// Arch describes the one CPU the loader can hand off to, and the tools used
// to emulate, disassemble and assemble for it.
type Arch struct {
	Name    string
	Bits    int
	Machine elf.Machine

	Cpu cpu.Builder
	Dis Disassembler
	Asm Assembler

	PC, SP int
	Regs   map[string]int
	// printed by StatusDiff even when unchanged
	DefaultRegs []string

	// sorted for RegDump
	regList regList
}

func (a *Arch) sortedRegs() regList {
	if a.regList == nil {
		defaults := make(map[string]bool, len(a.DefaultRegs))
		for _, name := range a.DefaultRegs {
			defaults[name] = true
		}
		rl := make(regList, 0, len(a.Regs))
		for name, enum := range a.Regs {
			rl = append(rl, Reg{Enum: enum, Name: name, Default: defaults[name]})
		}
		sort.Sort(rl)
		a.regList = rl
	}
	return a.regList
}

func (a *Arch) RegDump(r RegReader) ([]RegVal, error) {
	regs := a.sortedRegs()
	ret := make([]RegVal, len(regs))
	for i, reg := range regs {
		val, err := r.RegRead(reg.Enum)
		if err != nil {
			return nil, err
		}
		ret[i] = RegVal{reg, val}
	}
	return ret, nil
}
