package elf32

import (
	"bytes"
	"debug/elf"
	"encoding/binary"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

type BuildSegment struct {
	Vaddr uint32
	Data  []byte
	Memsz uint32
	Flags elf.ProgFlag
}

// Builder writes little endian ELF32 executables: one PT_LOAD per segment,
// an optional .bss, and a .shstrtab when sections are enabled.
type Builder struct {
	Machine elf.Machine
	Type    elf.Type
	Entry   uint32

	Segments []BuildSegment
	BssAddr  uint32
	BssSize  uint32

	// NoSections leaves e_shoff at zero.
	NoSections bool
	// Extended stores every count and the string table index in section 0.
	Extended bool
}

func NewBuilder(entry uint32) *Builder {
	return &Builder{Machine: elf.EM_386, Type: elf.ET_EXEC, Entry: entry}
}

func (b *Builder) AddSegment(vaddr uint32, data []byte, memsz uint32, flags elf.ProgFlag) *Builder {
	if memsz < uint32(len(data)) {
		memsz = uint32(len(data))
	}
	b.Segments = append(b.Segments, BuildSegment{Vaddr: vaddr, Data: data, Memsz: memsz, Flags: flags})
	return b
}

func (b *Builder) AddBss(addr, size uint32) *Builder {
	b.BssAddr, b.BssSize = addr, size
	return b
}

type strtab struct {
	bytes.Buffer
}

func (s *strtab) add(name string) uint32 {
	if s.Len() == 0 {
		s.WriteByte(0)
	}
	off := uint32(s.Len())
	s.WriteString(name)
	s.WriteByte(0)
	return off
}

func align(n, to uint32) uint32 {
	return (n + to - 1) &^ (to - 1)
}

func (b *Builder) Bytes() ([]byte, error) {
	order := binary.LittleEndian
	phoff := uint32(HeaderSize)
	off := align(phoff+uint32(len(b.Segments))*ProgSize, 16)

	progs := make([]Prog, len(b.Segments))
	for i, s := range b.Segments {
		progs[i] = Prog{
			Type:   uint32(elf.PT_LOAD),
			Off:    off,
			Vaddr:  s.Vaddr,
			Paddr:  s.Vaddr,
			Filesz: uint32(len(s.Data)),
			Memsz:  s.Memsz,
			Flags:  uint32(s.Flags),
			Align:  0x1000,
		}
		off = align(off+uint32(len(s.Data)), 16)
	}

	var names strtab
	sections := []Section{{}}
	if !b.NoSections {
		for i, s := range b.Segments {
			name := ".data"
			if s.Flags&elf.PF_X != 0 {
				name = ".text"
			}
			flags := elf.SHF_ALLOC
			if s.Flags&elf.PF_W != 0 {
				flags |= elf.SHF_WRITE
			}
			if s.Flags&elf.PF_X != 0 {
				flags |= elf.SHF_EXECINSTR
			}
			sections = append(sections, Section{
				Name:      names.add(name),
				Type:      uint32(elf.SHT_PROGBITS),
				Flags:     uint32(flags),
				Addr:      s.Vaddr,
				Off:       progs[i].Off,
				Size:      uint32(len(s.Data)),
				Addralign: 16,
			})
		}
		if b.BssSize > 0 {
			sections = append(sections, Section{
				Name:      names.add(".bss"),
				Type:      uint32(elf.SHT_NOBITS),
				Flags:     uint32(elf.SHF_ALLOC | elf.SHF_WRITE),
				Addr:      b.BssAddr,
				Off:       off,
				Size:      b.BssSize,
				Addralign: 16,
			})
		}
		name := names.add(".shstrtab")
		sections = append(sections, Section{
			Name:      name,
			Type:      uint32(elf.SHT_STRTAB),
			Off:       off,
			Size:      uint32(names.Len()),
			Addralign: 1,
		})
	}
	strndx := uint32(len(sections) - 1)
	shoff := align(off+uint32(names.Len()), 16)

	h := Header{
		Type:      uint16(b.Type),
		Machine:   uint16(b.Machine),
		Version:   uint32(elf.EV_CURRENT),
		Entry:     b.Entry,
		Phoff:     phoff,
		Ehsize:    HeaderSize,
		Phentsize: ProgSize,
		Phnum:     uint16(len(progs)),
		Shentsize: SectionSize,
	}
	copy(h.Ident[:], Magic[:])
	h.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32)
	h.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	h.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)
	if len(progs) == 0 {
		h.Phoff = 0
	}
	if !b.NoSections {
		h.Shoff = shoff
		h.Shnum = uint16(len(sections))
		h.Shstrndx = uint16(strndx)
		if b.Extended {
			h.Shnum = 0
			h.Phnum = PN_XNUM
			h.Shstrndx = SHN_XINDEX
			sections[0].Size = uint32(len(sections))
			sections[0].Info = uint32(len(progs))
			sections[0].Link = strndx
		}
	} else if b.Extended {
		return nil, errors.New("extended counts need a section table")
	}

	var buf bytes.Buffer
	pack := func(v interface{}) error {
		return errors.Wrap(struc.PackWithOrder(&buf, v, order), "struc.Pack() failed")
	}
	pad := func(to uint32) {
		for uint32(buf.Len()) < to {
			buf.WriteByte(0)
		}
	}
	if err := pack(&h); err != nil {
		return nil, err
	}
	for i := range progs {
		if err := pack(&progs[i]); err != nil {
			return nil, err
		}
	}
	for i, s := range b.Segments {
		pad(progs[i].Off)
		buf.Write(s.Data)
	}
	if !b.NoSections {
		pad(off)
		buf.Write(names.Bytes())
		pad(shoff)
		for i := range sections {
			if err := pack(&sections[i]); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}
