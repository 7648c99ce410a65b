// Package elf32 locates and validates the headers of 32-bit ELF images held
// in a byte buffer. Views returned by Locate slice into that buffer.
package elf32

import (
	"debug/elf"
	"fmt"
)

const (
	HeaderSize  = 52
	ProgSize    = 32
	SectionSize = 40
	RelSize     = 8
	RelaSize    = 12

	// e_phnum escape: the real count is in section 0's sh_info
	PN_XNUM    = 0xffff
	// e_shstrndx escape: the real index is in section 0's sh_link
	SHN_XINDEX = uint16(elf.SHN_XINDEX)
	SHN_UNDEF  = uint16(elf.SHN_UNDEF)
)

var Magic = [4]byte{0x7f, 'E', 'L', 'F'}

// Header is the ELF32 file header, Elf32_Ehdr.
type Header struct {
	Ident     [elf.EI_NIDENT]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

func (h *Header) Class() elf.Class   { return elf.Class(h.Ident[elf.EI_CLASS]) }
func (h *Header) Data() elf.Data     { return elf.Data(h.Ident[elf.EI_DATA]) }
func (h *Header) FileType() elf.Type { return elf.Type(h.Type) }
func (h *Header) Arch() elf.Machine  { return elf.Machine(h.Machine) }

// Prog is a program header, Elf32_Phdr.
type Prog struct {
	Type   uint32
	Off    uint32
	Vaddr  uint32
	Paddr  uint32
	Filesz uint32
	Memsz  uint32
	Flags  uint32
	Align  uint32
}

func (p *Prog) ProgType() elf.ProgType { return elf.ProgType(p.Type) }
func (p *Prog) Loadable() bool         { return p.ProgType() == elf.PT_LOAD }

func (p *Prog) String() string {
	return fmt.Sprintf("%s off=%#x vaddr=%#x filesz=%#x memsz=%#x",
		p.ProgType(), p.Off, p.Vaddr, p.Filesz, p.Memsz)
}

// Section is a section header, Elf32_Shdr.
type Section struct {
	Name      uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Off       uint32
	Size      uint32
	Link      uint32
	Info      uint32
	Addralign uint32
	Entsize   uint32
}

func (s *Section) SectionType() elf.SectionType { return elf.SectionType(s.Type) }

// NoBits reports whether the section occupies memory but has no file bytes.
func (s *Section) NoBits() bool { return s.SectionType() == elf.SHT_NOBITS }

// Entries is the number of fixed-size records in a table section.
func (s *Section) Entries() uint32 {
	if s.Entsize == 0 {
		return 0
	}
	return s.Size / s.Entsize
}

// Rel and Rela are relocation records. They are decoded for inspection only;
// the loader never applies them.
type Rel struct {
	Off  uint32
	Info uint32
}

type Rela struct {
	Off    uint32
	Info   uint32
	Addend int32
}

func (r *Rel) Sym() uint32      { return r.Info >> 8 }
func (r *Rel) Type() elf.R_386  { return elf.R_386(r.Info & 0xff) }
func (r *Rela) Sym() uint32     { return r.Info >> 8 }
func (r *Rela) Type() elf.R_386 { return elf.R_386(r.Info & 0xff) }
