package elf32

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"fmt"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models"
)

// Source records whether a count or index came straight from the primary
// header or through one of the section 0 escapes.
type Source int

const (
	Direct Source = iota
	Extended
)

func (s Source) String() string {
	if s == Extended {
		return "extended"
	}
	return "direct"
}

type Count struct {
	N      uint32
	Source Source
}

func (c Count) String() string {
	return fmt.Sprintf("%d (%s)", c.N, c.Source)
}

// Map is a read-only view of an image's headers.
type Map struct {
	File   []byte
	Order  binary.ByteOrder
	Header *Header

	Sections     []Section
	SectionCount Count

	Progs     []Prog
	ProgCount Count

	StrTab   []byte
	StrIndex Count
}

func DecodeSectionCount(shnum uint16, first *Section) Count {
	if shnum == 0 && first != nil {
		return Count{N: first.Size, Source: Extended}
	}
	return Count{N: uint32(shnum)}
}

// DecodeProgCount returns false when the escape is used with no section 0.
func DecodeProgCount(phnum uint16, first *Section) (Count, bool) {
	if phnum == PN_XNUM {
		if first == nil {
			return Count{}, false
		}
		return Count{N: first.Info, Source: Extended}, true
	}
	return Count{N: uint32(phnum)}, true
}

// DecodeStrIndex returns false when the image names no string table, or
// escapes to section 0 without having one.
func DecodeStrIndex(shstrndx uint16, first *Section) (Count, bool) {
	switch shstrndx {
	case SHN_UNDEF:
		return Count{}, false
	case SHN_XINDEX:
		if first == nil {
			return Count{}, false
		}
		return Count{N: first.Link, Source: Extended}, true
	}
	return Count{N: uint32(shstrndx)}, true
}

func unpack(buf []byte, off, size uint64, order binary.ByteOrder, v interface{}) error {
	if off > uint64(len(buf)) || size > uint64(len(buf))-off {
		return models.Formatf("%d bytes at %#x past end of %d byte image", size, off, len(buf))
	}
	r := bytes.NewReader(buf[off : off+size])
	return errors.Wrap(struc.UnpackWithOrder(r, v, order), "struc.Unpack() failed")
}

// table bounds checks n entries of stride bytes each starting at off.
func table(buf []byte, what string, off uint64, n uint32, stride, minSize uint16) error {
	if stride < minSize {
		return models.Formatf("%s entry size %d smaller than %d", what, stride, minSize)
	}
	size := uint64(n) * uint64(stride)
	if off > uint64(len(buf)) || size > uint64(len(buf))-off {
		return models.Formatf("%s table of %d entries at %#x past end of %d byte image", what, n, off, len(buf))
	}
	return nil
}

// Locate decodes the primary header and resolves the section, program and
// section name string tables. Resolution honors the PN_XNUM, SHN_XINDEX and
// zero e_shnum escapes through section 0. Tables are only resolved for
// ELFCLASS32 images; other classes keep just the primary header so Check can
// say why they are unsupported.
func Locate(buf []byte) (*Map, error) {
	if len(buf) < len(Magic) || !bytes.Equal(buf[:len(Magic)], Magic[:]) {
		return nil, models.Formatf("missing ELF magic")
	}
	if len(buf) < HeaderSize {
		return nil, models.Formatf("%d byte image shorter than ELF32 header", len(buf))
	}
	m := &Map{File: buf, Order: binary.LittleEndian}
	if elf.Data(buf[elf.EI_DATA]) == elf.ELFDATA2MSB {
		m.Order = binary.BigEndian
	}
	var h Header
	if err := unpack(buf, 0, HeaderSize, m.Order, &h); err != nil {
		return nil, err
	}
	m.Header = &h
	if h.Class() != elf.ELFCLASS32 {
		return m, nil
	}
	var first *Section
	if h.Shoff != 0 {
		first = &Section{}
		if err := table(buf, "section", uint64(h.Shoff), 1, h.Shentsize, SectionSize); err != nil {
			return nil, err
		}
		if err := unpack(buf, uint64(h.Shoff), SectionSize, m.Order, first); err != nil {
			return nil, err
		}
		m.SectionCount = DecodeSectionCount(h.Shnum, first)
		if err := m.readSections(); err != nil {
			return nil, err
		}
	}
	// programs are read even with no section table, unlike a loader that
	// treats e_shoff == 0 as "no map at all"
	if h.Phoff != 0 {
		count, ok := DecodeProgCount(h.Phnum, first)
		if !ok {
			return nil, models.Formatf("program count escape with no section table")
		}
		m.ProgCount = count
		if err := m.readProgs(); err != nil {
			return nil, err
		}
	}
	if first != nil {
		if idx, ok := DecodeStrIndex(h.Shstrndx, first); ok {
			m.StrIndex = idx
			data, err := m.SectionData(int(idx.N))
			if err != nil {
				return nil, errors.Wrap(err, "section name table")
			}
			m.StrTab = data
		}
	}
	return m, nil
}

func (m *Map) readSections() error {
	h := m.Header
	n := m.SectionCount.N
	if err := table(m.File, "section", uint64(h.Shoff), n, h.Shentsize, SectionSize); err != nil {
		return err
	}
	m.Sections = make([]Section, n)
	for i := range m.Sections {
		off := uint64(h.Shoff) + uint64(i)*uint64(h.Shentsize)
		if err := unpack(m.File, off, SectionSize, m.Order, &m.Sections[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Map) readProgs() error {
	h := m.Header
	n := m.ProgCount.N
	if err := table(m.File, "program", uint64(h.Phoff), n, h.Phentsize, ProgSize); err != nil {
		return err
	}
	m.Progs = make([]Prog, n)
	for i := range m.Progs {
		off := uint64(h.Phoff) + uint64(i)*uint64(h.Phentsize)
		if err := unpack(m.File, off, ProgSize, m.Order, &m.Progs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Map) slice(off, size uint32) ([]byte, error) {
	end := uint64(off) + uint64(size)
	if end > uint64(len(m.File)) {
		return nil, models.Formatf("range %#x-%#x past end of %d byte image", off, end, len(m.File))
	}
	return m.File[off:end:end], nil
}

// SectionData returns the file bytes of section i. NOBITS sections have none.
func (m *Map) SectionData(i int) ([]byte, error) {
	if i < 0 || i >= len(m.Sections) {
		return nil, models.Formatf("section index %d out of range (%d sections)", i, len(m.Sections))
	}
	s := &m.Sections[i]
	if s.NoBits() {
		return m.File[:0:0], nil
	}
	return m.slice(s.Off, s.Size)
}

// ProgData returns the bytes a segment copies out of the file.
func (m *Map) ProgData(p *Prog) ([]byte, error) {
	size := p.Filesz
	if p.Memsz < size {
		size = p.Memsz
	}
	return m.slice(p.Off, size)
}

// SectionName looks up a section name in the string table, or "" when there
// is no string table or the offset is bad.
func (m *Map) SectionName(i int) string {
	if i < 0 || i >= len(m.Sections) || m.StrTab == nil {
		return ""
	}
	off := m.Sections[i].Name
	if uint64(off) >= uint64(len(m.StrTab)) {
		return ""
	}
	name := m.StrTab[off:]
	if n := bytes.IndexByte(name, 0); n >= 0 {
		name = name[:n]
	}
	return string(name)
}

func (m *Map) Loadable() []*Prog {
	var progs []*Prog
	for i := range m.Progs {
		if m.Progs[i].Loadable() {
			progs = append(progs, &m.Progs[i])
		}
	}
	return progs
}

// Relocs decodes the REL or RELA records of section i. REL records come back
// with a zero addend. Nothing in the loader applies them.
func (m *Map) Relocs(i int) ([]Rela, error) {
	data, err := m.SectionData(i)
	if err != nil {
		return nil, err
	}
	s := &m.Sections[i]
	var size uint32
	switch s.SectionType() {
	case elf.SHT_REL:
		size = RelSize
	case elf.SHT_RELA:
		size = RelaSize
	default:
		return nil, errors.Errorf("section %d is %s, not a relocation table", i, s.SectionType())
	}
	stride := s.Entsize
	if stride == 0 {
		stride = size
	} else if stride < size {
		return nil, models.Formatf("relocation entry size %d smaller than %d", stride, size)
	}
	relocs := make([]Rela, 0, s.Size/stride)
	for off := uint32(0); off+stride <= uint32(len(data)); off += stride {
		var r Rela
		if size == RelSize {
			var rel Rel
			if err := unpack(data, uint64(off), RelSize, m.Order, &rel); err != nil {
				return nil, err
			}
			r = Rela{Off: rel.Off, Info: rel.Info}
		} else if err := unpack(data, uint64(off), RelaSize, m.Order, &r); err != nil {
			return nil, err
		}
		relocs = append(relocs, r)
	}
	return relocs, nil
}

// Relocations counts the relocation records across all sections.
func (m *Map) Relocations() (int, error) {
	total := 0
	for i := range m.Sections {
		switch m.Sections[i].SectionType() {
		case elf.SHT_REL, elf.SHT_RELA:
		default:
			continue
		}
		relocs, err := m.Relocs(i)
		if err != nil {
			return total, err
		}
		total += len(relocs)
	}
	return total, nil
}
