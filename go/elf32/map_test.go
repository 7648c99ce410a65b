package elf32

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"testing"

	"github.com/lunixbochs/bootcorn/go/models"
)

func testImage(t *testing.T, b *Builder) []byte {
	p, err := b.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func kernelBuilder() *Builder {
	code := []byte{0xb8, 0x01, 0, 0, 0, 0xc3}
	b := NewBuilder(0x100000)
	b.AddSegment(0x100000, code, 0x20, elf.PF_R|elf.PF_X)
	b.AddBss(0x100020, 0x10)
	return b
}

func patch16(p []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(p[off:], v)
}

func TestLocate(t *testing.T) {
	m, err := Locate(testImage(t, kernelBuilder()))
	if err != nil {
		t.Fatal(err)
	}
	if m.Header.Entry != 0x100000 {
		t.Errorf("entry = %#x", m.Header.Entry)
	}
	if m.ProgCount != (Count{N: 1}) {
		t.Errorf("prog count = %v", m.ProgCount)
	}
	if m.SectionCount != (Count{N: 4}) {
		t.Errorf("section count = %v", m.SectionCount)
	}
	if m.StrIndex != (Count{N: 3}) {
		t.Errorf("string index = %v", m.StrIndex)
	}
	names := []string{"", ".text", ".bss", ".shstrtab"}
	for i, name := range names {
		if got := m.SectionName(i); got != name {
			t.Errorf("section %d name = %q, want %q", i, got, name)
		}
	}
	if !m.Sections[2].NoBits() || m.Sections[2].Size != 0x10 {
		t.Errorf("bad .bss section: %+v", m.Sections[2])
	}
	p := m.Progs[0]
	if !p.Loadable() || p.Filesz != 6 || p.Memsz != 0x20 || p.Vaddr != 0x100000 {
		t.Errorf("bad segment: %s", &p)
	}
	data, err := m.ProgData(&p)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0xb8, 0x01, 0, 0, 0, 0xc3}) {
		t.Errorf("segment data = %x", data)
	}
}

func TestLocateExtended(t *testing.T) {
	b := kernelBuilder()
	b.Extended = true
	p := testImage(t, b)
	m, err := Locate(p)
	if err != nil {
		t.Fatal(err)
	}
	if m.Header.Shnum != 0 || m.Header.Phnum != PN_XNUM || m.Header.Shstrndx != SHN_XINDEX {
		t.Fatalf("builder did not escape counts: %+v", m.Header)
	}
	if m.SectionCount != (Count{N: 4, Source: Extended}) {
		t.Errorf("section count = %v", m.SectionCount)
	}
	if m.ProgCount != (Count{N: 1, Source: Extended}) {
		t.Errorf("prog count = %v", m.ProgCount)
	}
	if m.StrIndex != (Count{N: 3, Source: Extended}) {
		t.Errorf("string index = %v", m.StrIndex)
	}
	if len(m.Sections) != 4 || len(m.Progs) != 1 {
		t.Errorf("got %d sections and %d programs", len(m.Sections), len(m.Progs))
	}
	if m.SectionName(1) != ".text" {
		t.Errorf("section 1 name = %q", m.SectionName(1))
	}
}

func TestDecodeCounts(t *testing.T) {
	first := &Section{Size: 70000, Info: 66000, Link: 69999}
	if c := DecodeSectionCount(5, first); c != (Count{N: 5}) {
		t.Errorf("direct section count = %v", c)
	}
	if c := DecodeSectionCount(0, first); c != (Count{N: 70000, Source: Extended}) {
		t.Errorf("extended section count = %v", c)
	}
	if c, ok := DecodeProgCount(3, nil); !ok || c != (Count{N: 3}) {
		t.Errorf("direct prog count = %v %v", c, ok)
	}
	if c, ok := DecodeProgCount(PN_XNUM, first); !ok || c != (Count{N: 66000, Source: Extended}) {
		t.Errorf("extended prog count = %v %v", c, ok)
	}
	if _, ok := DecodeProgCount(PN_XNUM, nil); ok {
		t.Error("prog count escape resolved without section 0")
	}
	if _, ok := DecodeStrIndex(SHN_UNDEF, first); ok {
		t.Error("SHN_UNDEF resolved to a string table")
	}
	if c, ok := DecodeStrIndex(SHN_XINDEX, first); !ok || c != (Count{N: 69999, Source: Extended}) {
		t.Errorf("extended string index = %v %v", c, ok)
	}
	if c, ok := DecodeStrIndex(7, first); !ok || c != (Count{N: 7}) {
		t.Errorf("direct string index = %v %v", c, ok)
	}
}

func TestLocateBadMagic(t *testing.T) {
	good := testImage(t, kernelBuilder())
	bad := append([]byte(nil), good...)
	bad[3] = 'G'
	for _, p := range [][]byte{nil, {0x7f, 'E', 'L'}, bad, []byte("#!/bin/sh\necho hi\n")} {
		m, err := Locate(p)
		if !models.IsFormat(err) {
			t.Errorf("Locate(%q) = %v, want format error", p, err)
		}
		if m != nil {
			t.Errorf("Locate(%q) returned a header on failure", p)
		}
	}
}

func TestLocateShortHeader(t *testing.T) {
	good := testImage(t, kernelBuilder())
	if _, err := Locate(good[:HeaderSize-1]); !models.IsFormat(err) {
		t.Fatalf("got %v, want format error", err)
	}
}

func TestLocateTruncated(t *testing.T) {
	good := testImage(t, kernelBuilder())
	// section table is at the end
	if _, err := Locate(good[:len(good)-1]); !models.IsFormat(err) {
		t.Fatalf("got %v, want format error", err)
	}
}

func TestLocateNoSections(t *testing.T) {
	b := kernelBuilder()
	b.NoSections = true
	m, err := Locate(testImage(t, b))
	if err != nil {
		t.Fatal(err)
	}
	if m.Sections != nil || m.StrTab != nil {
		t.Errorf("found sections in an image without any")
	}
	if len(m.Progs) != 1 || m.ProgCount != (Count{N: 1}) {
		t.Errorf("programs not located without sections: %v", m.ProgCount)
	}
}

func TestProgEscapeWithoutSections(t *testing.T) {
	b := kernelBuilder()
	b.NoSections = true
	p := testImage(t, b)
	patch16(p, 44, PN_XNUM)
	if _, err := Locate(p); !models.IsFormat(err) {
		t.Fatalf("got %v, want format error", err)
	}
}

func TestStrIndexUndef(t *testing.T) {
	p := testImage(t, kernelBuilder())
	patch16(p, 50, SHN_UNDEF)
	m, err := Locate(p)
	if err != nil {
		t.Fatal(err)
	}
	if m.StrTab != nil {
		t.Error("string table resolved for SHN_UNDEF")
	}
	if m.SectionName(1) != "" {
		t.Errorf("section name without string table = %q", m.SectionName(1))
	}
}

func TestStrIndexOutOfRange(t *testing.T) {
	p := testImage(t, kernelBuilder())
	patch16(p, 50, 9)
	if _, err := Locate(p); !models.IsFormat(err) {
		t.Fatalf("got %v, want format error", err)
	}
}

func TestEntrySizes(t *testing.T) {
	p := testImage(t, kernelBuilder())
	patch16(p, 46, SectionSize-1)
	if _, err := Locate(p); !models.IsFormat(err) {
		t.Errorf("short section entries: got %v, want format error", err)
	}
	p = testImage(t, kernelBuilder())
	patch16(p, 42, ProgSize/2)
	if _, err := Locate(p); !models.IsFormat(err) {
		t.Errorf("short program entries: got %v, want format error", err)
	}
}

func TestLocateOtherClass(t *testing.T) {
	p := testImage(t, kernelBuilder())
	p[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	m, err := Locate(p)
	if err != nil {
		t.Fatal(err)
	}
	if m.Progs != nil || m.Sections != nil {
		t.Error("resolved tables for a non-ELF32 image")
	}
	if !models.IsUnsupported(Check(m.Header)) {
		t.Error("64-bit class passed Check")
	}
}

func TestBuilderStdlib(t *testing.T) {
	p := testImage(t, kernelBuilder())
	f, err := elf.NewFile(bytes.NewReader(p))
	if err != nil {
		t.Fatal(err)
	}
	if f.Class != elf.ELFCLASS32 || f.Machine != elf.EM_386 || f.Entry != 0x100000 {
		t.Errorf("bad header: %+v", f.FileHeader)
	}
	if len(f.Progs) != 1 || f.Progs[0].Memsz != 0x20 {
		t.Errorf("bad programs: %+v", f.Progs)
	}
	for _, name := range []string{".text", ".bss", ".shstrtab"} {
		if f.Section(name) == nil {
			t.Errorf("stdlib missing section %s", name)
		}
	}
}

func TestRelocs(t *testing.T) {
	data := make([]byte, 16)
	binary.LittleEndian.PutUint32(data[0:], 0x100010)
	binary.LittleEndian.PutUint32(data[4:], 3<<8|uint32(elf.R_386_32))
	binary.LittleEndian.PutUint32(data[8:], 0x100014)
	binary.LittleEndian.PutUint32(data[12:], 4<<8|uint32(elf.R_386_PC32))
	m := &Map{
		File:     data,
		Order:    binary.LittleEndian,
		Sections: []Section{{Type: uint32(elf.SHT_REL), Size: 16, Entsize: RelSize}},
	}
	relocs, err := m.Relocs(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(relocs) != 2 {
		t.Fatalf("got %d relocs", len(relocs))
	}
	if relocs[0].Sym() != 3 || relocs[0].Type() != elf.R_386_32 || relocs[0].Off != 0x100010 {
		t.Errorf("bad reloc 0: %+v", relocs[0])
	}
	if relocs[1].Sym() != 4 || relocs[1].Type() != elf.R_386_PC32 {
		t.Errorf("bad reloc 1: %+v", relocs[1])
	}
	if n, err := m.Relocations(); err != nil || n != 2 {
		t.Errorf("Relocations() = %d, %v", n, err)
	}
}
