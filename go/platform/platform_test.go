package platform

import (
	"encoding/binary"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/models/cpu"
)

func installed(t *testing.T, m *Machine) *cpu.Mem {
	mem := cpu.NewMem(32)
	if _, err := m.Install(mem); err != nil {
		t.Fatal(err)
	}
	return mem
}

func TestCollectDefault(t *testing.T) {
	m := DefaultMachine()
	mem := installed(t, m)
	info, err := CollectMemory(m, mem)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&MemoryInfo{MemorySizeMB: 128, RSDP: 0xe0000}, info); diff != "" {
		t.Errorf("memory info (-want +got):\n%s", diff)
	}
	gfx, err := CollectGraphics(m)
	if err != nil {
		t.Fatal(err)
	}
	want := &GraphicsInfo{
		FrameBufferBase:   0xfd000000,
		FrameBufferSize:   0x300000,
		Width:             1024,
		Height:            768,
		PixelFormat:       uint32(PixelBGRX),
		PixelsPerScanLine: 1024,
	}
	if diff := cmp.Diff(want, gfx); diff != "" {
		t.Errorf("graphics info (-want +got):\n%s", diff)
	}
}

func TestCollectUnavailable(t *testing.T) {
	m := &Machine{}
	mem := installed(t, m)
	if _, err := CollectGraphics(m); !models.IsSnapshotUnavailable(err) {
		t.Errorf("graphics: got %v", err)
	}
	if _, err := CollectMemory(m, mem); !models.IsSnapshotUnavailable(err) {
		t.Errorf("memory: got %v", err)
	}
}

func TestFindRSDP(t *testing.T) {
	m := &Machine{
		Memory: []MemoryDescriptor{{Type: MemConventional, NumberOfPages: 16}},
		Tables: []TableConfig{
			{ConfigTable: ConfigTable{Vendor: "smbios", Address: 0xf0000}},
			{ConfigTable: ConfigTable{Vendor: ACPITableGUID, Address: 0xe0010}, RSDP: &RSDPConfig{OEMID: "TEST"}},
			{ConfigTable: ConfigTable{Vendor: ACPITableGUID, Address: 0xe8000}, RSDP: &RSDPConfig{OEMID: "LATE"}},
		},
	}
	mem := installed(t, m)
	tables, err := m.ConfigTables()
	if err != nil {
		t.Fatal(err)
	}
	// an unmapped table is skipped, not fatal
	tables = append([]ConfigTable{{Vendor: "gone", Address: 0x7000000}}, tables...)
	if addr := FindRSDP(tables, mem); addr != 0xe0010 {
		t.Errorf("rsdp = %#x, want 0xe0010", addr)
	}
	if addr := FindRSDP(tables[:2], mem); addr != 0 {
		t.Errorf("rsdp without a signature = %#x", addr)
	}
}

func TestRSDPBytes(t *testing.T) {
	r := &RSDP{Signature: RSDPSignature, OEMID: "BOOTCN", RsdtAddress: 0xe1000}
	p, err := r.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	if len(p) != 20 {
		t.Fatalf("rsdp is %d bytes", len(p))
	}
	if string(p[:8]) != RSDPSignature || string(p[9:15]) != "BOOTCN" {
		t.Errorf("bad rsdp layout: %q", p)
	}
	var sum uint8
	for _, b := range p {
		sum += b
	}
	if sum != 0 {
		t.Errorf("checksum leaves sum %#x", sum)
	}
	if binary.LittleEndian.Uint32(p[16:]) != 0xe1000 {
		t.Errorf("rsdt = %#x", binary.LittleEndian.Uint32(p[16:]))
	}
}

type pageAlloc struct {
	mem  models.PhysMem
	addr uint64
}

func (p *pageAlloc) AllocateAnyPages(n uint64) (uint64, error) {
	return p.addr, p.mem.MemMapProt(p.addr, n*models.PageSize, cpu.PROT_ALL)
}

func TestPublish(t *testing.T) {
	mem := cpu.NewMem(64)
	info := &GraphicsInfo{FrameBufferBase: 0xfd000000, Width: 800, Height: 600, BlueMask: 0xff}
	addr, err := Publish(mem, &pageAlloc{mem, 0x5000}, info)
	if err != nil {
		t.Fatal(err)
	}
	if addr != 0x5000 {
		t.Fatalf("published at %#x", addr)
	}
	p, err := mem.MemRead(0x5000, 36)
	if err != nil {
		t.Fatal(err)
	}
	var got GraphicsInfo
	if err := unpack(p, &got); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(info, &got); diff != "" {
		t.Errorf("published snapshot (-want +got):\n%s", diff)
	}
	if binary.LittleEndian.Uint32(p[8:]) != 800 {
		t.Errorf("width not at offset 8: %x", p)
	}

	if _, err := Publish(mem, &pageAlloc{mem, 1 << 32}, info); !models.IsResource(err) {
		t.Errorf("high page: got %v, want resource error", err)
	}
}

const testMachine = `
name: test
graphics:
  framebuffer: 0xe0000000
  size: 0x1d4c00
  width: 800
  height: 600
  format: bitmask
  stride: 800
  red: 0xff0000
  green: 0xff00
  blue: 0xff
memory:
  - type: conventional
    start: 0
    pages: 0x100
  - type: acpi-reclaim
    start: 0x100000
    pages: 0x10
tables:
  - vendor: 8868e871-e4f1-11d3-bc22-0080c73c8881
    address: 0x80000
    rsdp:
      oem: YAMLOK
      rsdt: 0x81000
`

func TestParseMachine(t *testing.T) {
	m, err := ParseMachine([]byte(testMachine))
	if err != nil {
		t.Fatal(err)
	}
	want := &Machine{
		Name: "test",
		Graphics: &Mode{
			FrameBufferBase:   0xe0000000,
			FrameBufferSize:   0x1d4c00,
			Width:             800,
			Height:            600,
			PixelFormat:       PixelBitMask,
			PixelsPerScanLine: 800,
			RedMask:           0xff0000,
			GreenMask:         0xff00,
			BlueMask:          0xff,
		},
		Memory: []MemoryDescriptor{
			{Type: MemConventional, PhysicalStart: 0, NumberOfPages: 0x100},
			{Type: MemACPIReclaim, PhysicalStart: 0x100000, NumberOfPages: 0x10},
		},
		Tables: []TableConfig{{
			ConfigTable: ConfigTable{Vendor: ACPITableGUID, Address: 0x80000},
			RSDP:        &RSDPConfig{OEMID: "YAMLOK", Rsdt: 0x81000},
		}},
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("machine (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]models.Segment{{Start: 0, End: 0x100000}}, m.Usable()); diff != "" {
		t.Errorf("usable (-want +got):\n%s", diff)
	}

	mem := installed(t, m)
	info, err := CollectMemory(m, mem)
	if err != nil {
		t.Fatal(err)
	}
	if info.MemorySizeMB != 1 || info.RSDP != 0x80000 {
		t.Errorf("memory info = %s", info)
	}
}

func TestParseMachineErrors(t *testing.T) {
	for _, doc := range []string{
		"memory:\n  - type: lava\n    pages: 1\n",
		"graphics:\n  format: sepia\n",
		"cpus: 4\n",
	} {
		if _, err := ParseMachine([]byte(doc)); err == nil {
			t.Errorf("accepted %q", doc)
		}
	}
}

func TestLoadMachine(t *testing.T) {
	fs := afero.NewMemMapFs()
	want := DefaultMachine()
	p, err := want.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/etc/bootcorn/pc.yaml", p, 0644); err != nil {
		t.Fatal(err)
	}
	m, err := FindMachine(fs, "/etc/bootcorn/pc.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want, m); diff != "" {
		t.Errorf("machine (-want +got):\n%s", diff)
	}
	if _, err := LoadMachine(fs, "/missing.yaml"); err == nil {
		t.Error("loaded a missing file")
	}
}
