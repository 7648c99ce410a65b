package platform

import (
	"bytes"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/shibukawa/configdir"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/models/cpu"
)

const (
	MachineFile = "machine.yaml"
	// EFI_ACPI_TABLE_GUID
	ACPITableGUID = "8868e871-e4f1-11d3-bc22-0080c73c8881"
)

type RSDPConfig struct {
	OEMID string `yaml:"oem"`
	Rsdt  uint32 `yaml:"rsdt"`
}

type TableConfig struct {
	ConfigTable `yaml:",inline"`
	// when set, an ACPI 1.0 RSDP is written at Address by Install
	RSDP *RSDPConfig `yaml:"rsdp,omitempty"`
}

// Machine is a firmware description loaded from YAML. It answers the
// Firmware queries and can lay its tables out in physical memory.
type Machine struct {
	Name     string             `yaml:"name"`
	Graphics *Mode              `yaml:"graphics"`
	Memory   []MemoryDescriptor `yaml:"memory"`
	Tables   []TableConfig      `yaml:"tables"`
}

func (m *Machine) GraphicsMode() (*Mode, error) {
	if m.Graphics == nil {
		return nil, errors.New("no graphics output")
	}
	mode := *m.Graphics
	return &mode, nil
}

func (m *Machine) MemoryMap() ([]MemoryDescriptor, error) {
	if len(m.Memory) == 0 {
		return nil, errors.New("empty memory map")
	}
	return append([]MemoryDescriptor(nil), m.Memory...), nil
}

func (m *Machine) ConfigTables() ([]ConfigTable, error) {
	tables := make([]ConfigTable, len(m.Tables))
	for i, t := range m.Tables {
		tables[i] = t.ConfigTable
	}
	return tables, nil
}

// Usable returns the conventional memory ranges pages may be allocated from.
func (m *Machine) Usable() []models.Segment {
	var usable []models.Segment
	for _, d := range m.Memory {
		if d.Type == MemConventional && d.NumberOfPages > 0 {
			usable = append(usable, models.Segment{Start: d.PhysicalStart, End: d.End()})
		}
	}
	return usable
}

// Install maps the framebuffer and a page for each configuration table, and
// writes the RSDP tables. It returns the ranges it mapped.
func (m *Machine) Install(mem models.PhysMem) ([]models.Segment, error) {
	var mapped []models.Segment
	mapRange := func(addr, size uint64, what string) error {
		s := models.Segment{Start: models.AlignDown(addr), End: models.AlignUp(addr + size)}
		for i := range mapped {
			if mapped[i].Contains(&s) {
				return nil
			}
		}
		if err := mem.MemMapProt(s.Start, s.Size(), cpu.PROT_READ|cpu.PROT_WRITE); err != nil {
			return models.WrapResource(errors.Wrapf(err, "%s at %s", what, s), "install")
		}
		mapped = append(mapped, s)
		return nil
	}
	if g := m.Graphics; g != nil && g.FrameBufferSize > 0 {
		if err := mapRange(g.FrameBufferBase, g.FrameBufferSize, "framebuffer"); err != nil {
			return nil, err
		}
	}
	for _, t := range m.Tables {
		if t.Address == 0 {
			continue
		}
		if err := mapRange(t.Address, models.PageSize, t.Vendor); err != nil {
			return nil, err
		}
		if t.RSDP == nil {
			continue
		}
		rsdp := &RSDP{Signature: RSDPSignature, OEMID: t.RSDP.OEMID, RsdtAddress: t.RSDP.Rsdt}
		p, err := rsdp.Bytes()
		if err != nil {
			return nil, err
		}
		if err := mem.MemWrite(t.Address, p); err != nil {
			return nil, models.WrapResource(err, "install rsdp")
		}
	}
	return mapped, nil
}

// DefaultMachine is a 128MiB PC with a 1024x768 BGRX framebuffer and an RSDP
// in the BIOS area.
func DefaultMachine() *Machine {
	return &Machine{
		Name: "builtin",
		Graphics: &Mode{
			FrameBufferBase:   0xfd000000,
			FrameBufferSize:   1024 * 768 * 4,
			Width:             1024,
			Height:            768,
			PixelFormat:       PixelBGRX,
			PixelsPerScanLine: 1024,
		},
		Memory: []MemoryDescriptor{
			{Type: MemConventional, PhysicalStart: 0, NumberOfPages: 0x9f},
			{Type: MemReserved, PhysicalStart: 0x9f000, NumberOfPages: 0x61},
			{Type: MemConventional, PhysicalStart: 0x100000, NumberOfPages: 0x7f00},
		},
		Tables: []TableConfig{
			{
				ConfigTable: ConfigTable{Vendor: ACPITableGUID, Address: 0xe0000},
				RSDP:        &RSDPConfig{OEMID: "BOOTCN", Rsdt: 0xe1000},
			},
		},
	}
}

func ParseMachine(p []byte) (*Machine, error) {
	dec := yaml.NewDecoder(bytes.NewReader(p))
	dec.KnownFields(true)
	var m Machine
	if err := dec.Decode(&m); err != nil {
		return nil, errors.Wrap(err, "parsing machine description")
	}
	return &m, nil
}

func LoadMachine(fs afero.Fs, path string) (*Machine, error) {
	p, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "reading machine description")
	}
	m, err := ParseMachine(p)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	if m.Name == "" {
		m.Name = filepath.Base(path)
	}
	return m, nil
}

// FindMachine loads path if given, else machine.yaml from the user or system
// config folders, else the builtin machine.
func FindMachine(fs afero.Fs, path string) (*Machine, error) {
	if path != "" {
		return LoadMachine(fs, path)
	}
	dirs := configdir.New("", "bootcorn")
	if folder := dirs.QueryFolderContainsFile(MachineFile); folder != nil {
		return LoadMachine(fs, filepath.Join(folder.Path, MachineFile))
	}
	return DefaultMachine(), nil
}

func (m *Machine) Marshal() ([]byte, error) {
	p, err := yaml.Marshal(m)
	return p, errors.Wrap(err, "encoding machine description")
}
