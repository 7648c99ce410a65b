package platform

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lunixbochs/bootcorn/go/models"
)

// snapshots and firmware tables are little endian
var order = binary.LittleEndian

type PixelFormat uint32

const (
	PixelRGBX PixelFormat = iota
	PixelBGRX
	PixelBitMask
	PixelBltOnly
)

var pixelNames = map[PixelFormat]string{
	PixelRGBX:    "rgbx",
	PixelBGRX:    "bgrx",
	PixelBitMask: "bitmask",
	PixelBltOnly: "blt",
}

func (p PixelFormat) String() string {
	if name, ok := pixelNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PixelFormat(%d)", uint32(p))
}

func (p *PixelFormat) UnmarshalYAML(value *yaml.Node) error {
	for k, name := range pixelNames {
		if strings.EqualFold(value.Value, name) {
			*p = k
			return nil
		}
	}
	var n uint32
	if err := value.Decode(&n); err != nil {
		return errors.Errorf("line %d: unknown pixel format %q", value.Line, value.Value)
	}
	*p = PixelFormat(n)
	return nil
}

func (p PixelFormat) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}

// Mode is the active graphics output mode.
type Mode struct {
	FrameBufferBase   uint64      `yaml:"framebuffer"`
	FrameBufferSize   uint64      `yaml:"size"`
	Width             uint32      `yaml:"width"`
	Height            uint32      `yaml:"height"`
	PixelFormat       PixelFormat `yaml:"format"`
	PixelsPerScanLine uint32      `yaml:"stride"`
	RedMask           uint32      `yaml:"red,omitempty"`
	GreenMask         uint32      `yaml:"green,omitempty"`
	BlueMask          uint32      `yaml:"blue,omitempty"`
}

type MemoryType uint32

const (
	MemReserved MemoryType = iota
	MemLoaderCode
	MemLoaderData
	MemBootCode
	MemBootData
	MemRuntimeCode
	MemRuntimeData
	MemConventional
	MemUnusable
	MemACPIReclaim
	MemACPINVS
	MemMMIO
)

var memoryNames = map[MemoryType]string{
	MemReserved:     "reserved",
	MemLoaderCode:   "loader-code",
	MemLoaderData:   "loader-data",
	MemBootCode:     "boot-code",
	MemBootData:     "boot-data",
	MemRuntimeCode:  "runtime-code",
	MemRuntimeData:  "runtime-data",
	MemConventional: "conventional",
	MemUnusable:     "unusable",
	MemACPIReclaim:  "acpi-reclaim",
	MemACPINVS:      "acpi-nvs",
	MemMMIO:         "mmio",
}

func (t MemoryType) String() string {
	if name, ok := memoryNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MemoryType(%d)", uint32(t))
}

func (t *MemoryType) UnmarshalYAML(value *yaml.Node) error {
	for k, name := range memoryNames {
		if strings.EqualFold(value.Value, name) {
			*t = k
			return nil
		}
	}
	return errors.Errorf("line %d: unknown memory type %q", value.Line, value.Value)
}

func (t MemoryType) MarshalYAML() (interface{}, error) {
	return t.String(), nil
}

// MemoryDescriptor is one entry of the firmware memory map.
type MemoryDescriptor struct {
	Type          MemoryType `yaml:"type"`
	PhysicalStart uint64     `yaml:"start"`
	NumberOfPages uint64     `yaml:"pages"`
	Attribute     uint64     `yaml:"attr,omitempty"`
}

func (d *MemoryDescriptor) End() uint64 {
	return d.PhysicalStart + d.NumberOfPages*models.PageSize
}

// ConfigTable is a vendor table pointer from the firmware system table.
type ConfigTable struct {
	Vendor  string `yaml:"vendor"`
	Address uint64 `yaml:"address"`
}

// Firmware answers the queries the snapshot collectors make.
type Firmware interface {
	GraphicsMode() (*Mode, error)
	MemoryMap() ([]MemoryDescriptor, error)
	ConfigTables() ([]ConfigTable, error)
}
