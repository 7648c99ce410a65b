package platform

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models"
)

const MiB = 1 << 20

func unavailable(snapshot string, err error) error {
	return errors.WithStack(&models.SnapshotUnavailable{Snapshot: snapshot, Err: err})
}

// CollectGraphics snapshots the current graphics mode.
func CollectGraphics(fw Firmware) (*GraphicsInfo, error) {
	mode, err := fw.GraphicsMode()
	if err != nil {
		return nil, unavailable("graphics", err)
	}
	return &GraphicsInfo{
		FrameBufferBase:   uint32(mode.FrameBufferBase),
		FrameBufferSize:   uint32(mode.FrameBufferSize),
		Width:             mode.Width,
		Height:            mode.Height,
		PixelFormat:       uint32(mode.PixelFormat),
		PixelsPerScanLine: mode.PixelsPerScanLine,
		RedMask:           mode.RedMask,
		GreenMask:         mode.GreenMask,
		BlueMask:          mode.BlueMask,
	}, nil
}

// CollectMemory totals every memory map descriptor in MiB and scans the
// configuration tables in mem for the RSDP.
func CollectMemory(fw Firmware, mem models.PhysMem) (*MemoryInfo, error) {
	descs, err := fw.MemoryMap()
	if err != nil {
		return nil, unavailable("memory", err)
	}
	var total uint64
	for _, d := range descs {
		total += d.NumberOfPages * models.PageSize
	}
	tables, err := fw.ConfigTables()
	if err != nil {
		return nil, unavailable("memory", errors.Wrap(err, "config tables"))
	}
	return &MemoryInfo{
		MemorySizeMB: uint32(total / MiB),
		RSDP:         FindRSDP(tables, mem),
	}, nil
}

type PageAllocator interface {
	AllocateAnyPages(n uint64) (uint64, error)
}

// Publish packs a snapshot into a newly allocated page and returns its
// address, which has to fit the 32-bit handoff registers.
func Publish(mem models.PhysMem, alloc PageAllocator, v interface{}) (uint32, error) {
	p, err := pack(v)
	if err != nil {
		return 0, err
	}
	addr, err := alloc.AllocateAnyPages(models.Pages(uint64(len(p))))
	if err != nil {
		return 0, err
	}
	if addr == 0 || addr+uint64(len(p)) > 1<<32 {
		return 0, models.Resourcef("publish", "snapshot page %#x not addressable from 32-bit registers", addr)
	}
	if err := mem.MemWrite(addr, p); err != nil {
		return 0, models.WrapResource(err, "publish")
	}
	return uint32(addr), nil
}
