// Package boot runs the second stage: read the kernel off the boot volume,
// validate and materialize it, collect platform snapshots and hand off.
package boot

import (
	"debug/elf"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/lunixbochs/bootcorn/go/elf32"
	"github.com/lunixbochs/bootcorn/go/handoff"
	"github.com/lunixbochs/bootcorn/go/loader"
	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/platform"
)

type Loader struct {
	Config   *models.Config
	Volume   afero.Fs
	Mem      models.PhysMem
	Alloc    *Allocator
	Firmware platform.Firmware
	Machine  handoff.Machine

	State   models.BootState
	History []models.BootState

	Map     *elf32.Map
	Payload handoff.Payload
	// snapshot values as collected, nil when unavailable
	Graphics *platform.GraphicsInfo
	Memory   *platform.MemoryInfo

	buffer *models.Segment
	kernel *models.Segment
	logger log.Logger
}

func NewLoader(c *models.Config, volume afero.Fs, mem models.PhysMem, alloc *Allocator, fw platform.Firmware, m handoff.Machine) *Loader {
	if c.Logger == nil {
		c.Init()
	}
	return &Loader{
		Config:   c,
		Volume:   volume,
		Mem:      mem,
		Alloc:    alloc,
		Firmware: fw,
		Machine:  m,
		logger:   log.With(c.Logger, "component", "boot"),
	}
}

func (l *Loader) transition(next models.BootState) error {
	if !l.State.Next(next) {
		return errors.Errorf("illegal boot transition %s -> %s", l.State, next)
	}
	l.History = append(l.History, l.State)
	level.Info(l.logger).Log("msg", "state", "from", l.State, "to", next)
	l.State = next
	return nil
}

// Prepare runs every step before the handoff. On failure the image buffer
// and kernel pages are released and the loader is Aborted.
func (l *Loader) Prepare() (handoff.Payload, error) {
	if err := l.prepare(); err != nil {
		l.abort(err)
		return handoff.Payload{}, err
	}
	return l.Payload, nil
}

func (l *Loader) prepare() error {
	buf, err := l.readImage()
	if err != nil {
		return err
	}
	if err := l.transition(models.BufferAcquired); err != nil {
		return err
	}

	m, err := elf32.Locate(buf)
	if err != nil {
		return err
	}
	l.Map = m
	level.Debug(l.logger).Log("msg", "located headers", "programs", m.ProgCount, "sections", m.SectionCount, "strtab", m.StrIndex)
	if err := l.transition(models.HeaderLocated); err != nil {
		return err
	}

	if err := elf32.Check(m.Header); err != nil {
		return err
	}
	if m.Header.FileType() == elf.ET_DYN {
		if n, err := m.Relocations(); err == nil && n > 0 {
			level.Warn(l.logger).Log("msg", "relocations ignored, loading at link address", "count", n)
		}
	}
	if err := l.transition(models.Validated); err != nil {
		return err
	}

	if err := l.materialize(m); err != nil {
		return err
	}
	if err := l.transition(models.SegmentsMaterialized); err != nil {
		return err
	}

	memInfo, gfxInfo := l.collect()
	l.Payload = handoff.NewPayload(m.Header.Entry, memInfo, gfxInfo)
	return l.transition(models.SnapshotsCollected)
}

// readImage allocates the image buffer and fills it from the boot volume.
func (l *Loader) readImage() ([]byte, error) {
	size := l.Config.ImageSize()
	addr, err := l.Alloc.AllocateAny(models.Pages(size), "image buffer")
	if err != nil {
		return nil, err
	}
	l.buffer = &models.Segment{Start: addr, End: addr + size}

	f, err := l.Volume.Open(l.Config.KernelPath)
	if err != nil {
		return nil, models.WrapResource(err, "open kernel")
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return nil, models.WrapResource(err, "stat kernel")
	}
	if uint64(info.Size()) > size {
		return nil, models.Resourcef("read kernel", "%s is %d bytes, image buffer holds %d", l.Config.KernelPath, info.Size(), size)
	}
	n := uint64(info.Size())

	var buf []byte
	direct := false
	if dm, ok := l.Mem.(models.DirectMem); ok {
		if p, err := dm.MemSlice(addr, size); err == nil {
			buf, direct = p[:n:n], true
		}
	}
	if !direct {
		buf = make([]byte, n)
	}
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, models.WrapResource(err, "read kernel")
	}
	if !direct {
		if err := l.Mem.MemWrite(addr, buf); err != nil {
			return nil, models.WrapResource(err, "fill image buffer")
		}
	}
	level.Debug(l.logger).Log("msg", "read kernel", "path", l.Config.KernelPath, "size", n,
		"buffer", l.buffer.String(), "direct", direct)
	return buf, nil
}

func (l *Loader) materialize(m *elf32.Map) error {
	lo, hi, err := loader.Footprint(m)
	if err != nil {
		return err
	}
	if err := l.Alloc.AllocatePages(lo, (hi-lo)/models.PageSize, "kernel"); err != nil {
		return err
	}
	l.kernel = &models.Segment{Start: lo, End: hi}
	target := &loader.Target{Mem: l.Mem, Base: lo, Size: hi - lo, Logger: l.logger}
	return loader.Load(m, target)
}

// collect publishes each snapshot it can get. A missing snapshot is
// passed to the kernel as 0.
func (l *Loader) collect() (memInfo, gfxInfo uint32) {
	publish := func(name string, v interface{}) uint32 {
		addr, err := platform.Publish(l.Mem, l.Alloc, v)
		if err != nil {
			level.Warn(l.logger).Log("msg", "snapshot not published", "snapshot", name, "err", err)
			return 0
		}
		l.Alloc.Describe(uint64(addr), name+" info")
		return addr
	}
	if gfx, err := platform.CollectGraphics(l.Firmware); err != nil {
		level.Warn(l.logger).Log("msg", "snapshot unavailable", "err", err)
	} else {
		l.Graphics = gfx
		gfxInfo = publish("graphics", gfx)
	}
	if mem, err := platform.CollectMemory(l.Firmware, l.Mem); err != nil {
		level.Warn(l.logger).Log("msg", "snapshot unavailable", "err", err)
	} else {
		l.Memory = mem
		memInfo = publish("memory", mem)
	}
	return memInfo, gfxInfo
}

func (l *Loader) abort(cause error) {
	level.Error(l.logger).Log("msg", "boot aborted", "state", l.State, "err", cause)
	l.free(l.kernel)
	l.free(l.buffer)
	l.kernel, l.buffer = nil, nil
	if !l.State.Terminal() {
		l.transition(models.Aborted)
	}
}

func (l *Loader) free(s *models.Segment) {
	if s == nil {
		return
	}
	if err := l.Alloc.FreePages(s.Start, s.Size()/models.PageSize); err != nil {
		level.Warn(l.logger).Log("msg", "free failed", "range", s.String(), "err", err)
	}
}

// Handoff calls the kernel. It is the last thing the loader does: whatever
// comes back, the loader is finished.
func (l *Loader) Handoff() error {
	if err := l.transition(models.HandoffInvoked); err != nil {
		return err
	}
	level.Info(l.logger).Log("msg", "handoff", "payload", l.Payload.String())
	return handoff.Handoff(l.Machine, l.Payload)
}

// Boot prepares and hands off in one go.
func (l *Loader) Boot() error {
	if _, err := l.Prepare(); err != nil {
		return err
	}
	return l.Handoff()
}
