package loader

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/lunixbochs/bootcorn/go/elf32"
	"github.com/lunixbochs/bootcorn/go/models"
)

// Target is where an image is materialized. Segment and section addresses
// are offset by Bias, and every write must land inside [Base, Base+Size).
type Target struct {
	Mem  models.PhysMem
	Bias uint64
	Base uint64
	Size uint64

	Logger log.Logger
}

func (t *Target) Contains(addr, size uint64) bool {
	end := addr + size
	return end >= addr && addr >= t.Base && end <= t.Base+t.Size
}

func (t *Target) logger() log.Logger {
	if t.Logger == nil {
		return log.NewNopLogger()
	}
	return t.Logger
}

// write is one planned copy followed by a zero fill.
type write struct {
	desc string
	addr uint64
	data []byte
	zero uint64
}

func (w *write) size() uint64 {
	return uint64(len(w.data)) + w.zero
}

func (w *write) String() string {
	return fmt.Sprintf("%s %#x-%#x", w.desc, w.addr, w.addr+w.size())
}

// plan lists every write Load performs, in order.
func plan(m *elf32.Map, bias uint64) ([]*write, error) {
	if m == nil || m.Header == nil {
		return nil, models.Formatf("no image header")
	}
	var writes []*write
	for i := range m.Progs {
		p := &m.Progs[i]
		if !p.Loadable() {
			continue
		}
		data, err := m.ProgData(p)
		if err != nil {
			return nil, err
		}
		var zero uint64
		if p.Memsz > p.Filesz {
			zero = uint64(p.Memsz - p.Filesz)
		}
		writes = append(writes, &write{
			desc: fmt.Sprintf("segment %d", i),
			addr: bias + uint64(p.Vaddr),
			data: data,
			zero: zero,
		})
	}
	for i := range m.Sections {
		s := &m.Sections[i]
		if !s.NoBits() || s.Size == 0 {
			continue
		}
		desc := fmt.Sprintf("section %d", i)
		if name := m.SectionName(i); name != "" {
			desc = name
		}
		writes = append(writes, &write{desc: desc, addr: bias + uint64(s.Addr), zero: uint64(s.Size)})
	}
	return writes, nil
}

// Load copies every PT_LOAD segment to its address and zero fills the rest
// of its memory size, then zeroes every non-empty NOBITS section. Nothing is
// written unless every write fits the target.
func Load(m *elf32.Map, t *Target) error {
	writes, err := plan(m, t.Bias)
	if err != nil {
		return err
	}
	for _, w := range writes {
		if !t.Contains(w.addr, w.size()) {
			return models.Resourcef("load", "%s outside destination %#x-%#x", w, t.Base, t.Base+t.Size)
		}
	}
	logger := t.logger()
	for _, w := range writes {
		if len(w.data) > 0 {
			dir, err := copyTo(t.Mem, w.addr, w.data)
			if err != nil {
				return models.WrapResource(err, "load "+w.desc)
			}
			level.Debug(logger).Log("msg", "copied", "what", w.desc, "addr", fmt.Sprintf("%#x", w.addr), "size", len(w.data), "direction", dir)
		}
		if w.zero > 0 {
			addr := w.addr + uint64(len(w.data))
			if err := Zero(t.Mem, addr, w.zero); err != nil {
				return models.WrapResource(err, "zero "+w.desc)
			}
			level.Debug(logger).Log("msg", "zeroed", "what", w.desc, "addr", fmt.Sprintf("%#x", addr), "size", w.zero)
		}
	}
	return nil
}

func copyTo(mem models.PhysMem, addr uint64, data []byte) (Direction, error) {
	if dm, ok := mem.(models.DirectMem); ok {
		if dst, err := dm.MemSlice(addr, uint64(len(data))); err == nil {
			return Move(dst, data), nil
		}
	}
	return Forward, mem.MemWrite(addr, data)
}

var zeroPage [models.PageSize]byte

// Zero clears size bytes at addr.
func Zero(mem models.PhysMem, addr, size uint64) error {
	if dm, ok := mem.(models.DirectMem); ok {
		if dst, err := dm.MemSlice(addr, size); err == nil {
			clear(dst)
			return nil
		}
	}
	for size > 0 {
		n := size
		if n > models.PageSize {
			n = models.PageSize
		}
		if err := mem.MemWrite(addr, zeroPage[:n]); err != nil {
			return err
		}
		addr += n
		size -= n
	}
	return nil
}
