package boot

import (
	"fmt"
	"sort"

	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/models/cpu"
)

const (
	// AllocateAnyPages never hands out the zero page, so 0 can mean absent
	DefaultFloor = models.PageSize
	limit32      = 1 << 32
)

type Allocation struct {
	models.Segment
	Desc string
	// reserved ranges were mapped by someone else and are never unmapped
	Reserved bool
}

func (a *Allocation) String() string {
	return fmt.Sprintf("%s %s", a.Segment, a.Desc)
}

// Allocator hands out page ranges of physical memory, mapping them as it
// goes. Ranges come from Usable when it is set, else from anywhere in the
// 32-bit address space above Floor.
type Allocator struct {
	Mem    models.PhysMem
	Usable []models.Segment
	Floor  uint64

	used []*Allocation
}

func NewAllocator(mem models.PhysMem, usable []models.Segment) *Allocator {
	usable = append([]models.Segment(nil), usable...)
	sort.Slice(usable, func(i, j int) bool { return usable[i].Start < usable[j].Start })
	return &Allocator{Mem: mem, Usable: usable, Floor: DefaultFloor}
}

func (a *Allocator) usable() []models.Segment {
	if len(a.Usable) == 0 {
		return []models.Segment{{Start: a.Floor, End: limit32}}
	}
	return a.Usable
}

func (a *Allocator) overlapping(s *models.Segment) *Allocation {
	for _, u := range a.used {
		if u.Overlaps(s) {
			return u
		}
	}
	return nil
}

func (a *Allocator) insert(alloc *Allocation) {
	a.used = append(a.used, alloc)
	sort.Slice(a.used, func(i, j int) bool { return a.used[i].Start < a.used[j].Start })
}

// Reserve records a range that is already mapped so it is never handed out.
func (a *Allocator) Reserve(s models.Segment, desc string) {
	a.insert(&Allocation{Segment: s, Desc: desc, Reserved: true})
}

func (a *Allocator) claim(s models.Segment, desc string) error {
	if err := a.Mem.MemMapProt(s.Start, s.Size(), cpu.PROT_ALL); err != nil {
		return models.WrapResource(err, "allocate "+s.String())
	}
	a.insert(&Allocation{Segment: s, Desc: desc})
	return nil
}

// AllocatePages allocates n pages at addr.
func (a *Allocator) AllocatePages(addr, n uint64, desc string) error {
	if addr&(models.PageSize-1) != 0 {
		return models.Resourcef("allocate", "address %#x is not page aligned", addr)
	}
	if n == 0 {
		return models.Resourcef("allocate", "zero pages at %#x", addr)
	}
	s := models.Segment{Start: addr, End: addr + n*models.PageSize}
	if s.End <= s.Start || s.End > limit32 {
		return models.Resourcef("allocate", "%d pages at %#x overflow 32-bit memory", n, addr)
	}
	inside := false
	for _, u := range a.usable() {
		if u.Contains(&s) {
			inside = true
			break
		}
	}
	if !inside {
		return models.Resourcef("allocate", "%s is not usable memory", s)
	}
	if o := a.overlapping(&s); o != nil {
		return models.Resourcef("allocate", "%s overlaps %s", s, o)
	}
	return a.claim(s, desc)
}

// AllocateAnyPages allocates n pages from the highest free range that fits.
func (a *Allocator) AllocateAnyPages(n uint64) (uint64, error) {
	return a.AllocateAny(n, "")
}

func (a *Allocator) AllocateAny(n uint64, desc string) (uint64, error) {
	if n == 0 {
		return 0, models.Resourcef("allocate", "zero pages")
	}
	size := n * models.PageSize
	usable := a.usable()
	for i := len(usable) - 1; i >= 0; i-- {
		u := usable[i]
		start := models.AlignUp(max(u.Start, a.Floor))
		end := models.AlignDown(min(u.End, limit32))
		for end > start && end-start >= size {
			s := models.Segment{Start: end - size, End: end}
			if o := a.overlapping(&s); o != nil {
				end = models.AlignDown(o.Start)
				continue
			}
			if err := a.claim(s, desc); err != nil {
				return 0, err
			}
			return s.Start, nil
		}
	}
	return 0, models.Resourcef("allocate", "no room for %d pages", n)
}

// FreePages releases an allocation made at addr of exactly n pages.
func (a *Allocator) FreePages(addr, n uint64) error {
	size := n * models.PageSize
	for i, u := range a.used {
		if u.Start == addr && u.Size() == size && !u.Reserved {
			if err := a.Mem.MemUnmap(addr, size); err != nil {
				return models.WrapResource(err, "free "+u.String())
			}
			a.used = append(a.used[:i], a.used[i+1:]...)
			return nil
		}
	}
	return models.Resourcef("free", "no allocation of %d pages at %#x", n, addr)
}

// Allocations lists every allocation and reservation in address order.
func (a *Allocator) Allocations() []Allocation {
	out := make([]Allocation, len(a.used))
	for i, u := range a.used {
		out[i] = *u
	}
	return out
}

// Describe labels the allocation starting at addr.
func (a *Allocator) Describe(addr uint64, desc string) {
	for _, u := range a.used {
		if u.Start == addr {
			u.Desc = desc
		}
	}
}

// InUse is the total size of every allocation, not counting reservations.
func (a *Allocator) InUse() uint64 {
	var n uint64
	for _, u := range a.used {
		if !u.Reserved {
			n += u.Size()
		}
	}
	return n
}
