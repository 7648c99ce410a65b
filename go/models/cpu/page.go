package cpu

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
)

// Page is one mapping in a MemSim. Desc names the owner, like "kernel" or
// "image buffer", and shows up in memory map dumps.
type Page struct {
	Addr uint64
	Size uint64
	Prot int
	Data []byte

	Desc string
}

func protString(prot int) string {
	b := []byte("---")
	for i, bit := range []int{PROT_READ, PROT_WRITE, PROT_EXEC} {
		if prot&bit != 0 {
			b[i] = "rwx"[i]
		}
	}
	return string(b)
}

func (p *Page) End() uint64 { return p.Addr + p.Size }

func (p *Page) String() string {
	s := fmt.Sprintf("%#x-%#x %s %s", p.Addr, p.End(), protString(p.Prot), humanize.IBytes(p.Size))
	if p.Desc != "" {
		s += " [" + p.Desc + "]"
	}
	return s
}

func (p *Page) Contains(addr uint64) bool {
	return addr >= p.Addr && addr < p.End()
}

// Intersect clips [addr, addr+size) to the page. ok is false when nothing
// is left.
func (p *Page) Intersect(addr, size uint64) (start, n uint64, ok bool) {
	start = max(p.Addr, addr)
	end := min(p.End(), addr+size)
	if end <= start {
		return start, 0, false
	}
	return start, end - start, true
}

func (p *Page) slice(addr, size uint64) *Page {
	o := addr - p.Addr
	return &Page{Addr: addr, Size: size, Prot: p.Prot, Data: p.Data[o : o+size], Desc: p.Desc}
}

// Split narrows the page to [addr, addr+size) and returns the pieces cut off
// below and above it, nil when there are none. A range reaching past the
// page grows it with zeroes.
func (p *Page) Split(addr, size uint64) (left, right *Page) {
	end := addr + size
	if end < p.End() {
		right = p.slice(end, p.End()-end)
		p.Data = p.Data[:end-p.Addr]
	}
	if addr > p.Addr {
		left = p.slice(p.Addr, addr-p.Addr)
		p.Data = p.Data[addr-p.Addr:]
	}
	if addr < p.Addr {
		p.Data = append(make([]byte, p.Addr-addr), p.Data...)
	}
	if end > p.End() {
		p.Data = append(p.Data, make([]byte, end-p.End())...)
	}
	p.Addr, p.Size = addr, size
	return left, right
}

// Pages is kept sorted by address and never overlaps.
type Pages []*Page

func (p Pages) Len() int           { return len(p) }
func (p Pages) Swap(i, j int)      { p[i], p[j] = p[j], p[i] }
func (p Pages) Less(i, j int) bool { return p[i].Addr < p[j].Addr }

func (p Pages) String() string {
	s := make([]string, len(p))
	for i, v := range p {
		s[i] = v.String()
	}
	return strings.Join(s, "\n")
}

// bsearch returns the index of the page containing addr, or -1.
func (p Pages) bsearch(addr uint64) int {
	i := sort.Search(len(p), func(i int) bool { return p[i].End() > addr })
	if i < len(p) && p[i].Contains(addr) {
		return i
	}
	return -1
}

func (p Pages) Find(addr uint64) *Page {
	if i := p.bsearch(addr); i >= 0 {
		return p[i]
	}
	return nil
}
