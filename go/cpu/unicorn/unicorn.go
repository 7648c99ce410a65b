package unicorn

import (
	"time"

	"github.com/pkg/errors"
	uc "github.com/unicorn-engine/unicorn/bindings/go/unicorn"

	"github.com/lunixbochs/bootcorn/go/models/cpu"
)

type Builder struct {
	Arch, Mode int
}

func (b *Builder) New() (cpu.Cpu, error) {
	u, err := uc.NewUnicorn(b.Arch, b.Mode)
	if err != nil {
		return nil, errors.Wrap(err, "NewUnicorn() failed")
	}
	return &UnicornCpu{Unicorn: u}, nil
}

// UnicornCpu is physical memory and a CPU in one. Mappings are tracked so
// the loader can list what the kernel was given.
type UnicornCpu struct {
	uc.Unicorn
	maps cpu.Pages
}

func (u *UnicornCpu) Backend() interface{} {
	return u.Unicorn
}

func (u *UnicornCpu) MemMapProt(addr, size uint64, prot int) error {
	if err := u.Unicorn.MemMapProt(addr, size, prot); err != nil {
		return errors.Wrapf(err, "uc.MemMapProt(%#x, %#x) failed", addr, size)
	}
	u.maps = append(u.maps, &cpu.Page{Addr: addr, Size: size, Prot: prot})
	return nil
}

func (u *UnicornCpu) MemProt(addr, size uint64, prot int) error {
	return u.Unicorn.MemProtect(addr, size, prot)
}

func (u *UnicornCpu) MemUnmap(addr, size uint64) error {
	if err := u.Unicorn.MemUnmap(addr, size); err != nil {
		return errors.Wrapf(err, "uc.MemUnmap(%#x, %#x) failed", addr, size)
	}
	kept := u.maps[:0]
	for _, p := range u.maps {
		if p.Addr == addr && p.Size == size {
			continue
		}
		kept = append(kept, p)
	}
	u.maps = kept
	return nil
}

func (u *UnicornCpu) Maps() cpu.Pages {
	return u.maps
}

// StartLimit runs like Start, stopping after count instructions or timeout
// when either is non-zero.
func (u *UnicornCpu) StartLimit(begin, until, count uint64, timeout time.Duration) error {
	if count == 0 && timeout == 0 {
		return u.Unicorn.Start(begin, until)
	}
	opts := &uc.UcOptions{Count: count, Timeout: uint64(timeout / time.Microsecond)}
	return u.Unicorn.StartWithOptions(begin, until, opts)
}
