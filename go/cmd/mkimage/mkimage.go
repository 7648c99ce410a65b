package mkimage

import (
	"debug/elf"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/lunixbochs/bootcorn/go/arch/x86"
	"github.com/lunixbochs/bootcorn/go/cmd"
	"github.com/lunixbochs/bootcorn/go/elf32"
	"github.com/lunixbochs/bootcorn/go/models"
)

type options struct {
	out      string
	base     uint64
	bss      uint64
	dyn      bool
	extended bool
}

// build assembles src at base and wraps it in a single segment image. The
// bss, if any, follows the code inside the same segment.
func build(src string, o *options) ([]byte, error) {
	if o.base > 0xffffffff || o.base&(models.PageSize-1) != 0 {
		return nil, errors.Errorf("base %#x must be a page aligned 32-bit address", o.base)
	}
	code, err := x86.Arch.Asm.Asm(src, o.base)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, errors.New("assembled no code")
	}
	b := elf32.NewBuilder(uint32(o.base))
	b.Extended = o.extended
	if o.dyn {
		b.Type = elf.ET_DYN
	}
	end := o.base + uint64(len(code))
	b.AddSegment(uint32(o.base), code, uint32(uint64(len(code))+o.bss), elf.PF_R|elf.PF_W|elf.PF_X)
	if o.bss > 0 {
		if end+o.bss > 1<<32 {
			return nil, errors.Errorf("bss of %#x bytes runs past 4GiB", o.bss)
		}
		b.AddBss(uint32(end), uint32(o.bss))
	}
	return b.Bytes()
}

func mkimage(fs afero.Fs, path string, o *options) error {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return err
	}
	image, err := build(string(src), o)
	if err != nil {
		return errors.Wrap(err, path)
	}
	if err := afero.WriteFile(fs, o.out, image, 0644); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s), entry %#x\n", o.out, humanize.IBytes(uint64(len(image))), o.base)
	return nil
}

func Main(args []string) {
	c := cmd.NewBootcornCmd()
	c.Usage = "<file.s>"
	c.MinArgs = 1
	o := &options{}
	c.SetupFlags = func() error {
		fs := c.Flags
		fs.StringVar(&o.out, "out", models.KernelName, "output image")
		fs.Uint64Var(&o.base, "base", 0x100000, "load and entry address")
		fs.Uint64Var(&o.bss, "bss", 0, "bss size in bytes")
		fs.BoolVar(&o.dyn, "dyn", false, "write an ET_DYN image")
		fs.BoolVar(&o.extended, "extended", false, "store header counts in section 0")
		return nil
	}
	c.RunCmd = func(args []string) error {
		return mkimage(afero.NewOsFs(), args[0], o)
	}
	c.Run(args)
}

func init() { cmd.Register("mkimage", "assemble x86 source into a kernel image", Main) }
