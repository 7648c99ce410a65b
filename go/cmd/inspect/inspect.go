package inspect

import (
	"debug/elf"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/lunixbochs/bootcorn/go/arch/x86"
	"github.com/lunixbochs/bootcorn/go/boot"
	"github.com/lunixbochs/bootcorn/go/cmd"
	"github.com/lunixbochs/bootcorn/go/elf32"
	"github.com/lunixbochs/bootcorn/go/loader"
	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/models/cpu"
)

const (
	disasSize = 64
	dumpSize  = 64
)

func hex(v uint32) string { return fmt.Sprintf("%#x", v) }

func progTable(w io.Writer, m *elf32.Map) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "type", "offset", "vaddr", "filesz", "memsz", "flags"})
	for i := range m.Progs {
		p := &m.Progs[i]
		table.Append([]string{
			fmt.Sprint(i), p.ProgType().String(), hex(p.Off), hex(p.Vaddr),
			humanize.IBytes(uint64(p.Filesz)), humanize.IBytes(uint64(p.Memsz)),
			elf.ProgFlag(p.Flags).String(),
		})
	}
	table.Render()
}

func sectionTable(w io.Writer, m *elf32.Map) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "name", "type", "addr", "offset", "size", "flags"})
	for i := range m.Sections {
		s := &m.Sections[i]
		table.Append([]string{
			fmt.Sprint(i), m.SectionName(i), s.SectionType().String(), hex(s.Addr), hex(s.Off),
			humanize.IBytes(uint64(s.Size)), elf.SectionFlag(s.Flags).String(),
		})
	}
	table.Render()
}

// materialize loads the image into a scratch address space the way the boot
// loader would and returns it with the range it loaded into.
func materialize(c *models.Config, m *elf32.Map) (*cpu.Mem, models.Segment, error) {
	lo, hi, err := loader.Footprint(m)
	if err != nil {
		return nil, models.Segment{}, err
	}
	span := models.Segment{Start: lo, End: hi}
	mem := cpu.NewMem(32)
	alloc := boot.NewAllocator(mem, nil)
	alloc.Floor = 0
	if err := alloc.AllocatePages(lo, (hi-lo)/models.PageSize, "kernel"); err != nil {
		return nil, span, err
	}
	fmt.Printf("footprint: %s (%s)\n", span, humanize.IBytes(span.Size()))
	return mem, span, loader.Load(m, &loader.Target{Mem: mem, Base: lo, Size: hi - lo, Logger: c.Logger})
}

func inspect(c *models.Config, fs afero.Fs, path string) error {
	buf, err := afero.ReadFile(fs, path)
	if err != nil {
		return err
	}
	m, err := elf32.Locate(buf)
	if err != nil {
		return err
	}
	h := m.Header
	fmt.Printf("%s: %s %s %s %s entry %#x\n", path, h.Class(), h.Data(), h.Arch(), h.FileType(), h.Entry)
	fmt.Printf("programs: %s, sections: %s, string table: %s\n", m.ProgCount, m.SectionCount, m.StrIndex)
	if len(m.Progs) > 0 {
		progTable(os.Stdout, m)
	}
	if len(m.Sections) > 0 {
		sectionTable(os.Stdout, m)
	}
	if n, err := m.Relocations(); err != nil {
		fmt.Println("relocations:", err)
	} else if n > 0 {
		fmt.Printf("relocations: %d (not applied)\n", n)
	}

	if err := elf32.Check(h); err != nil {
		fmt.Println("not loadable:")
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, reason := range merr.Errors {
				fmt.Println("  -", reason)
			}
		} else {
			fmt.Println("  -", err)
		}
		return nil
	}
	fmt.Println("loadable")

	mem, span, err := materialize(c, m)
	if err != nil {
		return err
	}
	if !c.Disas {
		return nil
	}
	entry := uint64(h.Entry)
	if entry < span.Start || entry >= span.End {
		fmt.Printf("entry %#x is outside the loaded image\n", entry)
		return nil
	}
	code, err := mem.MemRead(entry, min(disasSize, span.End-entry))
	if err != nil {
		return err
	}
	dis, err := models.Disas(code, uint64(h.Entry), x86.Arch)
	if err != nil {
		return err
	}
	fmt.Printf("[entry @ %#x]\n%s\n", h.Entry, dis)
	return dumpData(os.Stdout, mem, m)
}

// dumpData hex dumps the start of every loaded segment that isn't code.
func dumpData(w io.Writer, mem *cpu.Mem, m *elf32.Map) error {
	for _, p := range m.Loadable() {
		if elf.ProgFlag(p.Flags)&elf.PF_X != 0 || p.Memsz == 0 {
			continue
		}
		data, err := mem.MemRead(uint64(p.Vaddr), min(dumpSize, uint64(p.Memsz)))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "[data @ %#x]\n", p.Vaddr)
		for _, line := range models.HexDump(uint64(p.Vaddr), data, 32) {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func Main(args []string) {
	c := cmd.NewBootcornCmd()
	c.Usage = "<image>"
	c.MinArgs = 1
	c.RunCmd = func(args []string) error {
		return inspect(c.Config, afero.NewOsFs(), args[0])
	}
	c.Run(args)
}

func init() { cmd.Register("inspect", "show an image's headers and how it would load", Main) }
