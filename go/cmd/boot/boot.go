package boot

import (
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/lunixbochs/bootcorn/go/arch/x86"
	"github.com/lunixbochs/bootcorn/go/boot"
	"github.com/lunixbochs/bootcorn/go/cmd"
	"github.com/lunixbochs/bootcorn/go/handoff"
	"github.com/lunixbochs/bootcorn/go/models"
	"github.com/lunixbochs/bootcorn/go/native"
	"github.com/lunixbochs/bootcorn/go/platform"
	"github.com/lunixbochs/bootcorn/go/ui"
)

// entry disassembly length
const disasSize = 64

func summary(w io.Writer, l *boot.Loader) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"range", "size", "use"})
	for _, a := range l.Alloc.Allocations() {
		use := a.Desc
		if a.Reserved {
			use += " (reserved)"
		}
		table.Append([]string{a.Segment.String(), humanize.IBytes(a.Size()), use})
	}
	table.Render()
	if l.Memory != nil {
		fmt.Fprintf(w, "memory: %s in use of %s, %s\n", humanize.IBytes(l.Alloc.InUse()),
			humanize.IBytes(uint64(l.Memory.MemorySizeMB)*platform.MiB), l.Memory)
	}
	if l.Graphics != nil {
		fmt.Fprintf(w, "graphics: %s\n", l.Graphics)
	}
	fmt.Fprintf(w, "handoff: %s\n", l.Payload)
}

// backend is the memory and CPU the kernel is handed to.
type backend struct {
	mem     models.PhysMem
	machine handoff.Machine
	alloc   *boot.Allocator
	// nil when registers can't be read back after the handoff
	regs  models.RegReader
	close func() error
}

// emulated installs the machine description into a fresh unicorn CPU.
func emulated(c *models.Config, machine *platform.Machine) (*backend, error) {
	cpu, err := x86.Arch.Cpu.New()
	if err != nil {
		return nil, err
	}
	mapped, err := machine.Install(cpu)
	if err != nil {
		cpu.Close()
		return nil, err
	}
	alloc := boot.NewAllocator(cpu, machine.Usable())
	for _, s := range mapped {
		alloc.Reserve(s, "firmware")
	}
	m := x86.NewMachine(cpu, c.Logger)
	m.InsnLimit, m.Timeout = c.InsnLimit, c.Timeout
	if err := m.Reserve(alloc); err != nil {
		cpu.Close()
		return nil, err
	}
	alloc.Describe(m.Sentinel, "return sentinel")
	alloc.Describe(m.StackTop-x86.StackPages*models.PageSize, "handoff stack")
	return &backend{mem: cpu, machine: m, alloc: alloc, regs: cpu, close: cpu.Close}, nil
}

// baremetal hands off on the CPU we are running on. The machine description
// only supplies the usable ranges, firmware tables are already in memory.
func baremetal(c *models.Config, machine *platform.Machine) (*backend, error) {
	if !native.Supported {
		return nil, errors.WithStack(native.ErrUnsupported)
	}
	m, err := native.New()
	if err != nil {
		return nil, err
	}
	mem := native.NewMem()
	return &backend{
		mem:     mem,
		machine: m,
		alloc:   boot.NewAllocator(mem, machine.Usable()),
		close:   func() error { return nil },
	}, nil
}

func run(c *models.Config, root string, prepareOnly, onHardware bool) error {
	c.Root = root
	configFs := afero.NewOsFs()
	machine, err := platform.FindMachine(configFs, c.Machine)
	if err != nil {
		return err
	}
	newBackend := emulated
	if onHardware {
		newBackend = baremetal
	}
	b, err := newBackend(c, machine)
	if err != nil {
		return err
	}
	defer b.close()

	volume := afero.NewBasePathFs(afero.NewOsFs(), root)
	loader := boot.NewLoader(c, volume, b.mem, b.alloc, machine, b.machine)
	console := ui.NewConsole(c)
	if _, err := loader.Prepare(); console.Report(err) != nil {
		return err
	}
	if c.Verbose {
		summary(os.Stderr, loader)
	}
	if c.Disas {
		entry := uint64(loader.Payload.Entry)
		mem, err := b.mem.MemRead(entry, disasSize)
		if err != nil {
			return errors.Wrap(err, "reading entry point")
		}
		dis, err := models.Disas(mem, entry, x86.Arch)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "[entry @ %#x]\n%s\n", entry, dis)
	}
	if prepareOnly {
		return nil
	}
	if b.regs == nil {
		return loader.Handoff()
	}

	status := &models.StatusDiff{Arch: x86.Arch, Regs: b.regs}
	if _, err := status.Changes(false); err != nil {
		return err
	}
	err = loader.Handoff()
	if c.Verbose {
		if changes, err := status.Changes(false); err == nil {
			fmt.Fprintf(os.Stderr, "[registers]\n%s", changes.String(c.Color))
		}
	}
	return err
}

func Main(args []string) {
	c := cmd.NewBootcornCmd()
	c.Usage = "<volume-dir>"
	c.MinArgs = 1
	var prepareOnly, onHardware *bool
	c.SetupFlags = func() error {
		prepareOnly = c.Flags.Bool("prepare", false, "load and collect snapshots, but don't hand off")
		onHardware = c.Flags.Bool("native", false, "hand off on this CPU (baremetal 386 builds only)")
		return nil
	}
	c.RunCmd = func(args []string) error {
		return run(c.Config, args[0], *prepareOnly, *onHardware)
	}
	c.Run(args)
}

func init() { cmd.Register("boot", "load kernel.o from a volume directory and hand off to it", Main) }
