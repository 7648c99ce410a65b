package cmd

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models"
)

// BootcornCmd is the flag handling and error reporting shared by every
// subcommand. Subcommands add their own flags in SetupFlags and do their
// work in RunCmd with the parsed positional args.
type BootcornCmd struct {
	Config *models.Config

	SetupFlags func() error
	RunCmd     func(args []string) error
	Teardown   func()

	// positional args shown in usage, e.g. "<volume-dir>"
	Usage   string
	MinArgs int

	Flags *flag.FlagSet
}

func NewBootcornCmd() *BootcornCmd {
	fs := flag.NewFlagSet("cli", flag.ExitOnError)
	return &BootcornCmd{Flags: fs}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func (c *BootcornCmd) PrintError(err error) {
	// print an error, and a stacktrace if available
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	tracer, ok := err.(stackTracer)
	if !ok {
		return
	}
	// parse full path and method name for each stack frame
	var frames [][]string
	for _, f := range tracer.StackTrace() {
		fullpath := ""
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)

		tmp := strings.SplitN(fmt.Sprintf("%+s", f), "\n", 3)
		if len(tmp) == 2 {
			pathsplit := strings.Split(tmp[0], "/")
			method = pathsplit[len(pathsplit)-1]
			fullpath = strings.TrimSpace(tmp[1])
		}
		frames = append(frames, []string{fullpath, fileline, method})
		if method == "main.main" {
			break
		}
	}
	widths := make([]int, 2)
	for _, f := range frames {
		for i := range widths {
			if len(f[i]) > widths[i] {
				widths[i] = len(f[i])
			}
		}
	}
	for _, f := range frames {
		for i := range widths {
			if widths[i] > 0 {
				pad := strings.Repeat(" ", widths[i]-len(f[i]))
				fmt.Fprintf(os.Stderr, "%s%s | ", f[i], pad)
			}
		}
		fmt.Fprintf(os.Stderr, "%s()\n", f[2])
	}
}

func (c *BootcornCmd) Run(argv []string) {
	fs := c.Flags
	verbose := fs.Bool("v", false, "verbose output")
	color := fs.Bool("color", false, "color status console and register dumps")
	disas := fs.Bool("disas", false, "disassemble at the kernel entry point")
	kernel := fs.String("kernel", models.KernelName, "kernel path on the boot volume")
	pages := fs.Int("pages", models.ImagePages, "image buffer size in 4KiB pages")
	machine := fs.String("machine", "", "machine description (default: configdir machine.yaml, then builtin)")
	limit := fs.Uint64("limit", 0, "stop the emulated kernel after this many instructions")
	timeout := fs.Duration("timeout", 0, "stop the emulated kernel after this long")
	nowait := fs.Bool("nowait", false, "don't wait for a key after a failed boot")
	outfile := fs.String("o", "", "redirect log output to file (default stderr)")
	cpuprofile := fs.String("cpuprofile", "", "write cpu profile to <file>")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] %s\n\nOptions:\n", argv[0], c.Usage)
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		models.PrintFlags(os.Stderr, flags)
	}
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			panic(err)
		}
	}
	fs.Parse(argv[1:])
	args := fs.Args()
	if len(args) < c.MinArgs {
		fs.Usage()
		os.Exit(1)
	}

	config := &models.Config{
		KernelPath: *kernel,
		ImagePages: *pages,
		Machine:    *machine,
		InsnLimit:  *limit,
		Timeout:    *timeout,
		Color:      *color,
		Disas:      *disas,
		Verbose:    *verbose,
		NoWait:     *nowait,
	}
	if *outfile != "" {
		out, err := os.OpenFile(*outfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			panic(err)
		}
		config.Output = out
	}
	c.Config = config.Init()

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			panic(err)
		}
		pprof.StartCPUProfile(f)
	}
	// won't run on os.Exit(), so it's manually run below
	teardown := func() {
		if *cpuprofile != "" {
			pprof.StopCPUProfile()
		}
		if c.Teardown != nil {
			c.Teardown()
		}
	}

	// the emulator must stay on one OS thread
	runtime.LockOSThread()
	start := time.Now()
	err := c.RunCmd(args)
	runtime.UnlockOSThread()
	teardown()
	if *verbose {
		fmt.Fprintf(os.Stderr, "[finished in %s]\n", time.Since(start).Round(time.Millisecond))
	}
	if err != nil {
		if e, ok := errors.Cause(err).(models.ExitStatus); ok {
			os.Exit(int(e))
		}
		c.PrintError(err)
		os.Exit(1)
	}
}
