package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/nsf/termbox-go"
	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models"
)

const (
	clearScreen = "\x1b[2J\x1b[H"

	LoadedMessage = "Kernel loaded successfully"
	FailedMessage = "Failed to load kernel"
)

// the firmware console colors: white on cyan
var statusColor = ansi.ColorCode("white+h:cyan")

// Console is the one line status surface shown before the handoff.
type Console struct {
	Out   io.Writer
	In    *os.File
	Color bool
	// never wait for a key, even on a terminal
	NoWait bool

	// replaced in tests
	waitKey func() error
}

func NewConsole(c *models.Config) *Console {
	return &Console{
		Out:    c.Output,
		In:     os.Stdin,
		Color:  c.Color,
		NoWait: c.NoWait,
	}
}

// Message is the status line for the result of preparing a boot.
func Message(err error) string {
	if err == nil {
		return LoadedMessage
	}
	return fmt.Sprintf("%s: %s", FailedMessage, err)
}

func (c *Console) Clear() {
	if c.Color {
		fmt.Fprint(c.Out, statusColor, clearScreen)
	}
}

// Status clears the screen and prints the status line for err.
func (c *Console) Status(err error) {
	c.Clear()
	line := Message(err)
	if c.Color {
		line += ansi.Reset
	}
	fmt.Fprintln(c.Out, line)
}

func (c *Console) interactive() bool {
	return !c.NoWait && c.In != nil && isatty.IsTerminal(c.In.Fd())
}

// Report shows the status line and, on failure at a terminal, waits for a
// key so the message can be read. It returns err unchanged.
func (c *Console) Report(err error) error {
	c.Status(err)
	if err != nil && c.interactive() {
		fmt.Fprintln(c.Out, "Press any key to exit.")
		wait := c.waitKey
		if wait == nil {
			wait = termboxWait
		}
		if werr := wait(); werr != nil {
			fmt.Fprintln(c.Out, "key wait failed:", werr)
		}
	}
	return err
}

func termboxWait() error {
	if err := termbox.Init(); err != nil {
		return errors.Wrap(err, "termbox.Init() failed")
	}
	defer termbox.Close()
	for {
		switch ev := termbox.PollEvent(); ev.Type {
		case termbox.EventKey:
			return nil
		case termbox.EventError:
			return ev.Err
		case termbox.EventInterrupt:
			return nil
		}
	}
}
