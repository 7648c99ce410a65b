package models

import (
	"io"
	"os"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

const (
	PageSize = 0x1000
	// default image buffer size in pages, matches the firmware loader
	ImagePages = 64
	// kernel file name looked up on the boot volume
	KernelName = "kernel.o"
)

type Config struct {
	// boot volume directory and kernel path relative to it
	Root       string
	KernelPath string
	ImagePages int

	// machine description file, empty means configdir lookup then builtin
	Machine string

	// emulator limits, zero means unlimited
	InsnLimit uint64
	Timeout   time.Duration

	Color   bool
	Disas   bool
	Verbose bool
	// skip the key wait on failure
	NoWait bool

	Output io.WriteCloser
	Logger log.Logger
}

// Init fills defaults and builds the logger from Output and Verbose.
func (c *Config) Init() *Config {
	if c.KernelPath == "" {
		c.KernelPath = KernelName
	}
	if c.ImagePages <= 0 {
		c.ImagePages = ImagePages
	}
	if c.Output == nil {
		c.Output = os.Stderr
	}
	if c.Logger == nil {
		logger := log.NewLogfmtLogger(log.NewSyncWriter(c.Output))
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		if c.Verbose {
			logger = level.NewFilter(logger, level.AllowDebug())
		} else {
			logger = level.NewFilter(logger, level.AllowInfo())
		}
		c.Logger = logger
	}
	return c
}

func (c *Config) ImageSize() uint64 {
	return uint64(c.ImagePages) * PageSize
}
