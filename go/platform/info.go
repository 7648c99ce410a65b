// Package platform collects the snapshots a kernel receives at handoff and
// models the firmware they come from.
package platform

import (
	"bytes"
	"fmt"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"
)

// GraphicsInfo is the framebuffer snapshot passed in EDX.
type GraphicsInfo struct {
	FrameBufferBase   uint32
	FrameBufferSize   uint32
	Width             uint32
	Height            uint32
	PixelFormat       uint32
	PixelsPerScanLine uint32
	RedMask           uint32
	GreenMask         uint32
	BlueMask          uint32
}

func (g *GraphicsInfo) String() string {
	return fmt.Sprintf("%dx%d %s fb=%#x+%#x stride=%d", g.Width, g.Height,
		PixelFormat(g.PixelFormat), g.FrameBufferBase, g.FrameBufferSize, g.PixelsPerScanLine)
}

// MemoryInfo is the memory snapshot passed in ECX.
type MemoryInfo struct {
	MemorySizeMB uint32
	RSDP         uint32
}

func (m *MemoryInfo) String() string {
	return fmt.Sprintf("%dMiB rsdp=%#x", m.MemorySizeMB, m.RSDP)
}

func pack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := struc.PackWithOrder(&buf, v, order); err != nil {
		return nil, errors.Wrap(err, "struc.Pack() failed")
	}
	return buf.Bytes(), nil
}

func unpack(p []byte, v interface{}) error {
	return errors.Wrap(struc.UnpackWithOrder(bytes.NewReader(p), v, order), "struc.Unpack() failed")
}
