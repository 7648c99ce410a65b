package elf32

import (
	"debug/elf"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/lunixbochs/bootcorn/go/models"
)

// IsSupported reports whether the image targets 32-bit little endian i386.
func IsSupported(h *Header) bool {
	return h.Arch() == elf.EM_386 &&
		h.Class() == elf.ELFCLASS32 &&
		h.Data() == elf.ELFDATA2LSB &&
		h.Version >= uint32(elf.EV_CURRENT)
}

// IsExecutable accepts ET_EXEC and ET_DYN. ET_DYN images are loaded at
// their link addresses with no relocation.
func IsExecutable(h *Header) bool {
	t := h.FileType()
	return t == elf.ET_EXEC || t == elf.ET_DYN
}

// Check returns nil for a loadable image, else an UnsupportedError listing
// every field that disqualified it.
func Check(h *Header) error {
	var result *multierror.Error
	if h.Arch() != elf.EM_386 {
		result = multierror.Append(result, errors.Errorf("machine %s, want %s", h.Arch(), elf.EM_386))
	}
	if h.Class() != elf.ELFCLASS32 {
		result = multierror.Append(result, errors.Errorf("class %s, want %s", h.Class(), elf.ELFCLASS32))
	}
	if h.Data() != elf.ELFDATA2LSB {
		result = multierror.Append(result, errors.Errorf("encoding %s, want %s", h.Data(), elf.ELFDATA2LSB))
	}
	if h.Version < uint32(elf.EV_CURRENT) {
		result = multierror.Append(result, errors.Errorf("version %d, want at least %d", h.Version, elf.EV_CURRENT))
	}
	if !IsExecutable(h) {
		result = multierror.Append(result, errors.Errorf("file type %s is not executable", h.FileType()))
	}
	if result == nil {
		return nil
	}
	return errors.WithStack(&models.UnsupportedError{Err: result})
}
