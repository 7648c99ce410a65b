// Package native hands off on real hardware. It only does anything in
// builds tagged baremetal on 386, where the loader runs identity mapped in
// 32-bit protected mode with physical memory directly addressable.
package native

import (
	"github.com/pkg/errors"
)

var ErrUnsupported = errors.New("native handoff needs a baremetal 386 build")
