//go:build !(baremetal && 386)

package native

import (
	"github.com/lunixbochs/bootcorn/go/handoff"
	"github.com/lunixbochs/bootcorn/go/models"
)

const Supported = false

func New() (handoff.Machine, error) {
	return nil, ErrUnsupported
}

func NewMem() models.DirectMem {
	return nil
}
