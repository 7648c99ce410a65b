package models

import (
	"fmt"
	"strings"

	"github.com/mgutz/ansi"
)

const statusCols = 4

var changedColor = ansi.ColorFunc("default+bu:default")

// Change is one register as of the latest dump.
type Change struct {
	RegVal
	Old uint64
}

func (c *Change) Changed() bool {
	return c.Old != c.Val
}

// String renders the register as "name 0x...". Changed registers are
// marked with '+', or highlighted when color is set.
func (c *Change) String(digits int, color bool) string {
	val := fmt.Sprintf("0x%0*x", digits, c.Val)
	name := fmt.Sprintf("%6s", c.Name)
	switch {
	case !c.Changed():
		return " " + name + " " + val
	case color:
		return " " + changedColor(name) + " " + changedColor(val)
	default:
		return "+" + name + " " + val
	}
}

type Changes struct {
	Digits  int
	Changes []*Change
}

func (cs *Changes) Changed() []*Change {
	var out []*Change
	for _, c := range cs.Changes {
		if c.Changed() {
			out = append(out, c)
		}
	}
	return out
}

// String lays the registers out column-major, four per row.
func (cs *Changes) String(color bool) string {
	n := len(cs.Changes)
	rows := (n + statusCols - 1) / statusCols
	var b strings.Builder
	for row := 0; row < rows; row++ {
		var line []string
		for col := 0; col < statusCols; col++ {
			if i := col*rows + row; i < n {
				line = append(line, cs.Changes[i].String(cs.Digits, color))
			}
		}
		b.WriteString(strings.Join(line, " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// StatusDiff dumps registers and remembers them, so each dump can show what
// moved since the one before.
type StatusDiff struct {
	Arch *Arch
	Regs RegReader
	last map[int]uint64
}

// Changes dumps every register, or only the default registers and the ones
// that changed when onlyChanged is set.
func (s *StatusDiff) Changes(onlyChanged bool) (*Changes, error) {
	regs, err := s.Arch.RegDump(s.Regs)
	if err != nil {
		return nil, err
	}
	cs := &Changes{Digits: s.Arch.Bits / 4}
	last := make(map[int]uint64, len(regs))
	for _, reg := range regs {
		c := &Change{RegVal: reg, Old: reg.Val}
		if s.last != nil {
			c.Old = s.last[reg.Enum]
		}
		last[reg.Enum] = reg.Val
		if !onlyChanged || reg.Default || c.Changed() {
			cs.Changes = append(cs.Changes, c)
		}
	}
	s.last = last
	return cs, nil
}
