package models

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Disas formats instructions one per line as "addr: bytes mnemonic operands",
// right aligning the bytes column to pad bytes or the longest instruction.
func Disas(mem []byte, addr uint64, arch *Arch, pad ...int) (string, error) {
	if len(mem) == 0 {
		return "", nil
	}
	dis, err := arch.Dis.Dis(mem, addr)
	if err != nil {
		return "", err
	}
	width := 0
	if len(pad) > 0 {
		width = pad[0]
	}
	for _, ins := range dis {
		if n := len(ins.Bytes()); n > width {
			width = n
		}
	}
	out := make([]string, len(dis))
	for i, ins := range dis {
		data := strings.Repeat("  ", width-len(ins.Bytes())) + hex.EncodeToString(ins.Bytes())
		out[i] = strings.TrimRight(fmt.Sprintf("%#x: %s %s %s", ins.Addr(), data, ins.Mnemonic(), ins.OpStr()), " ")
	}
	return strings.Join(out, "\n"), nil
}

func HexDump(base uint64, mem []byte, bits int) []string {
	var clean = func(p []byte) string {
		o := make([]byte, len(p))
		for i, c := range p {
			if c >= 0x20 && c <= 0x7e {
				o[i] = c
			} else {
				o[i] = '.'
			}
		}
		return string(o)
	}
	bsz := bits / 8
	hexFmt := fmt.Sprintf("0x%%0%dx:", bsz*2)
	padBlock := strings.Repeat(" ", bsz*2)
	padTail := strings.Repeat(" ", bsz)

	width := 80
	addrSize := bsz*2 + 4
	blockCount := ((width - addrSize) * 3 / 4) / ((bsz + 1) * 2)
	lineSize := blockCount * bsz
	var out []string
	blocks := make([]string, blockCount)
	tail := make([]string, blockCount)
	for i := 0; i < len(mem); i += lineSize {
		line := mem[i:]
		for j := 0; j < blockCount; j++ {
			if j*bsz >= len(line) {
				blocks[j], tail[j] = padBlock, padTail
				continue
			}
			block := line[j*bsz : min((j+1)*bsz, len(line))]
			blocks[j] = hex.EncodeToString(block)
			tail[j] = clean(block)
			// short final block
			if short := bsz - len(block); short > 0 {
				blocks[j] += strings.Repeat("  ", short)
				tail[j] += strings.Repeat(" ", short)
			}
		}
		out = append(out, fmt.Sprintf("%s %s [%s]", fmt.Sprintf(hexFmt, base+uint64(i)),
			strings.Join(blocks, " "), strings.Join(tail, " ")))
	}
	return out
}
