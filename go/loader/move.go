package loader

import (
	"unsafe"
)

type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// Move copies src into dst like memmove. When dst starts inside src the copy
// has to run from the end, and Move reports Backward.
func Move(dst, src []byte) Direction {
	n := min(len(dst), len(src))
	if n == 0 {
		return Forward
	}
	d := uintptr(unsafe.Pointer(unsafe.SliceData(dst)))
	s := uintptr(unsafe.Pointer(unsafe.SliceData(src)))
	if d > s && d < s+uintptr(n) {
		for i := n - 1; i >= 0; i-- {
			dst[i] = src[i]
		}
		return Backward
	}
	for i := 0; i < n; i++ {
		dst[i] = src[i]
	}
	return Forward
}
