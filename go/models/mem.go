package models

// PhysMem is physical memory as seen by the loader. MemMapProt/MemUnmap back
// page allocation, reads and writes fail outside mapped ranges.
type PhysMem interface {
	MemMapProt(addr, size uint64, prot int) error
	MemUnmap(addr, size uint64) error

	MemRead(addr, size uint64) ([]byte, error)
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error
}

// DirectMem is implemented by memories that can hand out slices aliasing
// their backing store. Writes through the slice are writes to memory.
type DirectMem interface {
	PhysMem
	MemSlice(addr, size uint64) ([]byte, error)
}

func AlignDown(addr uint64) uint64 {
	return addr &^ (PageSize - 1)
}

func AlignUp(addr uint64) uint64 {
	return (addr + PageSize - 1) &^ (PageSize - 1)
}

// Pages returns the number of pages needed to hold size bytes.
func Pages(size uint64) uint64 {
	return AlignUp(size) / PageSize
}
