package cpu

// Cpu is the minimum the loader needs from a machine it hands off to:
// physical memory, registers and a way to run from an address.
type Cpu interface {
	// memory mapping
	MemMapProt(addr, size uint64, prot int) error
	MemProt(addr, size uint64, prot int) error
	MemUnmap(addr, size uint64) error

	// memory IO
	MemRead(addr, size uint64) ([]byte, error)
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error

	// register IO
	RegRead(reg int) (uint64, error)
	RegWrite(reg int, val uint64) error

	// execution, runs until the guest stops or until is reached
	Start(begin, until uint64) error
	Stop() error

	// cleanup
	Close() error
}

type Builder interface {
	New() (Cpu, error)
}
