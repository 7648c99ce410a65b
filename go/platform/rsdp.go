package platform

import (
	"bytes"

	"github.com/lunixbochs/bootcorn/go/models"
)

const RSDPSignature = "RSD PTR "

// RSDP is the ACPI 1.0 root system description pointer.
type RSDP struct {
	Signature   string `struc:"[8]byte"`
	Checksum    uint8
	OEMID       string `struc:"[6]byte"`
	Revision    uint8
	RsdtAddress uint32
}

// Bytes packs the table with a checksum that makes its bytes sum to zero.
func (r *RSDP) Bytes() ([]byte, error) {
	r.Checksum = 0
	p, err := pack(r)
	if err != nil {
		return nil, err
	}
	var sum uint8
	for _, b := range p {
		sum += b
	}
	r.Checksum = -sum
	p[8] = r.Checksum
	return p, nil
}

// FindRSDP returns the address of the first table whose first eight bytes
// in memory are the RSDP signature, or 0. Unreadable tables are skipped.
func FindRSDP(tables []ConfigTable, mem models.PhysMem) uint32 {
	sig := []byte(RSDPSignature)
	for _, t := range tables {
		if t.Address == 0 || t.Address > 0xffffffff {
			continue
		}
		p, err := mem.MemRead(t.Address, uint64(len(sig)))
		if err != nil {
			continue
		}
		if bytes.Equal(p, sig) {
			return uint32(t.Address)
		}
	}
	return 0
}
