package cpu

import (
	"bytes"
	"testing"
)

func pattern(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7 + i/251)
	}
	return p
}

func TestMemSimReadWrite(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x1000, 0, false)
	b := pattern(0x1000)
	c := make([]byte, len(b))
	if err := m.Write(0x1000, b, 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Read(0x1000, c, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, c) {
		t.Fatal("read back differs")
	}
	if err := m.Read(0x1ff0, make([]byte, 0x20), 0); err == nil {
		t.Error("read off the end of the mapping succeeded")
	}
}

// a freed allocation in the middle of a mapping
func TestMemSimUnmapHole(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x3000, 0, false)
	b := pattern(0x3000)
	if err := m.Write(0x1000, b, 0); err != nil {
		t.Fatal(err)
	}
	m.Unmap(0x2000, 0x1000)

	tests := []struct {
		start, end uint64
		ok         bool
	}{
		{0x1000, 0x2000, true},
		{0x1800, 0x2000, true},
		{0x1800, 0x2800, false},
		{0x2000, 0x2001, false},
		{0x2fff, 0x3001, false},
		{0x3000, 0x4000, true},
		{0x1000, 0x4000, false},
	}
	for _, test := range tests {
		p := make([]byte, test.end-test.start)
		err := m.Read(test.start, p, 0)
		if (err == nil) != test.ok {
			t.Errorf("read %#x-%#x: err = %v", test.start, test.end, err)
		}
		if err == nil && !bytes.Equal(p, b[test.start-0x1000:test.end-0x1000]) {
			t.Errorf("read %#x-%#x: contents changed by unmap", test.start, test.end)
		}
		if err := m.Write(test.start, p, 0); (err == nil) != test.ok {
			t.Errorf("write %#x-%#x: err = %v", test.start, test.end, err)
		}
	}
}

func TestMemSimAdjacent(t *testing.T) {
	m := &MemSim{}
	for addr := uint64(0x1000); addr < 0x4000; addr += 0x1000 {
		m.Map(addr, 0x1000, 0, false)
	}
	b := pattern(0x3000)
	c := make([]byte, len(b))
	if err := m.Write(0x1000, b, 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Read(0x1000, c, 0); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, c) {
		t.Error("io across adjacent mappings differs")
	}
}

func TestMemSimRemap(t *testing.T) {
	m := &MemSim{}
	b := pattern(0x4000)
	m.Map(0x1000, 0x4000, 0, false)
	if err := m.Write(0x1000, b, 0); err != nil {
		t.Fatal(err)
	}

	m.Map(0x1000, 0x4000, 0, false)
	c := make([]byte, len(b))
	m.Read(0x1000, c, 0)
	if !bytes.Equal(b, c) {
		t.Error("remap without zero lost contents")
	}

	m.Map(0x2000, 0x1000, 0, true)
	copy(b[0x1000:0x2000], make([]byte, 0x1000))
	m.Read(0x1000, c, 0)
	if !bytes.Equal(b, c) {
		t.Error("remap with zero did not clear exactly one page")
	}
}

func TestMemSimProt(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x3000, PROT_READ|PROT_WRITE, true)
	m.Prot(0x2000, 0x1000, PROT_READ)
	if len(m.Mem) != 3 {
		t.Fatalf("Prot() should split into 3 pages, got:\n%s", m.Mem)
	}
	if err := m.Write(0x2000, []byte{1}, PROT_WRITE); err == nil {
		t.Error("write succeeded into read-only page")
	}
	if err := m.Write(0x1000, []byte{1}, PROT_WRITE); err != nil {
		t.Error("write failed into writable page:", err)
	}
	if err := m.Write(0x2fff, []byte{1, 2}, PROT_WRITE); err == nil {
		t.Error("write straddling read-only page succeeded")
	}
}

func TestMemSimSlice(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x1000, 0, true)
	p, ok := m.Slice(0x1ff0, 0x10)
	if !ok || len(p) != 0x10 {
		t.Fatal("slice at end of page failed")
	}
	p[0] = 0xaa
	q := make([]byte, 1)
	m.Read(0x1ff0, q, 0)
	if q[0] != 0xaa {
		t.Error("slice does not alias memory")
	}
	if _, ok := m.Slice(0x1ff0, 0x11); ok {
		t.Error("slice past end of page succeeded")
	}
	if _, ok := m.Slice(0x3000, 1); ok {
		t.Error("slice of unmapped memory succeeded")
	}
}
