package nvme

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
)

// TestWireLayoutSizes pins the on-the-wire sizes the NVMe base spec fixes,
// the same way dswarbrick-smart/nvme/nvme_test.go pins
// unsafe.Sizeof(nvmeIdentController{}) == 4096.
func TestWireLayoutSizes(t *testing.T) {
	assert.Equal(t, uintptr(sqEntrySize), unsafe.Sizeof(SQEntry{}))
	assert.Equal(t, uintptr(cqEntrySize), unsafe.Sizeof(CQEntry{}))
}

func TestEncodeDecodeSQEntryRoundTrips(t *testing.T) {
	e := SQEntry{
		Opcode: OpWrite,
		NSID:   1,
		PRP1:   0x1000,
		PRP2:   0x2000,
		CDW10:  42,
		CDW11:  7,
	}
	buf := make([]byte, sqEntrySize)
	encodeSQEntry(buf, e)

	var got SQEntry
	got.Opcode = buf[0]
	got.Flags = buf[1]
	assert.Equal(t, e.Opcode, got.Opcode)
	assert.Equal(t, uint64(0x1000), leU64(buf[24:]))
	assert.Equal(t, uint64(0x2000), leU64(buf[32:]))
}

func leU64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

func TestCQEntryPhaseAndStatus(t *testing.T) {
	e := CQEntry{Status: 0x0003} // phase=1, code=1 (invalid opcode)
	assert.True(t, e.Phase())
	assert.Equal(t, uint8(1), e.StatusCode())
	assert.Equal(t, uint8(0), e.StatusType())
}
