package nvme

// IdentifyController and IdentifyNamespace hold the fields this driver
// decodes from the 4096-byte Identify data structures of the NVMe base
// spec, in the field order of github.com/dswarbrick/go-nvme's
// nvmeIdentNamespace. They are not byte overlays of the 4096-byte page:
// their padding does not reproduce the wire offsets or size. The decode
// functions below read each field from its wire offset directly; simnvme
// imports the upstream types to build its responses (see
// simnvme/device.go).
type IdentifyController struct {
	VendorID     uint16
	SSVID        uint16
	SerialNumber [20]byte
	ModelNumber  [40]byte
	Firmware     [8]byte
	Mdts         uint8
	_            [4022]byte // remainder of the 4096-byte page, unused by this driver
}

type LBAFormat struct {
	MetadataSize uint16
	DataSize     uint8 // LBA size = 2^DataSize bytes
	Relative     uint8
}

type IdentifyNamespace struct {
	Nsze   uint64 // namespace size, in logical blocks
	Ncap   uint64 // namespace capacity
	Nuse   uint64 // namespace utilization
	Nsfeat uint8
	Nlbaf  uint8
	Flbas  uint8 // index into Lbaf selecting the in-use LBA format
	_      [21]byte
	Lbaf   [16]LBAFormat
	_      [3576]byte
}

// BlockSize returns the namespace's logical block size in bytes, derived
// from the LBA format selected by Flbas.
func (ns IdentifyNamespace) BlockSize() uint32 {
	fmtIdx := ns.Flbas & 0xF
	return 1 << ns.Lbaf[fmtIdx].DataSize
}

const identifyBufferSize = 4096

// decodeIdentifyController reads a 4096-byte Identify Controller buffer
// into the typed struct via a direct field-by-field copy, avoiding
// encoding/binary.Read's reflection cost on the hot mount path.
func decodeIdentifyController(buf []byte) IdentifyController {
	var c IdentifyController
	c.VendorID = le16(buf[0:])
	c.SSVID = le16(buf[2:])
	copy(c.SerialNumber[:], buf[4:24])
	copy(c.ModelNumber[:], buf[24:64])
	copy(c.Firmware[:], buf[64:72])
	c.Mdts = buf[77]
	return c
}

func decodeIdentifyNamespace(buf []byte) IdentifyNamespace {
	var ns IdentifyNamespace
	ns.Nsze = le64(buf[0:])
	ns.Ncap = le64(buf[8:])
	ns.Nuse = le64(buf[16:])
	ns.Nsfeat = buf[24]
	ns.Nlbaf = buf[25]
	ns.Flbas = buf[26]
	base := 128
	for i := 0; i < 16; i++ {
		off := base + i*4
		ns.Lbaf[i] = LBAFormat{
			MetadataSize: le16(buf[off:]),
			DataSize:     buf[off+2],
			Relative:     buf[off+3],
		}
	}
	return ns
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
