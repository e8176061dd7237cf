package nvme

import (
	"encoding/binary"

	"github.com/hazyhaar/heavenos/mem"
)

// Opcodes issued by this driver (spec §6).
const (
	OpFlush   = 0x00
	OpWrite   = 0x01
	OpRead    = 0x02
	OpCreateIOSQ = 0x01 // admin opcode namespace is separate from I/O
	OpCreateIOCQ = 0x05
	OpIdentify   = 0x06
)

// SQEntry is the 64-byte NVMe submission queue entry (NVMe base spec
// §4.2). Grounded on the field set dswarbrick/go-nvme's nvmePassthruCommand
// exposes to userspace (opcode/nsid/addr/cdw10.. fields) re-expressed as
// the literal wire entry the controller's submission queue reads, instead
// of an ioctl payload wrapping one.
type SQEntry struct {
	Opcode   uint8
	Flags    uint8
	CID      uint16
	NSID     uint32
	Rsvd2    uint64
	MetaPtr  uint64
	PRP1     uint64
	PRP2     uint64
	CDW10    uint32
	CDW11    uint32
	CDW12    uint32
	CDW13    uint32
	CDW14    uint32
	CDW15    uint32
}

// sqEntrySize is asserted against unsafe.Sizeof in queue_test.go: the NVMe
// spec fixes this at 64 bytes and the controller will misinterpret the
// queue if our struct padding ever drifts from that.
const sqEntrySize = 64

// CQEntry is the 16-byte NVMe completion queue entry.
type CQEntry struct {
	DW0    uint32
	Rsvd   uint32
	SQHead uint16
	SQID   uint16
	CID    uint16
	Status uint16 // bit 0 is the phase tag; bits 15:1 are status code + type
}

const cqEntrySize = 16

// Phase reports the completion entry's phase tag.
func (c CQEntry) Phase() bool { return c.Status&1 != 0 }

// StatusCode extracts the NVMe status code field (bits 15:1 minus the
// phase bit collapse to bits 8:1 for the code, 11:9 for the type — callers
// use StatusCode/StatusType together, matching the status->error mapping
// table in spec §4.3).
func (c CQEntry) StatusCode() uint8 { return uint8((c.Status >> 1) & 0xFF) }
func (c CQEntry) StatusType() uint8 { return uint8((c.Status >> 9) & 0x7) }

// QueuePair owns one submission queue and one completion queue, each
// backed by a DmaBuf, per spec §3's "NVMe queue pair" data model: "entries
// at indices [cq_head, sq_tail) are in flight."
type QueuePair struct {
	ID     uint32
	Depth  uint32 // entries per queue

	sq       mem.DmaBuf
	cq       mem.DmaBuf
	sqTail   uint32
	cqHead   uint32
	cqPhase  uint16 // expected phase bit: 1 initially, flips on wrap

	sqDoorbellOff uintptr
	cqDoorbellOff uintptr
	bar           Bar
}

// NewQueuePair allocates the SQ/CQ DmaBufs for depth entries and wires up
// the queue's doorbell offsets, derived from the controller's doorbell
// stride (spec §6: "Doorbell stride read from controller capabilities").
func NewQueuePair(pages *mem.PhysPages, bar Bar, id uint32, depth uint32, stride uint32) (*QueuePair, error) {
	sq, err := mem.Alloc(pages, int(depth)*sqEntrySize)
	if err != nil {
		return nil, err
	}
	cq, err := mem.Alloc(pages, int(depth)*cqEntrySize)
	if err != nil {
		sq.Release()
		return nil, err
	}
	return &QueuePair{
		ID:            id,
		Depth:         depth,
		sq:            sq,
		cq:            cq,
		cqPhase:       1,
		sqDoorbellOff: sqDoorbell(id, stride),
		cqDoorbellOff: cqDoorbell(id, stride),
		bar:           bar,
	}, nil
}

// SQBase and CQBase return the physical base addresses for AQA/ASQ/ACQ or
// Create I/O [Sub|Comp]mission Queue admin commands.
func (q *QueuePair) SQBase() mem.PhysAddr { return q.sq.Phys() }
func (q *QueuePair) CQBase() mem.PhysAddr { return q.cq.Phys() }

// publish writes entry at sq_tail, advances sq_tail (wrapping at Depth),
// and rings the SQ doorbell — spec §4.3 submit_and_wait steps 1-2.
func (q *QueuePair) publish(e SQEntry) uint16 {
	cid := uint16(q.sqTail)
	e.CID = cid

	buf := q.sq.Bytes()
	off := int(q.sqTail) * sqEntrySize
	encodeSQEntry(buf[off:off+sqEntrySize], e)
	q.sq.FlushCache()

	q.sqTail = (q.sqTail + 1) % q.Depth
	// Doorbell write must not be reordered ahead of entry publication
	// (spec §9); volatileStore32 plus the FlushCache call above (a store
	// fence) enforce that ordering.
	q.bar.Write32(q.sqDoorbellOff, q.sqTail)
	return cid
}

// pollOnce checks the completion queue entry at cq_head. If its phase bit
// matches the expected phase, it decodes the entry, advances cq_head
// (flipping phase on wrap), rings the CQ doorbell, and returns (entry,
// true). Otherwise returns (zero, false) for the caller to retry or check
// its deadline — spec §4.3 submit_and_wait step 3.
func (q *QueuePair) pollOnce() (CQEntry, bool) {
	q.cq.InvalidateCache()
	buf := q.cq.Bytes()
	off := int(q.cqHead) * cqEntrySize
	e := decodeCQEntry(buf[off : off+cqEntrySize])

	if e.Phase() != (q.cqPhase == 1) {
		return CQEntry{}, false
	}

	q.cqHead++
	if q.cqHead == q.Depth {
		q.cqHead = 0
		q.cqPhase ^= 1
	}
	q.bar.Write32(q.cqDoorbellOff, q.cqHead)
	return e, true
}

func encodeSQEntry(dst []byte, e SQEntry) {
	dst[0] = e.Opcode
	dst[1] = e.Flags
	binary.LittleEndian.PutUint16(dst[2:], e.CID)
	binary.LittleEndian.PutUint32(dst[4:], e.NSID)
	binary.LittleEndian.PutUint64(dst[8:], e.Rsvd2)
	binary.LittleEndian.PutUint64(dst[16:], e.MetaPtr)
	binary.LittleEndian.PutUint64(dst[24:], e.PRP1)
	binary.LittleEndian.PutUint64(dst[32:], e.PRP2)
	binary.LittleEndian.PutUint32(dst[40:], e.CDW10)
	binary.LittleEndian.PutUint32(dst[44:], e.CDW11)
	binary.LittleEndian.PutUint32(dst[48:], e.CDW12)
	binary.LittleEndian.PutUint32(dst[52:], e.CDW13)
	binary.LittleEndian.PutUint32(dst[56:], e.CDW14)
	binary.LittleEndian.PutUint32(dst[60:], e.CDW15)
}

func decodeCQEntry(src []byte) CQEntry {
	return CQEntry{
		DW0:    binary.LittleEndian.Uint32(src[0:]),
		Rsvd:   binary.LittleEndian.Uint32(src[4:]),
		SQHead: binary.LittleEndian.Uint16(src[8:]),
		SQID:   binary.LittleEndian.Uint16(src[10:]),
		CID:    binary.LittleEndian.Uint16(src[12:]),
		Status: binary.LittleEndian.Uint16(src[14:]),
	}
}
