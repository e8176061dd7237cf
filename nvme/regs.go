// Package nvme implements the NVMe driver: PCI/MMIO bring-up, admin and I/O
// queue pairs, PRP-list construction, synchronous submit-and-wait with a
// TSC deadline, and chunking of oversize transfers (spec §4.3).
//
// The register layout and bring-up sequence follow the NVMe 1.4 base
// specification directly, since the retrieval pack carries no in-kernel
// (ring-0) NVMe driver — the pack's NVMe code (dswarbrick-smart,
// dswarbrick/go-nvme) all talks to /dev/nvme* through Linux ioctls, which
// is a fundamentally different access path (the kernel's own NVMe driver
// already did the MMIO bring-up; these tools just submit admin passthrough
// commands to it). What those files do ground directly is the *wire
// layout* of Identify data and commands (see identify.go) and the device
// driver's treatment of MMIO as an explicit register map.
//
// MMIO access follows the teacher's "never through ordinary memory
// operations" rule (spec §9): every register read/write goes through
// Bar.Read32/Write32/Read64/Write64 rather than a struct overlay, the same way biscuit
// routes all cross-CPU shared state through named accessor methods
// (mem.Physmem_t.Refaddr, fs.Superblock_t.fieldr) instead of raw field
// access.
package nvme

import "unsafe"

// Bar is the MMIO BAR0 register window. Reads and writes must be volatile;
// volatileLoad/volatileStore are the architecture-specific leaf functions a
// freestanding amd64 build backs with non-reorderable loads/stores (the
// same kind of seam mem.flushRange's clflush var is, and for the same
// reason: this module is exercised by host-side tests that have no real
// MMIO window to poke).
type Bar struct {
	base unsafe.Pointer
}

// NewBar wraps a raw virtual address (already mapped uncacheable by
// whatever set up the HHDM) as a register window.
func NewBar(virt uintptr) Bar {
	return Bar{base: unsafe.Pointer(virt)}
}

func (b Bar) addr(offset uintptr) unsafe.Pointer {
	return unsafe.Add(b.base, offset)
}

func (b Bar) Read32(offset uintptr) uint32 {
	return volatileLoad32(b.addr(offset))
}

func (b Bar) Write32(offset uintptr, v uint32) {
	volatileStore32(b.addr(offset), v)
}

func (b Bar) Read64(offset uintptr) uint64 {
	return volatileLoad64(b.addr(offset))
}

func (b Bar) Write64(offset uintptr, v uint64) {
	volatileStore64(b.addr(offset), v)
}

// Controller register offsets, NVMe base spec §3.1.
const (
	regCAP  = 0x00 // Controller Capabilities
	regVS   = 0x08 // Version
	regINTMS = 0x0C
	regINTMC = 0x10
	regCC   = 0x14 // Controller Configuration
	regCSTS = 0x1C // Controller Status
	regAQA  = 0x24 // Admin Queue Attributes
	regASQ  = 0x28 // Admin Submission Queue Base Address
	regACQ  = 0x30 // Admin Completion Queue Base Address
)

// CC (Controller Configuration) bit layout.
const (
	ccEN    = 1 << 0
	ccCSSNVM = 0 << 4 // I/O command set: NVM
	ccMPS_4K = 0 << 7 // memory page size = 2^(12+0) = 4 KiB
	ccIOSQES = 6 << 16 // 2^6 = 64-byte submission entries
	ccIOCQES = 4 << 20 // 2^4 = 16-byte completion entries
)

// CSTS bits.
const (
	cstsRDY = 1 << 0
	cstsCFS = 1 << 1 // controller fatal status
)

// CAP fields (subset needed for bring-up).
func capDoorbellStride(cap uint64) uint32 {
	// DSTRD at bits 35:32; stride in bytes is 4 << DSTRD.
	return 4 << ((cap >> 32) & 0xF)
}

func capMQES(cap uint64) uint32 {
	return uint32(cap&0xFFFF) + 1
}

func capTimeoutMs(cap uint64) uint64 {
	// CAP.TO at bits 31:24, in 500ms units.
	to := (cap >> 24) & 0xFF
	if to == 0 {
		to = 1
	}
	return to * 500
}

// sqDoorbell and cqDoorbell compute the byte offset of a given queue's
// doorbell register. Doorbells live at 0x1000 + (2*qid + {0,1}) * stride,
// with queue 0 reserved for the admin queue pair.
func sqDoorbell(qid uint32, stride uint32) uintptr {
	return 0x1000 + uintptr(2*qid)*uintptr(stride)
}

func cqDoorbell(qid uint32, stride uint32) uintptr {
	return 0x1000 + uintptr(2*qid+1)*uintptr(stride)
}
