package mem

import (
	"errors"
	"unsafe"
)

// HHDMOffset is the virtual-address offset of the higher-half direct map
// installed by the bootloader. Bootloader hand-off is out of scope
// (spec.md §1); this is configured once by whatever does that hand-off via
// SetHHDMOffset before any DmaBuf is allocated.
var HHDMOffset uintptr

// SetHHDMOffset records the HHDM base. Exported as a function rather than a
// public var write so every caller funnels through one place that could
// later assert it's only called once.
func SetHHDMOffset(off uintptr) {
	HHDMOffset = off
}

// ErrBadSize is returned when DmaBuf.Alloc is asked for a non-positive size.
var ErrBadSize = errors.New("mem: dma buffer size must be positive")

// DmaBuf owns a contiguous physical range and exposes it through the HHDM.
// Exclusively owned: Go's type system can't enforce move semantics, so the
// convention (documented, not compiler-checked, the way biscuit's own
// Bdev_block_t ownership is convention rather than enforced) is that a
// DmaBuf is passed by value into nvme.Driver.ReadBlocks/WriteBlocks and the caller
// does not read or write it again until the call returns — "drop while a
// device command references it is forbidden" (spec §3) becomes "don't
// touch it until SubmitAndWait returns" in Go terms.
type DmaBuf struct {
	phys   PhysAddr
	length int
	virt   uintptr
	pages  *PhysPages
}

// Alloc rounds size up to a 4 KiB multiple, requests contiguous frames from
// pages, and returns a DmaBuf whose VirtPtr is phys+HHDMOffset.
func Alloc(pages *PhysPages, size int) (DmaBuf, error) {
	if size <= 0 {
		return DmaBuf{}, ErrBadSize
	}
	length := int(roundupInt(size, PageSize))
	count := uint64(length / PageSize)
	base, err := pages.AllocPagesContiguous(count, 1)
	if err != nil {
		return DmaBuf{}, err
	}
	return DmaBuf{
		phys:   base,
		length: length,
		virt:   uintptr(base) + HHDMOffset,
		pages:  pages,
	}, nil
}

func roundupInt(v, b int) int {
	return ((v + b - 1) / b) * b
}

// Phys returns the buffer's physical base address, used to build NVMe PRPs.
func (d DmaBuf) Phys() PhysAddr { return d.phys }

// Len returns the buffer's length in bytes (a positive multiple of 4 KiB).
func (d DmaBuf) Len() int { return d.length }

// Bytes exposes the buffer's virtual memory as a byte slice through the
// HHDM. Safe to call repeatedly; it does not copy.
func (d DmaBuf) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(d.virt)), d.length)
}

// FlushCache issues cache-line flushes across the buffer's range followed
// by a store fence, required before a device-visible read of CPU-written
// data: "flush before device read" (spec §4.2). On amd64 this is CLFLUSH
// (or CLFLUSHOPT) per cache line plus SFENCE; expressed here through
// flushRange/storeFence, which are architecture-specific leaf functions
// (see cacheops.go) so this file stays free of inline assembly.
func (d DmaBuf) FlushCache() {
	flushRange(d.virt, d.length)
	storeFence()
}

// InvalidateCache issues cache-line flushes across the buffer's range
// followed by a memory fence, required after the device has written into
// the buffer: "invalidate after device write" (spec §4.2). x86_64 CLFLUSH
// flushes and invalidates in one instruction, so this and FlushCache share
// the same primitive and differ only in the fence that follows — a store
// fence orders the CPU's prior writes ahead of the device's read, while a
// full fence orders the device's write ahead of the CPU's subsequent read.
func (d DmaBuf) InvalidateCache() {
	flushRange(d.virt, d.length)
	memFence()
}

// Release returns the buffer's frames to the PhysPages it came from. The
// caller must not reference the buffer's Bytes()/Phys() again afterward.
func (d DmaBuf) Release() {
	if d.length == 0 {
		return
	}
	d.pages.FreePages(d.phys, uint64(d.length/PageSize))
}
