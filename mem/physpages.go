// Package mem implements the DMA-safe physical memory manager: a bitmap
// allocator over 4 KiB frames (PhysPages) and the DmaBuf type that wraps a
// contiguous physical range with an HHDM virtual pointer and explicit
// cache flush/invalidate around device-visible access.
//
// The allocator is grounded on biscuit/src/mem.Physmem_t: a flat slice
// describing every frame, a free list threaded through the slice, and a
// "startn" offset from the first usable physical frame. Where the teacher
// tracks per-page refcounts for a multi-core, copy-on-write virtual memory
// system, this single-threaded configuration only needs allocated/free, so
// the state collapses to one bit per frame instead of an int32 refcount.
package mem

import (
	"errors"
	"sync"

	"github.com/hazyhaar/heavenos/kernel"
)

// PageShift is the base-2 exponent of the frame size.
const PageShift = 12

// PageSize is the size of one physical frame in bytes.
const PageSize = 1 << PageShift

// ErrOutOfMemory is returned when no run of free frames satisfies a request.
var ErrOutOfMemory = errors.New("mem: out of memory")

// PhysAddr is a physical address. Page-aligned whenever it describes a
// frame allocation.
type PhysAddr uint64

// PhysPages is a bitmap allocator over the machine's usable physical frames.
// One bit per frame: 0 free, 1 allocated. It is a process-wide singleton,
// per spec §5's shared-resource policy, so every method takes the struct's
// own lock.
type PhysPages struct {
	mu sync.Mutex

	base      PhysAddr // physical address of frame 0 in bits
	nframes   uint64   // total frames described by bits
	bits      []uint64 // nframes bits, 64 per word
	freeCount uint64

	DoubleFrees kernel.Counter_t
}

// reservedRegion describes a [start, start+length) physical range that must
// never be handed out, e.g. the bitmap's own backing frames or a memory-map
// hole reported by the bootloader.
type reservedRegion struct {
	start  PhysAddr
	length uint64 // bytes
}

// NewPhysPages builds an allocator spanning [base, base+nframes*PageSize),
// with the bits for reserved regions pinned to allocated. This plays the
// role of biscuit's mem.Phys_init, but takes the boot memory map as an
// explicit argument instead of calling into a modified runtime for it —
// the bootloader hand-off that discovers this map is out of scope
// (spec.md §1).
func NewPhysPages(base PhysAddr, nframes uint64, reserved []reservedRegion) *PhysPages {
	words := (nframes + 63) / 64
	pp := &PhysPages{
		base:    base,
		nframes: nframes,
		bits:    make([]uint64, words),
	}
	pp.freeCount = nframes
	for _, r := range reserved {
		pp.markRange(r.start, framesFor(r.length), true)
	}
	return pp
}

// ReservedRegion exported constructor so bootstrap code outside this
// package can describe memory-map holes without reaching into internals.
func ReservedRegion(start PhysAddr, length uint64) reservedRegion {
	return reservedRegion{start: start, length: length}
}

func framesFor(nbytes uint64) uint64 {
	return (nbytes + PageSize - 1) / PageSize
}

func (pp *PhysPages) frameOf(addr PhysAddr) uint64 {
	return uint64(addr-pp.base) / PageSize
}

func (pp *PhysPages) bit(frame uint64) bool {
	return pp.bits[frame/64]&(1<<(frame%64)) != 0
}

func (pp *PhysPages) setBit(frame uint64, v bool) {
	word, off := frame/64, frame%64
	if v {
		pp.bits[word] |= 1 << off
	} else {
		pp.bits[word] &^= 1 << off
	}
}

// markRange marks [frameOf(start), frameOf(start)+count) allocated or free
// without touching freeCount bookkeeping beyond what the caller expects;
// used at init for reserved regions and by AllocPagesContiguous. Only the
// allocated=true direction adjusts freeCount.
func (pp *PhysPages) markRange(start PhysAddr, count uint64, allocated bool) {
	first := pp.frameOf(start)
	for f := first; f < first+count && f < pp.nframes; f++ {
		if allocated && !pp.bit(f) {
			pp.freeCount--
		}
		pp.setBit(f, allocated)
	}
}

// AllocPagesContiguous performs a linear first-fit scan for a run of count
// frames whose base is a multiple of align*PageSize. Returns ErrOutOfMemory
// if no run fits.
func (pp *PhysPages) AllocPagesContiguous(count uint64, align uint64) (PhysAddr, error) {
	if count == 0 {
		panic("mem: zero-length allocation")
	}
	if align == 0 {
		align = 1
	}
	pp.mu.Lock()
	defer pp.mu.Unlock()

	for f := pp.nextAligned(0, align); f+count <= pp.nframes; f = pp.nextAligned(f+align, align) {
		if pp.runFree(f, count) {
			pp.markRange(pp.base+PhysAddr(f*PageSize), count, true)
			return pp.base + PhysAddr(f*PageSize), nil
		}
	}
	return 0, ErrOutOfMemory
}

func (pp *PhysPages) nextAligned(from, align uint64) uint64 {
	if from%align == 0 {
		return from
	}
	return kernel.Roundup(from, align)
}

func (pp *PhysPages) runFree(first, count uint64) bool {
	for f := first; f < first+count; f++ {
		if pp.bit(f) {
			return false
		}
	}
	return true
}

// FreePages clears count bits starting at base. A region that is already
// (partially) free is silently ignored aside from incrementing
// DoubleFrees, per spec §4.1: "double-free is silently ignored (a log
// counter increments) rather than corrupting the free count."
func (pp *PhysPages) FreePages(base PhysAddr, count uint64) {
	pp.mu.Lock()
	defer pp.mu.Unlock()

	first := pp.frameOf(base)
	for f := first; f < first+count && f < pp.nframes; f++ {
		if !pp.bit(f) {
			pp.DoubleFrees.Inc()
			continue
		}
		pp.setBit(f, false)
		pp.freeCount++
	}
}

// FreeFrames reports the number of currently free frames.
func (pp *PhysPages) FreeFrames() uint64 {
	pp.mu.Lock()
	defer pp.mu.Unlock()
	return pp.freeCount
}
