package vfs

import "sync/atomic"

// numLockSlots is the size of the fixed WAL-index lock array (spec §4.6's
// xShmLock: "a fixed array of lock slots"), matching the embedded SQL
// engine's own WAL-mode lock count.
const numLockSlots = 8

// ShmLockFlag mirrors the engine's lock-operation bitmask.
type ShmLockFlag int

const (
	ShmLock ShmLockFlag = 1 << iota
	ShmUnlock
	ShmShared
	ShmExclusive
)

// lockState tracks a single WAL-index lock slot. In this single-threaded
// configuration every acquisition succeeds immediately (spec §4.6), but
// the refcounts are still tracked so a future multi-core configuration
// (spec §5's "real reader/writer semantics in xShmLock") has real state
// to build on rather than a stub that always returns success.
type lockState struct {
	shared    int
	exclusive bool
}

// XShmMap allocates zeroed RAM pages on first extension of regionIndex and
// returns a stable pointer (here, a byte slice) by region index, per spec
// §4.6. Extension always appends a fresh region rather than reallocating
// existing ones, so pointers returned by earlier calls stay valid (spec
// §9: "extension must append regions rather than reallocate").
func (b *VfsBridge) XShmMap(h *Handle, regionIndex int, regionSize int, extend bool) ([]byte, Code) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if regionIndex < len(h.shmRegions) {
		return h.shmRegions[regionIndex], Ok
	}
	if !extend {
		return nil, Ok
	}
	for len(h.shmRegions) <= regionIndex {
		h.shmRegions = append(h.shmRegions, make([]byte, regionSize))
	}
	return h.shmRegions[regionIndex], Ok
}

// XShmLock implements spec §4.6's xShmLock: in the single-threaded
// configuration every request succeeds immediately since there is no
// other executor to conflict with.
func (b *VfsBridge) XShmLock(offset, n int, flags ShmLockFlag) Code {
	b.mu.Lock()
	defer b.mu.Unlock()

	for slot := offset; slot < offset+n && slot < numLockSlots; slot++ {
		ls := &b.locks[slot]
		switch {
		case flags&ShmUnlock != 0:
			if flags&ShmExclusive != 0 {
				ls.exclusive = false
			} else if ls.shared > 0 {
				ls.shared--
			}
		case flags&ShmExclusive != 0:
			ls.exclusive = true
		case flags&ShmShared != 0:
			ls.shared++
		}
	}
	return Ok
}

var shmFence uint64

// XShmBarrier is a full memory fence (spec §4.6). Expressed as an atomic
// RMW on a dummy counter, the same seam mem/cacheops.go uses for
// storeFence/memFence on a test host with no real hardware fence
// instructions to issue.
func (b *VfsBridge) XShmBarrier() {
	atomic.AddUint64(&shmFence, 1)
}

// XShmUnmap releases all of a handle's shared-memory region pages if
// deleteFlag is set (spec §4.6).
func (b *VfsBridge) XShmUnmap(h *Handle, deleteFlag bool) Code {
	h.mu.Lock()
	defer h.mu.Unlock()
	if deleteFlag {
		h.shmRegions = nil
	}
	return Ok
}
