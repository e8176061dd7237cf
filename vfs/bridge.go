package vfs

import (
	"sync"

	"github.com/hazyhaar/heavenos/mem"
	"github.com/hazyhaar/heavenos/nvme"
	"github.com/hazyhaar/heavenos/storage"
)

// B is the block size operations are expressed in. Aliased from storage
// rather than redeclared, since the bridge's byte-range-to-block-range
// math must always agree with the allocator's own block size.
const B = storage.BlockSize

// OpenFlags mirror the subset of the embedded SQL engine's xOpen flags the
// bridge needs to honor (spec §4.6).
type OpenFlags int

const (
	FlagReadOnly OpenFlags = 1 << iota
	FlagCreate
)

// Handle is the caller-side cursor over a FileTable entry (spec §3's File
// handle). It carries a cached copy of the entry so repeated xRead/xWrite
// calls don't need a FileTable lookup; each bridge method that changes it
// writes the new values back with FileTable.Update.
type Handle struct {
	slot       int
	name       string
	readOnly   bool
	startBlock uint64
	blockCount uint64
	byteLength uint64

	mu         sync.Mutex
	shmRegions [][]byte
}

func newHandle(slot int, e storage.Entry, readOnly bool) *Handle {
	return &Handle{
		slot:       slot,
		name:       e.Name,
		readOnly:   readOnly,
		startBlock: e.StartBlock,
		blockCount: e.BlockCount,
		byteLength: e.ByteLength,
	}
}

// VfsBridge implements the embedded SQL engine's VFS contract on top of
// FileTable + BlockAllocator + NvmeDriver, per spec §4.6. It is the single
// process-wide owner of all three collaborators, per spec §5's
// shared-resource policy and §9's fixed lock order
// {NvmeDriver -> BlockAllocator -> FileTable} — here realized as a single
// coarse mutex, since this configuration has exactly one logical executor
// and therefore no real contention to stripe locks across.
type VfsBridge struct {
	mu sync.Mutex

	pages *mem.PhysPages
	drv   *nvme.Driver
	ba    *storage.BlockAllocator
	ft    *storage.FileTable

	locks [numLockSlots]lockState
	rng   RandomSource
	clock SleepClock
	audit *storage.AuditRecorder
	stats *storage.NamespaceRecorder
}

// New wires a VfsBridge on top of an already-bootstrapped BlockAllocator,
// FileTable, and NvmeDriver. Bootstrap (see storage.Bootstrap) is
// responsible for choosing between storage.Format and storage.Load before
// calling this. audit and stats may be nil if the caller doesn't want
// xSync appending audit rows or refreshing /stats rows (e.g. in tests).
func New(pages *mem.PhysPages, drv *nvme.Driver, ba *storage.BlockAllocator, ft *storage.FileTable, rng RandomSource, clock SleepClock, audit *storage.AuditRecorder) *VfsBridge {
	if rng == nil {
		rng = UnimplementedRNG{}
	}
	return &VfsBridge{pages: pages, drv: drv, ba: ba, ft: ft, rng: rng, clock: clock, audit: audit}
}

// WithStats attaches a NamespaceRecorder that XSync refreshes on every
// barrier. Separate from New's parameter list since most call sites (and
// every existing test) don't need it and New's signature is already wide.
func (b *VfsBridge) WithStats(stats *storage.NamespaceRecorder) *VfsBridge {
	b.stats = stats
	return b
}

// XOpen resolves name to a FileTable slot, creating it if flags requests
// creation and the entry doesn't yet exist, per spec §4.6's xOpen
// contract. A null name (empty string) allocates the next free temp slot.
func (b *VfsBridge) XOpen(name string, flags OpenFlags) (*Handle, Code) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if name == "" {
		slot, err := b.ft.CreateTemp()
		if err != nil {
			return nil, mapError(err, true)
		}
		return newHandle(slot, b.ft.Entry(slot), false), Ok
	}

	if slot, err := b.ft.Lookup(name); err == nil {
		return newHandle(slot, b.ft.Entry(slot), flags&FlagReadOnly != 0), Ok
	}

	if flags&FlagCreate == 0 {
		return nil, CantOpen
	}
	if flags&FlagReadOnly != 0 {
		return nil, CantOpen
	}

	slot, err := b.ft.Create(name, 0, b.ba.Alloc)
	if err != nil {
		return nil, mapError(err, true)
	}
	return newHandle(slot, b.ft.Entry(slot), false), Ok
}

// XClose releases a handle's shared-memory regions, if any. The FileTable
// entry itself survives close; no bridge method removes entries.
func (b *VfsBridge) XClose(h *Handle) Code {
	h.mu.Lock()
	h.shmRegions = nil
	h.mu.Unlock()
	return Ok
}

// XRead implements spec §4.6's xRead contract.
func (b *VfsBridge) XRead(h *Handle, buf []byte, amount, offset uint64) Code {
	b.mu.Lock()
	defer b.mu.Unlock()

	if offset >= h.byteLength {
		zero(buf[:amount])
		return IoErrShortRead
	}

	short := offset+amount > h.byteLength
	have := amount
	if short {
		have = h.byteLength - offset
	}

	startBlock := offset / B
	endBlock := (offset + amount - 1) / B
	count := endBlock - startBlock + 1

	dbuf, err := mem.Alloc(b.pages, int(count*B))
	if err != nil {
		return mapError(err, false)
	}
	defer dbuf.Release()

	if err := b.drv.ReadBlocks(h.startBlock+startBlock, count, dbuf); err != nil {
		return mapError(err, false)
	}
	dbuf.InvalidateCache()

	intraOff := offset % B
	copy(buf[:have], dbuf.Bytes()[intraOff:intraOff+have])
	if short {
		zero(buf[have:amount])
		return IoErrShortRead
	}
	return Ok
}

// XWrite implements spec §4.6's xWrite contract: grow-if-needed, then
// either the aligned fast path or the misaligned read-modify-write path.
func (b *VfsBridge) XWrite(h *Handle, buf []byte, amount, offset uint64) Code {
	b.mu.Lock()
	defer b.mu.Unlock()

	if h.readOnly {
		return CantOpen
	}

	startBlock := offset / B
	endBlock := (offset + amount - 1) / B
	count := endBlock - startBlock + 1
	aligned := offset%B == 0 && amount%B == 0

	neededBlocks := endBlock + 1
	if neededBlocks > h.blockCount {
		if err := b.growHandle(h, neededBlocks-h.blockCount); err != nil {
			return mapError(err, true)
		}
	}

	realStart := h.startBlock + startBlock
	dbuf, err := mem.Alloc(b.pages, int(count*B))
	if err != nil {
		return mapError(err, false)
	}
	defer dbuf.Release()

	if aligned {
		copy(dbuf.Bytes(), buf[:amount])
	} else {
		if err := b.drv.ReadBlocks(realStart, count, dbuf); err != nil {
			return mapError(err, false)
		}
		dbuf.InvalidateCache()
		intraOff := offset % B
		copy(dbuf.Bytes()[intraOff:intraOff+amount], buf[:amount])
	}

	dbuf.FlushCache()
	if err := b.drv.WriteBlocks(realStart, count, dbuf); err != nil {
		return mapError(err, true)
	}

	if offset+amount > h.byteLength {
		h.byteLength = offset + amount
	}
	b.ft.Update(h.slot, h.startBlock, h.blockCount, h.byteLength)
	return Ok
}

// growHandle extends h to cover extra more blocks, relocating and copying
// existing content if BlockAllocator.Grow can't extend in place (spec
// §4.6 xWrite step 2).
func (b *VfsBridge) growHandle(h *Handle, extra uint64) error {
	newStart, relocated, err := b.ba.Grow(h.startBlock, h.blockCount, extra)
	if err != nil {
		return err
	}
	if relocated && h.blockCount > 0 {
		old, err := mem.Alloc(b.pages, int(h.blockCount*B))
		if err != nil {
			return err
		}
		defer old.Release()
		if err := b.drv.ReadBlocks(h.startBlock, h.blockCount, old); err != nil {
			return err
		}
		old.InvalidateCache()
		if err := b.drv.WriteBlocks(newStart, h.blockCount, old); err != nil {
			return err
		}
		b.ba.Free(h.startBlock, h.blockCount)
	}
	if relocated {
		h.startBlock = newStart
	}
	h.blockCount += extra
	b.ft.Update(h.slot, h.startBlock, h.blockCount, h.byteLength)
	return nil
}

// XTruncate implements spec §4.6's xTruncate contract. Freed tail blocks
// return to the allocator immediately (spec §9's Open Question decision:
// "source immediately returns").
func (b *VfsBridge) XTruncate(h *Handle, newLength uint64) Code {
	b.mu.Lock()
	defer b.mu.Unlock()

	h.byteLength = newLength
	newBlockCount := (newLength + B - 1) / B
	if newBlockCount < h.blockCount {
		b.ba.Free(h.startBlock+newBlockCount, h.blockCount-newBlockCount)
		h.blockCount = newBlockCount
	}
	b.ft.Update(h.slot, h.startBlock, h.blockCount, h.byteLength)
	return Ok
}

// XSync is the ACID barrier of spec §4.6: bitmap write, then file-table
// write, then NVMe Flush, strictly in that order, so that a crash between
// steps never leaves the file table referring to unpersisted data.
func (b *VfsBridge) XSync(h *Handle, flags int) Code {
	b.mu.Lock()
	defer b.mu.Unlock()

	bitmapDirty, ftDirty := b.ba.Dirty(), b.ft.Dirty()

	if bitmapDirty {
		if err := b.ba.Flush(b.pages, b.drv); err != nil {
			return mapError(err, true)
		}
	}
	if ftDirty {
		if err := b.ba.FlushFileTable(b.pages, b.drv, b.ft); err != nil {
			return mapError(err, true)
		}
	}
	if err := b.drv.Flush(); err != nil {
		return mapError(err, true)
	}

	if b.audit != nil {
		b.audit.RecordSync(b.XCurrentTimeInt64(), bitmapDirty, ftDirty)
	}
	if b.stats != nil {
		b.stats.Snapshot(b.ba, b.drv)
	}
	return Ok
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
