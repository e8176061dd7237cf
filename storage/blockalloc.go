package storage

import (
	"sync"

	"github.com/hazyhaar/heavenos/kernel"
	"github.com/hazyhaar/heavenos/mem"
	"github.com/hazyhaar/heavenos/nvme"
)

// BlockAllocator is the on-disk bitmap allocator described in spec §4.4.
// Its bitmap lives in a DmaBuf rather than a plain Go slice so it can be
// read from and written to the NVMe device with no intermediate copy, the
// same reasoning mem.DmaBuf documents for device-visible buffers in
// general.
type BlockAllocator struct {
	mu sync.Mutex

	sb             Superblock
	bitmap         mem.DmaBuf
	totalBlocks    uint64
	firstDataBlock uint64
	dirty          bool

	Allocs kernel.Counter_t
	Frees  kernel.Counter_t
}

func (ba *BlockAllocator) bit(block uint64) bool {
	off := block / 8
	return ba.bitmap.Bytes()[off]&(1<<(block%8)) != 0
}

func (ba *BlockAllocator) setBit(block uint64, v bool) {
	buf := ba.bitmap.Bytes()
	off := block / 8
	mask := byte(1) << (block % 8)
	if v {
		buf[off] |= mask
	} else {
		buf[off] &^= mask
	}
}

// Format zeroes the bitmap, pins the system region (superblock + bitmap +
// file table) allocated, and writes superblock/bitmap/file-table/Flush to
// disk — spec §4.4's format() contract.
func Format(pages *mem.PhysPages, drv *nvme.Driver, totalBlocks uint64) (*BlockAllocator, *FileTable, error) {
	sb := Layout(totalBlocks)

	bitmapBuf, err := mem.Alloc(pages, int(sb.BitmapBlockCount*BlockSize))
	if err != nil {
		return nil, nil, err
	}
	for i := range bitmapBuf.Bytes() {
		bitmapBuf.Bytes()[i] = 0
	}

	ba := &BlockAllocator{
		sb:             sb,
		bitmap:         bitmapBuf,
		totalBlocks:    totalBlocks,
		firstDataBlock: sb.FirstDataBlock(),
	}
	ba.markRange(0, sb.FirstDataBlock(), true)
	ba.dirty = true

	ft := NewFileTable()

	if err := writeSuperblock(pages, drv, &sb); err != nil {
		return nil, nil, err
	}
	if err := ba.Flush(pages, drv); err != nil {
		return nil, nil, err
	}
	if err := flushFileTable(pages, drv, &sb, ft); err != nil {
		return nil, nil, err
	}
	if err := drv.Flush(); err != nil {
		return nil, nil, err
	}

	kernel.Logf("storage", "formatted volume: %d blocks, bitmap at LBA %d (%d blocks), file table at LBA %d (%d blocks)",
		totalBlocks, sb.BitmapStartLBA, sb.BitmapBlockCount, sb.FileTableStartLBA, sb.FileTableBlockCount)
	return ba, ft, nil
}

// Load reads the superblock, validates it, and reads the bitmap and file
// table into RAM — spec §4.4's load() contract.
func Load(pages *mem.PhysPages, drv *nvme.Driver) (*BlockAllocator, *FileTable, error) {
	sbBuf, err := mem.Alloc(pages, BlockSize)
	if err != nil {
		return nil, nil, err
	}
	defer sbBuf.Release()
	if err := drv.ReadBlocks(0, 1, sbBuf); err != nil {
		return nil, nil, err
	}
	sbBuf.InvalidateCache()
	sb, err := DecodeSuperblock(sbBuf.Bytes())
	if err != nil {
		return nil, nil, err
	}

	bitmapBuf, err := mem.Alloc(pages, int(sb.BitmapBlockCount*BlockSize))
	if err != nil {
		return nil, nil, err
	}
	if err := drv.ReadBlocks(sb.BitmapStartLBA, sb.BitmapBlockCount, bitmapBuf); err != nil {
		return nil, nil, err
	}
	bitmapBuf.InvalidateCache()

	ftBuf, err := mem.Alloc(pages, int(sb.FileTableBlockCount*BlockSize))
	if err != nil {
		return nil, nil, err
	}
	defer ftBuf.Release()
	if err := drv.ReadBlocks(sb.FileTableStartLBA, sb.FileTableBlockCount, ftBuf); err != nil {
		return nil, nil, err
	}
	ftBuf.InvalidateCache()
	ft := DecodeFileTable(ftBuf.Bytes())

	ba := &BlockAllocator{
		sb:             *sb,
		bitmap:         bitmapBuf,
		totalBlocks:    sb.TotalBlocks,
		firstDataBlock: sb.FirstDataBlock(),
	}
	return ba, ft, nil
}

func writeSuperblock(pages *mem.PhysPages, drv *nvme.Driver, sb *Superblock) error {
	buf, err := mem.Alloc(pages, BlockSize)
	if err != nil {
		return err
	}
	defer buf.Release()
	copy(buf.Bytes(), sb.Encode())
	buf.FlushCache()
	return drv.WriteBlocks(0, 1, buf)
}

func flushFileTable(pages *mem.PhysPages, drv *nvme.Driver, sb *Superblock, ft *FileTable) error {
	buf, err := mem.Alloc(pages, int(sb.FileTableBlockCount*BlockSize))
	if err != nil {
		return err
	}
	defer buf.Release()
	copy(buf.Bytes(), ft.EncodeBlocks(sb.FileTableBlockCount))
	buf.FlushCache()
	if err := drv.WriteBlocks(sb.FileTableStartLBA, sb.FileTableBlockCount, buf); err != nil {
		return err
	}
	ft.MarkClean()
	return nil
}

// FlushFileTable writes the file-table region to disk if dirty, per spec
// §4.5's flush(nvme) contract. It lives here (rather than on FileTable
// itself) because it needs the superblock's layout to know where to write.
func (ba *BlockAllocator) FlushFileTable(pages *mem.PhysPages, drv *nvme.Driver, ft *FileTable) error {
	if !ft.Dirty() {
		return nil
	}
	return flushFileTable(pages, drv, &ba.sb, ft)
}

func (ba *BlockAllocator) markRange(start, count uint64, allocated bool) {
	for b := start; b < start+count && b < ba.totalBlocks; b++ {
		ba.setBit(b, allocated)
	}
}

func (ba *BlockAllocator) runFree(first, count uint64) bool {
	for b := first; b < first+count; b++ {
		if ba.bit(b) {
			return false
		}
	}
	return true
}

// Alloc performs a first-fit linear scan over the data region for count
// free contiguous blocks (spec §4.4's alloc()).
func (ba *BlockAllocator) Alloc(count uint64) (uint64, error) {
	if count == 0 {
		panic("storage: zero-length block allocation")
	}
	ba.mu.Lock()
	defer ba.mu.Unlock()

	for start := ba.firstDataBlock; start+count <= ba.totalBlocks; start++ {
		if ba.runFree(start, count) {
			ba.markRange(start, count, true)
			ba.dirty = true
			ba.Allocs.Inc()
			return start, nil
		}
	}
	return 0, ErrNoSpace
}

// Free clears count bits starting at start. Already-free regions are
// silently ignored, per spec §4.4.
func (ba *BlockAllocator) Free(start, count uint64) {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	ba.markRange(start, count, false)
	ba.dirty = true
	ba.Frees.Inc()
}

// Grow extends an extent in place when possible, or allocates a fresh
// current_count+extra run otherwise, per spec §4.4's grow() contract. The
// caller (VfsBridge) is responsible for copying data into a relocated
// extent and freeing the old one.
func (ba *BlockAllocator) Grow(currentStart, currentCount, extra uint64) (newStart uint64, relocated bool, err error) {
	ba.mu.Lock()
	tailStart := currentStart + currentCount
	if tailStart+extra <= ba.totalBlocks && ba.runFree(tailStart, extra) {
		ba.markRange(tailStart, extra, true)
		ba.dirty = true
		ba.mu.Unlock()
		return currentStart, false, nil
	}
	ba.mu.Unlock()

	newRun, err := ba.Alloc(currentCount + extra)
	if err != nil {
		return 0, false, err
	}
	return newRun, true, nil
}

// Dirty reports whether the bitmap has unflushed changes.
func (ba *BlockAllocator) Dirty() bool { return ba.dirty }

// Flush writes the entire bitmap region to disk if dirty and clears the
// flag. It does not issue an NVMe Flush command — that barrier belongs to
// xSync, which coalesces it across both the bitmap and file-table writes
// (spec §4.4).
func (ba *BlockAllocator) Flush(pages *mem.PhysPages, drv *nvme.Driver) error {
	ba.mu.Lock()
	defer ba.mu.Unlock()
	if !ba.dirty {
		return nil
	}
	ba.bitmap.FlushCache()
	if err := drv.WriteBlocks(ba.sb.BitmapStartLBA, ba.sb.BitmapBlockCount, ba.bitmap); err != nil {
		return err
	}
	ba.dirty = false
	return nil
}

// Superblock returns a copy of the allocator's on-disk layout header.
func (ba *BlockAllocator) Superblock() Superblock { return ba.sb }
