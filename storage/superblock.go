// Package storage implements the on-disk block allocator, file table, and
// superblock that sit between nvme.Driver and the VFS bridge. Layout and
// field-accessor style are grounded on biscuit's fs.Superblock_t
// (super.go) and fs.Bdev_block_t (blk.go), reworked from inode/log
// bookkeeping to the flat bitmap + file-table scheme this kernel needs.
package storage

import (
	"encoding/binary"
	"errors"

	"github.com/hazyhaar/heavenos/kernel"
)

// BlockSize is the on-disk block size, fixed to the assumed 4 KiB NVMe LBA
// size (spec §6). If you change this, FileTable's entries-per-block count
// and mkdisk's layout math must change with it.
const BlockSize = 4096

// Magic is the fixed 8-byte superblock signature (spec §6: "version starts
// at 1; layout is little-endian").
var Magic = [8]byte{'H', 'e', 'a', 'v', 'e', 'n', 'O', 'S'}

const CurrentVersion = 1

var (
	ErrCorruptFs = errors.New("storage: superblock magic or version mismatch")
	ErrBadLayout = errors.New("storage: block_size mismatch between superblock and driver")
)

// Superblock is the decoded LBA 0 header (spec §3/§6). It is written once
// at format time and never mutated in place afterward; Encode and
// DecodeSuperblock convert it to and from the raw 4 KiB block image.
type Superblock struct {
	Magic              [8]byte
	Version            uint32
	BlockSize          uint32
	TotalBlocks         uint64
	BitmapStartLBA      uint64
	BitmapBlockCount    uint64
	FileTableStartLBA   uint64
	FileTableBlockCount uint64
}

// Field byte offsets within the 4 KiB superblock block. Using fixed
// offsets rather than a packed struct cast keeps the on-disk layout
// independent of Go's struct layout rules, the same reasoning behind
// biscuit's fieldr/fieldw helpers over Superblock_t.Data.
const (
	sbOffMagic           = 0
	sbOffVersion         = 8
	sbOffBlockSize       = 12
	sbOffTotalBlocks     = 16
	sbOffBitmapStart     = 24
	sbOffBitmapCount     = 32
	sbOffFileTableStart  = 40
	sbOffFileTableCount  = 48
)

// Encode renders the superblock into a freshly zeroed 4 KiB block image.
func (sb *Superblock) Encode() []byte {
	buf := make([]byte, BlockSize)
	copy(buf[sbOffMagic:], sb.Magic[:])
	binary.LittleEndian.PutUint32(buf[sbOffVersion:], sb.Version)
	binary.LittleEndian.PutUint32(buf[sbOffBlockSize:], sb.BlockSize)
	binary.LittleEndian.PutUint64(buf[sbOffTotalBlocks:], sb.TotalBlocks)
	binary.LittleEndian.PutUint64(buf[sbOffBitmapStart:], sb.BitmapStartLBA)
	binary.LittleEndian.PutUint64(buf[sbOffBitmapCount:], sb.BitmapBlockCount)
	binary.LittleEndian.PutUint64(buf[sbOffFileTableStart:], sb.FileTableStartLBA)
	binary.LittleEndian.PutUint64(buf[sbOffFileTableCount:], sb.FileTableBlockCount)
	return buf
}

// DecodeSuperblock parses a 4 KiB block image read from LBA 0, validating
// magic and version. Corruption here is the one condition spec §7 calls
// out as unrecoverable: "refuses to mount."
func DecodeSuperblock(buf []byte) (*Superblock, error) {
	if len(buf) < BlockSize {
		return nil, ErrCorruptFs
	}
	sb := &Superblock{}
	copy(sb.Magic[:], buf[sbOffMagic:sbOffMagic+8])
	if sb.Magic != Magic {
		return nil, ErrCorruptFs
	}
	sb.Version = binary.LittleEndian.Uint32(buf[sbOffVersion:])
	if sb.Version != CurrentVersion {
		return nil, ErrCorruptFs
	}
	sb.BlockSize = binary.LittleEndian.Uint32(buf[sbOffBlockSize:])
	if sb.BlockSize != BlockSize {
		return nil, ErrBadLayout
	}
	sb.TotalBlocks = binary.LittleEndian.Uint64(buf[sbOffTotalBlocks:])
	sb.BitmapStartLBA = binary.LittleEndian.Uint64(buf[sbOffBitmapStart:])
	sb.BitmapBlockCount = binary.LittleEndian.Uint64(buf[sbOffBitmapCount:])
	sb.FileTableStartLBA = binary.LittleEndian.Uint64(buf[sbOffFileTableStart:])
	sb.FileTableBlockCount = binary.LittleEndian.Uint64(buf[sbOffFileTableCount:])
	return sb, nil
}

// Layout computes the on-disk geometry for a volume of totalBlocks blocks,
// per spec §6: superblock at LBA 0, bitmap at LBA 1, file table following
// the bitmap, data blocks after that.
func Layout(totalBlocks uint64) Superblock {
	bitmapBytes := (totalBlocks + 7) / 8
	bitmapBlocks := kernel.Roundup(bitmapBytes, BlockSize) / BlockSize
	if bitmapBlocks == 0 {
		bitmapBlocks = 1
	}
	ftBlocks := kernel.Roundup(uint64(EntrySize)*uint64(NumSlots), BlockSize) / BlockSize
	if ftBlocks == 0 {
		ftBlocks = 1
	}

	return Superblock{
		Magic:               Magic,
		Version:             CurrentVersion,
		BlockSize:           BlockSize,
		TotalBlocks:         totalBlocks,
		BitmapStartLBA:      1,
		BitmapBlockCount:    bitmapBlocks,
		FileTableStartLBA:   1 + bitmapBlocks,
		FileTableBlockCount: ftBlocks,
	}
}

// FirstDataBlock returns the first LBA past the file table, i.e. the
// first block available for BlockAllocator.alloc to hand out.
func (sb *Superblock) FirstDataBlock() uint64 {
	return sb.FileTableStartLBA + sb.FileTableBlockCount
}
