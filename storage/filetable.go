package storage

import (
	"encoding/binary"
	"errors"
)

// EntrySize is the on-disk size of one file-table entry (spec §6:
// "96 bytes per entry").
const EntrySize = 96

// NumSlots is the reference layout's fixed table capacity (spec §3: "42
// entries in the reference layout").
const NumSlots = 42

// Reserved slot numbers (spec §6).
const (
	SlotMainDB      = 0
	SlotMainWAL     = 1
	SlotMainSHM     = 2
	SlotMainJournal = 3
	SlotTempFirst   = 4
	SlotTempLast    = 7
)

const (
	nameFieldLen = 64
	flagReadOnly = 1 << 0
)

var (
	ErrNoSpace    = errors.New("storage: file table full")
	ErrNameExists = errors.New("storage: name already present in file table")
	ErrNotFound   = errors.New("storage: no entry with that name")
	ErrReadOnly   = errors.New("storage: refusing to create file, read-only flag set")
)

// Entry is one FileTable slot: a named, contiguous block extent plus the
// logical byte length within it (spec §3's FileTable entry).
type Entry struct {
	Name       string
	StartBlock uint64
	BlockCount uint64
	ByteLength uint64
	Flags      uint32
	inUse      bool
}

func (e *Entry) encode(buf []byte) {
	for i := range buf[:nameFieldLen] {
		buf[i] = 0
	}
	copy(buf[:nameFieldLen], e.Name)
	binary.LittleEndian.PutUint64(buf[64:], e.StartBlock)
	binary.LittleEndian.PutUint64(buf[72:], e.BlockCount)
	binary.LittleEndian.PutUint64(buf[80:], e.ByteLength)
	binary.LittleEndian.PutUint32(buf[88:], e.Flags)
}

func decodeEntry(buf []byte) Entry {
	nameEnd := 0
	for nameEnd < nameFieldLen && buf[nameEnd] != 0 {
		nameEnd++
	}
	e := Entry{
		Name:       string(buf[:nameEnd]),
		StartBlock: binary.LittleEndian.Uint64(buf[64:]),
		BlockCount: binary.LittleEndian.Uint64(buf[72:]),
		ByteLength: binary.LittleEndian.Uint64(buf[80:]),
		Flags:      binary.LittleEndian.Uint32(buf[88:]),
	}
	e.inUse = e.Name != "" || e.BlockCount != 0
	return e
}

// FileTable is the fixed-size table of named extents. Allocation and
// growth delegate to a BlockAllocator; FileTable itself only tracks the
// mapping and its own on-disk dirty state, mirroring how biscuit's
// Bdev_block_t separates "what's cached" from "who allocates the page."
type FileTable struct {
	entries [NumSlots]Entry
	dirty   bool
}

// NewFileTable builds an empty table with the reserved slots pre-named,
// the way format() lays them down before the SQL engine ever opens a
// handle (spec §4.5: "reserved at format time so that the SQL engine's
// predictable name lookups resolve to stable slots").
func NewFileTable() *FileTable {
	ft := &FileTable{}
	names := [...]string{
		SlotMainDB:      "main.db",
		SlotMainWAL:     "main.db-wal",
		SlotMainSHM:     "main.db-shm",
		SlotMainJournal: "main.db-journal",
	}
	for slot, name := range names {
		ft.entries[slot] = Entry{Name: name, inUse: true}
	}
	for slot := SlotTempFirst; slot <= SlotTempLast; slot++ {
		ft.entries[slot] = Entry{Name: tempName(slot), inUse: true}
	}
	ft.dirty = true
	return ft
}

func tempName(slot int) string {
	const digits = "0123456789"
	return "temp_" + string(digits[slot-SlotTempFirst])
}

// Lookup returns the slot holding name, or ErrNotFound.
func (ft *FileTable) Lookup(name string) (int, error) {
	for i := range ft.entries {
		if ft.entries[i].inUse && ft.entries[i].Name == name {
			return i, nil
		}
	}
	return -1, ErrNotFound
}

// Entry returns a copy of the slot's current entry.
func (ft *FileTable) Entry(slot int) Entry {
	return ft.entries[slot]
}

// Create finds a free slot past the reserved ones (a name already in the
// table, reserved names included, gives ErrNameExists), allocates initialBlocks via alloc, and fills the entry in. alloc has the
// same signature as BlockAllocator.Alloc, kept as a function parameter so
// FileTable never needs to import storage's own allocator type, the same
// decoupling biscuit's Blockmem_i interface gives Bdev_block_t from a
// concrete page allocator.
func (ft *FileTable) Create(name string, initialBlocks uint64, alloc func(uint64) (uint64, error)) (int, error) {
	if _, err := ft.Lookup(name); err == nil {
		return -1, ErrNameExists
	}
	slot := ft.findFreeSlot()
	if slot < 0 {
		return -1, ErrNoSpace
	}

	var start uint64
	if initialBlocks > 0 {
		s, err := alloc(initialBlocks)
		if err != nil {
			return -1, err
		}
		start = s
	}

	ft.entries[slot] = Entry{Name: name, StartBlock: start, BlockCount: initialBlocks, inUse: true}
	ft.dirty = true
	return slot, nil
}

// CreateTemp allocates the next free reserved temp slot (spec §4.6
// xOpen: "if name is null (temp file) allocate the next free temp slot
// with zero initial blocks").
func (ft *FileTable) CreateTemp() (int, error) {
	for slot := SlotTempFirst; slot <= SlotTempLast; slot++ {
		if ft.entries[slot].BlockCount == 0 && ft.entries[slot].ByteLength == 0 {
			return slot, nil
		}
	}
	return -1, ErrNoSpace
}

func (ft *FileTable) findFreeSlot() int {
	for i := SlotTempLast + 1; i < NumSlots; i++ {
		if !ft.entries[i].inUse {
			return i
		}
	}
	return -1
}

// Update rewrites a slot's extent/length in memory and marks the table
// dirty (spec §4.5: "in-memory, mark dirty").
func (ft *FileTable) Update(slot int, newStart, newCount, newLength uint64) {
	e := &ft.entries[slot]
	e.StartBlock, e.BlockCount, e.ByteLength = newStart, newCount, newLength
	e.inUse = true
	ft.dirty = true
}

// Dirty reports whether the table has unflushed changes.
func (ft *FileTable) Dirty() bool { return ft.dirty }

// MarkClean clears the dirty flag after a successful flush.
func (ft *FileTable) MarkClean() { ft.dirty = false }

// EncodeBlocks renders the whole table into blockCount blocks worth of
// bytes, ready to hand to a write. (The bitmap needs no such step:
// BlockAllocator.Flush writes it straight from its DmaBuf.)
func (ft *FileTable) EncodeBlocks(blockCount uint64) []byte {
	buf := make([]byte, blockCount*BlockSize)
	for i := range ft.entries {
		off := i * EntrySize
		if off+EntrySize > len(buf) {
			break
		}
		ft.entries[i].encode(buf[off : off+EntrySize])
	}
	return buf
}

// DecodeFileTable reconstructs a FileTable from its on-disk block image.
func DecodeFileTable(buf []byte) *FileTable {
	ft := &FileTable{}
	for i := range ft.entries {
		off := i * EntrySize
		if off+EntrySize > len(buf) {
			break
		}
		ft.entries[i] = decodeEntry(buf[off : off+EntrySize])
	}
	return ft
}
