// Package vfs implements VfsBridge, the adapter between the embedded SQL
// engine's VFS contract and the storage.FileTable / storage.BlockAllocator
// / nvme.Driver stack underneath it. Structure and error-mapping style are
// grounded on biscuit's Disk_i/Bdev_block_t boundary (blk.go): a narrow
// interface the engine binds to, translating richer internal error kinds
// down to the caller's small return-code enum.
package vfs

import (
	"errors"

	"github.com/hazyhaar/heavenos/mem"
	"github.com/hazyhaar/heavenos/nvme"
	"github.com/hazyhaar/heavenos/storage"
)

// Code is the SQL engine's VFS return-code enum (spec §6). The bridge's
// own operations return a richer Go error internally and collapse it to
// one of these only at the method boundary the engine actually calls
// through (spec §9: "keep the core's error kinds richer than the engine's
// return codes; map them at the VFS boundary").
type Code int

const (
	Ok Code = iota
	IoErr
	IoErrRead
	IoErrWrite
	IoErrCorruptFs
	IoErrNoMem
	IoErrShortRead
	Busy
	CantOpen
	Full
	Misuse
)

func (c Code) String() string {
	switch c {
	case Ok:
		return "Ok"
	case IoErr:
		return "IoErr"
	case IoErrRead:
		return "IoErr_Read"
	case IoErrWrite:
		return "IoErr_Write"
	case IoErrCorruptFs:
		return "IoErr_CorruptFs"
	case IoErrNoMem:
		return "IoErr_NoMem"
	case IoErrShortRead:
		return "IoErr_ShortRead"
	case Busy:
		return "Busy"
	case CantOpen:
		return "CantOpen"
	case Full:
		return "Full"
	case Misuse:
		return "Misuse"
	default:
		return "Unknown"
	}
}

// ErrReadOnly describes a create refused under the read-only flag. XOpen
// reports that case as CantOpen; no bridge method returns this value.
var ErrReadOnly = errors.New("vfs: cannot create file, opened read-only")

// mapError collapses an internal error from mem/nvme/storage into the
// engine's Code enum. nvme.ErrMisuse (an invalid opcode or field, a
// driver bug) maps to Misuse; any other error not recognized here maps to
// IoErrWrite or IoErrRead according to isWrite.
func mapError(err error, isWrite bool) Code {
	if err == nil {
		return Ok
	}
	switch {
	case errors.Is(err, mem.ErrOutOfMemory), errors.Is(err, mem.ErrBadSize):
		return IoErrNoMem
	case errors.Is(err, storage.ErrNoSpace):
		return Full
	case errors.Is(err, storage.ErrNameExists), errors.Is(err, storage.ErrNotFound):
		return CantOpen
	case errors.Is(err, storage.ErrCorruptFs), errors.Is(err, storage.ErrBadLayout), errors.Is(err, nvme.ErrCorruption):
		return IoErrCorruptFs
	case errors.Is(err, nvme.ErrIoRead):
		return IoErrRead
	case errors.Is(err, nvme.ErrIoWrite):
		return IoErrWrite
	case errors.Is(err, nvme.ErrTimeout), errors.Is(err, nvme.ErrIoError):
		return IoErr
	case errors.Is(err, nvme.ErrBusy):
		return Busy
	case errors.Is(err, nvme.ErrMisuse):
		return Misuse
	default:
		if isWrite {
			return IoErrWrite
		}
		return IoErrRead
	}
}
