// Package simnvme is a software double for an NVMe controller plus the
// physical memory it DMAs into, used to exercise nvme.Driver end-to-end on
// a host with no real PCIe bus. It stands in for hardware the same way
// dswarbrick-smart decodes canned Identify buffers instead of opening a
// real /dev/nvme0 — except here the fake sits *below* our own driver code,
// not above an ioctl, so the driver's register-level bring-up, PRP
// construction, and completion-queue polling all run unmodified against it.
package simnvme

import (
	"os"

	"golang.org/x/sys/unix"
)

// Arena is a page-aligned, host-backed region of memory standing in for
// the physical address space a real kernel would address through its
// HHDM. Backed by an anonymous mmap via golang.org/x/sys/unix so its
// address is stable for the lifetime of the test (Go's heap slices make no
// such promise), matching the way a real HHDM maps every physical frame at
// a fixed offset for the life of the machine.
type Arena struct {
	Data []byte
	Base uintptr

	file *os.File // non-nil only for file-backed arenas (see NewFileArena)
}

// NewArena allocates size bytes (rounded up to the host page size) of
// anonymous, page-aligned memory.
func NewArena(size int) (*Arena, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	return &Arena{Data: data, Base: uintptr(unsafeBase(data))}, nil
}

// NewFileArena maps size bytes of the file at path into memory, growing or
// truncating the file to exactly size first. This is cmd/mkdisk's on-disk
// persistence path: the same unix.Mmap call NewArena uses for anonymous
// memory, pointed at a real file descriptor instead of -1 with
// MAP_SHARED, so a formatted image survives process exit the way a real
// NVMe namespace's media would.
func NewFileArena(path string, size int) (*Arena, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, err
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Arena{Data: data, Base: uintptr(unsafeBase(data)), file: f}, nil
}

// Close releases the arena's backing memory, syncing it back to disk first
// when the arena is file-backed.
func (a *Arena) Close() error {
	if a.file != nil {
		unix.Msync(a.Data, unix.MS_SYNC)
	}
	err := unix.Munmap(a.Data)
	if a.file != nil {
		if cerr := a.file.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
