// Package kernel holds small cross-cutting helpers shared by the storage
// substrate: integer rounding, atomic counters, and console logging. None of
// it is specific to memory, NVMe, or the VFS bridge, the way biscuit's
// util/stats packages sit underneath mem/fs/pci without depending on any of
// them.
package kernel

import "unsafe"

// Int is satisfied by all built-in integer types.
type Int interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// Min returns the smaller of a and b.
func Min[T Int](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max[T Int](a, b T) T {
	if a > b {
		return a
	}
	return b
}

// Rounddown aligns v down to the nearest multiple of b.
func Rounddown[T Int](v, b T) T {
	return v - (v % b)
}

// Roundup aligns v up to the nearest multiple of b.
func Roundup[T Int](v, b T) T {
	return Rounddown(v+b-1, b)
}

// Readn reads n little-endian bytes from a starting at off and returns the
// value. Panics on an out-of-bounds region or unsupported size, the way
// util.Readn does, since both indicate a bug in the caller's own layout
// math rather than a condition the caller can recover from.
func Readn(a []uint8, n int, off int) uint64 {
	if off < 0 || off+n > len(a) {
		panic("kernel.Readn: out of bounds")
	}
	p := unsafe.Pointer(&a[off])
	switch n {
	case 8:
		return *(*uint64)(p)
	case 4:
		return uint64(*(*uint32)(p))
	case 2:
		return uint64(*(*uint16)(p))
	case 1:
		return uint64(*(*uint8)(p))
	default:
		panic("kernel.Readn: unsupported size")
	}
}

// Writen writes val using sz little-endian bytes into a starting at off.
func Writen(a []uint8, sz int, off int, val uint64) {
	if off < 0 || off+sz > len(a) {
		panic("kernel.Writen: out of bounds")
	}
	p := unsafe.Pointer(&a[off])
	switch sz {
	case 8:
		*(*uint64)(p) = val
	case 4:
		*(*uint32)(p) = uint32(val)
	case 2:
		*(*uint16)(p) = uint16(val)
	case 1:
		*(*uint8)(p) = uint8(val)
	default:
		panic("kernel.Writen: unsupported size")
	}
}
