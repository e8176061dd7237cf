// Package libc provides the freestanding libc subset the embedded SQL
// engine links against (spec §4.7): byte/string primitives, ctype
// classifiers, number parsing, bounded formatting, qsort/bsearch, a math
// function set, and the allocator routing layer. Signatures mirror the C
// ABI (unsafe.Pointer + explicit lengths) since these functions are the
// cgo-style boundary the engine's C source calls through — grounded on
// iansmith-mazarin's freestanding runtime (heap.go, kernel.go), the one
// example repo in the pack that implements libc-adjacent primitives
// (bzero, page/heap management) without a host OS underneath it.
package libc

import "unsafe"

// Memcpy copies n bytes from src to dst. Regions must not overlap (use
// Memmove for that); the compiler may also lower this via an intrinsic,
// per spec §4.7, but this implementation is the fallback used when it
// doesn't.
func Memcpy(dst, src unsafe.Pointer, n uintptr) unsafe.Pointer {
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	copy(d, s)
	return dst
}

// Memmove copies n bytes from src to dst, correctly handling overlap.
func Memmove(dst, src unsafe.Pointer, n uintptr) unsafe.Pointer {
	d := unsafe.Slice((*byte)(dst), n)
	s := unsafe.Slice((*byte)(src), n)
	if uintptr(dst) < uintptr(src) || uintptr(dst) >= uintptr(src)+n {
		copy(d, s)
		return dst
	}
	for i := int(n) - 1; i >= 0; i-- {
		d[i] = s[i]
	}
	return dst
}

// Memset fills n bytes at dst with the low byte of c.
func Memset(dst unsafe.Pointer, c int, n uintptr) unsafe.Pointer {
	d := unsafe.Slice((*byte)(dst), n)
	b := byte(c)
	for i := range d {
		d[i] = b
	}
	return dst
}

// Memcmp compares n bytes at a and b, returning <0, 0, or >0 the way C's
// memcmp does (unsigned byte comparison).
func Memcmp(a, b unsafe.Pointer, n uintptr) int {
	sa := unsafe.Slice((*byte)(a), n)
	sb := unsafe.Slice((*byte)(b), n)
	for i := range sa {
		if sa[i] != sb[i] {
			return int(sa[i]) - int(sb[i])
		}
	}
	return 0
}
