package simnvme

import "unsafe"

// unsafeBase returns the address of a slice's backing array. mmap'd memory
// is never moved by the Go runtime (it is not part of any Go heap arena),
// so taking its address once and reusing it for the life of the test is
// sound, unlike doing this with an ordinary make()'d slice.
func unsafeBase(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}
