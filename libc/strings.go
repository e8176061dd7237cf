package libc

import "unsafe"

func cbytes(p unsafe.Pointer, max int) []byte {
	return unsafe.Slice((*byte)(p), max)
}

// Strlen returns the length of the NUL-terminated string at s.
func Strlen(s unsafe.Pointer) uintptr {
	b := cbytes(s, 1<<30)
	for i := 0; ; i++ {
		if b[i] == 0 {
			return uintptr(i)
		}
	}
}

// Strcmp compares two NUL-terminated strings lexicographically.
func Strcmp(a, b unsafe.Pointer) int {
	ba, bb := cbytes(a, 1<<30), cbytes(b, 1<<30)
	for i := 0; ; i++ {
		ca, cb := ba[i], bb[i]
		if ca != cb {
			return int(ca) - int(cb)
		}
		if ca == 0 {
			return 0
		}
	}
}

// Strncmp compares at most n bytes of two NUL-terminated strings.
func Strncmp(a, b unsafe.Pointer, n uintptr) int {
	ba, bb := cbytes(a, int(n)), cbytes(b, int(n))
	for i := uintptr(0); i < n; i++ {
		ca, cb := ba[i], bb[i]
		if ca != cb {
			return int(ca) - int(cb)
		}
		if ca == 0 {
			return 0
		}
	}
	return 0
}

// Strchr returns a pointer to the first occurrence of c in s, or nil.
func Strchr(s unsafe.Pointer, c byte) unsafe.Pointer {
	b := cbytes(s, 1<<30)
	for i := 0; ; i++ {
		if b[i] == c {
			return unsafe.Pointer(uintptr(s) + uintptr(i))
		}
		if b[i] == 0 {
			return nil
		}
	}
}

// Strrchr returns a pointer to the last occurrence of c in s, or nil.
func Strrchr(s unsafe.Pointer, c byte) unsafe.Pointer {
	n := Strlen(s)
	b := cbytes(s, int(n)+1)
	for i := int(n); i >= 0; i-- {
		if b[i] == c {
			return unsafe.Pointer(uintptr(s) + uintptr(i))
		}
	}
	return nil
}

// Strcpy copies the NUL-terminated string at src (including the
// terminator) into dst. The caller must ensure dst is large enough.
func Strcpy(dst, src unsafe.Pointer) unsafe.Pointer {
	n := Strlen(src) + 1
	Memcpy(dst, src, n)
	return dst
}

// Strncpy copies at most n bytes from src into dst, NUL-padding dst if
// src's string is shorter than n (the classic, slightly dangerous C
// semantics — it does not guarantee dst ends up NUL-terminated if src's
// length is >= n).
func Strncpy(dst, src unsafe.Pointer, n uintptr) unsafe.Pointer {
	d := cbytes(dst, int(n))
	s := cbytes(src, int(n))
	copying := true
	for i := uintptr(0); i < n; i++ {
		if copying {
			d[i] = s[i]
			if s[i] == 0 {
				copying = false
			}
		} else {
			d[i] = 0
		}
	}
	return dst
}

// Strcat appends the NUL-terminated string at src to the end of the
// NUL-terminated string at dst.
func Strcat(dst, src unsafe.Pointer) unsafe.Pointer {
	tail := unsafe.Pointer(uintptr(dst) + Strlen(dst))
	Strcpy(tail, src)
	return dst
}

// Strncat appends at most n bytes of src to dst, always NUL-terminating
// the result (unlike Strncpy).
func Strncat(dst, src unsafe.Pointer, n uintptr) unsafe.Pointer {
	tail := uintptr(dst) + Strlen(dst)
	s := cbytes(src, int(n))
	d := cbytes(unsafe.Pointer(tail), int(n)+1)
	var i uintptr
	for ; i < n && s[i] != 0; i++ {
		d[i] = s[i]
	}
	d[i] = 0
	return dst
}

// Strstr finds the first occurrence of the NUL-terminated needle in the
// NUL-terminated haystack, or nil if absent.
func Strstr(haystack, needle unsafe.Pointer) unsafe.Pointer {
	hn := Strlen(haystack)
	nn := Strlen(needle)
	if nn == 0 {
		return haystack
	}
	if nn > hn {
		return nil
	}
	h := cbytes(haystack, int(hn))
	nd := cbytes(needle, int(nn))
	for i := 0; i+int(nn) <= int(hn); i++ {
		match := true
		for j := 0; j < int(nn); j++ {
			if h[i+j] != nd[j] {
				match = false
				break
			}
		}
		if match {
			return unsafe.Pointer(uintptr(haystack) + uintptr(i))
		}
	}
	return nil
}

// Strpbrk locates the first occurrence in s of any byte from accept.
func Strpbrk(s, accept unsafe.Pointer) unsafe.Pointer {
	set := byteSet(accept)
	b := cbytes(s, 1<<30)
	for i := 0; ; i++ {
		if b[i] == 0 {
			return nil
		}
		if set[b[i]] {
			return unsafe.Pointer(uintptr(s) + uintptr(i))
		}
	}
}

// Strspn returns the length of the initial segment of s consisting
// entirely of bytes from accept.
func Strspn(s, accept unsafe.Pointer) uintptr {
	set := byteSet(accept)
	b := cbytes(s, 1<<30)
	var n uintptr
	for b[n] != 0 && set[b[n]] {
		n++
	}
	return n
}

// Strcspn returns the length of the initial segment of s consisting
// entirely of bytes NOT from reject.
func Strcspn(s, reject unsafe.Pointer) uintptr {
	set := byteSet(reject)
	b := cbytes(s, 1<<30)
	var n uintptr
	for b[n] != 0 && !set[b[n]] {
		n++
	}
	return n
}

func byteSet(s unsafe.Pointer) [256]bool {
	var set [256]bool
	b := cbytes(s, 1<<30)
	for i := 0; b[i] != 0; i++ {
		set[b[i]] = true
	}
	return set
}
