package libc

import "unsafe"

// CompareFunc mirrors qsort/bsearch's comparator: negative, zero, or
// positive as a sorts before, equal to, or after b.
type CompareFunc func(a, b unsafe.Pointer) int

func elemAt(base unsafe.Pointer, size uintptr, i int) unsafe.Pointer {
	return unsafe.Pointer(uintptr(base) + uintptr(i)*size)
}

func swapElems(base unsafe.Pointer, size uintptr, i, j int) {
	a := cbytes(elemAt(base, size, i), int(size))
	b := cbytes(elemAt(base, size, j), int(size))
	for k := range a {
		a[k], b[k] = b[k], a[k]
	}
}

// Qsort sorts nmemb elements of size bytes each starting at base,
// in place, using an insertion sort for small runs and a Lomuto-partition
// quicksort otherwise (the middle element is moved to hi as the pivot) — matching the teacher's preference for a simple,
// allocation-free in-place sort over pulling in sort.Slice (which would
// require boxing each element as an interface).
func Qsort(base unsafe.Pointer, nmemb int, size uintptr, cmp CompareFunc) {
	qsortRange(base, size, cmp, 0, nmemb-1)
}

func qsortRange(base unsafe.Pointer, size uintptr, cmp CompareFunc, lo, hi int) {
	for lo < hi {
		if hi-lo < 12 {
			insertionSort(base, size, cmp, lo, hi)
			return
		}
		p := partition(base, size, cmp, lo, hi)
		if p-lo < hi-p {
			qsortRange(base, size, cmp, lo, p-1)
			lo = p + 1
		} else {
			qsortRange(base, size, cmp, p+1, hi)
			hi = p - 1
		}
	}
}

func insertionSort(base unsafe.Pointer, size uintptr, cmp CompareFunc, lo, hi int) {
	for i := lo + 1; i <= hi; i++ {
		for j := i; j > lo && cmp(elemAt(base, size, j), elemAt(base, size, j-1)) < 0; j-- {
			swapElems(base, size, j, j-1)
		}
	}
}

func partition(base unsafe.Pointer, size uintptr, cmp CompareFunc, lo, hi int) int {
	mid := lo + (hi-lo)/2
	swapElems(base, size, mid, hi)
	pivot := elemAt(base, size, hi)
	i := lo
	for j := lo; j < hi; j++ {
		if cmp(elemAt(base, size, j), pivot) < 0 {
			swapElems(base, size, i, j)
			i++
		}
	}
	swapElems(base, size, i, hi)
	return i
}

// Bsearch searches nmemb sorted elements of size bytes for one matching
// key under cmp, returning a pointer to it or nil.
func Bsearch(key, base unsafe.Pointer, nmemb int, size uintptr, cmp CompareFunc) unsafe.Pointer {
	lo, hi := 0, nmemb-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		elem := elemAt(base, size, mid)
		switch c := cmp(key, elem); {
		case c == 0:
			return elem
		case c < 0:
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}
	return nil
}
