package libc_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"

	"github.com/hazyhaar/heavenos/libc"
)

func intCmp(a, b unsafe.Pointer) int {
	av, bv := *(*int32)(a), *(*int32)(b)
	return int(av - bv)
}

func TestQsortSortsIntegers(t *testing.T) {
	data := []int32{5, 3, 8, 1, 9, 2, 7, 4, 6, 0, -3, 100, 42, 17, 23}
	libc.Qsort(unsafe.Pointer(&data[0]), len(data), unsafe.Sizeof(data[0]), intCmp)

	for i := 1; i < len(data); i++ {
		assert.LessOrEqual(t, data[i-1], data[i])
	}
}

func TestBsearchFindsAndMisses(t *testing.T) {
	data := []int32{-3, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 17, 23, 42, 100}
	key := int32(17)
	found := libc.Bsearch(unsafe.Pointer(&key), unsafe.Pointer(&data[0]), len(data), unsafe.Sizeof(data[0]), intCmp)
	assert.NotNil(t, found)
	assert.Equal(t, int32(17), *(*int32)(found))

	miss := int32(99)
	notFound := libc.Bsearch(unsafe.Pointer(&miss), unsafe.Pointer(&data[0]), len(data), unsafe.Sizeof(data[0]), intCmp)
	assert.Nil(t, notFound)
}
