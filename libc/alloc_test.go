package libc_test

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/heavenos/libc"
)

func TestMallocReturnsZeroedMemoryOfRequestedSize(t *testing.T) {
	h := libc.NewHeap(4096)
	p := h.Malloc(64)
	require.NotNil(t, p)
	assert.GreaterOrEqual(t, h.SizeOfAllocation(p), uint32(64))

	b := unsafe.Slice((*byte)(p), 64)
	for _, v := range b {
		assert.Zero(t, v)
	}
}

func TestFreeThenMallocReusesSpace(t *testing.T) {
	h := libc.NewHeap(4096)
	a := h.Malloc(128)
	require.NotNil(t, a)
	h.Free(a)

	b := h.Malloc(128)
	require.NotNil(t, b)
	assert.Equal(t, a, b)
}

func TestMallocFailsWhenHeapExhausted(t *testing.T) {
	h := libc.NewHeap(256)
	p := h.Malloc(4096)
	assert.Nil(t, p)
}

func TestReallocGrowsAndPreservesContent(t *testing.T) {
	h := libc.NewHeap(8192)
	p := h.Malloc(16)
	require.NotNil(t, p)
	b := unsafe.Slice((*byte)(p), 16)
	for i := range b {
		b[i] = byte(i + 1)
	}

	grown := h.Realloc(p, 256)
	require.NotNil(t, grown)
	gb := unsafe.Slice((*byte)(grown), 16)
	for i := range gb {
		assert.Equal(t, byte(i+1), gb[i])
	}
}

func TestReallocToZeroFrees(t *testing.T) {
	h := libc.NewHeap(4096)
	p := h.Malloc(32)
	require.NotNil(t, p)
	got := h.Realloc(p, 0)
	assert.Nil(t, got)

	reused := h.Malloc(32)
	assert.Equal(t, p, reused)
}

func TestFreeCoalescesAdjacentFreeSegments(t *testing.T) {
	h := libc.NewHeap(4096)
	a := h.Malloc(64)
	b := h.Malloc(64)
	c := h.Malloc(64)
	require.NotNil(t, a)
	require.NotNil(t, b)
	require.NotNil(t, c)

	h.Free(a)
	h.Free(c)
	h.Free(b)

	big := h.Malloc(4096 - 256)
	assert.NotNil(t, big, "coalescing the three freed segments should satisfy a large request")
}
