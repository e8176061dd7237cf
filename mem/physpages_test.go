package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshPages(t *testing.T, nframes uint64) *PhysPages {
	t.Helper()
	return NewPhysPages(PhysAddr(0x100000), nframes, nil)
}

func TestAllocFreeRoundTrip(t *testing.T) {
	pp := freshPages(t, 64)
	before := pp.FreeFrames()

	a, err := pp.AllocPagesContiguous(4, 1)
	require.NoError(t, err)
	b, err := pp.AllocPagesContiguous(4, 1)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	pp.FreePages(a, 4)
	pp.FreePages(b, 4)
	assert.Equal(t, before, pp.FreeFrames())
}

func TestAllocIsFirstFit(t *testing.T) {
	pp := freshPages(t, 16)

	a, err := pp.AllocPagesContiguous(4, 1)
	require.NoError(t, err)
	pp.FreePages(a, 4)

	b, err := pp.AllocPagesContiguous(4, 1)
	require.NoError(t, err)
	assert.Equal(t, a, b, "alloc(n); free(n); alloc(n) must return the same start (first-fit)")
}

func TestAllocRespectsAlignment(t *testing.T) {
	pp := freshPages(t, 32)

	// Burn one frame so the next free frame is not already aligned to 4.
	_, err := pp.AllocPagesContiguous(1, 1)
	require.NoError(t, err)

	base, err := pp.AllocPagesContiguous(2, 4)
	require.NoError(t, err)
	assert.Zero(t, uint64(base-pp.base)/PageSize%4)
}

func TestOutOfMemory(t *testing.T) {
	pp := freshPages(t, 4)
	_, err := pp.AllocPagesContiguous(5, 1)
	assert.ErrorIs(t, err, ErrOutOfMemory)
}

func TestDoubleFreeIsSilentlyCounted(t *testing.T) {
	pp := freshPages(t, 8)
	a, err := pp.AllocPagesContiguous(2, 1)
	require.NoError(t, err)

	pp.FreePages(a, 2)
	assert.Zero(t, pp.DoubleFrees.Get())

	pp.FreePages(a, 2)
	assert.Equal(t, int64(2), pp.DoubleFrees.Get(), "each already-free frame increments the counter")
}

func TestReservedRegionsArePinned(t *testing.T) {
	base := PhysAddr(0x100000)
	pp := NewPhysPages(base, 16, []reservedRegion{ReservedRegion(base, PageSize*2)})
	assert.Equal(t, uint64(14), pp.FreeFrames())

	// The allocator must never hand back a reserved frame.
	a, err := pp.AllocPagesContiguous(1, 1)
	require.NoError(t, err)
	assert.NotEqual(t, base, a)
	assert.NotEqual(t, base+PageSize, a)
}
