package mem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	// Tests run on the host, which has no HHDM; use offset zero so virtual
	// equals physical. The tests here check lengths and frame counts only
	// and never touch Bytes().
	SetHHDMOffset(uintptr(0))
}

func TestDmaBufAllocRoundsUpToPage(t *testing.T) {
	pp := freshPages(t, 16)
	d, err := Alloc(pp, 1)
	require.NoError(t, err)
	assert.Equal(t, PageSize, d.Len())
}

func TestDmaBufReleaseReturnsFrames(t *testing.T) {
	pp := freshPages(t, 16)
	before := pp.FreeFrames()

	d, err := Alloc(pp, PageSize*3)
	require.NoError(t, err)
	assert.Equal(t, PageSize*3, d.Len())

	d.Release()
	assert.Equal(t, before, pp.FreeFrames())
}

func TestDmaBufRejectsNonPositiveSize(t *testing.T) {
	pp := freshPages(t, 4)
	_, err := Alloc(pp, 0)
	assert.ErrorIs(t, err, ErrBadSize)
}
