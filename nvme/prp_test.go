package nvme_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/heavenos/mem"
	"github.com/hazyhaar/heavenos/nvme"
)

// TestBuildPRPBoundaries pins the four cases spec §8 calls out by name:
// exactly one page, one byte into a second page, exactly two pages, and one
// byte into a third page (which forces the PRP-list path). Run against the
// same simnvme-backed PhysPages the rest of this package tests against, so
// BuildPRP's list-page writes land in real mmap'd memory instead of an
// address nothing backs.
func TestBuildPRPBoundaries(t *testing.T) {
	driver, _ := newHarness(t, 64)
	pages := driver.Pages()

	buf, err := mem.Alloc(pages, 3*mem.PageSize)
	require.NoError(t, err)
	phys := buf.Phys()

	cases := []struct {
		name     string
		length   int
		wantPRP2 bool
		wantList bool
	}{
		{"exactly 4 KiB", mem.PageSize, false, false},
		{"4 KiB + 1 byte", mem.PageSize + 1, true, false},
		{"exactly 8 KiB", 2 * mem.PageSize, true, false},
		{"8 KiB + 1 byte", 2*mem.PageSize + 1, true, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			prp1, prp2, list, err := nvme.BuildPRP(pages, phys, c.length)
			require.NoError(t, err)
			assert.Equal(t, uint64(phys), prp1)
			if c.wantPRP2 {
				assert.NotZero(t, prp2)
			} else {
				assert.Zero(t, prp2)
			}
			if c.wantList {
				assert.NotZero(t, list.Phys(), "PRP list page must be allocated past two pages")
				list.Release()
			} else {
				assert.Zero(t, list.Phys())
			}
		})
	}
}
