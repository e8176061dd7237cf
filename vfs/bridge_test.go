package vfs_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/heavenos/mem"
	"github.com/hazyhaar/heavenos/nvme"
	"github.com/hazyhaar/heavenos/simnvme"
	"github.com/hazyhaar/heavenos/storage"
	"github.com/hazyhaar/heavenos/vfs"
)

type hostClock struct{}

func (hostClock) Now() time.Time { return time.Now() }
func (hostClock) Pause()         {}

type fakeRNG struct{}

func (fakeRNG) Read(buf []byte) error {
	for i := range buf {
		buf[i] = byte(i)
	}
	return nil
}

func newBridge(t *testing.T, numBlocks uint64) *vfs.VfsBridge {
	t.Helper()
	dev, err := simnvme.NewDevice(0x2000, 8<<20, storage.BlockSize, numBlocks)
	require.NoError(t, err)
	t.Cleanup(dev.Close)
	dev.Run()

	mem.SetHHDMOffset(dev.Phys.Base)
	_, nframes := dev.PhysPages()
	pages := mem.NewPhysPages(mem.PhysAddr(0), nframes, nil)

	driver, err := nvme.Bringup(dev.Bar(), pages, hostClock{}, 16, 16)
	require.NoError(t, err)

	ba, ft, err := storage.Format(driver.Pages(), driver, numBlocks)
	require.NoError(t, err)

	return vfs.New(driver.Pages(), driver, ba, ft, fakeRNG{}, hostClock{}, nil)
}

func TestWriteThenReadRoundTrips(t *testing.T) {
	b := newBridge(t, 4096)
	h, code := b.XOpen("main.db", vfs.FlagCreate)
	require.Equal(t, vfs.Ok, code)

	want := make([]byte, 100)
	for i := range want {
		want[i] = byte(i)
	}
	code = b.XWrite(h, want, uint64(len(want)), 0)
	require.Equal(t, vfs.Ok, code)

	got := make([]byte, 100)
	code = b.XRead(h, got, uint64(len(got)), 0)
	require.Equal(t, vfs.Ok, code)
	assert.Equal(t, want, got)
}

func TestReadPastEOFReturnsZerosAndShortRead(t *testing.T) {
	b := newBridge(t, 4096)
	h, code := b.XOpen("main.db", vfs.FlagCreate)
	require.Equal(t, vfs.Ok, code)

	buf := make([]byte, 16)
	for i := range buf {
		buf[i] = 0xFF
	}
	code = b.XRead(h, buf, uint64(len(buf)), 0)
	assert.Equal(t, vfs.IoErrShortRead, code)
	for _, bb := range buf {
		assert.Zero(t, bb)
	}
}

func TestSubBlockWriteLeavesNeighborsIntact(t *testing.T) {
	b := newBridge(t, 4096)
	h, code := b.XOpen("main.db", vfs.FlagCreate)
	require.Equal(t, vfs.Ok, code)

	base := make([]byte, 8192)
	for i := range base {
		base[i] = byte(i)
	}
	require.Equal(t, vfs.Ok, b.XWrite(h, base, uint64(len(base)), 0))

	code = b.XWrite(h, []byte{0xAB}, 1, 5000)
	require.Equal(t, vfs.Ok, code)

	got := make([]byte, 10)
	code = b.XRead(h, got, 10, 4995)
	require.Equal(t, vfs.Ok, code)

	assert.Equal(t, base[4995:5000], got[:5])
	assert.Equal(t, byte(0xAB), got[5])
	assert.Equal(t, base[5001:5005], got[6:10])
}

func TestGrowAcrossBlockBoundary(t *testing.T) {
	b := newBridge(t, 4096)
	h, code := b.XOpen("main.db", vfs.FlagCreate)
	require.Equal(t, vfs.Ok, code)

	payload := make([]byte, storage.BlockSize*6)
	for i := range payload {
		payload[i] = byte(i % 251)
	}
	code = b.XWrite(h, payload, uint64(len(payload)), 0)
	require.Equal(t, vfs.Ok, code)

	got := make([]byte, len(payload))
	code = b.XRead(h, got, uint64(len(got)), 0)
	require.Equal(t, vfs.Ok, code)
	assert.Equal(t, payload, got)
}

func TestTruncateShrinksAndFreesTail(t *testing.T) {
	b := newBridge(t, 4096)
	h, code := b.XOpen("main.db", vfs.FlagCreate)
	require.Equal(t, vfs.Ok, code)

	payload := make([]byte, storage.BlockSize*4)
	require.Equal(t, vfs.Ok, b.XWrite(h, payload, uint64(len(payload)), 0))

	code = b.XTruncate(h, storage.BlockSize)
	require.Equal(t, vfs.Ok, code)

	buf := make([]byte, 16)
	code = b.XRead(h, buf, 16, storage.BlockSize*2)
	assert.Equal(t, vfs.IoErrShortRead, code)
}

func TestSyncSucceedsAndIsIdempotent(t *testing.T) {
	b := newBridge(t, 4096)
	h, code := b.XOpen("main.db", vfs.FlagCreate)
	require.Equal(t, vfs.Ok, code)
	require.Equal(t, vfs.Ok, b.XWrite(h, []byte{1, 2, 3}, 3, 0))

	assert.Equal(t, vfs.Ok, b.XSync(h, 0))
	assert.Equal(t, vfs.Ok, b.XSync(h, 0))
}

func TestOpenNonexistentWithoutCreateFails(t *testing.T) {
	b := newBridge(t, 4096)
	_, code := b.XOpen("nope.db", 0)
	assert.Equal(t, vfs.CantOpen, code)
}

func TestShmMapAppendsStableRegions(t *testing.T) {
	b := newBridge(t, 4096)
	h, code := b.XOpen("main.db-shm", vfs.FlagCreate)
	require.Equal(t, vfs.Ok, code)

	r0, code := b.XShmMap(h, 0, 32768, true)
	require.Equal(t, vfs.Ok, code)
	r0[0] = 0x42

	r0again, code := b.XShmMap(h, 0, 32768, true)
	require.Equal(t, vfs.Ok, code)
	assert.Equal(t, byte(0x42), r0again[0], "remapping the same index returns the same backing storage")

	r1, code := b.XShmMap(h, 1, 32768, true)
	require.Equal(t, vfs.Ok, code)
	assert.Len(t, r1, 32768)
}
