package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAlloc(next *uint64) func(uint64) (uint64, error) {
	return func(count uint64) (uint64, error) {
		start := *next
		*next += count
		return start, nil
	}
}

func TestNewFileTableReservesWellKnownSlots(t *testing.T) {
	ft := NewFileTable()
	assert.Equal(t, "main.db", ft.Entry(SlotMainDB).Name)
	assert.Equal(t, "main.db-wal", ft.Entry(SlotMainWAL).Name)
	assert.Equal(t, "main.db-shm", ft.Entry(SlotMainSHM).Name)
	assert.Equal(t, "main.db-journal", ft.Entry(SlotMainJournal).Name)
	assert.Equal(t, "temp_0", ft.Entry(SlotTempFirst).Name)
	assert.Equal(t, "temp_3", ft.Entry(SlotTempLast).Name)
	assert.True(t, ft.Dirty(), "reserved slots are written at format time")
}

func TestCreateAssignsFreeSlotAndAllocates(t *testing.T) {
	ft := NewFileTable()
	var next uint64 = 1000

	slot, err := ft.Create("extra.db", 3, fakeAlloc(&next))
	require.NoError(t, err)
	assert.Greater(t, slot, SlotTempLast)

	e := ft.Entry(slot)
	assert.Equal(t, "extra.db", e.Name)
	assert.Equal(t, uint64(1000), e.StartBlock)
	assert.Equal(t, uint64(3), e.BlockCount)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	ft := NewFileTable()
	var next uint64
	_, err := ft.Create("main.db", 0, fakeAlloc(&next))
	assert.ErrorIs(t, err, ErrNameExists)
}

func TestLookupNotFound(t *testing.T) {
	ft := NewFileTable()
	_, err := ft.Lookup("does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateTempCyclesThroughReservedSlots(t *testing.T) {
	ft := NewFileTable()
	slot, err := ft.CreateTemp()
	require.NoError(t, err)
	assert.Equal(t, SlotTempFirst, slot)

	ft.Update(slot, 1, 1, BlockSize)
	slot2, err := ft.CreateTemp()
	require.NoError(t, err)
	assert.Equal(t, SlotTempFirst+1, slot2)
}

func TestUpdateMarksDirtyAndEncodesRoundTrip(t *testing.T) {
	ft := NewFileTable()
	ft.MarkClean()
	require.False(t, ft.Dirty())

	ft.Update(SlotMainDB, 50, 4, 12345)
	assert.True(t, ft.Dirty())

	sb := Layout(4096)
	buf := ft.EncodeBlocks(sb.FileTableBlockCount)
	decoded := DecodeFileTable(buf)

	got := decoded.Entry(SlotMainDB)
	assert.Equal(t, "main.db", got.Name)
	assert.Equal(t, uint64(50), got.StartBlock)
	assert.Equal(t, uint64(4), got.BlockCount)
	assert.Equal(t, uint64(12345), got.ByteLength)
}

func TestFileTableFullReturnsNoSpace(t *testing.T) {
	ft := NewFileTable()
	var next uint64
	for i := SlotTempLast + 1; i < NumSlots; i++ {
		_, err := ft.Create(nameFor(i), 0, fakeAlloc(&next))
		require.NoError(t, err)
	}
	_, err := ft.Create("one-too-many", 0, fakeAlloc(&next))
	assert.ErrorIs(t, err, ErrNoSpace)
}

func nameFor(i int) string {
	return "f" + string(rune('a'+i))
}
