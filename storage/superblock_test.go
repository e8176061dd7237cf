package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutPlacesRegionsInOrder(t *testing.T) {
	sb := Layout(100000)
	assert.Equal(t, uint64(1), sb.BitmapStartLBA)
	assert.Greater(t, sb.FileTableStartLBA, sb.BitmapStartLBA)
	assert.Greater(t, sb.FirstDataBlock(), sb.FileTableStartLBA)
}

func TestSuperblockEncodeDecodeRoundTrips(t *testing.T) {
	sb := Layout(4096)
	decoded, err := DecodeSuperblock(sb.Encode())
	require.NoError(t, err)
	assert.Equal(t, sb, *decoded)
}

func TestDecodeSuperblockRejectsBadMagic(t *testing.T) {
	buf := make([]byte, BlockSize)
	_, err := DecodeSuperblock(buf)
	assert.ErrorIs(t, err, ErrCorruptFs)
}

func TestDecodeSuperblockRejectsVersionMismatch(t *testing.T) {
	sb := Layout(4096)
	sb.Version = 99
	_, err := DecodeSuperblock(sb.Encode())
	assert.ErrorIs(t, err, ErrCorruptFs)
}
