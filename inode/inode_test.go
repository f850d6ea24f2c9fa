package inode

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordSizeIsNormative(t *testing.T) {
	// Mirrors the original C implementation's
	// _Static_assert(sizeof(MetadadosArquivo) == 309, ...).
	assert.Equal(t, 309, RecordSize)
	assert.Len(t, Encode(Inode{}), 309)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Unix(1_700_000_000, 0).UTC()
	original := Inode{
		Name:       "hello.txt",
		Size:       42,
		Created:    now,
		Modified:   now,
		Accessed:   now,
		FirstBlock: 7,
		NumBlocks:  1,
		Mode:       0100644,
		UID:        1000,
		GID:        1000,
		IsDir:      false,
	}

	encoded := Encode(original)
	require.Len(t, encoded, RecordSize)

	decoded, err := Decode(encoded)
	require.Nil(t, err)
	assert.Equal(t, original.Name, decoded.Name)
	assert.Equal(t, original.Size, decoded.Size)
	assert.Equal(t, original.Created.Unix(), decoded.Created.Unix())
	assert.Equal(t, original.FirstBlock, decoded.FirstBlock)
	assert.Equal(t, original.NumBlocks, decoded.NumBlocks)
	assert.Equal(t, original.Mode, decoded.Mode)
	assert.False(t, decoded.IsDir)
}

func TestDecodeFreeSlot(t *testing.T) {
	blank := make([]byte, RecordSize)
	decoded, err := Decode(blank)
	require.Nil(t, err)
	assert.True(t, decoded.IsFree())
}

func TestDecodeShortRecordIsIOError(t *testing.T) {
	_, err := Decode(make([]byte, RecordSize-1))
	require.NotNil(t, err)
}

func TestUnallocatedBlockSentinel(t *testing.T) {
	assert.Equal(t, uint32(0xFFFFFFFF), UnallocatedBlock)
}
