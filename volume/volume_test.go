package volume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mountFresh(t *testing.T, width, height int32) (*Volume, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "volume.bmp")
	vol, err := Mount(Options{ImagePath: path, ProvisionWidth: width, ProvisionHeight: height})
	require.Nil(t, err)
	return vol, path
}

func TestMountProvisionsMissingImage(t *testing.T) {
	vol, _ := mountFresh(t, 64, 64)
	defer vol.Unmount()

	geometry := vol.Geometry()
	// row_size(64) = (64*3+3) &^ 3 = 192; data_size = 192*64 = 12288.
	assert.EqualValues(t, 12288, geometry.DataSize)
	assert.EqualValues(t, 12288/512, geometry.TotalBlocks)
	assert.Len(t, vol.Inodes(), int(geometry.MaxFiles))
}

func TestMountRejectsBadSignature(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.bmp")
	require.NoError(t, writeAllZeroFile(path, 128))

	_, err := Mount(Options{ImagePath: path})
	require.NotNil(t, err)
}

func TestBlockIOWriteThenRead(t *testing.T) {
	vol, _ := mountFresh(t, 64, 64)
	defer vol.Unmount()

	data := make([]byte, vol.BlockSize())
	for i := range data {
		data[i] = 0x41
	}

	start, allocErr := vol.Allocator().AllocateRun(1)
	require.Nil(t, allocErr)

	require.Nil(t, vol.WriteBlocks(start, data))
	readBack, readErr := vol.ReadBlocks(start, 1)
	require.Nil(t, readErr)
	assert.Equal(t, data, readBack)
}

func TestRemountPreservesMetadata(t *testing.T) {
	vol, path := mountFresh(t, 64, 64)

	start, allocErr := vol.Allocator().AllocateRun(1)
	require.Nil(t, allocErr)
	inodes := vol.Inodes()
	inodes[0].Name = "persisted"
	inodes[0].FirstBlock = start
	inodes[0].NumBlocks = 1
	inodes[0].Size = 7

	require.Nil(t, vol.Flush())
	require.NoError(t, vol.Unmount())

	reopened, err := Mount(Options{ImagePath: path})
	require.Nil(t, err)
	defer reopened.Unmount()

	assert.Equal(t, "persisted", reopened.Inodes()[0].Name)
	assert.EqualValues(t, 7, reopened.Inodes()[0].Size)
	assert.True(t, reopened.Allocator().Bytes()[start] == 1)
}

func writeAllZeroFile(path string, size int) error {
	data := make([]byte, size)
	return os.WriteFile(path, data, 0644)
}
