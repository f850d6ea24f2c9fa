package fileops

import (
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sena2k/bmpfs/volume"
)

func newTestOps(t *testing.T, width, height int32) (*Ops, *volume.Volume) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.bmp")
	vol, err := volume.Mount(volume.Options{ImagePath: path, ProvisionWidth: width, ProvisionHeight: height})
	require.Nil(t, err)
	t.Cleanup(func() { vol.Unmount() })
	return New(vol), vol
}

// Scenario 1: create, write, read.
func TestScenarioCreateWriteRead(t *testing.T) {
	ops, _ := newTestOps(t, 2048, 2048)

	require.Nil(t, ops.Create("/a", 0644, 1000, 1000))

	n, err := ops.Write("/a", []byte("hello"), 0)
	require.Nil(t, err)
	assert.Equal(t, 5, n)

	buf := make([]byte, 5)
	n, err = ops.Read("/a", buf, 0)
	require.Nil(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf))

	stat, statErr := ops.GetAttr("/a")
	require.Nil(t, statErr)
	assert.EqualValues(t, 5, stat.Size)
}

// Scenario 2: grow-induced relocation.
func TestScenarioGrowInducedRelocation(t *testing.T) {
	ops, vol := newTestOps(t, 2048, 2048)
	require.Nil(t, ops.Create("/b", 0644, 0, 0))

	block := make([]byte, 512)
	for i := range block {
		block[i] = 0x41
	}

	_, err := ops.Write("/b", block, 0)
	require.Nil(t, err)

	statBefore, err := ops.GetAttr("/b")
	require.Nil(t, err)
	_ = statBefore

	idx, lookupErr := lookupSlot(vol, "/b")
	require.Nil(t, lookupErr)
	f1 := vol.Inodes()[idx].FirstBlock

	_, err = ops.Write("/b", block, 512)
	require.Nil(t, err)

	f2 := vol.Inodes()[idx].FirstBlock
	assert.EqualValues(t, 2, vol.Inodes()[idx].NumBlocks)
	assert.GreaterOrEqual(t, f2, f1)
	assert.False(t, vol.Allocator().Bytes()[f1] == 1)

	full := make([]byte, 1024)
	n, readErr := ops.Read("/b", full, 0)
	require.Nil(t, readErr)
	assert.Equal(t, 1024, n)
	for _, b := range full {
		assert.Equal(t, byte(0x41), b)
	}
}

// Scenario 3: truncate shrink then read.
func TestScenarioTruncateShrinkThenRead(t *testing.T) {
	ops, vol := newTestOps(t, 2048, 2048)
	require.Nil(t, ops.Create("/c", 0644, 0, 0))

	data := make([]byte, 1000)
	for i := range data {
		data[i] = byte(i)
	}
	_, err := ops.Write("/c", data, 0)
	require.Nil(t, err)

	require.Nil(t, ops.Truncate("/c", 100))

	stat, err := ops.GetAttr("/c")
	require.Nil(t, err)
	assert.EqualValues(t, 100, stat.Size)

	buf := make([]byte, 1000)
	n, readErr := ops.Read("/c", buf, 0)
	require.Nil(t, readErr)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[:100], buf[:100])

	idx, _ := lookupSlot(vol, "/c")
	assert.EqualValues(t, 1, vol.Inodes()[idx].NumBlocks)
}

// Scenario 4: ENOSPC.
func TestScenarioNoSpace(t *testing.T) {
	ops, vol := newTestOps(t, 64, 64)
	require.Nil(t, ops.Create("/big", 0644, 0, 0))

	totalBlocks := vol.Geometry().TotalBlocks
	data := make([]byte, totalBlocks*512+1)

	_, err := ops.Write("/big", data, 0)
	require.NotNil(t, err)
	assert.Equal(t, syscall.ENOSPC, err.Errno())
}

// Scenario 5: persistence across remount.
func TestScenarioPersistenceAcrossRemount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.bmp")
	vol, err := volume.Mount(volume.Options{ImagePath: path, ProvisionWidth: 2048, ProvisionHeight: 2048})
	require.Nil(t, err)
	ops := New(vol)

	require.Nil(t, ops.Create("/d", 0644, 0, 0))
	_, writeErr := ops.Write("/d", []byte("persist"), 0)
	require.Nil(t, writeErr)
	require.NoError(t, vol.Unmount())

	reopened, err := volume.Mount(volume.Options{ImagePath: path})
	require.Nil(t, err)
	defer reopened.Unmount()
	reopenedOps := New(reopened)

	entries, readdirErr := reopenedOps.Readdir("/")
	require.Nil(t, readdirErr)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "d")

	buf := make([]byte, 7)
	n, readErr := reopenedOps.Read("/d", buf, 0)
	require.Nil(t, readErr)
	assert.Equal(t, 7, n)
	assert.Equal(t, "persist", string(buf))
}

func TestUnlinkFreesBlocks(t *testing.T) {
	ops, vol := newTestOps(t, 2048, 2048)
	require.Nil(t, ops.Create("/e", 0644, 0, 0))
	_, err := ops.Write("/e", []byte("data"), 0)
	require.Nil(t, err)

	idx, _ := lookupSlot(vol, "/e")
	firstBlock := vol.Inodes()[idx].FirstBlock

	require.Nil(t, ops.Unlink("/e"))
	assert.False(t, vol.Allocator().Bytes()[firstBlock] == 1)

	_, err = ops.GetAttr("/e")
	require.NotNil(t, err)
}

func TestMkdirAndRmdir(t *testing.T) {
	ops, _ := newTestOps(t, 2048, 2048)
	require.Nil(t, ops.Mkdir("/sub", 0755, 0, 0))

	stat, err := ops.GetAttr("/sub")
	require.Nil(t, err)
	assert.NotZero(t, stat.Mode&ModeIFDIR)

	require.NotNil(t, ops.Unlink("/sub")) // unlink on a dir is EISDIR
	require.Nil(t, ops.Rmdir("/sub"))

	_, err = ops.GetAttr("/sub")
	require.NotNil(t, err)
}

func TestOpenPermissions(t *testing.T) {
	ops, _ := newTestOps(t, 2048, 2048)
	require.Nil(t, ops.Create("/ro", 0444, 0, 0))

	require.NotNil(t, ops.Open("/ro", OpenFlags{Write: true}))
	require.Nil(t, ops.Open("/ro", OpenFlags{Read: true}))
}

func lookupSlot(vol *volume.Volume, path string) (int, error) {
	ops := New(vol)
	_, err := ops.GetAttr(path)
	if err != nil {
		return -1, err
	}
	for i, n := range vol.Inodes() {
		if !n.IsFree() && "/"+n.Name == path {
			return i, nil
		}
	}
	return -1, nil
}
