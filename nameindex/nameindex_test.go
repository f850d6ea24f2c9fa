package nameindex

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sena2k/bmpfs/inode"
)

func TestValidateRejectsTooLong(t *testing.T) {
	longName := "/" + strings.Repeat("a", inode.NameSize)
	assert.NotNil(t, Validate(longName))
}

func TestValidateRejectsNested(t *testing.T) {
	assert.NotNil(t, Validate("/dir/file"))
}

func TestValidateAcceptsFlatName(t *testing.T) {
	assert.Nil(t, Validate("/file.txt"))
}

func TestLookupFindsMatch(t *testing.T) {
	inodes := []inode.Inode{{}, {Name: "a.txt"}, {Name: "b.txt"}}
	idx, err := Lookup(inodes, "/b.txt")
	require.Nil(t, err)
	assert.Equal(t, 2, idx)
}

func TestLookupMissingIsNotFound(t *testing.T) {
	inodes := []inode.Inode{{}, {Name: "a.txt"}}
	_, err := Lookup(inodes, "/missing.txt")
	require.NotNil(t, err)
}

func TestFindFreeSlot(t *testing.T) {
	inodes := []inode.Inode{{Name: "a"}, {}, {Name: "c"}}
	idx, err := FindFreeSlot(inodes)
	require.Nil(t, err)
	assert.Equal(t, 1, idx)
}

func TestFindFreeSlotFull(t *testing.T) {
	inodes := []inode.Inode{{Name: "a"}, {Name: "b"}}
	_, err := FindFreeSlot(inodes)
	require.NotNil(t, err)
}
