package bmpimage_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sena2k/bmpfs/bmpimage"
)

func TestCreateImageProducesValidatableFramingAndSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.bmp")
	require.Nil(t, bmpimage.CreateImage(path, 64, 64))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	fh, ih, hdrErr := bmpimage.ReadHeaders(f)
	require.Nil(t, hdrErr)
	assert.EqualValues(t, 64, ih.Width)
	assert.EqualValues(t, 64, ih.Height)

	info, statErr := f.Stat()
	require.NoError(t, statErr)
	assert.EqualValues(t, fh.FileSize, info.Size())
}

func TestCreateImageRefusesToOverwriteExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.bmp")
	require.Nil(t, bmpimage.CreateImage(path, 64, 64))

	err := bmpimage.CreateImage(path, 64, 64)
	require.NotNil(t, err)
}
