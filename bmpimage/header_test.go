package bmpimage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sena2k/bmpfs/bmpimage"
	"github.com/sena2k/bmpfs/bmpfstest"
)

func TestRowSizeIsPaddedTo4Bytes(t *testing.T) {
	assert.EqualValues(t, 192, bmpimage.RowSize(64))
	assert.EqualValues(t, 4, bmpimage.RowSize(1))
	assert.EqualValues(t, 0, bmpimage.RowSize(0))
}

func TestReadHeadersRoundTrip(t *testing.T) {
	raw := bmpfstest.RawHeaderBytes(t, 64, 64)
	stream := bmpfstest.HeaderStream(raw)

	fh, ih, err := bmpimage.ReadHeaders(stream)
	require.Nil(t, err)
	assert.EqualValues(t, bmpimage.Signature, fh.Signature)
	assert.EqualValues(t, 64, ih.Width)
	assert.EqualValues(t, 64, ih.Height)
	assert.EqualValues(t, bmpimage.RowSize(64)*64, ih.ImageSize)
}

func TestReadHeadersRejectsBadSignature(t *testing.T) {
	raw := bmpfstest.RawHeaderBytes(t, 64, 64)
	raw[0] = 0x00
	stream := bmpfstest.HeaderStream(raw)

	_, _, err := bmpimage.ReadHeaders(stream)
	require.NotNil(t, err)
	assert.Equal(t, "not a BMP image (bad signature)", err.Error())
}

func TestReadHeadersRejectsMismatchedImageSize(t *testing.T) {
	fh, ih := bmpimage.NewHeaders(64, 64)
	ih.ImageSize = 1
	buf := writeHeaders(t, fh, ih)
	stream := bmpfstest.HeaderStream(buf)

	_, _, err := bmpimage.ReadHeaders(stream)
	require.NotNil(t, err)
}

func TestComputeGeometryForSmallImage(t *testing.T) {
	_, ih := bmpimage.NewHeaders(64, 64)
	geo := bmpimage.ComputeGeometry(ih)

	assert.EqualValues(t, 192*64, geo.DataSize)
	assert.EqualValues(t, 24, geo.TotalBlocks)
	assert.EqualValues(t, 512, geo.BlockSize)
	assert.EqualValues(t, 1000, geo.MaxFiles)
}

func writeHeaders(t *testing.T, fh bmpimage.FileHeader, ih bmpimage.InfoHeader) []byte {
	t.Helper()
	var buf fakeWriter
	require.Nil(t, bmpimage.WriteHeaders(&buf, fh, ih))
	return buf.data
}

type fakeWriter struct{ data []byte }

func (w *fakeWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}
