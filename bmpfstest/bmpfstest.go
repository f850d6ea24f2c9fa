// Package bmpfstest supplies small fixtures shared across bmpfs's package
// tests, modeled on the teacher's own testing/images.go: a way to get a
// ready-to-use Volume without every test hand-rolling BMP headers, and a
// byte-level in-memory stream for codec-level tests that don't need a real
// temp file.
package bmpfstest

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/sena2k/bmpfs/bmpimage"
	"github.com/sena2k/bmpfs/volume"
)

// NewTempImage provisions a fresh bmpfs image of the given dimensions under
// t.TempDir() and mounts it, registering a cleanup that unmounts it. Pass
// 0, 0 to accept bmpimage's default 2048x2048 canvas.
func NewTempImage(t *testing.T, width, height int32) *volume.Volume {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.bmp")
	vol, err := volume.Mount(volume.Options{
		ImagePath:       path,
		ProvisionWidth:  width,
		ProvisionHeight: height,
	})
	require.Nil(t, err)
	t.Cleanup(func() { vol.Unmount() })
	return vol
}

// RawHeaderBytes builds the 54-byte file+info header pair for an image of
// the given dimensions, for tests that want to corrupt individual fields
// before feeding them to bmpimage.ReadHeaders.
func RawHeaderBytes(t *testing.T, width, height int32) []byte {
	t.Helper()
	fh, ih := bmpimage.NewHeaders(width, height)
	buf := new(bytes.Buffer)
	require.Nil(t, bmpimage.WriteHeaders(buf, fh, ih))
	return buf.Bytes()
}

// HeaderStream wraps raw bytes (typically from RawHeaderBytes, optionally
// mutated) as an in-memory io.ReadWriteSeeker, the way the teacher's own
// test fixtures avoid touching the filesystem for header-only assertions.
func HeaderStream(raw []byte) io.ReadWriteSeeker {
	return bytesextra.NewReadWriteSeeker(raw)
}
