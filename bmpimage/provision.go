package bmpimage

import (
	"io"
	"os"

	"github.com/sena2k/bmpfs/errors"
)

// CreateImage provisions a brand-new zero-filled BMP at path, per spec
// §4.B: write the two headers, write row_size*height zero bytes of pixel
// data, then seek back to data_offset and write metadataSize zero bytes
// (the initial empty bitmap and inode table). The second write is
// redundant with the first in content, but not in intent: it's the
// dedicated "lay down empty metadata" step the rest of bmpfs relies on,
// mirroring criar_arquivo_bmp in the original followed by the caller
// zeroing the metadata region separately.
func CreateImage(path string, width, height int32) errors.DriverError {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsPermission(err) {
			return errors.ErrPermissionDenied.WrapError(err)
		}
		return errors.ErrIOFailed.WrapError(err)
	}
	defer f.Close()

	fh, ih := NewHeaders(width, height)
	if hdrErr := WriteHeaders(f, fh, ih); hdrErr != nil {
		return hdrErr
	}

	pixelDataSize := PixelDataSize(ih)
	if writeErr := writeZeroes(f, int64(pixelDataSize)); writeErr != nil {
		return writeErr
	}

	geometry := ComputeGeometry(ih)
	if _, seekErr := f.Seek(DataOffset, io.SeekStart); seekErr != nil {
		return errors.ErrIOFailed.WrapError(seekErr)
	}
	if writeErr := writeZeroes(f, int64(geometry.MetadataSize)); writeErr != nil {
		return writeErr
	}

	if syncErr := f.Sync(); syncErr != nil {
		return errors.ErrIOFailed.WrapError(syncErr)
	}
	return nil
}

// writeZeroes writes exactly n zero bytes to w in fixed-size chunks, so a
// 2048x2048 default image doesn't require a multi-megabyte allocation.
func writeZeroes(w io.Writer, n int64) errors.DriverError {
	const chunkSize = 64 * 1024
	chunk := make([]byte, chunkSize)
	if n < int64(chunkSize) {
		chunk = chunk[:n]
	}

	remaining := n
	for remaining > 0 {
		toWrite := chunk
		if remaining < int64(len(chunk)) {
			toWrite = chunk[:remaining]
		}
		written, err := w.Write(toWrite)
		if err != nil {
			return errors.ErrIOFailed.WrapError(err)
		}
		if written != len(toWrite) {
			return errors.ErrIOFailed.WithMessage("short write provisioning image")
		}
		remaining -= int64(written)
	}
	return nil
}
