// Package bmpimage implements the BMP framing codec (spec §4.A): reading and
// writing the 14-byte file header and 40-byte info header, and deriving the
// volume geometry the rest of bmpfs is built on.
package bmpimage

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/sena2k/bmpfs/errors"
	"github.com/sena2k/bmpfs/inode"
)

// Signature is the required value of FileHeader.Signature ('BM' read as a
// little-endian uint16).
const Signature = 0x4D42

// DataOffset is the fixed byte offset of the pixel-data region in every
// image bmpfs creates or mounts; the original reserves exactly the 14+40
// bytes of header before it.
const DataOffset = 54

// BlockSize is the fixed payload block size, in bytes (spec §3).
const BlockSize = 512

// MaxFiles is the fixed capacity of the inode table (spec §3).
const MaxFiles = 1000

// DefaultWidth and DefaultHeight are the dimensions the provisioner (§4.B)
// uses when no backing file exists yet.
const DefaultWidth = 2048
const DefaultHeight = 2048

// FileHeader is the 14-byte BMP file header, byte-packed and little-endian.
type FileHeader struct {
	Signature  uint16
	FileSize   uint32
	Reserved1  uint16
	Reserved2  uint16
	DataOffset uint32
}

// InfoHeader is the 40-byte BMP info header, byte-packed and little-endian.
type InfoHeader struct {
	HeaderSize      uint32
	Width           int32
	Height          int32
	Planes          uint16
	BitsPerPixel    uint16
	Compression     uint32
	ImageSize       uint32
	XPixelsPerMeter int32
	YPixelsPerMeter int32
	ColorsUsed      uint32
	ColorsImportant uint32
}

const fileHeaderSize = 14
const infoHeaderSize = 40

// RowSize computes the padded per-row byte count for a 24-bit BMP of the
// given width: `(width*3 + 3) &^ 3`. This is the normative formula per
// spec §4.A; it is the only correct one of the two variants the original C
// source carries (the other, unpadded `width*height*3`, is wrong for BMP).
func RowSize(width int32) uint32 {
	return uint32(width*3+3) &^ 3
}

// NewHeaders builds the canonical file and info headers for a freshly
// provisioned image of the given dimensions.
func NewHeaders(width, height int32) (FileHeader, InfoHeader) {
	rowSize := RowSize(width)
	pixelDataSize := rowSize * uint32(height)

	fh := FileHeader{
		Signature:  Signature,
		FileSize:   DataOffset + pixelDataSize,
		DataOffset: DataOffset,
	}
	ih := InfoHeader{
		HeaderSize:      infoHeaderSize,
		Width:           width,
		Height:          height,
		Planes:          1,
		BitsPerPixel:    24,
		Compression:     0,
		ImageSize:       pixelDataSize,
		XPixelsPerMeter: 2835,
		YPixelsPerMeter: 2835,
	}
	return fh, ih
}

// ReadHeaders parses the two packed headers from the start of r.
func ReadHeaders(r io.Reader) (FileHeader, InfoHeader, errors.DriverError) {
	var fh FileHeader
	if err := binary.Read(r, binary.LittleEndian, &fh); err != nil {
		return FileHeader{}, InfoHeader{}, errors.ErrIOFailed.WrapError(err)
	}

	var ih InfoHeader
	if err := binary.Read(r, binary.LittleEndian, &ih); err != nil {
		return FileHeader{}, InfoHeader{}, errors.ErrIOFailed.WrapError(err)
	}

	if err := Validate(fh, ih); err != nil {
		return FileHeader{}, InfoHeader{}, err
	}
	return fh, ih, nil
}

// WriteHeaders serializes the two packed headers to w, in order.
func WriteHeaders(w io.Writer, fh FileHeader, ih InfoHeader) errors.DriverError {
	buf := new(bytes.Buffer)
	buf.Grow(fileHeaderSize + infoHeaderSize)
	if err := binary.Write(buf, binary.LittleEndian, &fh); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	if err := binary.Write(buf, binary.LittleEndian, &ih); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	return nil
}

// Validate checks the invariants spec §4.A requires of any mounted image:
// the signature must be 'BM', and the declared image_size must equal the
// padded row_size*height the rest of bmpfs will use. Both failures are
// reported as ErrInvalidSignature, matching the spec's instruction to treat
// a size mismatch the same as a bad signature.
func Validate(fh FileHeader, ih InfoHeader) errors.DriverError {
	if fh.Signature != Signature {
		return errors.ErrInvalidSignature
	}
	expected := RowSize(ih.Width) * uint32(ih.Height)
	if ih.ImageSize != expected {
		return errors.ErrInvalidSignature.WithMessage("image_size does not match row_size*height")
	}
	return nil
}

// PixelDataSize returns the size, in bytes, of the pixel-data region: the
// byte range bmpfs repurposes as metadata plus block payload.
func PixelDataSize(ih InfoHeader) uint32 {
	return RowSize(ih.Width) * uint32(ih.Height)
}

// Geometry is the volume geometry derived once at mount time from the BMP
// headers (spec §3 "Volume geometry").
type Geometry struct {
	DataSize       uint64
	BlockSize      uint64
	MaxFiles       uint64
	TotalBlocks    uint64
	MetadataSize   uint64
	ReservedBlocks uint64
}

// ComputeGeometry derives the fixed volume geometry from a validated info
// header.
func ComputeGeometry(ih InfoHeader) Geometry {
	dataSize := uint64(PixelDataSize(ih))
	totalBlocks := dataSize / BlockSize
	metadataSize := totalBlocks + MaxFiles*uint64(inode.RecordSize)
	reserved := (metadataSize + BlockSize - 1) / BlockSize

	return Geometry{
		DataSize:       dataSize,
		BlockSize:      BlockSize,
		MaxFiles:       MaxFiles,
		TotalBlocks:    totalBlocks,
		MetadataSize:   metadataSize,
		ReservedBlocks: reserved,
	}
}

// BlockOffset computes the absolute byte offset of logical block `index`
// within the image, per spec §4.F: `data_offset + metadata_size + index *
// block_size`.
func (g Geometry) BlockOffset(index uint32) int64 {
	return int64(DataOffset) + int64(g.MetadataSize) + int64(index)*int64(g.BlockSize)
}
