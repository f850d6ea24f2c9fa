package volume

import (
	"io"

	"github.com/noxer/bytewriter"

	"github.com/sena2k/bmpfs/allocator"
	"github.com/sena2k/bmpfs/bmpimage"
	"github.com/sena2k/bmpfs/errors"
	"github.com/sena2k/bmpfs/inode"
)

// readMetadata implements spec §4.D's read_metadata: seek to data_offset,
// read exactly metadata_size bytes, and split the staging buffer into the
// bitmap and the inode array.
func (v *Volume) readMetadata() errors.DriverError {
	staging := make([]byte, v.geometry.MetadataSize)

	if _, err := v.file.Seek(bmpimage.DataOffset, io.SeekStart); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	n, err := io.ReadFull(v.file, staging)
	if err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	if uint64(n) != v.geometry.MetadataSize {
		return errors.ErrIOFailed.WithMessage("short read of metadata region")
	}

	bitmapBytes := make([]byte, v.geometry.TotalBlocks)
	copy(bitmapBytes, staging[:v.geometry.TotalBlocks])
	v.alloc = allocator.Wrap(bitmapBytes, uint32(v.geometry.TotalBlocks))

	inodeBytes := staging[v.geometry.TotalBlocks:]
	v.inodes = make([]inode.Inode, v.geometry.MaxFiles)
	for i := uint64(0); i < v.geometry.MaxFiles; i++ {
		record := inodeBytes[i*uint64(inode.RecordSize) : (i+1)*uint64(inode.RecordSize)]
		decoded, decodeErr := inode.Decode(record)
		if decodeErr != nil {
			return decodeErr
		}
		v.inodes[i] = decoded
	}
	return nil
}

// writeMetadata implements spec §4.D's write_metadata: compose the staging
// buffer from the live bitmap and inode array, seek to data_offset, write
// exactly metadata_size bytes, then flush the stream.
func (v *Volume) writeMetadata() errors.DriverError {
	staging := make([]byte, v.geometry.MetadataSize)
	writer := bytewriter.New(staging)

	if _, err := writer.Write(v.alloc.Bytes()); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	for i := range v.inodes {
		encoded := inode.Encode(v.inodes[i])
		if _, err := writer.Write(encoded); err != nil {
			return errors.ErrIOFailed.WrapError(err)
		}
	}

	if _, err := v.file.Seek(bmpimage.DataOffset, io.SeekStart); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	n, err := v.file.Write(staging)
	if err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	if uint64(n) != v.geometry.MetadataSize {
		return errors.ErrIOFailed.WithMessage("short write of metadata region")
	}
	if err := v.file.Sync(); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	return nil
}
