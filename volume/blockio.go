package volume

import (
	"io"

	"github.com/sena2k/bmpfs/errors"
)

// ReadBlocks implements spec §4.F's read_blocks: seek absolutely to
// block_offset(start), then read exactly count*block_size bytes. No
// bounds check against total_blocks is performed here; callers must
// guarantee via the allocator that the run is valid.
func (v *Volume) ReadBlocks(start, count uint32) ([]byte, errors.DriverError) {
	buf := make([]byte, uint64(count)*v.geometry.BlockSize)
	if count == 0 {
		return buf, nil
	}

	offset := v.geometry.BlockOffset(start)
	if _, err := v.file.Seek(offset, io.SeekStart); err != nil {
		return nil, errors.ErrIOFailed.WrapError(err)
	}
	n, err := io.ReadFull(v.file, buf)
	if err != nil {
		return nil, errors.ErrIOFailed.WrapError(err)
	}
	if n != len(buf) {
		return nil, errors.ErrIOFailed.WithMessage("short read of block range")
	}
	return buf, nil
}

// WriteBlocks implements spec §4.F's write_blocks: seek absolutely to
// block_offset(start), then write exactly len(data) bytes (which must be
// count*block_size), and flush.
func (v *Volume) WriteBlocks(start uint32, data []byte) errors.DriverError {
	if len(data) == 0 {
		return nil
	}

	offset := v.geometry.BlockOffset(start)
	if _, err := v.file.Seek(offset, io.SeekStart); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	n, err := v.file.Write(data)
	if err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	if n != len(data) {
		return errors.ErrIOFailed.WithMessage("short write of block range")
	}
	if err := v.file.Sync(); err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	return nil
}

// BlockSize returns the fixed per-block payload size, in bytes.
func (v *Volume) BlockSize() uint64 {
	return v.geometry.BlockSize
}
