package fileops

import (
	"time"

	"github.com/sena2k/bmpfs/errors"
	"github.com/sena2k/bmpfs/inode"
	"github.com/sena2k/bmpfs/nameindex"
)

func ceilDiv(a, b uint64) uint64 {
	if a == 0 {
		return 0
	}
	return (a + b - 1) / b
}

// Read implements spec §4.H's read: it copies min(len(buf), size-offset)
// bytes starting at offset into buf and returns the number of bytes
// copied.
func (ops *Ops) Read(path string, buf []byte, offset int64) (int, errors.DriverError) {
	if err := nameindex.Validate(path); err != nil {
		return 0, err
	}
	idx, err := nameindex.Lookup(ops.vol.Inodes(), path)
	if err != nil {
		return 0, err
	}
	n := ops.vol.Inodes()[idx]
	if n.IsDir {
		return 0, errors.ErrIsADirectory
	}
	if offset < 0 {
		return 0, errors.ErrInvalidArgument
	}

	n.Accessed = time.Now()
	ops.vol.Inodes()[idx] = n
	if flushErr := ops.vol.Flush(); flushErr != nil {
		return 0, flushErr
	}

	if uint64(offset) >= n.Size {
		return 0, nil
	}

	size := uint64(len(buf))
	if remaining := n.Size - uint64(offset); size > remaining {
		size = remaining
	}
	if size == 0 {
		return 0, nil
	}

	blockSize := ops.vol.BlockSize()
	first := n.FirstBlock + uint32(uint64(offset)/blockSize)
	blockOffset := uint64(offset) % blockSize
	numBlocks := ceilDiv(size+blockOffset, blockSize)

	raw, readErr := ops.vol.ReadBlocks(first, uint32(numBlocks))
	if readErr != nil {
		return 0, readErr
	}
	copy(buf, raw[blockOffset:blockOffset+size])
	return int(size), nil
}

// relocate performs the grow-and-copy relocation spec §4.H's write
// describes as "the critical algorithm": find and mark a new contiguous
// run large enough for `need` blocks, copy any existing data over, then
// free the old run, in that order so the old run is cleared only after the
// new one is marked, and a failed copy releases the new run while leaving
// the inode on its old, still-used blocks (spec §9 "Grow-and-copy leaks on
// failure").
func (ops *Ops) relocate(n *inode.Inode, need uint32) errors.DriverError {
	newStart, allocErr := ops.vol.Allocator().AllocateRun(need)
	if allocErr != nil {
		return allocErr
	}

	if n.NumBlocks > 0 {
		existing, readErr := ops.vol.ReadBlocks(n.FirstBlock, n.NumBlocks)
		if readErr != nil {
			ops.vol.Allocator().FreeRun(newStart, need)
			return readErr
		}
		if writeErr := ops.vol.WriteBlocks(newStart, existing); writeErr != nil {
			ops.vol.Allocator().FreeRun(newStart, need)
			return writeErr
		}
		ops.vol.Allocator().FreeRun(n.FirstBlock, n.NumBlocks)
	}

	n.FirstBlock = newStart
	n.NumBlocks = need
	return nil
}

// Write implements spec §4.H's write, including the growth policy.
func (ops *Ops) Write(path string, data []byte, offset int64) (int, errors.DriverError) {
	if err := nameindex.Validate(path); err != nil {
		return 0, err
	}
	idx, err := nameindex.Lookup(ops.vol.Inodes(), path)
	if err != nil {
		return 0, err
	}
	n := ops.vol.Inodes()[idx]
	if n.IsDir {
		return 0, errors.ErrIsADirectory
	}
	if offset < 0 {
		return 0, errors.ErrInvalidArgument
	}

	size := uint64(len(data))
	newSize := uint64(offset) + size
	if newSize < uint64(offset) {
		return 0, errors.ErrFileTooLarge
	}

	blockSize := ops.vol.BlockSize()
	need := uint32(ceilDiv(newSize, blockSize))

	if need > n.NumBlocks {
		if relocErr := ops.relocate(&n, need); relocErr != nil {
			return 0, relocErr
		}
	}

	first := n.FirstBlock + uint32(uint64(offset)/blockSize)
	blockOffset := uint64(offset) % blockSize
	numBlocks := ceilDiv(size+blockOffset, blockSize)

	var scratch []byte
	if blockOffset != 0 || size%blockSize != 0 {
		raw, readErr := ops.vol.ReadBlocks(first, uint32(numBlocks))
		if readErr != nil {
			return 0, readErr
		}
		scratch = raw
	} else {
		scratch = make([]byte, numBlocks*blockSize)
	}
	copy(scratch[blockOffset:blockOffset+size], data)

	if writeErr := ops.vol.WriteBlocks(first, scratch); writeErr != nil {
		return 0, writeErr
	}

	if newSize > n.Size {
		n.Size = newSize
	}
	n.Modified = time.Now()
	ops.vol.Inodes()[idx] = n
	if flushErr := ops.vol.Flush(); flushErr != nil {
		return 0, flushErr
	}
	return int(size), nil
}

// Truncate implements spec §4.H's truncate.
func (ops *Ops) Truncate(path string, newSize int64) errors.DriverError {
	if err := nameindex.Validate(path); err != nil {
		return err
	}
	idx, err := nameindex.Lookup(ops.vol.Inodes(), path)
	if err != nil {
		return err
	}
	n := ops.vol.Inodes()[idx]
	if n.IsDir {
		return errors.ErrIsADirectory
	}
	if newSize < 0 {
		return errors.ErrInvalidArgument
	}

	blockSize := ops.vol.BlockSize()

	switch {
	case newSize == 0:
		if n.NumBlocks > 0 {
			ops.vol.Allocator().FreeRun(n.FirstBlock, n.NumBlocks)
		}
		n.FirstBlock = inode.UnallocatedBlock
		n.NumBlocks = 0
		n.Size = 0

	default:
		need := uint32(ceilDiv(uint64(newSize), blockSize))
		switch {
		case need < n.NumBlocks:
			freedStart := n.FirstBlock + need
			freedCount := n.NumBlocks - need
			ops.vol.Allocator().FreeRun(freedStart, freedCount)
			n.NumBlocks = need
			n.Size = uint64(newSize)
		case need > n.NumBlocks:
			if relocErr := ops.relocate(&n, need); relocErr != nil {
				return relocErr
			}
			n.Size = uint64(newSize)
		default:
			n.Size = uint64(newSize)
		}
	}

	n.Modified = time.Now()
	ops.vol.Inodes()[idx] = n
	return ops.vol.Flush()
}

// Utimens implements spec §4.H's utimens. Passing nil for either timespec
// means "now", matching the spec's "else both = now" wording.
func (ops *Ops) Utimens(path string, accessed, modified *time.Time) errors.DriverError {
	if err := nameindex.Validate(path); err != nil {
		return err
	}
	idx, err := nameindex.Lookup(ops.vol.Inodes(), path)
	if err != nil {
		return err
	}
	n := ops.vol.Inodes()[idx]

	now := time.Now()
	if accessed != nil {
		n.Accessed = *accessed
	} else {
		n.Accessed = now
	}
	if modified != nil {
		n.Modified = *modified
	} else {
		n.Modified = now
	}

	ops.vol.Inodes()[idx] = n
	return ops.vol.Flush()
}

// Fsync implements spec §4.H's fsync: sync the volume's single backing
// file descriptor (there's only ever one open image), matching the
// original C implementation (see SPEC_FULL.md §12). A path other than "/"
// must name an existing entry; the sync itself covers the whole image
// whichever path is given.
func (ops *Ops) Fsync(path string, datasync bool) errors.DriverError {
	if path != "/" {
		if err := nameindex.Validate(path); err != nil {
			return err
		}
		if _, err := nameindex.Lookup(ops.vol.Inodes(), path); err != nil {
			return err
		}
	}
	return ops.vol.Sync(datasync)
}

// Readdir implements spec §4.H's readdir. Only "/" has entries in this
// flat namespace; a subdirectory created by Mkdir always lists as empty,
// and a path naming a file fails with ErrNotADirectory.
func (ops *Ops) Readdir(path string) ([]DirEntry, errors.DriverError) {
	if path != "/" {
		idx, err := nameindex.Lookup(ops.vol.Inodes(), path)
		if err != nil {
			return nil, err
		}
		if !ops.vol.Inodes()[idx].IsDir {
			return nil, errors.ErrNotADirectory
		}
		// Flat namespace: a non-root directory is always empty.
		return nil, nil
	}

	var entries []DirEntry
	for _, n := range ops.vol.Inodes() {
		if n.IsFree() {
			continue
		}
		entries = append(entries, DirEntry{
			Name: n.Name,
			Stat: statFromInode(n, ops.vol.BlockSize()),
		})
	}
	return entries, nil
}
