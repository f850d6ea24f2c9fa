// Package nameindex implements spec §4.G: path validation and resolving a
// flat name to an inode table slot.
package nameindex

import (
	"strings"

	"github.com/sena2k/bmpfs/errors"
	"github.com/sena2k/bmpfs/inode"
)

// Validate checks that path is short enough and names only a top-level
// entry (no further '/' after the leading one is stripped). Root ("/")
// must be handled by the caller before calling Validate/Lookup.
func Validate(path string) errors.DriverError {
	if len(path) >= inode.NameSize {
		return errors.ErrNameTooLong
	}

	stripped := strings.TrimPrefix(path, "/")
	if strings.Contains(stripped, "/") {
		return errors.ErrInvalidArgument.WithMessage("bmpfs is a flat namespace: nested paths are not supported")
	}
	return nil
}

// Lookup strips the leading slash from path and linearly scans inodes for
// a non-empty slot whose name matches. It returns the slot index, or
// ErrNotFound.
func Lookup(inodes []inode.Inode, path string) (int, errors.DriverError) {
	name := strings.TrimPrefix(path, "/")
	for i := range inodes {
		if inodes[i].IsFree() {
			continue
		}
		if inodes[i].Name == name {
			return i, nil
		}
	}
	return -1, errors.ErrNotFound
}

// FindFreeSlot returns the index of the first unoccupied inode slot, or
// ErrNoMemory if the table is full (spec §4.H create's "no free slot"
// case).
func FindFreeSlot(inodes []inode.Inode) (int, errors.DriverError) {
	for i := range inodes {
		if inodes[i].IsFree() {
			return i, nil
		}
	}
	return -1, errors.ErrNoMemory
}
