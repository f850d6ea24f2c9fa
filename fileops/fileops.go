// Package fileops implements the filesystem operation surface, spec §4.H:
// getattr, create, mkdir, unlink, rmdir, open, read, write, truncate,
// utimens, fsync, and readdir, all built on volume.Volume, the allocator,
// and the name index.
package fileops

import (
	"time"

	"github.com/sena2k/bmpfs/errors"
	"github.com/sena2k/bmpfs/inode"
	"github.com/sena2k/bmpfs/nameindex"
	"github.com/sena2k/bmpfs/volume"
)

// Ops is the single-threaded filesystem operation surface. Per spec §5,
// callers (the host protocol adapter) must serialize calls into a given
// Ops value themselves; Ops takes no locks of its own.
type Ops struct {
	vol *volume.Volume
}

// New wraps a mounted Volume in the file-operation surface.
func New(vol *volume.Volume) *Ops {
	return &Ops{vol: vol}
}

// Stat is the platform-independent attribute view getattr/readdir return.
type Stat struct {
	Mode      uint32
	Size      uint64
	UID       uint32
	GID       uint32
	Nlink     uint32
	Created   time.Time
	Modified  time.Time
	Accessed  time.Time
	BlockSize uint32
	Blocks    uint64
}

// DirEntry is one entry readdir yields, beyond "." and "..".
type DirEntry struct {
	Name string
	Stat Stat
}

func blockCountForSize(size uint64, blockSize uint64) uint64 {
	if size == 0 {
		return 0
	}
	return (size + blockSize - 1) / blockSize
}

func statFromInode(n inode.Inode, blockSize uint64) Stat {
	nlink := uint32(1)
	if n.IsDir {
		nlink = 2
	}
	return Stat{
		Mode:      n.Mode,
		Size:      n.Size,
		UID:       n.UID,
		GID:       n.GID,
		Nlink:     nlink,
		Created:   n.Created,
		Modified:  n.Modified,
		Accessed:  n.Accessed,
		BlockSize: uint32(blockSize),
		Blocks:    blockCountForSize(n.Size, blockSize),
	}
}

// RootStat synthesizes the stat entry for "/", which is never stored in
// the inode table (spec §3 invariant 6).
func RootStat(uid, gid uint32) Stat {
	now := time.Now()
	return Stat{
		Mode:     ModeIFDIR | 0755,
		Nlink:    2,
		UID:      uid,
		GID:      gid,
		Created:  now,
		Modified: now,
		Accessed: now,
	}
}

// GetAttr implements spec §4.H's getattr for a non-root path.
func (ops *Ops) GetAttr(path string) (Stat, errors.DriverError) {
	if err := nameindex.Validate(path); err != nil {
		return Stat{}, err
	}
	idx, err := nameindex.Lookup(ops.vol.Inodes(), path)
	if err != nil {
		return Stat{}, err
	}
	return statFromInode(ops.vol.Inodes()[idx], ops.vol.BlockSize()), nil
}

func (ops *Ops) createEntry(path string, mode uint32, uid, gid uint32, isDir bool) errors.DriverError {
	if err := nameindex.Validate(path); err != nil {
		return err
	}
	if _, err := nameindex.Lookup(ops.vol.Inodes(), path); err == nil {
		return errors.ErrExists
	}

	slot, err := nameindex.FindFreeSlot(ops.vol.Inodes())
	if err != nil {
		return err
	}

	now := time.Now()
	typeBit := uint32(ModeIFREG)
	if isDir {
		typeBit = ModeIFDIR
	}

	ops.vol.Inodes()[slot] = inode.Inode{
		Name:       trimLeadingSlash(path),
		Size:       0,
		Created:    now,
		Modified:   now,
		Accessed:   now,
		FirstBlock: inode.UnallocatedBlock,
		NumBlocks:  0,
		Mode:       typeBit | (mode & modePermMask),
		UID:        uid,
		GID:        gid,
		IsDir:      isDir,
	}
	return ops.vol.Flush()
}

// Create implements spec §4.H's create.
func (ops *Ops) Create(path string, mode uint32, uid, gid uint32) errors.DriverError {
	return ops.createEntry(path, mode, uid, gid, false)
}

// Mkdir implements spec §4.H's mkdir. No data blocks are ever allocated
// for directories.
func (ops *Ops) Mkdir(path string, mode uint32, uid, gid uint32) errors.DriverError {
	return ops.createEntry(path, mode, uid, gid, true)
}

// Unlink implements spec §4.H's unlink.
func (ops *Ops) Unlink(path string) errors.DriverError {
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

	if n.NumBlocks > 0 {
		ops.vol.Allocator().FreeRun(n.FirstBlock, n.NumBlocks)
	}
	ops.vol.Inodes()[idx] = inode.Inode{}
	return ops.vol.Flush()
}

// Rmdir implements spec §4.H's rmdir.
//
// The emptiness check a hierarchical filesystem would need here is
// vestigial in this flat namespace: no inode can ever live "inside"
// another directory, so there's nothing to check before zeroing the slot
// (spec §9 open question 1).
func (ops *Ops) Rmdir(path string) errors.DriverError {
	if err := nameindex.Validate(path); err != nil {
		return err
	}
	idx, err := nameindex.Lookup(ops.vol.Inodes(), path)
	if err != nil {
		return err
	}
	if !ops.vol.Inodes()[idx].IsDir {
		return errors.ErrNotADirectory
	}

	ops.vol.Inodes()[idx] = inode.Inode{}
	return ops.vol.Flush()
}

// Open implements spec §4.H's open: permission and directory checks, plus
// an accessed-time bump.
func (ops *Ops) Open(path string, flags OpenFlags) errors.DriverError {
	if err := nameindex.Validate(path); err != nil {
		return err
	}
	idx, err := nameindex.Lookup(ops.vol.Inodes(), path)
	if err != nil {
		return err
	}
	n := ops.vol.Inodes()[idx]

	if flags.Write && n.IsDir {
		return errors.ErrPermissionDenied
	}
	if flags.Write && n.Mode&modeIWUSR == 0 {
		return errors.ErrPermissionDenied
	}
	if flags.Read && n.Mode&modeIRUSR == 0 {
		return errors.ErrPermissionDenied
	}

	n.Accessed = time.Now()
	ops.vol.Inodes()[idx] = n
	return ops.vol.Flush()
}

func trimLeadingSlash(path string) string {
	if len(path) > 0 && path[0] == '/' {
		return path[1:]
	}
	return path
}
