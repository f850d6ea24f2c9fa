// Package fuseadapter binds fileops.Ops to the kernel via jacobsa/fuse,
// the way distr1-distri's internal/fuse package binds its own read-only
// view of a SquashFS store. Unlike that binding, bmpfs's namespace is
// flat (spec §3: no nesting), so inode-ID bookkeeping here is a single
// array index rather than a tree of directories.
//
// This package is, itself, an external collaborator per spec §1: it is
// the thing that calls into fileops.Ops, not a part of the core bmpfs
// filesystem semantics.
package fuseadapter

import (
	"context"
	"log"
	"os"
	"sync"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/sirupsen/logrus"

	"github.com/sena2k/bmpfs/fileops"
	"github.com/sena2k/bmpfs/volume"
)

// rootInode is the fixed inode ID FUSE reserves for the mount root.
const rootInode = fuseops.RootInodeID

// FS adapts fileops.Ops to fuseutil.FileSystem. A bmpfs inode ID is
// either rootInode ("/") or `slotIndex + 2`, where slotIndex is the
// entry's position in the volume's fixed inode table -- stable for the
// life of the mount, since fileops never compacts the table.
type FS struct {
	fuseutil.NotImplementedFileSystem

	ops      *fileops.Ops
	vol      *volume.Volume
	log      *logrus.Entry
	readOnly bool

	mu          sync.Mutex
	nextHandle  fuseops.HandleID
	dirHandles  map[fuseops.HandleID]struct{}
	fileHandles map[fuseops.HandleID]fuseops.InodeID
}

// New builds a FUSE-facing filesystem over an already-mounted volume.
// When readOnly is set, every mutating operation fails with EROFS before
// it ever reaches fileops.Ops.
func New(vol *volume.Volume, readOnly bool) *FS {
	return &FS{
		ops:         fileops.New(vol),
		vol:         vol,
		log:         vol.Logger(),
		readOnly:    readOnly,
		dirHandles:  make(map[fuseops.HandleID]struct{}),
		fileHandles: make(map[fuseops.HandleID]fuseops.InodeID),
	}
}

// Serve mounts fs at mountpoint and blocks until it is unmounted,
// mirroring distri's fuse.Mount/mfs.Join pairing.
func Serve(ctx context.Context, vol *volume.Volume, mountpoint string, readOnly bool) error {
	fs := New(vol, readOnly)
	server := fuseutil.NewFileSystemServer(fs)
	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{
		FSName:      "bmpfs",
		ErrorLogger: stdLoggerFor(vol),
	})
	if err != nil {
		return err
	}
	return mfs.Join(ctx)
}

func pathFromInode(vol *volume.Volume, id fuseops.InodeID) (string, bool) {
	if id == rootInode {
		return "/", true
	}
	idx := int(id) - 2
	inodes := vol.Inodes()
	if idx < 0 || idx >= len(inodes) || inodes[idx].IsFree() {
		return "", false
	}
	return "/" + inodes[idx].Name, true
}

func inodeForName(vol *volume.Volume, name string) (fuseops.InodeID, bool) {
	for idx, n := range vol.Inodes() {
		if !n.IsFree() && n.Name == name {
			return fuseops.InodeID(idx + 2), true
		}
	}
	return 0, false
}

func toFileMode(mode uint32) os.FileMode {
	perm := os.FileMode(mode & 0777)
	if mode&fileops.ModeIFDIR != 0 {
		return os.ModeDir | perm
	}
	return perm
}

func toInodeAttributes(stat fileops.Stat) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  stat.Size,
		Nlink: stat.Nlink,
		Mode:  toFileMode(stat.Mode),
		Atime: stat.Accessed,
		Mtime: stat.Modified,
		Ctime: stat.Created,
		Uid:   stat.UID,
		Gid:   stat.GID,
	}
}

func (fs *FS) attributesFor(path string) (fuseops.InodeAttributes, error) {
	if path == "/" {
		return toInodeAttributes(fileops.RootStat(0, 0)), nil
	}
	stat, err := fs.ops.GetAttr(path)
	if err != nil {
		return fuseops.InodeAttributes{}, err.Errno()
	}
	return toInodeAttributes(stat), nil
}

// StatFS reports conservative, mostly-static filesystem statistics; bmpfs
// has no notion of free-space accounting beyond the block allocator, so
// this mirrors the coarse StatFS the teacher-adjacent distri adapter
// returns.
func (fs *FS) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	geo := fs.vol.Geometry()
	op.BlockSize = uint32(geo.BlockSize)
	op.Blocks = geo.TotalBlocks
	op.IoSize = uint32(geo.BlockSize)
	return nil
}

func (fs *FS) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) error {
	if op.Parent != rootInode {
		return fuse.ENOENT
	}
	path := "/" + op.Name
	attrs, err := fs.attributesFor(path)
	if err != nil {
		return err
	}
	id, ok := inodeForName(fs.vol, op.Name)
	if !ok {
		return fuse.ENOENT
	}
	op.Entry.Child = id
	op.Entry.Attributes = attrs
	return nil
}

func (fs *FS) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	path, ok := pathFromInode(fs.vol, op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	attrs, err := fs.attributesFor(path)
	if err != nil {
		return err
	}
	op.Attributes = attrs
	return nil
}

func (fs *FS) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	path, ok := pathFromInode(fs.vol, op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	if path == "/" {
		op.Attributes = toInodeAttributes(fileops.RootStat(0, 0))
		return nil
	}
	if fs.readOnly && (op.Size != nil || op.Atime != nil || op.Mtime != nil) {
		return syscall.EROFS
	}

	if op.Size != nil {
		if truncErr := fs.ops.Truncate(path, int64(*op.Size)); truncErr != nil {
			return truncErr.Errno()
		}
	}
	if op.Atime != nil || op.Mtime != nil {
		if utimeErr := fs.ops.Utimens(path, op.Atime, op.Mtime); utimeErr != nil {
			return utimeErr.Errno()
		}
	}

	attrs, err := fs.attributesFor(path)
	if err != nil {
		return err
	}
	op.Attributes = attrs
	return nil
}

func (fs *FS) MkDir(ctx context.Context, op *fuseops.MkDirOp) error {
	if fs.readOnly {
		return syscall.EROFS
	}
	if op.Parent != rootInode {
		return fuse.ENOENT
	}
	path := "/" + op.Name
	if err := fs.ops.Mkdir(path, uint32(op.Mode.Perm()), 0, 0); err != nil {
		return err.Errno()
	}
	attrs, err := fs.attributesFor(path)
	if err != nil {
		return err
	}
	id, _ := inodeForName(fs.vol, op.Name)
	op.Entry.Child = id
	op.Entry.Attributes = attrs
	return nil
}

func (fs *FS) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) error {
	if fs.readOnly {
		return syscall.EROFS
	}
	if op.Parent != rootInode {
		return fuse.ENOENT
	}
	path := "/" + op.Name
	if err := fs.ops.Create(path, uint32(op.Mode.Perm()), 0, 0); err != nil {
		return err.Errno()
	}
	attrs, err := fs.attributesFor(path)
	if err != nil {
		return err
	}
	id, _ := inodeForName(fs.vol, op.Name)
	op.Entry.Child = id
	op.Entry.Attributes = attrs

	fs.mu.Lock()
	fs.nextHandle++
	op.Handle = fs.nextHandle
	fs.fileHandles[op.Handle] = id
	fs.mu.Unlock()
	return nil
}

func (fs *FS) Unlink(ctx context.Context, op *fuseops.UnlinkOp) error {
	if fs.readOnly {
		return syscall.EROFS
	}
	if op.Parent != rootInode {
		return fuse.ENOENT
	}
	if err := fs.ops.Unlink("/" + op.Name); err != nil {
		return err.Errno()
	}
	return nil
}

func (fs *FS) RmDir(ctx context.Context, op *fuseops.RmDirOp) error {
	if fs.readOnly {
		return syscall.EROFS
	}
	if op.Parent != rootInode {
		return fuse.ENOENT
	}
	if err := fs.ops.Rmdir("/" + op.Name); err != nil {
		return err.Errno()
	}
	return nil
}

func (fs *FS) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) error {
	path, ok := pathFromInode(fs.vol, op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	if path != "/" {
		attrs, err := fs.attributesFor(path)
		if err != nil {
			return err
		}
		if attrs.Mode&os.ModeDir == 0 {
			return fuse.EIO
		}
	}

	fs.mu.Lock()
	fs.nextHandle++
	op.Handle = fs.nextHandle
	fs.dirHandles[op.Handle] = struct{}{}
	fs.mu.Unlock()
	return nil
}

func (fs *FS) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) error {
	path, ok := pathFromInode(fs.vol, op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	entries, err := fs.ops.Readdir(path)
	if err != nil {
		return err.Errno()
	}

	dirents := make([]fuseutil.Dirent, 0, len(entries)+2)
	dirents = append(dirents,
		fuseutil.Dirent{Offset: 1, Inode: rootInode, Name: ".", Type: fuseutil.DT_Directory},
		fuseutil.Dirent{Offset: 2, Inode: rootInode, Name: "..", Type: fuseutil.DT_Directory},
	)
	for _, e := range entries {
		id, _ := inodeForName(fs.vol, e.Name)
		typ := fuseutil.DT_File
		if e.Stat.Mode&fileops.ModeIFDIR != 0 {
			typ = fuseutil.DT_Directory
		}
		dirents = append(dirents, fuseutil.Dirent{
			Offset: fuseops.DirOffset(len(dirents) + 1),
			Inode:  id,
			Name:   e.Name,
			Type:   typ,
		})
	}

	if int(op.Offset) > len(dirents) {
		return fuse.EIO
	}
	for _, d := range dirents[op.Offset:] {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], d)
		if n == 0 {
			break
		}
		op.BytesRead += n
	}
	return nil
}

func (fs *FS) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	delete(fs.dirHandles, op.Handle)
	fs.mu.Unlock()
	return nil
}

func (fs *FS) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) error {
	path, ok := pathFromInode(fs.vol, op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	flags := fileops.OpenFlags{Read: true, Write: int(op.Flags)&(os.O_WRONLY|os.O_RDWR) != 0}
	if fs.readOnly && flags.Write {
		return syscall.EROFS
	}
	if err := fs.ops.Open(path, flags); err != nil {
		return err.Errno()
	}

	fs.mu.Lock()
	fs.nextHandle++
	op.Handle = fs.nextHandle
	fs.fileHandles[op.Handle] = op.Inode
	fs.mu.Unlock()
	return nil
}

func (fs *FS) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) error {
	path, ok := pathFromInode(fs.vol, op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	n, err := fs.ops.Read(path, op.Dst, op.Offset)
	if err != nil {
		return err.Errno()
	}
	op.BytesRead = n
	return nil
}

func (fs *FS) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) error {
	if fs.readOnly {
		return syscall.EROFS
	}
	path, ok := pathFromInode(fs.vol, op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	if _, err := fs.ops.Write(path, op.Data, op.Offset); err != nil {
		return err.Errno()
	}
	return nil
}

func (fs *FS) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fs.mu.Lock()
	delete(fs.fileHandles, op.Handle)
	fs.mu.Unlock()
	return nil
}

func (fs *FS) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) error {
	path, ok := pathFromInode(fs.vol, op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	if err := fs.ops.Fsync(path, false); err != nil {
		return err.Errno()
	}
	return nil
}

func (fs *FS) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) error {
	path, ok := pathFromInode(fs.vol, op.Inode)
	if !ok {
		return fuse.ENOENT
	}
	if err := fs.ops.Fsync(path, true); err != nil {
		return err.Errno()
	}
	return nil
}

func (fs *FS) Destroy() {
	if err := fs.vol.Unmount(); err != nil {
		fs.log.WithError(err).Warn("error unmounting on destroy")
	}
}

func stdLoggerFor(vol *volume.Volume) *log.Logger {
	_ = vol
	return log.New(os.Stderr, "[bmpfs] ", log.LstdFlags)
}
