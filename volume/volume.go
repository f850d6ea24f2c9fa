// Package volume holds the bmpfs volume state (spec §4.C): the open image
// handle, cached headers, derived geometry, and the in-memory bitmap and
// inode table. A Volume is owned by whatever mounts it (typically the host
// protocol adapter, see fuseadapter) for the life of the mount; unlike the
// teacher's original global fs_state singleton, nothing here is
// package-level (spec §9).
package volume

import (
	"os"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"

	"github.com/sena2k/bmpfs/allocator"
	"github.com/sena2k/bmpfs/bmpimage"
	"github.com/sena2k/bmpfs/errors"
	"github.com/sena2k/bmpfs/inode"
)

// Volume is the full in-memory state of one mounted bmpfs image.
type Volume struct {
	path       string
	file       *os.File
	fileHeader bmpimage.FileHeader
	infoHeader bmpimage.InfoHeader
	geometry   bmpimage.Geometry

	alloc  *allocator.Allocator
	inodes []inode.Inode

	mountID uuid.UUID
	log     *logrus.Entry
}

// Options configures a Mount call.
type Options struct {
	// ImagePath is the path to the backing BMP image (spec §6's single
	// mount-time configuration value).
	ImagePath string
	// ProvisionWidth/ProvisionHeight are used to create the image if it
	// doesn't already exist (spec §4.B). Zero means use bmpimage's default
	// 2048x2048 canvas.
	ProvisionWidth  int32
	ProvisionHeight int32
	// Logger, if nil, defaults to a standard logrus logger at Info level.
	Logger *logrus.Logger
}

// Mount opens (creating if absent) the backing image at opts.ImagePath,
// validates its framing, computes geometry, and loads the bitmap and inode
// table into memory. This is the only place geometry is computed; it is
// immutable for the life of the mount (spec §3 "Lifecycle").
func Mount(opts Options) (*Volume, errors.DriverError) {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	mountID := uuid.New()
	log := logger.WithFields(logrus.Fields{
		"component": "volume",
		"mount_id":  mountID.String(),
		"image":     opts.ImagePath,
	})

	if _, statErr := os.Stat(opts.ImagePath); os.IsNotExist(statErr) {
		width, height := opts.ProvisionWidth, opts.ProvisionHeight
		if width == 0 {
			width = bmpimage.DefaultWidth
		}
		if height == 0 {
			height = bmpimage.DefaultHeight
		}
		log.WithFields(logrus.Fields{"width": width, "height": height}).
			Info("backing image absent, provisioning a new one")
		if provErr := bmpimage.CreateImage(opts.ImagePath, width, height); provErr != nil {
			return nil, provErr
		}
	}

	file, err := os.OpenFile(opts.ImagePath, os.O_RDWR, 0644)
	if err != nil {
		if os.IsPermission(err) {
			return nil, errors.ErrPermissionDenied.WrapError(err)
		}
		return nil, errors.ErrIOFailed.WrapError(err)
	}

	fh, ih, hdrErr := bmpimage.ReadHeaders(file)
	if hdrErr != nil {
		file.Close()
		log.WithError(hdrErr).Warn("mount aborted: invalid BMP framing")
		return nil, hdrErr
	}

	geometry := bmpimage.ComputeGeometry(ih)

	vol := &Volume{
		path:       opts.ImagePath,
		file:       file,
		fileHeader: fh,
		infoHeader: ih,
		geometry:   geometry,
		mountID:    mountID,
		log:        log,
	}

	if metaErr := vol.readMetadata(); metaErr != nil {
		file.Close()
		return nil, metaErr
	}

	// Per spec §9/§13.2: reserve the bitmap entries for blocks that
	// physically overlap the metadata region, so a future change to the
	// block-offset translation formula can never hand out a colliding
	// block. This is idempotent: re-reserving an already-used range is a
	// no-op. On an image whose metadata region covers more than the whole
	// bitmap, every block is reserved.
	reserved := geometry.ReservedBlocks
	if reserved > geometry.TotalBlocks {
		reserved = geometry.TotalBlocks
	}
	vol.alloc.ReserveRange(0, uint32(reserved))

	log.WithFields(logrus.Fields{
		"total_blocks":  geometry.TotalBlocks,
		"max_files":     geometry.MaxFiles,
		"metadata_size": geometry.MetadataSize,
	}).Info("mounted")

	return vol, nil
}

// Unmount flushes metadata to disk and releases the image handle. Errors
// from the flush and the close are both surfaced, via go-multierror,
// rather than letting one mask the other.
func (v *Volume) Unmount() error {
	var result *multierror.Error

	if err := v.writeMetadata(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := v.file.Close(); err != nil {
		result = multierror.Append(result, err)
	}

	v.log.Info("unmounted")
	return result.ErrorOrNil()
}

// Flush persists the in-memory bitmap and inode table to disk. Every
// mutating operation in the fileops package must call this before
// returning success (spec §4.D).
func (v *Volume) Flush() errors.DriverError {
	return v.writeMetadata()
}

// Sync calls the host's full-sync primitive (os.File.Sync) on the backing
// image file, for the fsync operation (spec §4.H). A full sync is performed
// whether or not datasync is set; no data-only sync is used.
func (v *Volume) Sync(datasync bool) errors.DriverError {
	var err error
	if datasync {
		err = v.file.Sync()
	} else {
		err = v.file.Sync()
	}
	if err != nil {
		return errors.ErrIOFailed.WrapError(err)
	}
	return nil
}

// Geometry returns the volume's immutable derived geometry.
func (v *Volume) Geometry() bmpimage.Geometry {
	return v.geometry
}

// Path returns the path bmpfs was mounted from.
func (v *Volume) Path() string {
	return v.path
}

// MountID returns the random per-mount identifier used to distinguish log
// streams from repeated mounts of the same image.
func (v *Volume) MountID() uuid.UUID {
	return v.mountID
}

// Allocator exposes the block allocator to the fileops layer.
func (v *Volume) Allocator() *allocator.Allocator {
	return v.alloc
}

// Inodes exposes the live inode table slice to the fileops and nameindex
// layers. Mutating entries in place and then calling Flush is the
// intended pattern, matching how the teacher's driver packages mutate
// their in-memory structures directly before a wholesale metadata write.
func (v *Volume) Inodes() []inode.Inode {
	return v.inodes
}

// Logger returns the volume's structured logger, scoped with mount_id and
// image path fields.
func (v *Volume) Logger() *logrus.Entry {
	return v.log
}
