// Package inode defines the on-image 309-byte file/directory record and its
// exact byte-packed serialization, ported from the layout the original
// bmpfs.c called MetadadosArquivo.
package inode

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/sena2k/bmpfs/errors"
)

// NameSize is the fixed width of the on-image name field, in bytes.
const NameSize = 256

// RecordSize is the normative on-image size of a single inode record. The
// original C implementation statically asserts this with
// `_Static_assert(sizeof(MetadadosArquivo) == 309, ...)`; inode_test.go
// reproduces that check for the Go encoding.
const RecordSize = NameSize + 8 + 8 + 8 + 8 + 4 + 4 + 4 + 4 + 4 + 1

// UnallocatedBlock is the sentinel value for Inode.FirstBlock meaning "this
// file owns no blocks".
const UnallocatedBlock = ^uint32(0)

// rawInode is the exact byte-packed on-image layout. Field order and widths
// are normative; encoding/binary writes them back to back with no padding,
// same as the teacher's RawInode/RawDirent structs.
type rawInode struct {
	Name        [NameSize]byte
	Size        uint64
	Created     uint64
	Modified    uint64
	Accessed    uint64
	FirstBlock  uint32
	NumBlocks   uint32
	Mode        uint32
	UID         uint32
	GID         uint32
	IsDir       uint8
}

// Inode is the in-memory, friendlier view of a single inode slot. It does
// not record its own slot number; callers track that separately (the name
// index works in terms of slot indices into the flat inode table, not
// inode numbers).
type Inode struct {
	Name       string
	Size       uint64
	Created    time.Time
	Modified   time.Time
	Accessed   time.Time
	FirstBlock uint32
	NumBlocks  uint32
	Mode       uint32
	UID        uint32
	GID        uint32
	IsDir      bool
}

// IsFree reports whether this slot is unoccupied, i.e. its name's first byte
// is NUL on-image.
func (n *Inode) IsFree() bool {
	return n.Name == ""
}

func toUnixSeconds(t time.Time) uint64 {
	if t.IsZero() {
		return 0
	}
	return uint64(t.Unix())
}

func fromUnixSeconds(sec uint64) time.Time {
	return time.Unix(int64(sec), 0).UTC()
}

// Encode serializes a single Inode to its exact 309-byte on-image form.
func Encode(n Inode) []byte {
	var raw rawInode
	copy(raw.Name[:], n.Name)
	raw.Size = n.Size
	raw.Created = toUnixSeconds(n.Created)
	raw.Modified = toUnixSeconds(n.Modified)
	raw.Accessed = toUnixSeconds(n.Accessed)
	raw.FirstBlock = n.FirstBlock
	raw.NumBlocks = n.NumBlocks
	raw.Mode = n.Mode
	raw.UID = n.UID
	raw.GID = n.GID
	if n.IsDir {
		raw.IsDir = 1
	}

	buf := new(bytes.Buffer)
	buf.Grow(RecordSize)
	// binary.Write on a fixed-width struct never fails for types this
	// package uses; the error is only reachable for unsupported kinds.
	_ = binary.Write(buf, binary.LittleEndian, &raw)
	return buf.Bytes()
}

// Decode parses exactly RecordSize bytes into an Inode. A slot whose first
// name byte is NUL decodes to a free (zero-value) Inode.
func Decode(data []byte) (Inode, errors.DriverError) {
	if len(data) != RecordSize {
		return Inode{}, errors.ErrIOFailed.WithMessage("short inode record")
	}

	var raw rawInode
	if err := binary.Read(bytes.NewReader(data), binary.LittleEndian, &raw); err != nil {
		return Inode{}, errors.ErrIOFailed.WrapError(err)
	}

	if raw.Name[0] == 0 {
		return Inode{}, nil
	}

	nameEnd := bytes.IndexByte(raw.Name[:], 0)
	if nameEnd < 0 {
		nameEnd = len(raw.Name)
	}

	return Inode{
		Name:       string(raw.Name[:nameEnd]),
		Size:       raw.Size,
		Created:    fromUnixSeconds(raw.Created),
		Modified:   fromUnixSeconds(raw.Modified),
		Accessed:   fromUnixSeconds(raw.Accessed),
		FirstBlock: raw.FirstBlock,
		NumBlocks:  raw.NumBlocks,
		Mode:       raw.Mode,
		UID:        raw.UID,
		GID:        raw.GID,
		IsDir:      raw.IsDir != 0,
	}, nil
}
