// Package allocator implements bmpfs's first-fit, contiguous-only block
// allocator (spec §4.E). The bitmap is kept packed in memory and exchanged
// with the image as one byte per block.
package allocator

import (
	"github.com/boljen/go-bitmap"

	"github.com/sena2k/bmpfs/errors"
)

// Allocator owns the free-block bitmap and finds/marks contiguous runs.
// It performs no relocation and keeps no free list beyond the bitmap
// itself: growing writes are responsible for copying data into a newly
// found run (spec §4.H's write growth policy).
type Allocator struct {
	bitmap      bitmap.Bitmap
	totalBlocks uint32
}

// New creates an allocator over a freshly zeroed bitmap of totalBlocks
// entries, all initially free. The working bitmap is packed 8 blocks per
// byte (bitmap.NewSlice); Bytes() expands it to the on-image one byte per
// block layout.
func New(totalBlocks uint32) *Allocator {
	return &Allocator{
		bitmap:      bitmap.NewSlice(int(totalBlocks)),
		totalBlocks: totalBlocks,
	}
}

// Wrap builds an allocator from an on-image bitmap buffer (as loaded from
// disk), one byte per block, any non-zero byte meaning used. len(raw) must
// equal totalBlocks; raw itself is not retained.
func Wrap(raw []byte, totalBlocks uint32) *Allocator {
	a := New(totalBlocks)
	for i := uint32(0); i < totalBlocks; i++ {
		if raw[i] != 0 {
			a.bitmap.Set(int(i), true)
		}
	}
	return a
}

// Bytes returns the on-image bitmap bytes, one per block (0 = free,
// 1 = used), suitable for writing straight into the metadata region.
func (a *Allocator) Bytes() []byte {
	raw := make([]byte, a.totalBlocks)
	for i := range raw {
		if a.bitmap.Get(i) {
			raw[i] = 1
		}
	}
	return raw
}

// TotalBlocks returns the number of blocks the bitmap tracks.
func (a *Allocator) TotalBlocks() uint32 {
	return a.totalBlocks
}

// ReserveRange marks bitmap entries [start, start+count) as permanently used,
// for blocks that physically overlap the metadata region (spec §9, §13.2).
func (a *Allocator) ReserveRange(start, count uint32) {
	a.Mark(start, count, true)
}

// FindFreeRun performs the linear first-fit scan spec §4.E requires:
// it returns the start index of the first run of n contiguous free blocks,
// or ok=false if no such run exists. Per spec, n==0 is a sentinel that
// always succeeds at index 0 without allocating anything.
func (a *Allocator) FindFreeRun(n uint32) (start uint32, ok bool) {
	if n == 0 {
		return 0, true
	}

	runLength := uint32(0)
	var runStart uint32

	for i := uint32(0); i < a.totalBlocks; i++ {
		if a.bitmap.Get(int(i)) {
			runLength = 0
			continue
		}

		if runLength == 0 {
			runStart = i
		}
		runLength++
		if runLength == n {
			return runStart, true
		}
	}

	return 0, false
}

// Mark sets bitmap entries [start, start+count) to value (true = used,
// false = free). It is the caller's responsibility to ensure the range is
// within bounds; this mirrors spec §4.E, which places no bounds-checking
// requirement on Mark itself.
func (a *Allocator) Mark(start, count uint32, value bool) {
	for i := start; i < start+count; i++ {
		a.bitmap.Set(int(i), value)
	}
}

// AllocateRun finds and marks a fresh contiguous run of n blocks in one
// step, returning ErrNoSpaceOnDevice if none is available.
func (a *Allocator) AllocateRun(n uint32) (uint32, errors.DriverError) {
	start, ok := a.FindFreeRun(n)
	if !ok {
		return 0, errors.ErrNoSpaceOnDevice.WithMessage("no contiguous free run large enough")
	}
	if n > 0 {
		a.Mark(start, n, true)
	}
	return start, nil
}

// FreeRun clears bitmap entries for a run previously returned by
// AllocateRun. A zero-length run is a no-op, matching spec §4.H's unlink
// behavior when num_blocks == 0.
func (a *Allocator) FreeRun(start, count uint32) {
	if count == 0 {
		return
	}
	a.Mark(start, count, false)
}
