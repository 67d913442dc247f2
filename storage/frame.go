// Package storage holds the in-memory frame representation the buffer
// pool manages and the scoped guards that attach pin/latch ownership to
// object lifetimes.
package storage

import (
	"sync"

	"diskhash/disk"
)

// Frame is an owned, fixed-size byte buffer plus the metadata spec.md
// §3 requires: the resident page id (or disk.InvalidPageID if free), a
// pin count, a dirty flag, and a read/write latch guarding the buffer
// contents. The buffer pool is the only writer of the metadata fields;
// page guards are the only acquirers of Latch.
type Frame struct {
	Data     [disk.PageSize]byte
	PageID   disk.PageID
	PinCount int
	IsDirty  bool
	Latch    sync.RWMutex
}

// Reset clears a frame back to the "free" state: zeroed content, no
// resident page, unpinned, clean. Called by the buffer pool right
// before handing a frame a new page id, per spec.md §4.3 ("resets the
// frame").
func (f *Frame) Reset() {
	for i := range f.Data {
		f.Data[i] = 0
	}
	f.PageID = disk.InvalidPageID
	f.PinCount = 0
	f.IsDirty = false
}
