package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"diskhash/disk"
)

func newHeaderBuf() []byte {
	return make([]byte, disk.PageSize)
}

func TestHeaderPage_InitZeroesDirectorySlots(t *testing.T) {
	h := InitHeaderPage(newHeaderBuf(), 3)
	assert.Equal(t, uint32(3), h.MaxDepth())
	for i := uint32(0); i < 8; i++ {
		assert.Equal(t, disk.InvalidPageID, h.DirectoryPageID(i))
	}
}

func TestHeaderPage_HashToDirectoryIndexTakesTopBits(t *testing.T) {
	h := InitHeaderPage(newHeaderBuf(), 2)
	// top 2 bits of 0xC0000000 are 11.
	assert.Equal(t, uint32(0b11), h.HashToDirectoryIndex(0xC0000000))
	// top 2 bits of 0x40000000 are 01.
	assert.Equal(t, uint32(0b01), h.HashToDirectoryIndex(0x40000000))
}

func TestHeaderPage_SetAndGetDirectoryPageID(t *testing.T) {
	h := InitHeaderPage(newHeaderBuf(), 2)
	h.SetDirectoryPageID(2, disk.PageID(77))
	assert.Equal(t, disk.PageID(77), h.DirectoryPageID(2))
	assert.Equal(t, disk.InvalidPageID, h.DirectoryPageID(0))
}

func TestHeaderPage_OutOfRangeIndexPanics(t *testing.T) {
	h := InitHeaderPage(newHeaderBuf(), 2)
	assert.Panics(t, func() { h.DirectoryPageID(4) })
}
