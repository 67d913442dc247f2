package hash

import "diskhash/disk"

// headerPageHeaderSize is the fixed prefix before the directory page id
// array: a single 4-byte max_depth field (spec.md §6).
const headerPageHeaderSize = 4

// HeaderPage maps the top bits of a key's hash to a directory page id.
// It wraps a page's raw bytes directly, mirroring
// thetarby-helindb/disk/pages/heap_page.go's RawPage-backed accessor
// style: no copy, every Get/Set reads or writes through to the buffer
// pool frame underneath.
type HeaderPage struct {
	data []byte
}

// AsHeaderPage wraps an already-initialized page's bytes.
func AsHeaderPage(data []byte) *HeaderPage {
	return &HeaderPage{data: data}
}

// InitHeaderPage formats a fresh page as a header with the given max
// depth, zeroing every directory slot to disk.InvalidPageID.
func InitHeaderPage(data []byte, maxDepth uint32) *HeaderPage {
	h := &HeaderPage{data: data}
	if headerPageHeaderSize+int(directoryIDArrayLen(maxDepth))*4 > len(data) {
		panic("hash: header page max depth exceeds page capacity")
	}
	putUint32(h.data[0:4], maxDepth)
	for i := uint32(0); i < directoryIDArrayLen(maxDepth); i++ {
		h.SetDirectoryPageID(i, disk.InvalidPageID)
	}
	return h
}

func directoryIDArrayLen(maxDepth uint32) uint32 {
	return uint32(1) << maxDepth
}

func (h *HeaderPage) MaxDepth() uint32 {
	return getUint32(h.data[0:4])
}

// HashToDirectoryIndex returns the top MaxDepth bits of hash.
func (h *HeaderPage) HashToDirectoryIndex(hashVal uint32) uint32 {
	maxDepth := h.MaxDepth()
	if maxDepth == 0 {
		return 0
	}
	return hashVal >> (32 - maxDepth)
}

func (h *HeaderPage) directoryIDOffset(idx uint32) int {
	return headerPageHeaderSize + int(idx)*4
}

func (h *HeaderPage) DirectoryPageID(idx uint32) disk.PageID {
	if idx >= directoryIDArrayLen(h.MaxDepth()) {
		panic("hash: header directory index out of range")
	}
	off := h.directoryIDOffset(idx)
	return disk.PageID(getUint32(h.data[off : off+4]))
}

func (h *HeaderPage) SetDirectoryPageID(idx uint32, id disk.PageID) {
	if idx >= directoryIDArrayLen(h.MaxDepth()) {
		panic("hash: header directory index out of range")
	}
	off := h.directoryIDOffset(idx)
	putUint32(h.data[off:off+4], uint32(id))
}
