package hash

import "diskhash/disk"

// directoryPageHeaderSize is max_depth (4 bytes) + global_depth (4
// bytes), preceding the parallel local_depths/bucket_page_ids arrays
// (spec.md §6).
const directoryPageHeaderSize = 8

// DirectoryPage maps the low global_depth bits of a key's hash to a
// bucket page id, tracking a local depth per slot so splits only ever
// touch the slots that share the split bucket.
type DirectoryPage struct {
	data []byte
}

func AsDirectoryPage(data []byte) *DirectoryPage {
	return &DirectoryPage{data: data}
}

// InitDirectoryPage formats a fresh page with global_depth=0 and every
// slot pointing at disk.InvalidPageID.
func InitDirectoryPage(data []byte, maxDepth uint32) *DirectoryPage {
	cap32 := directoryCapacity(maxDepth)
	if directoryPageHeaderSize+int(cap32)*5 > len(data) {
		panic("hash: directory page max depth exceeds page capacity")
	}
	d := &DirectoryPage{data: data}
	putUint32(d.data[0:4], maxDepth)
	putUint32(d.data[4:8], 0)
	for i := uint32(0); i < cap32; i++ {
		d.setLocalDepthRaw(i, 0)
		d.SetBucketPageID(i, disk.InvalidPageID)
	}
	return d
}

func directoryCapacity(maxDepth uint32) uint32 {
	return uint32(1) << maxDepth
}

func (d *DirectoryPage) MaxDepth() uint32 {
	return getUint32(d.data[0:4])
}

func (d *DirectoryPage) GlobalDepth() uint32 {
	return getUint32(d.data[4:8])
}

func (d *DirectoryPage) setGlobalDepth(v uint32) {
	putUint32(d.data[4:8], v)
}

// Size is the number of live slots: 1 << GlobalDepth.
func (d *DirectoryPage) Size() uint32 {
	return uint32(1) << d.GlobalDepth()
}

func (d *DirectoryPage) GlobalDepthMask() uint32 {
	return d.Size() - 1
}

func (d *DirectoryPage) LocalDepthMask(idx uint32) uint32 {
	return (uint32(1) << d.LocalDepth(idx)) - 1
}

func (d *DirectoryPage) localDepthsOffset() int {
	return directoryPageHeaderSize
}

func (d *DirectoryPage) bucketIDsOffset() int {
	return directoryPageHeaderSize + int(directoryCapacity(d.MaxDepth()))
}

func (d *DirectoryPage) checkIndex(idx uint32) {
	if idx >= directoryCapacity(d.MaxDepth()) {
		panic("hash: directory index out of range")
	}
}

func (d *DirectoryPage) LocalDepth(idx uint32) uint8 {
	d.checkIndex(idx)
	return d.data[d.localDepthsOffset()+int(idx)]
}

func (d *DirectoryPage) setLocalDepthRaw(idx uint32, v uint8) {
	d.checkIndex(idx)
	d.data[d.localDepthsOffset()+int(idx)] = v
}

func (d *DirectoryPage) SetLocalDepth(idx uint32, v uint8) {
	d.setLocalDepthRaw(idx, v)
}

func (d *DirectoryPage) BucketPageID(idx uint32) disk.PageID {
	d.checkIndex(idx)
	off := d.bucketIDsOffset() + int(idx)*4
	return disk.PageID(getUint32(d.data[off : off+4]))
}

func (d *DirectoryPage) SetBucketPageID(idx uint32, id disk.PageID) {
	d.checkIndex(idx)
	off := d.bucketIDsOffset() + int(idx)*4
	putUint32(d.data[off:off+4], uint32(id))
}

// HashToBucketIndex takes the low GlobalDepth bits of hashVal.
func (d *DirectoryPage) HashToBucketIndex(hashVal uint32) uint32 {
	return hashVal & d.GlobalDepthMask()
}

// SplitImageIndex toggles bit (local_depth(idx) - 1) of idx. The local
// depth at idx must already reflect the post-increment depth, per
// spec.md §9 ("ambiguous at local depth 0... treat it as a precondition
// violation").
func (d *DirectoryPage) SplitImageIndex(idx uint32) uint32 {
	ld := d.LocalDepth(idx)
	if ld == 0 {
		panic("hash: split image index undefined at local depth 0")
	}
	return idx ^ (uint32(1) << (ld - 1))
}

// IncrGlobalDepth doubles the live region, copying each slot's contents
// into its mirror at i + old_size.
func (d *DirectoryPage) IncrGlobalDepth() {
	if d.GlobalDepth() >= d.MaxDepth() {
		panic("hash: incr global depth beyond max depth")
	}
	oldSize := d.Size()
	for i := uint32(0); i < oldSize; i++ {
		d.SetBucketPageID(i+oldSize, d.BucketPageID(i))
		d.SetLocalDepth(i+oldSize, d.LocalDepth(i))
	}
	d.setGlobalDepth(d.GlobalDepth() + 1)
}

// CanShrink reports whether every live slot's local depth is strictly
// less than the global depth, the precondition for DecrGlobalDepth.
func (d *DirectoryPage) CanShrink() bool {
	gd := d.GlobalDepth()
	for i := uint32(0); i < d.Size(); i++ {
		if d.LocalDepth(i) >= uint8(gd) {
			return false
		}
	}
	return true
}

func (d *DirectoryPage) DecrGlobalDepth() {
	if !d.CanShrink() {
		panic("hash: decr global depth violates CanShrink precondition")
	}
	d.setGlobalDepth(d.GlobalDepth() - 1)
}

func (d *DirectoryPage) IncrLocalDepth(idx uint32) {
	ld := d.LocalDepth(idx)
	if uint32(ld) >= d.GlobalDepth() || uint32(ld) >= d.MaxDepth() {
		panic("hash: incr local depth beyond global/max depth")
	}
	d.SetLocalDepth(idx, ld+1)
}

func (d *DirectoryPage) DecrLocalDepth(idx uint32) {
	ld := d.LocalDepth(idx)
	if ld == 0 {
		panic("hash: decr local depth below zero")
	}
	d.SetLocalDepth(idx, ld-1)
}
