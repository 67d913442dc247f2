package hash

// bucketPageHeaderSize is size (4 bytes) + max_size (4 bytes), per
// spec.md §6.
const bucketPageHeaderSize = 8

// BucketPage is a fixed-capacity, unordered array of (key, value)
// entries: one hash-collision chain stored entirely within one page.
// Grounded on the Codec/generic-comparator pattern
// thetarby-helindb/btree/key_serializer.go uses for its own
// fixed-width B-tree keys, translated to Go 1.21 generics the way
// thetarby-helindb's common.KeyMutex[T any] already does.
type BucketPage[K comparable, V comparable] struct {
	data  []byte
	codec Codec[K, V]
}

func AsBucketPage[K comparable, V comparable](data []byte, codec Codec[K, V]) *BucketPage[K, V] {
	return &BucketPage[K, V]{data: data, codec: codec}
}

// InitBucketPage formats a fresh page with size=0 and the given
// capacity.
func InitBucketPage[K comparable, V comparable](data []byte, codec Codec[K, V], maxSize uint32) *BucketPage[K, V] {
	entryWidth := codec.KeySize() + codec.ValueSize()
	if bucketPageHeaderSize+int(maxSize)*entryWidth > len(data) {
		panic("hash: bucket max size exceeds page capacity")
	}
	b := &BucketPage[K, V]{data: data, codec: codec}
	putUint32(b.data[0:4], 0)
	putUint32(b.data[4:8], maxSize)
	return b
}

func (b *BucketPage[K, V]) Size() uint32 {
	return getUint32(b.data[0:4])
}

func (b *BucketPage[K, V]) setSize(v uint32) {
	putUint32(b.data[0:4], v)
}

func (b *BucketPage[K, V]) MaxSize() uint32 {
	return getUint32(b.data[4:8])
}

func (b *BucketPage[K, V]) IsFull() bool {
	return b.Size() >= b.MaxSize()
}

func (b *BucketPage[K, V]) IsEmpty() bool {
	return b.Size() == 0
}

func (b *BucketPage[K, V]) entryWidth() int {
	return b.codec.KeySize() + b.codec.ValueSize()
}

func (b *BucketPage[K, V]) entryOffset(idx uint32) int {
	return bucketPageHeaderSize + int(idx)*b.entryWidth()
}

func (b *BucketPage[K, V]) checkIndex(idx uint32) {
	if idx >= b.Size() {
		panic("hash: bucket entry index out of range")
	}
}

func (b *BucketPage[K, V]) KeyAt(idx uint32) K {
	b.checkIndex(idx)
	off := b.entryOffset(idx)
	return b.codec.DecodeKey(b.data[off : off+b.codec.KeySize()])
}

func (b *BucketPage[K, V]) ValueAt(idx uint32) V {
	b.checkIndex(idx)
	off := b.entryOffset(idx) + b.codec.KeySize()
	return b.codec.DecodeValue(b.data[off : off+b.codec.ValueSize()])
}

func (b *BucketPage[K, V]) EntryAt(idx uint32) (K, V) {
	return b.KeyAt(idx), b.ValueAt(idx)
}

func (b *BucketPage[K, V]) writeEntry(idx uint32, key K, value V) {
	off := b.entryOffset(idx)
	b.codec.EncodeKey(key, b.data[off:off+b.codec.KeySize()])
	b.codec.EncodeValue(value, b.data[off+b.codec.KeySize():off+b.entryWidth()])
}

// Lookup linearly scans for a key equal to key under cmp, returning its
// value and true on the first match.
func (b *BucketPage[K, V]) Lookup(key K, cmp Comparator[K]) (V, bool) {
	for i := uint32(0); i < b.Size(); i++ {
		if cmp(b.KeyAt(i), key) == 0 {
			return b.ValueAt(i), true
		}
	}
	var zero V
	return zero, false
}

// Insert appends (key, value) at the current size and returns true,
// unless the bucket is full or key is already present.
func (b *BucketPage[K, V]) Insert(key K, value V, cmp Comparator[K]) bool {
	if b.IsFull() {
		return false
	}
	if _, found := b.Lookup(key, cmp); found {
		return false
	}
	idx := b.Size()
	b.writeEntry(idx, key, value)
	b.setSize(idx + 1)
	return true
}

// RemoveAt shifts every entry after idx left by one and decrements
// size. idx must be in range.
func (b *BucketPage[K, V]) RemoveAt(idx uint32) {
	b.checkIndex(idx)
	size := b.Size()
	for i := idx; i+1 < size; i++ {
		k, v := b.EntryAt(i + 1)
		b.writeEntry(i, k, v)
	}
	b.setSize(size - 1)
}

// Remove scans for key and removes its entry, returning whether a match
// was found.
func (b *BucketPage[K, V]) Remove(key K, cmp Comparator[K]) bool {
	for i := uint32(0); i < b.Size(); i++ {
		if cmp(b.KeyAt(i), key) == 0 {
			b.RemoveAt(i)
			return true
		}
	}
	return false
}
