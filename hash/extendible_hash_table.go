package hash

import (
	"diskhash/buffer"
	"diskhash/disk"
)

// Table is a thread-safe, disk-resident key/value store built from a
// header page, a growable directory of buckets, and fixed-capacity
// bucket pages. Every page access goes through bpm, which supplies the
// crab-latching (via page guards) that lets Get run concurrently with
// other Gets and with Inserts/Removes that are working on unrelated
// buckets. Grounded on
// original_source/src/container/disk/hash/disk_extendible_hash_table.cpp.
type Table[K comparable, V comparable] struct {
	bpm    *buffer.PoolManager
	codec  Codec[K, V]
	cmp    Comparator[K]
	hashFn HashFunction[K]

	headerPageID      disk.PageID
	headerMaxDepth    uint32
	directoryMaxDepth uint32
	bucketMaxSize     uint32
}

// NewTable allocates and initializes the table's header page. ok is
// false if the buffer pool has no room for it.
func NewTable[K comparable, V comparable](
	bpm *buffer.PoolManager,
	codec Codec[K, V],
	cmp Comparator[K],
	hashFn HashFunction[K],
	headerMaxDepth, directoryMaxDepth, bucketMaxSize uint32,
) (*Table[K, V], bool) {
	headerPageID, guard, ok := bpm.NewPageGuarded()
	if !ok {
		return nil, false
	}
	InitHeaderPage(guard.Data(), headerMaxDepth)
	guard.SetDirty()
	guard.Drop()

	return &Table[K, V]{
		bpm:               bpm,
		codec:             codec,
		cmp:               cmp,
		hashFn:            hashFn,
		headerPageID:      headerPageID,
		headerMaxDepth:    headerMaxDepth,
		directoryMaxDepth: directoryMaxDepth,
		bucketMaxSize:     bucketMaxSize,
	}, true
}

func (t *Table[K, V]) hash(key K) uint32 {
	return t.hashFn(key)
}

// Get looks up key, returning its value and true on a hit.
func (t *Table[K, V]) Get(key K) (V, bool) {
	var zero V
	if t.headerPageID == disk.InvalidPageID {
		return zero, false
	}

	hashVal := t.hash(key)

	headerGuard, ok := t.bpm.FetchPageRead(t.headerPageID)
	if !ok {
		return zero, false
	}
	header := AsHeaderPage(headerGuard.Data())
	dIdx := header.HashToDirectoryIndex(hashVal)
	dirPageID := header.DirectoryPageID(dIdx)
	headerGuard.Drop()

	if dirPageID == disk.InvalidPageID {
		return zero, false
	}

	dirGuard, ok := t.bpm.FetchPageRead(dirPageID)
	if !ok {
		return zero, false
	}
	directory := AsDirectoryPage(dirGuard.Data())
	bIdx := directory.HashToBucketIndex(hashVal)
	bucketPageID := directory.BucketPageID(bIdx)
	dirGuard.Drop()

	if bucketPageID == disk.InvalidPageID {
		return zero, false
	}

	bucketGuard, ok := t.bpm.FetchPageRead(bucketPageID)
	if !ok {
		return zero, false
	}
	bucket := AsBucketPage(bucketGuard.Data(), t.codec)
	val, found := bucket.Lookup(key, t.cmp)
	bucketGuard.Drop()

	return val, found
}

// Insert adds key->value, growing the directory/bucket structure as
// needed. Returns false if key is already present, if the buffer pool
// is exhausted during a required page allocation, or if a bucket split
// could not redistribute both halves under the new depth.
func (t *Table[K, V]) Insert(key K, value V) bool {
	if t.headerPageID == disk.InvalidPageID {
		return false
	}

	hashVal := t.hash(key)

	headerGuard, ok := t.bpm.FetchPageWrite(t.headerPageID)
	if !ok {
		return false
	}
	header := AsHeaderPage(headerGuard.Data())
	dIdx := header.HashToDirectoryIndex(hashVal)
	dirPageID := header.DirectoryPageID(dIdx)

	if dirPageID == disk.InvalidPageID {
		newDirID, dirGuard, ok := t.bpm.NewPageGuarded()
		if !ok {
			headerGuard.Drop()
			return false
		}
		InitDirectoryPage(dirGuard.Data(), t.directoryMaxDepth)
		dirGuard.SetDirty()
		dirGuard.Drop()

		header.SetDirectoryPageID(dIdx, newDirID)
		headerGuard.SetDirty()
		dirPageID = newDirID
	}
	headerGuard.Drop()

	return t.insertIntoDirectory(dirPageID, hashVal, key, value)
}

func (t *Table[K, V]) insertIntoDirectory(dirPageID disk.PageID, hashVal uint32, key K, value V) bool {
	dirGuard, ok := t.bpm.FetchPageWrite(dirPageID)
	if !ok {
		return false
	}
	directory := AsDirectoryPage(dirGuard.Data())
	bIdx := directory.HashToBucketIndex(hashVal)
	bucketPageID := directory.BucketPageID(bIdx)

	if bucketPageID == disk.InvalidPageID {
		newBucketID, bucketGuard, ok := t.bpm.NewPageGuarded()
		if !ok {
			dirGuard.Drop()
			return false
		}
		InitBucketPage(bucketGuard.Data(), t.codec, t.bucketMaxSize)
		bucketGuard.SetDirty()
		bucketGuard.Drop()

		directory.SetBucketPageID(bIdx, newBucketID)
		directory.SetLocalDepth(bIdx, 0)
		dirGuard.SetDirty()
		bucketPageID = newBucketID
	}

	bucketGuard, ok := t.bpm.FetchPageWrite(bucketPageID)
	if !ok {
		dirGuard.Drop()
		return false
	}
	bucket := AsBucketPage(bucketGuard.Data(), t.codec)

	if _, exists := bucket.Lookup(key, t.cmp); exists {
		bucketGuard.Drop()
		dirGuard.Drop()
		return false
	}

	if !bucket.IsFull() {
		inserted := bucket.Insert(key, value, t.cmp)
		if inserted {
			bucketGuard.SetDirty()
		}
		bucketGuard.Drop()
		dirGuard.Drop()
		return inserted
	}

	if directory.LocalDepth(bIdx) >= uint8(directory.GlobalDepth()) {
		if directory.GlobalDepth() >= directory.MaxDepth() {
			bucketGuard.Drop()
			dirGuard.Drop()
			return false
		}
		directory.IncrGlobalDepth()
	}

	splitOK := t.split(directory, bucket, bIdx)
	dirGuard.SetDirty()
	bucketGuard.SetDirty()
	bucketGuard.Drop()
	dirGuard.Drop()

	if !splitOK {
		return false
	}

	return t.insertIntoDirectory(dirPageID, hashVal, key, value)
}

// split increments bucketIdx's local depth, allocates its new sibling
// bucket, and redistributes bucketIdx's entries across the two buckets
// by recomputing each entry's destination under the new depth.
func (t *Table[K, V]) split(directory *DirectoryPage, bucket *BucketPage[K, V], bucketIdx uint32) bool {
	directory.IncrLocalDepth(bucketIdx)

	newBucketID, newBucketGuard, ok := t.bpm.NewPageGuarded()
	if !ok {
		directory.DecrLocalDepth(bucketIdx)
		return false
	}
	defer newBucketGuard.Drop()

	newBucket := InitBucketPage(newBucketGuard.Data(), t.codec, t.bucketMaxSize)
	newBucketGuard.SetDirty()

	newBucketIdx := directory.SplitImageIndex(bucketIdx)
	localDepth := directory.LocalDepth(bucketIdx)
	directory.SetBucketPageID(newBucketIdx, newBucketID)
	directory.SetLocalDepth(newBucketIdx, localDepth)
	oldBucketID := directory.BucketPageID(bucketIdx)
	for i := uint32(0); i < directory.Size(); i++ {
		if directory.BucketPageID(i) == oldBucketID {
			directory.SetLocalDepth(i, localDepth)
			if i&(newBucketIdx^bucketIdx) == newBucketIdx&(newBucketIdx^bucketIdx) {
				directory.SetBucketPageID(i, newBucketID)
			}
		}
	}

	existing := make([]struct {
		key K
		val V
	}, bucket.Size())
	for i := range existing {
		existing[i].key, existing[i].val = bucket.EntryAt(uint32(i))
	}
	for bucket.Size() > 0 {
		bucket.RemoveAt(bucket.Size() - 1)
	}

	for _, e := range existing {
		dest := directory.BucketPageID(directory.HashToBucketIndex(t.hash(e.key)))
		var ok bool
		switch dest {
		case oldBucketID:
			ok = bucket.Insert(e.key, e.val, t.cmp)
		case newBucketID:
			ok = newBucket.Insert(e.key, e.val, t.cmp)
		default:
			// Unreachable: every live slot that routed to the old bucket
			// now routes to one of the two.
			ok = false
		}
		if !ok {
			return false
		}
	}

	return true
}

// Remove deletes key, merging the emptied bucket with its split image
// (and recursively its image's image) while local depths allow it.
func (t *Table[K, V]) Remove(key K) bool {
	if t.headerPageID == disk.InvalidPageID {
		return false
	}

	hashVal := t.hash(key)

	headerGuard, ok := t.bpm.FetchPageWrite(t.headerPageID)
	if !ok {
		return false
	}
	header := AsHeaderPage(headerGuard.Data())
	dIdx := header.HashToDirectoryIndex(hashVal)
	dirPageID := header.DirectoryPageID(dIdx)
	headerGuard.Drop()

	if dirPageID == disk.InvalidPageID {
		return false
	}

	dirGuard, ok := t.bpm.FetchPageWrite(dirPageID)
	if !ok {
		return false
	}
	defer dirGuard.Drop()
	directory := AsDirectoryPage(dirGuard.Data())

	bIdx := directory.HashToBucketIndex(hashVal)
	bucketPageID := directory.BucketPageID(bIdx)
	if bucketPageID == disk.InvalidPageID {
		return false
	}

	bucketGuard, ok := t.bpm.FetchPageWrite(bucketPageID)
	if !ok {
		return false
	}
	bucket := AsBucketPage(bucketGuard.Data(), t.codec)

	removed := bucket.Remove(key, t.cmp)
	if !removed {
		bucketGuard.Drop()
		return false
	}
	bucketGuard.SetDirty()
	empty := bucket.IsEmpty()
	bucketGuard.Drop()
	dirGuard.SetDirty()

	if empty {
		t.mergeFrom(directory, bIdx)
	}

	return true
}

// mergeFrom implements the iterative merge loop of spec.md §4.8's
// Remove: while the bucket at idx (now empty, or the loop's current
// survivor) shares a local depth with its split image and that image is
// also a candidate, collapse the pair into one bucket and retry at the
// merged index.
func (t *Table[K, V]) mergeFrom(directory *DirectoryPage, idx uint32) {
	for directory.LocalDepth(idx) > 0 {
		splitIdx := directory.SplitImageIndex(idx)
		if directory.LocalDepth(idx) != directory.LocalDepth(splitIdx) {
			return
		}

		bucketPageID := directory.BucketPageID(idx)
		splitPageID := directory.BucketPageID(splitIdx)

		// idx and splitIdx may already have been merged onto the same
		// physical bucket by an earlier iteration (or an earlier
		// Remove) while still sharing a local depth; fetching the same
		// page id's write latch twice would deadlock, so take one
		// guard in that case instead of two.
		bucketGuard, ok := t.bpm.FetchPageWrite(bucketPageID)
		if !ok {
			return
		}
		bucket := AsBucketPage(bucketGuard.Data(), t.codec)
		bucketEmpty := bucket.IsEmpty()
		splitEmpty := bucketEmpty

		if splitPageID != bucketPageID {
			splitGuard, ok := t.bpm.FetchPageWrite(splitPageID)
			if !ok {
				bucketGuard.Drop()
				return
			}
			split := AsBucketPage(splitGuard.Data(), t.codec)
			splitEmpty = split.IsEmpty()
			splitGuard.Drop()
		}

		bucketGuard.Drop()

		if !bucketEmpty && !splitEmpty {
			return
		}

		mergeIdx := idx
		deadIdx := splitIdx
		if splitIdx < idx {
			mergeIdx = splitIdx
			deadIdx = idx
		}

		var survivorPageID disk.PageID
		var deadPageID disk.PageID
		switch {
		case bucketEmpty && splitEmpty:
			survivorPageID = directory.BucketPageID(mergeIdx)
			deadPageID = directory.BucketPageID(deadIdx)
		case bucketEmpty:
			survivorPageID = splitPageID
			deadPageID = bucketPageID
		default:
			survivorPageID = bucketPageID
			deadPageID = splitPageID
		}

		directory.DecrLocalDepth(idx)
		directory.DecrLocalDepth(splitIdx)
		directory.SetBucketPageID(idx, survivorPageID)
		directory.SetBucketPageID(splitIdx, survivorPageID)

		for i := uint32(0); i < directory.Size(); i++ {
			if directory.BucketPageID(i) == deadPageID {
				directory.SetBucketPageID(i, survivorPageID)
			}
		}

		if directory.CanShrink() {
			directory.DecrGlobalDepth()
		}

		idx = mergeIdx
	}
}
