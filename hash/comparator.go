package hash

import "hash/fnv"

// Comparator orders two keys, returning a negative number, zero, or a
// positive number exactly as cmp functions do across the standard
// library. The bucket page uses it to detect duplicates and to locate
// entries on lookup/remove.
type Comparator[K comparable] func(a, b K) int

// Codec gives the bucket page a way to serialize a fixed-width key/value
// pair into a page's byte array without depending on encoding/gob or
// reflection. KeySize and ValueSize must be constant across the
// lifetime of a table: changing them after pages exist on disk would
// corrupt the entry layout.
type Codec[K comparable, V comparable] interface {
	KeySize() int
	ValueSize() int
	EncodeKey(k K, dst []byte)
	DecodeKey(src []byte) K
	EncodeValue(v V, dst []byte)
	DecodeValue(src []byte) V
}

// HashFunction maps a key to a 32-bit hash. The header page consumes
// only its top bits and the directory page only its low bits, so a function with good
// bit dispersion across the whole word matters more than raw speed.
type HashFunction[K comparable] func(key K) uint32

// Int32Codec is a Codec for int32 keys and values, encoded big-endian.
type Int32Codec struct{}

func (Int32Codec) KeySize() int   { return 4 }
func (Int32Codec) ValueSize() int { return 4 }

func (Int32Codec) EncodeKey(k int32, dst []byte) {
	putUint32(dst, uint32(k))
}

func (Int32Codec) DecodeKey(src []byte) int32 {
	return int32(getUint32(src))
}

func (Int32Codec) EncodeValue(v int32, dst []byte) {
	putUint32(dst, uint32(v))
}

func (Int32Codec) DecodeValue(src []byte) int32 {
	return int32(getUint32(src))
}

// Int32Comparator orders int32 keys numerically.
func Int32Comparator(a, b int32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// FNV1aHash builds a HashFunction for any key type from its codec's
// fixed-width encoding. The original leaves Hash(key) as an external
// dependency (HashUtil::HashValue); this gives it a deterministic,
// dependency-free implementation (spec's §4.9 expansion).
func FNV1aHash[K comparable, V comparable](codec Codec[K, V]) HashFunction[K] {
	keySize := codec.KeySize()
	return func(key K) uint32 {
		buf := make([]byte, keySize)
		codec.EncodeKey(key, buf)
		h := fnv.New32a()
		h.Write(buf)
		return h.Sum32()
	}
}

func putUint32(dst []byte, v uint32) {
	dst[0] = byte(v >> 24)
	dst[1] = byte(v >> 16)
	dst[2] = byte(v >> 8)
	dst[3] = byte(v)
}

func getUint32(src []byte) uint32 {
	return uint32(src[0])<<24 | uint32(src[1])<<16 | uint32(src[2])<<8 | uint32(src[3])
}
