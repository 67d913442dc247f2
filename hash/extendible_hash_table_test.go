package hash

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diskhash/buffer"
	"diskhash/disk"
)

func newTestBPM(t *testing.T, poolSize int) *buffer.PoolManager {
	id, err := uuid.NewUUID()
	require.NoError(t, err)
	name := id.String() + ".db"
	t.Cleanup(func() { os.Remove(name) })

	dm, _, err := disk.NewDiskManager(name)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	sched := disk.NewScheduler(dm)
	t.Cleanup(sched.Close)

	return buffer.NewPoolManager(poolSize, sched, 2)
}

func identityHash(key int32) uint32 {
	return uint32(key)
}

func TestExtendibleHashTable_RoundTripDistinctKeys(t *testing.T) {
	bpm := newTestBPM(t, 16)
	table, ok := NewTable[int32, int32](bpm, Int32Codec{}, Int32Comparator, identityHash, 2, 4, 4)
	require.True(t, ok)

	for i := int32(0); i < 20; i++ {
		require.True(t, table.Insert(i, i*10))
	}

	for i := int32(0); i < 20; i++ {
		v, ok := table.Get(i)
		require.True(t, ok, "key %d should be present", i)
		assert.Equal(t, i*10, v)
	}

	for i := int32(0); i < 20; i++ {
		require.True(t, table.Remove(i))
	}

	for i := int32(0); i < 20; i++ {
		_, ok := table.Get(i)
		assert.False(t, ok, "key %d should be gone after remove", i)
	}
}

func TestExtendibleHashTable_InsertRejectsDuplicateKey(t *testing.T) {
	bpm := newTestBPM(t, 16)
	table, ok := NewTable[int32, int32](bpm, Int32Codec{}, Int32Comparator, identityHash, 2, 2, 4)
	require.True(t, ok)

	require.True(t, table.Insert(7, 70))
	assert.False(t, table.Insert(7, 99))

	v, ok := table.Get(7)
	require.True(t, ok)
	assert.Equal(t, int32(70), v)
}

func TestExtendibleHashTable_RemoveOfMissingKeyFails(t *testing.T) {
	bpm := newTestBPM(t, 16)
	table, ok := NewTable[int32, int32](bpm, Int32Codec{}, Int32Comparator, identityHash, 2, 2, 4)
	require.True(t, ok)

	assert.False(t, table.Remove(1))

	require.True(t, table.Insert(1, 1))
	require.True(t, table.Remove(1))
	assert.False(t, table.Remove(1))
}

// TestExtendibleHashTable_SplitKeepsAllKeysReachable walks spec.md §8's
// fifth scenario: a bucket fills and forces a split, and every key that
// was in the original bucket is still reachable afterward.
func TestExtendibleHashTable_SplitKeepsAllKeysReachable(t *testing.T) {
	bpm := newTestBPM(t, 16)
	table, ok := NewTable[int32, int32](bpm, Int32Codec{}, Int32Comparator, identityHash, 2, 2, 2)
	require.True(t, ok)

	require.True(t, table.Insert(1, 1))
	require.True(t, table.Insert(2, 2))
	require.True(t, table.Insert(3, 3))

	for _, k := range []int32{1, 2, 3} {
		v, ok := table.Get(k)
		require.True(t, ok, "key %d should survive the split", k)
		assert.Equal(t, k, v)
	}
}

// TestExtendibleHashTable_RemoveCausingMergeShrinksDepth walks spec.md
// §8's sixth scenario: continuing the split above, removing the two
// keys sharing the split bucket empties it, triggers a merge back into
// its sibling, and global depth shrinks back toward 0.
func TestExtendibleHashTable_RemoveCausingMergeShrinksDepth(t *testing.T) {
	bpm := newTestBPM(t, 16)
	table, ok := NewTable[int32, int32](bpm, Int32Codec{}, Int32Comparator, identityHash, 2, 2, 2)
	require.True(t, ok)

	require.True(t, table.Insert(1, 1))
	require.True(t, table.Insert(2, 2))
	require.True(t, table.Insert(3, 3))

	require.True(t, table.Remove(1))
	require.True(t, table.Remove(3))

	v, ok := table.Get(2)
	require.True(t, ok, "surviving key must still be reachable after merge")
	assert.Equal(t, int32(2), v)

	_, ok = table.Get(1)
	assert.False(t, ok)
	_, ok = table.Get(3)
	assert.False(t, ok)

	headerGuard, ok := bpm.FetchPageRead(table.headerPageID)
	require.True(t, ok)
	dirPageID := AsHeaderPage(headerGuard.Data()).DirectoryPageID(0)
	headerGuard.Drop()
	dirGuard, ok := bpm.FetchPageRead(dirPageID)
	require.True(t, ok)
	assert.Equal(t, uint32(0), AsDirectoryPage(dirGuard.Data()).GlobalDepth())
	dirGuard.Drop()
}

func TestExtendibleHashTable_GetOnEmptyTableMisses(t *testing.T) {
	bpm := newTestBPM(t, 16)
	table, ok := NewTable[int32, int32](bpm, Int32Codec{}, Int32Comparator, identityHash, 2, 2, 4)
	require.True(t, ok)

	_, ok = table.Get(42)
	assert.False(t, ok)
}
