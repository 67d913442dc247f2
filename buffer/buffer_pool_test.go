package buffer

import (
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diskhash/disk"
)

func newTestPool(t *testing.T, poolSize, k int) *PoolManager {
	id, err := uuid.NewUUID()
	require.NoError(t, err)
	name := id.String() + ".db"
	t.Cleanup(func() { os.Remove(name) })

	dm, _, err := disk.NewDiskManager(name)
	require.NoError(t, err)
	t.Cleanup(func() { dm.Close() })

	sched := disk.NewScheduler(dm)
	t.Cleanup(sched.Close)

	return NewPoolManager(poolSize, sched, k)
}

// TestPoolManager_FillsThenExhausts walks spec.md §8's third scenario: a
// pool of 3 frames fills on three NewPage calls, a fourth fails while
// all three remain pinned, and unpinning one frame frees it up for a
// fourth allocation, which evicts that frame.
func TestPoolManager_FillsThenExhausts(t *testing.T) {
	pool := newTestPool(t, 3, 2)

	id0, _, ok := pool.NewPage()
	require.True(t, ok)
	id1, _, ok := pool.NewPage()
	require.True(t, ok)
	id2, _, ok := pool.NewPage()
	require.True(t, ok)

	assert.NotEqual(t, id0, id1)
	assert.NotEqual(t, id1, id2)

	_, _, ok = pool.NewPage()
	assert.False(t, ok, "pool should be exhausted while all three frames are pinned")

	require.True(t, pool.UnpinPage(id1, false))

	id3, frame3, ok := pool.NewPage()
	require.True(t, ok)
	assert.NotEqual(t, id1, id3)
	assert.Equal(t, id3, frame3.PageID)

	_, ok = pool.FetchPage(id1)
	assert.False(t, ok, "page 1's frame should have been reused for the new page")
}

// TestPoolManager_DirtyPageSurvivesEviction walks spec.md §8's fourth
// scenario: id0 is written and unpinned dirty, then a third page is
// allocated into the full pool. LRU-K evicts the frame holding id1 (one
// recorded access) rather than id0 (two), and a later fetch of id0
// still observes the write.
func TestPoolManager_DirtyPageSurvivesEviction(t *testing.T) {
	pool := newTestPool(t, 2, 2)

	id0, frame0, ok := pool.NewPage()
	require.True(t, ok)
	frame0.Data[0] = 'D'
	frame0.Data[1] = '0'
	require.True(t, pool.UnpinPage(id0, true))

	id1, _, ok := pool.NewPage()
	require.True(t, ok)
	require.True(t, pool.UnpinPage(id1, false))

	_, ok = pool.FetchPage(id0)
	require.True(t, ok)
	require.True(t, pool.UnpinPage(id0, false))

	id2, _, ok := pool.NewPage()
	require.True(t, ok)
	require.True(t, pool.UnpinPage(id2, false))

	frame0Later, ok := pool.FetchPage(id0)
	require.True(t, ok)
	assert.Equal(t, byte('D'), frame0Later.Data[0])
	assert.Equal(t, byte('0'), frame0Later.Data[1])

	require.True(t, pool.UnpinPage(id0, false))
	// id2 was already unpinned right after NewPage.
	assert.False(t, pool.UnpinPage(id2, false))
}

func TestPoolManager_UnpinUnknownPageFails(t *testing.T) {
	pool := newTestPool(t, 2, 2)
	assert.False(t, pool.UnpinPage(disk.PageID(999), false))
}

func TestPoolManager_DeletePageFailsWhilePinned(t *testing.T) {
	pool := newTestPool(t, 2, 2)
	id, _, ok := pool.NewPage()
	require.True(t, ok)

	assert.False(t, pool.DeletePage(id))

	require.True(t, pool.UnpinPage(id, false))
	assert.True(t, pool.DeletePage(id))

	_, ok = pool.FetchPage(id)
	assert.False(t, ok)
}

func TestPoolManager_GuardedFetchRoundTrips(t *testing.T) {
	pool := newTestPool(t, 2, 2)
	id, guard, ok := pool.NewPageGuarded()
	require.True(t, ok)
	copy(guard.Data(), []byte("hello"))
	guard.SetDirty()
	guard.Drop()

	read, ok := pool.FetchPageRead(id)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), read.Data()[:5])
	read.Drop()
}
