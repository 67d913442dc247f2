package buffer

import (
	"sync"

	"diskhash/common"
	"diskhash/disk"
	"diskhash/storage"
)

// PoolManager is the buffer pool: it maps disk pages onto a fixed set of
// in-memory frames, fetching and flushing through a disk.Scheduler and
// choosing eviction victims through a Replacer. Grounded on
// original_source/src/buffer/buffer_pool_manager.cpp, translated from
// promise/future round-trips to the scheduler's Request.Done channel.
type PoolManager struct {
	mu        sync.Mutex
	scheduler *disk.Scheduler
	replacer  Replacer
	frames    []storage.Frame
	freeList  []FrameID
	pageTable map[disk.PageID]FrameID
}

// NewPoolManager allocates poolSize frames backed by scheduler, evicting
// via an LRU-K replacer with the given k.
func NewPoolManager(poolSize int, scheduler *disk.Scheduler, k int) *PoolManager {
	pm := &PoolManager{
		scheduler: scheduler,
		replacer:  NewLRUKReplacer(poolSize, k),
		frames:    make([]storage.Frame, poolSize),
		freeList:  make([]FrameID, poolSize),
		pageTable: make(map[disk.PageID]FrameID, poolSize),
	}
	for i := range pm.frames {
		pm.frames[i].PageID = disk.InvalidPageID
		pm.freeList[i] = FrameID(i)
	}
	return pm
}

// pickVictimFrame returns a frame to use for a new resident page, taking
// from the free list before asking the replacer to evict. Caller must
// hold pm.mu.
func (pm *PoolManager) pickVictimFrame() (FrameID, bool) {
	if n := len(pm.freeList); n > 0 {
		fid := pm.freeList[n-1]
		pm.freeList = pm.freeList[:n-1]
		return fid, true
	}
	return pm.replacer.Evict()
}

// flushFrame writes a dirty frame's contents back to disk synchronously
// and clears its dirty bit. Caller must hold pm.mu.
func (pm *PoolManager) flushFrame(frame *storage.Frame) error {
	if !frame.IsDirty {
		return nil
	}
	done := make(chan bool, 1)
	pm.scheduler.Schedule(&disk.Request{IsWrite: true, PageID: frame.PageID, Data: frame.Data[:], Done: done})
	if !<-done {
		return common.ErrIO
	}
	frame.IsDirty = false
	return nil
}

// evictFrame prepares frame at fid for reuse: flushes it if dirty and
// removes its old page id from the page table. Caller must hold pm.mu.
func (pm *PoolManager) evictFrame(fid FrameID) error {
	frame := &pm.frames[fid]
	if err := pm.flushFrame(frame); err != nil {
		common.Log.WithError(err).Warnf("buffer: failed to flush frame %d evicting page %d", fid, frame.PageID)
		return err
	}
	delete(pm.pageTable, frame.PageID)
	return nil
}

// NewPage allocates a fresh page on disk, binds it to a frame, and
// returns it pinned once. Returns disk.InvalidPageID, nil, false when
// the pool is exhausted (spec.md §4.3).
func (pm *PoolManager) NewPage() (disk.PageID, *storage.Frame, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	fid, ok := pm.pickVictimFrame()
	if !ok {
		common.Log.Warn("buffer: pool exhausted on NewPage")
		return disk.InvalidPageID, nil, false
	}

	if err := pm.evictFrame(fid); err != nil {
		return disk.InvalidPageID, nil, false
	}

	pageID := pm.scheduler.AllocatePage()

	frame := &pm.frames[fid]
	frame.Reset()
	frame.PageID = pageID
	frame.PinCount = 1

	pm.pageTable[pageID] = fid
	pm.replacer.RecordAccess(fid)
	pm.replacer.SetEvictable(fid, false)

	return pageID, frame, true
}

// FetchPage returns the frame holding pageId, pinning it, reading it
// from disk first if it is not already resident. Returns ok=false if
// the pool has no room and nothing is evictable.
func (pm *PoolManager) FetchPage(pageID disk.PageID) (*storage.Frame, bool) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	if fid, resident := pm.pageTable[pageID]; resident {
		frame := &pm.frames[fid]
		frame.PinCount++
		pm.replacer.RecordAccess(fid)
		pm.replacer.SetEvictable(fid, false)
		return frame, true
	}

	fid, ok := pm.pickVictimFrame()
	if !ok {
		common.Log.Warn("buffer: pool exhausted on FetchPage")
		return nil, false
	}

	if err := pm.evictFrame(fid); err != nil {
		return nil, false
	}

	frame := &pm.frames[fid]
	frame.Reset()

	done := make(chan bool, 1)
	pm.scheduler.Schedule(&disk.Request{IsWrite: false, PageID: pageID, Data: frame.Data[:], Done: done})
	if !<-done {
		common.Log.Warnf("buffer: failed to read page %d from disk", pageID)
		pm.freeList = append(pm.freeList, fid)
		return nil, false
	}

	frame.PageID = pageID
	frame.PinCount = 1

	pm.pageTable[pageID] = fid
	pm.replacer.RecordAccess(fid)
	pm.replacer.SetEvictable(fid, false)

	return frame, true
}

// UnpinPage decrements pageId's pin count, marking it evictable once the
// count reaches zero. It satisfies storage.Pinner so page guards can
// call back into the pool without the storage package importing buffer.
func (pm *PoolManager) UnpinPage(pageID disk.PageID, isDirty bool) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	fid, ok := pm.pageTable[pageID]
	if !ok {
		return false
	}

	frame := &pm.frames[fid]
	if frame.PinCount == 0 {
		return false
	}

	frame.IsDirty = frame.IsDirty || isDirty
	frame.PinCount--
	if frame.PinCount == 0 {
		pm.replacer.SetEvictable(fid, true)
	}
	return true
}

// FlushPage forces pageId's frame to disk regardless of pin count.
func (pm *PoolManager) FlushPage(pageID disk.PageID) bool {
	if pageID == disk.InvalidPageID {
		return false
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	fid, ok := pm.pageTable[pageID]
	if !ok {
		return false
	}
	frame := &pm.frames[fid]
	frame.IsDirty = true
	return pm.flushFrame(frame) == nil
}

// FlushAllPages forces every resident page to disk.
func (pm *PoolManager) FlushAllPages() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	for _, fid := range pm.pageTable {
		frame := &pm.frames[fid]
		frame.IsDirty = true
		if err := pm.flushFrame(frame); err != nil {
			common.Log.WithError(err).Warnf("buffer: flush-all failed for frame %d", fid)
		}
	}
}

// DeletePage removes pageId from the pool and reclaims its on-disk
// storage. Fails if the page is still pinned.
func (pm *PoolManager) DeletePage(pageID disk.PageID) bool {
	if pageID == disk.InvalidPageID {
		return true
	}
	pm.mu.Lock()
	defer pm.mu.Unlock()

	fid, ok := pm.pageTable[pageID]
	if !ok {
		return true
	}

	frame := &pm.frames[fid]
	if frame.PinCount > 0 {
		return false
	}

	delete(pm.pageTable, pageID)
	pm.replacer.Remove(fid)
	pm.freeList = append(pm.freeList, fid)

	frame.Reset()
	pm.scheduler.DeallocatePage(pageID)

	return true
}

// NewPageGuarded is NewPage wrapped in a BasicPageGuard.
func (pm *PoolManager) NewPageGuarded() (disk.PageID, storage.BasicPageGuard, bool) {
	pageID, frame, ok := pm.NewPage()
	if !ok {
		return disk.InvalidPageID, storage.BasicPageGuard{}, false
	}
	return pageID, storage.NewBasicPageGuard(pm, frame), true
}

// FetchPageBasic is FetchPage wrapped in a BasicPageGuard.
func (pm *PoolManager) FetchPageBasic(pageID disk.PageID) (storage.BasicPageGuard, bool) {
	frame, ok := pm.FetchPage(pageID)
	if !ok {
		return storage.BasicPageGuard{}, false
	}
	return storage.NewBasicPageGuard(pm, frame), true
}

// FetchPageRead is FetchPage wrapped in a ReadPageGuard.
func (pm *PoolManager) FetchPageRead(pageID disk.PageID) (storage.ReadPageGuard, bool) {
	frame, ok := pm.FetchPage(pageID)
	if !ok {
		return storage.ReadPageGuard{}, false
	}
	return storage.NewReadPageGuard(pm, frame), true
}

// FetchPageWrite is FetchPage wrapped in a WritePageGuard.
func (pm *PoolManager) FetchPageWrite(pageID disk.PageID) (storage.WritePageGuard, bool) {
	frame, ok := pm.FetchPage(pageID)
	if !ok {
		return storage.WritePageGuard{}, false
	}
	return storage.NewWritePageGuard(pm, frame), true
}
