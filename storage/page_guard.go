package storage

import "diskhash/disk"

// Pinner is the slice of the buffer pool's contract that a page guard
// needs to release its pin on drop. Defining it here (rather than
// importing the buffer package) avoids an import cycle between storage
// and buffer while still letting buffer.PoolManager satisfy it
// implicitly.
type Pinner interface {
	UnpinPage(pageId disk.PageID, isDirty bool) bool
}

// BasicPageGuard owns exactly one pin on Frame. Its zero value owns
// nothing. Callers must call Drop on every exit path; Go has no
// destructors, so unlike the reference's C++ RAII guard this is not
// automatic.
type BasicPageGuard struct {
	pool    Pinner
	frame   *Frame
	isDirty bool
}

// NewBasicPageGuard wraps an already-pinned frame. Callers obtain one
// through a buffer pool's FetchPageBasic/NewPageGuarded, not directly.
func NewBasicPageGuard(pool Pinner, frame *Frame) BasicPageGuard {
	return BasicPageGuard{pool: pool, frame: frame}
}

func (g *BasicPageGuard) PageID() disk.PageID {
	return g.frame.PageID
}

func (g *BasicPageGuard) Data() []byte {
	return g.frame.Data[:]
}

// SetDirty marks the underlying frame dirty so Drop's unpin carries the
// flag through to the buffer pool.
func (g *BasicPageGuard) SetDirty() {
	g.isDirty = true
}

// Drop releases the pin this guard owns. Idempotent: a guard that has
// already been dropped, moved-from, or upgraded holds a nil pool and
// Drop is then a no-op, matching spec.md §4.4 ("double-drop is a
// no-op").
func (g *BasicPageGuard) Drop() {
	if g.pool == nil || g.frame == nil {
		return
	}
	g.pool.UnpinPage(g.frame.PageID, g.isDirty)
	g.pool = nil
	g.frame = nil
	g.isDirty = false
}

// Move transfers this guard's pin to a freshly returned guard and
// empties the receiver, mirroring the reference's move constructor.
func (g *BasicPageGuard) Move() BasicPageGuard {
	moved := BasicPageGuard{pool: g.pool, frame: g.frame, isDirty: g.isDirty}
	g.pool, g.frame, g.isDirty = nil, nil, false
	return moved
}

// UpgradeRead consumes the receiver and returns a ReadPageGuard holding
// the same pin plus a freshly acquired shared latch.
func (g *BasicPageGuard) UpgradeRead() ReadPageGuard {
	result := ReadPageGuard{inner: BasicPageGuard{pool: g.pool, frame: g.frame, isDirty: g.isDirty}}
	g.pool, g.frame, g.isDirty = nil, nil, false
	if result.inner.frame != nil {
		result.inner.frame.Latch.RLock()
	}
	return result
}

// UpgradeWrite consumes the receiver and returns a WritePageGuard
// holding the same pin plus a freshly acquired exclusive latch.
func (g *BasicPageGuard) UpgradeWrite() WritePageGuard {
	result := WritePageGuard{inner: BasicPageGuard{pool: g.pool, frame: g.frame, isDirty: g.isDirty}}
	g.pool, g.frame, g.isDirty = nil, nil, false
	if result.inner.frame != nil {
		result.inner.frame.Latch.Lock()
	}
	return result
}

// ReadPageGuard wraps a BasicPageGuard and additionally holds the
// frame's shared latch.
type ReadPageGuard struct {
	inner BasicPageGuard
}

// NewReadPageGuard pins frame (via the already-incremented pin count the
// pool established) and acquires its shared latch.
func NewReadPageGuard(pool Pinner, frame *Frame) ReadPageGuard {
	frame.Latch.RLock()
	return ReadPageGuard{inner: BasicPageGuard{pool: pool, frame: frame}}
}

func (g *ReadPageGuard) PageID() disk.PageID { return g.inner.PageID() }
func (g *ReadPageGuard) Data() []byte        { return g.inner.Data() }

// Drop releases the shared latch, then the pin, in that order (spec.md
// §4.4: "latch release precedes unpin").
func (g *ReadPageGuard) Drop() {
	if g.inner.frame != nil && g.inner.pool != nil {
		g.inner.frame.Latch.RUnlock()
	}
	g.inner.Drop()
}

// WritePageGuard wraps a BasicPageGuard and holds the frame's exclusive
// latch.
type WritePageGuard struct {
	inner BasicPageGuard
}

// NewWritePageGuard pins frame and acquires its exclusive latch.
func NewWritePageGuard(pool Pinner, frame *Frame) WritePageGuard {
	frame.Latch.Lock()
	return WritePageGuard{inner: BasicPageGuard{pool: pool, frame: frame}}
}

func (g *WritePageGuard) PageID() disk.PageID { return g.inner.PageID() }
func (g *WritePageGuard) Data() []byte        { return g.inner.Data() }
func (g *WritePageGuard) SetDirty()           { g.inner.SetDirty() }

// Drop releases the exclusive latch, then the pin, in that order.
func (g *WritePageGuard) Drop() {
	if g.inner.frame != nil && g.inner.pool != nil {
		g.inner.frame.Latch.Unlock()
	}
	g.inner.Drop()
}
