package disk

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"diskhash/common"
)

// PageID identifies a logical page on disk. Zero is reserved and never
// handed out by AllocatePage; it is the sentinel spec.md calls
// INVALID_PAGE_ID.
type PageID uint32

const InvalidPageID PageID = 0

// PageSize is the fixed size, in bytes, of every page this manager reads
// and writes.
const PageSize int = 4096

// IDiskManager is the external collaborator the buffer pool and disk
// scheduler depend on: synchronous, fixed-size page I/O plus allocation
// bookkeeping.
type IDiskManager interface {
	ReadPage(pageId PageID, dest []byte) error
	WritePage(data []byte, pageId PageID) error
	AllocatePage() PageID
	DeallocatePage(pageId PageID)
	Close() error
}

var _ IDiskManager = &Manager{}

// Manager is a file-backed IDiskManager. Page 0 is reserved for the
// manager's own free-list head/tail bookkeeping.
type Manager struct {
	file       *os.File
	lastPageId PageID
	mu         sync.Mutex
	header     *freeListHeader
}

// NewDiskManager opens (creating if necessary) the given file as a page
// store. The returned bool reports whether the file was freshly created.
func NewDiskManager(file string) (*Manager, bool, error) {
	f, err := os.OpenFile(file, os.O_CREATE|os.O_RDWR, os.ModePerm)
	if err != nil {
		return nil, false, err
	}

	d := &Manager{file: f}

	stat, err := f.Stat()
	if err != nil {
		return nil, false, err
	}

	if stat.Size() == 0 {
		d.lastPageId = 0
		d.initHeader()
		return d, true, nil
	}

	d.lastPageId = PageID(stat.Size()/int64(PageSize) - 1)
	return d, false, nil
}

func (d *Manager) ReadPage(pageId PageID, dest []byte) error {
	if len(dest) != PageSize {
		panic(fmt.Sprintf("ReadPage: dest buffer size %d is not PageSize", len(dest)))
	}

	_, err := d.file.Seek(int64(PageSize)*int64(pageId), io.SeekStart)
	if err != nil {
		return err
	}

	n, err := d.file.Read(dest)
	if err != nil {
		return err
	}
	if n != PageSize {
		return fmt.Errorf("partial page read, page id: %d", pageId)
	}

	return nil
}

func (d *Manager) WritePage(data []byte, pageId PageID) error {
	if len(data) != PageSize {
		panic(fmt.Sprintf("WritePage: data size %d is not PageSize", len(data)))
	}

	_, err := d.file.Seek(int64(PageSize)*int64(pageId), io.SeekStart)
	if err != nil {
		return err
	}

	n, err := d.file.Write(data)
	if err != nil {
		return err
	}
	if n != PageSize {
		return fmt.Errorf("partial page write, page id: %d", pageId)
	}

	return nil
}

// AllocatePage returns an id for a fresh logical page, preferring a
// previously deallocated id off the on-disk free list before growing the
// file with a brand-new id.
func (d *Manager) AllocatePage() PageID {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p := d.popFreeList(); p != InvalidPageID {
		return p
	}

	d.lastPageId++
	return d.lastPageId
}

// DeallocatePage threads pageId onto the on-disk free list so a future
// AllocatePage can reuse it.
func (d *Manager) DeallocatePage(pageId PageID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.getHeader()

	if h.freeListHead == InvalidPageID {
		h.freeListHead = pageId
		h.freeListTail = pageId
		d.setHeader(h)
		return
	}

	data := make([]byte, PageSize)
	if err := d.ReadPage(h.freeListTail, data); err != nil {
		common.Log.WithError(err).Warnf("disk: could not read free list tail page %d, writing fresh page", h.freeListTail)
	}

	binary.BigEndian.PutUint32(data, uint32(pageId))
	if err := d.WritePage(data, h.freeListTail); err != nil {
		panic(err)
	}

	h.freeListTail = pageId
	d.setHeader(h)
}

func (d *Manager) Close() error {
	return d.file.Close()
}

func (d *Manager) popFreeList() PageID {
	h := d.getHeader()
	if h.freeListHead == InvalidPageID {
		return InvalidPageID
	}

	if h.freeListHead == h.freeListTail {
		pageId := h.freeListHead
		h.freeListHead, h.freeListTail = InvalidPageID, InvalidPageID
		d.setHeader(h)
		return pageId
	}

	pageId := h.freeListHead

	data := make([]byte, PageSize)
	if err := d.ReadPage(h.freeListHead, data); err != nil {
		panic(err)
	}

	h.freeListHead = PageID(binary.BigEndian.Uint32(data))
	d.setHeader(h)
	return pageId
}

type freeListHeader struct {
	freeListHead PageID
	freeListTail PageID
}

func (d *Manager) getHeader() freeListHeader {
	if d.header != nil {
		return *d.header
	}

	data := make([]byte, PageSize)
	if err := d.ReadPage(0, data); err != nil {
		d.initHeader()
		return *d.header
	}

	h := freeListHeader{
		freeListHead: PageID(binary.BigEndian.Uint32(data)),
		freeListTail: PageID(binary.BigEndian.Uint32(data[4:])),
	}
	d.header = &h
	return h
}

func (d *Manager) setHeader(h freeListHeader) {
	d.header = &h
	page := make([]byte, PageSize)
	binary.BigEndian.PutUint32(page, uint32(h.freeListHead))
	binary.BigEndian.PutUint32(page[4:], uint32(h.freeListTail))
	if err := d.WritePage(page, 0); err != nil {
		panic(err)
	}
}

func (d *Manager) initHeader() {
	d.setHeader(freeListHeader{freeListHead: InvalidPageID, freeListTail: InvalidPageID})
}
