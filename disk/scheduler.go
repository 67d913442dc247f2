package disk

import (
	"sync"

	"diskhash/common"
)

// Request is a single asynchronous read or write against the disk
// manager. Done is fulfilled with true on success, false on I/O
// failure, exactly once.
type Request struct {
	IsWrite bool
	PageID  PageID
	Data    []byte
	Done    chan bool
}

// Scheduler serializes disk requests on a single background worker,
// honoring submission order across all callers (spec.md §4.1). The
// request queue is a buffered Go channel, which is safe for concurrent
// senders (MPSC) by construction.
type Scheduler struct {
	diskManager IDiskManager
	queue       chan *Request
	wg          sync.WaitGroup
}

// NewScheduler starts the background worker and returns a ready
// Scheduler.
func NewScheduler(dm IDiskManager) *Scheduler {
	s := &Scheduler{
		diskManager: dm,
		queue:       make(chan *Request, 256),
	}
	s.wg.Add(1)
	go s.startWorkerThread()
	return s
}

// Schedule enqueues req without blocking beyond channel backpressure.
// The caller waits on req.Done for the outcome.
func (s *Scheduler) Schedule(req *Request) {
	s.queue <- req
}

// Close sends the termination sentinel, drains in-flight requests, and
// blocks until the worker exits.
func (s *Scheduler) Close() {
	s.queue <- nil
	s.wg.Wait()
}

func (s *Scheduler) startWorkerThread() {
	defer s.wg.Done()

	for req := range s.queue {
		if req == nil {
			return
		}

		var err error
		if req.IsWrite {
			err = s.diskManager.WritePage(req.Data, req.PageID)
		} else {
			err = s.diskManager.ReadPage(req.PageID, req.Data)
		}

		if err != nil {
			common.Log.WithError(err).Warnf("disk scheduler: %s page %d failed", opName(req.IsWrite), req.PageID)
			req.Done <- false
			continue
		}

		req.Done <- true
	}
}

// AllocatePage and DeallocatePage pass straight through to the disk
// manager: unlike reads and writes they don't touch the page buffer, so
// there is nothing to gain by queueing them behind in-flight I/O.
func (s *Scheduler) AllocatePage() PageID {
	return s.diskManager.AllocatePage()
}

func (s *Scheduler) DeallocatePage(pageID PageID) {
	s.diskManager.DeallocatePage(pageID)
}

func opName(isWrite bool) string {
	if isWrite {
		return "write"
	}
	return "read"
}
