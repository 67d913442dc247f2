package buffer

import (
	"fmt"
	"sync"
)

// node is the replacer's per-frame bookkeeping: its access history and
// whether it is currently a candidate for eviction.
type node struct {
	fid         FrameID
	isEvictable bool
	history     []uint64
}

var _ Replacer = &LRUKReplacer{}

// LRUKReplacer implements the backward k-distance eviction policy of
// spec.md §4.2: among evictable frames, the victim is the one with the
// largest backward k-distance, with frames that have fewer than k
// accesses ("infinite" k-distance) always losing to classical LRU among
// themselves first. Grounded directly on the two-pass partition in
// original_source/src/buffer/lru_k_replacer.cpp.
type LRUKReplacer struct {
	mu      sync.Mutex
	k       int
	nodes   map[FrameID]*node
	curSize int
	clock   uint64
}

// NewLRUKReplacer creates a replacer for a pool of numFrames frames with
// backward-distance parameter k. Every frame slot in [0, numFrames) is
// pre-registered with an empty history so that RecordAccess/SetEvictable
// can reject an out-of-range fid (spec.md §4.2). Unlike the reference
// constructor, no slot gets a seeded initial timestamp: doing so would
// inflate a never-accessed frame's history length to 1, which corrupts
// the infinite/finite partition the first time that frame is accessed
// once and compared against frames accessed zero times.
func NewLRUKReplacer(numFrames int, k int) *LRUKReplacer {
	r := &LRUKReplacer{
		k:     k,
		nodes: make(map[FrameID]*node, numFrames),
	}
	for i := 0; i < numFrames; i++ {
		r.nodes[FrameID(i)] = &node{fid: FrameID(i)}
	}
	return r
}

// now returns the next logical timestamp. A monotonic counter is used
// instead of wall-clock time so accesses are totally ordered even when
// several land within the same millisecond (spec.md §9).
func (r *LRUKReplacer) now() uint64 {
	r.clock++
	return r.clock
}

func (r *LRUKReplacer) mustGet(fid FrameID) *node {
	n, ok := r.nodes[fid]
	if !ok {
		panic(fmt.Sprintf("buffer: invalid frame id %d", fid))
	}
	return n
}

func (r *LRUKReplacer) RecordAccess(fid FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.mustGet(fid)
	n.history = append(n.history, r.now())
}

func (r *LRUKReplacer) SetEvictable(fid FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.mustGet(fid)
	if n.isEvictable && !evictable {
		r.curSize--
	} else if !n.isEvictable && evictable {
		r.curSize++
	}
	n.isEvictable = evictable
}

func (r *LRUKReplacer) Evict() (FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var infinite []*node
	var finite []*node
	for _, n := range r.nodes {
		if !n.isEvictable {
			continue
		}
		if len(n.history) < r.k {
			infinite = append(infinite, n)
		} else {
			finite = append(finite, n)
		}
	}

	if len(infinite) > 0 {
		victim := infinite[0]
		earliest := victim.history[0]
		for _, n := range infinite[1:] {
			first := n.history[0]
			if first < earliest {
				earliest = first
				victim = n
			}
		}
		return r.finishEvict(victim), true
	}

	if len(finite) > 0 {
		now := r.now()
		victim := finite[0]
		largest := now - victim.history[len(victim.history)-r.k]
		for _, n := range finite[1:] {
			dist := now - n.history[len(n.history)-r.k]
			if dist > largest {
				largest = dist
				victim = n
			}
		}
		return r.finishEvict(victim), true
	}

	return 0, false
}

func (r *LRUKReplacer) finishEvict(n *node) FrameID {
	n.history = nil
	n.isEvictable = false
	r.curSize--
	return n.fid
}

func (r *LRUKReplacer) Remove(fid FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.nodes[fid]
	if !ok {
		return
	}

	if !n.isEvictable {
		panic(fmt.Sprintf("buffer: Remove called on a non-evictable frame, fid: %d", fid))
	}

	n.history = nil
	n.isEvictable = false
	r.curSize--
}

func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.curSize
}
