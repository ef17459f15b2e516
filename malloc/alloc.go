// Package malloc implements a boundary-tag heap allocator over an
// sbrk-style substrate (package mem).
//
// The heap is tiled end-to-end by blocks. Every block carries a 4-byte
// header word holding its size and an allocation flag, and a 4-byte footer
// holding a back-pointer to its own header, so both physical neighbors are
// reachable in constant time. Free blocks additionally carry the prev/next
// links of a doubly linked free list inside their header. Freeing coalesces with
// free physical neighbors immediately; placement splits oversized blocks.
//
// Three placement policies share the core: a single size-ordered list with
// first fit, a single LIFO list with next fit, and the default segregated
// fit with seven size classes.
//
// An Allocator is single-tenant: no locks, no atomics. Calling it from
// multiple goroutines is undefined.
package malloc

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/cloudwego/malloc/mem"
)

const (
	// ChunkSize is the minimum amount the heap grows by.
	ChunkSize = 4096

	// maxHeapBytes bounds the substrate so block offsets stay clear of
	// the sentinel tag bit in the link words.
	maxHeapBytes = 1 << 30
)

// debugCheck runs the invariant checker at the top of every public
// operation. Flip on when debugging the allocator itself.
const debugCheck = false

// Policy selects how free blocks are indexed and placed.
type Policy int

const (
	// SegregatedFit indexes free blocks in per-size-class lists and
	// places from the smallest class that can satisfy the request.
	SegregatedFit Policy = iota
	// FirstFit keeps one list sorted by size and places into the first
	// fitting block from the smaller end.
	FirstFit
	// NextFit keeps one LIFO list and resumes searching from a rotating
	// cursor.
	NextFit
)

// Allocator manages one contiguous heap. The zero value is not usable;
// construct with New or NewWithPolicy.
type Allocator struct {
	heap *mem.Heap
	base unsafe.Pointer

	policy Policy
	index  freeIndex

	// sentinels backs the list head/tail nodes, addressed through refs
	// with the sentinel tag bit set. Keeping them outside the arena means
	// they never take part in boundary checks.
	sentinels []sentinel

	// heapLo is the offset of the first block. It sits past the initial
	// break so offset zero never names a block.
	heapLo      uint32
	initialized bool
}

// New returns a segregated-fit allocator over h.
func New(h *mem.Heap) (*Allocator, error) {
	return NewWithPolicy(h, SegregatedFit)
}

// NewWithPolicy returns an allocator over h using the given placement
// policy. The heap is not touched until Init or the first operation.
func NewWithPolicy(h *mem.Heap, p Policy) (*Allocator, error) {
	if h == nil || h.Cap() == 0 {
		return nil, errors.New("malloc: nil or empty heap")
	}
	if h.Cap() > maxHeapBytes {
		return nil, fmt.Errorf("malloc: heap cap %d exceeds %d", h.Cap(), maxHeapBytes)
	}
	a := &Allocator{
		heap:   h,
		base:   unsafe.Pointer(&h.Bytes()[0]),
		policy: p,
	}
	switch p {
	case SegregatedFit:
		a.index = newSegList(a)
	case FirstFit:
		a.index = newFirstFitList(a)
	case NextFit:
		a.index = newNextFitList(a)
	default:
		return nil, fmt.Errorf("malloc: unknown policy %d", p)
	}
	return a, nil
}

// Policy returns the placement policy the allocator was built with.
func (a *Allocator) Policy() Policy { return a.policy }

// Init reserves the initial heap chunk and installs one free block
// covering it. It is called implicitly by the first operation and is a
// no-op once the allocator is initialized.
func (a *Allocator) Init() error {
	if a.initialized {
		return nil
	}
	old, err := a.heap.Sbrk(ChunkSize)
	if err != nil {
		return err
	}
	// force the first block past the break so offset zero stays the nil
	// reference, then align it
	a.heapLo = alignUp(uint32(old)) + Alignment
	first := ref(a.heapLo)
	size := uint32(a.heap.Size()) - a.heapLo
	a.setBlock(first, size, 0)
	a.setFooter(first, size)
	a.index.insert(first)
	a.initialized = true
	return nil
}

// Malloc returns an 8-byte-aligned payload of length n, or nil when n <= 0
// or the substrate is exhausted.
func (a *Allocator) Malloc(n int) []byte {
	if n <= 0 {
		return nil
	}
	if !a.initialized {
		if a.Init() != nil {
			return nil
		}
	}
	a.debugVerify()

	need, ok := adjustSize(n)
	if !ok {
		return nil
	}

	b := a.index.findFit(need)
	if b != nilRef {
		a.index.took(b)
		a.index.remove(b)
	} else {
		grow := need
		if grow < ChunkSize {
			grow = ChunkSize
		}
		nb, err := a.extendHeap(grow)
		if err != nil {
			return nil
		}
		if a.policy == SegregatedFit {
			// the fresh chunk is placed directly, bypassing the index
			b = nb
		} else {
			a.index.insert(nb)
			b = a.index.findFit(need)
			a.index.took(b)
			a.index.remove(b)
		}
	}

	a.setBlock(b, a.blockSize(b), allocBit)
	if a.blockSize(b)-need >= minBlockSize {
		a.split(b, need)
	}
	return a.payload(b, n)
}

// Free releases a payload previously returned by Malloc or Realloc. A nil
// slice is a no-op. The slice may have been resliced; only its data
// pointer matters.
func (a *Allocator) Free(b []byte) {
	if b == nil {
		return
	}
	if !a.initialized {
		if a.Init() != nil {
			return
		}
	}
	a.debugVerify()

	h := a.refOf(b)
	size := a.blockSize(h)
	a.setBlock(h, size, 0)
	a.setFooter(h, size)
	h = a.coalesce(h)
	a.index.insert(h)
}

// Realloc resizes a payload. With n <= 0 it frees b and returns nil; with
// b nil it behaves as Malloc. On allocation failure it returns nil and
// leaves b untouched.
func (a *Allocator) Realloc(b []byte, n int) []byte {
	if n <= 0 {
		a.Free(b)
		return nil
	}
	if b == nil {
		return a.Malloc(n)
	}
	nb := a.Malloc(n)
	if nb == nil {
		return nil
	}
	h := a.refOf(b)
	if !a.blockAllocated(h) {
		// tolerated misuse: resizing an already-freed block skips the
		// copy, the old block stays in its list
		return nb
	}
	old := int(a.blockSize(h)) - headerSize - footerSize
	if old > n {
		old = n
	}
	copy(nb, a.payload(h, old))
	a.Free(b)
	return nb
}

// adjustSize converts a request into a block size: header, footer and
// alignment included. ok is false when the request cannot be represented.
func adjustSize(n int) (uint32, bool) {
	s := uint64(n) + headerSize + footerSize
	s = (s + alignMask) &^ uint64(alignMask)
	if s > maxHeapBytes {
		return 0, false
	}
	return uint32(s), true
}

// extendHeap grows the heap by bytes and lays a free block over the new
// region. Single-list policies coalesce it with a trailing free block at
// once; segregated fit leaves the neighbor untouched and the caller
// places into the fresh chunk directly.
func (a *Allocator) extendHeap(bytes uint32) (ref, error) {
	old, err := a.heap.Sbrk(int(bytes))
	if err != nil {
		return nilRef, err
	}
	b := ref(uint32(old))
	a.setBlock(b, bytes, 0)
	a.setFooter(b, bytes)
	if a.policy != SegregatedFit {
		b = a.coalesce(b)
	}
	return b, nil
}

// split carves need bytes off the front of b and returns the tail to the
// index. The caller guarantees the remainder is at least minBlockSize.
func (a *Allocator) split(b ref, need uint32) {
	rest := a.blockSize(b) - need
	tail := ref(uint32(b) + need)
	a.setBlock(tail, rest, 0)
	a.setFooter(tail, rest)
	a.setBlock(b, need, a.word(b)&allocBit)
	a.setFooter(b, need)
	a.index.insert(tail)
}

// coalesce merges b with any free physical neighbors and returns the
// surviving block. b must be marked free and must not be in any list; the
// result is not in any list either.
func (a *Allocator) coalesce(b ref) ref {
	size := a.blockSize(b)

	prevFree := false
	if uint32(b) != a.heapLo {
		prevFree = !a.blockAllocated(a.prevPhys(b))
	}
	end := uint32(b) + size
	nextFree := false
	if int(end) != a.heap.Size() {
		nextFree = !a.blockAllocated(ref(end))
	}
	if !prevFree && !nextFree {
		return b
	}

	if nextFree {
		succ := ref(end)
		a.index.remove(succ)
		size += a.blockSize(succ)
	}
	if prevFree {
		pred := a.prevPhys(b)
		a.index.remove(pred)
		size += a.blockSize(pred)
		b = pred
	}
	a.setBlock(b, size, 0)
	a.setFooter(b, size)
	a.index.coalesced(b)
	return b
}

func (a *Allocator) debugVerify() {
	if !debugCheck || !a.initialized {
		return
	}
	if err := a.Check(); err != nil {
		panic(err)
	}
}
