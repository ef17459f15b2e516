package malloc

import (
	"unsafe"
)

const (
	// Alignment is the payload alignment. Block sizes are multiples of it,
	// which frees the low bits of the size word for flags.
	Alignment = 8
	alignMask = Alignment - 1

	// headerSize is the size word plus the two free-list links, rounded up
	// to Alignment. footerSize is the back-pointer word, rounded up.
	headerSize = 16
	footerSize = 8

	// minBlockSize is the smallest block that still holds the header, the
	// footer and one aligned payload word.
	minBlockSize = headerSize + footerSize + Alignment

	allocBit = uint32(1)
	sizeMask = ^uint32(alignMask)

	// link field offsets within a free block header
	prevOff = 4
	nextOff = 8
)

// ref addresses a free-list node: a block header offset inside the heap
// arena, or, with sentinelBit set, an entry of the allocator's sentinel
// table, which lives outside the arena. The first block starts past offset
// zero, so zero doubles as the nil reference.
type ref uint32

const (
	nilRef      ref = 0
	sentinelBit ref = 1 << 31
)

// sentinel is a list head or tail node. Its word reads as an allocated
// block of size zero, so list traversal skips it on the size check alone.
type sentinel struct {
	word uint32
	prev ref
	next ref
}

func alignUp(n uint32) uint32 { return (n + alignMask) &^ uint32(alignMask) }

// hdr returns the header word of a heap block. Not valid for sentinels.
func (a *Allocator) hdr(b ref) *uint32 {
	return (*uint32)(unsafe.Add(a.base, int(b)))
}

func (a *Allocator) word(b ref) uint32 { return *a.hdr(b) }

func (a *Allocator) blockSize(b ref) uint32 { return *a.hdr(b) & sizeMask }

func (a *Allocator) blockAllocated(b ref) bool { return *a.hdr(b)&allocBit != 0 }

// setBlock writes the header word: size in the upper bits, the allocation
// flag in bit zero.
func (a *Allocator) setBlock(b ref, size, flag uint32) {
	*a.hdr(b) = size | flag
}

// setFooter writes the block's back-pointer word at its last aligned slot.
func (a *Allocator) setFooter(b ref, size uint32) {
	*(*uint32)(unsafe.Add(a.base, int(uint32(b)+size-footerSize))) = uint32(b)
}

// footer reads the back-pointer word of the block starting at b.
func (a *Allocator) footer(b ref) uint32 {
	return *(*uint32)(unsafe.Add(a.base, int(uint32(b)+a.blockSize(b)-footerSize)))
}

// nextPhys returns the physically following block. Valid only when b is
// not the last block in the heap.
func (a *Allocator) nextPhys(b ref) ref { return ref(uint32(b) + a.blockSize(b)) }

// prevPhys returns the physically preceding block through its footer
// back-pointer. Valid only when b is not the first block in the heap.
func (a *Allocator) prevPhys(b ref) ref {
	return ref(*(*uint32)(unsafe.Add(a.base, int(uint32(b)-footerSize))))
}

// Node accessors work uniformly on heap blocks and sentinels so list
// surgery never needs to know which one it is touching.

func (a *Allocator) sent(r ref) *sentinel { return &a.sentinels[r&^sentinelBit] }

func (a *Allocator) nodeWord(r ref) uint32 {
	if r&sentinelBit != 0 {
		return a.sent(r).word
	}
	return *a.hdr(r)
}

func (a *Allocator) nodeSize(r ref) uint32 { return a.nodeWord(r) & sizeMask }

func (a *Allocator) nodeAllocated(r ref) bool { return a.nodeWord(r)&allocBit != 0 }

func (a *Allocator) linkPrev(r ref) ref {
	if r&sentinelBit != 0 {
		return a.sent(r).prev
	}
	return ref(*(*uint32)(unsafe.Add(a.base, int(r)+prevOff)))
}

func (a *Allocator) linkNext(r ref) ref {
	if r&sentinelBit != 0 {
		return a.sent(r).next
	}
	return ref(*(*uint32)(unsafe.Add(a.base, int(r)+nextOff)))
}

func (a *Allocator) setLinkPrev(r, p ref) {
	if r&sentinelBit != 0 {
		a.sent(r).prev = p
		return
	}
	*(*uint32)(unsafe.Add(a.base, int(r)+prevOff)) = uint32(p)
}

func (a *Allocator) setLinkNext(r, n ref) {
	if r&sentinelBit != 0 {
		a.sent(r).next = n
		return
	}
	*(*uint32)(unsafe.Add(a.base, int(r)+nextOff)) = uint32(n)
}

// insertAfter links b into a list right after node p.
func (a *Allocator) insertAfter(p, b ref) {
	n := a.linkNext(p)
	a.setLinkPrev(b, p)
	a.setLinkNext(b, n)
	a.setLinkPrev(n, b)
	a.setLinkNext(p, b)
}

// unlink removes b from whatever list it is in.
func (a *Allocator) unlink(b ref) {
	p, n := a.linkPrev(b), a.linkNext(b)
	a.setLinkNext(p, n)
	a.setLinkPrev(n, p)
}

// payload returns the user bytes of block b with length n. The capacity
// stops short of the footer so resizing within cap cannot clobber it.
func (a *Allocator) payload(b ref, n int) []byte {
	p := (*byte)(unsafe.Add(a.base, int(b)+headerSize))
	return unsafe.Slice(p, int(a.blockSize(b))-headerSize-footerSize)[:n]
}

// refOf recovers the block header from a payload slice returned by Malloc
// or Realloc. The slice may have been resliced; only its data pointer is
// used. Panics if the pointer is not inside the heap.
func (a *Allocator) refOf(b []byte) ref {
	data := *(*uintptr)(unsafe.Pointer(&b))
	off := int(data-uintptr(a.base)) - headerSize
	if off < int(a.heapLo) || off >= a.heap.Size() {
		panic("malloc: block not in heap")
	}
	return ref(uint32(off))
}
