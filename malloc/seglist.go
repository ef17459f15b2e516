package malloc

import (
	"math/bits"
)

// NumClasses is the number of segregated size classes.
const NumClasses = 7

// segList partitions free blocks across NumClasses lists by size class.
// Each class has its own prologue and epilogue sentinel; an epilogue's
// next link points at the following class's prologue, so a search that
// exhausts one class walks into the next without a policy switch.
type segList struct {
	a *Allocator

	// eMin is ceil(log2(minBlockSize)). Blocks no larger than
	// minThreshold land in class 0, blocks larger than maxThreshold in
	// the last, unbounded class.
	eMin         int
	minThreshold uint32
	maxThreshold uint32
}

func newSegList(a *Allocator) *segList {
	l := &segList{
		a:    a,
		eMin: ceilLog2(minBlockSize),
	}
	l.minThreshold = 1 << l.eMin
	l.maxThreshold = 1 << (l.eMin + NumClasses - 2)

	a.sentinels = make([]sentinel, 2*NumClasses)
	for i := 0; i < NumClasses; i++ {
		next := nilRef
		if i < NumClasses-1 {
			next = l.prologue(i + 1)
		}
		a.sentinels[i] = sentinel{word: allocBit, prev: nilRef, next: l.epilogue(i)}
		a.sentinels[NumClasses+i] = sentinel{word: allocBit, prev: l.prologue(i), next: next}
	}
	return l
}

func (l *segList) prologue(i int) ref { return sentinelBit | ref(i) }
func (l *segList) epilogue(i int) ref { return sentinelBit | ref(NumClasses+i) }

// ceilLog2 returns the smallest e with 2^e >= n.
func ceilLog2(n uint32) int {
	if n <= 1 {
		return 0
	}
	return bits.Len32(n - 1)
}

// class maps a block size to the list it is stored in.
func (l *segList) class(size uint32) int {
	switch {
	case size <= l.minThreshold:
		return 0
	case size > l.maxThreshold:
		return NumClasses - 1
	default:
		return ceilLog2(size) - l.eMin
	}
}

// searchClass maps a request to the first list to search. For mid-range
// sizes it is one class above the storage class, so every block in the
// starting list is already large enough and the scan needs no size checks
// until the last, unbounded class.
func (l *segList) searchClass(size uint32) int {
	switch {
	case size <= l.minThreshold:
		return 0
	case size > l.maxThreshold:
		return NumClasses - 1
	default:
		return ceilLog2(size) - l.eMin + 1
	}
}

func (l *segList) insert(b ref) {
	l.a.insertAfter(l.prologue(l.class(l.a.nodeSize(b))), b)
}

func (l *segList) remove(b ref) { l.a.unlink(b) }

func (l *segList) findFit(need uint32) ref {
	it := l.prologue(l.searchClass(need))
	last := l.epilogue(NumClasses - 1)
	// sentinels read as size zero, so the size test walks through them
	// and across class boundaries uniformly
	for it != last && l.a.nodeSize(it) < need {
		it = l.a.linkNext(it)
	}
	if it == last {
		return nilRef
	}
	return it
}

func (l *segList) took(b ref)      {}
func (l *segList) coalesced(b ref) {}

func (l *segList) walk(fn func(list int, b ref) error) error {
	for i := 0; i < NumClasses; i++ {
		for it := l.a.linkNext(l.prologue(i)); it != l.epilogue(i); it = l.a.linkNext(it) {
			if err := fn(i, it); err != nil {
				return err
			}
		}
	}
	return nil
}
