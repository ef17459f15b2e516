package malloc

// freeIndex is the capability set the front-end needs from a free-block
// index. Implementations hold list state only; blocks live in the heap.
type freeIndex interface {
	// insert adds a free block to the index.
	insert(b ref)
	// remove unlinks a free block from the index.
	remove(b ref)
	// findFit returns a free block of at least need bytes, or nilRef.
	// The block stays in the index; the caller removes it.
	findFit(need uint32) ref
	// took reports a placement hit, before the block is removed.
	took(b ref)
	// coalesced reports the block surviving a merge.
	coalesced(b ref)
	// walk visits every indexed block with its list id.
	walk(fn func(list int, b ref) error) error
}

// firstFitList is a single circular list kept sorted by block size in
// non-decreasing order. Search scans from the smaller end and returns the
// first block that fits.
type firstFitList struct {
	a    *Allocator
	head ref
}

func newFirstFitList(a *Allocator) *firstFitList {
	a.sentinels = make([]sentinel, 1)
	l := &firstFitList{a: a, head: sentinelBit}
	a.sentinels[0] = sentinel{word: allocBit, prev: l.head, next: l.head}
	return l
}

func (l *firstFitList) insert(b ref) {
	size := l.a.nodeSize(b)
	it := l.head
	for n := l.a.linkNext(it); n != l.head && l.a.nodeSize(n) < size; n = l.a.linkNext(it) {
		it = n
	}
	l.a.insertAfter(it, b)
}

func (l *firstFitList) remove(b ref) { l.a.unlink(b) }

func (l *firstFitList) findFit(need uint32) ref {
	for it := l.a.linkNext(l.head); it != l.head; it = l.a.linkNext(it) {
		if l.a.nodeSize(it) >= need {
			return it
		}
	}
	return nilRef
}

func (l *firstFitList) took(b ref)      {}
func (l *firstFitList) coalesced(b ref) {}

func (l *firstFitList) walk(fn func(list int, b ref) error) error {
	for it := l.a.linkNext(l.head); it != l.head; it = l.a.linkNext(it) {
		if err := fn(0, it); err != nil {
			return err
		}
	}
	return nil
}

// nextFitList is a single circular list with LIFO insertion and a
// persistent cursor. Search starts at the cursor and makes at most one
// full lap; on a hit the cursor advances past the chosen block.
type nextFitList struct {
	a      *Allocator
	head   ref
	cursor ref
}

func newNextFitList(a *Allocator) *nextFitList {
	a.sentinels = make([]sentinel, 1)
	l := &nextFitList{a: a, head: sentinelBit, cursor: sentinelBit}
	a.sentinels[0] = sentinel{word: allocBit, prev: l.head, next: l.head}
	return l
}

func (l *nextFitList) insert(b ref) { l.a.insertAfter(l.head, b) }

func (l *nextFitList) remove(b ref) { l.a.unlink(b) }

func (l *nextFitList) findFit(need uint32) ref {
	it := l.cursor
	for {
		// the allocation flag skips the sentinel on its lap
		if !l.a.nodeAllocated(it) && l.a.nodeSize(it) >= need {
			return it
		}
		it = l.a.linkNext(it)
		if it == l.cursor {
			return nilRef
		}
	}
}

// took advances the cursor past the chosen block before it is unlinked.
func (l *nextFitList) took(b ref) { l.cursor = l.a.linkNext(b) }

// coalesced retargets the cursor when it pointed into an absorbed
// neighbor. Heap extension never retargets it.
func (l *nextFitList) coalesced(b ref) {
	if l.cursor&sentinelBit != 0 {
		return
	}
	if uint32(l.cursor) > uint32(b) && uint32(l.cursor) < uint32(b)+l.a.blockSize(b) {
		l.cursor = b
	}
}

func (l *nextFitList) walk(fn func(list int, b ref) error) error {
	for it := l.a.linkNext(l.head); it != l.head; it = l.a.linkNext(it) {
		if err := fn(0, it); err != nil {
			return err
		}
	}
	return nil
}
