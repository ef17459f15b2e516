package malloc

import (
	"fmt"
	"strings"
)

// Check walks the heap and the free lists and verifies the allocator
// invariants: gapless tiling, alignment, minimum block size, footer
// back-pointers, immediate coalescing, and that the free lists hold
// exactly the blocks whose allocation flag is clear — each once, and in
// segregated mode in the list matching its size class. Returns the first
// violation found.
func (a *Allocator) Check() error {
	if !a.initialized {
		return nil
	}
	heapSize := uint32(a.heap.Size())

	// linear heap walk
	inLists := make(map[uint32]bool)
	prevFree := false
	off := a.heapLo
	for off < heapSize {
		b := ref(off)
		size := a.blockSize(b)
		if off&alignMask != 0 {
			return fmt.Errorf("malloc: block %#x not %d-byte aligned", off, Alignment)
		}
		if size < minBlockSize {
			return fmt.Errorf("malloc: block %#x size %d below minimum %d", off, size, minBlockSize)
		}
		if off+size > heapSize {
			return fmt.Errorf("malloc: block %#x size %d runs past the heap end %#x", off, size, heapSize)
		}
		if got := a.footer(b); got != off {
			return fmt.Errorf("malloc: block %#x footer points at %#x", off, got)
		}
		free := !a.blockAllocated(b)
		if free {
			if prevFree {
				return fmt.Errorf("malloc: adjacent free blocks at %#x", off)
			}
			inLists[off] = false
		}
		prevFree = free
		off += size
	}
	if off != heapSize {
		return fmt.Errorf("malloc: blocks tile %d bytes of a %d byte heap", off-a.heapLo, heapSize-a.heapLo)
	}

	// free-list walk
	seen := 0
	sl, segregated := a.index.(*segList)
	err := a.index.walk(func(list int, b ref) error {
		if b&sentinelBit != 0 {
			return fmt.Errorf("malloc: sentinel %#x linked as a member", uint32(b))
		}
		if a.nodeAllocated(b) {
			return fmt.Errorf("malloc: allocated block %#x in free list %d", uint32(b), list)
		}
		visited, known := inLists[uint32(b)]
		if !known {
			return fmt.Errorf("malloc: list %d member %#x is not a heap block", list, uint32(b))
		}
		if visited {
			return fmt.Errorf("malloc: block %#x linked into the lists twice", uint32(b))
		}
		inLists[uint32(b)] = true
		seen++
		if segregated {
			if want := sl.class(a.blockSize(b)); want != list {
				return fmt.Errorf("malloc: block %#x size %d in class %d, want %d", uint32(b), a.blockSize(b), list, want)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if seen != len(inLists) {
		for o, v := range inLists {
			if !v {
				return fmt.Errorf("malloc: free block %#x in no list", o)
			}
		}
	}
	return nil
}

// FreeBytes returns the total bytes held in free blocks.
func (a *Allocator) FreeBytes() int {
	total := 0
	a.index.walk(func(_ int, b ref) error {
		total += int(a.blockSize(b))
		return nil
	})
	return total
}

// FreeBlocks returns the number of free blocks.
func (a *Allocator) FreeBlocks() int {
	n := 0
	a.index.walk(func(_ int, b ref) error {
		n++
		return nil
	})
	return n
}

// DumpHeap renders every block from the first to the break, debug only.
func (a *Allocator) DumpHeap() string {
	var sb strings.Builder
	if !a.initialized {
		sb.WriteString("heap: uninitialized\n")
		return sb.String()
	}
	heapSize := uint32(a.heap.Size())
	idx := 1
	for off := a.heapLo; off < heapSize; idx++ {
		b := ref(off)
		size := a.blockSize(b)
		fmt.Fprintf(&sb, "[%d] off=%#x end=%#x size=%d alloc=%v footer=%#x\n",
			idx, off, off+size, size, a.blockAllocated(b), a.footer(b))
		if size == 0 {
			sb.WriteString("corrupt: zero-size block\n")
			break
		}
		off += size
	}
	return sb.String()
}

// DumpFreeLists renders the free-list index, debug only.
func (a *Allocator) DumpFreeLists() string {
	var sb strings.Builder
	last := -1
	a.index.walk(func(list int, b ref) error {
		if list != last {
			fmt.Fprintf(&sb, "list %d:\n", list)
			last = list
		}
		fmt.Fprintf(&sb, "  off=%#x size=%d\n", uint32(b), a.blockSize(b))
		return nil
	})
	if sb.Len() == 0 {
		sb.WriteString("free lists: empty\n")
	}
	return sb.String()
}
