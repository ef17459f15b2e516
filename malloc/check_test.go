package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudwego/malloc/mem"
)

func TestCheckCleanHeap(t *testing.T) {
	forEachPolicy(t, func(t *testing.T, p Policy) {
		a := newTestAllocator(t, p, 1<<16)
		require.NoError(t, a.Check())

		b := a.Malloc(100)
		require.NoError(t, a.Check())
		a.Free(b)
		require.NoError(t, a.Check())
	})
}

func TestCheckUninitialized(t *testing.T) {
	h, err := mem.NewHeap(1 << 16)
	require.NoError(t, err)
	defer h.Release()
	a, err := New(h)
	require.NoError(t, err)
	assert.NoError(t, a.Check())
}

func TestCheckDetectsFooterCorruption(t *testing.T) {
	a := newTestAllocator(t, SegregatedFit, 1<<16)
	b := a.Malloc(16)
	require.NotNil(t, b)

	blk := a.refOf(b)
	a.heap.Bytes()[uint32(blk)+a.blockSize(blk)-footerSize] ^= 0xFF
	err := a.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "footer")
}

func TestCheckDetectsAdjacentFreeBlocks(t *testing.T) {
	a := newTestAllocator(t, SegregatedFit, 1<<16)
	x := a.Malloc(16)
	y := a.Malloc(16)
	require.NotNil(t, y)
	a.Free(y)

	// clear x's flag behind the allocator's back: two free neighbors
	blk := a.refOf(x)
	a.setBlock(blk, a.blockSize(blk), 0)
	err := a.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "adjacent")
}

func TestCheckDetectsFreeBlockInNoList(t *testing.T) {
	a := newTestAllocator(t, SegregatedFit, 1<<16)
	x := a.Malloc(16)
	y := a.Malloc(16)
	require.NotNil(t, y)

	blk := a.refOf(x)
	a.setBlock(blk, a.blockSize(blk), 0)
	err := a.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no list")
}

func TestCheckDetectsAllocatedBlockInList(t *testing.T) {
	a := newTestAllocator(t, SegregatedFit, 1<<16)
	x := a.Malloc(16)
	require.NotNil(t, x)

	a.index.insert(a.refOf(x))
	err := a.Check()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allocated block")
}

func TestDumpHeap(t *testing.T) {
	a := newTestAllocator(t, SegregatedFit, 1<<16)
	b := a.Malloc(16)
	require.NotNil(t, b)

	dump := a.DumpHeap()
	assert.Contains(t, dump, "alloc=true")
	assert.Contains(t, dump, "alloc=false")

	lists := a.DumpFreeLists()
	assert.Contains(t, lists, "list 6") // the tail lives in the last class
}
