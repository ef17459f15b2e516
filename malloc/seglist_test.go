package malloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSizeClassThresholds(t *testing.T) {
	a := newTestAllocator(t, SegregatedFit, 1<<16)
	sl := a.index.(*segList)

	assert.Equal(t, 5, sl.eMin)
	assert.Equal(t, uint32(32), sl.minThreshold)
	assert.Equal(t, uint32(1024), sl.maxThreshold)
}

func TestCeilLog2(t *testing.T) {
	tests := []struct {
		n    uint32
		want int
	}{
		{1, 0}, {2, 1}, {3, 2}, {4, 2}, {5, 3},
		{32, 5}, {33, 6}, {64, 6}, {96, 7}, {1024, 10}, {1025, 11},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ceilLog2(tt.n), "n=%d", tt.n)
	}
}

func TestSizeClass(t *testing.T) {
	a := newTestAllocator(t, SegregatedFit, 1<<16)
	sl := a.index.(*segList)

	tests := []struct {
		size   uint32
		class  int
		search int
	}{
		{32, 0, 0},
		{33, 1, 2},
		{40, 1, 2},
		{64, 1, 2},
		{65, 2, 3},
		{96, 2, 3},
		{128, 2, 3},
		{129, 3, 4},
		{512, 4, 5},
		{1024, 5, 6},
		{1025, 6, 6},
		{4096, 6, 6},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.class, sl.class(tt.size), "class(%d)", tt.size)
		assert.Equal(t, tt.search, sl.searchClass(tt.size), "searchClass(%d)", tt.size)
	}
}

func TestSegregatedLIFOInsertion(t *testing.T) {
	a := newTestAllocator(t, SegregatedFit, 1<<16)

	m1 := a.Malloc(40) // block 64, class 1
	s1 := a.Malloc(8)
	m2 := a.Malloc(40) // block 64, class 1
	s2 := a.Malloc(8)
	require.NotNil(t, s2)
	_ = s1

	off1 := uint32(a.refOf(m1))
	off2 := uint32(a.refOf(m2))
	a.Free(m1)
	a.Free(m2)

	var class1 []uint32
	require.NoError(t, a.index.walk(func(list int, b ref) error {
		if list == 1 {
			class1 = append(class1, uint32(b))
		}
		return nil
	}))
	// last freed sits at the head of its class list
	assert.Equal(t, []uint32{off2, off1}, class1)
}

// TestSegregatedSearchSkipsStorageClass pins the one-above search class:
// a mid-range request never scans its own storage class, so an exact-size
// hole there is passed over in favor of a larger class.
func TestSegregatedSearchSkipsStorageClass(t *testing.T) {
	a := newTestAllocator(t, SegregatedFit, 1<<16)

	hole := a.Malloc(40) // block 64, stored in class 1 when freed
	spacer := a.Malloc(8)
	require.NotNil(t, spacer)
	holeOff := uint32(a.refOf(hole))
	a.Free(hole)

	q := a.Malloc(40) // search starts at class 2 and walks into the tail
	require.NotNil(t, q)
	assert.NotEqual(t, holeOff, uint32(a.refOf(q)))
	require.NoError(t, a.Check())

	// a class-0 request does scan upward through class 1 and reuses it
	r := a.Malloc(8)
	require.NotNil(t, r)
	assert.Equal(t, holeOff, uint32(a.refOf(r)))
	require.NoError(t, a.Check())
}

// TestSegregatedExtendSkipsCoalesce pins the segregated extension quirk:
// the fresh chunk is neither merged with a trailing free block nor put in
// any list; placement consumes it directly.
func TestSegregatedExtendSkipsCoalesce(t *testing.T) {
	a := newTestAllocator(t, SegregatedFit, 1<<15)

	g := a.Malloc(4000) // block 8..4032, free tail of 64 at 4032
	require.NotNil(t, g)
	require.Equal(t, 1, a.FreeBlocks())

	q := a.Malloc(8000) // forces extension by 8024
	require.NotNil(t, q)
	// the new block starts at the old break: the tail was not absorbed
	assert.Equal(t, uint32(4096), uint32(a.refOf(q)))
	assert.Equal(t, 4096+8024, a.heap.Size())
	assert.Equal(t, 1, a.FreeBlocks())
	assert.Equal(t, 64, a.FreeBytes())
	require.NoError(t, a.Check())

	// the stale tail merges as soon as its neighbor is touched
	a.Free(g)
	require.NoError(t, a.Check())
	assert.Equal(t, 1, a.FreeBlocks())
	assert.Equal(t, 4024+64, a.FreeBytes())
}

// TestSegregatedClassMembership drives a mixed workload and relies on the
// checker's class-membership verification for every intermediate state.
func TestSegregatedClassMembership(t *testing.T) {
	a := newTestAllocator(t, SegregatedFit, 1<<18)

	var live [][]byte
	for _, n := range []int{8, 24, 60, 100, 200, 400, 900, 2000, 5000} {
		b := a.Malloc(n)
		require.NotNil(t, b)
		live = append(live, b)
	}
	for i := 0; i < len(live); i += 2 {
		a.Free(live[i])
		require.NoError(t, a.Check())
	}
	for i := 1; i < len(live); i += 2 {
		a.Free(live[i])
		require.NoError(t, a.Check())
	}
	assert.Equal(t, 1, a.FreeBlocks())
}
