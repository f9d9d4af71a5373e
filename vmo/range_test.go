package vmo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmkit/vmkit/pkg/types"
)

func TestCommitRangeExactCount(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 8*types.PageSize)
	require.NoError(t, err)

	// Pre-materialize two pages; commit must only allocate the rest.
	require.NoError(t, o.Write([]byte("x"), 0))
	require.NoError(t, o.Write([]byte("x"), 5*types.PageSize))
	free := n.CountFreePages()

	committed, err := o.CommitRange(0, 8*types.PageSize)
	require.NoError(t, err)
	assert.EqualValues(t, 6*types.PageSize, committed)
	assert.Equal(t, free-6, n.CountFreePages())
	assert.EqualValues(t, 8, o.AttributedPages())

	// Fully committed range: nothing more to do.
	committed, err = o.CommitRange(0, 8*types.PageSize)
	require.NoError(t, err)
	assert.Zero(t, committed)

	require.NoError(t, o.Destroy())
}

func TestCommitRangeShortfall(t *testing.T) {
	n := newTestNode(t)
	free := n.CountFreePages()
	o, err := Create(n, (free+16)*types.PageSize)
	require.NoError(t, err)

	committed, err := o.CommitRange(0, (free+16)*types.PageSize)
	require.ErrorIs(t, err, types.ErrNoMemory)
	assert.EqualValues(t, free*types.PageSize, committed, "pages committed before the shortfall stay committed")
	assert.EqualValues(t, free, o.AttributedPages())

	require.NoError(t, o.Destroy())
	assert.Equal(t, free, n.CountFreePages())
}

func TestCommitRangeMisaligned(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 4*types.PageSize)
	require.NoError(t, err)
	_, err = o.CommitRange(123, types.PageSize)
	require.ErrorIs(t, err, types.ErrInvalidArgs)
	_, err = o.CommitRange(0, 5*types.PageSize)
	require.ErrorIs(t, err, types.ErrOutOfRange)
	require.NoError(t, o.Destroy())
}

func TestCommitRangeContiguous(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 8*types.PageSize)
	require.NoError(t, err)

	base, err := o.CommitRangeContiguous(0, 4*types.PageSize, 13)
	require.NoError(t, err)
	assert.Zero(t, uint64(base)%(1<<13), "run must honor alignment")

	// Physical addresses ascend page by page from base.
	var want types.PhysAddr = base
	require.NoError(t, o.Lookup(0, 4*types.PageSize, func(off uint64, addr types.PhysAddr) error {
		assert.Equal(t, want, addr)
		want += types.PageSize
		return nil
	}))

	// The run is contiguous-pinned: decommit refuses.
	err = o.DecommitRange(0, 4*types.PageSize)
	require.ErrorIs(t, err, types.ErrBadState)

	require.NoError(t, o.Destroy())
}

func TestCommitRangeContiguousPreconditions(t *testing.T) {
	n := newTestNode(t)
	parent, err := Create(n, 4*types.PageSize)
	require.NoError(t, err)
	child, err := parent.Clone(0, 4*types.PageSize)
	require.NoError(t, err)

	_, err = child.CommitRangeContiguous(0, 2*types.PageSize, 12)
	require.ErrorIs(t, err, types.ErrBadState, "clone cannot commit contiguous")

	require.NoError(t, parent.Write([]byte("x"), 0))
	_, err = parent.CommitRangeContiguous(0, 2*types.PageSize, 12)
	require.ErrorIs(t, err, types.ErrBadState, "resident pages block contiguous commit")

	require.NoError(t, child.Destroy())
	require.NoError(t, parent.Destroy())
}

func TestDecommitRangeFreesPages(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 8*types.PageSize)
	require.NoError(t, err)
	_, err = o.CommitRange(0, 8*types.PageSize)
	require.NoError(t, err)
	free := n.CountFreePages()

	require.NoError(t, o.DecommitRange(2*types.PageSize, 3*types.PageSize))
	assert.Equal(t, free+3, n.CountFreePages())
	assert.EqualValues(t, 5, o.AttributedPages())

	_, err = o.GetPage(2*types.PageSize, 0, nil)
	require.ErrorIs(t, err, types.ErrNotFound)

	require.NoError(t, o.Destroy())
}

func TestPinIncrementsEveryPage(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 4*types.PageSize)
	require.NoError(t, err)
	_, err = o.CommitRange(0, 4*types.PageSize)
	require.NoError(t, err)

	require.NoError(t, o.Pin(0, 4*types.PageSize))
	for off := uint64(0); off < 4*types.PageSize; off += types.PageSize {
		pg, err := o.GetPage(off, 0, nil)
		require.NoError(t, err)
		assert.EqualValues(t, 1, pg.PinCount(), "offset %#x", off)
	}

	require.NoError(t, o.Unpin(0, 4*types.PageSize))
	require.NoError(t, o.Destroy())
}

func TestDestroyReleasesPinnedPages(t *testing.T) {
	n := newTestNode(t)
	free := n.CountFreePages()
	o, err := Create(n, 2*types.PageSize)
	require.NoError(t, err)
	_, err = o.CommitRange(0, 2*types.PageSize)
	require.NoError(t, err)
	require.NoError(t, o.Pin(0, 2*types.PageSize))

	// Pins block reclamation, not the owner's own teardown.
	require.NoError(t, o.Destroy())
	assert.Equal(t, free, n.CountFreePages())
}

func TestPinMissingPage(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 4*types.PageSize)
	require.NoError(t, err)
	require.NoError(t, o.Write([]byte("x"), 0))

	err = o.Pin(0, 2*types.PageSize)
	require.ErrorIs(t, err, types.ErrNotFound)

	// The present page's count must be untouched.
	pg, err := o.GetPage(0, 0, nil)
	require.NoError(t, err)
	assert.Zero(t, pg.PinCount())

	require.NoError(t, o.Destroy())
}

func TestPinSaturationRollsBack(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 2*types.PageSize)
	require.NoError(t, err)
	_, err = o.CommitRange(0, 2*types.PageSize)
	require.NoError(t, err)

	// Saturate page 1 only.
	pg, err := o.GetPage(types.PageSize, 0, nil)
	require.NoError(t, err)
	for i := 0; i < 31; i++ {
		require.NoError(t, pg.Pin())
	}

	err = o.Pin(0, 2*types.PageSize)
	require.ErrorIs(t, err, types.ErrUnavailable)

	// Page 0's increment was rolled back.
	pg0, err := o.GetPage(0, 0, nil)
	require.NoError(t, err)
	assert.Zero(t, pg0.PinCount())

	for i := 0; i < 31; i++ {
		pg.Unpin()
	}
	require.NoError(t, o.Destroy())
}

func TestDecommitPinnedRangeFails(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 4*types.PageSize)
	require.NoError(t, err)
	_, err = o.CommitRange(0, 4*types.PageSize)
	require.NoError(t, err)
	require.NoError(t, o.Pin(2*types.PageSize, types.PageSize))

	err = o.DecommitRange(0, 4*types.PageSize)
	require.ErrorIs(t, err, types.ErrBadState)
	assert.EqualValues(t, 4, o.AttributedPages(), "failed decommit mutates nothing")

	require.NoError(t, o.Unpin(2*types.PageSize, types.PageSize))
	require.NoError(t, o.DecommitRange(0, 4*types.PageSize))
	require.NoError(t, o.Destroy())
}

func TestResizeShrinkInvariant(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 8*types.PageSize)
	require.NoError(t, err)
	_, err = o.CommitRange(0, 8*types.PageSize)
	require.NoError(t, err)
	free := n.CountFreePages()

	require.NoError(t, o.Resize(3*types.PageSize))
	assert.Equal(t, free+5, n.CountFreePages(), "exactly the discarded pages return to the pool")

	_, err = o.GetPage(3*types.PageSize, types.FaultSW, nil)
	require.ErrorIs(t, err, types.ErrOutOfRange)
	_, err = o.GetPage(7*types.PageSize, types.FaultSW, nil)
	require.ErrorIs(t, err, types.ErrOutOfRange)

	require.NoError(t, o.Destroy())
}

func TestResizeShrinkPinnedFails(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 4*types.PageSize)
	require.NoError(t, err)
	_, err = o.CommitRange(0, 4*types.PageSize)
	require.NoError(t, err)
	require.NoError(t, o.Pin(3*types.PageSize, types.PageSize))

	err = o.Resize(2 * types.PageSize)
	require.ErrorIs(t, err, types.ErrBadState)
	assert.EqualValues(t, 4*types.PageSize, o.Size())

	require.NoError(t, o.Unpin(3*types.PageSize, types.PageSize))
	require.NoError(t, o.Destroy())
}

func TestResizeGrow(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 2*types.PageSize)
	require.NoError(t, err)
	require.NoError(t, o.Resize(6*types.PageSize))
	assert.EqualValues(t, 6*types.PageSize, o.Size())

	// New tail is a hole: reads see zeros.
	tail := make([]byte, 16)
	require.NoError(t, o.Read(tail, 5*types.PageSize))
	assert.Equal(t, make([]byte, 16), tail)

	require.NoError(t, o.Destroy())
}
