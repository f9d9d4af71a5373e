package vmo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmkit/vmkit/pkg/types"
)

// recordingMapping captures UnmapRange callbacks.
type recordingMapping struct {
	calls [][2]uint64
}

func (m *recordingMapping) UnmapRange(offset, length uint64) {
	m.calls = append(m.calls, [2]uint64{offset, length})
}

func TestWriteFaultInvalidatesMappings(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 4*types.PageSize)
	require.NoError(t, err)
	m := &recordingMapping{}
	o.AddMapping(m)

	_, err = o.GetPage(2*types.PageSize, types.FaultSW|types.FaultWrite, nil)
	require.NoError(t, err)
	require.Len(t, m.calls, 1)
	assert.Equal(t, [2]uint64{2 * types.PageSize, types.PageSize}, m.calls[0])

	o.RemoveMapping(m)
	require.NoError(t, o.Destroy())
}

func TestReadFaultDoesNotInvalidate(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 4*types.PageSize)
	require.NoError(t, err)
	m := &recordingMapping{}
	o.AddMapping(m)

	_, err = o.GetPage(0, types.FaultSW, nil)
	require.NoError(t, err)
	assert.Empty(t, m.calls, "zero-page read resolves without content change")

	o.RemoveMapping(m)
	require.NoError(t, o.Destroy())
}

func TestDecommitInvalidatesBeforeFreeing(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 8*types.PageSize)
	require.NoError(t, err)
	_, err = o.CommitRange(0, 8*types.PageSize)
	require.NoError(t, err)

	m := &recordingMapping{}
	o.AddMapping(m)
	require.NoError(t, o.DecommitRange(2*types.PageSize, 3*types.PageSize))
	require.Len(t, m.calls, 1)
	assert.Equal(t, [2]uint64{2 * types.PageSize, 3 * types.PageSize}, m.calls[0])

	o.RemoveMapping(m)
	require.NoError(t, o.Destroy())
}

func TestRangeChangeReachesTranslatedChild(t *testing.T) {
	n := newTestNode(t)
	parent, err := Create(n, 8*types.PageSize)
	require.NoError(t, err)
	// Child covers parent pages [2, 6).
	child, err := parent.Clone(2*types.PageSize, 4*types.PageSize)
	require.NoError(t, err)
	grand, err := child.Clone(types.PageSize, 2*types.PageSize)
	require.NoError(t, err)

	cm := &recordingMapping{}
	gm := &recordingMapping{}
	child.AddMapping(cm)
	grand.AddMapping(gm)

	// Parent materializes page 3: child sees it at offset 1 page,
	// grandchild at offset 0.
	_, err = parent.GetPage(3*types.PageSize, types.FaultSW|types.FaultWrite, nil)
	require.NoError(t, err)

	require.Len(t, cm.calls, 1)
	assert.Equal(t, [2]uint64{types.PageSize, types.PageSize}, cm.calls[0])
	require.Len(t, gm.calls, 1)
	assert.Equal(t, [2]uint64{0, types.PageSize}, gm.calls[0])

	// A parent change outside the child's window stays quiet.
	_, err = parent.GetPage(7*types.PageSize, types.FaultSW|types.FaultWrite, nil)
	require.NoError(t, err)
	assert.Len(t, cm.calls, 1)
	assert.Len(t, gm.calls, 1)

	child.RemoveMapping(cm)
	grand.RemoveMapping(gm)
	require.NoError(t, grand.Destroy())
	require.NoError(t, child.Destroy())
	require.NoError(t, parent.Destroy())
}

func TestDestroyWithMappingsFails(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, types.PageSize)
	require.NoError(t, err)
	m := &recordingMapping{}
	o.AddMapping(m)

	require.ErrorIs(t, o.Destroy(), types.ErrBadState)
	o.RemoveMapping(m)
	require.NoError(t, o.Destroy())
}
