package vmo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmkit/vmkit/pkg/types"
)

func TestGetPagePrefersBatch(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 4*types.PageSize)
	require.NoError(t, err)

	stash := takePages(t, n, 2)
	batch := NewPageBatch(stash)
	free := n.CountFreePages()

	pg, err := o.GetPage(0, types.FaultSW|types.FaultWrite, batch)
	require.NoError(t, err)
	assert.Contains(t, stash, pg, "fault must consume the caller-supplied batch")
	assert.Equal(t, free, n.CountFreePages(), "no node allocation while the batch holds pages")
	assert.Equal(t, 1, batch.Len())

	batch.Free(n)
	assert.Equal(t, free+1, n.CountFreePages())
	assert.Zero(t, batch.Len())

	require.NoError(t, o.Destroy())
}

func TestBatchFallsBackToNode(t *testing.T) {
	n := newTestNode(t)
	o, err := Create(n, 4*types.PageSize)
	require.NoError(t, err)

	batch := NewPageBatch(nil)
	pg, err := o.GetPage(0, types.FaultSW|types.FaultWrite, batch)
	require.NoError(t, err)
	assert.NotNil(t, pg)

	require.NoError(t, o.Destroy())
}

func TestNilBatchIsSafe(t *testing.T) {
	var b *PageBatch
	assert.Nil(t, b.Take())
	assert.Zero(t, b.Len())
	b.Free(nil)
}
