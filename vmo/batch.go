package vmo

import "github.com/vmkit/vmkit/pmm"

// PageBatch is a caller-supplied stash of pre-allocated free pages. Fault
// resolution and commit prefer batch pages over hitting the node allocator,
// so a bulk operation pays for one allocation round trip instead of one per
// page.
type PageBatch struct {
	pages []*pmm.Page
}

// NewPageBatch wraps pages, typically the result of one Node.AllocPages
// call, for consumption by GetPage and CommitRange.
func NewPageBatch(pages []*pmm.Page) *PageBatch {
	return &PageBatch{pages: pages}
}

// Take removes and returns one page, or nil when the batch is empty.
func (b *PageBatch) Take() *pmm.Page {
	if b == nil || len(b.pages) == 0 {
		return nil
	}
	p := b.pages[len(b.pages)-1]
	b.pages = b.pages[:len(b.pages)-1]
	return p
}

// Len returns the number of pages remaining.
func (b *PageBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.pages)
}

// Free returns any unconsumed pages to the node.
func (b *PageBatch) Free(n *pmm.Node) {
	if b == nil || len(b.pages) == 0 {
		return
	}
	n.FreePages(b.pages)
	b.pages = nil
}
