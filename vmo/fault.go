package vmo

import (
	"fmt"

	"github.com/vmkit/vmkit/internal/buf"
	"github.com/vmkit/vmkit/pkg/types"
	"github.com/vmkit/vmkit/pmm"
)

// GetPage resolves the page backing offset. The batch, if non-nil, supplies
// pre-allocated pages for copy-on-write breaks and zero fills.
//
// Resolution order:
//  1. A page this object already owns is returned as-is (fast path).
//  2. Content visible through the parent chain is returned shared for
//     reads, or copied into a fresh private page for writes — the
//     permanent COW break for that offset.
//  3. With fault resolution disabled and nothing resident: NotFound.
//  4. A read fault over a hole resolves to the systemwide zero page,
//     never copied eagerly.
//  5. A write fault over a hole materializes a fresh zeroed page.
func (p *Paged) GetPage(offset uint64, flags types.FaultFlags, batch *PageBatch) (*pmm.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getPageLocked(offset, flags, batch)
}

func (p *Paged) getPageLocked(offset uint64, flags types.FaultFlags, batch *PageBatch) (*pmm.Page, error) {
	if p.destroyed {
		return nil, fmt.Errorf("vmo: access to destroyed object: %w", types.ErrBadState)
	}
	if offset >= p.size {
		return nil, fmt.Errorf("vmo: offset %#x beyond size %#x: %w", offset, p.size, types.ErrOutOfRange)
	}
	offset = buf.RoundDownPage(offset)

	if pg := p.pages.GetPage(offset); pg != nil {
		return pg, nil
	}

	// The parent query never forces the parent to materialize new content:
	// it is a pure lookup through the chain.
	if shared := p.findAncestorPageLocked(offset); shared != nil {
		if !flags.Write() {
			return shared, nil // true sharing, unmodified and uncopied
		}
		pg, err := p.allocPageLocked(batch)
		if err != nil {
			return nil, err
		}
		copy(pg.Bytes(), shared.Bytes())
		p.insertPageLocked(pg, offset)
		return pg, nil
	}

	if !flags.Resolve() {
		return nil, fmt.Errorf("vmo: no page at %#x: %w", offset, types.ErrNotFound)
	}
	if !flags.Write() {
		return p.node.ZeroPage(), nil
	}
	pg, err := p.allocPageLocked(batch)
	if err != nil {
		return nil, err
	}
	pg.Zero()
	p.insertPageLocked(pg, offset)
	return pg, nil
}

// findAncestorPageLocked walks the parent chain looking for resident
// content at the translated offset. Offset arithmetic into the parent is
// overflow-checked; a wrapping computed offset is a defect.
func (p *Paged) findAncestorPageLocked(offset uint64) *pmm.Page {
	child, off := p, offset
	for child.parent != nil {
		poff, ok := buf.AddOverflow(child.parentOff, off)
		if !ok {
			panic(fmt.Sprintf("vmo: parent offset overflow: %#x + %#x", child.parentOff, off))
		}
		parent := child.parent
		if poff >= parent.size {
			return nil
		}
		if pg := parent.pages.GetPage(poff); pg != nil {
			return pg
		}
		child, off = parent, poff
	}
	return nil
}

func (p *Paged) allocPageLocked(batch *PageBatch) (*pmm.Page, error) {
	if pg := batch.Take(); pg != nil {
		return pg, nil
	}
	pg, err := p.node.AllocPage(types.AllocAnyArena)
	if err != nil {
		return nil, fmt.Errorf("vmo: %w", types.ErrNoMemory)
	}
	return pg, nil
}

// insertPageLocked attaches a freshly materialized page and invalidates
// every mapping and descendant over the covered range. A collision here is
// a defect: the caller just observed the slot vacant under the chain lock.
func (p *Paged) insertPageLocked(pg *pmm.Page, offset uint64) {
	pg.Attach(p.id, offset)
	if err := p.pages.AddPage(pg, offset); err != nil {
		panic(fmt.Sprintf("vmo: insert at %#x: %v", offset, err))
	}
	p.rangeChangeUpdateLocked(offset, types.PageSize)
}
