package vmo

import (
	"fmt"

	"github.com/vmkit/vmkit/internal/buf"
	"github.com/vmkit/vmkit/pkg/types"
	"github.com/vmkit/vmkit/pmm"
)

// checkRangeLocked validates a page-aligned operation range against the
// current size and returns the rounded length.
func (p *Paged) checkRangeLocked(offset, length uint64) (uint64, error) {
	if p.destroyed {
		return 0, fmt.Errorf("vmo: destroyed object: %w", types.ErrBadState)
	}
	if !buf.IsPageAligned(offset) {
		return 0, fmt.Errorf("vmo: misaligned offset %#x: %w", offset, types.ErrInvalidArgs)
	}
	rounded, ok := buf.RoundUpPage(length)
	if !ok || !buf.InRange(offset, rounded, p.size) {
		return 0, fmt.Errorf("vmo: range [%#x, +%#x) outside size %#x: %w", offset, length, p.size, types.ErrOutOfRange)
	}
	return rounded, nil
}

// CommitRange materializes every missing page in [offset, offset+length).
// The allocation is batched: one node round trip sized to the exact count
// of currently missing pages, then each page attaches at its offset,
// skipping offsets already present (which on a clone means COW-copying
// parent content, exactly as a write fault would).
//
// On exhaustion the shortfall surfaces as NoMemory; pages committed before
// the shortfall stay committed.
func (p *Paged) CommitRange(offset, length uint64) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	length, err := p.checkRangeLocked(offset, length)
	if err != nil {
		return 0, err
	}

	missing := uint64(0)
	for off := offset; off < offset+length; off += types.PageSize {
		if p.pages.GetPage(off) == nil {
			missing++
		}
	}
	if missing == 0 {
		return 0, nil
	}

	batch := NewPageBatch(p.node.AllocPages(missing, types.AllocAnyArena))
	defer batch.Free(p.node)

	committed := uint64(0)
	for off := offset; off < offset+length; off += types.PageSize {
		if p.pages.GetPage(off) != nil {
			continue
		}
		if _, err := p.getPageLocked(off, types.FaultSW|types.FaultWrite, batch); err != nil {
			return committed, fmt.Errorf("vmo: commit at %#x: %w", off, types.ErrNoMemory)
		}
		committed += types.PageSize
	}
	return committed, nil
}

// CommitRangeContiguous materializes [offset, offset+length) as one
// physically contiguous run aligned to 2^alignLog2 and returns its base
// address. The object must have no parent and no pre-existing pages in the
// range; every resulting page is contiguous-pinned and can never be
// relocated or decommitted.
func (p *Paged) CommitRangeContiguous(offset, length uint64, alignLog2 uint8) (types.PhysAddr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	length, err := p.checkRangeLocked(offset, length)
	if err != nil {
		return 0, err
	}
	if p.parent != nil {
		return 0, fmt.Errorf("vmo: contiguous commit on a clone: %w", types.ErrBadState)
	}
	occupied := false
	_ = p.pages.ForEveryPageInRange(func(*pmm.Page, uint64) (Visit, error) {
		occupied = true
		return VisitStop, nil
	}, offset, offset+length)
	if occupied {
		return 0, fmt.Errorf("vmo: contiguous commit over resident pages: %w", types.ErrBadState)
	}

	count := length / types.PageSize
	pages, base, err := p.node.AllocContiguous(count, alignLog2)
	if err != nil {
		return 0, err
	}
	for i, pg := range pages {
		off := offset + uint64(i)*types.PageSize
		pg.Zero()
		pg.AttachPinned(p.id, off)
		if err := p.pages.AddPage(pg, off); err != nil {
			panic(fmt.Sprintf("vmo: contiguous insert at %#x: %v", off, err))
		}
	}
	p.rangeChangeUpdateLocked(offset, length)
	return base, nil
}

// DecommitRange frees every resident page in [offset, offset+length). A
// pinned page anywhere in the range fails the whole operation with
// BadState before anything mutates. Mappings are invalidated before any
// page is freed.
func (p *Paged) DecommitRange(offset, length uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	length, err := p.checkRangeLocked(offset, length)
	if err != nil {
		return err
	}
	if err := p.checkUnpinnedLocked(offset, length); err != nil {
		return err
	}
	p.rangeChangeUpdateLocked(offset, length)
	for off := offset; off < offset+length; off += types.PageSize {
		p.pages.FreePage(p.node, off)
	}
	return nil
}

// Resize grows or shrinks the object. Shrinking fails with BadState if any
// page in the discarded region is pinned; otherwise mappings over the
// region are invalidated and its resident pages freed.
func (p *Paged) Resize(newSize uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return fmt.Errorf("vmo: destroyed object: %w", types.ErrBadState)
	}
	rounded, ok := buf.RoundUpPage(newSize)
	if !ok {
		return fmt.Errorf("vmo: size overflow: %w", types.ErrInvalidArgs)
	}
	if rounded >= p.size {
		p.size = rounded
		return nil
	}
	discard := p.size - rounded
	if err := p.checkUnpinnedLocked(rounded, discard); err != nil {
		return err
	}
	p.rangeChangeUpdateLocked(rounded, discard)
	for off := rounded; off < rounded+discard; off += types.PageSize {
		p.pages.FreePage(p.node, off)
	}
	p.size = rounded
	return nil
}

// Pin requires every page in the exact range to be present and increments
// each saturating pin counter. A counter at its cap fails the whole
// operation with Unavailable and rolls back the increments already made.
func (p *Paged) Pin(offset, length uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	length, err := p.checkRangeLocked(offset, length)
	if err != nil {
		return err
	}
	for off := offset; off < offset+length; off += types.PageSize {
		if p.pages.GetPage(off) == nil {
			return fmt.Errorf("vmo: pin over missing page at %#x: %w", off, types.ErrNotFound)
		}
	}
	for off := offset; off < offset+length; off += types.PageSize {
		if err := p.pages.GetPage(off).Pin(); err != nil {
			for undo := offset; undo < off; undo += types.PageSize {
				p.pages.GetPage(undo).Unpin()
			}
			return err
		}
	}
	return nil
}

// Unpin decrements the pin counts over the exact range. Unpinning a
// missing or unpinned page is a caller defect.
func (p *Paged) Unpin(offset, length uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	length, err := p.checkRangeLocked(offset, length)
	if err != nil {
		return err
	}
	for off := offset; off < offset+length; off += types.PageSize {
		if p.pages.GetPage(off) == nil {
			return fmt.Errorf("vmo: unpin over missing page at %#x: %w", off, types.ErrNotFound)
		}
	}
	for off := offset; off < offset+length; off += types.PageSize {
		p.pages.GetPage(off).Unpin()
	}
	return nil
}

func (p *Paged) checkUnpinnedLocked(offset, length uint64) error {
	var pinnedAt uint64
	pinned := false
	_ = p.pages.ForEveryPageInRange(func(pg *pmm.Page, off uint64) (Visit, error) {
		if pg.Pinned() {
			pinned, pinnedAt = true, off
			return VisitStop, nil
		}
		return VisitContinue, nil
	}, offset, offset+length)
	if pinned {
		return fmt.Errorf("vmo: pinned page at %#x: %w", pinnedAt, types.ErrBadState)
	}
	return nil
}
