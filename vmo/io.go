package vmo

import (
	"errors"
	"fmt"

	"github.com/vmkit/vmkit/internal/buf"
	"github.com/vmkit/vmkit/pkg/types"
)

// Read copies len(dst) bytes starting at offset into dst, in ascending
// offset order. Holes read through the parent chain or, failing that, the
// zero page; nothing is materialized in this object.
func (p *Paged) Read(dst []byte, offset uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyLocked(dst, offset, types.FaultSW, false)
}

// Write copies src into the object starting at offset, in ascending offset
// order. Every touched page is materialized: COW breaks over parent
// content, zero fills over holes.
func (p *Paged) Write(src []byte, offset uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.copyLocked(src, offset, types.FaultSW|types.FaultWrite, true)
}

func (p *Paged) copyLocked(data []byte, offset uint64, flags types.FaultFlags, toObject bool) error {
	if p.destroyed {
		return fmt.Errorf("vmo: destroyed object: %w", types.ErrBadState)
	}
	if !buf.InRange(offset, uint64(len(data)), p.size) {
		return fmt.Errorf("vmo: [%#x, +%d) outside size %#x: %w", offset, len(data), p.size, types.ErrOutOfRange)
	}
	done := uint64(0)
	for done < uint64(len(data)) {
		off := offset + done
		pageOff := buf.RoundDownPage(off)
		inner := off - pageOff
		chunk := uint64(types.PageSize) - inner
		if rest := uint64(len(data)) - done; chunk > rest {
			chunk = rest
		}
		pg, err := p.getPageLocked(pageOff, flags, nil)
		if err != nil {
			return err
		}
		if toObject {
			copy(pg.Bytes()[inner:inner+chunk], data[done:done+chunk])
		} else {
			copy(data[done:done+chunk], pg.Bytes()[inner:inner+chunk])
		}
		done += chunk
	}
	return nil
}

// Lookup reports the physical address backing every page in [offset,
// offset+length) in ascending order, with fault resolution disabled: a
// genuinely missing page fails with NotFound.
//
// fn runs with the object's lock held, like Mapping.UnmapRange: it must
// not call back into this object or any object sharing its chain lock.
func (p *Paged) Lookup(offset, length uint64, fn func(offset uint64, addr types.PhysAddr) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	length, err := p.checkRangeLocked(offset, length)
	if err != nil {
		return err
	}
	for off := offset; off < offset+length; off += types.PageSize {
		pg, err := p.getPageLocked(off, 0, nil)
		if err != nil {
			return err
		}
		if err := fn(off, pg.PhysAddr()); err != nil {
			return err
		}
	}
	return nil
}

// CacheOp performs cache maintenance over the covered bytes of [offset,
// offset+length), page by page. The per-page address lookup never faults;
// a missing page is silently skipped.
func (p *Paged) CacheOp(op types.CacheOp, offset, length uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return fmt.Errorf("vmo: destroyed object: %w", types.ErrBadState)
	}
	if !buf.InRange(offset, length, p.size) {
		return fmt.Errorf("vmo: [%#x, +%#x) outside size %#x: %w", offset, length, p.size, types.ErrOutOfRange)
	}
	end := offset + length
	for off := offset; off < end; {
		pageOff := buf.RoundDownPage(off)
		inner := off - pageOff
		chunk := uint64(types.PageSize) - inner
		if rest := end - off; chunk > rest {
			chunk = rest
		}
		pg, err := p.getPageLocked(pageOff, 0, nil)
		switch {
		case err == nil:
			cacheOpBytes(op, pg.Bytes()[inner:inner+chunk])
		case errors.Is(err, types.ErrNotFound):
			// skip
		default:
			return err
		}
		off += chunk
	}
	return nil
}
