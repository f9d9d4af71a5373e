package vmo

import (
	"fmt"
	"sync"

	"github.com/vmkit/vmkit/internal/buf"
	"github.com/vmkit/vmkit/pkg/types"
)

// Physical wraps a fixed physical range, typically device memory. It owns
// no pages and has no page table: the backing address is base + offset.
// There is no COW, no commit, and no pinning; those operations answer
// BadState where the paged object would act.
type Physical struct {
	id   uint64
	mu   sync.Mutex
	base types.PhysAddr
	size uint64

	mappings []Mapping
}

// CreatePhysical wraps [base, base+size). Both must be page-aligned.
func CreatePhysical(base types.PhysAddr, size uint64) (*Physical, error) {
	if size == 0 || !buf.IsPageAligned(uint64(base)) || !buf.IsPageAligned(size) {
		return nil, fmt.Errorf("vmo: physical range [%#x, +%#x): %w", base, size, types.ErrInvalidArgs)
	}
	if _, ok := buf.AddOverflow(uint64(base), size); !ok {
		return nil, fmt.Errorf("vmo: physical range wraps: %w", types.ErrInvalidArgs)
	}
	return &Physical{id: newID(), base: base, size: size}, nil
}

// ID returns the object's immutable identity.
func (p *Physical) ID() uint64 { return p.id }

// Size returns the byte size of the wrapped range.
func (p *Physical) Size() uint64 { return p.size }

// Lookup reports base + offset for every page in the range; every page is
// always "present".
func (p *Physical) Lookup(offset, length uint64, fn func(offset uint64, addr types.PhysAddr) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !buf.IsPageAligned(offset) {
		return fmt.Errorf("vmo: misaligned offset %#x: %w", offset, types.ErrInvalidArgs)
	}
	rounded, ok := buf.RoundUpPage(length)
	if !ok || !buf.InRange(offset, rounded, p.size) {
		return fmt.Errorf("vmo: [%#x, +%#x) outside size %#x: %w", offset, length, p.size, types.ErrOutOfRange)
	}
	for off := offset; off < offset+rounded; off += types.PageSize {
		if err := fn(off, p.base+types.PhysAddr(off)); err != nil {
			return err
		}
	}
	return nil
}

// CacheOp validates the range; device memory is uncached, so there is no
// maintenance to perform.
func (p *Physical) CacheOp(op types.CacheOp, offset, length uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !buf.InRange(offset, length, p.size) {
		return fmt.Errorf("vmo: [%#x, +%#x) outside size %#x: %w", offset, length, p.size, types.ErrOutOfRange)
	}
	_ = op
	return nil
}

// CommitRange is meaningless for a physical object: the range is always
// backed.
func (p *Physical) CommitRange(offset, length uint64) (uint64, error) {
	return 0, fmt.Errorf("vmo: commit on physical object: %w", types.ErrBadState)
}

// Pin is meaningless for a physical object: device memory never moves.
func (p *Physical) Pin(offset, length uint64) error {
	return fmt.Errorf("vmo: pin on physical object: %w", types.ErrBadState)
}

// AddMapping registers an address-space mapping.
func (p *Physical) AddMapping(m Mapping) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mappings = append(p.mappings, m)
}

// RemoveMapping unregisters a mapping. Unknown mappings are ignored.
func (p *Physical) RemoveMapping(m Mapping) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, have := range p.mappings {
		if have == m {
			p.mappings = append(p.mappings[:i], p.mappings[i+1:]...)
			return
		}
	}
}
