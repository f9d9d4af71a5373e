package vmo

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vmkit/vmkit/internal/buf"
	"github.com/vmkit/vmkit/pkg/types"
	"github.com/vmkit/vmkit/pmm"
)

// nextID hands out object identities. Assigned once, immutable thereafter.
var nextID atomic.Uint64

func newID() uint64 { return nextID.Add(1) }

// Paged is the copy-on-write content unit. It owns a sparse page table
// holding only the pages it materialized itself; content it has never
// written is read through the parent chain.
type Paged struct {
	id   uint64
	node *pmm.Node

	// mu is the chain lock: the root object allocates it and every clone
	// descendant references the same instance, so a fault walking the
	// parent chain observes one consistent snapshot.
	mu *sync.Mutex

	size      uint64
	parent    *Paged
	parentOff uint64
	children  map[uint64]*Paged
	pages     *PageList
	mappings  []Mapping
	destroyed bool
}

// Create returns a new root object with no pages and a fresh chain lock.
// size is rounded up to a page boundary.
func Create(node *pmm.Node, size uint64) (*Paged, error) {
	if node == nil {
		return nil, fmt.Errorf("vmo: nil node: %w", types.ErrInvalidArgs)
	}
	rounded, ok := buf.RoundUpPage(size)
	if !ok {
		return nil, fmt.Errorf("vmo: size overflow: %w", types.ErrInvalidArgs)
	}
	return &Paged{
		id:       newID(),
		node:     node,
		mu:       &sync.Mutex{},
		size:     rounded,
		children: make(map[uint64]*Paged),
		pages:    NewPageList(),
	}, nil
}

// Clone creates a child sharing this object's chain lock, anchored at the
// page-aligned offset. The child's page table starts empty: reads fall
// through to this object until the child's first write at each offset.
func (p *Paged) Clone(offset, size uint64) (*Paged, error) {
	if !buf.IsPageAligned(offset) {
		return nil, fmt.Errorf("vmo: clone at %#x: %w", offset, types.ErrInvalidArgs)
	}
	rounded, ok := buf.RoundUpPage(size)
	if !ok {
		return nil, fmt.Errorf("vmo: clone size overflow: %w", types.ErrInvalidArgs)
	}
	if _, ok := buf.AddOverflow(offset, rounded); !ok {
		return nil, fmt.Errorf("vmo: clone range overflow: %w", types.ErrInvalidArgs)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil, fmt.Errorf("vmo: clone of destroyed object: %w", types.ErrBadState)
	}
	c := &Paged{
		id:        newID(),
		node:      p.node,
		mu:        p.mu,
		size:      rounded,
		parent:    p,
		parentOff: offset,
		children:  make(map[uint64]*Paged),
		pages:     NewPageList(),
	}
	p.children[c.id] = c
	return c, nil
}

// Destroy releases the object: every directly owned page goes back to the
// node synchronously and the object detaches from its parent's child set.
// Live children or registered mappings make destruction a state error; the
// parent outlives any child that references it. Pin counts do not survive
// the owner's explicit teardown: pinning blocks involuntary reclamation,
// not this.
func (p *Paged) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return fmt.Errorf("vmo: double destroy: %w", types.ErrBadState)
	}
	if len(p.children) != 0 {
		return fmt.Errorf("vmo: destroy with %d live children: %w", len(p.children), types.ErrBadState)
	}
	if len(p.mappings) != 0 {
		return fmt.Errorf("vmo: destroy with %d live mappings: %w", len(p.mappings), types.ErrBadState)
	}
	_ = p.pages.ForEveryPage(func(pg *pmm.Page, _ uint64) (Visit, error) {
		pg.ClearPins()
		return VisitContinue, nil
	})
	p.pages.FreeAllPages(p.node)
	if p.parent != nil {
		delete(p.parent.children, p.id)
		p.parent = nil
	}
	p.destroyed = true
	return nil
}

// ID returns the object's immutable identity.
func (p *Paged) ID() uint64 { return p.id }

// Size returns the current byte size.
func (p *Paged) Size() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// AttributedPages returns the number of pages this object directly owns,
// excluding content read through the parent chain.
func (p *Paged) AttributedPages() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pages.Count()
}

// AddMapping registers an address-space mapping for invalidation callbacks.
func (p *Paged) AddMapping(m Mapping) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mappings = append(p.mappings, m)
}

// RemoveMapping unregisters a mapping. Unknown mappings are ignored.
func (p *Paged) RemoveMapping(m Mapping) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, have := range p.mappings {
		if have == m {
			p.mappings = append(p.mappings[:i], p.mappings[i+1:]...)
			return
		}
	}
}

// rangeChangeUpdateLocked runs whenever this object's own resident content
// changes: every mapping invalidates its cached translations for the
// page-aligned range, and every child is notified with the range translated
// into its own coordinate space so transitively dependent COW descendants
// see the change.
func (p *Paged) rangeChangeUpdateLocked(offset, length uint64) {
	for _, m := range p.mappings {
		m.UnmapRange(offset, length)
	}
	end := offset + length
	for _, c := range p.children {
		start := offset
		if c.parentOff > start {
			start = c.parentOff
		}
		stop := c.parentOff + c.size
		if end < stop {
			stop = end
		}
		if start < stop {
			c.rangeChangeUpdateLocked(start-c.parentOff, stop-start)
		}
	}
}
