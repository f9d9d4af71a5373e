package pmm

import (
	"fmt"

	"github.com/vmkit/vmkit/pkg/types"
)

// MaxPinCount caps the per-page pin counter. Pinning a page already at the
// cap fails with Unavailable rather than wrapping.
const MaxPinCount = 31

// pageDescSize is the accounting size of one page descriptor. AddArena
// carves npages*pageDescSize bytes out of the arena itself for the
// descriptor array, so an arena too small to describe itself is rejected.
const pageDescSize = 64

// Page is the descriptor for one physical frame. A page is a member of
// exactly one list at a time: the node's free pool, or exactly one object's
// page table. Descriptor fields are guarded by the node lock while the page
// is free and by the owning object's lock while attached.
type Page struct {
	arena *Arena
	index uint64

	state types.PageState
	pin   uint8

	// Free-pool links, owned by the node.
	prev, next *Page

	// Object tag while attached (state PageObject or PagePinnedContig).
	ownerID  uint64
	ownerOff uint64
}

// PhysAddr returns the physical address of the frame.
func (p *Page) PhysAddr() types.PhysAddr {
	return p.arena.base + types.PhysAddr(p.index*types.PageSize)
}

// Bytes returns the frame's backing bytes.
func (p *Page) Bytes() []byte {
	return p.arena.region.Bytes(p.index*types.PageSize, types.PageSize)
}

// Zero clears the frame contents.
func (p *Page) Zero() {
	b := p.Bytes()
	for i := range b {
		b[i] = 0
	}
}

// State returns the page's current state.
func (p *Page) State() types.PageState { return p.state }

// Arena returns the arena the frame belongs to.
func (p *Page) Arena() *Arena { return p.arena }

// Attach tags the page as owned by an object's table at the given offset.
// The page must be in flight from an allocation entry point.
func (p *Page) Attach(ownerID, offset uint64) {
	if p.state != types.PageAlloc {
		panic(fmt.Sprintf("pmm: attach of %s page %#x", p.state, p.PhysAddr()))
	}
	p.state = types.PageObject
	p.ownerID = ownerID
	p.ownerOff = offset
}

// AttachPinned is Attach for pages of a physically contiguous committed
// run. The resulting state blocks decommit and relocation permanently.
func (p *Page) AttachPinned(ownerID, offset uint64) {
	if p.state != types.PageAlloc {
		panic(fmt.Sprintf("pmm: attach of %s page %#x", p.state, p.PhysAddr()))
	}
	p.state = types.PagePinnedContig
	p.ownerID = ownerID
	p.ownerOff = offset
}

// Owner returns the owning object ID and offset tag. Meaningful only while
// the page is attached.
func (p *Page) Owner() (id, offset uint64) { return p.ownerID, p.ownerOff }

// Pin increments the pin counter, failing with Unavailable at the cap.
func (p *Page) Pin() error {
	if p.pin >= MaxPinCount {
		return fmt.Errorf("pmm: page %#x pin count saturated: %w", p.PhysAddr(), types.ErrUnavailable)
	}
	p.pin++
	return nil
}

// Unpin decrements the pin counter. Underflow is a caller defect.
func (p *Page) Unpin() {
	if p.pin == 0 {
		panic(fmt.Sprintf("pmm: unpin of unpinned page %#x", p.PhysAddr()))
	}
	p.pin--
}

// ClearPins drops every outstanding pin in one step. Pinning blocks
// involuntary reclamation only, not an explicit free by the owner, so
// object teardown clears the counter before returning pages to the node.
func (p *Page) ClearPins() { p.pin = 0 }

// PinCount returns the current pin count.
func (p *Page) PinCount() uint8 { return p.pin }

// Pinned reports whether the page is ineligible for decommit/relocation,
// either via the pin counter or a contiguous-run attachment.
func (p *Page) Pinned() bool {
	return p.pin > 0 || p.state == types.PagePinnedContig
}
