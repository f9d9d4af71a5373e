package vmo

import (
	"fmt"
	"sort"

	"github.com/vmkit/vmkit/internal/buf"
	"github.com/vmkit/vmkit/pkg/types"
	"github.com/vmkit/vmkit/pmm"
)

// NodeFanOut is the number of consecutive page slots covered by one
// fan-out node of the sparse table.
const NodeFanOut = 16

// nodeSpan is the byte range covered by one fan-out node.
const nodeSpan = NodeFanOut * types.PageSize

// Visit is the tri-state control signal returned by bulk-traversal
// visitors. A non-nil error from the visitor aborts the traversal and is
// propagated; VisitStop is a successful early exit, distinct from abort.
type Visit int

const (
	// VisitContinue proceeds to the next occupied slot.
	VisitContinue Visit = iota
	// VisitStop ends the traversal successfully.
	VisitStop
)

// Visitor is called for every occupied slot in ascending offset order.
type Visitor func(p *pmm.Page, offset uint64) (Visit, error)

// listNode is one fixed-capacity fan-out node covering NodeFanOut
// consecutive page slots starting at a nodeSpan-aligned offset.
type listNode struct {
	slots [NodeFanOut]*pmm.Page
	live  int
}

// PageList is the sparse per-object page table: fan-out nodes keyed by
// their base offset, so unused ranges cost nothing. A node with zero
// occupied slots is removed immediately.
//
// PageList is not self-locking; the owning object's lock guards it.
type PageList struct {
	nodes map[uint64]*listNode
	count uint64
}

// NewPageList returns an empty table.
func NewPageList() *PageList {
	return &PageList{nodes: make(map[uint64]*listNode)}
}

func slotFor(offset uint64) (key uint64, slot int) {
	return offset &^ uint64(nodeSpan-1), int(offset%nodeSpan) / types.PageSize
}

// AddPage inserts p at the page-aligned offset, lazily creating the
// covering fan-out node. An occupied slot fails with AlreadyExists; the
// table never silently overwrites.
func (l *PageList) AddPage(p *pmm.Page, offset uint64) error {
	if p == nil || !buf.IsPageAligned(offset) {
		return fmt.Errorf("pagelist: add at %#x: %w", offset, types.ErrInvalidArgs)
	}
	key, slot := slotFor(offset)
	n := l.nodes[key]
	if n == nil {
		n = &listNode{}
		l.nodes[key] = n
	}
	if n.slots[slot] != nil {
		return fmt.Errorf("pagelist: slot at %#x occupied: %w", offset, types.ErrAlreadyExists)
	}
	n.slots[slot] = p
	n.live++
	l.count++
	return nil
}

// GetPage returns the page backing the page-aligned offset, or nil. Never
// allocates a node.
func (l *PageList) GetPage(offset uint64) *pmm.Page {
	key, slot := slotFor(offset)
	n := l.nodes[key]
	if n == nil {
		return nil
	}
	return n.slots[slot]
}

// RemovePage detaches and returns the page at offset, dropping the fan-out
// node if it became empty. Returns nil if the slot is vacant.
func (l *PageList) RemovePage(offset uint64) *pmm.Page {
	key, slot := slotFor(offset)
	n := l.nodes[key]
	if n == nil || n.slots[slot] == nil {
		return nil
	}
	p := n.slots[slot]
	n.slots[slot] = nil
	n.live--
	l.count--
	if n.live == 0 {
		delete(l.nodes, key)
	}
	return p
}

// FreePage removes the entry at offset and returns the page to the node.
func (l *PageList) FreePage(n *pmm.Node, offset uint64) bool {
	p := l.RemovePage(offset)
	if p == nil {
		return false
	}
	n.FreePage(p)
	return true
}

// FreeAllPages drains the whole table in one pass, returning every page to
// the node in bulk.
func (l *PageList) FreeAllPages(n *pmm.Node) {
	pages := make([]*pmm.Page, 0, l.count)
	for key, ln := range l.nodes {
		for slot := range ln.slots {
			if ln.slots[slot] != nil {
				pages = append(pages, ln.slots[slot])
				ln.slots[slot] = nil
			}
		}
		delete(l.nodes, key)
	}
	l.count = 0
	n.FreePages(pages)
}

// ForEveryPage visits every occupied slot in ascending offset order.
func (l *PageList) ForEveryPage(fn Visitor) error {
	return l.ForEveryPageInRange(fn, 0, ^uint64(0))
}

// ForEveryPageInRange visits occupied slots with start <= offset < end in
// ascending order. The visitor's Stop signal ends the walk successfully;
// a visitor error aborts and is returned.
func (l *PageList) ForEveryPageInRange(fn Visitor, start, end uint64) error {
	if len(l.nodes) == 0 || start >= end {
		return nil
	}
	keys := make([]uint64, 0, len(l.nodes))
	for key := range l.nodes {
		if key+nodeSpan > start && key < end {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, key := range keys {
		n := l.nodes[key]
		for slot := 0; slot < NodeFanOut; slot++ {
			p := n.slots[slot]
			if p == nil {
				continue
			}
			off := key + uint64(slot)*types.PageSize
			if off < start || off >= end {
				continue
			}
			v, err := fn(p, off)
			if err != nil {
				return err
			}
			if v == VisitStop {
				return nil
			}
		}
	}
	return nil
}

// Count returns the number of occupied slots.
func (l *PageList) Count() uint64 { return l.count }

// IsEmpty reports whether the table holds no pages.
func (l *PageList) IsEmpty() bool { return l.count == 0 }
