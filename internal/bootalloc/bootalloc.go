// Package bootalloc is the boot-time bump allocator. It hands out permanent
// physical ranges (never freed) and keeps a sorted, non-overlapping
// reservation list so arena layout routes around firmware- and
// kernel-occupied memory.
//
// Boot-only, single-threaded, interrupts disabled: no locking anywhere in
// this package.
package bootalloc

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vmkit/vmkit/internal/buf"
	"github.com/vmkit/vmkit/pkg/types"
)

var (
	// ErrOverlap indicates a reservation intersects an existing span.
	ErrOverlap = errors.New("bootalloc: reservation overlaps existing span")
	// ErrNoSpace indicates no hole in the window could fit the request.
	ErrNoSpace = errors.New("bootalloc: no space in window")
	// ErrBadArgs indicates a zero-size or overflowing span.
	ErrBadArgs = errors.New("bootalloc: bad span")
)

type span struct {
	base types.PhysAddr
	size uint64
}

func (s span) end() types.PhysAddr { return s.base + types.PhysAddr(s.size) }

// Allocator tracks every permanently claimed physical span: explicit
// firmware/kernel reservations plus its own allocations. The list is kept
// sorted by base and never shrinks.
type Allocator struct {
	spans []span
}

// New returns an empty allocator.
func New() *Allocator {
	return &Allocator{}
}

// Reserve records [base, base+size) as permanently occupied. Fails with
// ErrOverlap if the range intersects any existing span.
func (a *Allocator) Reserve(base types.PhysAddr, size uint64) error {
	return a.insert(span{base: base, size: size})
}

// AllocIn claims need bytes aligned to align from the lowest hole inside
// the window [base, base+size), skipping every reserved span. The claimed
// range itself becomes a permanent span. align must be a power of two.
func (a *Allocator) AllocIn(base types.PhysAddr, size, need, align uint64) (types.PhysAddr, error) {
	if need == 0 || align == 0 || align&(align-1) != 0 {
		return 0, ErrBadArgs
	}
	end, ok := buf.AddOverflow(uint64(base), size)
	if !ok {
		return 0, ErrBadArgs
	}

	cur, ok := buf.AlignUp(uint64(base), align)
	if !ok {
		return 0, ErrNoSpace
	}
	for cur+need <= end {
		if blocker, hit := a.blocking(span{base: types.PhysAddr(cur), size: need}); hit {
			// Restart past the obstruction at the next alignment boundary.
			next, ok := buf.AlignUp(uint64(blocker.end()), align)
			if !ok || next <= cur {
				return 0, ErrNoSpace
			}
			cur = next
			continue
		}
		got := span{base: types.PhysAddr(cur), size: need}
		if err := a.insert(got); err != nil {
			return 0, fmt.Errorf("bootalloc: claim: %w", err)
		}
		return got.base, nil
	}
	return 0, ErrNoSpace
}

// Reserved reports whether addr falls inside any recorded span.
func (a *Allocator) Reserved(addr types.PhysAddr) bool {
	return a.ReservedRange(addr, 1)
}

// ReservedRange reports whether [base, base+size) intersects any recorded
// span, even partially.
func (a *Allocator) ReservedRange(base types.PhysAddr, size uint64) bool {
	_, hit := a.blocking(span{base: base, size: size})
	return hit
}

// Spans returns the number of recorded spans. Diagnostic only.
func (a *Allocator) Spans() int { return len(a.spans) }

// blocking returns the first recorded span intersecting s.
func (a *Allocator) blocking(s span) (span, bool) {
	// Sorted list; binary search for the first span that could intersect.
	i := sort.Search(len(a.spans), func(i int) bool {
		return a.spans[i].end() > s.base
	})
	if i < len(a.spans) && a.spans[i].base < s.end() {
		return a.spans[i], true
	}
	return span{}, false
}

func (a *Allocator) insert(s span) error {
	if s.size == 0 {
		return ErrBadArgs
	}
	if _, ok := buf.AddOverflow(uint64(s.base), s.size); !ok {
		return ErrBadArgs
	}
	if _, hit := a.blocking(s); hit {
		return ErrOverlap
	}
	i := sort.Search(len(a.spans), func(i int) bool {
		return a.spans[i].base > s.base
	})
	a.spans = append(a.spans, span{})
	copy(a.spans[i+1:], a.spans[i:])
	a.spans[i] = s
	return nil
}
