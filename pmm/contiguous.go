package pmm

import (
	"fmt"

	"github.com/vmkit/vmkit/internal/buf"
	"github.com/vmkit/vmkit/pkg/types"
)

// AllocContiguous finds count physically contiguous free pages within a
// single arena, aligned to 2^alignLog2 bytes, and returns them with the
// base address of the run. Arenas are tried in priority order.
//
// Search strategy: walk forward from each aligned candidate; on hitting a
// non-free page, restart at the next alignment boundary past the
// obstruction. Any strategy honoring the alignment and no-overlap
// guarantees would do; this one is simple and bounded by one pass per
// arena.
func (n *Node) AllocContiguous(count uint64, alignLog2 uint8) ([]*Page, types.PhysAddr, error) {
	if count == 0 || alignLog2 >= 64 {
		return nil, 0, fmt.Errorf("pmm: contiguous: %w", types.ErrInvalidArgs)
	}
	align := uint64(1) << alignLog2
	if align < types.PageSize {
		align = types.PageSize
	}
	runBytes, ok := buf.MulOverflow(count, types.PageSize)
	if !ok {
		return nil, 0, fmt.Errorf("pmm: contiguous: %w", types.ErrInvalidArgs)
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, a := range n.arenas {
		base, found := a.findRunLocked(count, runBytes, align)
		if !found {
			continue
		}
		pages := make([]*Page, 0, count)
		for addr := base; addr < base+types.PhysAddr(runBytes); addr += types.PageSize {
			p := a.pageAt(addr)
			a.free.remove(p)
			p.state = types.PageAlloc
			pages = append(pages, p)
		}
		return pages, base, nil
	}
	return nil, 0, fmt.Errorf("pmm: contiguous: %w", types.ErrNoMemory)
}

// findRunLocked scans for count consecutive free pages starting at an
// align-multiple address. Returns the base of the first such run.
func (a *Arena) findRunLocked(count, runBytes, align uint64) (types.PhysAddr, bool) {
	start, ok := buf.AlignUp(uint64(a.base), align)
	if !ok {
		return 0, false
	}
	for start+runBytes <= uint64(a.end()) {
		run := uint64(0)
		for run < count {
			p := a.pageAt(types.PhysAddr(start + run*types.PageSize))
			if p.state != types.PageFree {
				break
			}
			run++
		}
		if run == count {
			return types.PhysAddr(start), true
		}
		// Restart past the obstruction at the next alignment boundary.
		next, ok := buf.AlignUp(start+(run+1)*types.PageSize, align)
		if !ok || next <= start {
			return 0, false
		}
		start = next
	}
	return 0, false
}
