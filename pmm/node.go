package pmm

import (
	"fmt"
	"sort"
	"sync"

	"github.com/vmkit/vmkit/internal/bootalloc"
	"github.com/vmkit/vmkit/internal/buf"
	"github.com/vmkit/vmkit/internal/physmem"
	"github.com/vmkit/vmkit/pkg/types"
)

// Node aggregates all arenas and owns the global free-page pool. It is the
// only entry point the rest of the system uses to obtain or release
// physical pages.
type Node struct {
	mu sync.Mutex

	// Immutable after boot.
	arenas     []*Arena
	totalBytes uint64
	zero       *Page
}

// NewNode returns a node with no arenas.
func NewNode() *Node {
	return &Node{}
}

// AddArena registers a physical range and makes its non-reserved pages
// allocatable. Boot-only and single-threaded: callers run before any other
// node user exists, so nothing here takes the lock.
//
// The page descriptor array is carved from the arena itself via the boot
// allocator; an arena too small to hold its own descriptors is a fatal
// configuration error. Pages covered by the carve or by a pre-existing
// boot reservation come up wired instead of free.
func (n *Node) AddArena(info ArenaInfo, boot *bootalloc.Allocator) (*Arena, error) {
	if info.Size == 0 || !buf.IsPageAligned(uint64(info.Base)) || !buf.IsPageAligned(info.Size) {
		return nil, fmt.Errorf("pmm: arena %q: %w", info.Name, types.ErrInvalidArgs)
	}
	if _, ok := buf.AddOverflow(uint64(info.Base), info.Size); !ok {
		return nil, fmt.Errorf("pmm: arena %q wraps physical space: %w", info.Name, types.ErrInvalidArgs)
	}

	npages := info.Size / types.PageSize
	carve, err := boot.AllocIn(info.Base, info.Size, npages*pageDescSize, 8)
	if err != nil {
		return nil, fmt.Errorf("pmm: arena %q page array does not fit: %w", info.Name, types.ErrOutOfRange)
	}
	carveEnd, _ := buf.RoundUpPage(uint64(carve) + npages*pageDescSize)

	region, err := physmem.Map(info.Size)
	if err != nil {
		return nil, fmt.Errorf("pmm: arena %q backing: %w", info.Name, err)
	}

	a := &Arena{
		name:     info.Name,
		base:     info.Base,
		size:     info.Size,
		flags:    info.Flags,
		priority: info.Priority,
		order:    len(n.arenas),
		pages:    make([]Page, npages),
		region:   region,
	}
	for i := range a.pages {
		p := &a.pages[i]
		p.arena = a
		p.index = uint64(i)
		addr := p.PhysAddr()
		switch {
		case uint64(addr) >= buf.RoundDownPage(uint64(carve)) && uint64(addr) < carveEnd:
			p.state = types.PageWired
		case boot.ReservedRange(addr, types.PageSize):
			// Any overlap wires the whole frame, sub-page reservations
			// included.
			p.state = types.PageWired
		default:
			p.state = types.PageFree
			a.free.pushBack(p)
		}
	}

	n.arenas = append(n.arenas, a)
	sort.SliceStable(n.arenas, func(i, j int) bool {
		if n.arenas[i].priority != n.arenas[j].priority {
			return n.arenas[i].priority < n.arenas[j].priority
		}
		return n.arenas[i].order < n.arenas[j].order
	})
	n.totalBytes += info.Size

	if n.zero == nil {
		if z := a.free.popFront(); z != nil {
			z.state = types.PageWired
			z.Zero()
			n.zero = z
		}
	}
	return a, nil
}

// ZeroPage returns the single systemwide zero-filled page. Read faults with
// no resident content resolve to it; it is wired and never owned by any
// object's table.
func (n *Node) ZeroPage() *Page { return n.zero }

// AllocPage removes one page from the free pool. Arenas are tried in
// priority order; low-memory arenas serve unrestricted requests only as a
// last resort. Within an arena no ordering among free pages is promised
// beyond "at most once per page".
func (n *Node) AllocPage(flags types.AllocFlags) (*Page, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	p := n.allocPageLocked(flags)
	if p == nil {
		return nil, fmt.Errorf("pmm: %w", types.ErrNoMemory)
	}
	return p, nil
}

// AllocPages is best-effort bulk allocation: it returns fewer pages than
// requested when the pool runs dry, never more. The caller must detect the
// shortfall and free what it got if it cannot proceed.
func (n *Node) AllocPages(count uint64, flags types.AllocFlags) []*Page {
	n.mu.Lock()
	defer n.mu.Unlock()
	pages := make([]*Page, 0, count)
	for uint64(len(pages)) < count {
		p := n.allocPageLocked(flags)
		if p == nil {
			break
		}
		pages = append(pages, p)
	}
	return pages
}

// AllocRange claims an already-known contiguous physical range page by
// page, wiring each claimed page. It stops at the first page that is not
// free or not covered by any arena and returns the short result. Used to
// reserve firmware- and kernel-occupied memory.
func (n *Node) AllocRange(addr types.PhysAddr, count uint64) []*Page {
	n.mu.Lock()
	defer n.mu.Unlock()
	pages := make([]*Page, 0, count)
	for i := uint64(0); i < count; i++ {
		a := n.arenaFor(addr)
		if a == nil {
			break
		}
		p := a.pageAt(addr)
		if p.state != types.PageFree {
			break
		}
		a.free.remove(p)
		p.state = types.PageWired
		pages = append(pages, p)
		addr += types.PageSize
	}
	return pages
}

// FreePage returns a page to the free pool, reinserting it at the pool
// head. Freeing a page that is already free or still pinned is a defect.
func (n *Node) FreePage(p *Page) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.freePageLocked(p)
}

// FreePages returns a batch to the pool in one lock acquisition.
func (n *Node) FreePages(pages []*Page) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range pages {
		n.freePageLocked(p)
	}
}

// CountFreePages returns the current free-pool population.
func (n *Node) CountFreePages() uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	var total uint64
	for _, a := range n.arenas {
		total += a.free.n
	}
	return total
}

// CountTotalBytes returns the byte span of all arenas. O(1).
func (n *Node) CountTotalBytes() uint64 {
	return n.totalBytes
}

// CountTotalStates walks every page descriptor in every arena and returns
// a census keyed by state. This is O(all pages): diagnostics only, never a
// hot path.
func (n *Node) CountTotalStates() map[types.PageState]uint64 {
	n.mu.Lock()
	defer n.mu.Unlock()
	census := make(map[types.PageState]uint64)
	for _, a := range n.arenas {
		for i := range a.pages {
			census[a.pages[i].state]++
		}
	}
	return census
}

// Arenas returns the arenas in priority order. The slice is read-only.
func (n *Node) Arenas() []*Arena {
	return n.arenas
}

// Close unmaps every arena's backing region. The node is unusable after.
func (n *Node) Close() error {
	var first error
	for _, a := range n.arenas {
		if err := a.region.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (n *Node) allocPageLocked(flags types.AllocFlags) *Page {
	if flags&types.AllocLowMem != 0 {
		return n.popArenaLocked(true)
	}
	if p := n.popArenaLocked(false); p != nil {
		return p
	}
	return n.popArenaLocked(true)
}

// popArenaLocked pops a free page from the first non-empty arena of the
// given class. n.arenas is already priority-sorted.
func (n *Node) popArenaLocked(low bool) *Page {
	for _, a := range n.arenas {
		if a.lowMem() != low {
			continue
		}
		if p := a.free.popFront(); p != nil {
			p.state = types.PageAlloc
			return p
		}
	}
	return nil
}

func (n *Node) freePageLocked(p *Page) {
	if p.state == types.PageFree {
		panic(fmt.Sprintf("pmm: double free of page %#x", p.PhysAddr()))
	}
	if p.pin > 0 {
		panic(fmt.Sprintf("pmm: free of pinned page %#x (pin %d)", p.PhysAddr(), p.pin))
	}
	p.state = types.PageFree
	p.ownerID, p.ownerOff = 0, 0
	p.arena.free.pushFront(p)
}

func (n *Node) arenaFor(addr types.PhysAddr) *Arena {
	for _, a := range n.arenas {
		if a.contains(addr) {
			return a
		}
	}
	return nil
}
