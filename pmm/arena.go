package pmm

import (
	"github.com/vmkit/vmkit/internal/physmem"
	"github.com/vmkit/vmkit/pkg/types"
)

// ArenaInfo describes an arena to AddArena.
type ArenaInfo struct {
	Name     string
	Base     types.PhysAddr // page-aligned
	Size     uint64         // page-aligned, > 0
	Flags    types.ArenaFlags
	Priority uint32 // lower values are preferred
}

// Arena is one contiguous physical range plus its page descriptor array and
// backing bytes. The range is immutable after AddArena; per-page state is
// guarded by the node lock or the attached object's lock like any Page.
type Arena struct {
	name     string
	base     types.PhysAddr
	size     uint64
	flags    types.ArenaFlags
	priority uint32
	order    int // discovery order, tie-breaker for equal priority

	pages  []Page
	region *physmem.Region
	free   pageList // this arena's free frames, guarded by the node lock
}

// Name returns the arena's registration name.
func (a *Arena) Name() string { return a.name }

// Base returns the first physical address of the range.
func (a *Arena) Base() types.PhysAddr { return a.base }

// Size returns the range length in bytes.
func (a *Arena) Size() uint64 { return a.size }

// Flags returns the arena classification flags.
func (a *Arena) Flags() types.ArenaFlags { return a.flags }

// Priority returns the ordering key; lower values are preferred.
func (a *Arena) Priority() uint32 { return a.priority }

// PageCount returns the number of frames in the range.
func (a *Arena) PageCount() uint64 { return a.size / types.PageSize }

// FreeCount returns the number of this arena's frames on the free pool.
func (a *Arena) FreeCount() uint64 { return a.free.n }

func (a *Arena) lowMem() bool { return a.flags&types.ArenaLowMem != 0 }

func (a *Arena) end() types.PhysAddr { return a.base + types.PhysAddr(a.size) }

func (a *Arena) contains(addr types.PhysAddr) bool {
	return addr >= a.base && addr < a.end()
}

// pageAt returns the descriptor for the frame containing addr, which must
// lie within the arena.
func (a *Arena) pageAt(addr types.PhysAddr) *Page {
	return &a.pages[uint64(addr-a.base)/types.PageSize]
}
