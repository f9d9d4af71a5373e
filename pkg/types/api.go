package types

import "fmt"

// PhysAddr is a physical byte address within some arena's range.
type PhysAddr uint64

const (
	// PageShift is log2 of the page size.
	PageShift = 12
	// PageSize is the size of one physical page in bytes.
	PageSize = 1 << PageShift
	// PageMask masks the offset-within-page bits of an address.
	PageMask = PageSize - 1
)

// PageState describes which list, and therefore which owner, a page belongs
// to. A page is always in exactly one state: either on the node's free pool
// or attached to exactly one object's page table.
type PageState uint8

const (
	// PageFree means the page sits on the node's free pool.
	PageFree PageState = iota
	// PageAlloc means the page was handed out but not yet attached to an
	// object (in flight between AllocPage and AddPage).
	PageAlloc
	// PageObject means the page is attached to exactly one object's table.
	PageObject
	// PageWired means the page is permanently claimed (boot carve-outs,
	// firmware ranges, the shared zero page) and never returns to the pool.
	PageWired
	// PagePinnedContig means the page belongs to a physically contiguous
	// committed run and can never be relocated or decommitted.
	PagePinnedContig
)

// String returns the short lowercase name used in diagnostic dumps.
func (s PageState) String() string {
	switch s {
	case PageFree:
		return "free"
	case PageAlloc:
		return "alloc"
	case PageObject:
		return "object"
	case PageWired:
		return "wired"
	case PagePinnedContig:
		return "pinned-contig"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// AllocFlags selects the allocation class for physical page requests.
type AllocFlags uint32

const (
	// AllocAnyArena allows placement in any arena. Zero value; the default.
	AllocAnyArena AllocFlags = 0
	// AllocLowMem restricts placement to arenas flagged ArenaLowMem.
	AllocLowMem AllocFlags = 1 << 0
)

// ArenaFlags classify an arena at registration time.
type ArenaFlags uint32

const (
	// ArenaLowMem marks an arena eligible for AllocLowMem requests
	// (memory reachable by legacy DMA and the like).
	ArenaLowMem ArenaFlags = 1 << 0
)

// FaultFlags describe a page fault to GetPage. FaultSW and FaultHW both
// enable fault resolution (materializing missing content); with neither set
// the call is a pure lookup. FaultWrite selects the copy-on-write break.
type FaultFlags uint32

const (
	// FaultSW marks a software-originated fault (syscall access, commit).
	FaultSW FaultFlags = 1 << 0
	// FaultHW marks a hardware page fault taken by the MMU.
	FaultHW FaultFlags = 1 << 1
	// FaultWrite marks the access as a write.
	FaultWrite FaultFlags = 1 << 2
	// FaultUser marks the access as originating from user mode.
	FaultUser FaultFlags = 1 << 3
)

// Resolve reports whether the fault flags request materializing missing
// content, as opposed to a lookup of what is already resident.
func (f FaultFlags) Resolve() bool { return f&(FaultSW|FaultHW) != 0 }

// Write reports whether the access is a write.
func (f FaultFlags) Write() bool { return f&FaultWrite != 0 }

// CacheOp selects an architecture cache maintenance operation over a byte
// range of an object.
type CacheOp uint8

const (
	// CacheClean writes dirty lines back to memory.
	CacheClean CacheOp = iota
	// CacheInvalidate discards cached lines.
	CacheInvalidate
	// CacheCleanInvalidate writes back then discards.
	CacheCleanInvalidate
	// CacheSync synchronizes the instruction cache after code modification.
	CacheSync
)
