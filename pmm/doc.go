// Package pmm implements the physical page allocator: arenas of contiguous
// physical memory with per-page descriptors, aggregated under a single Node
// that owns the global free pool and all allocation entry points.
//
// Locking model: the Node has one mutex guarding the free pool and counters
// for its entire post-boot lifetime. The arena list is immutable after boot
// (AddArena is boot-only and unlocked). Control flows downward only: nothing
// in this package calls back up into memory objects.
//
// Failure model: every allocation entry point returns a nil/short result on
// exhaustion. Nothing retries internally, and nothing panics except on
// caller defects (double free, freeing a pinned page).
package pmm
