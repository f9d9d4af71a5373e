// Package buf provides overflow-checked arithmetic and page alignment
// helpers. Every offset computation that crosses an object boundary goes
// through these; a silent wraparound in offset math is a defect, never a
// value.
package buf

import (
	"math"

	"github.com/vmkit/vmkit/pkg/types"
)

// AddOverflow adds a and b, returning ok = false when the result would wrap.
func AddOverflow(a, b uint64) (uint64, bool) {
	if b > math.MaxUint64-a {
		return 0, false
	}
	return a + b, true
}

// MulOverflow multiplies a and b, returning ok = false when the result
// would wrap. Essential for count * PageSize calculations.
func MulOverflow(a, b uint64) (uint64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	if a > math.MaxUint64/b {
		return 0, false
	}
	return a * b, true
}

// RoundUpPage rounds n up to the next page boundary, ok = false on wrap.
func RoundUpPage(n uint64) (uint64, bool) {
	sum, ok := AddOverflow(n, types.PageMask)
	if !ok {
		return 0, false
	}
	return sum &^ uint64(types.PageMask), true
}

// RoundDownPage rounds n down to a page boundary.
func RoundDownPage(n uint64) uint64 {
	return n &^ uint64(types.PageMask)
}

// IsPageAligned reports whether n sits on a page boundary.
func IsPageAligned(n uint64) bool {
	return n&uint64(types.PageMask) == 0
}

// AlignUp rounds n up to a multiple of align, which must be a power of two.
// ok = false on wrap.
func AlignUp(n, align uint64) (uint64, bool) {
	sum, ok := AddOverflow(n, align-1)
	if !ok {
		return 0, false
	}
	return sum &^ (align - 1), true
}

// InRange reports whether [off, off+length) lies within [0, size) without
// overflowing. A zero-length range at off == size is in range.
func InRange(off, length, size uint64) bool {
	end, ok := AddOverflow(off, length)
	if !ok {
		return false
	}
	return end <= size
}
