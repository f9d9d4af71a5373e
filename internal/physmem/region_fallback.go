//go:build !unix

package physmem

import "fmt"

// Region is a contiguous run of backing bytes for one arena.
//
// Fallback for hosts without mmap: a plain heap slice. Semantics match the
// unix build; only the storage differs.
type Region struct {
	data []byte
}

// Map allocates a zero-filled backing slice of size bytes.
func Map(size uint64) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("physmem: zero-size region")
	}
	if size > uint64(^uint(0)>>1) {
		return nil, fmt.Errorf("physmem: region too large (%d bytes)", size)
	}
	return &Region{data: make([]byte, size)}, nil
}

// Bytes returns the slice covering [off, off+length).
func (r *Region) Bytes(off, length uint64) []byte {
	return r.data[off : off+length]
}

// Size returns the region length in bytes.
func (r *Region) Size() uint64 { return uint64(len(r.data)) }

// Close releases the backing slice. Double close is a no-op.
func (r *Region) Close() error {
	r.data = nil
	return nil
}
