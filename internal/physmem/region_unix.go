//go:build unix

// Package physmem provides the byte backing for simulated physical memory.
// Each arena slices its page frames out of one Region, so page zeroing and
// copy-on-write byte copies operate on real memory.
package physmem

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Region is a contiguous run of backing bytes for one arena.
type Region struct {
	data []byte
}

// Map creates an anonymous shared mapping of size bytes, zero-filled by the
// host. size must be positive and a multiple of the host page size.
func Map(size uint64) (*Region, error) {
	if size == 0 {
		return nil, fmt.Errorf("physmem: zero-size region")
	}
	if size > uint64(^uint(0)>>1) {
		return nil, fmt.Errorf("physmem: region too large to map (%d bytes)", size)
	}
	fd, err := unix.MemfdCreate("vmkit-arena", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("physmem: memfd_create: %w", err)
	}
	defer unix.Close(fd) // mapping keeps pages alive
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return nil, fmt.Errorf("physmem: ftruncate: %w", err)
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("physmem: mmap: %w", err)
	}
	return &Region{data: data}, nil
}

// Bytes returns the slice covering [off, off+length). The caller is
// responsible for bounds; out-of-range access panics like any slice.
func (r *Region) Bytes(off, length uint64) []byte {
	return r.data[off : off+length]
}

// Size returns the region length in bytes.
func (r *Region) Size() uint64 { return uint64(len(r.data)) }

// Close unmaps the region. Double close is a no-op.
func (r *Region) Close() error {
	if r.data == nil {
		return nil
	}
	err := unix.Munmap(r.data)
	r.data = nil
	return err
}
