// Package types defines the public scalar types, flag sets, and the typed
// error taxonomy shared by the physical allocator (pmm) and the memory
// object layer (vmo).
//
// Everything here is plain data: no locks, no allocation, no policy. The
// taxonomy distinguishes resource exhaustion (NoMemory), structural caller
// errors (AlreadyExists, OutOfRange, InvalidArgs), state conflicts
// (BadState), expected misses (NotFound), and saturated pin counts
// (Unavailable), so callers can branch on intent rather than text.
package types
