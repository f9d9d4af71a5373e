package vmo

// Mapping is the callback surface of the address-space layer. A mapping
// owns a reference to the object it maps; the object holds only this
// non-owning back-reference for invalidation.
type Mapping interface {
	// UnmapRange invalidates any cached translation the mapping holds for
	// the object byte range [offset, offset+length). Called with the
	// object's chain lock held; implementations must not call back into
	// the object.
	UnmapRange(offset, length uint64)
}
