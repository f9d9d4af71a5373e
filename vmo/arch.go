package vmo

import "github.com/vmkit/vmkit/pkg/types"

// cacheOpBytes issues the architecture cache maintenance instruction over
// one page's covered bytes. Hosted builds run on cache-coherent memory, so
// every operation is a no-op; the call sites keep the per-page walk and
// skip-missing semantics that a real implementation relies on.
func cacheOpBytes(op types.CacheOp, b []byte) {
	switch op {
	case types.CacheClean, types.CacheInvalidate, types.CacheCleanInvalidate, types.CacheSync:
		_ = b
	}
}
