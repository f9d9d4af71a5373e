// Package vmo implements memory objects: the copy-on-write paged object
// with its sparse page table and page-fault resolution, and the thin
// physical variant that wraps a fixed device-memory range.
//
// Every object in one clone chain (an object plus all transitive parents
// and children) shares a single lock instance. Fault resolution walks the
// parent chain and must observe one consistent snapshot across the whole
// chain; a shared lock gives that without a cross-object lock-ordering
// protocol, at the accepted cost of serializing unrelated children under
// deep clone trees.
package vmo
