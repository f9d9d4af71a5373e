package pmm

import (
	"fmt"
	"io"

	"github.com/vmkit/vmkit/pkg/types"
)

// DumpFree writes a read-only snapshot of the free pool to w.
func (n *Node) DumpFree(w io.Writer) {
	free := n.CountFreePages()
	fmt.Fprintf(w, "free: %s of %s\n",
		types.FormatBytes(free*types.PageSize),
		types.FormatBytes(n.CountTotalBytes()))
}

// DumpArenas writes one line per arena in priority order.
func (n *Node) DumpArenas(w io.Writer) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, a := range n.arenas {
		fmt.Fprintf(w, "arena %-12q prio %d  [%#x, %#x)  %s  free %s\n",
			a.name, a.priority, uint64(a.base), uint64(a.end()),
			types.FormatBytes(a.size),
			types.FormatCount(a.free.n))
	}
}

// DumpStates writes the full page-state census to w. O(all pages).
func (n *Node) DumpStates(w io.Writer) {
	census := n.CountTotalStates()
	for _, s := range []types.PageState{
		types.PageFree, types.PageAlloc, types.PageObject,
		types.PageWired, types.PagePinnedContig,
	} {
		fmt.Fprintf(w, "%-14s %s\n", s, types.FormatCount(census[s]))
	}
}
