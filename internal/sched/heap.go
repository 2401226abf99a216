package sched

import "slices"

// mergeHeap is a min-heap of live entries keyed by (pending timestamp,
// handle). Equal timestamps resolve by registration order.
type mergeHeap []*entry

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.pending.Timestamp != b.pending.Timestamp {
		return a.pending.Timestamp < b.pending.Timestamp
	}
	return a.handle < b.handle
}

func (h mergeHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *mergeHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

func sortHandles(hs []Handle) { slices.Sort(hs) }
