package indexentry

import "container/heap"

// Merge performs a k-way ascending merge of runs, each already sorted by
// Timestamp. Ties are broken by each entry's own source byte Offset
// (spec.md §5 "Ordering guarantees": "ties broken by original source byte
// offset"), so the result is correct regardless of what order runs are
// passed in — callers need not present them in any particular sequence.
func Merge(runs []View, out func(Entry)) {
	h := &mergeHeap{}
	for _, r := range runs {
		if r.Len() > 0 {
			heap.Push(h, mergeItem{entry: r.At(0), run: r, pos: 0})
		}
	}
	heap.Init(h)
	for h.Len() > 0 {
		item := heap.Pop(h).(mergeItem)
		out(item.entry)
		next := item.pos + 1
		if next < item.run.Len() {
			heap.Push(h, mergeItem{entry: item.run.At(next), run: item.run, pos: next})
		}
	}
}

// MergeToBuffer is a convenience wrapper around Merge that serializes the
// merged stream directly into a preallocated byte buffer, sized by the
// caller as sum(run sizes) per spec.md §4.5 step 2.
func MergeToBuffer(runs []View, out []byte) {
	i := 0
	Merge(runs, func(e Entry) {
		e.Put(out[i : i+Size])
		i += Size
	})
}

type mergeItem struct {
	entry Entry
	run   View
	pos   int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.entry.Timestamp != b.entry.Timestamp {
		return a.entry.Timestamp < b.entry.Timestamp
	}
	return a.entry.Offset < b.entry.Offset
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x interface{}) {
	*h = append(*h, x.(mergeItem))
}

func (h *mergeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
