package sfx

import "time"

// timer is one pending deferred action. The seq field provides FIFO ordering
// among actions sharing a deadline.
type timer struct {
	deadline time.Time
	seq      uint64
	action   func()
}

// timerHeap implements [container/heap.Interface] as a min-heap ordered by
// deadline (ascending), with FIFO tie-breaking on seq (ascending).
type timerHeap []timer

func (h timerHeap) Len() int { return len(h) }

// Less reports whether timer i is due before timer j.
func (h timerHeap) Less(i, j int) bool {
	if !h[i].deadline.Equal(h[j].deadline) {
		return h[i].deadline.Before(h[j].deadline)
	}
	return h[i].seq < h[j].seq
}

func (h timerHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

// Push appends x to the heap. Called by [container/heap.Push]; callers must
// not invoke this directly.
func (h *timerHeap) Push(x any) {
	*h = append(*h, x.(timer))
}

// Pop removes and returns the last element. Called by [container/heap.Pop];
// callers must not invoke this directly.
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = timer{} // drop the action reference
	*h = old[:n-1]
	return t
}
